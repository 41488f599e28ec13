package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftsmith/draftsmith/pkg/types"
)

func newTestConfigManager(t *testing.T) *ConfigManager {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cm, err := NewConfigManager()
	require.NoError(t, err)
	return cm
}

func TestLoadGlobalConfigDefaults(t *testing.T) {
	cm := newTestConfigManager(t)

	config, err := cm.LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, 1, config.Version)
	assert.NotEmpty(t, config.BooksDir)
}

func TestSaveAndLoadGlobalConfig(t *testing.T) {
	cm := newTestConfigManager(t)

	config := types.DefaultGlobalConfig()
	config.BooksDir = "/tmp/draftsmith-test-books"
	config.Providers = map[string]*types.ProviderConfig{
		"openai": {APIKey: "sk-test", DefaultModel: "gpt-4o"},
	}
	require.NoError(t, cm.SaveGlobalConfig(config))

	fresh, err := NewConfigManager()
	require.NoError(t, err)
	loaded, err := fresh.LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/draftsmith-test-books", loaded.BooksDir)
	assert.Equal(t, "sk-test", loaded.Providers["openai"].APIKey)
}

func TestLoadGlobalConfigExpandsEnvKeys(t *testing.T) {
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Setenv("DRAFTSMITH_TEST_KEY", "sk-from-env")

	configDir := filepath.Join(configHome, "draftsmith")
	require.NoError(t, os.MkdirAll(configDir, 0755))
	raw := `version: 1
books_dir: /tmp/books
providers:
  openai:
    api_key: ${DRAFTSMITH_TEST_KEY}
    default_model: gpt-4o
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(raw), 0644))

	cm, err := NewConfigManager()
	require.NoError(t, err)
	config, err := cm.LoadGlobalConfig()
	require.NoError(t, err)

	assert.Equal(t, "sk-from-env", config.Providers["openai"].APIKey)
}

func TestGetProviderConfigUnknown(t *testing.T) {
	cm := newTestConfigManager(t)

	_, err := cm.GetProviderConfig("unconfigured")

	assert.Error(t, err)
}
