// Package book provides book lifecycle management on disk.
package book

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/draftsmith/draftsmith/internal/storage"
	"github.com/draftsmith/draftsmith/pkg/types"
)

var ErrConfigNotFound = errors.New("configuration file not found")

// LoadBookConfig loads a book's configuration from .draftsmith/book.yaml.
func LoadBookConfig(bookPath string) (*types.BookConfig, error) {
	configPath := filepath.Join(bookPath, ".draftsmith", "book.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read book config: %w", err)
	}

	var config types.BookConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse book config: %w", err)
	}

	return &config, nil
}

// SaveBookConfig writes a book's configuration atomically.
func SaveBookConfig(bookPath string, config *types.BookConfig) error {
	configDir := filepath.Join(bookPath, ".draftsmith")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create .draftsmith directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal book config: %w", err)
	}

	configPath := filepath.Join(configDir, "book.yaml")
	if err := storage.AtomicWriteFile(configPath, data); err != nil {
		return fmt.Errorf("failed to write book config: %w", err)
	}

	return nil
}
