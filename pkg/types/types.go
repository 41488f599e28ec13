// Package types provides shared data models for draftsmith.
package types

import (
	"strings"
	"time"
)

// Role constants for conversation messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Chapter status values, carried as data on each chapter.
const (
	StatusDraft     = "draft"
	StatusInReview  = "in_review"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Book represents a technical book being drafted.
type Book struct {
	ID          string    `yaml:"id" json:"id"`
	Title       string    `yaml:"title" json:"title"`
	Description string    `yaml:"description" json:"description"`
	Path        string    `yaml:"-" json:"path"`
	CreatedAt   time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt   time.Time `yaml:"updated_at" json:"updated_at"`
}

// Chapter is a node in a book's hierarchical outline. Each chapter owns
// its content and derived metrics; children are ordered.
type Chapter struct {
	ID        string     `yaml:"id" json:"id"`
	Title     string     `yaml:"title" json:"title"`
	Content   string     `yaml:"-" json:"content,omitempty"`
	WordCount int        `yaml:"word_count" json:"word_count"`
	Status    string     `yaml:"status" json:"status"`
	Expanded  bool       `yaml:"-" json:"expanded"`
	Children  []*Chapter `yaml:"children,omitempty" json:"children,omitempty"`
	CreatedAt time.Time  `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time  `yaml:"updated_at" json:"updated_at"`
}

// AIMessage is a single entry in a session's conversation log.
type AIMessage struct {
	Role      string    `json:"role"` // user, assistant
	Content   string    `json:"content"`
	ChapterID string    `json:"chapter_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BookConfig is the per-book configuration stored in .draftsmith/config.yaml.
type BookConfig struct {
	Version     int           `yaml:"version"`
	Title       string        `yaml:"title"`
	Description string        `yaml:"description"`
	CreatedAt   time.Time     `yaml:"created_at"`
	LLM         LLMConfig     `yaml:"llm"`
	Writing     WritingConfig `yaml:"writing"`
}

// LLMConfig specifies the LLM provider settings.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// WritingConfig holds writing style preferences used in the system prompt.
type WritingConfig struct {
	Style    string `yaml:"style"`
	Audience string `yaml:"audience"`
	Language string `yaml:"language"`
}

// GlobalConfig is the user-wide configuration at ~/.config/draftsmith/config.yaml.
type GlobalConfig struct {
	Version   int                        `yaml:"version"`
	BooksDir  string                     `yaml:"books_dir"`
	Providers map[string]*ProviderConfig `yaml:"providers"`
	Defaults  DefaultsConfig             `yaml:"defaults"`
	Logging   LoggingConfig              `yaml:"logging"`
}

// ProviderConfig holds API configuration for an LLM provider.
type ProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url,omitempty"`
}

// DefaultsConfig specifies default settings.
type DefaultsConfig struct {
	Provider string `yaml:"provider"`
}

// LoggingConfig specifies logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ValidStatus reports whether s is a known chapter status.
func ValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusInReview, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// IsEmpty reports whether the chapter holds no content. Whitespace-only
// content counts as empty.
func (c *Chapter) IsEmpty() bool {
	return strings.TrimSpace(c.Content) == ""
}

// DefaultBookConfig returns a new BookConfig with sensible defaults.
func DefaultBookConfig(title, description string) *BookConfig {
	return &BookConfig{
		Version:     1,
		Title:       title,
		Description: description,
		CreatedAt:   time.Now(),
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o",
		},
		Writing: WritingConfig{
			Style:    "technical",
			Audience: "practitioners",
			Language: "en",
		},
	}
}

// DefaultGlobalConfig returns a new GlobalConfig with sensible defaults.
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Version:   1,
		BooksDir:  "~/draftsmith-books",
		Providers: make(map[string]*ProviderConfig),
		Defaults: DefaultsConfig{
			Provider: "openai",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
