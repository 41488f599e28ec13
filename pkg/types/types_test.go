package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultBookConfig(t *testing.T) {
	tests := []struct {
		name         string
		title        string
		description  string
		wantVersion  int
		wantProvider string
		wantModel    string
		wantStyle    string
	}{
		{
			name:         "creates config with title and description",
			title:        "Designing Data Pipelines",
			description:  "A practical guide to stream processing",
			wantVersion:  1,
			wantProvider: "openai",
			wantModel:    "gpt-4o",
			wantStyle:    "technical",
		},
		{
			name:         "creates config with empty values",
			title:        "",
			description:  "",
			wantVersion:  1,
			wantProvider: "openai",
			wantModel:    "gpt-4o",
			wantStyle:    "technical",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultBookConfig(tt.title, tt.description)

			assert.Equal(t, tt.title, cfg.Title)
			assert.Equal(t, tt.description, cfg.Description)
			assert.Equal(t, tt.wantVersion, cfg.Version)
			assert.Equal(t, tt.wantProvider, cfg.LLM.Provider)
			assert.Equal(t, tt.wantModel, cfg.LLM.Model)
			assert.Equal(t, tt.wantStyle, cfg.Writing.Style)
			assert.False(t, cfg.CreatedAt.IsZero())
		})
	}
}

func TestDefaultGlobalConfig(t *testing.T) {
	cfg := DefaultGlobalConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "~/draftsmith-books", cfg.BooksDir)
	assert.NotNil(t, cfg.Providers)
	assert.Equal(t, "openai", cfg.Defaults.Provider)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestValidStatus(t *testing.T) {
	tests := []struct {
		name   string
		status string
		want   bool
	}{
		{name: "draft is valid", status: StatusDraft, want: true},
		{name: "in_review is valid", status: StatusInReview, want: true},
		{name: "published is valid", status: StatusPublished, want: true},
		{name: "archived is valid", status: StatusArchived, want: true},
		{name: "unknown status is invalid", status: "pending", want: false},
		{name: "empty status is invalid", status: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidStatus(tt.status))
		})
	}
}

func TestChapterIsEmpty(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{name: "empty content", content: "", want: true},
		{name: "whitespace only", content: "  \n\t ", want: true},
		{name: "real content", content: "## Introduction", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &Chapter{ID: "1", Title: "Intro", Content: tt.content}
			assert.Equal(t, tt.want, ch.IsEmpty())
		})
	}
}
