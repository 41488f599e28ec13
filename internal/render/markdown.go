// Package render converts chapter markdown into HTML for preview mode.
package render

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer renders markdown to HTML. It is stateless apart from the
// parser configuration and safe for reuse.
type Renderer struct {
	md goldmark.Markdown
}

// New creates a renderer with GitHub-flavored extensions, matching the
// dialect chapters are written in.
func New() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
	}
}

// Render converts markdown text to HTML. Rendering is a pure function of
// the input; it never mutates chapter state.
func (r *Renderer) Render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}
