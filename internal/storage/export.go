package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/draftsmith/draftsmith/pkg/types"
)

// ChapterFrontmatter is the YAML header written at the top of each
// exported chapter file.
type ChapterFrontmatter struct {
	ID        string `yaml:"id"`
	Title     string `yaml:"title"`
	Status    string `yaml:"status"`
	WordCount int    `yaml:"word_count"`
	Updated   string `yaml:"updated"`
}

// Exporter writes a book's chapters out as markdown files.
type Exporter struct {
	bookPath string
	md       goldmark.Markdown
}

// NewExporter creates an exporter rooted at the book directory.
func NewExporter(bookPath string) *Exporter {
	return &Exporter{
		bookPath: bookPath,
		md:       goldmark.New(),
	}
}

// ExportChapter writes one chapter to chapters/<nn>-<id>.md with a YAML
// frontmatter header. Writes are atomic.
func (e *Exporter) ExportChapter(ch *types.Chapter, position int) error {
	header := ChapterFrontmatter{
		ID:        ch.ID,
		Title:     ch.Title,
		Status:    ch.Status,
		WordCount: ch.WordCount,
		Updated:   ch.UpdatedAt.UTC().Format(time.RFC3339),
	}
	headerBytes, err := yaml.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(headerBytes)
	b.WriteString("---\n\n")
	b.WriteString(ch.Content)
	if !strings.HasSuffix(ch.Content, "\n") {
		b.WriteString("\n")
	}

	path := filepath.Join(e.bookPath, "chapters", fmt.Sprintf("%02d-%s.md", position, ch.ID))
	return AtomicWriteFile(path, []byte(b.String()))
}

// ExportAll writes every chapter in the outline, depth-first. Nested
// chapters share the numbering sequence of the walk.
func (e *Exporter) ExportAll(chapters []*types.Chapter) error {
	position := 1
	var walk func(chs []*types.Chapter) error
	walk = func(chs []*types.Chapter) error {
		for _, ch := range chs {
			if err := e.ExportChapter(ch, position); err != nil {
				return err
			}
			position++
			if err := walk(ch.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(chapters); err != nil {
		return err
	}

	// Keep a copy of the book config next to the exported chapters so
	// the directory is self-describing.
	configPath := filepath.Join(e.bookPath, ".draftsmith", "book.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return AtomicCopyFile(configPath, filepath.Join(e.bookPath, "chapters", "book.yaml"))
	}
	return nil
}

// ParseFrontmatter splits an exported chapter file into its header and
// body. Files without a header return an empty frontmatter and the
// content unchanged.
func ParseFrontmatter(content string) (ChapterFrontmatter, string, error) {
	var header ChapterFrontmatter

	lines := strings.Split(content, "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[0]) != "---" {
		return header, content, nil
	}

	var end int
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == 0 {
		return header, content, nil
	}

	raw := strings.Join(lines[1:end], "\n")
	if err := yaml.Unmarshal([]byte(raw), &header); err != nil {
		return header, content, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	body := strings.TrimSpace(strings.Join(lines[end+1:], "\n"))
	return header, body, nil
}

// ExtractTitle returns the first H1 heading of markdown content, or an
// empty string when there is none.
func (e *Exporter) ExtractTitle(content string) string {
	reader := text.NewReader([]byte(content))
	doc := e.md.Parser().Parse(reader)

	var title string
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if heading, ok := n.(*ast.Heading); ok && entering && heading.Level == 1 {
			title = string(heading.Text([]byte(content)))
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})

	return title
}
