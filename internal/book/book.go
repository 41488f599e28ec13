// Package book provides book lifecycle management on disk.
package book

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/draftsmith/draftsmith/internal/storage"
	"github.com/draftsmith/draftsmith/pkg/types"
)

var (
	ErrBookNotFound = errors.New("book not found")
	ErrBookExists   = errors.New("book already exists")
	ErrInvalidName  = errors.New("invalid book name")
)

// Manager handles book lifecycle operations.
type Manager struct {
	booksDir string
}

// NewManager creates a manager rooted at booksDir, creating it when
// missing. A leading ~ is expanded to the user's home directory.
func NewManager(booksDir string) (*Manager, error) {
	if strings.HasPrefix(booksDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		booksDir = filepath.Join(home, booksDir[2:])
	}

	if err := os.MkdirAll(booksDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create books directory: %w", err)
	}

	return &Manager{
		booksDir: booksDir,
	}, nil
}

// Book is an open book on disk: its metadata, config, database, and
// markdown exporter.
type Book struct {
	Info     *types.Book
	Config   *types.BookConfig
	Store    *storage.Store
	Exporter *storage.Exporter
	path     string
}

// Create creates a new book directory and opens it.
func (m *Manager) Create(name string, config *types.BookConfig) (*Book, error) {
	if !isValidName(name) {
		return nil, ErrInvalidName
	}

	bookPath := filepath.Join(m.booksDir, name)

	if _, err := os.Stat(bookPath); err == nil {
		return nil, ErrBookExists
	}

	dirs := []string{
		".draftsmith",
		"chapters",
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(filepath.Join(bookPath, dir), 0755); err != nil {
			// Clean up on failure
			os.RemoveAll(bookPath)
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := SaveBookConfig(bookPath, config); err != nil {
		os.RemoveAll(bookPath)
		return nil, fmt.Errorf("failed to save book config: %w", err)
	}

	readme := fmt.Sprintf("# %s\n\n%s\n\nCreated: %s\n",
		config.Title, config.Description, config.CreatedAt.Format("2006-01-02"))

	if err := storage.AtomicWriteFile(filepath.Join(bookPath, "README.md"), []byte(readme)); err != nil {
		os.RemoveAll(bookPath)
		return nil, fmt.Errorf("failed to create README: %w", err)
	}

	return m.Open(name)
}

// Open opens an existing book.
func (m *Manager) Open(name string) (*Book, error) {
	bookPath := filepath.Join(m.booksDir, name)

	if _, err := os.Stat(bookPath); os.IsNotExist(err) {
		return nil, ErrBookNotFound
	}

	config, err := LoadBookConfig(bookPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load book config: %w", err)
	}

	store, err := storage.NewStore(bookPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Book{
		Info: &types.Book{
			ID:          name,
			Title:       config.Title,
			Description: config.Description,
			Path:        bookPath,
			CreatedAt:   config.CreatedAt,
			UpdatedAt:   time.Now(),
		},
		Config:   config,
		Store:    store,
		Exporter: storage.NewExporter(bookPath),
		path:     bookPath,
	}, nil
}

// List returns all books under the books directory.
func (m *Manager) List() ([]*types.Book, error) {
	entries, err := os.ReadDir(m.booksDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*types.Book{}, nil
		}
		return nil, err
	}

	var books []*types.Book
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		bookPath := filepath.Join(m.booksDir, entry.Name())
		configPath := filepath.Join(bookPath, ".draftsmith", "book.yaml")

		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			continue
		}

		config, err := LoadBookConfig(bookPath)
		if err != nil {
			continue // Skip unreadable books
		}

		info, _ := entry.Info()
		books = append(books, &types.Book{
			ID:          entry.Name(),
			Title:       config.Title,
			Description: config.Description,
			Path:        bookPath,
			CreatedAt:   config.CreatedAt,
			UpdatedAt:   info.ModTime(),
		})
	}

	return books, nil
}

// Exists reports whether a book directory with the given name exists.
func (m *Manager) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(m.booksDir, name))
	return err == nil
}

// Delete removes a book and everything under it.
func (m *Manager) Delete(name string) error {
	bookPath := filepath.Join(m.booksDir, name)

	if _, err := os.Stat(bookPath); os.IsNotExist(err) {
		return ErrBookNotFound
	}

	return os.RemoveAll(bookPath)
}

// isValidName checks if a book directory name is valid.
func isValidName(name string) bool {
	if name == "" || len(name) > 100 {
		return false
	}

	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", "..", " "}
	for _, char := range invalid {
		if strings.Contains(name, char) {
			return false
		}
	}

	reserved := []string{".", "..", "con", "prn", "aux", "nul"}
	nameLower := strings.ToLower(name)
	for _, r := range reserved {
		if nameLower == r {
			return false
		}
	}

	return true
}

// Path returns the book's filesystem path.
func (b *Book) Path() string {
	return b.path
}

// Close releases book resources.
func (b *Book) Close() error {
	if b.Store != nil {
		return b.Store.Close()
	}
	return nil
}

// LoadOutline reads the stored chapter tree.
func (b *Book) LoadOutline() ([]*types.Chapter, error) {
	return b.Store.LoadChapters()
}

// SaveOutline persists the chapter tree and exports the chapters as
// markdown files.
func (b *Book) SaveOutline(chapters []*types.Chapter) error {
	if err := b.Store.SaveChapters(chapters); err != nil {
		return fmt.Errorf("failed to save chapters: %w", err)
	}
	if err := b.Exporter.ExportAll(chapters); err != nil {
		return fmt.Errorf("failed to export chapters: %w", err)
	}
	return nil
}

// LoadConversation reads the most recent assistant messages.
func (b *Book) LoadConversation(limit int) ([]types.AIMessage, error) {
	return b.Store.LoadMessages(limit)
}

// AppendConversation persists a batch of assistant messages.
func (b *Book) AppendConversation(messages []types.AIMessage) error {
	for _, msg := range messages {
		if err := b.Store.SaveMessage(msg); err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
	}
	return nil
}
