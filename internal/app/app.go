// Package app provides application lifecycle management.
package app

import (
	"context"
	"fmt"

	"github.com/draftsmith/draftsmith/internal/book"
	"github.com/draftsmith/draftsmith/internal/conversation"
	"github.com/draftsmith/draftsmith/internal/llm"
	"github.com/draftsmith/draftsmith/internal/llm/adapters"
	"github.com/draftsmith/draftsmith/internal/metrics"
	"github.com/draftsmith/draftsmith/internal/outline"
	"github.com/draftsmith/draftsmith/internal/session"
	"github.com/draftsmith/draftsmith/pkg/types"
)

// conversationHistoryLimit bounds how much of the stored log is
// restored when a book is opened.
const conversationHistoryLimit = 200

// App represents the main application instance.
type App struct {
	Config      *ConfigManager
	BookManager *book.Manager
	CurrentBook *book.Book

	provider llm.Provider
}

// New creates a new application instance.
func New() (*App, error) {
	configManager, err := NewConfigManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config manager: %w", err)
	}

	globalConfig, err := configManager.LoadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load global config: %w", err)
	}

	bookManager, err := book.NewManager(globalConfig.BooksDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize book manager: %w", err)
	}

	return &App{
		Config:      configManager,
		BookManager: bookManager,
	}, nil
}

// OpenBook opens an existing book by name.
func (a *App) OpenBook(name string) error {
	b, err := a.BookManager.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open book: %w", err)
	}
	a.CurrentBook = b
	return nil
}

// CreateBook creates a new book and keeps it open.
func (a *App) CreateBook(name, title, description string) error {
	config := types.DefaultBookConfig(title, description)
	b, err := a.BookManager.Create(name, config)
	if err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	a.CurrentBook = b
	return nil
}

// ListBooks returns all available books.
func (a *App) ListBooks() ([]*types.Book, error) {
	return a.BookManager.List()
}

// NewProvider builds the LLM provider configured for the current book.
func (a *App) NewProvider(ctx context.Context) (llm.Provider, error) {
	if a.CurrentBook == nil {
		return nil, fmt.Errorf("no book is open")
	}

	llmConfig := a.CurrentBook.Config.LLM
	providerConfig, err := a.Config.GetProviderConfig(llmConfig.Provider)
	if err != nil {
		return nil, err
	}

	model := llmConfig.Model
	if model == "" {
		model = providerConfig.DefaultModel
	}

	switch llmConfig.Provider {
	case "openai":
		var opts []adapters.OpenAIOption
		if providerConfig.BaseURL != "" {
			opts = append(opts, adapters.WithOpenAIBaseURL(providerConfig.BaseURL))
		}
		return adapters.NewOpenAIAdapter(providerConfig.APIKey, model, opts...)
	case "gemini":
		return adapters.NewGeminiAdapter(ctx, providerConfig.APIKey, model)
	case "local":
		return adapters.NewLocalAdapter(providerConfig.BaseURL, model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", llmConfig.Provider)
	}
}

// NewSession wires the current book into an editing session: the stored
// outline, the restored conversation log, and a generator backed by the
// configured provider.
func (a *App) NewSession(ctx context.Context) (*session.Session, error) {
	if a.CurrentBook == nil {
		return nil, fmt.Errorf("no book is open")
	}

	chapters, err := a.CurrentBook.LoadOutline()
	if err != nil {
		return nil, fmt.Errorf("failed to load outline: %w", err)
	}
	tree, err := outline.FromChapters(chapters)
	if err != nil {
		return nil, fmt.Errorf("failed to build outline: %w", err)
	}

	provider, err := a.NewProvider(ctx)
	if err != nil {
		return nil, err
	}
	a.provider = provider

	counter, err := metrics.NewCounter("")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token counter: %w", err)
	}

	window := provider.Capabilities().MaxContextTokens
	assembler := llm.NewPromptAssembler(
		a.CurrentBook.Config.Title,
		a.CurrentBook.Config.Writing,
		window,
		counter,
	)

	conv := conversation.New(llm.NewGenerator(provider, assembler))

	history, err := a.CurrentBook.LoadConversation(conversationHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	conv.Restore(history)

	return session.New(a.CurrentBook.Info, tree, conv), nil
}

// SaveSession persists the session's outline and any conversation
// messages beyond what was loaded at open time.
func (a *App) SaveSession(s *session.Session) error {
	if a.CurrentBook == nil {
		return fmt.Errorf("no book is open")
	}

	if err := a.CurrentBook.SaveOutline(s.Outline()); err != nil {
		return err
	}

	stored, err := a.CurrentBook.LoadConversation(conversationHistoryLimit)
	if err != nil {
		return err
	}
	messages := s.Messages()
	if len(messages) > len(stored) {
		return a.CurrentBook.AppendConversation(messages[len(stored):])
	}
	return nil
}

// Close cleans up application resources.
func (a *App) Close() error {
	if a.provider != nil {
		a.provider.Close()
	}
	if a.CurrentBook != nil {
		return a.CurrentBook.Close()
	}
	return nil
}
