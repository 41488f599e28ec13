// Package main is the entry point for draftsmith.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/draftsmith/draftsmith/internal/app"
	"github.com/draftsmith/draftsmith/internal/metrics"
	"github.com/draftsmith/draftsmith/internal/tui"
	"github.com/draftsmith/draftsmith/pkg/types"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "draftsmith",
	Short: "A TUI application for drafting books with AI assistance",
	Long: `Draftsmith is a terminal-based application for writing technical books
and long-form documents. It keeps your chapters in a structured outline
and offers AI assistance scoped to the chapter you are working on.`,
	Version: version,
}

var newCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a new book",
	Args:  cobra.ExactArgs(1),
	RunE:  runNewCmd,
}

func runNewCmd(cmd *cobra.Command, args []string) error {
	name := args[0]
	title, _ := cmd.Flags().GetString("title")
	description, _ := cmd.Flags().GetString("description")

	application, err := app.New()
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer application.Close()

	if application.BookManager.Exists(name) {
		return fmt.Errorf("book '%s' already exists", name)
	}

	// Quick creation when both flags are given
	if title != "" {
		if err := application.CreateBook(name, title, description); err != nil {
			return err
		}
		fmt.Printf("Created book '%s' at %s\n", name, application.CurrentBook.Path())
		return nil
	}

	return runInteractiveSetup(application, name)
}

// runInteractiveSetup collects book metadata with a form.
func runInteractiveSetup(application *app.App, name string) error {
	var (
		title       string
		description string
		provider    string
		style       string
		audience    string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Book title").
				Placeholder("The Systems Field Guide").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("title is required")
					}
					return nil
				}).
				Value(&title),
			huh.NewText().
				Title("Description").
				Placeholder("What is this book about?").
				CharLimit(1000).
				Value(&description),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("LLM provider").
				Options(
					huh.NewOption("OpenAI", "openai"),
					huh.NewOption("Google Gemini", "gemini"),
					huh.NewOption("Local (Ollama/LM Studio)", "local"),
				).
				Value(&provider),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Writing style").
				Placeholder("e.g., concise, practical, example-driven").
				Value(&style),
			huh.NewInput().
				Title("Audience").
				Placeholder("e.g., working software engineers").
				Value(&audience),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("book setup failed: %w", err)
	}

	config := types.DefaultBookConfig(title, strings.TrimSpace(description))
	config.LLM.Provider = provider
	config.Writing.Style = strings.TrimSpace(style)
	config.Writing.Audience = strings.TrimSpace(audience)

	b, err := application.BookManager.Create(name, config)
	if err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	application.CurrentBook = b

	fmt.Printf("\nCreated book '%s' at %s\n", name, b.Path())
	fmt.Printf("Run 'draftsmith open %s' to start writing!\n", name)
	return nil
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all books",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.New()
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		books, err := application.ListBooks()
		if err != nil {
			return fmt.Errorf("failed to list books: %w", err)
		}

		if len(books) == 0 {
			fmt.Println("No books found. Create one with: draftsmith new <name>")
			return nil
		}

		fmt.Println("Books:")
		for _, b := range books {
			fmt.Printf("  - %s: %s - %s\n", b.ID, b.Title, b.Path)
		}
		return nil
	},
}

var openCmd = &cobra.Command{
	Use:   "open <name>",
	Short: "Open a book in the editor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		application, err := app.New()
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}
		defer application.Close()

		if err := application.OpenBook(name); err != nil {
			return err
		}

		if err := checkProvider(application); err != nil {
			return err
		}

		sess, err := application.NewSession(context.Background())
		if err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}

		model := tui.New(sess, application.SaveSession)
		p := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}

		// Persist whatever state the editor left behind.
		return application.SaveSession(sess)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <name>",
	Short: "Export a book's chapters as markdown files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		application, err := app.New()
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}
		defer application.Close()

		if err := application.OpenBook(name); err != nil {
			return err
		}

		chapters, err := application.CurrentBook.LoadOutline()
		if err != nil {
			return fmt.Errorf("failed to load outline: %w", err)
		}
		if len(chapters) == 0 {
			fmt.Println("Nothing to export: the book has no chapters yet.")
			return nil
		}

		if err := application.CurrentBook.Exporter.ExportAll(chapters); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		fmt.Printf("Exported %d words to %s/chapters/\n",
			metrics.TotalWords(chapters), application.CurrentBook.Path())
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		force, _ := cmd.Flags().GetBool("force")

		application, err := app.New()
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		if !application.BookManager.Exists(name) {
			return fmt.Errorf("book '%s' not found", name)
		}

		if !force {
			var confirm string
			fmt.Printf("This will permanently delete book '%s' and all its files.\n", name)
			fmt.Printf("Type the book name to confirm: ")
			fmt.Scanln(&confirm)

			if confirm != name {
				fmt.Println("Deletion cancelled.")
				return nil
			}
		}

		if err := application.BookManager.Delete(name); err != nil {
			return fmt.Errorf("failed to delete book: %w", err)
		}

		fmt.Printf("Book '%s' deleted.\n", name)
		return nil
	},
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Configure LLM provider authentication",
	RunE:  runAuthCmd,
}

func runAuthCmd(cmd *cobra.Command, args []string) error {
	listFlag, _ := cmd.Flags().GetBool("list")
	removeFlag, _ := cmd.Flags().GetString("remove")
	providerFlag, _ := cmd.Flags().GetString("provider")

	application, err := app.New()
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}

	if listFlag {
		return listProviders(application)
	}

	if removeFlag != "" {
		return removeProvider(application, removeFlag)
	}

	if providerFlag != "" {
		return configureProvider(application, providerFlag)
	}

	return interactiveAuth(application)
}

func checkProvider(application *app.App) error {
	providerName := application.CurrentBook.Config.LLM.Provider
	providerConfig, err := application.Config.GetProviderConfig(providerName)
	if err != nil {
		fmt.Println("\n⚠ No LLM provider configured.")
		fmt.Println("Run 'draftsmith auth' to set up a provider.")
		return err
	}

	if providerName != "local" && providerConfig.APIKey == "" {
		fmt.Printf("\n⚠ No API key configured for %s.\n", providerName)
		fmt.Println("Run 'draftsmith auth' to set up a provider.")
		return fmt.Errorf("no API key for provider %q", providerName)
	}

	return nil
}

func listProviders(application *app.App) error {
	config, err := application.Config.LoadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("Configured providers:")
	fmt.Println()

	providers := []struct {
		name  string
		label string
	}{
		{"openai", "OpenAI"},
		{"gemini", "Google Gemini"},
		{"local", "Local (Ollama/LM Studio)"},
	}

	hasAny := false
	for _, p := range providers {
		providerConfig, exists := config.Providers[p.name]
		if !exists || (providerConfig.APIKey == "" && providerConfig.BaseURL == "") {
			continue
		}

		hasAny = true
		defaultMark := ""
		if config.Defaults.Provider == p.name {
			defaultMark = " (default)"
		}

		fmt.Printf("  %s%s\n", p.label, defaultMark)

		if providerConfig.APIKey != "" {
			fmt.Printf("    API Key: %s\n", maskAPIKey(providerConfig.APIKey))
		}
		if providerConfig.DefaultModel != "" {
			fmt.Printf("    Model: %s\n", providerConfig.DefaultModel)
		}
		if providerConfig.BaseURL != "" {
			fmt.Printf("    Base URL: %s\n", providerConfig.BaseURL)
		}
		fmt.Println()
	}

	if !hasAny {
		fmt.Println("  No providers configured.")
		fmt.Println()
		fmt.Println("Run 'draftsmith auth' to configure a provider.")
	}

	return nil
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func removeProvider(application *app.App, providerName string) error {
	config, err := application.Config.LoadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if _, exists := config.Providers[providerName]; !exists {
		return fmt.Errorf("provider '%s' is not configured", providerName)
	}

	delete(config.Providers, providerName)

	if config.Defaults.Provider == providerName {
		config.Defaults.Provider = ""
		for name := range config.Providers {
			config.Defaults.Provider = name
			break
		}
	}

	if err := application.Config.SaveGlobalConfig(config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Provider '%s' removed.\n", providerName)
	return nil
}

func configureProvider(application *app.App, providerName string) error {
	switch providerName {
	case "openai", "gemini", "local":
		return setupProvider(application, providerName)
	default:
		return fmt.Errorf("unknown provider: %s (supported: openai, gemini, local)", providerName)
	}
}

func interactiveAuth(application *app.App) error {
	var providerName string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select provider to configure").
				Options(
					huh.NewOption("OpenAI", "openai"),
					huh.NewOption("Google Gemini", "gemini"),
					huh.NewOption("Local (Ollama/LM Studio)", "local"),
				).
				Value(&providerName),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("provider selection failed: %w", err)
	}

	return setupProvider(application, providerName)
}

func setupProvider(application *app.App, providerName string) error {
	config, err := application.Config.LoadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if config.Providers == nil {
		config.Providers = make(map[string]*types.ProviderConfig)
	}

	providerConfig := config.Providers[providerName]
	if providerConfig == nil {
		providerConfig = &types.ProviderConfig{}
	}

	switch providerName {
	case "openai":
		err = setupOpenAI(providerConfig)
	case "gemini":
		err = setupGemini(providerConfig)
	case "local":
		err = setupLocal(providerConfig)
	}
	if err != nil {
		return err
	}

	config.Providers[providerName] = providerConfig

	var setDefault bool
	defaultForm := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Set as default provider?").
				Value(&setDefault),
		),
	)

	if err := defaultForm.Run(); err != nil {
		return fmt.Errorf("default selection failed: %w", err)
	}

	if setDefault {
		config.Defaults.Provider = providerName
	}

	if err := application.Config.SaveGlobalConfig(config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("\n✓ %s configured successfully\n", providerName)
	return nil
}

func setupOpenAI(config *types.ProviderConfig) error {
	var apiKey, model string

	currentKey := ""
	if config.APIKey != "" {
		currentKey = " (current: " + maskAPIKey(config.APIKey) + ")"
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("OpenAI API Key"+currentKey).
				Placeholder("sk-...").
				Value(&apiKey),
			huh.NewSelect[string]().
				Title("Default model").
				Options(
					huh.NewOption("GPT-4o (recommended)", "gpt-4o"),
					huh.NewOption("GPT-4o Mini", "gpt-4o-mini"),
					huh.NewOption("GPT-4 Turbo", "gpt-4-turbo"),
					huh.NewOption("GPT-3.5 Turbo", "gpt-3.5-turbo"),
				).
				Value(&model),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("OpenAI setup failed: %w", err)
	}

	if apiKey != "" {
		config.APIKey = apiKey
	}
	if model != "" {
		config.DefaultModel = model
	}

	return nil
}

func setupGemini(config *types.ProviderConfig) error {
	var apiKey, model string

	currentKey := ""
	if config.APIKey != "" {
		currentKey = " (current: " + maskAPIKey(config.APIKey) + ")"
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Gemini API Key"+currentKey).
				Placeholder("Get from ai.google.dev").
				Value(&apiKey),
			huh.NewSelect[string]().
				Title("Default model").
				Options(
					huh.NewOption("Gemini 2.5 Flash (recommended)", "gemini-2.5-flash"),
					huh.NewOption("Gemini 2.5 Pro", "gemini-2.5-pro"),
					huh.NewOption("Gemini 2.0 Flash", "gemini-2.0-flash"),
				).
				Value(&model),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("Gemini setup failed: %w", err)
	}

	if apiKey != "" {
		config.APIKey = apiKey
	}
	if model != "" {
		config.DefaultModel = model
	}

	return nil
}

func setupLocal(config *types.ProviderConfig) error {
	var baseURL string

	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	setupForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Base URL").
				Placeholder("http://localhost:11434").
				Value(&baseURL),
		),
	)

	if err := setupForm.Run(); err != nil {
		return fmt.Errorf("local setup failed: %w", err)
	}

	if baseURL != "" {
		config.BaseURL = baseURL
	}

	models, err := fetchLocalModels(config.BaseURL)
	if err != nil || len(models) == 0 {
		if err != nil {
			fmt.Printf("\n⚠ Could not fetch models from %s: %v\n", config.BaseURL, err)
		} else {
			fmt.Println("\n⚠ No models found. Pull one first: ollama pull llama3.2")
		}
		fmt.Println("Please enter model name manually.")

		var model string
		manualForm := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Model name").
					Placeholder("llama3, mistral, etc.").
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return fmt.Errorf("model name is required")
						}
						return nil
					}).
					Value(&model),
			),
		)
		if err := manualForm.Run(); err != nil {
			return fmt.Errorf("model input failed: %w", err)
		}
		config.DefaultModel = model
		return nil
	}

	var selectedModel string
	options := make([]huh.Option[string], len(models))
	for i, m := range models {
		options[i] = huh.NewOption(m.Display, m.Name)
	}

	modelForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select model").
				Options(options...).
				Value(&selectedModel),
		),
	)

	if err := modelForm.Run(); err != nil {
		return fmt.Errorf("model selection failed: %w", err)
	}

	config.DefaultModel = selectedModel
	return nil
}

type modelInfo struct {
	Name    string
	Display string
}

// fetchLocalModels asks an Ollama server for its installed models,
// falling back to the OpenAI-compatible listing endpoint.
func fetchLocalModels(baseURL string) ([]modelInfo, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	client := &http.Client{Timeout: 5 * time.Second}

	if models, err := fetchModels(client, baseURL+"/api/tags", parseOllamaModels); err == nil {
		return models, nil
	}
	return fetchModels(client, baseURL+"/v1/models", parseOpenAIModels)
}

func fetchModels(client *http.Client, url string, parse func([]byte) ([]modelInfo, error)) ([]modelInfo, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return parse(body)
}

func parseOllamaModels(body []byte) ([]modelInfo, error) {
	var result struct {
		Models []struct {
			Name    string `json:"name"`
			Details struct {
				ParameterSize string `json:"parameter_size"`
			} `json:"details"`
		} `json:"models"`
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}

	models := make([]modelInfo, len(result.Models))
	for i, m := range result.Models {
		display := m.Name
		if m.Details.ParameterSize != "" {
			display = fmt.Sprintf("%s (%s)", m.Name, m.Details.ParameterSize)
		}
		models[i] = modelInfo{Name: m.Name, Display: display}
	}
	return models, nil
}

func parseOpenAIModels(body []byte) ([]modelInfo, error) {
	var result struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}

	models := make([]modelInfo, len(result.Data))
	for i, m := range result.Data {
		models[i] = modelInfo{Name: m.ID, Display: m.ID}
	}
	return models, nil
}

func init() {
	newCmd.Flags().String("title", "", "Book title for quick creation without the form")
	newCmd.Flags().String("description", "", "Book description for quick creation")

	deleteCmd.Flags().BoolP("force", "f", false, "Delete without confirmation")

	authCmd.Flags().BoolP("list", "l", false, "List configured providers")
	authCmd.Flags().StringP("remove", "r", "", "Remove a provider configuration")
	authCmd.Flags().StringP("provider", "p", "", "Configure a specific provider")

	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(authCmd)
}
