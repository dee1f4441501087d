package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/invoice-extractor/internal/batch"
	"github.com/zombor/invoice-extractor/internal/extraction"
	"github.com/zombor/invoice-extractor/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

type config struct {
	port            int
	dbPath          string
	storagePath     string
	scannerType     string
	geminiKey       string
	geminiModel     string
	ollamaURL       string
	ollamaModel     string
	openAIKey       string
	openAIModel     string
	openAIURL       string
	promptFile      string
	spreadsheetMode string
	maxAttempts     int
	callTimeout     time.Duration
	authUser        string
	authPass        string
	extractPath     string
	logLevel        string
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// a missing .env is fine
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error: loading .env: %v\n", err)
		os.Exit(1)
	}

	fs := ff.NewFlagSet("invoice-extractor")
	var (
		port            = fs.IntLong("port", 8080, "HTTP server port")
		dbPath          = fs.StringLong("db", "invoice-extractor.db", "Database file path")
		storagePath     = fs.StringLong("storage", "./documents", "Storage directory for uploaded documents")
		scannerType     = fs.StringLong("scanner", "gemini", "Scanner type: 'gemini', 'ollama' or 'openai'")
		geminiKey       = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel     = fs.StringLong("gemini-model", scanning.DefaultGeminiModel, "Google Gemini model name")
		ollamaURL       = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel     = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		openAIKey       = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openAIModel     = fs.StringLong("openai-model", scanning.DefaultOpenAIModel, "OpenAI model name")
		openAIURL       = fs.StringLong("openai-url", "", "OpenAI compatible API base URL (optional)")
		promptFile      = fs.StringLong("prompt-file", "", "File replacing the default extraction prompt")
		spreadsheetMode = fs.StringLong("spreadsheet-mode", string(extraction.SpreadsheetRows), "Spreadsheet handling: 'rows' or 'model'")
		maxAttempts     = fs.IntLong("max-attempts", 3, "Model calls per document before giving up")
		callTimeout     = fs.DurationLong("call-timeout", 2*time.Minute, "Timeout of a single model call")
		authUser        = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass        = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		extractPath     = fs.StringLong("extract", "", "Extract a local file, print the batch as JSON and exit")
		logLevel        = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		showVersion     = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICE_EXTRACTOR"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg := config{
		port:            *port,
		dbPath:          *dbPath,
		storagePath:     *storagePath,
		scannerType:     *scannerType,
		geminiKey:       *geminiKey,
		geminiModel:     *geminiModel,
		ollamaURL:       *ollamaURL,
		ollamaModel:     *ollamaModel,
		openAIKey:       *openAIKey,
		openAIModel:     *openAIModel,
		openAIURL:       *openAIURL,
		promptFile:      *promptFile,
		spreadsheetMode: *spreadsheetMode,
		maxAttempts:     *maxAttempts,
		callTimeout:     *callTimeout,
		authUser:        *authUser,
		authPass:        *authPass,
		extractPath:     *extractPath,
		logLevel:        *logLevel,
	}
	if err := run(cfg); err != nil {
		slog.Error("Exiting", "error", err)
		os.Exit(1)
	}
}

func run(cfg config) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.logLevel)); err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	opts := extraction.DefaultOptions()
	opts.MaxAttempts = cfg.maxAttempts
	opts.CallTimeout = cfg.callTimeout
	switch mode := extraction.SpreadsheetMode(cfg.spreadsheetMode); mode {
	case extraction.SpreadsheetRows, extraction.SpreadsheetModel:
		opts.SpreadsheetMode = mode
	default:
		return fmt.Errorf("invalid spreadsheet mode %q (valid: rows or model)", cfg.spreadsheetMode)
	}

	prompt := ""
	if cfg.promptFile != "" {
		data, err := os.ReadFile(cfg.promptFile)
		if err != nil {
			return fmt.Errorf("reading prompt file: %w", err)
		}
		prompt = string(data)
	}

	scanner, err := newScanner(cfg)
	if err != nil {
		return err
	}
	defer scanner.Close()

	orchestrator := extraction.New(scanner, opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.extractPath != "" {
		return extractFile(ctx, orchestrator, cfg.extractPath, prompt)
	}
	return serve(ctx, cfg, orchestrator, prompt)
}

func newScanner(cfg config) (scanning.Scanner, error) {
	switch cfg.scannerType {
	case "gemini":
		apiKey := cfg.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini scanner...", "model", cfg.geminiModel)
		scanner, err := scanning.NewGemini(apiKey, cfg.geminiModel)
		if err != nil {
			return nil, fmt.Errorf("initializing gemini: %w", err)
		}
		return scanner, nil
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", cfg.ollamaURL, "model", cfg.ollamaModel)
		scanner, err := scanning.NewOllama(cfg.ollamaURL, cfg.ollamaModel)
		if err != nil {
			return nil, fmt.Errorf("initializing ollama: %w", err)
		}
		return scanner, nil
	case "openai":
		apiKey := cfg.openAIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("openai API key is required: set --openai-key or OPENAI_API_KEY")
		}
		slog.Info("Initializing OpenAI scanner...", "model", cfg.openAIModel, "url", cfg.openAIURL)
		scanner, err := scanning.NewOpenAI(apiKey, cfg.openAIModel, cfg.openAIURL)
		if err != nil {
			return nil, fmt.Errorf("initializing openai: %w", err)
		}
		return scanner, nil
	default:
		return nil, fmt.Errorf("invalid scanner type %q (valid: gemini, ollama or openai)", cfg.scannerType)
	}
}

// extractFile runs one local file through the pipeline without archiving it
func extractFile(ctx context.Context, orchestrator *extraction.Orchestrator, path, prompt string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	filename := filepath.Base(path)

	result, err := orchestrator.Extract(ctx, extraction.Document{
		Data:     data,
		MIMEType: batch.DetectContentType(data, "", filename),
		Filename: filename,
	}, prompt)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(batch.Assemble(result, time.Now())); err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}
	if err := result.Err(); err != nil {
		return fmt.Errorf("no candidate validated: %w", err)
	}
	return nil
}

func serve(ctx context.Context, cfg config, extractor batch.Extractor, prompt string) error {
	slog.Info("Initializing database...")
	db, err := batch.NewBoltDB(cfg.dbPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	slog.Info("Initializing storage...")
	store, err := batch.NewLocalStorage(cfg.storagePath)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	if prompt != "" {
		extractor = promptOverride{Extractor: extractor, prompt: prompt}
	}
	service := batch.NewService(db, extractor, store)
	server := batch.NewServer(service, batch.BasicAuth{
		Username: cfg.authUser,
		Password: cfg.authPass,
	})

	if cfg.authUser != "" || cfg.authPass != "" {
		slog.Info("Basic auth enabled", "user", cfg.authUser)
	}

	addr := fmt.Sprintf(":%d", cfg.port)
	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	err = server.Start(ctx, addr)
	slog.Info("Shutting down...")
	return err
}

// promptOverride substitutes the configured prompt when a request brings none
type promptOverride struct {
	batch.Extractor
	prompt string
}

func (p promptOverride) Extract(ctx context.Context, doc extraction.Document, prompt string) (*extraction.Batch, error) {
	if prompt == "" {
		prompt = p.prompt
	}
	return p.Extractor.Extract(ctx, doc, prompt)
}
