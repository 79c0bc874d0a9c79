package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/jwlim/gonggo/internal/common"
	"github.com/jwlim/gonggo/internal/export"
	"github.com/jwlim/gonggo/internal/extract"
	"github.com/jwlim/gonggo/internal/layout"
	"github.com/jwlim/gonggo/internal/llm"
	"github.com/jwlim/gonggo/internal/llm/gemini"
	"github.com/jwlim/gonggo/internal/llm/openai"
	"github.com/jwlim/gonggo/internal/mapref"
	"github.com/jwlim/gonggo/internal/pipeline"
	"github.com/jwlim/gonggo/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		pdfPath  = flag.String("pdf", "", "path to the notice PDF to analyze (required)")
		docIDStr = flag.String("doc-id", "", "document UUID (optional, generated when omitted)")
		inmem    = flag.Bool("inmem", false, "use the in-memory store instead of Postgres")
		out      = flag.String("out", "", "output XLSX file path (optional, defaults next to the PDF)")
	)
	flag.Parse()

	if *pdfPath == "" {
		printError("Error: --pdf is required\n")
		os.Exit(1)
	}
	if *out == "" {
		base := strings.TrimSuffix(filepath.Base(*pdfPath), filepath.Ext(*pdfPath))
		*out = filepath.Join(filepath.Dir(*pdfPath), base+".xlsx")
	}

	docID := uuid.New()
	if *docIDStr != "" {
		parsed, err := uuid.Parse(*docIDStr)
		if err != nil {
			printError("Error: invalid --doc-id: %v\n", err)
			os.Exit(1)
		}
		docID = parsed
	}

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	store, cleanup, err := initStore(ctx, cfg, *inmem, logger)
	if err != nil {
		logger.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	provider, closeProvider, err := initProvider(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize LLM provider", "error", err)
		os.Exit(1)
	}
	defer closeProvider()
	logger.Info("LLM provider initialized", "provider", provider.Name(), "model", provider.Model())

	backend, err := layout.NewHTTPBackend(layout.HTTPBackendConfig{
		BaseURL: cfg.Detector.BaseURL,
		ModelID: cfg.Detector.ModelID,
		Timeout: cfg.Detector.Timeout,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize detector backend", "error", err)
		os.Exit(1)
	}
	if err := backend.Healthy(ctx); err != nil {
		logger.Error("detector service unavailable", "url", cfg.Detector.BaseURL, "error", err)
		os.Exit(1)
	}

	processor := pipeline.NewProcessor(
		logger,
		layout.NewDetector(backend, logger),
		extract.NewExtractor(provider, cfg.Pipeline.MaxAttempts, logger),
		mapref.NewMapper(provider, cfg.Pipeline.MaxAttempts, logger),
		store,
	)

	logger.Info("processing document", "document_id", docID, "pdf", *pdfPath)
	result, err := processor.ProcessDocument(ctx, docID, *pdfPath)
	if err != nil {
		logger.Error("failed to process document",
			"document_id", docID, "state", result.State, "error", err)
		os.Exit(1)
	}

	exportService := export.NewService(store, logger)
	xlsxBytes, err := exportService.ExportConditionsXLSX(ctx, docID)
	if err != nil {
		logger.Error("failed to export conditions", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("document processing complete",
		"document_id", docID,
		"outcome", result.Outcome,
		"blocks", len(result.Blocks),
		"conditions", len(result.Conditions),
		"links", len(result.Links),
		"output_file", *out)

	fmt.Printf("Processing complete!\n")
	fmt.Printf("- Document: %s\n", docID)
	fmt.Printf("- Outcome: %s\n", result.Outcome)
	fmt.Printf("- Blocks: %d\n", len(result.Blocks))
	fmt.Printf("- Conditions: %d\n", len(result.Conditions))
	fmt.Printf("- Reference links: %d\n", len(result.Links))
	fmt.Printf("- Output: %s\n", *out)
}

func initStore(ctx context.Context, cfg *common.Config, inmem bool, logger *slog.Logger) (*repository.Store, func(), error) {
	if inmem || cfg.Database.DSN == "" {
		logger.Info("using in-memory store")
		return repository.NewMemoryStore(), func() {}, nil
	}
	pool, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger); err != nil {
		repository.Close(pool, logger)
		return nil, nil, err
	}
	if err := repository.Migrate(ctx, pool); err != nil {
		repository.Close(pool, logger)
		return nil, nil, err
	}
	return repository.NewPostgresStore(pool), func() { repository.Close(pool, logger) }, nil
}

func initProvider(ctx context.Context, cfg *common.Config, logger *slog.Logger) (llm.Provider, func(), error) {
	switch cfg.LLM.Provider {
	case "gemini":
		client, err := gemini.NewClient(ctx, cfg.LLM.GeminiKey, cfg.LLM.GeminiModel, logger)
		if err != nil {
			return nil, nil, err
		}
		return client, func() { _ = client.Close() }, nil
	default:
		client := openai.NewClient(openai.Config{
			BaseURL:     cfg.LLM.OpenAIBaseURL,
			APIKey:      cfg.LLM.OpenAIKey,
			Model:       cfg.LLM.OpenAIModel,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
		return client, func() {}, nil
	}
}
