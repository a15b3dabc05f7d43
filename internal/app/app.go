// Package app wires configuration into the running pipeline for both binaries.
package app

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/joseph-ayodele/docextract/internal/async"
	"github.com/joseph-ayodele/docextract/internal/cache"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/convert"
	"github.com/joseph-ayodele/docextract/internal/export"
	"github.com/joseph-ayodele/docextract/internal/fallback"
	"github.com/joseph-ayodele/docextract/internal/llm"
	"github.com/joseph-ayodele/docextract/internal/llm/openai"
	"github.com/joseph-ayodele/docextract/internal/ocr"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
	"github.com/joseph-ayodele/docextract/internal/presets"
	"github.com/joseph-ayodele/docextract/internal/repository"
	"github.com/joseph-ayodele/docextract/internal/server"
	"github.com/joseph-ayodele/docextract/internal/services/ingest"
	"github.com/joseph-ayodele/docextract/internal/storage"
	"github.com/joseph-ayodele/docextract/internal/tasks"
)

// NewLogger returns a JSON slog logger at the named level (debug|info|warn|error).
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// App holds every long-lived component of the pipeline.
type App struct {
	Config    *common.Config
	DB        *repository.DB
	Records   *repository.RecordStore
	Documents repository.DocumentRepository
	Tasks     *tasks.MemoryStore
	Files     *storage.LocalStore
	Presets   *presets.Set
	Artifacts llm.ArtifactStore

	Converter    convert.Converter
	Fallback     *fallback.Client
	Extractor    llm.Extractor
	Orchestrator *pipeline.Orchestrator
	Reprocessor  *pipeline.Reprocessor
	Queue        *async.ProcessorQueue
	Ingest       *ingest.Service
	Export       *export.Service

	redis  *cache.RedisArtifactStore
	logger *slog.Logger
}

// Build opens the database and constructs every component. Callers must Close.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}

	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.Records = repository.NewRecordStore(db, logger)
	a.Documents = a.Records.Documents

	if a.Presets, err = presets.Load(cfg.PresetsFile); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if a.Files, err = NewStorage(cfg.Storage, logger); err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Artifacts = a.Records
	if cfg.Redis.Addr != "" {
		rs, err := cache.NewRedisArtifactStore(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.Redis.TTL,
		}, logger)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.redis = rs
		a.Artifacts = rs
	}

	a.Converter = NewConverter(cfg.Conversion, logger)
	a.Fallback = NewFallback(cfg.Fallback, logger)
	a.Extractor = NewExtractor(cfg.LLM, a.Artifacts, logger)

	a.Tasks = tasks.NewMemoryStore(logger)
	stage := pipeline.NewConvertStage(a.Converter, a.Fallback, logger)
	a.Orchestrator = pipeline.NewOrchestrator(a.Tasks, stage, a.Extractor, a.Records, a.Files, logger)
	a.Reprocessor = pipeline.NewReprocessor(a.Records, a.Extractor, logger)
	a.Queue = async.NewProcessorQueue(a.Orchestrator, a.Reprocessor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	)

	meta, err := ingest.NewMetadataParser(a.Presets)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Ingest = ingest.NewService(a.Tasks, a.Files, a.Records, a.Queue, meta, logger)
	a.Export = export.NewService(a.Documents, logger)
	return a, nil
}

// Close drains the queue, then releases the cache and database.
func (a *App) Close(ctx context.Context) {
	if a.Queue != nil {
		a.Queue.Shutdown(ctx)
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("cache.redis.close_failed", "error", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// NewStorage opens the local bucket store.
func NewStorage(cfg common.StorageConfig, logger *slog.Logger) (*storage.LocalStore, error) {
	return storage.NewLocalStore(storage.Config{
		Root:          cfg.Root,
		Bucket:        cfg.BucketName,
		PublicBaseURL: cfg.PublicBaseURL,
		TempDir:       cfg.TempDir,
	}, logger)
}

// NewConverter returns the configured primary engine.
func NewConverter(cfg common.ConversionConfig, logger *slog.Logger) convert.Converter {
	if cfg.Engine == "local" {
		ex := ocr.NewExtractor(ocr.Config{
			TessdataDir:   cfg.TessdataDir,
			TesseractLang: cfg.TesseractLang,
		}, logger)
		return convert.NewLocalConverter(ex, logger)
	}
	return convert.NewRemoteConverter(convert.RemoteConfig{
		URL:     cfg.APIURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	}, logger)
}

// NewFallback returns the fallback OCR client.
func NewFallback(cfg common.FallbackConfig, logger *slog.Logger) *fallback.Client {
	return fallback.NewClient(fallback.Config{
		URL:     cfg.APIURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}, logger)
}

// NewExtractor returns the OpenAI field extractor.
func NewExtractor(cfg common.LLMConfig, artifacts llm.ArtifactStore, logger *slog.Logger) *openai.Client {
	return openai.NewClient(openai.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
		FileSearch:  cfg.FileSearch,
	}, artifacts, logger)
}

// Verifier returns the bearer token verifier, or nil when auth is disabled.
func Verifier(cfg common.AuthConfig) server.TokenVerifier {
	if cfg.Disabled {
		return nil
	}
	return server.StaticTokens(cfg.Tokens)
}
