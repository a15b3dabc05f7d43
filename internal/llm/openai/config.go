package openai

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joseph-ayodele/docextract/internal/llm"
)

// Config for the OpenAI client.
type Config struct {
	APIKey      string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL     string        // default https://api.openai.com/v1
	Model       string        // default "gpt-4o"
	Temperature float32       // 0..2
	Timeout     time.Duration // http client timeout

	// FileSearch switches extraction to an indexed upload plus the file_search
	// tool. Requires Request.DocumentID; otherwise chat completions is used.
	FileSearch   bool
	PollInterval time.Duration // vector store indexing poll, default 1s
	PollTimeout  time.Duration // default 2m
}

type Client struct {
	cfg       Config
	http      *http.Client
	artifacts llm.ArtifactStore
	log       *slog.Logger
}

// NewClient builds a client. A nil artifact store keeps references in memory.
func NewClient(cfg Config, artifacts llm.ArtifactStore, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 2 * time.Minute
	}
	if artifacts == nil {
		artifacts = llm.NewMemoryArtifactStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:       cfg,
		http:      &http.Client{Timeout: cfg.Timeout},
		artifacts: artifacts,
		log:       logger,
	}
}
