package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/export"
	"github.com/joseph-ayodele/docextract/internal/services/ingest"
)

// Submitter is the submission side of the ingest service.
type Submitter interface {
	Submit(ctx context.Context, req ingest.SubmitRequest) (ingest.SubmitResult, error)
	Reprocess(ctx context.Context, req ingest.ReprocessRequest) error
}

// TaskReader reads and removes task handles.
type TaskReader interface {
	Get(id string) (entity.Task, bool)
	Delete(id string)
}

// Exporter renders document exports.
type Exporter interface {
	ExportDocumentsXLSX(ctx context.Context, f export.Filter) ([]byte, error)
}

// Config holds the HTTP surface settings.
type Config struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	MaxUploadBytes int64
	// FilesPrefix mounts Files under this path when both are set.
	FilesPrefix string
}

// Server wires the HTTP handlers to the ingest service and task store.
type Server struct {
	cfg      Config
	ingest   Submitter
	tasks    TaskReader
	exporter Exporter
	files    http.Handler
	auth     TokenVerifier
	logger   *slog.Logger
}

// Option configures optional Server collaborators.
type Option func(*Server)

// WithExporter enables GET /documents/export.
func WithExporter(e Exporter) Option { return func(s *Server) { s.exporter = e } }

// WithFiles serves stored uploads under Config.FilesPrefix.
func WithFiles(h http.Handler) Option { return func(s *Server) { s.files = h } }

// WithAuth requires bearer tokens resolved by v. Without it every request runs as LocalUser.
func WithAuth(v TokenVerifier) Option { return func(s *Server) { s.auth = v } }

func New(cfg Config, svc Submitter, tasks TaskReader, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	s := &Server{cfg: cfg, ingest: svc, tasks: tasks, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(CORS(s.cfg.AllowedOrigins))
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}

	r.Get("/health", s.handleHealth)
	if s.files != nil && s.cfg.FilesPrefix != "" {
		r.Mount(s.cfg.FilesPrefix, s.files)
	}

	r.Group(func(r chi.Router) {
		r.Use(Auth(s.auth, s.logger))
		r.Post("/process", s.handleProcess)
		r.Post("/reprocess", s.handleReprocess)
		r.Get("/task/{task_id}", s.handleGetTask)
		r.Delete("/task/{task_id}", s.handleDeleteTask)
		if s.exporter != nil {
			r.Get("/documents/export", s.handleExport)
		}
	})
	return r
}
