package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"stockmeta/internal/batch"
	"stockmeta/internal/config"
	"stockmeta/internal/encoding"
	"stockmeta/internal/logging"
	"stockmeta/internal/metrics"
	"stockmeta/internal/session"
)

const (
	shutdownTimeout   = 5 * time.Second
	janitorInterval   = time.Minute
	maxFilesPerUpload = 64
)

// Server is the local HTTP service: sessions, queue management and runs.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	sessions *session.Store
	runner   *batch.Runner
	metrics  *metrics.Metrics
	router   chi.Router

	listener net.Listener
	server   *http.Server
}

// New wires the store, runner and metrics behind a chi router.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: configuration is required")
	}
	logger = logging.NewComponentLogger(logger, "server")
	m := metrics.New()
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		sessions: session.NewStore(cfg, logger, m),
		runner:   batch.NewRunner(encoding.NewEncoder(cfg, logger), logger, m),
		metrics:  m,
	}
	s.router = s.routes()
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		s.metrics.Middleware,
		middleware.RequestID,
		s.requestContext,
		s.requestLogger,
		middleware.Recoverer,
	)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Use(s.sessionContext)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/verify", s.handleVerify)
			r.Get("/models", s.handleModels)
			r.Put("/model", s.handleSelectModel)
			r.Get("/queue", s.handleQueue)
			r.Post("/queue", s.handleAddFiles)
			r.Delete("/queue", s.handleClearQueue)
			r.Delete("/queue/{itemID}", s.handleRemoveItem)
			r.Post("/run", s.handleRun)
		})
	})
	return r
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions exposes the session store.
func (s *Server) Sessions() *session.Store {
	return s.sessions
}

// Addr returns the bound listener address once Run has started listening.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Listen binds the configured address.
func (s *Server) Listen() error {
	bind := strings.TrimSpace(s.cfg.Server.Bind)
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", bind, err)
	}
	s.listener = listener
	return nil
}

// Run serves until ctx is done, then shuts down gracefully. It calls Listen
// when the server is not yet bound.
func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go s.sessions.RunJanitor(janitorCtx, janitorInterval)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.server.SetKeepAlivesEnabled(false)
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening",
		logging.String(logging.FieldEventType, "server_started"),
		logging.String("address", s.listener.Addr().String()),
	)
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	s.logger.Info("http server stopped", logging.String(logging.FieldEventType, "server_stopped"))
	return nil
}
