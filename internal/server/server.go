// Package server exposes the planbridge HTTP API.
//
// Routes:
//
//	GET    /api/health
//	GET    /api/ready
//	GET    /api/workspaces
//	GET    /api/workspaces/{id}/hierarchy?source=stories|productboard
//	GET    /api/workspaces/{id}/export?format=json|yaml&archive=true
//	GET    /api/workspaces/{id}/credentials
//	PUT    /api/workspaces/{id}/credentials
//	DELETE /api/workspaces/{id}/credentials
//	POST   /api/snapshots/validate
//	POST   /api/snapshots/import?mode=upsert|insert&dry_run=true
//	GET    /api/snapshots?workspace=&limit=
//	GET    /api/snapshots/{id}
//
// Errors are returned as {"code": ..., "message": ..., "details": [...]}
// with the status given by [errors.HTTPStatus].
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/planbridge/internal/connect"
	"github.com/matzehuels/planbridge/pkg/archive"
	"github.com/matzehuels/planbridge/pkg/session"
	"github.com/matzehuels/planbridge/pkg/store"
)

// Options configures a Server. Archive and Credentials are optional; the
// routes that need them answer UNSUPPORTED when they are nil.
type Options struct {
	Repo         store.Repository
	Archive      archive.Archive
	Credentials  session.Store
	Connector    *connect.Connector
	Logger       *log.Logger
	CORSOrigin   string
	MaxBodyBytes int64
}

// Server serves the HTTP API.
type Server struct {
	repo       store.Repository
	archive    archive.Archive
	creds      session.Store
	connector  *connect.Connector
	logger     *log.Logger
	corsOrigin string
	maxBody    int64
}

// New creates a server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 10 << 20
	}
	return &Server{
		repo:       opts.Repo,
		archive:    opts.Archive,
		creds:      opts.Credentials,
		connector:  opts.Connector,
		logger:     logger,
		corsOrigin: opts.CORSOrigin,
		maxBody:    maxBody,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)
		r.Get("/version", s.handleVersion)

		r.Route("/workspaces", func(r chi.Router) {
			r.Get("/", s.handleListWorkspaces)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/hierarchy", s.handleHierarchy)
				r.Get("/export", s.handleExport)
				r.Get("/credentials", s.handleGetCredentials)
				r.Put("/credentials", s.handleSetCredentials)
				r.Delete("/credentials", s.handleDeleteCredentials)
			})
		})

		r.Route("/snapshots", func(r chi.Router) {
			r.Get("/", s.handleListSnapshots)
			r.Get("/{id}", s.handleGetSnapshot)
			r.Post("/validate", s.handleValidate)
			r.Post("/import", s.handleImport)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, errNotFound(r))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, errMethod(r))
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.corsOrigin != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", s.corsOrigin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
