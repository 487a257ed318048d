// Package server exposes report submission and the community feed over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/crimson-sun/kartavya/internal/model"
	"github.com/crimson-sun/kartavya/internal/output/inbox"
	"github.com/crimson-sun/kartavya/internal/photo"
	"github.com/crimson-sun/kartavya/internal/pipeline"
	"github.com/crimson-sun/kartavya/internal/store"
)

// Reports is the report and user side of the store.
type Reports interface {
	GetReport(ctx context.Context, id string) (model.Report, error)
	ListReports(ctx context.Context, f store.Filter) ([]model.Report, error)
	ListReportsByUser(ctx context.Context, userID string) ([]model.Report, error)
	AdminStats(ctx context.Context) (model.AdminStats, error)
	GetUser(ctx context.Context, id string) (model.User, error)
	SaveUser(ctx context.Context, u model.User) error
}

// Notifications is the per-user notification inbox.
type Notifications interface {
	List(userID string) []inbox.Notification
	Unread(userID string) int
	MarkRead(userID, id string) bool
	MarkAllRead(userID string)
}

// Option configures a Server.
type Option func(*Server)

// WithNotifications serves the given inbox under /api/users/{id}/notifications.
func WithNotifications(n Notifications) Option {
	return func(s *Server) { s.notifications = n }
}

// WithPhotoDir serves locally stored photos under /photos/.
func WithPhotoDir(dir string) Option {
	return func(s *Server) { s.photoDir = dir }
}

// WithMaxUpload sets the largest accepted photo in bytes.
func WithMaxUpload(n int64) Option {
	return func(s *Server) { s.maxUpload = n }
}

// Server routes HTTP requests to the pipeline and report store.
type Server struct {
	pipeline      *pipeline.Pipeline
	reports       Reports
	notifications Notifications
	photoDir      string
	maxUpload     int64
	router        chi.Router
}

// New builds a Server and its routes.
func New(p *pipeline.Pipeline, reports Reports, opts ...Option) *Server {
	s := &Server{
		pipeline:  p,
		reports:   reports,
		maxUpload: photo.DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/", s.handleListReports)
			r.Post("/", s.handleSubmit)
			r.Get("/{id}", s.handleGetReport)
			r.Post("/{id}/upvote", s.handleUpvote)
			r.Patch("/{id}/status", s.handleSetStatus)
		})

		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetUser)
			r.Get("/reports", s.handleUserReports)
			r.Get("/notifications", s.handleNotifications)
			r.Post("/notifications/read", s.handleMarkAllRead)
			r.Post("/notifications/{nid}/read", s.handleMarkRead)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/stats", s.handleAdminStats)
			r.Put("/users/{id}", s.handleSaveUser)
		})
	})

	if s.photoDir != "" {
		r.With(middleware.SetHeader("X-Content-Type-Options", "nosniff")).
			Handle("/photos/*", http.StripPrefix("/photos/", http.FileServer(http.Dir(s.photoDir))))
	}
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Timeouts bounds request handling and shutdown.
type Timeouts struct {
	Read     time.Duration
	Write    time.Duration
	Shutdown time.Duration
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within t.Shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string, t Timeouts) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln, t)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, t Timeouts) error {
	srv := &http.Server{
		Handler:      s,
		ReadTimeout:  t.Read,
		WriteTimeout: t.Write,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	slog.Info("http server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), t.Shutdown)
	defer cancel()
	slog.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}

// requestLogger logs each request with its status and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
