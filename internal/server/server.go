// Package server is the HTTP request boundary: session auth, per-IP rate
// limiting, CORS, and the report job routes. It talks only to the job
// manager surface.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/filings-cli/internal/config"
	"github.com/sells-group/filings-cli/internal/model"
)

// JobAPI is the manager surface the boundary depends on.
type JobAPI interface {
	Create(kind model.JobKind, params model.JobParams) (string, error)
	Status(id string) (model.JobStatus, error)
	Artifact(id string) ([]byte, string, error)
	Cancel(id string) error
}

// Server carries the boundary state: config, sessions, and rate limiters.
type Server struct {
	cfg      config.ServerConfig
	jobs     JobAPI
	sessions *sessionStore
	loginRL  *ipLimiter
	createRL *ipLimiter
}

// New builds a Server around the job manager surface.
func New(cfg config.ServerConfig, jobs JobAPI) *Server {
	ttl := time.Duration(cfg.SessionTTLHours) * time.Hour
	return &Server{
		cfg:      cfg,
		jobs:     jobs,
		sessions: newSessionStore(ttl),
		loginRL:  newIPLimiter(cfg.RateLimitRPM, cfg.RateLimitBurst),
		createRL: newIPLimiter(cfg.RateLimitRPM, cfg.RateLimitBurst),
	}
}

// Router assembles the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.cfg.FrontendURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/login", s.handleLogin)
	r.Post("/api/logout", s.handleLogout)
	r.Get("/api/auth/check", s.handleAuthCheck)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/api/reports", s.handleCreateReport)
		r.Get("/api/reports/{id}", s.handleReportStatus)
		r.Get("/api/reports/{id}/download", s.handleReportDownload)
		r.Delete("/api/reports/{id}", s.handleReportCancel)
	})

	return r
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	zap.L().Info("starting report server", zap.String("addr", addr))

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down report server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// writeJSON writes a JSON body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError mirrors the {"detail": ...} error shape the frontend expects.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// clientIP extracts the caller address for rate-limit bucketing.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// requestLogger logs one line per request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
		)
	})
}
