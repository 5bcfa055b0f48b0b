// Package server exposes analyses, stored profiles and derived reports over
// HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/profile-cli/internal/model"
	"github.com/sells-group/profile-cli/internal/store"
)

// SessionHeader carries the caller's session id on requests and responses.
const SessionHeader = "X-Session-ID"

// Analyzer starts and cancels background analyses.
type Analyzer interface {
	Submit(ctx context.Context, sessionID string, req model.AnalysisRequest) (*model.Analysis, error)
	Cancel(ctx context.Context, analysisID string) error
}

// History reads the analysis run history.
type History interface {
	GetAnalysis(ctx context.Context, id string) (*model.Analysis, error)
	ListAnalyses(ctx context.Context, filter store.AnalysisFilter) ([]model.Analysis, error)
}

// Profiles reads and clears the session-scoped profile slot.
type Profiles interface {
	GetProfile(ctx context.Context, sessionID string) (model.CompanyProfile, error)
	ClearProfile(ctx context.Context, sessionID string) error
}

// Options configures the HTTP handler.
type Options struct {
	AllowedOrigins []string
	// CancelTimeout bounds how long DELETE waits for a polling loop to exit.
	CancelTimeout time.Duration
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	analyzer Analyzer
	history  History
	profiles Profiles
	opts     Options
}

// New builds the HTTP handler.
func New(analyzer Analyzer, history History, profiles Profiles, opts Options) http.Handler {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.CancelTimeout <= 0 {
		opts.CancelTimeout = 10 * time.Second
	}
	s := &Server{analyzer: analyzer, history: history, profiles: profiles, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", SessionHeader},
		ExposedHeaders: []string{SessionHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Post("/analyses", s.wrap(s.handleSubmit))
		api.Get("/analyses", s.wrap(s.handleList))
		api.Get("/analyses/{id}", s.wrap(s.handleGet))
		api.Delete("/analyses/{id}", s.wrap(s.handleCancel))
		api.Get("/analyses/{id}/report", s.wrap(s.handleReport))
		api.Get("/sessions/{sid}/profile", s.wrap(s.handleGetProfile))
		api.Delete("/sessions/{sid}/profile", s.wrap(s.handleClearProfile))
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
