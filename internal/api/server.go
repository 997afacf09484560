// Package api serves the deal-analysis HTTP endpoints consumed by the
// review UI and the browser extension.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealbrief/internal/analysis"
	"github.com/sells-group/dealbrief/internal/brief"
	"github.com/sells-group/dealbrief/internal/model"
	"github.com/sells-group/dealbrief/internal/store"
)

// Briefer assembles the analysis document for one deal.
type Briefer interface {
	Build(ctx context.Context, dealID string) (*brief.Result, error)
}

// Analyzer runs an analysis type against a deal document.
type Analyzer interface {
	Analyze(ctx context.Context, document string, typ *model.AnalysisType) (*analysis.Result, error)
	Model() string
}

// Server routes HTTP requests to the store and the analysis pipeline.
type Server struct {
	router  *chi.Mux
	store   store.Store
	briefer Briefer
	runner  Analyzer
	port    int
}

// NewServer wires the router, middleware, and routes. allowedOrigins
// feeds the CORS layer; the browser extension origin goes there.
func NewServer(st store.Store, briefer Briefer, runner Analyzer, port int, allowedOrigins []string) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		store:   st,
		briefer: briefer,
		runner:  runner,
		port:    port,
	}

	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/analysis-types", s.handleListAnalysisTypes)
		r.Get("/analysis-types/{typeID}", s.handleGetAnalysisType)
		r.Post("/analyses", s.handleCreateAnalysis)
		r.Get("/analyses/search", s.handleSearchAnalyses)
		r.Post("/feedback", s.handleSaveFeedback)
		r.Get("/feedback-stats", s.handleFeedbackStats)
	})

	return s
}

// Start serves until ctx is cancelled, then drains in-flight requests
// before returning.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("api: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("api: shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("api: listening", zap.Int("port", s.port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "api: listen")
	}
	return nil
}

// requestLogger tags every request with an ID and logs it on the way
// out with status and timing.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(ww, r)

		zap.L().Info("api: request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
