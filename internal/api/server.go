// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	handlerapi "github.com/stockshastri/shastri/internal/api/handler/api"
	"github.com/stockshastri/shastri/internal/api/job"
	"github.com/stockshastri/shastri/internal/api/middleware"
	"github.com/stockshastri/shastri/internal/api/response"
	"github.com/stockshastri/shastri/internal/metrics"
	"go.uber.org/zap"
)

// Server represents the prediction HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	handler    http.Handler
	jobs       *job.Store
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	APIKey         string
	AllowedOrigins []string
	MetricsEnabled bool
	MetricsPath    string
}

// Application is what the server needs from app.App.
type Application interface {
	handlerapi.PredictionApp
	handlerapi.PipelineApp
	Ready() bool
}

// Dependencies holds the services the routes call into.
type Dependencies struct {
	App     Application
	Metrics *metrics.Registry
	Jobs    *job.Store
}

// NewServer creates a new HTTP server.
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.App == nil {
		return nil, fmt.Errorf("server requires an application")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	s := &Server{
		logger: logger,
		mux:    mux,
		jobs:   deps.Jobs,
	}
	s.setupRoutes(cfg, deps)

	var h http.Handler = mux
	if deps.Metrics != nil {
		h = metrics.HTTPMiddleware(deps.Metrics)(h)
	}
	h = metrics.LoggingMiddleware(logger)(h)
	h = middleware.CORS(middleware.CORSConfig{AllowOrigins: cfg.AllowedOrigins})(h)
	s.handler = h

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	predict := handlerapi.NewPredictHandler(deps.App)
	pipeline := handlerapi.NewPipelineHandler(deps.App, deps.Jobs)
	auth := middleware.APIKeyAuth(cfg.APIKey)

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /api/health", s.handleHealth(deps.App))

	s.mux.HandleFunc("GET /predict/{ticker}", predict.Predict)
	s.mux.HandleFunc("GET /feature_importances", predict.Importances)
	s.mux.HandleFunc("GET /feature_importances/{ticker}", predict.Importances)

	s.mux.Handle("POST /train", auth(http.HandlerFunc(pipeline.Train)))
	s.mux.Handle("POST /update_macro", auth(http.HandlerFunc(pipeline.UpdateMacro)))
	s.mux.Handle("GET /jobs/{id}", auth(http.HandlerFunc(pipeline.Job)))

	if cfg.MetricsEnabled && deps.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server and waits for queued jobs.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	if s.jobs == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for jobs: %w", ctx.Err())
	}
}

type indexResponse struct {
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, indexResponse{
		Message: "Stock direction prediction API",
		Endpoints: map[string]string{
			"GET /predict/{ticker}":             "next-day direction for a ticker",
			"POST /train":                       "retrain the model",
			"POST /update_macro":                "rebuild macro features",
			"GET /feature_importances":          "global feature importances",
			"GET /feature_importances/{ticker}": "feature importances for a ticker",
			"GET /jobs/{id}":                    "status of an async run",
			"GET /api/health":                   "liveness and model readiness",
		},
	})
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

func (s *Server) handleHealth(a Application) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, healthResponse{Status: "ok", ModelLoaded: a.Ready()})
	}
}
