package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Brownie44l1/catdog-api/internal/handlers"
	"github.com/Brownie44l1/catdog-api/internal/middleware"
)

const (
	EndPointIndex      = "/"
	EndPointClassify   = "/classify"
	EndPointHealth     = "/health"
	EndPointMetrics    = "/metrics"
	EndPointPredict    = "/predict"
	EndPointPredictImg = "/predict/image"
	EndPointModel      = "/api/model"
	EndPointStats      = "/api/stats"
)

const shutdownTimeout = 30 * time.Second

type Options struct {
	AllowedOrigins     string
	RateLimitPerMinute int
	// MaxUploadBytes bounds gin's in-memory multipart buffer.
	MaxUploadBytes int64
}

// NewRouter wires every endpoint onto a gin engine.
func NewRouter(h *handlers.Handler, opts Options) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())
	if opts.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = opts.MaxUploadBytes
	}

	tmpl, err := handlers.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	router.GET(EndPointHealth, h.Health)
	router.GET(EndPointMetrics, gin.WrapH(promhttp.Handler()))
	router.GET(EndPointIndex, h.Index)
	router.GET(EndPointModel, h.ModelInfo)
	router.GET(EndPointStats, h.Stats)

	limiter := middleware.NewRateLimiter(opts.RateLimitPerMinute, time.Minute)
	limited := router.Group("/")
	limited.Use(middleware.CORS(opts.AllowedOrigins), middleware.RateLimit(limiter))
	{
		limited.POST(EndPointClassify, h.Classify)
		limited.POST(EndPointPredict, h.Predict)
		limited.POST(EndPointPredictImg, h.PredictFromImage)
		limited.OPTIONS(EndPointPredict, func(*gin.Context) {})
		limited.OPTIONS(EndPointPredictImg, func(*gin.Context) {})
	}
	return router, nil
}

// Run serves handler on addr until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited")
	return nil
}
