package server

import (
	"log/slog"
	"net/http"

	"eddn-ingester/internal/middleware"
	serverHandlers "eddn-ingester/internal/server/handlers"
	"eddn-ingester/internal/shared/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Routes struct {
	db       serverHandlers.Pinger
	queue    serverHandlers.QueueStats
	gatherer prometheus.Gatherer
	limiter  *middleware.RateLimiter
	cfg      config.OpsConfig
	logger   *slog.Logger
}

func NewRoutes(db serverHandlers.Pinger, q serverHandlers.QueueStats, gatherer prometheus.Gatherer, limiter *middleware.RateLimiter, cfg config.OpsConfig, logger *slog.Logger) *Routes {
	return &Routes{
		db:       db,
		queue:    q,
		gatherer: gatherer,
		limiter:  limiter,
		cfg:      cfg,
		logger:   logger,
	}
}

func (r *Routes) Setup() http.Handler {
	logger := r.logger.With("component", "routes", "operation", "setup")
	logger.Debug("Setting up ops routes")

	mux := http.NewServeMux()

	mux.Handle("/health", serverHandlers.NewHealthHandler(r.db, r.queue, r.logger))
	mux.Handle("/metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	corsMiddleware := middleware.NewCORS(r.cfg, r.logger)

	logger.Info("Routes configured successfully",
		"endpoints", []string{"/health", "/metrics"},
		"rate_limit", r.cfg.RateLimit.Enabled,
	)

	return corsMiddleware.Middleware(r.limiter.Middleware(mux))
}
