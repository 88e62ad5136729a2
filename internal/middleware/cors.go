package middleware

import (
	"log/slog"
	"net/http"

	"eddn-ingester/internal/shared/config"

	"github.com/rs/cors"
)

type CORSMiddleware struct {
	*cors.Cors
}

// NewCORS allows read-only cross-origin access to the ops endpoints, for
// dashboards that poll /health from a browser.
func NewCORS(cfg config.OpsConfig, logger *slog.Logger) *CORSMiddleware {
	logger = logger.With("component", "cors", "operation", "setup")

	methods := []string{http.MethodGet, http.MethodHead, http.MethodOptions}

	corsConfig := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: methods,
		AllowedHeaders: []string{"Accept", "Content-Type"},
		Debug:          cfg.CORSDebug,
	})

	logger.Info("CORS middleware configured",
		"allowed_origins", cfg.AllowedOrigins,
		"allowed_methods", methods,
		"debug_mode", cfg.CORSDebug,
	)

	return &CORSMiddleware{corsConfig}
}

func (c *CORSMiddleware) Middleware(h http.Handler) http.Handler {
	return c.Cors.Handler(h)
}
