package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"eddn-ingester/internal/queue"
	"eddn-ingester/internal/shared/errors"
	"eddn-ingester/internal/shared/response"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type QueueStats interface {
	Len() int
	Cap() int
	State() queue.State
}

type QueueStatus struct {
	Depth    int    `json:"depth"`
	Capacity int    `json:"capacity"`
	State    string `json:"state"`
}

type HealthResponse struct {
	Status    string      `json:"status"`
	Timestamp string      `json:"timestamp"`
	Database  string      `json:"database"`
	Queue     QueueStatus `json:"queue"`
}

type HealthHandler struct {
	db      Pinger
	queue   QueueStats
	timeout time.Duration
	logger  *slog.Logger
}

func NewHealthHandler(db Pinger, q QueueStats, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		queue:   q,
		timeout: 2 * time.Second,
		logger:  logger.With("handler", "health"),
	}
}

// ServeHTTP answers 200 while the store is reachable and 503 otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		response.Error(w, r, h.logger, errors.MethodNotAllowed(r.Method))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status, dbStatus, code := "healthy", "connected", http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("Database ping failed", "error", err)
		status, dbStatus, code = "degraded", "disconnected", http.StatusServiceUnavailable
	}

	resp := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Database:  dbStatus,
		Queue: QueueStatus{
			Depth:    h.queue.Len(),
			Capacity: h.queue.Cap(),
			State:    h.queue.State().String(),
		},
	}

	response.JSON(w, code, resp)
}
