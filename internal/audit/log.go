package audit

import (
	"context"
	"log/slog"
	"time"

	"eddn-ingester/internal/metrics"

	"github.com/oklog/ulid/v2"
)

// Log fans one record out to every sink. A failing sink is logged and
// counted; it never fails the caller.
type Log struct {
	sinks   []Sink
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewLog(timeout time.Duration, m *metrics.Metrics, logger *slog.Logger, sinks ...Sink) *Log {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Log{
		sinks:   sinks,
		timeout: timeout,
		metrics: m,
		logger:  logger.With("component", "audit_log"),
	}
}

// Write fills MessageID and Timestamp when unset and returns the record as
// written. Cancelling ctx does not abort a write in progress; each sink gets
// its own timeout instead.
func (l *Log) Write(ctx context.Context, rec Record) Record {
	if rec.MessageID == (ulid.ULID{}) {
		rec.MessageID = ulid.Make()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	base := context.WithoutCancel(ctx)
	for _, sink := range l.sinks {
		sinkCtx, cancel := context.WithTimeout(base, l.timeout)
		err := sink.Append(sinkCtx, rec)
		cancel()

		if err != nil {
			l.metrics.AuditFailed(sink.Name())
			l.logger.Error("Failed to write audit record",
				"sink", sink.Name(),
				"message_id", rec.MessageID.String(),
				"status", rec.Status,
				"event_type", rec.EventType,
				"reasons", rec.Reasons,
				"error", err,
			)
		}
	}

	l.logger.Debug("Audit record written",
		"message_id", rec.MessageID.String(),
		"status", rec.Status,
		"event_type", rec.EventType,
		"reasons", len(rec.Reasons),
	)
	return rec
}
