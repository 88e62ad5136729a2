package audit

import (
	"context"
	"fmt"
	"log/slog"

	"eddn-ingester/internal/shared/jsoncodec"

	"github.com/redis/go-redis/v9"
)

// Stream mirrors audit records onto a capped Redis stream for live consumers.
type Stream struct {
	client redis.Cmdable
	stream string
	maxLen int64
	logger *slog.Logger
}

func NewStream(client redis.Cmdable, stream string, maxLen int64, logger *slog.Logger) *Stream {
	logger.Debug("Initializing audit stream", "stream", stream, "max_len", maxLen)

	return &Stream{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger.With("component", "audit_stream", "stream", stream),
	}
}

func (s *Stream) Name() string { return "redis" }

func (s *Stream) Append(ctx context.Context, rec Record) error {
	values, err := streamValues(rec)
	if err != nil {
		return err
	}

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		ID:     "*",
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to add audit record to stream: %w", err)
	}
	return nil
}

func streamValues(rec Record) (map[string]interface{}, error) {
	reasons := rec.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	encoded, err := jsoncodec.Marshal(reasons)
	if err != nil {
		return nil, fmt.Errorf("failed to encode reasons: %w", err)
	}

	return map[string]interface{}{
		"message_id":         rec.MessageID.String(),
		"status":             string(rec.Status),
		"reasons":            string(encoded),
		"event_type":         rec.EventType,
		"schema_ref":         rec.SchemaRef,
		"system_of_interest": rec.SystemOfInterest,
		"body_of_interest":   rec.BodyOfInterest,
		"timestamp":          rec.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}, nil
}
