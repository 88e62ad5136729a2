package feed

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"

	"eddn-ingester/internal/event"
	"eddn-ingester/internal/metrics"
	"eddn-ingester/internal/queue"
	"eddn-ingester/internal/shared/errors"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, task queue.Task) error
}

// Consumer is the single producer: it reads frames, decodes and routes them,
// and hands tasks to the queue.
type Consumer struct {
	sub                Subscriber
	queue              Enqueuer
	recordUnrecognized bool
	metrics            *metrics.Metrics
	logger             *slog.Logger
}

func NewConsumer(sub Subscriber, q Enqueuer, recordUnrecognized bool, m *metrics.Metrics, logger *slog.Logger) *Consumer {
	return &Consumer{
		sub:                sub,
		queue:              q,
		recordUnrecognized: recordUnrecognized,
		metrics:            m,
		logger:             logger.With("component", "feed_consumer"),
	}
}

// Run blocks until the subscription fails or ctx ends, then closes the
// subscription. A transport failure is returned as-is; reconnecting is the
// supervisor's job.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Feed consumer started")

	// Closing the subscription is what unblocks Receive on shutdown.
	var closeOnce sync.Once
	closeSub := func() {
		closeOnce.Do(func() {
			if err := c.sub.Close(); err != nil {
				c.logger.Warn("Failed to close subscription", "error", err)
			}
		})
	}
	stop := context.AfterFunc(ctx, closeSub)
	defer func() {
		stop()
		closeSub()
	}()

	for {
		frame, err := c.sub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Feed consumer stopped")
				return nil
			}
			c.logger.Error("Feed subscription failed", "error", err)
			return err
		}
		if len(frame) == 0 {
			continue
		}

		c.metrics.FrameReceived()

		task, ok := c.taskFor(frame)
		if !ok {
			continue
		}

		if err := c.queue.Enqueue(ctx, task); err != nil {
			switch {
			case stderrors.Is(err, queue.ErrQueueFull):
				// logged and counted by the queue
			case stderrors.Is(err, queue.ErrQueueClosed), ctx.Err() != nil:
				c.logger.Info("Feed consumer stopped", "reason", err)
				return nil
			default:
				return errors.WrapTransport("enqueue failed", err)
			}
		}
	}
}

func (c *Consumer) taskFor(frame []byte) (queue.Task, bool) {
	env, err := Decode(frame)
	if err != nil {
		c.logger.Debug("Malformed frame", "error", err, "size_bytes", len(frame))
		if env == nil {
			env = &event.Envelope{}
		}
		return queue.Task{Kind: event.KindMalformed, Envelope: env, Reason: err.Error()}, true
	}

	kind, reason := Route(env)
	if kind == event.KindUnrecognized && !c.recordUnrecognized {
		c.logger.Debug("Skipping unrecognized message", "schema_ref", env.SchemaRef, "reason", reason)
		c.metrics.TaskDropped(kind.String(), "unrecognized")
		return queue.Task{}, false
	}

	return queue.Task{Kind: kind, Envelope: env, Reason: reason}, true
}
