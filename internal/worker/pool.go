// Package worker runs the consumers that turn queued tasks into store writes
// and audit records.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"eddn-ingester/internal/audit"
	"eddn-ingester/internal/event"
	"eddn-ingester/internal/handler"
	"eddn-ingester/internal/metrics"
	"eddn-ingester/internal/queue"
	"eddn-ingester/internal/shared/errors"

	"golang.org/x/sync/errgroup"
)

type Source interface {
	Dequeue(ctx context.Context) (queue.Task, bool)
}

type Validator interface {
	Validate(env *event.Envelope) error
}

type Handler interface {
	Handle(ctx context.Context, ev event.Event) (handler.Result, error)
}

type AuditWriter interface {
	Write(ctx context.Context, rec audit.Record) audit.Record
}

type Pool struct {
	source    Source
	validator Validator
	handler   Handler
	audit     AuditWriter
	workers   int
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewPool(workers int, source Source, v Validator, h Handler, a AuditWriter, m *metrics.Metrics, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		source:    source,
		validator: v,
		handler:   h,
		audit:     a,
		workers:   workers,
		metrics:   m,
		logger:    logger.With("component", "worker_pool"),
	}
}

// Run starts the workers and blocks until all of them have stopped. Workers
// stop when ctx ends or the queue is drained after close; tasks still queued
// at cancellation are abandoned.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info("Starting workers", "count", p.workers)

	g, gCtx := errgroup.WithContext(ctx)
	for id := 1; id <= p.workers; id++ {
		id := id
		g.Go(func() error {
			p.work(gCtx, id)
			return nil
		})
	}

	err := g.Wait()
	p.logger.Info("Workers stopped")
	return err
}

func (p *Pool) work(ctx context.Context, id int) {
	logger := p.logger.With("worker", id)
	logger.Debug("Worker started")

	for {
		task, ok := p.source.Dequeue(ctx)
		if !ok {
			logger.Debug("Worker exiting")
			return
		}
		p.Process(ctx, task)
	}
}

// Process runs one task to completion and writes exactly one audit record.
func (p *Pool) Process(ctx context.Context, task queue.Task) audit.Record {
	start := time.Now()
	kind := task.Kind.String()

	res := p.outcome(ctx, task)

	rec := audit.Record{
		Status:           res.Status,
		Reasons:          res.Reasons,
		EventType:        kind,
		SystemOfInterest: res.SystemOfInterest,
		BodyOfInterest:   res.BodyOfInterest,
	}
	if task.Envelope != nil {
		rec.SchemaRef = task.Envelope.SchemaRef
		rec.Payload = task.Envelope.Raw
	}
	rec = p.audit.Write(ctx, rec)

	elapsed := time.Since(start)
	p.metrics.TaskProcessed(kind, string(res.Status), elapsed)

	logArgs := []any{
		"message_id", rec.MessageID.String(),
		"kind", kind,
		"status", res.Status,
		"reasons", res.Reasons,
		"duration_ms", elapsed.Milliseconds(),
	}
	if res.Status == audit.StatusError {
		p.logger.Warn("Task failed", logArgs...)
	} else {
		p.logger.Debug("Task processed", logArgs...)
	}

	return rec
}

func (p *Pool) outcome(ctx context.Context, task queue.Task) (res handler.Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Handler panicked", "kind", task.Kind.String(), "panic", r)
			res = handler.Result{
				Status:  audit.StatusError,
				Reasons: []string{fmt.Sprintf("handler panic: %v", r)},
			}
		}
	}()

	if !task.Kind.Dispatchable() {
		reason := task.Reason
		if reason == "" {
			reason = task.Kind.String() + " message"
		}
		return handler.Result{Status: audit.StatusIgnored, Reasons: []string{reason}}
	}

	if task.Envelope == nil {
		return failure(errors.Decodef("%s task has no envelope", task.Kind))
	}

	if err := p.validator.Validate(task.Envelope); err != nil {
		return failure(err)
	}

	ev, err := event.Decode(task.Kind, task.Envelope)
	if err != nil {
		return failure(err)
	}

	res, err = p.handler.Handle(ctx, ev)
	if err != nil {
		return failure(err)
	}
	return res
}

func failure(err error) handler.Result {
	status := audit.StatusError
	if errors.IsRejection(err) {
		status = audit.StatusIgnored
	}
	return handler.Result{Status: status, Reasons: []string{err.Error()}}
}
