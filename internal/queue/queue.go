// Package queue implements the bounded FIFO between the feed consumer and the worker pool.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"eddn-ingester/internal/event"
	"eddn-ingester/internal/metrics"
)

var (
	ErrQueueFull   = errors.New("ingest queue is full")
	ErrQueueClosed = errors.New("ingest queue is closed")
)

// Policy decides what Enqueue does when the queue is at capacity.
type Policy string

const (
	PolicyBlock Policy = "block"
	PolicyDrop  Policy = "drop"
)

type State int

const (
	StateOpen State = iota
	StateClosed
	StateDrained
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "drained"
	}
}

// Task is one unit of work. Reason is set for tasks that never reach a handler.
type Task struct {
	Kind       event.Kind
	Envelope   *event.Envelope
	Reason     string
	EnqueuedAt time.Time
}

type Queue struct {
	tasks     chan Task
	done      chan struct{}
	closeOnce sync.Once
	policy    Policy
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func New(capacity int, policy Policy, m *metrics.Metrics, logger *slog.Logger) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	if policy != PolicyDrop {
		policy = PolicyBlock
	}

	logger = logger.With("component", "ingest_queue")
	logger.Debug("Initializing ingest queue", "capacity", capacity, "policy", policy)

	return &Queue{
		tasks:   make(chan Task, capacity),
		done:    make(chan struct{}),
		policy:  policy,
		metrics: m,
		logger:  logger,
	}
}

// Enqueue adds task to the tail. Under PolicyBlock it waits for space or ctx;
// under PolicyDrop a full queue logs the drop and returns ErrQueueFull.
func (q *Queue) Enqueue(ctx context.Context, task Task) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now()
	}
	kind := task.Kind.String()

	if q.policy == PolicyDrop {
		select {
		case q.tasks <- task:
			q.accepted(kind)
			return nil
		default:
			q.logger.Warn("Ingest queue full, dropping task",
				"kind", kind,
				"schema_ref", schemaRef(task),
				"capacity", cap(q.tasks),
				"reason", "queue_full",
			)
			q.metrics.TaskDropped(kind, "queue_full")
			return ErrQueueFull
		}
	}

	select {
	case q.tasks <- task:
		q.accepted(kind)
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue blocks until a task is available. It returns false once the queue is
// drained after Close, or when ctx ends.
func (q *Queue) Dequeue(ctx context.Context) (Task, bool) {
	select {
	case task := <-q.tasks:
		q.metrics.SetQueueDepth(len(q.tasks))
		return task, true
	case <-ctx.Done():
		return Task{}, false
	case <-q.done:
		select {
		case task := <-q.tasks:
			q.metrics.SetQueueDepth(len(q.tasks))
			return task, true
		default:
			return Task{}, false
		}
	}
}

// Close stops further enqueues. Tasks already queued remain available to Dequeue.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
		q.logger.Info("Ingest queue closed", "pending", len(q.tasks))
	})
}

func (q *Queue) State() State {
	select {
	case <-q.done:
		if len(q.tasks) == 0 {
			return StateDrained
		}
		return StateClosed
	default:
		return StateOpen
	}
}

func (q *Queue) Len() int { return len(q.tasks) }

func (q *Queue) Cap() int { return cap(q.tasks) }

func (q *Queue) Policy() Policy { return q.policy }

func (q *Queue) accepted(kind string) {
	q.metrics.TaskEnqueued(kind)
	q.metrics.SetQueueDepth(len(q.tasks))
}

func schemaRef(task Task) string {
	if task.Envelope == nil {
		return ""
	}
	return task.Envelope.SchemaRef
}
