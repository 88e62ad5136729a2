package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eddn-ingester/internal/audit"
	"eddn-ingester/internal/feed"
	"eddn-ingester/internal/handler"
	"eddn-ingester/internal/metrics"
	"eddn-ingester/internal/middleware"
	"eddn-ingester/internal/queue"
	"eddn-ingester/internal/schema"
	"eddn-ingester/internal/server"
	"eddn-ingester/internal/shared/config"
	"eddn-ingester/internal/shared/database"
	"eddn-ingester/internal/shared/logger"
	sharedredis "eddn-ingester/internal/shared/redis"
	"eddn-ingester/internal/store"
	"eddn-ingester/internal/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Ingester exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.Init(cfg)
	log.Info("Starting EDDN ingester",
		"environment", cfg.Environment,
		"transport", cfg.Feed.Transport,
		"feed_url", cfg.Feed.URL,
		"workers", cfg.Worker.Count,
		"queue_capacity", cfg.Queue.Capacity,
		"queue_policy", cfg.Queue.FullPolicy,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	db, err := database.Connect(ctx, cfg, m, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", "error", err)
		}
	}()

	if cfg.Database.RunMigrations {
		if err := db.RunMigrations(ctx, os.DirFS(cfg.Database.MigrationsPath)); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	registry, err := schema.Load(cfg.Schema.Dir, log)
	if err != nil {
		return fmt.Errorf("failed to load schemas: %w", err)
	}
	if registry.Len() == 0 {
		return fmt.Errorf("no schemas found in %s", cfg.Schema.Dir)
	}

	sinks := []audit.Sink{audit.NewRepository(db, log)}

	rdb, err := sharedredis.Connect(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error("Failed to close Redis", "error", err)
		}
	}()
	if rdb != nil {
		sinks = append(sinks, audit.NewStream(rdb.Client, cfg.Redis.AuditStream, cfg.Redis.StreamMaxLen, log))
	}

	auditLog := audit.NewLog(cfg.Audit.WriteTimeout, m, log, sinks...)
	st := store.New(db, log)
	q := queue.New(cfg.Queue.Capacity, queue.Policy(cfg.Queue.FullPolicy), m, log)
	pool := worker.NewPool(cfg.Worker.Count, q, registry, handler.NewService(st, log), auditLog, m, log)

	sub, err := feed.Dial(ctx, cfg.Feed, log)
	if err != nil {
		return err
	}
	consumer := feed.NewConsumer(sub, q, cfg.Audit.RecordUnrecognized, m, log)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer q.Close()
		return consumer.Run(gCtx)
	})

	g.Go(func() error {
		return pool.Run(gCtx)
	})

	g.Go(func() error {
		refreshQueueDepth(gCtx, q, m, cfg.Queue.DepthRefresh)
		return nil
	})

	if cfg.Ops.Enabled {
		limiter := middleware.NewRateLimiter(cfg.Ops.RateLimit, log)
		routes := server.NewRoutes(st, q, reg, limiter, cfg.Ops, log)
		ops := server.New(cfg.Ops.Port, routes.Setup(), log)

		g.Go(func() error {
			limiter.Cleanup(gCtx, time.Minute)
			return nil
		})
		g.Go(func() error {
			return ops.Run(gCtx)
		})
	}

	err = g.Wait()
	if err != nil {
		log.Error("Ingester stopping", "error", err)
		return err
	}

	log.Info("Ingester stopped", "pending_tasks", q.Len())
	return nil
}

// refreshQueueDepth keeps the depth gauge current while the queue is idle.
func refreshQueueDepth(ctx context.Context, q *queue.Queue, m *metrics.Metrics, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SetQueueDepth(q.Len())
		}
	}
}
