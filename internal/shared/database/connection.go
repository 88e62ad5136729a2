package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"eddn-ingester/internal/metrics"
	"eddn-ingester/internal/shared/config"

	"github.com/lib/pq"
	"golang.org/x/time/rate"
)

type DB struct {
	*sql.DB
	retryDelay time.Duration
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Executor is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Wrap adapts an already opened pool. retryDelay paces reconnect attempts.
func Wrap(sqlDB *sql.DB, retryDelay time.Duration, m *metrics.Metrics, logger *slog.Logger) *DB {
	return &DB{
		DB:         sqlDB,
		retryDelay: retryDelay,
		metrics:    m,
		logger:     logger.With("component", "database"),
	}
}

// Connect opens the pool and pings until the database answers or ctx ends.
// The store is assumed to become available eventually, so there is no attempt limit.
func Connect(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*DB, error) {
	logger = logger.With("component", "database", "operation", "connect")

	logger.Info("Connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"user", cfg.Database.User,
		"database", cfg.Database.Name,
		"sslmode", cfg.Database.SSLMode,
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	sqlDB, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		logger.Error("Failed to open database connection",
			"error", err, "host", cfg.Database.Host, "database", cfg.Database.Name)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// MaxOpenConns bounds concurrent store operations; callers past the limit wait for a release.
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	db := Wrap(sqlDB, cfg.Database.RetryDelay, m, logger)

	logger.Debug("Testing database connection")
	err = db.WithConn(ctx, func(exec Executor) error {
		var one int
		return exec.QueryRowContext(ctx, "SELECT 1").Scan(&one)
	})
	if err != nil {
		logger.Error("Failed to reach database", "error", err, "host", cfg.Database.Host)
		if closeErr := sqlDB.Close(); closeErr != nil {
			logger.Error("Failed to close database after connect failure", "close_error", closeErr, "error", err)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("Database connection established successfully",
		"host", cfg.Database.Host, "database", cfg.Database.Name)

	return db, nil
}

// Acquire takes a connection from the pool. It blocks while the pool is exhausted
// and retries connectivity failures every retryDelay until ctx is done.
// The caller must Close the returned connection to release it.
func (db *DB) Acquire(ctx context.Context) (*sql.Conn, error) {
	pacer := rate.NewLimiter(rate.Every(db.retryDelay), 1)
	pacer.Allow()

	for attempt := 1; ; attempt++ {
		conn, err := db.Conn(ctx)
		if err == nil {
			return conn, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if !IsConnectivityError(err) {
			return nil, err
		}

		db.metrics.StoreRetried()
		db.logger.Warn("Database unavailable, retrying",
			"attempt", attempt, "retry_delay", db.retryDelay, "error", err)

		if err := pacer.Wait(ctx); err != nil {
			return nil, err
		}
	}
}

// WithConn runs fn on an acquired connection and releases it afterwards. A
// connectivity failure inside fn is retried on a fresh connection, which is
// safe because every store statement is idempotent.
func (db *DB) WithConn(ctx context.Context, fn func(Executor) error) error {
	pacer := rate.NewLimiter(rate.Every(db.retryDelay), 1)

	for {
		conn, err := db.Acquire(ctx)
		if err != nil {
			return err
		}

		err = fn(conn)
		if closeErr := conn.Close(); closeErr != nil && !errors.Is(closeErr, sql.ErrConnDone) {
			db.logger.Warn("Failed to release connection", "error", closeErr)
		}

		if err == nil || !IsConnectivityError(err) || ctx.Err() != nil {
			return err
		}

		db.metrics.StoreRetried()
		db.logger.Warn("Connection lost mid-statement, retrying", "error", err)

		if err := pacer.Wait(ctx); err != nil {
			return err
		}
	}
}

// IsConnectivityError reports whether err means the database could not be reached,
// as opposed to the database rejecting a statement.
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 08: connection exception, 57P01-03: server shutting down or unavailable
		switch {
		case pqErr.Code.Class() == "08":
			return true
		case pqErr.Code == "57P01", pqErr.Code == "57P02", pqErr.Code == "57P03":
			return true
		}
	}

	return false
}
