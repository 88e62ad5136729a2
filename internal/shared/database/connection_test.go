package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"testing"
	"testing/fstest"
	"time"

	"eddn-ingester/internal/shared/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return Wrap(sqlDB, 10*time.Millisecond, nil, logger.Discard()), mock
}

func TestIsConnectivityError(t *testing.T) {
	assert.True(t, IsConnectivityError(driver.ErrBadConn))
	assert.True(t, IsConnectivityError(&net.OpError{Op: "dial", Err: errors.New("connection refused")}))
	assert.True(t, IsConnectivityError(&pq.Error{Code: "08006"}))
	assert.True(t, IsConnectivityError(&pq.Error{Code: "57P03"}))
	assert.False(t, IsConnectivityError(&pq.Error{Code: "23505"}))
	assert.False(t, IsConnectivityError(errors.New("syntax error")))
	assert.False(t, IsConnectivityError(nil))
}

func TestWithConnRetriesConnectivityFailures(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("INSERT INTO systems").WillReturnError(&pq.Error{Code: "08006"})
	mock.ExpectExec("INSERT INTO systems").WillReturnResult(sqlmock.NewResult(0, 1))

	calls := 0
	err := db.WithConn(context.Background(), func(exec Executor) error {
		calls++
		_, err := exec.ExecContext(context.Background(), "INSERT INTO systems VALUES (1)")
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithConnReturnsStatementErrors(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("INSERT INTO stars").WillReturnError(&pq.Error{Code: "23503"})

	calls := 0
	err := db.WithConn(context.Background(), func(exec Executor) error {
		calls++
		_, err := exec.ExecContext(context.Background(), "INSERT INTO stars VALUES (1)")
		return err
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithConnStopsWhenContextEnds(t *testing.T) {
	db, mock := newMockDB(t)
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 100; i++ {
		mock.ExpectExec("SELECT").WillReturnError(&pq.Error{Code: "08006"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := db.WithConn(ctx, func(exec Executor) error {
		_, err := exec.ExecContext(ctx, "SELECT 1")
		return err
	})

	require.Error(t, err)
}

func TestRunMigrationsAppliesPendingFiles(t *testing.T) {
	db, mock := newMockDB(t)

	fsys := fstest.MapFS{
		"001_initial.sql": {Data: []byte("CREATE TABLE systems (system_id TEXT);")},
		"002_logs.sql":    {Data: []byte("CREATE TABLE logs (status TEXT);")},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery("SELECT EXISTS").WithArgs("001_initial.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectQuery("SELECT EXISTS").WithArgs("002_logs.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE logs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("002_logs.sql").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, db.RunMigrations(context.Background(), fsys))
	assert.NoError(t, mock.ExpectationsWereMet())
}
