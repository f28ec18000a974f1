package pool

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndReset(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pool.db")

	p, err := Open(ctx, "sqlite3", path)
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, "sqlite3", p.Driver())

	_, err = p.ExecContext(ctx, "CREATE TABLE t (id INTEGER)")
	require.NoError(t, err)
	_, err = p.ExecContext(ctx, "INSERT INTO t (id) VALUES (1)")
	require.NoError(t, err)

	p.SetMaxOpenConns(3)
	before := p.DB()
	require.NoError(t, p.Reset(ctx))
	assert.NotSame(t, before, p.DB())
	assert.Equal(t, 3, p.DB().Stats().MaxOpenConnections)

	// the old handle is closed, the data is still on disk
	assert.Error(t, before.PingContext(ctx))
	var n int
	require.NoError(t, p.QueryRowContext(ctx, "SELECT COUNT(*) FROM t").Scan(&n))
	assert.Equal(t, 1, n)

	conn, err := p.Conn(ctx)
	require.NoError(t, err)
	assert.NoError(t, conn.Close())
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "nope", "")
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestWrappedPoolCannotReset(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	p := NewStdPool(db)
	defer p.Close()

	assert.ErrorIs(t, p.Reset(context.Background()), ErrConnectionFailed)

	mock.ExpectPing().WillReturnError(assert.AnError)
	assert.ErrorIs(t, p.PingContext(context.Background()), ErrConnectionFailed)

	p.SetConnMaxLifetime(time.Minute)
	p.SetMaxIdleConns(1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
