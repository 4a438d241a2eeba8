package sink

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/JonMunkholm/fraudload/internal/config"
	"github.com/JonMunkholm/fraudload/internal/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests against a real PostgreSQL. Set FRAUDLOAD_TEST_DATABASE_URL
// to a database the tests may create tables in.
func testPool(t *testing.T) DB {
	t.Helper()
	dsn := os.Getenv("FRAUDLOAD_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("FRAUDLOAD_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := OpenPool(ctx, config.DatabaseConfig{URL: dsn, MaxConns: 2, ConnectTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func newTestPostgres(t *testing.T, db DB, policy ConflictPolicy) *Postgres {
	t.Helper()
	opts := DefaultOptions()
	opts.Table = "tx_" + uuid.NewString()[:8]
	opts.OnConflict = policy
	opts.BatchSize = 2

	p, err := NewPostgres(db, opts, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = db.Exec(context.Background(), "DROP TABLE IF EXISTS "+pgQuote(opts.Table))
	})
	return p
}

func TestPostgres_RerunFailsOnPrimaryKey(t *testing.T) {
	db := testPool(t)
	ctx := context.Background()
	p := newTestPostgres(t, db, ConflictFail)

	require.NoError(t, p.EnsureSchema(ctx))
	res, err := p.Append(ctx, cleanedTable(idA, idB))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Inserted)

	require.NoError(t, p.EnsureSchema(ctx))
	_, err = p.Append(ctx, cleanedTable(idA, idB))
	assert.ErrorIs(t, err, core.ErrWriteFailure)
}

func TestPostgres_SkipPolicy(t *testing.T) {
	db := testPool(t)
	ctx := context.Background()
	p := newTestPostgres(t, db, ConflictSkip)

	require.NoError(t, p.EnsureSchema(ctx))
	_, err := p.Append(ctx, cleanedTable(idA, idB))
	require.NoError(t, err)

	res, err := p.Append(ctx, cleanedTable(idA, idB, idC))
	require.NoError(t, err)
	assert.Equal(t, core.AppendResult{Inserted: 1, Skipped: 2}, res)
}

func TestOpenPool_Unreachable(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:           "127.0.0.1",
		Port:           1,
		Name:           "nowhere",
		User:           "nobody",
		SSLMode:        "disable",
		MaxConns:       1,
		ConnectTimeout: 2 * time.Second,
	}

	_, err := OpenPool(context.Background(), cfg)
	assert.ErrorIs(t, err, core.ErrConnectionUnavailable)
}
