package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/JonMunkholm/fraudload/internal/config"
	"github.com/JonMunkholm/fraudload/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of *pgxpool.Pool the Postgres sink uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OpenPool connects to PostgreSQL and verifies the connection. Connection
// problems are reported as ConnectionUnavailable.
func OpenPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	const op = "connect"

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, core.E(core.KindConnectionUnavailable, op, err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	if cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, core.E(core.KindConnectionUnavailable, op, err)
	}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, core.E(core.KindConnectionUnavailable, op, err)
	}

	return pool, nil
}

// Postgres appends tables to a PostgreSQL table.
type Postgres struct {
	db     DB
	opts   Options
	logger *slog.Logger
}

// NewPostgres returns a sink writing through db.
func NewPostgres(db DB, opts Options, logger *slog.Logger) (*Postgres, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{db: db, opts: opts, logger: logger}, nil
}

// EnsureSchema creates the table if it does not exist. An existing table is
// left as is, whatever its columns.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	q := createTableSQL(p.opts.Table, p.opts.Fields, postgresType, pgQuote)
	if _, err := p.db.Exec(ctx, q); err != nil {
		return classifyPg("ensure schema", err)
	}
	p.logger.Debug("table ensured", "table", p.opts.Table)
	return nil
}

// Append inserts every row of t in one transaction. With ConflictFail rows
// are streamed with COPY and any key collision rolls back the whole load.
// With ConflictSkip rows are sent in batches of INSERT ... ON CONFLICT DO
// NOTHING.
func (p *Postgres) Append(ctx context.Context, t *core.Table) (core.AppendResult, error) {
	const op = "append"

	pl, err := newPlan(t, p.opts.Fields)
	if err != nil {
		return core.AppendResult{}, err
	}

	rows := make([][]any, 0, t.Len())
	for i, row := range t.Rows {
		vals, err := pl.encodeRow(row, i+1)
		if err != nil {
			return core.AppendResult{}, err
		}
		rows = append(rows, vals)
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return core.AppendResult{}, classifyPg(op, err)
	}
	defer func() {
		// No-op after a successful commit
		_ = tx.Rollback(ctx)
	}()

	var res core.AppendResult
	switch p.opts.OnConflict {
	case ConflictSkip:
		res, err = p.insertBatches(ctx, tx, pl.columns, rows)
	default:
		var n int64
		n, err = tx.CopyFrom(ctx, pgx.Identifier{p.opts.Table}, pl.columns, pgx.CopyFromRows(rows))
		res = core.AppendResult{Inserted: n}
	}
	if err != nil {
		return core.AppendResult{}, classifyPg(op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return core.AppendResult{}, classifyPg(op, err)
	}

	p.logger.Debug("rows appended",
		"table", p.opts.Table,
		"inserted", res.Inserted,
		"skipped", res.Skipped,
	)
	return res, nil
}

func (p *Postgres) insertBatches(ctx context.Context, tx pgx.Tx, columns []string, rows [][]any) (core.AppendResult, error) {
	q := insertSQL(p.opts.Table, columns, core.PrimaryKey(p.opts.Fields), true, pgQuote,
		func(n int) string { return fmt.Sprintf("$%d", n) })

	var res core.AppendResult
	for start := 0; start < len(rows); start += p.opts.BatchSize {
		end := min(start+p.opts.BatchSize, len(rows))

		batch := &pgx.Batch{}
		for _, vals := range rows[start:end] {
			batch.Queue(q, vals...)
		}

		br := tx.SendBatch(ctx, batch)
		for range rows[start:end] {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return res, err
			}
			if tag.RowsAffected() == 1 {
				res.Inserted++
			} else {
				res.Skipped++
			}
		}
		if err := br.Close(); err != nil {
			return res, err
		}
	}
	return res, nil
}

func pgQuote(s string) string {
	return pgx.Identifier{s}.Sanitize()
}

// classifyPg maps a pgx error to a core.Error kind. Errors that are
// already classified, and context errors, pass through unchanged.
func classifyPg(op string, err error) error {
	if err == nil {
		return nil
	}
	if core.KindOf(err) != "" || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return core.E(sqlStateKind(pgErr.Code), op, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return core.E(core.KindConnectionUnavailable, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return core.E(core.KindConnectionUnavailable, op, err)
	}

	// pgx fails to encode when an existing column has an unexpected type.
	if strings.Contains(err.Error(), "unable to encode") {
		return core.E(core.KindSchemaConflict, op, err)
	}

	return core.E(core.KindWriteFailure, op, err)
}

// sqlStateKind classifies a SQLSTATE code by class.
func sqlStateKind(code string) core.Kind {
	switch {
	case strings.HasPrefix(code, "08"), // connection exception
		strings.HasPrefix(code, "28"), // invalid authorization
		strings.HasPrefix(code, "57P"), // operator intervention (shutdown)
		code == "3D000": // database does not exist
		return core.KindConnectionUnavailable
	case strings.HasPrefix(code, "42"): // syntax error or access rule violation
		return core.KindSchemaConflict
	default: // 22 data exception, 23 integrity constraint violation, ...
		return core.KindWriteFailure
	}
}
