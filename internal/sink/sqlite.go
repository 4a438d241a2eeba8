package sink

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/JonMunkholm/fraudload/internal/core"
	"github.com/mattn/go-sqlite3"
)

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	const op = "connect"

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, core.E(core.KindConnectionUnavailable, op, err)
	}
	// One writer; keeps ":memory:" databases on a single connection too.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, core.E(core.KindConnectionUnavailable, op, err)
	}
	return db, nil
}

// SQLite appends tables to a SQLite table. Types are mapped to SQLite
// affinities; UUIDs are stored as text.
type SQLite struct {
	db     *sql.DB
	opts   Options
	logger *slog.Logger
}

// NewSQLite returns a sink writing through db.
func NewSQLite(db *sql.DB, opts Options, logger *slog.Logger) (*SQLite, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLite{db: db, opts: opts, logger: logger}, nil
}

// EnsureSchema creates the table if it does not exist.
func (s *SQLite) EnsureSchema(ctx context.Context) error {
	q := createTableSQL(s.opts.Table, s.opts.Fields, sqliteType, quoteIdent)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return classifySQLite("ensure schema", err)
	}
	s.logger.Debug("table ensured", "table", s.opts.Table)
	return nil
}

// Append inserts every row of t in one transaction.
func (s *SQLite) Append(ctx context.Context, t *core.Table) (core.AppendResult, error) {
	const op = "append"

	pl, err := newPlan(t, s.opts.Fields)
	if err != nil {
		return core.AppendResult{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.AppendResult{}, classifySQLite(op, err)
	}
	defer tx.Rollback()

	skip := s.opts.OnConflict == ConflictSkip
	q := insertSQL(s.opts.Table, pl.columns, core.PrimaryKey(s.opts.Fields), skip, quoteIdent,
		func(int) string { return "?" })

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return core.AppendResult{}, classifySQLite(op, err)
	}
	defer stmt.Close()

	var res core.AppendResult
	for i, row := range t.Rows {
		vals, err := pl.encodeRow(row, i+1)
		if err != nil {
			return core.AppendResult{}, err
		}

		r, err := stmt.ExecContext(ctx, vals...)
		if err != nil {
			return core.AppendResult{}, classifySQLite(op, err)
		}
		if n, _ := r.RowsAffected(); n == 1 {
			res.Inserted++
		} else {
			res.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return core.AppendResult{}, classifySQLite(op, err)
	}

	s.logger.Debug("rows appended",
		"table", s.opts.Table,
		"inserted", res.Inserted,
		"skipped", res.Skipped,
	)
	return res, nil
}

// classifySQLite maps a go-sqlite3 error to a core.Error kind.
func classifySQLite(op string, err error) error {
	if err == nil {
		return nil
	}
	if core.KindOf(err) != "" || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		switch sqErr.Code {
		case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr:
			return core.E(core.KindConnectionUnavailable, op, err)
		case sqlite3.ErrError, sqlite3.ErrMismatch, sqlite3.ErrSchema:
			return core.E(core.KindSchemaConflict, op, err)
		}
	}

	if errors.Is(err, sql.ErrConnDone) {
		return core.E(core.KindConnectionUnavailable, op, err)
	}
	return core.E(core.KindWriteFailure, op, err)
}
