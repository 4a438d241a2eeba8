package core

import (
	"context"
	"log/slog"
	"time"
)

// Pipeline wires the cleaning stages to their destinations.
type Pipeline struct {
	// Sink receives the cleaned table. Nil skips the database steps.
	Sink Sink

	// Mirror, if set, receives a copy of the snapshot file.
	Mirror Mirror

	SnapshotPath string
	ProfileRows  int
	Coercions    []CoercionRule // Defaults to TransactionCoercions
	Logger       *slog.Logger   // Defaults to slog.Default()
}

// RunResult summarizes a completed run.
type RunResult struct {
	Source    string
	Columns   []string
	Sanitize  SanitizeStats
	Coerce    CoerceStats
	Snapshot  string // Local snapshot path
	MirrorURI string // Empty when no mirror is configured
	Append    AppendResult
	Duration  time.Duration
}

// Run executes read, normalize, sanitize, coerce, snapshot, mirror, schema
// and append, in that order. The first hard failure stops the run.
// The snapshot and the database load are independent: a failed load does
// not remove a snapshot that was already written.
func (p *Pipeline) Run(ctx context.Context, source string) (*RunResult, error) {
	start := time.Now()
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rules := p.Coercions
	if rules == nil {
		rules = TransactionCoercions
	}

	res := &RunResult{Source: source}

	t, err := ReadSourceWithProgress(source, func(percent int) {
		logger.Debug("reading source", "path", source, "progress", percent)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("source read", "path", source, "rows", t.Len(), "columns", len(t.Columns))

	if err := NormalizeColumns(t); err != nil {
		return nil, err
	}
	res.Columns = t.Columns
	Profile(t, "raw", p.ProfileRows).Log(logger)

	res.Sanitize = Sanitize(t)
	logger.Info("rows sanitized",
		"input", res.Sanitize.Input,
		"duplicates", res.Sanitize.Duplicates,
		"incomplete", res.Sanitize.Incomplete,
		"output", res.Sanitize.Output,
	)

	res.Coerce, err = Coerce(t, rules)
	if err != nil {
		return nil, err
	}
	for _, col := range res.Coerce.Missing {
		logger.Warn("coercion column not in source, skipped", "column", col)
	}
	for col, n := range res.Coerce.Nulled {
		logger.Info("values nulled by coercion", "column", col, "count", n)
	}
	Profile(t, "cleaned", p.ProfileRows).Log(logger)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if p.SnapshotPath != "" {
		if err := WriteSnapshot(t, p.SnapshotPath); err != nil {
			return nil, err
		}
		res.Snapshot = p.SnapshotPath
		logger.Info("snapshot written", "path", p.SnapshotPath, "rows", t.Len())

		if p.Mirror != nil {
			uri, err := p.Mirror.Upload(ctx, p.SnapshotPath)
			if err != nil {
				return nil, err
			}
			res.MirrorURI = uri
			logger.Info("snapshot mirrored", "uri", uri)
		}
	}

	if p.Sink == nil {
		logger.Info("no sink configured, database load skipped")
		res.Duration = time.Since(start)
		return res, nil
	}

	if err := p.Sink.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	res.Append, err = p.Sink.Append(ctx, t)
	if err != nil {
		return nil, err
	}
	logger.Info("rows appended", "inserted", res.Append.Inserted, "skipped", res.Append.Skipped)

	res.Duration = time.Since(start)
	return res, nil
}
