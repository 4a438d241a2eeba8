// Command fraudload downloads the e-commerce fraud transaction dataset and
// loads a cleaned copy of it into a relational database.
//
// Usage:
//
//	fraudload fetch [-handle owner/name] [-target dir]
//	fraudload load  [-source file.csv] [-snapshot out.csv] [-driver postgres|sqlite] [-dry-run]
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/fraudload/internal/config"
	"github.com/JonMunkholm/fraudload/internal/core"
	"github.com/JonMunkholm/fraudload/internal/dataset"
	"github.com/JonMunkholm/fraudload/internal/logging"
	"github.com/JonMunkholm/fraudload/internal/sink"
	"github.com/JonMunkholm/fraudload/internal/storage"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <fetch|load> [flags]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "run '%s <command> -h' for command flags\n", os.Args[0])
}

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	// Cancel on SIGINT/SIGTERM so in-flight HTTP and database work unwinds
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithRunID(ctx, uuid.NewString())

	switch os.Args[1] {
	case "fetch":
		err = runFetch(ctx, cfg, os.Args[2:])
	case "load":
		err = runLoad(ctx, cfg, os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		logging.FromContext(ctx).Error("run failed", "error", err)
		fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		stop()
		os.Exit(1)
	}
}

func runFetch(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	handle := fs.String("handle", cfg.Dataset.Handle, "dataset to download, as owner/name")
	target := fs.String("target", cfg.Dataset.TargetDir, "directory that receives the dataset files")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := logging.WithFields(ctx, "step", "fetch", "handle", *handle)

	ctx, cancel := context.WithTimeout(ctx, cfg.Dataset.Timeout)
	defer cancel()

	client := dataset.NewClient(cfg.Dataset.APIBase, cfg.Dataset.Username, cfg.Dataset.Key)
	fetcher, err := dataset.NewFetcher(client, cfg.Dataset.CacheDir, logger)
	if err != nil {
		return err
	}

	moved, err := fetcher.Fetch(ctx, *handle, *target)
	if err != nil {
		return err
	}
	for _, p := range moved {
		logger.Debug("dataset file", "path", p)
	}
	logger.Info("fetch complete", "target", *target, "files", len(moved))
	return nil
}

func runLoad(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	source := fs.String("source", cfg.Pipeline.SourcePath, "raw CSV to load")
	snapshot := fs.String("snapshot", cfg.Pipeline.SnapshotPath, "where to write the cleaned CSV")
	driver := fs.String("driver", cfg.Database.Driver, "database driver: postgres or sqlite")
	dryRun := fs.Bool("dry-run", false, "clean and write the snapshot without touching the database")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := logging.WithFields(ctx, "step", "load", "table", cfg.Database.Table)
	logger.Debug("configuration", "config", cfg.String())

	ctx, cancel := context.WithTimeout(ctx, cfg.Pipeline.Timeout)
	defer cancel()

	p := &core.Pipeline{
		SnapshotPath: *snapshot,
		ProfileRows:  cfg.Pipeline.ProfileRows,
		Logger:       logger,
	}

	if cfg.Storage.Enabled() {
		mirror, err := storage.NewS3Mirror(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		p.Mirror = mirror
	}

	if !*dryRun {
		s, closeSink, err := openSink(ctx, cfg.Database, *driver, logger)
		if err != nil {
			return err
		}
		defer closeSink()
		p.Sink = s
	}

	res, err := p.Run(ctx, *source)
	if err != nil {
		return err
	}

	logger.Info("load complete",
		"rows", res.Sanitize.Output,
		"inserted", res.Append.Inserted,
		"skipped", res.Append.Skipped,
		"snapshot", res.Snapshot,
		"duration", res.Duration,
	)
	return nil
}

// openSink connects to the configured database and returns the sink with a
// func that releases the connection.
func openSink(ctx context.Context, dbCfg config.DatabaseConfig, driver string, logger *slog.Logger) (core.Sink, func(), error) {
	policy, err := sink.ParseConflictPolicy(dbCfg.OnConflict)
	if err != nil {
		return nil, nil, err
	}
	opts := sink.DefaultOptions()
	opts.Table = dbCfg.Table
	opts.OnConflict = policy
	opts.BatchSize = dbCfg.BatchSize

	switch driver {
	case "postgres":
		pool, err := sink.OpenPool(ctx, dbCfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to database", "driver", driver, "name", dbCfg.Name)

		s, err := sink.NewPostgres(pool, opts, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return s, pool.Close, nil

	case "sqlite":
		db, err := sink.OpenSQLite(ctx, dbCfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to database", "driver", driver, "path", dbCfg.SQLitePath)

		s, err := sink.NewSQLite(db, opts, logger)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return s, closeDB(db, logger), nil

	default:
		return nil, nil, errors.New("unknown driver " + driver + " (want postgres or sqlite)")
	}
}

func closeDB(db *sql.DB, logger *slog.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			logger.Warn("closing database", "error", err)
		}
	}
}
