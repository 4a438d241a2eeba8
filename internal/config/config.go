// Package config provides centralized configuration for the fraud transaction
// pipeline. Settings come from environment variables (optionally seeded from a
// .env file) with sensible defaults, and are validated up front so a run fails
// before it touches the network or the database.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig
	Pipeline PipelineConfig
	Dataset  DatasetConfig
	Storage  StorageConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds the load target settings.
type DatabaseConfig struct {
	// Driver selects the sink: postgres or sqlite (default: postgres)
	Driver string `env:"DB_DRIVER" default:"postgres"`

	// URL is a full PostgreSQL connection string. When set it wins over the
	// individual host/port/name/user/password fields.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	Host     string `env:"DB_HOST" default:"localhost"`
	Port     int    `env:"DB_PORT" default:"5432"`
	Name     string `env:"DB_NAME" default:"ecommerce_db"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	SSLMode  string `env:"DB_SSLMODE" default:"disable"`

	// SQLitePath is the database file used when Driver is sqlite
	SQLitePath string `env:"SQLITE_PATH" default:"fraudload.db"`

	// Table is the destination table (default: transactions)
	Table string `env:"DB_TABLE" default:"transactions"`

	// OnConflict decides what happens when a transaction_id is already
	// loaded: fail (default) or skip.
	OnConflict string `env:"DB_ON_CONFLICT" default:"fail"`

	// BatchSize is rows per batch when inserting with OnConflict=skip
	BatchSize int `env:"DB_BATCH_SIZE" default:"1000"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"4"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"0"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// ConnectTimeout bounds the initial connect and ping (default: 10s)
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" default:"10s"`
}

// PipelineConfig holds the load step settings.
type PipelineConfig struct {
	// SourcePath is the raw CSV to load
	SourcePath string `env:"PIPELINE_SOURCE" default:"original_data/Fraudulent_E-Commerce_Transaction_Data.csv"`

	// SnapshotPath is where the cleaned CSV is written, always overwritten
	SnapshotPath string `env:"PIPELINE_SNAPSHOT" default:"cleaned_Fraudulent_E-Commerce_Transaction_Data.csv"`

	// ProfileRows is how many head rows the raw/cleaned snapshots log (default: 5)
	ProfileRows int `env:"PIPELINE_PROFILE_ROWS" default:"5"`

	// Timeout bounds the whole load run (default: 30m)
	Timeout time.Duration `env:"PIPELINE_TIMEOUT" default:"30m"`
}

// DatasetConfig holds the dataset acquisition settings.
type DatasetConfig struct {
	// Handle is the remote dataset as owner/name
	Handle string `env:"DATASET_HANDLE" default:"shriyashjagtap/fraudulent-e-commerce-transactions"`

	// TargetDir receives the dataset files (default: original_data)
	TargetDir string `env:"DATASET_TARGET_DIR" default:"original_data"`

	// CacheDir is the local download cache. Empty means the user cache dir.
	CacheDir string `env:"DATASET_CACHE_DIR"`

	APIBase  string `env:"KAGGLE_API_BASE" default:"https://www.kaggle.com/api/v1"`
	Username string `env:"KAGGLE_USERNAME"`
	Key      string `env:"KAGGLE_KEY"`

	// Timeout bounds the whole fetch (default: 10m)
	Timeout time.Duration `env:"DATASET_TIMEOUT" default:"10m"`
}

// StorageConfig holds the optional S3 mirror for the cleaned snapshot.
type StorageConfig struct {
	// Bucket enables the mirror when non-empty
	Bucket string `env:"SNAPSHOT_S3_BUCKET"`
	Prefix string `env:"SNAPSHOT_S3_PREFIX"`
	Region string `env:"SNAPSHOT_S3_REGION" default:"us-east-1"`

	// Endpoint and UsePathStyle are for MinIO / LocalStack
	Endpoint     string `env:"SNAPSHOT_S3_ENDPOINT"`
	UsePathStyle bool   `env:"SNAPSHOT_S3_PATH_STYLE" default:"false"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   d.Host + ":" + strconv.Itoa(d.Port),
		Path:   "/" + d.Name,
	}
	if d.User != "" {
		if d.Password != "" {
			u.User = url.UserPassword(d.User, d.Password)
		} else {
			u.User = url.User(d.User)
		}
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	return u.String()
}

// Enabled reports whether the snapshot mirror is configured.
func (s StorageConfig) Enabled() bool {
	return s.Bucket != ""
}

// String returns a safe representation of the config for logging.
// Credentials and connection strings are masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Database: {Driver: %q, URL: [MASKED], Host: %q, Port: %d, Name: %q, Table: %q, OnConflict: %q}, "+
			"Pipeline: {SourcePath: %q, SnapshotPath: %q}, "+
			"Dataset: {Handle: %q, TargetDir: %q, Key: [MASKED]}, "+
			"Storage: {Bucket: %q, Prefix: %q}, "+
			"Logging: {Level: %q, Format: %q}}",
		c.Database.Driver, c.Database.Host, c.Database.Port, c.Database.Name, c.Database.Table, c.Database.OnConflict,
		c.Pipeline.SourcePath, c.Pipeline.SnapshotPath,
		c.Dataset.Handle, c.Dataset.TargetDir,
		c.Storage.Bucket, c.Storage.Prefix,
		c.Logging.Level, c.Logging.Format,
	)
}
