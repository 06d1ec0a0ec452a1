// Package config loads process configuration from PEPPLUS_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"

	"pepplus/internal/blob"
	"pepplus/internal/core"
	"pepplus/internal/infra/blob/s3"
)

// Config is the full runtime configuration of the pepplus binary.
type Config struct {
	StorageDriver string `env:"PEPPLUS_STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath    string `env:"PEPPLUS_SQLITE_PATH" envDefault:"pepplus.db"`
	PostgresDSN   string `env:"PEPPLUS_POSTGRES_DSN"`

	HTTPAddr  string `env:"PEPPLUS_HTTP_ADDR" envDefault:":8080"`
	JWTSecret string `env:"PEPPLUS_JWT_SECRET"`
	LogLevel  string `env:"PEPPLUS_LOG_LEVEL" envDefault:"info"`

	OTelEndpoint string `env:"PEPPLUS_OTEL_ENDPOINT"`

	Blob BlobConfig `envPrefix:"PEPPLUS_BLOB_"`
}

// BlobConfig selects the snapshot export backend.
type BlobConfig struct {
	Driver            string `env:"DRIVER" envDefault:"fs"`
	FSRoot            string `env:"FS_ROOT" envDefault:"./blobdata"`
	S3Bucket          string `env:"S3_BUCKET"`
	S3Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3PathStyle       bool   `env:"S3_PATH_STYLE"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Storage maps the storage settings onto the core store factory.
func (c Config) Storage() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(strings.ToLower(strings.TrimSpace(c.StorageDriver))),
		SQLitePath:  c.SQLitePath,
		PostgresDSN: c.PostgresDSN,
	}
}

// BlobStore maps the blob settings onto the blob factory.
func (c Config) BlobStore() blob.Config {
	return blob.Config{
		Driver: blob.Driver(strings.ToLower(strings.TrimSpace(c.Blob.Driver))),
		FSRoot: c.Blob.FSRoot,
		S3: s3.Config{
			Bucket:          c.Blob.S3Bucket,
			Region:          c.Blob.S3Region,
			Endpoint:        c.Blob.S3Endpoint,
			AccessKeyID:     c.Blob.S3AccessKeyID,
			SecretAccessKey: c.Blob.S3SecretAccessKey,
			PathStyle:       c.Blob.S3PathStyle,
		},
	}
}

// SlogLevel converts LogLevel, defaulting to info for unknown values.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
