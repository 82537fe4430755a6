// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Storage drivers understood by storage.Open.
const (
	DriverMinio  = "minio"
	DriverS3     = "s3"
	DriverMemory = "memory"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	JWTSecret string

	// UploadMaxMemory is the part of a multipart body kept in memory;
	// the remainder spills to temporary files.
	UploadMaxMemory int64

	Storage StorageConfig
}

// StorageConfig describes the object store (MinIO locally, S3 in production).
type StorageConfig struct {
	Driver    string
	Endpoint  string // host:port for MinIO; empty (AWS) or a custom URL for S3
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PathStyle bool
	// PublicBase replaces the endpoint origin in returned URLs,
	// e.g. "https://cdn.everstar.app".
	PublicBase string
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, reading from environment")
	}

	maxMemory, err := strconv.ParseInt(getEnv("UPLOAD_MAX_MEMORY", "33554432"), 10, 64)
	if err != nil || maxMemory <= 0 {
		return nil, fmt.Errorf("UPLOAD_MAX_MEMORY must be a positive integer")
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		AppEnv:          getEnv("APP_ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		JWTSecret:       getEnv("JWT_SECRET", "change_me_in_production"),
		UploadMaxMemory: maxMemory,

		Storage: StorageConfig{
			Driver:     strings.ToLower(getEnv("STORAGE_DRIVER", DriverMinio)),
			Endpoint:   getEnv("STORAGE_ENDPOINT", ""),
			Region:     getEnv("STORAGE_REGION", "ap-northeast-2"),
			AccessKey:  getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey:  getEnv("STORAGE_SECRET_KEY", ""),
			Bucket:     getEnv("STORAGE_BUCKET", "everstar"),
			UseSSL:     getEnv("STORAGE_USE_SSL", "false") == "true",
			PathStyle:  getEnv("STORAGE_PATH_STYLE", "false") == "true",
			PublicBase: getEnv("STORAGE_PUBLIC_BASE", ""),
		},
	}

	switch cfg.Storage.Driver {
	case DriverMinio, DriverS3, DriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.Storage.Driver)
	}
	// Local MinIO defaults; S3 falls back to the AWS default credential chain instead.
	if cfg.Storage.Driver == DriverMinio {
		if cfg.Storage.Endpoint == "" {
			cfg.Storage.Endpoint = "localhost:9000"
		}
		if cfg.Storage.AccessKey == "" && cfg.Storage.SecretKey == "" {
			cfg.Storage.AccessKey, cfg.Storage.SecretKey = "minioadmin", "minioadmin"
		}
	}
	if strings.TrimSpace(cfg.Storage.Bucket) == "" {
		return nil, fmt.Errorf("STORAGE_BUCKET is required")
	}

	return cfg, nil
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// StorageBucket returns the bucket uploads are written to.
func (c *Config) StorageBucket() string {
	return c.Storage.Bucket
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
