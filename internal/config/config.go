// Package config loads server settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mmynk/tripledger/pkg/logging"
)

var (
	ErrNoAdminSecret = errors.New("ADMIN_TOKEN or ADMIN_TOKEN_HASH must be set")
	ErrNoJWTSecret   = errors.New("JWT_SECRET must be set")
)

// Config holds every setting the server reads at startup.
type Config struct {
	DBPath   string
	HTTPAddr string

	AdminToken     string
	AdminTokenHash string
	JWTSecret      string
	SessionTTL     time.Duration

	LogLevel  slog.Level
	LogFormat string

	DefaultBufferRate float64
	DefaultTripName   string

	// AuditBuffer is the number of billing events queued for the audit
	// writer before new ones are dropped.
	AuditBuffer int
}

// Load reads the configuration. Values already in the process environment
// win over values from the env files; with no files given ".env" is tried.
// Missing env files are not an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	fileEnv := make(map[string]string)
	for _, f := range envFiles {
		values, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f, err)
		}
		for k, v := range values {
			if _, ok := fileEnv[k]; !ok {
				fileEnv[k] = v
			}
		}
	}

	getEnv := func(key, fallback string) string {
		if value := os.Getenv(key); value != "" {
			return value
		}
		if value := fileEnv[key]; value != "" {
			return value
		}
		return fallback
	}

	cfg := &Config{
		DBPath:          getEnv("DB_PATH", "./data/trips.db"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		AdminToken:      getEnv("ADMIN_TOKEN", ""),
		AdminTokenHash:  getEnv("ADMIN_TOKEN_HASH", ""),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		LogLevel:        logging.ParseLevel(getEnv("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "text")),
		DefaultTripName: getEnv("DEFAULT_TRIP_NAME", "My Trip"),
	}

	var err error
	if cfg.SessionTTL, err = time.ParseDuration(getEnv("SESSION_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	if cfg.DefaultBufferRate, err = strconv.ParseFloat(getEnv("DEFAULT_BUFFER_RATE", "0.25"), 64); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_BUFFER_RATE: %w", err)
	}
	if cfg.DefaultBufferRate <= 0 {
		return nil, fmt.Errorf("invalid DEFAULT_BUFFER_RATE: must be positive, got %v", cfg.DefaultBufferRate)
	}
	if cfg.AuditBuffer, err = strconv.Atoi(getEnv("AUDIT_BUFFER", "100")); err != nil {
		return nil, fmt.Errorf("invalid AUDIT_BUFFER: %w", err)
	}

	return cfg, nil
}

// ValidateServe checks the settings only the HTTP server needs.
func (c *Config) ValidateServe() error {
	if c.AdminToken == "" && c.AdminTokenHash == "" {
		return ErrNoAdminSecret
	}
	if c.JWTSecret == "" {
		return ErrNoJWTSecret
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("invalid SESSION_TTL: must be positive, got %v", c.SessionTTL)
	}
	return nil
}
