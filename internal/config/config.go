package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/cesargomez89/flixetl/internal/constants"
)

// Config holds all application configuration
type Config struct {
	Port         string
	DBDriver     string
	DBDSN        string
	DataDir      string
	PipelinePath string
	UserAgent    string
	LogLevel     string
	LogFormat    string
	LogFile      string
	BatchSize    int
	Concurrency  int
	HTTPTimeout  time.Duration
}

// Load loads configuration from environment variables with defaults.
// A .env file in the working directory is read first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:         getEnv("PORT", constants.DefaultPort),
		DBDriver:     getEnv("DB_DRIVER", constants.DefaultDBDriver),
		DBDSN:        getEnv("DB_DSN", constants.DefaultDBDSN),
		DataDir:      getEnv("DATA_DIR", constants.DefaultDataDir),
		PipelinePath: getEnv("PIPELINE_PATH", ""),
		UserAgent:    getEnv("USER_AGENT", constants.DefaultUserAgent),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
		LogFile:      getEnv("LOG_FILE", ""),
		BatchSize:    getEnvInt("BATCH_SIZE", constants.DefaultBatchSize),
		Concurrency:  getEnvInt("CONCURRENCY", constants.DefaultConcurrency),
		HTTPTimeout:  getEnvDuration("HTTP_TIMEOUT", constants.DefaultHTTPTimeout),
	}
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	// Validate Port
	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	validDrivers := map[string]bool{
		constants.DriverSQLite:   true,
		constants.DriverPostgres: true,
	}
	if !validDrivers[c.DBDriver] {
		errors = append(errors, fmt.Sprintf("DB_DRIVER must be one of: sqlite, postgres, got: %s", c.DBDriver))
	}

	if c.DBDSN == "" {
		errors = append(errors, "DB_DSN cannot be empty")
	}

	if c.DataDir == "" {
		errors = append(errors, "DATA_DIR cannot be empty")
	}

	if c.BatchSize < 1 {
		errors = append(errors, fmt.Sprintf("BATCH_SIZE must be positive, got: %d", c.BatchSize))
	}

	if c.Concurrency < 1 {
		errors = append(errors, fmt.Sprintf("CONCURRENCY must be positive, got: %d", c.Concurrency))
	}

	if c.HTTPTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("HTTP_TIMEOUT must be positive, got: %s", c.HTTPTimeout))
	}

	// Validate LogLevel
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	// Validate LogFormat
	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getEnvInt returns the fallback when the variable is unset or not a number;
// Validate catches non-positive values.
func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
