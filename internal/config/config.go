// Package config loads server configuration from flags, environment variables,
// an optional .env file and defaults, in that order of precedence.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/slatehq/slate-server/internal/logger"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Storage StorageConfig
	Server  ServerConfig
	Search  SearchConfig
	Sync    SyncConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig locates the on-disk state. Everything lives under DataPath.
type StorageConfig struct {
	DataPath string
}

// StorePath is the badger directory holding files and collections.
func (s StorageConfig) StorePath() string { return filepath.Join(s.DataPath, "db") }

// IndexPath is the directory handed to the bleve index.
func (s StorageConfig) IndexPath() string { return filepath.Join(s.DataPath, "search") }

// JournalPath is the sqlite file recording failed index operations.
func (s StorageConfig) JournalPath() string { return filepath.Join(s.DataPath, "journal.db") }

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
	// Per-owner request budget for mutating endpoints.
	RequestsPerSecond float64
	RequestBurst      int
}

// SearchConfig tunes calls into the search index.
type SearchConfig struct {
	MaxRetries     uint64        // retries after the first attempt
	InitialBackoff time.Duration // first retry delay
	Timeout        time.Duration // budget per index call including retries
}

// SyncConfig tunes how visibility deltas are pushed to the index.
type SyncConfig struct {
	Concurrent    bool    // dispatch ADD and REMOVE batches in parallel
	RatePerSecond float64 // per-owner pacing of index calls, 0 disables
	RateBurst     int
}

// LoadConfig parses args (normally os.Args[1:]) and resolves every value with
// precedence flag > environment > .env file > default.
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("slate-server", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Directory for store, index and journal")

	port := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := fs.String("cors-origins", "", "Comma separated allowed origins (default: *)")
	apiRate := fs.String("api-rate", "", "Per-owner requests per second on mutating endpoints (default: 10)")
	apiBurst := fs.String("api-burst", "", "Per-owner request burst (default: 20)")

	searchRetries := fs.String("search-max-retries", "", "Retries for a failed index call (default: 3)")
	searchBackoff := fs.String("search-initial-backoff", "", "First retry delay (default: 100ms)")
	searchTimeout := fs.String("search-timeout", "", "Budget for one index call (default: 5s)")

	syncConcurrent := fs.String("sync-concurrent", "", "Dispatch add/remove batches concurrently (default: true)")
	syncRate := fs.String("sync-rate", "", "Per-owner index calls per second, 0 disables (default: 0)")
	syncBurst := fs.String("sync-burst", "", "Per-owner index call burst (default: 4)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			DataPath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Port:              getConfigValue(*port, "SERVER_PORT", "8080"),
			CORSOrigins:       splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "*")),
			RequestsPerSecond: getFloatConfigValue(*apiRate, "API_RATE", 10),
			RequestBurst:      getIntConfigValue(*apiBurst, "API_BURST", 20),
		},
		Search: SearchConfig{
			MaxRetries: uint64(getIntConfigValue(*searchRetries, "SEARCH_MAX_RETRIES", 3)),
		},
		Sync: SyncConfig{
			Concurrent:    getBoolConfigValue(*syncConcurrent, "SYNC_CONCURRENT", true),
			RatePerSecond: getFloatConfigValue(*syncRate, "SYNC_RATE", 0),
			RateBurst:     getIntConfigValue(*syncBurst, "SYNC_BURST", 4),
		},
	}

	durations := []struct {
		dest   *time.Duration
		flag   string
		envKey string
		def    string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Search.InitialBackoff, *searchBackoff, "SEARCH_INITIAL_BACKOFF", "100ms"},
		{&cfg.Search.Timeout, *searchTimeout, "SEARCH_TIMEOUT", "5s"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dest = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	case "":
		return errors.New("ENV is required")
	default:
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	if !logger.ValidLevel(c.Logger.Level) {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Storage.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	if c.Search.Timeout <= 0 {
		return errors.New("search timeout must be positive")
	}
	if c.Search.MaxRetries > 10 {
		return fmt.Errorf("search max retries %d is above the limit of 10", c.Search.MaxRetries)
	}

	if c.Sync.RatePerSecond < 0 {
		return errors.New("sync rate cannot be negative")
	}
	if c.Sync.RatePerSecond > 0 && c.Sync.RateBurst < 1 {
		return errors.New("sync burst must be at least 1 when a sync rate is set")
	}
	if c.Server.RequestsPerSecond < 0 || c.Server.RequestBurst < 0 {
		return errors.New("api rate and burst cannot be negative")
	}

	return nil
}

// IsProduction reports whether the server runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	expanded, err := expandPath(c.Storage.DataPath, filepath.Join(homeDir, "Slate", "data"))
	if err != nil {
		return err
	}
	c.Storage.DataPath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1" and "yes" (any case) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	switch strings.ToLower(raw) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads KEY=value lines from a .env file. Variables already set in
// the environment win.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- operator supplied path
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
