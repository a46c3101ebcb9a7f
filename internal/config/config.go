// Package config handles server configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// insecureDefaultKey seals stored passwords when ENCRYPTION_KEY is unset.
const insecureDefaultKey = "0000000000000000000000000000000000000000000000000000000000000000"

// Config holds the configuration for the query server.
type Config struct {
	MetaDBPath    string // path to the SQLite metastore (connections and history)
	ListenAddr    string // HTTP listen address (default ":8080")
	EncryptionKey string // 64-char hex string (32-byte AES key) for sealing stored passwords
	LogLevel      string // log level: debug, info, warn, error (default "info")
	Env           string // environment: "development" (default) or "production"

	// Query execution
	QueryTimeout     time.Duration // ceiling per submission (default 60s)
	ProgressInterval time.Duration // elapsed-time tick (default 100ms)
	MaxWorkers       int           // concurrent task limit, 0 = unbounded

	// History retention
	HistoryRetention     time.Duration // 0 disables pruning
	HistoryPruneSchedule string        // cron spec (default "@daily")

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// API authentication. With neither set the API is open.
	AuthJWTSecret string // HS256 shared secret
	AuthIssuerURL string // OIDC issuer; takes precedence over the shared secret
	AuthAudience  string // OIDC client id expected in the audience claim

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// AuthEnabled reports whether API requests must carry a bearer token.
func (c *Config) AuthEnabled() bool {
	return c.AuthJWTSecret != "" || c.AuthIssuerURL != ""
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		MetaDBPath:           os.Getenv("META_DB_PATH"),
		ListenAddr:           os.Getenv("LISTEN_ADDR"),
		LogLevel:             os.Getenv("LOG_LEVEL"),
		Env:                  os.Getenv("ENV"),
		HistoryPruneSchedule: os.Getenv("HISTORY_PRUNE_SCHEDULE"),
		AuthJWTSecret:        os.Getenv("AUTH_JWT_SECRET"),
		AuthIssuerURL:        os.Getenv("AUTH_ISSUER_URL"),
		AuthAudience:         os.Getenv("AUTH_AUDIENCE"),
	}

	var err error
	if cfg.QueryTimeout, err = parseDurationEnv("QUERY_TIMEOUT"); err != nil {
		return nil, err
	}
	if cfg.ProgressInterval, err = parseDurationEnv("PROGRESS_INTERVAL"); err != nil {
		return nil, err
	}
	if cfg.HistoryRetention, err = parseDurationEnv("HISTORY_RETENTION"); err != nil {
		return nil, err
	}
	if v := os.Getenv("MAX_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("MAX_WORKERS must be a non-negative integer, got %q", v)
		}
		cfg.MaxWorkers = n
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	// Defaults
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "querydesk_meta.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	var insecure bool
	if cfg.EncryptionKey, insecure = EncryptionKeyFromEnv(); insecure {
		cfg.Warnings = append(cfg.Warnings, "ENCRYPTION_KEY not set; using insecure default. Set ENCRYPTION_KEY in production!")
	}
	if !cfg.AuthEnabled() {
		cfg.Warnings = append(cfg.Warnings, "API authentication is disabled; set AUTH_JWT_SECRET or AUTH_ISSUER_URL")
	}
	if cfg.AuthIssuerURL != "" && cfg.AuthAudience == "" {
		return nil, fmt.Errorf("AUTH_AUDIENCE is required when AUTH_ISSUER_URL is set")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 60 * time.Second
	}
	if cfg.ProgressInterval == 0 {
		cfg.ProgressInterval = 100 * time.Millisecond
	}
	if cfg.HistoryPruneSchedule == "" {
		cfg.HistoryPruneSchedule = "@daily"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if cfg.EncryptionKey == insecureDefaultKey {
			return nil, fmt.Errorf("ENCRYPTION_KEY must be set in production (ENV=production)")
		}
		if !cfg.AuthEnabled() {
			return nil, fmt.Errorf("API authentication must be configured in production (set AUTH_JWT_SECRET or AUTH_ISSUER_URL)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

// EncryptionKeyFromEnv returns ENCRYPTION_KEY, or the insecure default key
// and true when the variable is unset.
func EncryptionKeyFromEnv() (key string, insecure bool) {
	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		return v, false
	}
	return insecureDefaultKey, true
}

// parseDurationEnv reads a Go duration. Bare integers are taken as seconds.
func parseDurationEnv(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("%s must not be negative, got %q", key, v)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %q", key, v)
	}
	return d, nil
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Environment wins over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
