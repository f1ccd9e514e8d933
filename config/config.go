// Package config loads the service configuration in layers: an optional .env
// file, built-in defaults, an optional YAML file, then environment variables.
package config

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/polizas/horosafe"
)

// Config holds every tunable of the polizas service.
type Config struct {
	Port           string        `yaml:"port"`
	BackendURL     string        `yaml:"backend_url"`
	BackendTimeout time.Duration `yaml:"backend_timeout"`

	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	CookieDomain  string        `yaml:"cookie_domain"`

	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`

	// MaxUploadBytes caps a single PDF.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	// MaxBatchFiles caps the number of files in one batch request.
	MaxBatchFiles int `yaml:"max_batch_files"`
	PreviewChars  int `yaml:"preview_chars"`

	// LoginRateLimit is the number of login attempts per minute per IP.
	LoginRateLimit int `yaml:"login_rate_limit"`

	JournalRetentionDays int `yaml:"journal_retention_days"`
}

func (c *Config) defaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.BackendTimeout <= 0 {
		c.BackendTimeout = 60 * time.Second
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 24 * time.Hour
	}
	if c.DBPath == "" {
		c.DBPath = "data/polizas.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 10 << 20
	}
	if c.MaxBatchFiles <= 0 {
		c.MaxBatchFiles = 10
	}
	if c.PreviewChars <= 0 {
		c.PreviewChars = 2000
	}
	if c.LoginRateLimit == 0 {
		c.LoginRateLimit = 10
	}
	if c.JournalRetentionDays <= 0 {
		c.JournalRetentionDays = 90
	}
}

// Load builds a Config. path may be empty; POLIZAS_CONFIG is used then.
// A missing .env file is not an error; a missing explicit YAML file is.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: .env: %w", err)
	}

	cfg := &Config{}
	if path == "" {
		path = os.Getenv("POLIZAS_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.defaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.BackendURL, "BACKEND_URL")
	setString(&c.SessionSecret, "SESSION_SECRET")
	setString(&c.CookieDomain, "COOKIE_DOMAIN")
	setString(&c.DBPath, "DB_PATH")
	setString(&c.LogLevel, "LOG_LEVEL")

	if err := setDuration(&c.BackendTimeout, "BACKEND_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&c.SessionTTL, "SESSION_TTL"); err != nil {
		return err
	}
	if v := os.Getenv("MAX_UPLOAD_MB"); v != "" {
		mb, err := strconv.Atoi(v)
		if err != nil || mb <= 0 {
			return fmt.Errorf("config: MAX_UPLOAD_MB: invalid value %q", v)
		}
		c.MaxUploadBytes = int64(mb) << 20
	}
	if v := os.Getenv("LOGIN_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: LOGIN_RATE_LIMIT: invalid value %q", v)
		}
		c.LoginRateLimit = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setDuration accepts Go durations ("90s") and bare seconds ("90").
func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = d
	return nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.BackendURL == "" {
		errs = append(errs, errors.New("backend_url (BACKEND_URL) is required"))
	} else if err := horosafe.ValidateBaseURL(c.BackendURL); err != nil {
		errs = append(errs, fmt.Errorf("backend_url: %w", err))
	}
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("session_secret (SESSION_SECRET) is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// JWTKey derives the 32-byte HS256 key from the session secret.
func (c *Config) JWTKey() []byte {
	sum := sha256.Sum256([]byte(c.SessionSecret))
	return sum[:]
}

// SlogLevel maps LogLevel to a slog.Level; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
