package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory, URL, and bind address configuration.
type Paths struct {
	DataDir        string `toml:"data_dir"`
	LogDir         string `toml:"log_dir"`
	PreviewDir     string `toml:"preview_dir"`
	PreviewBaseURL string `toml:"preview_base_url" validate:"required,url"`
	PlaceholderURL string `toml:"placeholder_url"`
	SiteURL        string `toml:"site_url" validate:"required,url"`
	APIBind        string `toml:"api_bind"`
	APIToken       string `toml:"api_token"`
}

// Render contains configuration for the remote screenshot service.
type Render struct {
	Endpoint       string   `toml:"endpoint" validate:"required,url"`
	UserAgent      string   `toml:"user_agent"`
	TimeoutSeconds int      `toml:"timeout_seconds" validate:"gt=0"`
	Sizes          []string `toml:"sizes" validate:"min=1,dive,required"`
}

// Runner contains configuration for the background job runner.
type Runner struct {
	TimeBudgetSeconds   int `toml:"time_budget_seconds" validate:"gt=0"`
	MemoryLimitMB       int `toml:"memory_limit_mb" validate:"gte=0"`
	LockTTLSeconds      int `toml:"lock_ttl_seconds" validate:"gt=0"`
	PauseDelaySeconds   int `toml:"pause_delay_seconds" validate:"gte=0"`
	HealthCheckInterval int `toml:"health_check_interval" validate:"gte=0"`
}

// Queue selects the job store backend.
type Queue struct {
	Backend string `toml:"backend" validate:"oneof=sqlite redis"`
	Process string `toml:"process" validate:"required"`
}

// Redis contains connection settings for the redis queue backend.
type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// Storage selects where preview images are written.
type Storage struct {
	Backend         string `toml:"backend" validate:"oneof=local s3"`
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	QueueCompleted bool   `toml:"queue_completed"`
	Errors         bool   `toml:"errors"`
}

// Sentry contains configuration for error reporting.
type Sentry struct {
	DSN         string  `toml:"dsn"`
	Environment string  `toml:"environment"`
	SampleRate  float64 `toml:"sample_rate" validate:"gte=0,lte=1"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" validate:"oneof=console json"`
	Level  string `toml:"level"`

	// RetentionDays prunes daemon run logs older than this. Zero keeps them.
	RetentionDays int `toml:"retention_days" validate:"gte=0"`
}

// Config encapsulates all configuration values for pagepreview.
//
// Configuration sections by subsystem:
//   - Paths: data/log/preview directories, public URLs, API bind address
//   - Render: screenshot service endpoint and request defaults
//   - Runner: background runner time/memory throttles and lock TTL
//   - Queue: job store backend selection and process key
//   - Redis: connection for the redis job store
//   - Storage: local disk or S3-compatible preview storage
//   - Notifications: ntfy push notification settings
//   - Sentry: per-item failure reporting
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Render        Render        `toml:"render"`
	Runner        Runner        `toml:"runner"`
	Queue         Queue         `toml:"queue"`
	Redis         Redis         `toml:"redis"`
	Storage       Storage       `toml:"storage"`
	Notifications Notifications `toml:"notifications"`
	Sentry        Sentry        `toml:"sentry"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("pagepreview.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// The preview directory is only created for the local storage backend.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	if c.Storage.Backend == StorageLocal {
		dirs = append(dirs, c.Paths.PreviewDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "pagepreview.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "pagepreviewd.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
