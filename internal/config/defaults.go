package config

import "time"

const (
	defaultConfigPath          = "~/.config/pagepreview/config.toml"
	defaultDataDir             = "~/.local/share/pagepreview"
	defaultLogDir              = "~/.local/share/pagepreview/logs"
	defaultPreviewDir          = "~/.local/share/pagepreview/page-previews"
	defaultPreviewBaseURL      = "http://127.0.0.1:7488/page-previews"
	defaultSiteURL             = "http://127.0.0.1:7488"
	defaultAPIBind             = "127.0.0.1:7488"
	defaultRenderEndpoint      = "https://screenshot.handyplugins.co/take"
	defaultRenderUserAgent     = "HandyPlugins Page Previewer"
	defaultRenderTimeout       = 15
	defaultTimeBudgetSeconds   = 20
	defaultMemoryLimitMB       = 512
	defaultLockTTLSeconds      = 60
	defaultPauseDelaySeconds   = 1
	defaultHealthCheckInterval = 300
	defaultQueueProcess        = "page_preview_screenshot"
	defaultRedisAddr           = "127.0.0.1:6379"
	defaultRedisPrefix         = "pagepreview"
	defaultStorageRegion       = "auto"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 14
)

const (
	// QueueSQLite stores batches and locks in the local SQLite database.
	QueueSQLite = "sqlite"
	// QueueRedis stores batches and locks in redis so several nodes can share a queue.
	QueueRedis = "redis"
	// StorageLocal writes preview images to Paths.PreviewDir.
	StorageLocal = "local"
	// StorageS3 writes preview images to an S3-compatible bucket.
	StorageS3 = "s3"
)

// DefaultSizes lists the resolution labels requested from the render service.
var DefaultSizes = []string{"1920x1080", "800x360", "320x560"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:        defaultDataDir,
			LogDir:         defaultLogDir,
			PreviewDir:     defaultPreviewDir,
			PreviewBaseURL: defaultPreviewBaseURL,
			SiteURL:        defaultSiteURL,
			APIBind:        defaultAPIBind,
		},
		Render: Render{
			Endpoint:       defaultRenderEndpoint,
			UserAgent:      defaultRenderUserAgent,
			TimeoutSeconds: defaultRenderTimeout,
			Sizes:          append([]string(nil), DefaultSizes...),
		},
		Runner: Runner{
			TimeBudgetSeconds:   defaultTimeBudgetSeconds,
			MemoryLimitMB:       defaultMemoryLimitMB,
			LockTTLSeconds:      defaultLockTTLSeconds,
			PauseDelaySeconds:   defaultPauseDelaySeconds,
			HealthCheckInterval: defaultHealthCheckInterval,
		},
		Queue: Queue{
			Backend: QueueSQLite,
			Process: defaultQueueProcess,
		},
		Redis: Redis{
			Addr:   defaultRedisAddr,
			Prefix: defaultRedisPrefix,
		},
		Storage: Storage{
			Backend: StorageLocal,
			Region:  defaultStorageRegion,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			QueueCompleted: true,
			Errors:         true,
		},
		Sentry: Sentry{
			SampleRate: 1,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

// RenderTimeout returns the render request timeout as a duration.
func (c *Config) RenderTimeout() time.Duration {
	return time.Duration(c.Render.TimeoutSeconds) * time.Second
}

// TimeBudget returns the per-run wall-clock budget of the job runner.
func (c *Config) TimeBudget() time.Duration {
	return time.Duration(c.Runner.TimeBudgetSeconds) * time.Second
}

// LockTTL returns the lifetime of a runner lock.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Runner.LockTTLSeconds) * time.Second
}

// PauseDelay returns how long a paused runner waits before its follow-up run.
func (c *Config) PauseDelay() time.Duration {
	return time.Duration(c.Runner.PauseDelaySeconds) * time.Second
}

// HealthCheckInterval returns the period of the runner health tick. Zero disables it.
func (c *Config) HealthCheckInterval() time.Duration {
	return time.Duration(c.Runner.HealthCheckInterval) * time.Second
}

// MemoryLimitBytes returns the runner memory ceiling in bytes. Zero disables the check.
func (c *Config) MemoryLimitBytes() uint64 {
	if c.Runner.MemoryLimitMB <= 0 {
		return 0
	}
	return uint64(c.Runner.MemoryLimitMB) << 20
}
