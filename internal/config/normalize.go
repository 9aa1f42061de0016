package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRender()
	c.normalizeQueue()
	c.normalizeStorage()
	c.normalizeNotifications()
	c.normalizeSentry()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.PreviewDir) == "" {
		c.Paths.PreviewDir = defaultPreviewDir
	}
	if c.Paths.PreviewDir, err = expandPath(c.Paths.PreviewDir); err != nil {
		return fmt.Errorf("paths.preview_dir: %w", err)
	}
	c.Paths.PreviewBaseURL = strings.TrimRight(strings.TrimSpace(c.Paths.PreviewBaseURL), "/")
	c.Paths.PlaceholderURL = strings.TrimSpace(c.Paths.PlaceholderURL)
	if c.Paths.PlaceholderURL == "" && c.Paths.PreviewBaseURL != "" {
		c.Paths.PlaceholderURL = c.Paths.PreviewBaseURL + "/placeholder.png"
	}
	c.Paths.SiteURL = strings.TrimRight(strings.TrimSpace(c.Paths.SiteURL), "/")
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("PAGEPREVIEW_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeRender() {
	c.Render.Endpoint = strings.TrimSpace(c.Render.Endpoint)
	if value, ok := os.LookupEnv("PAGEPREVIEW_SCREENSHOT_ENDPOINT"); ok && strings.TrimSpace(value) != "" {
		c.Render.Endpoint = strings.TrimSpace(value)
	}
	if c.Render.Endpoint == "" {
		c.Render.Endpoint = defaultRenderEndpoint
	}
	c.Render.UserAgent = strings.TrimSpace(c.Render.UserAgent)
	if c.Render.UserAgent == "" {
		c.Render.UserAgent = defaultRenderUserAgent
	}
	if c.Render.TimeoutSeconds <= 0 {
		c.Render.TimeoutSeconds = defaultRenderTimeout
	}
	sizes := make([]string, 0, len(c.Render.Sizes))
	seen := make(map[string]struct{}, len(c.Render.Sizes))
	for _, size := range c.Render.Sizes {
		size = strings.ToLower(strings.TrimSpace(size))
		if size == "" {
			continue
		}
		if _, ok := seen[size]; ok {
			continue
		}
		seen[size] = struct{}{}
		sizes = append(sizes, size)
	}
	if len(sizes) == 0 {
		sizes = append(sizes, DefaultSizes...)
	}
	c.Render.Sizes = sizes
}

func (c *Config) normalizeQueue() {
	c.Queue.Backend = strings.ToLower(strings.TrimSpace(c.Queue.Backend))
	if c.Queue.Backend == "" {
		c.Queue.Backend = QueueSQLite
	}
	c.Queue.Process = strings.TrimSpace(c.Queue.Process)
	if c.Queue.Process == "" {
		c.Queue.Process = defaultQueueProcess
	}
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	if c.Redis.Addr == "" {
		c.Redis.Addr = defaultRedisAddr
	}
	if c.Redis.Password == "" {
		if value, ok := os.LookupEnv("REDIS_PASSWORD"); ok {
			c.Redis.Password = value
		}
	}
	c.Redis.Prefix = strings.Trim(strings.TrimSpace(c.Redis.Prefix), ":")
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = defaultRedisPrefix
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageLocal
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.Endpoint = strings.TrimRight(strings.TrimSpace(c.Storage.Endpoint), "/")
	c.Storage.Region = strings.TrimSpace(c.Storage.Region)
	if c.Storage.Region == "" {
		c.Storage.Region = defaultStorageRegion
	}
	if c.Storage.AccessKeyID == "" {
		if value, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok {
			c.Storage.AccessKeyID = strings.TrimSpace(value)
		}
	}
	if c.Storage.SecretAccessKey == "" {
		if value, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok {
			c.Storage.SecretAccessKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = 10
	}
}

func (c *Config) normalizeSentry() {
	c.Sentry.DSN = strings.TrimSpace(c.Sentry.DSN)
	if c.Sentry.DSN == "" {
		if value, ok := os.LookupEnv("SENTRY_DSN"); ok {
			c.Sentry.DSN = strings.TrimSpace(value)
		}
	}
	c.Sentry.Environment = strings.TrimSpace(c.Sentry.Environment)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
