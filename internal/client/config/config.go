package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the ordersync client.
//
// Durations are time.Duration values; the JSON loader accepts "90s"-style
// strings or integer nanoseconds for them.
type Config struct {
	ServerBaseURL string
	DBPath        string
	APIToken      string
	LogFile       string

	OnlineCheckInterval time.Duration
	SyncInterval        time.Duration
	InitialRetryDelay   time.Duration
	RefreshCooldown     time.Duration
	CleanupInterval     time.Duration
	AuditRetention      time.Duration
	QueueRetention      time.Duration

	ArchiveBucket    string
	ArchiveRegion    string
	ArchiveEndpoint  string
	ArchiveAccessKey string
	ArchiveSecretKey string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8080/api"
	c.DBPath = "ordersync.db"
	c.OnlineCheckInterval = 5 * time.Second
	c.SyncInterval = 5 * time.Minute
	c.InitialRetryDelay = time.Second
	c.RefreshCooldown = 60 * time.Second
	c.CleanupInterval = 24 * time.Hour
	c.AuditRetention = 90 * 24 * time.Hour
	c.QueueRetention = 30 * 24 * time.Hour
	c.ArchiveRegion = "us-east-1"
}

// ArchiveEnabled reports whether purged audit entries should be shipped to S3.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveBucket != ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	return load(os.Args[1:])
}

func load(args []string) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, args)
	parseFlags(cfg, args)
	return cfg
}
