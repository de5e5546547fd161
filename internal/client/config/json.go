package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/ordersync/internal/flagx"
	"github.com/dmitrijs2005/ordersync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Intervals use
// timex.Duration; values are copied into Config after parsing.
type JsonConfig struct {
	ServerBaseURL string `json:"server_base_url"`
	DBPath        string `json:"db_path"`
	APIToken      string `json:"api_token"`
	LogFile       string `json:"log_file"`

	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	SyncInterval        timex.Duration `json:"sync_interval"`
	InitialRetryDelay   timex.Duration `json:"initial_retry_delay"`
	RefreshCooldown     timex.Duration `json:"refresh_cooldown"`
	CleanupInterval     timex.Duration `json:"cleanup_interval"`
	AuditRetention      timex.Duration `json:"audit_retention"`
	QueueRetention      timex.Duration `json:"queue_retention"`

	ArchiveBucket    string `json:"archive_bucket"`
	ArchiveRegion    string `json:"archive_region"`
	ArchiveEndpoint  string `json:"archive_endpoint"`
	ArchiveAccessKey string `json:"archive_access_key"`
	ArchiveSecretKey string `json:"archive_secret_key"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c/-config. Keys missing from the file leave the current value untouched.
// Read and unmarshal errors panic.
func parseJson(cfg *Config, args []string) {
	jsonConfigFile := flagx.ConfigFileFlag(args)
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerBaseURL, jc.ServerBaseURL)
	setString(&cfg.DBPath, jc.DBPath)
	setString(&cfg.APIToken, jc.APIToken)
	setString(&cfg.LogFile, jc.LogFile)
	setString(&cfg.ArchiveBucket, jc.ArchiveBucket)
	setString(&cfg.ArchiveRegion, jc.ArchiveRegion)
	setString(&cfg.ArchiveEndpoint, jc.ArchiveEndpoint)
	setString(&cfg.ArchiveAccessKey, jc.ArchiveAccessKey)
	setString(&cfg.ArchiveSecretKey, jc.ArchiveSecretKey)

	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	setDuration(&cfg.SyncInterval, jc.SyncInterval)
	setDuration(&cfg.InitialRetryDelay, jc.InitialRetryDelay)
	setDuration(&cfg.RefreshCooldown, jc.RefreshCooldown)
	setDuration(&cfg.CleanupInterval, jc.CleanupInterval)
	setDuration(&cfg.AuditRetention, jc.AuditRetention)
	setDuration(&cfg.QueueRetention, jc.QueueRetention)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
