// Package config loads runtime configuration for the ordersync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the REST backend
//	-d string   path to the local SQLite database
//	-t string   API session token
//	-l string   log file (rotated); stderr when empty
//	-i int      online status check interval (seconds)
//	-s int      periodic sync interval (seconds, 0 disables)
//
// # JSON schema
//
// Durations accept strings like "90s" or integer nanoseconds:
//
//	{
//	  "server_base_url": "https://oficina.example/api",
//	  "db_path": "/var/lib/ordersync/ordersync.db",
//	  "online_check_interval": "5s",
//	  "sync_interval": "5m",
//	  "initial_retry_delay": "1s",
//	  "refresh_cooldown": "60s",
//	  "audit_retention": "2160h",
//	  "archive_bucket": "ordersync-audit"
//	}
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
