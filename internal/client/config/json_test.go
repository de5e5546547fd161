package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"server_base_url":       "https://www.example/api",
		"online_check_interval": "10s",
		"refresh_cooldown":      int64(30 * time.Second),
		"archive_bucket":        "audit",
	})

	t.Run("loads from flags", func(t *testing.T) {
		cfg := &Config{DBPath: "keep.db"}
		parseJson(cfg, []string{"-config", pathFlag})

		assert.Equal(t, "https://www.example/api", cfg.ServerBaseURL)
		assert.Equal(t, 10*time.Second, cfg.OnlineCheckInterval)
		assert.Equal(t, 30*time.Second, cfg.RefreshCooldown)
		assert.Equal(t, "keep.db", cfg.DBPath)
		assert.True(t, cfg.ArchiveEnabled())
	})

	t.Run("no flags → no changes", func(t *testing.T) {
		cfg := &Config{
			ServerBaseURL:       "defaults:1234",
			OnlineCheckInterval: 42 * time.Second,
		}
		parseJson(cfg, nil)

		assert.Equal(t, "defaults:1234", cfg.ServerBaseURL)
		assert.Equal(t, 42*time.Second, cfg.OnlineCheckInterval)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg, []string{"-config", bad}) })
	})

	t.Run("missing file → panics", func(t *testing.T) {
		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg, []string{"-c", filepath.Join(dir, "absent.json")}) })
	})
}
