package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "Test1 OK", args: []string{"-a", "http://10.0.0.2:9090", "-i", "10", "-s", "0", "-d", "x.db", "-t", "tok", "-l", "app.log"}, expectPanic: false,
			expected: &Config{ServerBaseURL: "http://10.0.0.2:9090", DBPath: "x.db", APIToken: "tok", LogFile: "app.log", OnlineCheckInterval: 10 * time.Second}},
		{name: "Test2 incorrect check interval", args: []string{"-a", "http://10.0.0.2:9090", "-i", "abc"}, expectPanic: true, expected: &Config{}},
		{name: "Test3 unrelated flags ignored", args: []string{"-x", "1", "-i", "3"}, expectPanic: false,
			expected: &Config{OnlineCheckInterval: 3 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config, tt.args) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config, tt.args) })
			}
		})
	}
}
