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
		{
			name: "all flags",
			args: []string{
				"-a", "127.0.0.1:9090", "-w", ":8081", "-d", "db", "-k", "memory", "-s", "secret",
				"-z", "Europe/Riga", "-t", "1", "-r", "3", "-b", "https://auth.example.com", "-l", "debug",
			},
			expected: &Config{
				EndpointAddrGRPC: "127.0.0.1:9090",
				EndpointAddrHTTP: ":8081",
				DatabaseDSN:      "db",
				StorageBackend:   "memory",
				JWTSecret:        "secret",
				JWTZone:          "Europe/Riga",
				AccessTokenTTL:   1 * time.Minute,
				RefreshTokenTTL:  3 * time.Minute,
				BaseURL:          "https://auth.example.com",
				LogLevel:         "debug",
			},
		},
		{
			name: "foreign flags are ignored",
			args: []string{"-c", "cfg.json", "-test.v", "-s", "only-secret"},
			expected: &Config{
				JWTSecret: "only-secret",
			},
		},
		{
			name:        "non-numeric ttl panics",
			args:        []string{"-t", "soon"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(config, tt.args) })
				return
			}

			require.NotPanics(t, func() { parseFlags(config, tt.args) })
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}

func TestParseFlags_KeepsCurrentValues(t *testing.T) {
	var c Config
	c.LoadDefaults()

	parseFlags(&c, nil)

	assert.Equal(t, 15*time.Minute, c.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, c.RefreshTokenTTL)
	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
}
