package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
target:
  host: api.example.com
  port: 443
  tls: true
auth:
  api_key: app-secret
load:
  threads: 16
  ramp_up: 10
  duration: 300
output:
  formats: [csv, json, html]
  model_name: qwen-72b
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "api.example.com", cfg.Target.Host)
	assert.Equal(t, 443, cfg.Target.Port)
	assert.True(t, cfg.Target.TLS)
	assert.Equal(t, "app-secret", cfg.Auth.APIKey)
	assert.Equal(t, 16, cfg.Load.Threads)
	assert.Equal(t, 300, cfg.Load.DurationSec)
	assert.Equal(t, []string{"csv", "json", "html"}, cfg.Output.Formats)

	// Untouched fields keep their defaults.
	assert.Equal(t, "/v1/chat-messages", cfg.Target.Path)
	assert.Equal(t, "你是谁", cfg.Request.Query)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := writeConfig(t, "target: [not a mapping")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"empty host", func(c *Config) { c.Target.Host = "" }, false},
		{"port out of range", func(c *Config) { c.Target.Port = 70000 }, false},
		{"zero threads", func(c *Config) { c.Load.Threads = 0 }, false},
		{"negative ramp-up", func(c *Config) { c.Load.RampUpSec = -1 }, false},
		{"negative duration", func(c *Config) { c.Load.DurationSec = -5 }, false},
		{"bad timeout", func(c *Config) { c.Request.Timeout = "soon" }, false},
		{"custom timeout", func(c *Config) { c.Request.Timeout = "90s" }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestRequestTimeoutParsing(t *testing.T) {
	cfg := Default()
	cfg.Request.Timeout = "2m30s"
	assert.Equal(t, 150*time.Second, cfg.RequestTimeout())
}
