package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
name: docs
fs:
  root: /data/docs
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "docs", cfg.Name)
	assert.Equal(t, "/data/docs", cfg.FS.Root)
	assert.Equal(t, "http://localhost:9200", cfg.Output.URL)
	assert.Equal(t, 100, cfg.Output.BulkSize)
	assert.Equal(t, 5*time.Second, cfg.Output.FlushInterval.Std())
	assert.Equal(t, 3, cfg.Output.MaxRetries)
	assert.Equal(t, "sha256", cfg.FS.Checksum)
	assert.Equal(t, 100_000, cfg.FS.IndexedChars)

	// Derived defaults
	assert.Equal(t, "docs", cfg.Output.Index)
	assert.Contains(t, cfg.DataDir, "docs")
	assert.Equal(t, filepath.Join(cfg.DataDir, "state.db"), cfg.StatePath())
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := writeConfig(t, `
name: archive
fs:
  root: /srv/archive
  includes: ["**/*.txt"]
  excludes: ["**/tmp/**"]
  indexed_chars: 5000
  checksum: md5
output:
  url: https://search.internal:9200
  index: archive-v2
  bulk_size: 20
  flush_interval: 1s
  max_retries: 5
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"**/*.txt"}, cfg.FS.Includes)
	assert.Equal(t, []string{"**/tmp/**"}, cfg.FS.Excludes)
	assert.Equal(t, 5000, cfg.FS.IndexedChars)
	assert.Equal(t, "md5", cfg.FS.Checksum)
	assert.Equal(t, "https://search.internal:9200", cfg.Output.URL)
	assert.Equal(t, "archive-v2", cfg.Output.Index)
	assert.Equal(t, 20, cfg.Output.BulkSize)
	assert.Equal(t, time.Second, cfg.Output.FlushInterval.Std())
	assert.Equal(t, 5, cfg.Output.MaxRetries)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FSCRAWL_URL", "http://override:9200")
	t.Setenv("FSCRAWL_USERNAME", "elastic")
	t.Setenv("FSCRAWL_PASSWORD", "secret")
	t.Setenv("FSCRAWL_BULK_SIZE", "7")

	path := writeConfig(t, `
name: docs
fs:
  root: /data/docs
output:
  url: http://from-file:9200
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://override:9200", cfg.Output.URL)
	assert.Equal(t, "elastic", cfg.Output.Username)
	assert.Equal(t, "secret", cfg.Output.Password)
	assert.Equal(t, 7, cfg.Output.BulkSize)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
name: docs
fs:
  root: /data/docs
  bogus_setting: true
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := NewConfig()
		cfg.Name = "docs"
		cfg.FS.Root = "/data/docs"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing name", func(c *Config) { c.Name = "" }},
		{"missing root", func(c *Config) { c.FS.Root = "" }},
		{"relative root", func(c *Config) { c.FS.Root = "data/docs" }},
		{"missing url", func(c *Config) { c.Output.URL = "" }},
		{"zero bulk size", func(c *Config) { c.Output.BulkSize = 0 }},
		{"negative retries", func(c *Config) { c.Output.MaxRetries = -1 }},
		{"bad checksum", func(c *Config) { c.FS.Checksum = "crc32" }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
