// Package config loads and validates crawl job configuration.
//
// Configuration is layered in order of increasing precedence:
//  1. Hardcoded defaults
//  2. The job YAML file
//  3. Environment variables (FSCRAWL_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as
// "30s" or "15m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the complete configuration of one crawl job.
type Config struct {
	// Name identifies the job. It keys crawl state and is the default
	// index name.
	Name string `yaml:"name"`

	FS     FSConfig     `yaml:"fs"`
	Output OutputConfig `yaml:"output"`
	Log    LogConfig    `yaml:"log"`

	// DataDir holds job-local state (the state database, the run
	// lock, log files). Defaults to ~/.fscrawl/<name>.
	DataDir string `yaml:"data_dir"`
}

// FSConfig configures the filesystem side of the crawl.
type FSConfig struct {
	// Root is the directory to crawl.
	Root string `yaml:"root"`

	// Includes and Excludes filter paths relative to Root. Excludes
	// win over includes.
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`

	// UpdateRate is the pause between full rescans in watch mode.
	UpdateRate Duration `yaml:"update_rate"`

	// IndexedChars caps extracted content per document. Zero means
	// unlimited.
	IndexedChars int `yaml:"indexed_chars"`

	// Checksum selects the content digest algorithm: md5, sha1,
	// sha256, or "none" to fall back to mtime comparison.
	Checksum string `yaml:"checksum"`

	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64 `yaml:"max_file_size"`

	FollowSymlinks bool `yaml:"follow_symlinks"`
}

// OutputConfig configures the destination index store.
type OutputConfig struct {
	// URL is the base URL of the store.
	URL string `yaml:"url"`

	// Index is the target index name. Defaults to the job name.
	Index string `yaml:"index"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// BulkSize is the batch item-count flush threshold.
	BulkSize int `yaml:"bulk_size"`

	// FlushInterval flushes a partial batch after this long.
	FlushInterval Duration `yaml:"flush_interval"`

	// MaxRetries bounds per-operation retries and consecutive
	// whole-batch connectivity failures.
	MaxRetries int `yaml:"max_retries"`

	// Timeout bounds one bulk round trip.
	Timeout Duration `yaml:"timeout"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// File appends JSON logs there when set; otherwise logs go to
	// stderr.
	File string `yaml:"file"`
}

// NewConfig returns the hardcoded defaults.
func NewConfig() *Config {
	return &Config{
		FS: FSConfig{
			Excludes:     []string{"**/~*"},
			UpdateRate:   Duration(15 * time.Minute),
			IndexedChars: 100_000,
			Checksum:     "sha256",
			MaxFileSize:  100 << 20,
		},
		Output: OutputConfig{
			URL:           "http://localhost:9200",
			BulkSize:      100,
			FlushInterval: Duration(5 * time.Second),
			MaxRetries:    3,
			Timeout:       Duration(2 * time.Minute),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the job file at path, layers it over the defaults,
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDerivedDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies FSCRAWL_* environment variables. Only
// settings that make sense to override per-invocation are exposed;
// credentials in particular should not have to live in the job file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FSCRAWL_URL"); v != "" {
		c.Output.URL = v
	}
	if v := os.Getenv("FSCRAWL_USERNAME"); v != "" {
		c.Output.Username = v
	}
	if v := os.Getenv("FSCRAWL_PASSWORD"); v != "" {
		c.Output.Password = v
	}
	if v := os.Getenv("FSCRAWL_BULK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Output.BulkSize = n
		}
	}
	if v := os.Getenv("FSCRAWL_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDerivedDefaults() {
	c.FS.Checksum = strings.ToLower(c.FS.Checksum)
	if c.Output.Index == "" {
		c.Output.Index = c.Name
	}
	if c.DataDir == "" && c.Name != "" {
		c.DataDir = filepath.Join(homeDir(), ".fscrawl", c.Name)
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.FS.Root == "" {
		return fmt.Errorf("fs.root is required")
	}
	if !filepath.IsAbs(c.FS.Root) {
		return fmt.Errorf("fs.root must be an absolute path, got %q", c.FS.Root)
	}
	if c.Output.URL == "" {
		return fmt.Errorf("output.url is required")
	}
	if c.Output.BulkSize <= 0 {
		return fmt.Errorf("output.bulk_size must be positive, got %d", c.Output.BulkSize)
	}
	if c.Output.FlushInterval < 0 {
		return fmt.Errorf("output.flush_interval must not be negative")
	}
	if c.Output.MaxRetries < 0 {
		return fmt.Errorf("output.max_retries must not be negative")
	}
	if c.FS.IndexedChars < 0 {
		return fmt.Errorf("fs.indexed_chars must not be negative")
	}
	if c.FS.MaxFileSize < 0 {
		return fmt.Errorf("fs.max_file_size must not be negative")
	}
	switch strings.ToLower(c.FS.Checksum) {
	case "", "none", "md5", "sha1", "sha256":
	default:
		return fmt.Errorf("fs.checksum must be one of md5, sha1, sha256, none; got %q", c.FS.Checksum)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	return nil
}

// StatePath returns the location of the crawl state database.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return home
}
