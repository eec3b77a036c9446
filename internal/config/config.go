// Package config loads vectordb's configuration in three ascending-precedence
// tiers: hardcoded defaults, an optional vectordb.yaml file, and VECTORDB_*
// environment variables. The merge and validation shape mirrors the
// teacher's layered config loader.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fsnotify/fsnotify"
)

// Config is the complete vectordb runtime configuration.
type Config struct {
	Backend     string            `yaml:"backend" json:"backend"`
	JSONPath    string            `yaml:"json_path" json:"json_path"`
	PicklePath  string            `yaml:"pickle_path" json:"pickle_path"`
	SQLitePath  string            `yaml:"sqlite_path" json:"sqlite_path"`
	Replication ReplicationConfig `yaml:"replication" json:"replication"`
	HTTP        HTTPConfig        `yaml:"http" json:"http"`
	Cache       CacheConfig       `yaml:"cache" json:"cache"`
	Search      SearchConfig      `yaml:"search" json:"search"`
	LogLevel    string            `yaml:"log_level" json:"log_level"`
}

// ReplicationConfig names the follower backends a leader fans writes out to.
type ReplicationConfig struct {
	Followers []FollowerConfig `yaml:"followers" json:"followers"`
}

// FollowerConfig is one follower's backend selection.
type FollowerConfig struct {
	Backend    string `yaml:"backend" json:"backend"`
	JSONPath   string `yaml:"json_path" json:"json_path"`
	PicklePath string `yaml:"pickle_path" json:"pickle_path"`
	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path"`
}

// HTTPConfig configures the thin HTTP boundary.
type HTTPConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// CacheConfig configures the library service's read-through cache.
type CacheConfig struct {
	Size int `yaml:"size" json:"size"`
}

// SearchConfig configures the library service's search behaviour.
type SearchConfig struct {
	DedupEnabled bool `yaml:"dedup" json:"dedup"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Backend:    "json",
		JSONPath:   "data.json",
		PicklePath: "data.pkl",
		SQLitePath: "data.db",
		HTTP:       HTTPConfig{Addr: ":8080"},
		Cache:      CacheConfig{Size: 128},
		Search:     SearchConfig{DedupEnabled: true},
		LogLevel:   "info",
	}
}

// Load builds a Config from defaults, then path (if it exists), then
// VECTORDB_* environment variables, in that ascending order of precedence.
func Load(path string) (*Config, error) {
	cfg := New()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.loadYAML(path); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Seed Search from c so a file without search.dedup keeps the current value.
	parsed := Config{Search: c.Search}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return err
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays non-zero fields of other onto c. Search.DedupEnabled is
// always copied, since false is a meaningful value for it.
func (c *Config) mergeWith(other *Config) {
	if other.Backend != "" {
		c.Backend = other.Backend
	}
	if other.JSONPath != "" {
		c.JSONPath = other.JSONPath
	}
	if other.PicklePath != "" {
		c.PicklePath = other.PicklePath
	}
	if other.SQLitePath != "" {
		c.SQLitePath = other.SQLitePath
	}
	if len(other.Replication.Followers) > 0 {
		c.Replication.Followers = other.Replication.Followers
	}
	if other.HTTP.Addr != "" {
		c.HTTP.Addr = other.HTTP.Addr
	}
	if other.Cache.Size != 0 {
		c.Cache.Size = other.Cache.Size
	}
	c.Search.DedupEnabled = other.Search.DedupEnabled
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VECTORDB_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("VECTORDB_JSON_PATH"); v != "" {
		c.JSONPath = v
	}
	if v := os.Getenv("VECTORDB_PICKLE_PATH"); v != "" {
		c.PicklePath = v
	}
	if v := os.Getenv("VECTORDB_SQLITE_PATH"); v != "" {
		c.SQLitePath = v
	}
	if v := os.Getenv("VECTORDB_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("VECTORDB_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Cache.Size = n
		}
	}
	if v := os.Getenv("VECTORDB_SEARCH_DEDUP"); v != "" {
		c.Search.DedupEnabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("VECTORDB_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks that the configuration names a recognized backend,
// listen address, and log level.
func (c *Config) Validate() error {
	switch c.Backend {
	case "json", "pickle", "sqlite", "sql", "db":
	default:
		return fmt.Errorf("backend must be one of json, pickle, sqlite (aliases sql, db), got %q", c.Backend)
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr must not be empty")
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("cache.size must be non-negative, got %d", c.Cache.Size)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}
	return nil
}

// WriteYAML writes c to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Watch reloads the config file at path whenever it changes on disk and
// invokes onChange with the freshly loaded Config. Validation failures on
// reload are reported to onError rather than crashing the watcher; the
// previous in-memory config continues serving until a valid file appears.
// Callers must call the returned stop func to release the fsnotify watcher.
func Watch(path string, onChange func(*Config), onError func(error)) (stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to start config watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config file %s: %w", path, err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					onError(err)
					continue
				}
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				onError(err)
			}
		}
	}()

	return watcher.Close, nil
}
