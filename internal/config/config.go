package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DatabaseConfig configures the PostgreSQL schedule store. An empty URL
// selects the in-memory store.
type DatabaseConfig struct {
	URL          string        `yaml:"url" json:"url"`
	MaxConns     int32         `yaml:"max_conns" json:"max_conns"`
	QueryTimeout time.Duration `yaml:"query_timeout" json:"query_timeout"`
}

// RedisConfig configures the shared response cache. An empty Addr keeps
// the cache in process.
type RedisConfig struct {
	Addr string `yaml:"addr" json:"addr"`
	DB   int    `yaml:"db" json:"db"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	// TTL is how long a cached listing or proposal stays valid. Zero
	// disables caching.
	TTL time.Duration `yaml:"ttl" json:"ttl"`

	// Sweep is a cron-style schedule string (e.g. "*/5 * * * *") used to
	// evict expired in-memory entries.
	Sweep string `yaml:"sweep" json:"sweep"`
}

// EngineConfig tunes the aggregation engine.
type EngineConfig struct {
	MaxOccurrencesPerEvent int `yaml:"max_occurrences_per_event" json:"max_occurrences_per_event"`
	MaxParallelDays        int `yaml:"max_parallel_days" json:"max_parallel_days"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is one of "debug", "info", "error".
	LogLevel string `yaml:"log_level" json:"log_level"`

	Database DatabaseConfig `yaml:"database" json:"database"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	Cache    CacheConfig    `yaml:"cache" json:"cache"`
	Engine   EngineConfig   `yaml:"engine" json:"engine"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
}

const (
	defaultListen       = "127.0.0.1:8080"
	defaultLogLevel     = "info"
	defaultMaxConns     = 8
	defaultQueryTimeout = 5 * time.Second
	defaultCacheTTL     = 30 * time.Second
	defaultSweep        = "*/5 * * * *"
	defaultMaxPerEvent  = 5000
	defaultParallelDays = 4
	defaultMetricsPath  = "/metrics"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   defaultListen,
		LogLevel: defaultLogLevel,
		Database: DatabaseConfig{
			MaxConns:     defaultMaxConns,
			QueryTimeout: defaultQueryTimeout,
		},
		Cache: CacheConfig{
			TTL:   defaultCacheTTL,
			Sweep: defaultSweep,
		},
		Engine: EngineConfig{
			MaxOccurrencesPerEvent: defaultMaxPerEvent,
			MaxParallelDays:        defaultParallelDays,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    defaultMetricsPath,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = defaultLogLevel
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = defaultMaxConns
	}
	if c.Database.QueryTimeout <= 0 {
		c.Database.QueryTimeout = defaultQueryTimeout
	}
	// A negative TTL is treated as "disabled", same as zero.
	if c.Cache.TTL < 0 {
		c.Cache.TTL = 0
	}
	if c.Cache.Sweep == "" {
		c.Cache.Sweep = defaultSweep
	}
	if c.Engine.MaxOccurrencesPerEvent <= 0 {
		c.Engine.MaxOccurrencesPerEvent = defaultMaxPerEvent
	}
	if c.Engine.MaxParallelDays <= 0 {
		c.Engine.MaxParallelDays = defaultParallelDays
	}
	if c.Metrics.Path == "" || !strings.HasPrefix(c.Metrics.Path, "/") {
		c.Metrics.Path = defaultMetricsPath
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// ApplyEnv overrides file values with DATABASE_URL, REDIS_ADDR, LISTEN and
// LOG_LEVEL when they are set.
func (c *Config) ApplyEnv() {
	c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("DATABASE_URL"); ok {
		c.Database.URL = v
	}
	if v, ok := lookup("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := lookup("LISTEN"); ok && v != "" {
		c.Listen = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	c.Normalize()
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
//
// Environment overrides are not applied here; call ApplyEnv.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".schedcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
