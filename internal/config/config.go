// Package config pagestash settings: YAML file over defaults, then command line flags
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/S0me0neR0man/pagestash/internal/keys"
	"github.com/S0me0neR0man/pagestash/internal/logger"
)

const (
	EngineMemory = "memory"
	EnginePebble = "pebble"
	EngineSQLite = "sqlite"
)

var (
	ErrInvalidConfig = errors.New("invalid config")
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Boundaries BoundaryConfig   `yaml:"boundaries"`
	Index      IndexConfig      `yaml:"index"`
	Maintainer MaintainerConfig `yaml:"maintainer"`
	Cache      CacheConfig      `yaml:"cache"`
	Logger     logger.Config    `yaml:"logger"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MetricsAddr string `yaml:"metrics_addr"` // empty disables /metrics
	AuthToken   string `yaml:"auth_token"`   // empty disables authorization
}

// StorageConfig the base collection
type StorageConfig struct {
	Engine string `yaml:"engine"` // memory | pebble
	Path   string `yaml:"path"`
}

// BoundaryConfig the page boundary table, pass lease and step queue
type BoundaryConfig struct {
	Engine string `yaml:"engine"` // memory | sqlite
	Path   string `yaml:"path"`
}

type IndexConfig struct {
	// Fields "name:kind,..." orders the collection, empty is _creationTime:int,_id:string
	Fields string `yaml:"fields"`
}

type MaintainerConfig struct {
	PageSize     int           `yaml:"page_size"`
	Interval     time.Duration `yaml:"interval"` // 0 disables
	DailyAt      string        `yaml:"daily_at"` // HH:MM UTC, empty disables
	LeaseTTL     time.Duration `yaml:"lease_ttl"`
	StepRate     float64       `yaml:"step_rate"` // steps per second, 0 unlimited
	StepBurst    int           `yaml:"step_burst"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	MaxCost int64         `yaml:"max_cost"`
	TTL     time.Duration `yaml:"ttl"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        "127.0.0.1:3200",
			MetricsAddr: "127.0.0.1:9200",
		},
		Storage: StorageConfig{
			Engine: EnginePebble,
			Path:   "db/words",
		},
		Boundaries: BoundaryConfig{
			Engine: EngineSQLite,
			Path:   "db/boundaries.db",
		},
		Maintainer: MaintainerConfig{
			PageSize:     1000,
			Interval:     time.Minute,
			DailyAt:      "00:00",
			LeaseTTL:     5 * time.Minute,
			StepRate:     50,
			StepBurst:    10,
			RetryBackoff: time.Second,
			MaxAttempts:  10,
		},
		Cache: CacheConfig{
			Enabled: true,
			MaxCost: 100_000,
			TTL:     time.Minute,
		},
		Logger: logger.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path over the defaults, an empty path gives the defaults
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Storage.Engine == "" {
		cfg.Storage.Engine = def.Storage.Engine
	}
	if cfg.Boundaries.Engine == "" {
		cfg.Boundaries.Engine = def.Boundaries.Engine
	}
	if cfg.Maintainer.PageSize <= 0 {
		cfg.Maintainer.PageSize = def.Maintainer.PageSize
	}
	if cfg.Maintainer.LeaseTTL <= 0 {
		cfg.Maintainer.LeaseTTL = def.Maintainer.LeaseTTL
	}
	if cfg.Maintainer.StepBurst <= 0 {
		cfg.Maintainer.StepBurst = def.Maintainer.StepBurst
	}
	if cfg.Maintainer.RetryBackoff <= 0 {
		cfg.Maintainer.RetryBackoff = def.Maintainer.RetryBackoff
	}
	if cfg.Cache.MaxCost <= 0 {
		cfg.Cache.MaxCost = def.Cache.MaxCost
	}
}

// NewConfig loads the file named by -config and applies the other flags over it
func NewConfig() (*Config, error) {
	return Parse(flag.CommandLine, os.Args[1:])
}

func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	path := fs.String("config", "", "YAML config file")
	addr := fs.String("addr", "", "gRPC listen address")
	data := fs.String("data", "", "data directory, overrides storage and boundary paths")
	memory := fs.Bool("memory", false, "keep everything in memory")
	level := fs.String("log-level", "", "log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := Load(*path)
	if err != nil {
		return nil, err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *data != "" {
		cfg.Storage.Path = *data + "/words"
		cfg.Boundaries.Path = *data + "/boundaries.db"
	}
	if *memory {
		cfg.Storage.Engine = EngineMemory
		cfg.Boundaries.Engine = EngineMemory
	}
	if *level != "" {
		cfg.Logger.Level = *level
	}
	return cfg, cfg.Validate()
}

// Fields parses the index field list
func (c *Config) Fields() (keys.FieldList, error) {
	fl, err := keys.ParseFieldList(c.Index.Fields)
	if err != nil {
		return nil, err
	}
	if !fl.Unique() {
		return nil, fmt.Errorf("%w: index %s must include %s", ErrInvalidConfig, fl, keys.FieldID)
	}
	return fl, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case EngineMemory, EnginePebble:
	default:
		return fmt.Errorf("%w: storage engine %q", ErrInvalidConfig, c.Storage.Engine)
	}
	switch c.Boundaries.Engine {
	case EngineMemory, EngineSQLite:
	default:
		return fmt.Errorf("%w: boundaries engine %q", ErrInvalidConfig, c.Boundaries.Engine)
	}
	if _, err := c.Fields(); err != nil {
		return err
	}
	if c.Maintainer.Interval < 0 {
		return fmt.Errorf("%w: negative maintainer interval", ErrInvalidConfig)
	}
	if c.Maintainer.DailyAt != "" {
		if _, err := time.Parse("15:04", c.Maintainer.DailyAt); err != nil {
			return fmt.Errorf("%w: daily_at %q", ErrInvalidConfig, c.Maintainer.DailyAt)
		}
	}
	return nil
}
