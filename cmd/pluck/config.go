package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fwojciec/pluck"
	"github.com/fwojciec/pluck/extraction"
	"github.com/fwojciec/pluck/firecrawl"
	"github.com/fwojciec/pluck/redis"
	yaml "gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Defaults for values not set by a flag, the environment or the config file.
const (
	DefaultProfile   = "cli"
	DefaultAddr      = ":3000"
	DefaultRateLimit = 2.0
)

// Config is the resolved configuration of the program.
type Config struct {
	DB      string
	Store   string
	Redis   redis.Config
	Profile string
	Verbose bool

	Firecrawl struct {
		URL          string
		Key          string
		RequireKey   bool
		PollInterval time.Duration
	}

	Server struct {
		Addr           string
		MetricsAddr    string
		RateLimit      float64
		AllowedOrigins []string
	}

	WelcomeDelay time.Duration
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	var cfg Config
	cfg.DB = defaultDBPath()
	cfg.Store = StoreSQLite
	cfg.Profile = DefaultProfile
	cfg.Firecrawl.URL = firecrawl.DefaultBaseURL
	cfg.Firecrawl.PollInterval = firecrawl.DefaultPollInterval
	cfg.Server.Addr = DefaultAddr
	cfg.Server.RateLimit = DefaultRateLimit
	cfg.WelcomeDelay = extraction.DefaultWelcomeDelay
	return cfg
}

// Validate returns an error if the configuration cannot be used.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreSQLite, StoreRedis:
	default:
		return pluck.Errorf(pluck.EINVALID, "unknown store %q (want %q or %q)", c.Store, StoreSQLite, StoreRedis)
	}
	if c.Profile == "" {
		return pluck.Errorf(pluck.EINVALID, "profile must not be empty")
	}
	if c.Firecrawl.PollInterval <= 0 {
		return pluck.Errorf(pluck.EINVALID, "poll interval must be positive")
	}
	if c.Firecrawl.RequireKey && c.Firecrawl.Key == "" {
		return pluck.Errorf(pluck.ECREDENTIAL, "FIRECRAWL_API_KEY is required but not set")
	}
	return nil
}

// FileConfig is the YAML configuration file schema.
type FileConfig struct {
	DB      string `yaml:"db"`
	Store   string `yaml:"store"`
	Profile string `yaml:"profile"`
	Verbose bool   `yaml:"verbose"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Firecrawl struct {
		URL          string        `yaml:"url"`
		Key          string        `yaml:"key"`
		RequireKey   bool          `yaml:"requireKey"`
		PollInterval time.Duration `yaml:"pollInterval"`
	} `yaml:"firecrawl"`

	Server struct {
		Addr           string   `yaml:"addr"`
		MetricsAddr    string   `yaml:"metricsAddr"`
		RateLimit      *float64 `yaml:"rateLimit"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`

	WelcomeDelay time.Duration `yaml:"welcomeDelay"`
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

// ApplyFileConfig overlays the values set in fc onto cfg.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	setString(&cfg.DB, fc.DB)
	setString(&cfg.Store, fc.Store)
	setString(&cfg.Profile, fc.Profile)
	if fc.Verbose {
		cfg.Verbose = true
	}

	setString(&cfg.Redis.Addr, fc.Redis.Addr)
	setString(&cfg.Redis.Password, fc.Redis.Password)
	if fc.Redis.DB != 0 {
		cfg.Redis.DB = fc.Redis.DB
	}

	setString(&cfg.Firecrawl.URL, fc.Firecrawl.URL)
	setString(&cfg.Firecrawl.Key, fc.Firecrawl.Key)
	if fc.Firecrawl.RequireKey {
		cfg.Firecrawl.RequireKey = true
	}
	if fc.Firecrawl.PollInterval > 0 {
		cfg.Firecrawl.PollInterval = fc.Firecrawl.PollInterval
	}

	setString(&cfg.Server.Addr, fc.Server.Addr)
	setString(&cfg.Server.MetricsAddr, fc.Server.MetricsAddr)
	if fc.Server.RateLimit != nil {
		cfg.Server.RateLimit = *fc.Server.RateLimit
	}
	if len(fc.Server.AllowedOrigins) > 0 {
		cfg.Server.AllowedOrigins = fc.Server.AllowedOrigins
	}

	if fc.WelcomeDelay > 0 {
		cfg.WelcomeDelay = fc.WelcomeDelay
	}
}

// ApplyEnv overlays values from environment variables onto cfg.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	setString(&cfg.DB, getenv("PLUCK_DB"))
	setString(&cfg.Store, getenv("PLUCK_STORE"))
	setString(&cfg.Profile, getenv("PLUCK_PROFILE"))
	setString(&cfg.Redis.Addr, getenv("PLUCK_REDIS_ADDR"))
	setString(&cfg.Redis.Password, getenv("PLUCK_REDIS_PASSWORD"))
	setString(&cfg.Firecrawl.URL, getenv("FIRECRAWL_API_URL"))
	setString(&cfg.Firecrawl.Key, getenv("FIRECRAWL_API_KEY"))
	setString(&cfg.Server.Addr, getenv("PLUCK_ADDR"))

	var errs []error
	if v := getenv("PLUCK_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PLUCK_REDIS_DB: %w", err))
		}
		cfg.Redis.DB = n
	}
	if v := getenv("PLUCK_REQUIRE_ENV_KEY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PLUCK_REQUIRE_ENV_KEY: %w", err))
		}
		cfg.Firecrawl.RequireKey = b
	}
	if v := getenv("FIRECRAWL_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("FIRECRAWL_POLL_INTERVAL: %w", err))
		}
		cfg.Firecrawl.PollInterval = d
	}
	if v := getenv("PLUCK_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}

	if err := errors.Join(errs...); err != nil {
		return pluck.Errorf(pluck.EINVALID, "invalid environment: %s", err)
	}
	return nil
}

// configPath returns the config file to load, or "" if there is none.
// The default path is only used when the file exists.
func configPath(flag string, getenv func(string) string) string {
	if flag != "" {
		return flag
	}
	if v := getenv("PLUCK_CONFIG"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".pluck", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "pluck.db"
	}
	return filepath.Join(home, ".pluck", "pluck.db")
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
