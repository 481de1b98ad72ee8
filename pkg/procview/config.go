package procview

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable ApplyEnv reads.
const EnvPrefix = "PROCVIEW_"

// Config holds the monitor settings. Zero values are not defaults; start
// from DefaultConfig.
type Config struct {
	// Root is the directory procfs and sysfs paths are resolved under.
	Root string `yaml:"root"`
	// Getconf is the command used to query CLK_TCK. Empty disables it.
	Getconf string `yaml:"getconf"`

	Interval time.Duration `yaml:"interval"` // between snapshots
	History  int           `yaml:"history"`  // samples kept by the collector

	Addr       string `yaml:"addr"` // dashboard listen address
	MaxClients int    `yaml:"max_clients"`

	LogLevel  string `yaml:"log_level"`  // debug, info, warn or error
	LogFormat string `yaml:"log_format"` // text or json
}

// DefaultConfig returns settings for monitoring the local machine.
func DefaultConfig() Config {
	return Config{
		Root:       "/",
		Getconf:    "getconf",
		Interval:   2 * time.Second,
		History:    1800,
		Addr:       "localhost:9090",
		MaxClients: 100,
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// LoadConfig reads a YAML file over DefaultConfig. Keys not present in the
// file keep their defaults; unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides settings from PROCVIEW_* variables found through
// lookup, for example os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("ROOT", &c.Root)
	str("GETCONF", &c.Getconf)
	str("ADDR", &c.Addr)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	if v, ok := lookup(EnvPrefix + "INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %sINTERVAL: %w", EnvPrefix, err)
		}
		c.Interval = d
	}
	for name, dst := range map[string]*int{"HISTORY": &c.History, "MAX_CLIENTS": &c.MaxClients} {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("config: %s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
	}
	return c.Validate()
}

// ApplyDotEnv applies the PROCVIEW_* entries of a .env file without
// touching the process environment. A missing file is not an error.
func (c *Config) ApplyDotEnv(path string) error {
	vars, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return c.ApplyEnv(func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	})
}

func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("config: interval must be positive, got %v", c.Interval)
	}
	if c.History <= 0 {
		return fmt.Errorf("config: history must be positive, got %d", c.History)
	}
	if c.MaxClients < 0 {
		return fmt.Errorf("config: max_clients must not be negative, got %d", c.MaxClients)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	return nil
}

// Level returns the slog level named by LogLevel; empty means info.
func (c Config) Level() (slog.Level, error) {
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return l, nil
}

// NewLogger builds a logger writing to w in the configured format and level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
