// Package config loads Pretender's runtime configuration from a TOML
// file, in the same decode-into-tagged-struct style the teacher's own
// TOML schema parser uses.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is Pretender's top-level runtime configuration.
type Config struct {
	// DSN is the data source name for the backing SQL engine: a
	// postgres connection string when UsePostgreSQL is true, or a
	// sqlite file/":memory:" path otherwise.
	DSN           string `toml:"dsn"`
	UsePostgreSQL bool   `toml:"use_postgresql"`

	ListenAddr string `toml:"listen_addr"`
	LogLevel   string `toml:"log_level"`

	TTLSweepInterval    Duration `toml:"ttl_sweep_interval"`
	TTLSweepBatchSize   int      `toml:"ttl_sweep_batch_size"`
	StreamSweepInterval Duration `toml:"stream_sweep_interval"`
}

// Duration wraps time.Duration so it can be decoded from a TOML string
// like "5m" instead of a raw integer nanosecond count.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler, which BurntSushi/toml
// uses for scalar string values.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		DSN:                 ":memory:",
		UsePostgreSQL:       false,
		ListenAddr:          ":8000",
		LogLevel:            "info",
		TTLSweepInterval:    Duration{5 * time.Minute},
		TTLSweepBatchSize:   100,
		StreamSweepInterval: Duration{60 * time.Minute},
	}
}

// LoadFile opens the file at path and parses it as a Config, starting
// from Default() so any field the file omits keeps its default.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open file %q: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads TOML content from r and returns the resulting Config.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode error: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.DSN == "" {
		return fmt.Errorf("config: dsn must not be empty")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr must not be empty")
	}
	if c.TTLSweepBatchSize <= 0 {
		return fmt.Errorf("config: ttl_sweep_batch_size must be positive")
	}
	return nil
}
