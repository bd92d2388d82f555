// Package config reads cilscan.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"cilscan/internal/watchdog"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "cilscan.toml"

// Report formats.
const (
	FormatText  = "text"
	FormatJSONL = "jsonl"
)

type Config struct {
	Watchdog Watchdog `toml:"watchdog"`
	Log      Log      `toml:"log"`
	Rules    Rules    `toml:"rules"`
	Report   Report   `toml:"report"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `toml:"-"`
}

type Watchdog struct {
	Timeout Duration `toml:"timeout"`
}

type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

type Rules struct {
	Disabled []string `toml:"disabled"`
}

type Report struct {
	Format   string `toml:"format"`
	Database string `toml:"database"` // SQLite path; empty disables the store
}

// Duration is a time.Duration written as a string ("30s", "2m").
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Watchdog.Timeout <= 0 {
		c.Watchdog.Timeout = Duration(watchdog.DefaultTimeout)
	}
	if c.Report.Format == "" {
		c.Report.Format = FormatText
	}
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	switch c.Report.Format {
	case FormatText, FormatJSONL:
	default:
		return fmt.Errorf("config: %s: report format %q: want %q or %q", c.source(), c.Report.Format, FormatText, FormatJSONL)
	}
	if c.Log.Verbosity < 0 {
		return fmt.Errorf("config: %s: negative log verbosity", c.source())
	}
	return nil
}

func (c *Config) source() string {
	if c.Path == "" {
		return "defaults"
	}
	return c.Path
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse error in %s: %w", path, err)
	}
	c.Path = path
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// FindAndLoad looks for cilscan.toml in startDir and its parents. When no
// file exists it returns Default().
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}
