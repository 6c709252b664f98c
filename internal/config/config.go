package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Services ServicesConfig `mapstructure:"services"`
	Poll     PollConfig     `mapstructure:"poll"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	UI       UIConfig       `mapstructure:"ui"`
	Log      LogConfig      `mapstructure:"log"`
	Sim      SimConfig      `mapstructure:"sim"`
}

// ServicesConfig holds the base URLs of the three resource services.
type ServicesConfig struct {
	DevicesURL   string `mapstructure:"devices_url"`
	SamplesURL   string `mapstructure:"samples_url"`
	WorkflowsURL string `mapstructure:"workflows_url"`
}

// PollConfig holds the refresh cadence.
type PollConfig struct {
	IntervalMS int `mapstructure:"interval_ms"`
}

// HTTPConfig holds transport policy. Zero means no timeout.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	DateFormat string `mapstructure:"date_format"`
	Timezone   string `mapstructure:"timezone"`
}

// LogConfig holds the log file location and minimum level.
type LogConfig struct {
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"`
}

// SimConfig holds simulator settings.
type SimConfig struct {
	Host string `mapstructure:"host"`
}

// Interval returns the poll interval as a duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.Poll.IntervalMS) * time.Millisecond
}

// Timeout returns the per-request HTTP timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Location resolves ui.timezone; empty means local time.
func (c UIConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SlogLevel parses log.level, defaulting to info.
func (c LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Load reads configuration from file, env and flags. Env var overrides use
// prefix LABDASH_. path wins over $LABDASH_CONFIG; a missing file is not an
// error. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	home := os.Getenv("HOME")

	// default values
	v.SetDefault("services.devices_url", "http://localhost:5001")
	v.SetDefault("services.samples_url", "http://localhost:5002")
	v.SetDefault("services.workflows_url", "http://localhost:5003")
	v.SetDefault("poll.interval_ms", 5000)
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("ui.date_format", "2006-01-02 15:04:05")
	v.SetDefault("ui.timezone", "")
	v.SetDefault("log.path", filepath.Join(home, ".local", "state", "labdash", "labdash.log"))
	v.SetDefault("log.level", "info")
	v.SetDefault("sim.host", "127.0.0.1")

	v.SetConfigType("toml")

	if path == "" {
		path = os.Getenv("LABDASH_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Join(home, ".config", "labdash"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("LABDASH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if flags != nil {
		if f := flags.Lookup("poll-interval-ms"); f != nil {
			if err := v.BindPFlag("poll.interval_ms", f); err != nil {
				return Config{}, fmt.Errorf("bind flag: %w", err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil && !missing(err) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func missing(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, fs.ErrNotExist)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Poll.IntervalMS <= 0 {
		return fmt.Errorf("poll.interval_ms must be positive, got %d", c.Poll.IntervalMS)
	}
	if c.HTTP.TimeoutSeconds < 0 {
		return fmt.Errorf("http.timeout_seconds must not be negative, got %d", c.HTTP.TimeoutSeconds)
	}
	for key, raw := range map[string]string{
		"services.devices_url":   c.Services.DevicesURL,
		"services.samples_url":   c.Services.SamplesURL,
		"services.workflows_url": c.Services.WorkflowsURL,
	} {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s: %q is not an absolute URL", key, raw)
		}
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.UI.Timezone != "" {
		if _, err := time.LoadLocation(c.UI.Timezone); err != nil {
			return fmt.Errorf("ui.timezone: %w", err)
		}
	}
	return nil
}
