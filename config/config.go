// Package config holds the settings of a run. A Config is loaded once at
// startup from a YAML file, then from the environment, and handed to the
// builders that need it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/de"
	"github.com/sarchlab/tempora/sim/realtime"
	"github.com/sarchlab/tempora/sim/timing"
)

// Config is the whole configuration of a run.
type Config struct {
	Timing    Timing    `yaml:"timing"`
	Realtime  Realtime  `yaml:"realtime"`
	Log       Log       `yaml:"log"`
	Monitor   Monitor   `yaml:"monitor"`
	Recording Recording `yaml:"recording"`
}

// Timing configures model time.
type Timing struct {
	// Resolution is the smallest time step, in seconds.
	Resolution float64 `yaml:"resolution"`

	// StopTime ends the run, in seconds. Zero means never.
	StopTime float64 `yaml:"stop_time"`

	MaxMicrosteps int `yaml:"max_microsteps"`
}

// Realtime configures deadlines and the network input device.
type Realtime struct {
	Synchronize    bool    `yaml:"synchronize"`
	DeadlinePolicy string  `yaml:"deadline_policy"`
	MaxWaitCount   int     `yaml:"max_wait_count"`
	PollInterval   float64 `yaml:"poll_interval"`
}

// Log configures logrus.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Monitor configures the HTTP monitor.
type Monitor struct {
	Enabled     bool `yaml:"enabled"`
	Port        int  `yaml:"port"`
	OpenBrowser bool `yaml:"open_browser"`
}

// Recording configures the trace database.
type Recording struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Timing: Timing{
			Resolution:    1e-9,
			MaxMicrosteps: de.DefaultMaxMicrosteps,
		},
		Realtime: Realtime{
			DeadlinePolicy: realtime.ReportLate.String(),
			MaxWaitCount:   100,
			PollInterval:   0.01,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path over the defaults. Unknown keys are
// rejected. An empty path gives the defaults.
func Load(path string) (*Config, error) {
	c := Default()

	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := c.decode(data); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return c, nil
}

// Parse reads YAML over the defaults.
func Parse(data []byte) (*Config, error) {
	c := Default()

	if err := c.decode(data); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return c, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	err := dec.Decode(c)
	if errors.Is(err, io.EOF) {
		return nil
	}

	return err
}

// Validate reports every setting that cannot be used.
func (c *Config) Validate() error {
	var errs []error

	bad := func(section, format string, args ...any) {
		errs = append(errs, actor.NewConfigurationError(section, format, args...))
	}

	if _, err := timing.NewResolution(c.Timing.Resolution); err != nil {
		bad("timing", "%v", err)
	}

	if c.Timing.StopTime < 0 {
		bad("timing", "stop time must not be negative, got %g", c.Timing.StopTime)
	}

	if c.Timing.MaxMicrosteps <= 0 {
		bad("timing", "max microsteps must be positive, got %d",
			c.Timing.MaxMicrosteps)
	}

	if _, err := realtime.ParsePolicy(c.Realtime.DeadlinePolicy); err != nil {
		errs = append(errs, err)
	}

	if c.Realtime.MaxWaitCount < 0 {
		bad("realtime", "max wait count must not be negative, got %d",
			c.Realtime.MaxWaitCount)
	}

	if c.Realtime.PollInterval <= 0 {
		bad("realtime", "poll interval must be positive, got %g",
			c.Realtime.PollInterval)
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		bad("log", "%v", err)
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		bad("log", "unknown format %q", c.Log.Format)
	}

	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		bad("monitor", "port %d out of range", c.Monitor.Port)
	}

	return errors.Join(errs...)
}

// Resolution returns the time resolution. Call Validate first.
func (c *Config) Resolution() timing.Resolution {
	return timing.MustResolution(c.Timing.Resolution)
}

// StopTime returns the stop time, infinite when unset.
func (c *Config) StopTime() timing.Time {
	if c.Timing.StopTime == 0 {
		return timing.Infinity
	}

	return c.Resolution().FromSeconds(c.Timing.StopTime)
}

// PollInterval returns the poll interval of network input devices.
func (c *Config) PollInterval() timing.Time {
	return c.Resolution().FromSeconds(c.Realtime.PollInterval)
}

// DeadlinePolicy returns the deadline policy. Call Validate first.
func (c *Config) DeadlinePolicy() realtime.Policy {
	p, _ := realtime.ParsePolicy(c.Realtime.DeadlinePolicy)
	return p
}

// ConfigureLogger sets the level and format of l.
func (c *Config) ConfigureLogger(l *logrus.Logger) error {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return actor.NewConfigurationError("log", "%v", err)
	}

	l.SetLevel(level)

	if strings.ToLower(c.Log.Format) == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return nil
}
