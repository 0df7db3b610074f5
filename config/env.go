package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/sarchlab/tempora/sim/actor"
)

// EnvPrefix starts the name of every variable read by ApplyEnv.
const EnvPrefix = "TEMPORA_"

// LoadEnv loads variables from the given .env files into the environment.
// Variables already set win. Without files, ./.env is loaded if it exists.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		err := godotenv.Load()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return err
	}

	return godotenv.Load(files...)
}

type binding struct {
	name string
	set  func(c *Config, v string) error
}

var bindings = []binding{
	{"RESOLUTION", floatSetter(func(c *Config) *float64 { return &c.Timing.Resolution })},
	{"STOP_TIME", floatSetter(func(c *Config) *float64 { return &c.Timing.StopTime })},
	{"MAX_MICROSTEPS", intSetter(func(c *Config) *int { return &c.Timing.MaxMicrosteps })},
	{"SYNC_REALTIME", boolSetter(func(c *Config) *bool { return &c.Realtime.Synchronize })},
	{"DEADLINE_POLICY", stringSetter(func(c *Config) *string { return &c.Realtime.DeadlinePolicy })},
	{"MAX_WAIT_COUNT", intSetter(func(c *Config) *int { return &c.Realtime.MaxWaitCount })},
	{"POLL_INTERVAL", floatSetter(func(c *Config) *float64 { return &c.Realtime.PollInterval })},
	{"LOG_LEVEL", stringSetter(func(c *Config) *string { return &c.Log.Level })},
	{"LOG_FORMAT", stringSetter(func(c *Config) *string { return &c.Log.Format })},
	{"MONITOR", boolSetter(func(c *Config) *bool { return &c.Monitor.Enabled })},
	{"MONITOR_PORT", intSetter(func(c *Config) *int { return &c.Monitor.Port })},
	{"OPEN_BROWSER", boolSetter(func(c *Config) *bool { return &c.Monitor.OpenBrowser })},
	{"RECORDING", boolSetter(func(c *Config) *bool { return &c.Recording.Enabled })},
	{"RECORDING_PATH", stringSetter(func(c *Config) *string { return &c.Recording.Path })},
}

// ApplyEnv overrides settings with the TEMPORA_* variables that are set.
func (c *Config) ApplyEnv() error {
	var errs []error

	for _, b := range bindings {
		v, ok := os.LookupEnv(EnvPrefix + b.name)
		if !ok {
			continue
		}

		if err := b.set(c, v); err != nil {
			errs = append(errs, actor.NewConfigurationError(EnvPrefix+b.name,
				"cannot use %q: %v", v, err))
		}
	}

	return errors.Join(errs...)
}

func floatSetter(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}

		*field(c) = f

		return nil
	}
}

func intSetter(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}

		*field(c) = n

		return nil
	}
}

func boolSetter(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}

		*field(c) = b

		return nil
	}
}

func stringSetter(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}
