package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/tempora/config"
)

var (
	configFile string
	envFiles   []string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "tempora",
	Short: "Discrete-event timing kernel with modal and real-time models",
	Long: `Tempora runs actor models under a discrete-event director, ` +
		`with hierarchical composites, modal models, deadlines and a ` +
		`process-oriented director. The demo models show each of them.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"YAML configuration file")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil,
		".env files to load, ./.env by default")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"log format (text, json)")
}

// loadConfig reads the file, then the environment, then the flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadEnv(envFiles...); err != nil {
		return nil, fmt.Errorf("loading env files: %w", err)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}

	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}

	applyRunFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	logger := logrus.New()

	if err := cfg.ConfigureLogger(logger); err != nil {
		return nil, err
	}

	return logger, nil
}
