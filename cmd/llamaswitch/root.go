package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"llamaswitch/internal/config"
)

type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "llamaswitch",
		Short:         "Supervise a local llama-server and switch models on demand",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Settings file (.yaml, .yml, .json, .toml)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before reading LLAMASWITCH_* variables (missing is fine)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error (defaults LLAMASWITCH_LOG_LEVEL or info)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: json|console (defaults LLAMASWITCH_LOG_FORMAT or json)")

	root.AddCommand(
		newServeCmd(opts),
		newGPUCmd(opts),
		newConfigCmd(opts),
		newStopAllCmd(opts),
	)
	return root
}

// loadSettings resolves settings with precedence flags > env > file > defaults.
func loadSettings(flags *pflag.FlagSet, opts *rootOptions) (config.Config, error) {
	var cfg config.Config
	if opts.envFile != "" {
		// godotenv never overrides variables already set in the environment
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", opts.envFile, err)
		}
	}
	if opts.configPath != "" {
		c, err := config.Load(opts.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load settings: %w", err)
		}
		cfg = c
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	applyFlags(flags, &cfg)
	cfg.ApplyDefaults()
	return cfg, nil
}

// applyFlags copies explicitly set flags onto cfg.
func applyFlags(flags *pflag.FlagSet, cfg *config.Config) {
	strs := map[string]*string{
		"addr":           &cfg.Addr,
		"configs-dir":    &cfg.ConfigsDir,
		"default-config": &cfg.DefaultConfig,
		"log-dir":        &cfg.LogDir,
		"workspace-dir":  &cfg.WorkspaceDir,
		"log-level":      &cfg.LogLevel,
		"log-format":     &cfg.LogFormat,
	}
	for name, dst := range strs {
		if f := flags.Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	ints := map[string]*int{
		"gpu-wait-sec":           &cfg.GPUWaitSec,
		"ready-attempts":         &cfg.ReadyAttempts,
		"completion-timeout-sec": &cfg.CompletionTimeoutSec,
	}
	for name, dst := range ints {
		if f := flags.Lookup(name); f != nil && f.Changed {
			if n, err := flags.GetInt(name); err == nil {
				*dst = n
			}
		}
	}
	if f := flags.Lookup("max-body-bytes"); f != nil && f.Changed {
		if n, err := flags.GetInt64("max-body-bytes"); err == nil {
			cfg.MaxBodyBytes = n
		}
	}
	if f := flags.Lookup("cors-origins"); f != nil && f.Changed {
		cfg.CORSOrigins = splitCSV(f.Value.String())
		cfg.CORSEnabled = len(cfg.CORSOrigins) > 0
	}
}

// newLogger builds the root logger. Unknown levels fall back to info.
func newLogger(level, format string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	out := w
	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// splitCSV splits a comma-separated list, trimming blanks.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
