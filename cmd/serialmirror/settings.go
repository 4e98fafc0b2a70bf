package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/serialmirror/internal/config"
	applog "github.com/nao1215/serialmirror/internal/log"
	"github.com/spf13/cobra"
)

// loadConfig builds the configuration for a command: defaults, then the
// configuration file, then every flag the user set explicitly. A flag left
// at its default never overrides a value from the file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	setString := func(name string, dst *string) error {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			return nil
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
	setInt := func(name string, dst *int) error {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			return nil
		}
		v, err := flags.GetInt(name)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
	setBool := func(name string, dst *bool) error {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			return nil
		}
		v, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
	setDuration := func(name string, dst *time.Duration) error {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			return nil
		}
		v, err := flags.GetDuration(name)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}

	setters := []error{
		setString("workdir", &cfg.WorkDir),
		setBool("verbose", &cfg.Verbose),
		setBool("json-log", &cfg.JSONLog),

		// crawl
		setString("start", &cfg.StartURL),
		setString("resume-from", &cfg.ResumeFrom),
		setBool("force", &cfg.Force),
		setInt("max-pages", &cfg.MaxPages),
		setDuration("timeout", &cfg.Timeout),
		setDuration("delay-min", &cfg.DelayMin),
		setDuration("delay-max", &cfg.DelayMax),
		setInt("retries", &cfg.MaxAttempts),
		setString("proxy", &cfg.Proxy),
		setBool("no-history", &cfg.NoHistory),

		// format
		setString("template", &cfg.Template),
		setString("stylesheet", &cfg.Stylesheet),
		setString("output", &cfg.OutDir),
		setString("title", &cfg.Title),
		setInt("concurrency", &cfg.Concurrency),
	}
	for _, err := range setters {
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// setupLogger creates the process logger from the configuration and makes
// it the slog default.
func setupLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	logger := applog.NewLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.JSONLog)
	slog.SetDefault(logger)
	return logger
}
