// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cmd implements the claudecoder command line.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/traylinx/claudecoder/internal/config"
	"github.com/traylinx/claudecoder/internal/logging"
)

var (
	flagConfig      string
	flagDebug       bool
	flagLogToFile   bool
	flagEnvFile     string
	flagMetricsFile string

	cfg *config.Config
)

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "claudecoder",
		Short:         "Suggest and apply repository changes with language models",
		Long:          "claudecoder sends a repository and a change request to a prioritized list of models, falling back between them, and applies the git-formatted answer.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			return setup(c)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return writeMetrics()
		},
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", config.DefaultConfigFile, "Configuration file (optional)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&flagLogToFile, "log-file", false, "Write logs to a rotating file instead of stdout")
	root.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "Environment file with provider credentials")
	root.PersistentFlags().StringVar(&flagMetricsFile, "metrics-file", "", "Write Prometheus counters to this file on exit")

	root.AddCommand(newRunCommand(), newModelsCommand(), newEstimateCommand(), newVersionCommand())
	return root
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	logging.SetupBaseLogger()
	if err := NewRootCommand().Execute(); err != nil {
		log.Error(err)
		logging.Close()
		os.Exit(1)
	}
	logging.Close()
}

func setup(c *cobra.Command) error {
	if flagEnvFile != "" {
		if err := godotenv.Load(flagEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).Warn("failed to load .env file")
		}
	}

	optional := !c.Flags().Changed("config")
	loaded, err := config.LoadConfigOptional(flagConfig, optional)
	if err != nil {
		return err
	}
	cfg = loaded

	if flagDebug {
		cfg.Logging.Debug = true
	}
	if flagLogToFile {
		cfg.Logging.ToFile = true
	}
	logging.SetDebug(cfg.Logging.Debug)
	if err := logging.ConfigureLogOutput(cfg.Logging.ToFile, cfg.Logging.Dir); err != nil {
		return fmt.Errorf("failed to configure log output: %w", err)
	}
	return nil
}

func writeMetrics() error {
	if flagMetricsFile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(flagMetricsFile, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
