package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/proofline"
	"github.com/aretw0/proofline/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "proofline",
	Short: "AI-assisted proofreading for grammar, spelling, punctuation and style",
	Long: `Proofline sends your text to a hosted language model and shows the issues it finds.
Apply them one by one in the terminal editor, check files from scripts, or drive
editing sessions over HTTP and MCP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Config file (default: proofline.yaml, .yml, .toml or .json in the working directory)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides config)")
	rootCmd.PersistentFlags().String("model", "", "Model name (overrides config)")
}

// loadConfig reads the config file and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*proofline.Config, slog.Level, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := proofline.LoadConfig(path)
	if err != nil {
		return nil, 0, err
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		cfg.Model = model
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, 0, err
	}
	return cfg, level, nil
}

// appOptions are applied to every App the commands build.
var appOptions []proofline.Option

// newApp builds the App with a logger chosen by the command.
func newApp(cmd *cobra.Command, logger func(slog.Level) *slog.Logger) (*proofline.App, error) {
	cfg, level, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	opts := append([]proofline.Option{proofline.WithLogger(logger(level))}, appOptions...)
	return proofline.New(cfg, opts...)
}
