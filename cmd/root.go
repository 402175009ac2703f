// Package cmd contains the command-line interface of the checker, built with
// Cobra.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/config"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/logger"
)

const Version = "1.0.0"

var (
	configPath string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "adscheck",
		Short: "Checks how many ads.txt sellers of a page appear in the known-seller registry.",
		Long: `adscheck scans a page's ads.txt / app-ads.txt declarations and counts how
many of the declared seller identifiers also appear in a cached, periodically
refreshed registry of known sellers.`,
		Version: Version,
	}
)

// Execute adds all child commands to the root command and runs it. Called by
// main.main().
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "Directory containing checker_config.yaml")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "Log level override (debug, info, warn, error)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// loadSettings loads configuration and sets up logging, applying the
// command-line log level override if one was given.
func loadSettings() (config.Settings, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.Settings{}, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logger.Setup(cfg.Log)
	return cfg, nil
}
