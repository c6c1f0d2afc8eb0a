package cmd

import (
	"fmt"
	"os"
	wakey_config "wakey-bot/wakey/config"
	wakey_log "wakey-bot/wakey/log"

	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags "-X wakey-bot/cmd.Version=...".
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "wakey",
	Short: "Operator-only chat bot that reports the public IP, wakes machines and pings hosts",
	Long: `wakey listens for "!ip", "!wake <mac>" and "!ping <host>" from a single
operator over direct messages and answers on the same channel.

Supported MAC address formats for the CLI and device store:
  - Colon separated: AA:BB:CC:DD:EE:FF
  - Hyphen separated: AA-BB-CC-DD-EE-FF
  - No separators: AABBCCDDEEFF`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file path (default: ~/.wakey.yaml or ./.wakey.yaml)")
	flags.String("log", "", "Log file path (default: console only)")
	flags.String("level", "", "Log level: debug, info, warn, error (default: from config, else info)")
	flags.Bool("verbose", false, "Enable verbose output (same as --level debug)")
	flags.Bool("quiet", false, "Quiet mode - only errors (same as --level error)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config named by --config, or the default locations.
func loadConfig(cmd *cobra.Command) (*wakey_config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := wakey_config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// setupLogging builds the logger from the persistent flags, falling back to
// the log section of cfg.
func setupLogging(cmd *cobra.Command, cfg *wakey_config.Config) (*wakey_log.Logger, error) {
	logFile, _ := cmd.Flags().GetString("log")
	logLevel, _ := cmd.Flags().GetString("level")
	verbose, _ := cmd.Flags().GetBool("verbose")
	quiet, _ := cmd.Flags().GetBool("quiet")

	if logFile == "" {
		logFile = cfg.Log.File
	}
	if logLevel == "" {
		logLevel = cfg.Log.Level
	}

	var level wakey_log.LogLevel
	if verbose {
		level = wakey_log.DEBUG
	} else if quiet {
		level = wakey_log.ERROR
	} else {
		parsed, err := wakey_log.ParseLevel(logLevel)
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	logger, err := wakey_log.NewLogger(wakey_log.LoggerConfig{
		Level:        level,
		LogToConsole: true,
		LogToFile:    logFile != "",
		LogFilePath:  logFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return logger, nil
}
