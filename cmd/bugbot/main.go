// Command bugbot turns support conversations into GitHub issues for Mudlet.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mudlet/bugbot/internal/config"
	"github.com/mudlet/bugbot/internal/logging"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	dbPath    string
	logLevel  string
	logFormat string
	userID    string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "bugbot",
	Short: "Mudlet bug bot: conversations in, GitHub issues out",
	Long: `bugbot extracts structured bug reports from support conversations with an LLM,
tags them with labels, checks GitHub for likely duplicates and files the issue
once the requester confirms.

Configuration comes from the environment and an optional .env file.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded

		if cmd.Flags().Changed("db") || cfg.DBPath == "" {
			cfg.DBPath = dbPath
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat = logFormat
		}
		logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.DefaultDBPath, "Path to the report database (overrides BUGBOT_DB)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", config.DefaultLogFormat, "Log format: text or json")
	rootCmd.PersistentFlags().StringVar(&userID, "user", defaultUser(), "User ID recorded as the report requester")
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		os.Exit(1)
	}
}
