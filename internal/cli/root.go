// Package cli provides the command-line interface for weather-report.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var (
	envFile   string
	cityFlags []string
	debugLog  bool
	dryRun    bool
)

var rootCmd = &cobra.Command{
	Use:          "weather-report",
	Short:        "Send today's weather for each configured city as a template message",
	Long:         "weather-report scrapes the regional forecast pages of weather.com.cn, adds a daily note, and pushes the result to one WeChat official-account follower.",
	SilenceUsage: true,
	RunE:         reportAction,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "weather-report %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "enable debug logging")
	rootCmd.Flags().StringSliceVar(&cityFlags, "city", nil, "city to report (repeatable; overrides CITY/CITIES)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "look up weather and log the message without sending it; APP_ID, APP_SECRET, OPEN_ID and TEMPLATE_ID are not required")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(lookupCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
