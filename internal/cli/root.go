// Package cli implements the quarry command line client.
package cli

import (
	"log/slog"
	"os"

	"github.com/me/quarry/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking QUARRY_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("QUARRY_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the quarry CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "quarry",
		Short: "Quarry — manage a work source tree",
		Long:  "Quarry inspects and manages the hierarchical work-fetch scheduler.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "Quarry server URL (or QUARRY_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newTreeCmd(),
		newStatsCmd(),
		newAddCmd(),
		newRemoveCmd(),
		newMoveCmd(),
		newSetCmd(),
	)

	return root
}
