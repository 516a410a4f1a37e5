package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	envFile  string
	debug    bool
	httpAddr string
	dbPath   string
}

// version will be set by main
var version = "dev"

// SetVersion sets the version reported by the version command and
// instrumentation.
func SetVersion(v string) {
	version = v
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "telecal",
		Short: "Telegram bot that books meetings in Google Calendar",
		Long: `telecal lets Telegram users pick a date and time from an inline calendar
and books the meeting in their Google Calendar, optionally logging every
booking to a Google Sheets worksheet.

It runs as two processes sharing one SQLite credential store:
  - bot: the Telegram conversation (long polling)
  - web: the Google OAuth redirect endpoints
or as both in one process with "serve".`,
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate(`{{printf "telecal version %s\n" .Version}}`)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.envFile, "env-file", "", "Load environment variables from this file (default: .env if present)")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flags.StringVar(&opts.httpAddr, "http-addr", "", "Listen address of the OAuth web server (overrides HTTP_ADDR)")
	flags.StringVar(&opts.dbPath, "db-path", "", "SQLite credential database (overrides DB_PATH)")

	rootCmd.AddCommand(newBotCmd(opts))
	rootCmd.AddCommand(newWebCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newTokenCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute is the main entry point for the CLI application
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of telecal",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "telecal version %s\n", version)
		},
	}
}
