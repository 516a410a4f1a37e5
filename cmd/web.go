package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/telecal/internal/server"
)

func newWebCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "web",
		Short: "Run the Google OAuth web endpoints",
		Long: `Serve the browser side of the Google authorization flow:

  GET /authorize?state=<user_id>   redirect to Google's consent screen
  GET /oauth2callback              exchange the code and store the credential
  GET /healthz, /readyz            health probes

Credentials are written to DB_PATH, which the bot process reads.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, logger, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			provider, stopInstrumentation, err := startInstrumentation(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer stopInstrumentation()

			st, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore(st, logger)

			web, health, err := newWebServer(cfg, logger, provider, st, nil)
			if err != nil {
				return err
			}
			health.SetReady(true)

			err = server.Run(ctx, web)
			logger.Info("web server stopped")
			return err
		},
	}
}
