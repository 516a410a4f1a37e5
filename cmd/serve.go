package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/telecal/internal/bot"
	"github.com/teemow/telecal/internal/server"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and the OAuth web endpoints in one process",
		Long: `Run both listeners of telecal in one process.

The conversation still learns about new credentials only through the store,
but users waiting for authorization also get a chat message as soon as the
callback has been handled.`,
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

			api, err := newTelegramAPI(cfg, logger, opts.debug)
			if err != nil {
				return err
			}

			ctrl, err := newController(ctx, cfg, logger, provider, st, api)
			if err != nil {
				return err
			}

			web, health, err := newWebServer(cfg, logger, provider, st, ctrl)
			if err != nil {
				return err
			}
			health.SetReady(true)

			// Either listener failing stops the other.
			ctx, stop := context.WithCancel(ctx)
			defer stop()

			errCh := make(chan error, 2)
			go func() { errCh <- server.Run(ctx, web) }()
			go func() { errCh <- bot.Poll(ctx, api, ctrl, bot.DefaultPollTimeout) }()

			first := <-errCh
			stop()
			second := <-errCh

			logger.Info("telecal stopped")
			return errors.Join(first, second)
		},
	}
}
