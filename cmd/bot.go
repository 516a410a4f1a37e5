package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/telecal/internal/bot"
)

func newBotCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram conversation",
		Long: `Run the Telegram bot with long polling.

Users without a stored Google credential receive an authorization link that
points at the web process (PUBLIC_URL). The web process must share DB_PATH
with this process.`,
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

			err = bot.Poll(ctx, api, ctrl, bot.DefaultPollTimeout)
			logger.Info("bot stopped")
			return err
		},
	}
}
