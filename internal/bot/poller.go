package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/teemow/telecal/internal/logging"
)

// DefaultPollTimeout is the long-polling timeout in seconds.
const DefaultPollTimeout = 60

// Poll registers the command menu, then long-polls api and hands every
// update to c until ctx is done.
func Poll(ctx context.Context, api *tgbotapi.BotAPI, c *Controller, timeout int) error {
	if api == nil {
		return fmt.Errorf("bot API client is required")
	}
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}

	if _, err := api.Request(tgbotapi.NewSetMyCommands(Commands()...)); err != nil {
		c.logger.Warn("failed to register bot commands", logging.Err(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeout
	updates := api.GetUpdatesChan(u)
	defer api.StopReceivingUpdates()

	c.logger.Info("polling for updates", "bot", api.Self.UserName)
	return c.Run(ctx, updates)
}
