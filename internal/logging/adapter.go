package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// BotLogger is the logger interface expected by the Telegram Bot API client
// (tgbotapi.SetLogger).
type BotLogger interface {
	Println(v ...interface{})
	Printf(format string, v ...interface{})
}

// SlogAdapter adapts an slog.Logger to BotLogger so that the chat library's
// own diagnostics end up in the structured process log.
type SlogAdapter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogAdapter creates a new SlogAdapter wrapping the given slog.Logger.
// Messages are emitted at the given level. If logger is nil, slog.Default() is used.
func NewSlogAdapter(logger *slog.Logger, level slog.Level) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger, level: level}
}

// Println logs the operands joined by spaces.
func (a *SlogAdapter) Println(v ...interface{}) {
	a.log(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

// Printf logs a formatted message.
func (a *SlogAdapter) Printf(format string, v ...interface{}) {
	a.log(strings.TrimSuffix(fmt.Sprintf(format, v...), "\n"))
}

func (a *SlogAdapter) log(msg string) {
	a.logger.Log(context.Background(), a.level, msg, slog.String("component", "telegram"))
}
