package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/teemow/telecal/internal/bot"
	"github.com/teemow/telecal/internal/calendar"
	"github.com/teemow/telecal/internal/config"
	"github.com/teemow/telecal/internal/google"
	"github.com/teemow/telecal/internal/instrumentation"
	"github.com/teemow/telecal/internal/logging"
	"github.com/teemow/telecal/internal/server"
	"github.com/teemow/telecal/internal/sheets"
	"github.com/teemow/telecal/internal/store"
)

const providerShutdownTimeout = 5 * time.Second

// loadConfig reads the environment, applies flag overrides and installs the
// process logger.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, *slog.Logger, error) {
	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return config.Config{}, nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cmd.Flags().Changed("http-addr") {
		cfg.HTTPAddr = opts.httpAddr
	}
	if cmd.Flags().Changed("db-path") {
		cfg.DBPath = opts.dbPath
	}
	if opts.debug {
		cfg.LogLevel = "debug"
	}

	logger, err := logging.Setup(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// startInstrumentation creates the OpenTelemetry provider and, when the
// Prometheus exporter is active, serves it on the metrics address until ctx
// is done. The returned function flushes and stops the provider.
func startInstrumentation(ctx context.Context, cfg config.Config, logger *slog.Logger) (*instrumentation.Provider, func(), error) {
	instrCfg := instrumentation.DefaultConfig()
	instrCfg.ServiceVersion = version
	instrCfg.Enabled = instrCfg.Enabled && cfg.MetricsEnabled

	provider, err := instrumentation.NewProvider(ctx, instrCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), providerShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}

	if provider.Enabled() && provider.MetricsHandler() != nil {
		metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.MetricsAddr,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			stop()
			return nil, nil, fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := server.Run(ctx, metricsServer); err != nil {
				logger.Error("metrics server stopped", logging.Err(err))
			}
		}()
	}

	return provider, stop, nil
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*store.Store, error) {
	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("credential store opened", slog.String("path", cfg.DBPath))
	return st, nil
}

// newTelegramAPI connects to the Bot API and routes the library's own log
// output through slog.
func newTelegramAPI(cfg config.Config, logger *slog.Logger, debug bool) (*tgbotapi.BotAPI, error) {
	if err := cfg.RequireTelegram(); err != nil {
		return nil, err
	}
	if err := tgbotapi.SetLogger(logging.NewSlogAdapter(logger, slog.LevelDebug)); err != nil {
		return nil, fmt.Errorf("failed to set bot logger: %w", err)
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	api.Debug = debug
	logger.Info("authorized on Telegram", slog.String("bot", api.Self.UserName))
	return api, nil
}

// newController wires the conversation to the calendar, the optional booking
// log and the store shared with the web process.
func newController(ctx context.Context, cfg config.Config, logger *slog.Logger, provider *instrumentation.Provider, st *store.Store, messenger bot.Messenger) (*bot.Controller, error) {
	metrics := provider.Metrics()

	tokens := google.NewStoreTokenProvider(st, logger, metrics)
	cal := calendar.NewClient(tokens, calendar.Config{
		CalendarID: cfg.CalendarID,
		Location:   cfg.Location,
		Logger:     logger,
		Metrics:    metrics,
	})

	botCfg := bot.Config{
		Messenger:    messenger,
		Calendar:     cal,
		AuthorizeURL: cfg.AuthorizeURL,
		Title:        cfg.BookingTitle,
		Duration:     cfg.BookingDuration,
		Slots:        cfg.BookingSlots,
		Location:     cfg.Location,
		Logger:       logger,
		Metrics:      metrics,
		Audit:        instrumentation.NewAuditLogger(logger, instrumentation.DefaultConfig().Audit),
	}

	if cfg.SheetsEnabled() {
		bookingLog, err := sheets.NewClient(ctx, sheets.Config{
			SpreadsheetID:   cfg.SpreadsheetID,
			WorksheetName:   cfg.WorksheetName,
			CredentialsFile: cfg.SheetsCredentialsFile,
			Header:          cfg.SheetHeader,
			Logger:          logger,
			Metrics:         metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create booking log: %w", err)
		}
		botCfg.BookingLog = bookingLog
		logger.Info("booking log enabled", slog.String("worksheet", cfg.WorksheetName))
	}

	return bot.New(botCfg)
}

// newWebServer builds the OAuth web server. notifier may be nil.
func newWebServer(cfg config.Config, logger *slog.Logger, provider *instrumentation.Provider, st *store.Store, notifier server.Notifier) (*server.WebServer, *server.HealthChecker, error) {
	if err := server.ValidatePublicURL(cfg.PublicURL); err != nil {
		logger.Warn("public URL is not suitable for production", logging.Err(err))
	}

	oauthConf, err := google.LoadOAuthConfig(cfg.ClientSecretsFile, cfg.RedirectURI, cfg.Scopes)
	if err != nil {
		return nil, nil, err
	}

	oauthHandler, err := server.NewOAuthHandler(server.OAuthHandlerConfig{
		OAuth:    oauthConf,
		Store:    st,
		Notifier: notifier,
		Logger:   logger,
		Metrics:  provider.Metrics(),
	})
	if err != nil {
		return nil, nil, err
	}

	health := server.NewHealthChecker(map[string]server.Pinger{"store": st})
	web, err := server.NewWebServer(server.WebServerConfig{
		Addr:    cfg.HTTPAddr,
		OAuth:   oauthHandler,
		Health:  health,
		Logger:  logger,
		Metrics: provider.Metrics(),
	})
	if err != nil {
		return nil, nil, err
	}
	return web, health, nil
}

func closeStore(st *store.Store, logger *slog.Logger) {
	if err := st.Close(); err != nil {
		logger.Warn("failed to close credential store", logging.Err(err))
	}
}
