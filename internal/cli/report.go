package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/i474232898/weather-report/internal/config"
	"github.com/i474232898/weather-report/internal/fetch"
	"github.com/i474232898/weather-report/internal/logging"
	"github.com/i474232898/weather-report/internal/note"
	"github.com/i474232898/weather-report/internal/report"
	"github.com/i474232898/weather-report/internal/store"
	"github.com/i474232898/weather-report/internal/weather"
	"github.com/i474232898/weather-report/internal/wechat"
)

// noteSources is replaced in tests.
var noteSources = note.DefaultSources

func reportAction(cmd *cobra.Command, _ []string) error {
	logger, err := logging.New(debugLog)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for every outbound call.
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	fetcher := fetch.New(httpClient, cfg.FetchPolicy(), logger)

	lookup := weather.NewService(fetcher, regions(), nil, logger)
	notes := note.NewProvider(
		noteSources(fetcher.WithPolicy(cfg.NotePolicy()), cfg.NoteFeedURL),
		nil, nil, logger,
	)

	var sender report.Sender
	if dryRun {
		sender = report.LogSender{Link: cfg.MessageURL, Logger: logger}
	} else {
		tokens, closeStore, err := openTokenStore(cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		tm := wechat.NewTokenManager(fetcher,
			wechat.Credentials{AppID: cfg.AppID, AppSecret: cfg.AppSecret},
			tokens, logger,
			wechat.WithSafetyMargin(cfg.TokenSafetyMargin),
		)
		sender = wechat.NewDispatcher(fetcher, tm, logger, wechat.WithMessageLink(cfg.MessageURL))
	}

	orch := report.New(lookup, notes, sender,
		report.Recipient{OpenID: cfg.OpenID, TemplateID: cfg.TemplateID},
		cfg.CityDelay, logger,
	)
	summary := orch.Run(ctx, cfg.Cities)

	if summary.Succeeded == 0 {
		return fmt.Errorf("no city report succeeded (%d attempted)", len(summary.Results))
	}
	return nil
}

// loadConfig validates credentials only when messages are really sent.
func loadConfig(logger *zap.Logger) (config.Config, error) {
	if !dryRun {
		return config.Load(envFile, cityFlags, logger)
	}
	cfg, err := config.Read(envFile, cityFlags, logger)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.ValidateDryRun(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openTokenStore selects redis when REDIS_URL is set, memory otherwise.
func openTokenStore(cfg config.Config, logger *zap.Logger) (wechat.TokenStore, func(), error) {
	if cfg.RedisURL == "" {
		return store.NewMemoryStore(), func() {}, nil
	}
	rs, err := store.NewRedisStoreFromURL(cfg.RedisURL, cfg.RedisTokenKey)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("sharing access token through redis")
	return rs, func() { _ = rs.Close() }, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
