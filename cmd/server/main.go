package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/foliotrack/foliotrack-backend/internal/adapter/marketdata"
	"github.com/foliotrack/foliotrack-backend/internal/adapter/notification"
	"github.com/foliotrack/foliotrack-backend/internal/adapter/repository/memory"
	"github.com/foliotrack/foliotrack-backend/internal/adapter/repository/postgres"
	"github.com/foliotrack/foliotrack-backend/internal/config"
	"github.com/foliotrack/foliotrack-backend/internal/dispatch"
	"github.com/foliotrack/foliotrack-backend/internal/domain"
	"github.com/foliotrack/foliotrack-backend/internal/usecase/income"
	"github.com/foliotrack/foliotrack-backend/internal/usecase/ingest"
	"github.com/foliotrack/foliotrack-backend/internal/usecase/notify"
	"github.com/foliotrack/foliotrack-backend/internal/usecase/valuation"
)

func main() {
	// 1. Configuration and logging
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	// 2. Event log (Postgres when configured, in-memory otherwise)
	var eventLog domain.EventLog
	if cfg.DBConnStr != "" {
		db, err := postgres.NewDB(cfg.DBConnStr)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		eventLog = postgres.NewEventLog(db)
		logger.Info("using postgres event log")
	} else {
		eventLog = memory.NewEventLog()
		logger.Warn("no database configured, using in-memory event log")
	}

	// 3. Dispatcher and external contracts
	dispatcher := dispatch.New(logger)

	marketData := marketdata.NewClient(marketdata.ClientConfig{
		BaseURL:           cfg.MarketData.BaseURL,
		APIKey:            cfg.MarketData.APIKey,
		RequestsPerSecond: cfg.MarketData.RequestsPerSecond,
		Timeout:           cfg.MarketData.Timeout,
	}, logger)

	// 4. Projections and services
	valuationService := valuation.NewValuationService(marketData, eventLog, logger, valuation.Config{
		MaxPriceAge:   cfg.MaxPriceAge,
		LookupTimeout: cfg.LookupTimeout,
	})
	valuationService.Register(dispatcher)

	incomeService := income.NewIncomeService(eventLog)
	_ = incomeService // consumed by the API layer, which lives outside this core

	ingestService := ingest.NewIngestService(eventLog, dispatcher, logger)
	_ = ingestService

	if cfg.NotifyWebhookURL != "" {
		notifier := notification.NewWebhookNotifier(cfg.NotifyWebhookURL, cfg.NotifyTimeout, logger)
		bridge := notify.NewNotificationBridge(notifier, valuationService, logger, cfg.BaseCurrency, domain.RateTable{})
		bridge.Register(dispatcher)
	}

	// 5. Live price feed
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.PriceFeed.URL != "" {
		stream := marketdata.NewStream(marketdata.StreamConfig{
			URL:              cfg.PriceFeed.URL,
			Symbols:          cfg.PriceFeed.Symbols,
			HandshakeTimeout: cfg.MarketData.Timeout,
			ReadTimeout:      2 * time.Minute,
			ReconnectDelay:   time.Second,
			ReconnectMax:     time.Minute,
			Source:           cfg.PriceFeed.Source,
		}, dispatcher, logger)
		go func() {
			if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
				logger.WithError(err).Error("price feed stopped")
			}
		}()
	}

	logger.Info("portfolio engine running")
	waitForShutdown(logger, cancel)
}

// waitForShutdown waits for SIGTERM or SIGINT and cancels the run context.
func waitForShutdown(logger *logrus.Logger, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.Infof("Received signal: %v. Shutting down gracefully...", sig)
	cancel()
}
