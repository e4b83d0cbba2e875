package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KotFed0t/trade_tracker_bot/config"
	"github.com/KotFed0t/trade_tracker_bot/data"
	"github.com/KotFed0t/trade_tracker_bot/data/cache"
	"github.com/KotFed0t/trade_tracker_bot/data/repository/csvledger"
	"github.com/KotFed0t/trade_tracker_bot/data/repository/ledger"
	"github.com/KotFed0t/trade_tracker_bot/data/session"
	"github.com/KotFed0t/trade_tracker_bot/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/KotFed0t/trade_tracker_bot/internal/externalApi/footballApi"
	"github.com/KotFed0t/trade_tracker_bot/internal/externalApi/yahooApi"
	"github.com/KotFed0t/trade_tracker_bot/internal/reportGenerator/chartGenerator"
	"github.com/KotFed0t/trade_tracker_bot/internal/reportGenerator/xlsxGenerator"
	"github.com/KotFed0t/trade_tracker_bot/internal/scheduler"
	"github.com/KotFed0t/trade_tracker_bot/internal/service"
	"github.com/KotFed0t/trade_tracker_bot/internal/service/footballService"
	"github.com/KotFed0t/trade_tracker_bot/internal/service/portfolioService"
	"github.com/KotFed0t/trade_tracker_bot/internal/tgbot"
	"github.com/KotFed0t/trade_tracker_bot/internal/transport/telegram"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ledgerRepo, closeStore := newLedgerStore(cfg)
	defer closeStore()

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient, cfg)
	redisSession := session.NewRedisSession(redisClient, cfg)

	yahooApiClient := yahooApi.New(cfg)
	footballApiClient := footballApi.New(cfg)

	reportGenerator := xlsxGenerator.New()
	equityCharts := chartGenerator.New()

	var cloudStorage portfolioService.CloudStorage
	var driveApi *googleDriveApi.GoogleDriveApi
	if cfg.GoogleDrive.Enabled {
		driveApi = googleDriveApi.New(ctx, cfg)
		cloudStorage = driveApi
	}

	portfolioSrv := portfolioService.New(ledgerRepo, redisCache, yahooApiClient, reportGenerator, equityCharts, cloudStorage, cfg)
	footballSrv := footballService.New(footballApiClient, cfg)

	sched := scheduler.New()
	sched.NewIntervalJob("fill quote cache", portfolioSrv.WarmQuoteCache, cfg.Jobs.FillQuoteCacheInterval, true)
	sched.NewCrontabJob("daily snapshot", func(ctx context.Context) error {
		_, err := portfolioSrv.Revalue(ctx, time.Now())
		if errors.Is(err, service.ErrNotInitialized) {
			return nil
		}
		return err
	}, cfg.Jobs.SnapshotCrontab, false)
	if driveApi != nil {
		sched.NewIntervalJob("drive cleanup", driveApi.DeleteOldFiles, cfg.Jobs.DriveCleanupInterval, false)
	}
	sched.Start()
	defer sched.Stop()

	tgController := telegram.NewController(cfg, portfolioSrv, footballSrv, redisSession)

	tgBot := tgbot.New(cfg, tgController, redisSession)
	tgBot.Start()
	defer tgBot.Stop()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt
}

// newLedgerStore builds the ledger repository for the configured backend.
// The returned func closes whatever the backend opened.
func newLedgerStore(cfg *config.Config) (portfolioService.Repository, func()) {
	switch cfg.Storage.Backend {
	case "postgres":
		db := data.NewPostgresClient(cfg)
		return ledger.New(db), func() { _ = db.Close() }
	case "csv":
		repo, err := csvledger.New(cfg)
		if err != nil {
			slog.Error("csv ledger open error", slog.String("err", err.Error()))
			panic(err)
		}
		return repo, func() {}
	default:
		db := data.NewSQLiteClient(cfg)
		return ledger.New(db), func() { _ = db.Close() }
	}
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
