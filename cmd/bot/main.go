package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/siberianesports-creator/chatbotbecks/internal/ai"
	"github.com/siberianesports-creator/chatbotbecks/internal/config"
	"github.com/siberianesports-creator/chatbotbecks/internal/feature/admin"
	"github.com/siberianesports-creator/chatbotbecks/internal/feature/snapshot"
	"github.com/siberianesports-creator/chatbotbecks/internal/health"
	"github.com/siberianesports-creator/chatbotbecks/internal/logging"
	"github.com/siberianesports-creator/chatbotbecks/internal/metrics"
	"github.com/siberianesports-creator/chatbotbecks/internal/router"
	"github.com/siberianesports-creator/chatbotbecks/internal/store"
	"github.com/siberianesports-creator/chatbotbecks/internal/telegram"
)

const (
	mongoConnectTimeout     = 10 * time.Second
	mongoIndexTimeout       = 5 * time.Second
	mongoDisconnectTimeout  = 5 * time.Second
	adminBootstrapTimeout   = 5 * time.Second
	telegramShutdownTimeout = 10 * time.Second
	healthShutdownTimeout   = 5 * time.Second
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":    "startup",
		"mongo_db": cfg.MongoDB,
	}).Info("configuration loaded")

	connectCtx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	mongoManager, err := store.NewManager(connectCtx, cfg)
	cancel()
	if err != nil {
		logger.WithError(err).Error("mongo connection error")
		fmt.Fprintf(os.Stderr, "mongo connection error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "mongo_connect").Info("connected to mongo")

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), mongoIndexTimeout)
	if err := mongoManager.EnsureBaseIndexes(indexCtx); err != nil {
		cancelIndexes()
		logger.WithError(err).Error("mongo index setup error")
		fmt.Fprintf(os.Stderr, "mongo index setup error: %v\n", err)
		os.Exit(1)
	}
	cancelIndexes()

	logger.WithField("event", "mongo_indexes").Info("ensured base mongo indexes")

	adminRegistrar := admin.NewRegistrar(mongoManager.Users(), logger)
	adminCtx, cancelAdmin := context.WithTimeout(context.Background(), adminBootstrapTimeout)
	if err := adminRegistrar.EnsureAdmins(adminCtx, cfg.AdminIDs); err != nil {
		cancelAdmin()
		logger.WithError(err).Error("admin bootstrap error")
		fmt.Fprintf(os.Stderr, "admin bootstrap error: %v\n", err)
		os.Exit(1)
	}
	cancelAdmin()

	userStore := store.NewUserStore(mongoManager.Users(), logger)
	messageLog := store.NewMessageLog(mongoManager.Messages(), logger)
	statsProvider := store.NewStatsProvider(mongoManager.Users(), mongoManager.Messages())
	counters := metrics.NewInMemory()

	aiGateway := ai.NewGateway(ai.Config{
		OpenRouterBaseURL: cfg.OpenRouterBaseURL,
		OpenRouterAPIKey:  cfg.OpenRouterAPIKey,
		OpenRouterModel:   cfg.OpenRouterModel,
		GeminiBaseURL:     cfg.GeminiBaseURL,
		GeminiAPIKey:      cfg.GeminiAPIKey,
		GeminiModel:       cfg.GeminiModel,
		Timeout:           cfg.AITimeout,
	}, logger)

	// The telegram client doubles as the file fetcher for photo analysis, so
	// the router is wired in two steps.
	messageRouter := router.New(cfg, userStore, messageLog, aiGateway, nil, statsProvider, counters, logger)

	tgClient, err := telegram.NewClient(cfg, messageRouter, logger)
	if err != nil {
		logger.WithError(err).Error("telegram client setup error")
		fmt.Fprintf(os.Stderr, "telegram client setup error: %v\n", err)
		os.Exit(1)
	}
	messageRouter.SetFileFetcher(tgClient)

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	healthServer := health.NewServer(cfg.HTTPPort, mongoManager, counters, logger)
	go func() {
		if err := healthServer.ListenAndServe(); err != nil {
			logger.WithError(err).Error("health server error")
		}
	}()

	var snapshotJob *snapshot.Job
	if cfg.EnableStatistics {
		snapshotJob = snapshot.NewJob(statsProvider, mongoManager.Statistics(), logger)
		if err := snapshotJob.Start(cfg.SnapshotSchedule); err != nil {
			logger.WithError(err).Error("snapshot scheduler error")
			fmt.Fprintf(os.Stderr, "snapshot scheduler error: %v\n", err)
			os.Exit(1)
		}
	}

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telegramCtx, cancelTelegram := context.WithCancel(context.Background())
	tgDone := make(chan struct{})

	go func() {
		tgClient.Start(telegramCtx)
		close(tgDone)
	}()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping telegram polling")
	case <-tgDone:
		logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
	}

	cancelTelegram()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), telegramShutdownTimeout)
	select {
	case <-tgDone:
	case <-waitCtx.Done():
		logger.WithField("event", "telegram_shutdown_timeout").Warn("timed out waiting for telegram client to stop")
	}
	cancelWait()

	if snapshotJob != nil {
		snapshotJob.Stop()
	}

	healthCtx, cancelHealth := context.WithTimeout(context.Background(), healthShutdownTimeout)
	if err := healthServer.Shutdown(healthCtx); err != nil {
		logger.WithError(err).Error("health server shutdown error")
	}
	cancelHealth()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	if err := mongoManager.Close(shutdownCtx); err != nil {
		logger.WithError(err).Error("mongo disconnect error")
	} else {
		logger.WithField("event", "mongo_disconnect").Info("mongo client disconnected")
	}
	cancelShutdown()

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}
