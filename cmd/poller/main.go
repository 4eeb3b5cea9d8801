package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/colby/bambulog/internal/config"
	"github.com/colby/bambulog/internal/logger"
	"github.com/colby/bambulog/internal/poller"
	"github.com/colby/bambulog/internal/repository"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		File:        cfg.Log.File,
		ServiceName: "bambulog-poller",
	})
	logger.SetDefaultLogger(appLogger)

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	jobRepo := repository.NewJobRepository(db)

	p := poller.New(jobRepo, &poller.Config{
		Interval:       cfg.Poller.Interval,
		WebhookURL:     cfg.Poller.WebhookURL,
		CursorFile:     cfg.Poller.CursorFile,
		RequestTimeout: cfg.Poller.RequestTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		appLogger.Info("Received shutdown signal, stopping poller...")
		cancel()
	}()

	p.Run(ctx)
}
