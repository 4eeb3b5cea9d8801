package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/colby/bambulog/internal/config"
	"github.com/colby/bambulog/internal/logger"
	"github.com/colby/bambulog/internal/mqtt"
	"github.com/colby/bambulog/internal/repository"
	"github.com/colby/bambulog/internal/service"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}
	if err := cfg.ValidatePrinter(); err != nil {
		logger.Fatal("Invalid config: %v", err)
	}

	// Initialize logger
	appLogger := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		File:        cfg.Log.File,
		ServiceName: "bambulog-listener",
	})
	logger.SetDefaultLogger(appLogger)

	appLogger.WithFields(logger.Fields{
		logger.FieldSerial: cfg.Printer.Serial,
		"check_interval":   cfg.Tracker.CheckInterval.String(),
	}).Info("Starting print job listener")

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	jobRepo := repository.NewJobRepository(db)

	tracker := service.NewTrackerService(jobRepo, appLogger, &service.TrackerConfig{
		CheckInterval: cfg.Tracker.CheckInterval,
		StoreTimeout:  cfg.Tracker.StoreTimeout,
		TraceFile:     cfg.Tracker.TraceFile,
	})

	listener := mqtt.NewListener(&mqtt.Config{
		IP:         cfg.Printer.IP,
		Port:       cfg.Printer.Port,
		AccessCode: cfg.Printer.AccessCode,
		Serial:     cfg.Printer.Serial,
	}, tracker.HandleMessage)

	connectCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := listener.Connect(connectCtx); err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to printer")
	}

	// Wait for interrupt signal; the paho client reconnects on its own
	// until then.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down listener...")
	listener.Close()
	appLogger.Info("Listener exited")
}
