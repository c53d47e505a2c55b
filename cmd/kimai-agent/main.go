package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alteran/kimai-agent/internal/config"
	"alteran/kimai-agent/internal/database"
	"alteran/kimai-agent/internal/kimai"
	"alteran/kimai-agent/internal/logger"
	"alteran/kimai-agent/internal/notify"
	"alteran/kimai-agent/internal/secrets"
	"alteran/kimai-agent/internal/snapshot"
	"alteran/kimai-agent/internal/sync"
	"alteran/kimai-agent/internal/tray"
	"alteran/kimai-agent/internal/version"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", defaultConfigPath(), "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting kimai-agent",
		zap.String("version", version.Version),
		zap.String("env", cfg.Env),
		zap.String("config_path", *configPath),
	)

	db, err := database.New(cfg.StoragePath, log.Logger)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	installID, err := db.InstallID()
	if err != nil {
		log.Fatal("Failed to resolve install ID", zap.Error(err))
	}

	secretStore := secrets.NewStore(db.DB, log.Logger)
	if !secretStore.IsConfigured() {
		log.Warn("Server credentials not configured; set them with 'kimaictl config set'")
	}

	apiClient := kimai.NewClient(
		secretStore,
		time.Duration(cfg.Kimai.ConnectTimeout)*time.Second,
		time.Duration(cfg.Kimai.RequestTimeout)*time.Second,
		version.UserAgent(installID),
		log.Logger,
	)

	snapshotStore := snapshot.NewStore(db.DB, log.Logger)
	notifier := notify.New(cfg.Notifications.Enabled)

	service := sync.NewService(
		apiClient,
		secretStore,
		snapshotStore,
		notifier,
		sync.Options{
			PollInterval:    time.Duration(cfg.Kimai.RefreshInterval) * time.Second,
			RecentCount:     cfg.Kimai.RecentCount,
			HistoryPageSize: cfg.Kimai.HistoryPageSize,
		},
		nil,
		log.Logger,
	)

	service.Start()

	log.Info("kimai-agent started",
		zap.String("install_id", installID),
		zap.Bool("configured", secretStore.IsConfigured()),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	if cfg.Tray.Enabled {
		tr := tray.New(service, cfg.CurrencySuffix, nil, log.Logger)
		go func() {
			sig := <-quit
			log.Info("Received shutdown signal", zap.String("signal", sig.String()))
			tr.Quit()
		}()
		// Blocks until the tray loop exits (Quit menu item or signal)
		tr.Run()
	} else {
		sig := <-quit
		log.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	log.Info("Shutting down kimai-agent...")

	done := make(chan struct{})
	go func() {
		service.Stop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("Sync service stopped successfully")
	case <-time.After(3 * time.Second):
		log.Warn("Shutdown timeout reached, forcing immediate exit")
		os.Exit(1)
	}

	log.Info("kimai-agent stopped")
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return home + "/.config/kimai-agent/config.yaml"
}
