package main

import (
	"fmt"
	"os"
	"time"

	"alteran/kimai-agent/internal/config"
	"alteran/kimai-agent/internal/database"
	"alteran/kimai-agent/internal/kimai"
	"alteran/kimai-agent/internal/logger"
	"alteran/kimai-agent/internal/notify"
	"alteran/kimai-agent/internal/secrets"
	"alteran/kimai-agent/internal/snapshot"
	"alteran/kimai-agent/internal/sync"
	"alteran/kimai-agent/internal/version"

	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "kimaictl",
	Short: "Control the Kimai desktop agent",
	Long:  "kimaictl talks to the same Kimai server and local state as the kimai-agent menu-bar process.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", defaultConfigPath(), "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Verbose logging")

	rootCmd.AddCommand(configCmd, statusCmd, startCmd, stopCmd, restartCmd,
		projectsCmd, activitiesCmd, historyCmd, summaryCmd, snapshotCmd)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return home + "/.config/kimai-agent/config.yaml"
}

// env bundles everything a command needs against the shared state
type env struct {
	cfg       *config.Config
	log       *logger.Logger
	db        *database.DB
	secrets   *secrets.Store
	snapshots *snapshot.Store
	service   *sync.Service
}

// newEnv opens the shared database and constructs the sync service.
// Commands drive it directly; no polling loop is started.
func newEnv() (*env, error) {
	cfg, err := config.LoadConfig(flagConfig)
	if err != nil {
		return nil, err
	}

	log := logger.Nop()
	if flagVerbose {
		log, err = logger.New("debug", "console")
		if err != nil {
			return nil, err
		}
	}

	db, err := database.New(cfg.StoragePath, log.Logger)
	if err != nil {
		return nil, err
	}

	installID, err := db.InstallID()
	if err != nil {
		db.Close()
		return nil, err
	}

	secretStore := secrets.NewStore(db.DB, log.Logger)
	apiClient := kimai.NewClient(
		secretStore,
		time.Duration(cfg.Kimai.ConnectTimeout)*time.Second,
		time.Duration(cfg.Kimai.RequestTimeout)*time.Second,
		version.UserAgent(installID),
		log.Logger,
	)
	snapshotStore := snapshot.NewStore(db.DB, log.Logger)

	service := sync.NewService(
		apiClient,
		secretStore,
		snapshotStore,
		notify.New(false), // the agent process owns notifications
		sync.Options{
			RecentCount:     cfg.Kimai.RecentCount,
			HistoryPageSize: cfg.Kimai.HistoryPageSize,
		},
		nil,
		log.Logger,
	)

	return &env{
		cfg:       cfg,
		log:       log,
		db:        db,
		secrets:   secretStore,
		snapshots: snapshotStore,
		service:   service,
	}, nil
}

func (e *env) close() {
	if err := e.db.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "warning: failed to close database:", err)
	}
}

// requireConfigured fails fast with a hint when credentials are absent
func (e *env) requireConfigured() error {
	if !e.secrets.IsConfigured() {
		return fmt.Errorf("not configured: run 'kimaictl config set --url <server> --token <token>'")
	}
	return nil
}
