package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
	logger *zap.Logger
}

func New(storagePath string, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", storagePath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &DB{
		DB:     db,
		logger: logger,
	}

	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Database connection established", zap.String("path", storagePath))
	return database, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		// Named secrets (server base URL, API token)
		`CREATE TABLE IF NOT EXISTS secrets (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		// Tracking snapshot shared with read-only consumers.
		// Single row, overwritten wholesale by the agent.
		`CREATE TABLE IF NOT EXISTS tracking_snapshot (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			is_tracking INTEGER NOT NULL DEFAULT 0,
			project_name TEXT,
			activity_name TEXT,
			begin_at TIMESTAMP,
			last_sync_at TIMESTAMP
		)`,
		// Install identity
		`CREATE TABLE IF NOT EXISTS install_info (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			install_id TEXT UNIQUE NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	db.logger.Info("Database migrations completed")
	return nil
}

// InstallID returns the persistent install identifier, generating one
// on first call
func (db *DB) InstallID() (string, error) {
	var id string
	err := db.QueryRow(`SELECT install_id FROM install_info WHERE id = 1`).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to query install id: %w", err)
	}

	id = uuid.New().String()
	if _, err := db.Exec(`INSERT INTO install_info (id, install_id) VALUES (1, ?)`, id); err != nil {
		return "", fmt.Errorf("failed to store install id: %w", err)
	}

	db.logger.Info("Generated install ID", zap.String("install_id", id))
	return id, nil
}

func (db *DB) Close() error {
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.logger.Info("Database connection closed")
	return nil
}
