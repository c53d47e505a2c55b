package secrets

import (
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Secret names recognized by the store.
const (
	KeyBaseURL  = "base_url"
	KeyAPIToken = "api_token"
)

// Store persists named secrets in the agent's private database.
// It survives restarts and is scoped to the agent's own storage file.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore creates a secret store backed by the given database
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// Get returns the named secret, or ok=false when it is absent
func (s *Store) Get(name string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM secrets WHERE name = ?`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read secret %s: %w", name, err)
	}
	return value, true, nil
}

// Set stores the named secret. An empty value deletes the entry.
func (s *Store) Set(name, value string) error {
	if value == "" {
		return s.Delete(name)
	}

	_, err := s.db.Exec(`
		INSERT INTO secrets (name, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, name, value)
	if err != nil {
		return fmt.Errorf("failed to store secret %s: %w", name, err)
	}

	s.logger.Debug("Secret stored", zap.String("name", name))
	return nil
}

// Delete removes the named secret
func (s *Store) Delete(name string) error {
	if _, err := s.db.Exec(`DELETE FROM secrets WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete secret %s: %w", name, err)
	}
	s.logger.Debug("Secret deleted", zap.String("name", name))
	return nil
}

// BaseURL returns the configured server base URL, if present
func (s *Store) BaseURL() (string, bool, error) {
	return s.Get(KeyBaseURL)
}

// APIToken returns the configured API token, if present
func (s *Store) APIToken() (string, bool, error) {
	return s.Get(KeyAPIToken)
}

// IsConfigured reports whether both the base URL and API token are present
func (s *Store) IsConfigured() bool {
	_, hasURL, err := s.BaseURL()
	if err != nil || !hasURL {
		return false
	}
	_, hasToken, err := s.APIToken()
	return err == nil && hasToken
}

// Credentials returns the base URL and token together. ok is false unless
// both are present.
func (s *Store) Credentials() (baseURL, token string, ok bool) {
	baseURL, hasURL, err := s.BaseURL()
	if err != nil || !hasURL {
		return "", "", false
	}
	token, hasToken, err := s.APIToken()
	if err != nil || !hasToken {
		return "", "", false
	}
	return baseURL, token, true
}

// NormalizeBaseURL cleans up a user-supplied server URL: trims whitespace
// and slashes, strips a trailing /api, upgrades http to https and defaults
// to https when no scheme is given.
func NormalizeBaseURL(raw string) string {
	url := strings.TrimSpace(raw)
	url = strings.Trim(url, "/")

	if strings.HasSuffix(url, "/api") {
		url = url[:len(url)-len("/api")]
	}

	if strings.HasPrefix(url, "http://") {
		url = "https://" + strings.TrimPrefix(url, "http://")
	}

	if !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	return url
}
