package snapshot

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Tracking is the reduced cross-process state published for widget-like
// read-only consumers. The agent overwrites it wholesale on every state
// transition and successful refresh.
type Tracking struct {
	IsTracking   bool
	ProjectName  *string
	ActivityName *string
	Begin        *time.Time
	LastSync     time.Time
}

// Store writes and reads the tracking snapshot through the shared
// database file. The agent is the only writer; consumers read.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore creates a snapshot store backed by the given database
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// Write replaces the snapshot row atomically
func (s *Store) Write(snap Tracking) error {
	var begin interface{}
	if snap.Begin != nil {
		begin = snap.Begin.UTC().Format(time.RFC3339)
	}
	var projectName, activityName interface{}
	if snap.ProjectName != nil {
		projectName = *snap.ProjectName
	}
	if snap.ActivityName != nil {
		activityName = *snap.ActivityName
	}

	_, err := s.db.Exec(`
		INSERT INTO tracking_snapshot (id, is_tracking, project_name, activity_name, begin_at, last_sync_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			is_tracking = excluded.is_tracking,
			project_name = excluded.project_name,
			activity_name = excluded.activity_name,
			begin_at = excluded.begin_at,
			last_sync_at = excluded.last_sync_at
	`, snap.IsTracking, projectName, activityName, begin, snap.LastSync.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write tracking snapshot: %w", err)
	}

	s.logger.Debug("Tracking snapshot written",
		zap.Bool("is_tracking", snap.IsTracking),
	)
	return nil
}

// Clear publishes a not-tracking snapshot
func (s *Store) Clear() error {
	return s.Write(Tracking{
		IsTracking: false,
		LastSync:   time.Now(),
	})
}

// Read returns the current snapshot; ok is false when none has ever
// been written
func (s *Store) Read() (Tracking, bool, error) {
	var (
		snap         Tracking
		projectName  sql.NullString
		activityName sql.NullString
		beginAt      sql.NullString
		lastSyncAt   sql.NullString
	)

	err := s.db.QueryRow(`
		SELECT is_tracking, project_name, activity_name, begin_at, last_sync_at
		FROM tracking_snapshot WHERE id = 1
	`).Scan(&snap.IsTracking, &projectName, &activityName, &beginAt, &lastSyncAt)
	if err == sql.ErrNoRows {
		return Tracking{}, false, nil
	}
	if err != nil {
		return Tracking{}, false, fmt.Errorf("failed to read tracking snapshot: %w", err)
	}

	if projectName.Valid {
		snap.ProjectName = &projectName.String
	}
	if activityName.Valid {
		snap.ActivityName = &activityName.String
	}
	if beginAt.Valid {
		if t, err := time.Parse(time.RFC3339, beginAt.String); err == nil {
			begin := t.Local()
			snap.Begin = &begin
		}
	}
	if lastSyncAt.Valid {
		if t, err := time.Parse(time.RFC3339, lastSyncAt.String); err == nil {
			snap.LastSync = t.Local()
		}
	}

	return snap, true, nil
}
