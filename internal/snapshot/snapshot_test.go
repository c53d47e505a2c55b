package snapshot

import (
	"path/filepath"
	"testing"
	"time"

	"alteran/kimai-agent/internal/database"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db.DB, zap.NewNop())
}

func TestReadBeforeWrite(t *testing.T) {
	store := newTestStore(t)
	_, ok, err := store.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if ok {
		t.Error("empty store returned a snapshot")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	project := "Website"
	activity := "Development"
	begin := time.Date(2026, 2, 18, 9, 0, 0, 0, time.UTC)
	if err := store.Write(Tracking{
		IsTracking:   true,
		ProjectName:  &project,
		ActivityName: &activity,
		Begin:        &begin,
		LastSync:     time.Date(2026, 2, 18, 9, 5, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	snap, ok, err := store.Read()
	if err != nil || !ok {
		t.Fatalf("Read = (ok=%v, err=%v)", ok, err)
	}
	if !snap.IsTracking {
		t.Error("IsTracking lost")
	}
	if snap.ProjectName == nil || *snap.ProjectName != "Website" {
		t.Errorf("ProjectName = %v", snap.ProjectName)
	}
	if snap.ActivityName == nil || *snap.ActivityName != "Development" {
		t.Errorf("ActivityName = %v", snap.ActivityName)
	}
	if snap.Begin == nil || !snap.Begin.Equal(begin) {
		t.Errorf("Begin = %v, want %v", snap.Begin, begin)
	}
}

func TestWriteOverwritesSingleRow(t *testing.T) {
	store := newTestStore(t)

	project := "Website"
	begin := time.Now()
	if err := store.Write(Tracking{IsTracking: true, ProjectName: &project, Begin: &begin, LastSync: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(); err != nil {
		t.Fatal(err)
	}

	snap, ok, err := store.Read()
	if err != nil || !ok {
		t.Fatalf("Read = (ok=%v, err=%v)", ok, err)
	}
	if snap.IsTracking {
		t.Error("Clear left IsTracking set")
	}
	if snap.ProjectName != nil {
		t.Errorf("Clear left ProjectName = %q", *snap.ProjectName)
	}
	if snap.Begin != nil {
		t.Errorf("Clear left Begin = %v", snap.Begin)
	}
}
