package sync

import (
	"fmt"
	"sync"
	"time"

	"alteran/kimai-agent/internal/kimai"
	"alteran/kimai-agent/internal/snapshot"
	"alteran/kimai-agent/internal/timeutil"

	"go.uber.org/zap"
)

// SnapshotWriter publishes the reduced tracking state for read-only
// cross-process consumers
type SnapshotWriter interface {
	Write(snapshot.Tracking) error
	Clear() error
}

// Notifier raises desktop notifications on tracking transitions
type Notifier interface {
	TrackingStarted(project, activity string) error
	TrackingStopped(project, elapsed string) error
	Disconnected(reason string) error
}

// Options tunes the sync service
type Options struct {
	PollInterval    time.Duration
	RecentCount     int
	HistoryPageSize int
}

// rateProbePageSize bounds the historical fetch used for hourly-rate
// derivation
const rateProbePageSize = 5

// Service owns all Kimai API calls and the cached collections. All
// mutable state is guarded by one mutex; refreshes are serialized and
// re-entrant calls are dropped, so at most one refresh's side effects
// apply at a time.
type Service struct {
	client    *kimai.Client
	creds     kimai.CredentialSource
	snapshots SnapshotWriter
	notifier  Notifier
	clock     *Clock
	logger    *zap.Logger
	opts      Options

	mu             sync.RWMutex
	refreshing     bool
	connected      bool
	lastError      string
	projects       []kimai.Project
	activities     []kimai.Activity
	active         *kimai.Timesheet
	recent         []kimai.Timesheet
	history        []kimai.Timesheet
	historyPage    int
	hasMoreHistory bool
	hourlyRate     float64
	ratedProjectID int

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewService creates the sync service. onTick may be nil; when set it
// receives the elapsed time once per second while tracking.
func NewService(
	client *kimai.Client,
	creds kimai.CredentialSource,
	snapshots SnapshotWriter,
	notifier Notifier,
	opts Options,
	onTick func(time.Duration),
	logger *zap.Logger,
) *Service {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.RecentCount <= 0 {
		opts.RecentCount = 5
	}
	if opts.HistoryPageSize <= 0 {
		opts.HistoryPageSize = 50
	}

	return &Service{
		client:         client,
		creds:          creds,
		snapshots:      snapshots,
		notifier:       notifier,
		clock:          NewClock(onTick, logger),
		logger:         logger,
		opts:           opts,
		historyPage:    1,
		hasMoreHistory: true,
		stopChan:       make(chan struct{}),
	}
}

// Start runs an immediate refresh and begins the polling loop
func (s *Service) Start() {
	s.Refresh()

	s.wg.Add(1)
	go s.pollLoop()

	s.logger.Info("Sync service started",
		zap.Duration("poll_interval", s.opts.PollInterval),
	)
}

// Stop tears down the polling loop and the elapsed clock. In-flight
// HTTP calls are not cancelled; the loop exits after the current cycle.
func (s *Service) Stop() {
	s.mu.Lock()
	select {
	case <-s.stopChan:
		s.mu.Unlock()
		return
	default:
		close(s.stopChan)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.clock.Stop()

	s.logger.Info("Sync service stopped")
}

func (s *Service) pollLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Refresh()
		case <-s.stopChan:
			return
		}
	}
}

// Configured reports whether both credentials are present
func (s *Service) Configured() bool {
	_, _, ok := s.creds.Credentials()
	return ok
}

// Refresh fetches the active and recent entries and reconciles local
// state. A refresh already in flight makes this call a no-op, as does
// missing configuration. Failures downgrade to disconnected without
// touching cached collections.
func (s *Service) Refresh() {
	if !s.Configured() {
		return
	}

	s.mu.Lock()
	if s.refreshing {
		s.mu.Unlock()
		return
	}
	s.refreshing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.refreshing = false
		s.mu.Unlock()
	}()

	s.loadCatalogsIfEmpty()

	active, err := s.client.ActiveTimesheets()
	if err != nil {
		s.markDisconnected(err)
		return
	}
	recent, err := s.client.RecentTimesheets(s.opts.RecentCount)
	if err != nil {
		s.markDisconnected(err)
		return
	}

	var activeTS *kimai.Timesheet
	if len(active) > 0 {
		ts := active[0]
		activeTS = &ts
	}

	s.mu.Lock()
	s.active = activeTS
	s.recent = recent
	s.mu.Unlock()

	if activeTS != nil {
		if begin, err := activeTS.BeginTime(); err == nil {
			s.clock.Start(begin)
		} else {
			s.logger.Warn("Active entry has unparseable begin",
				zap.Int("timesheet_id", activeTS.ID),
				zap.String("begin", activeTS.Begin),
			)
		}
		s.mu.RLock()
		needRate := s.ratedProjectID != activeTS.ProjectID
		s.mu.RUnlock()
		if needRate {
			s.resolveHourlyRate(activeTS.ProjectID, activeTS.ActivityID)
		}
	} else {
		s.clock.Stop()
		s.mu.Lock()
		s.hourlyRate = 0
		s.ratedProjectID = 0
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.connected = true
	s.lastError = ""
	s.mu.Unlock()

	s.publishSnapshot()
}

// loadCatalogsIfEmpty lazily populates the project and activity caches.
// Failures here are tolerated and retried on the next cycle.
func (s *Service) loadCatalogsIfEmpty() {
	s.mu.RLock()
	populated := len(s.projects) > 0
	s.mu.RUnlock()
	if populated {
		return
	}

	projects, err := s.client.Projects()
	if err != nil {
		s.logger.Warn("Failed to load projects", zap.Error(err))
		return
	}
	activities, err := s.client.Activities(nil)
	if err != nil {
		s.logger.Warn("Failed to load activities", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.projects = projects
	s.activities = activities
	s.mu.Unlock()

	s.logger.Info("Catalogs loaded",
		zap.Int("projects", len(projects)),
		zap.Int("activities", len(activities)),
	)
}

// markDisconnected records the failure without discarding caches
func (s *Service) markDisconnected(err error) {
	s.mu.Lock()
	wasConnected := s.connected
	s.connected = false
	s.lastError = err.Error()
	s.mu.Unlock()

	s.logger.Warn("Refresh failed", zap.Error(err))

	if wasConnected && s.notifier != nil {
		if nerr := s.notifier.Disconnected(err.Error()); nerr != nil {
			s.logger.Debug("Notification failed", zap.Error(nerr))
		}
	}
}

// resolveHourlyRate derives the hourly rate for the active project:
// first from a completed cached entry with rate and duration, then
// from a small historical fetch for the project, then project rate
// definitions, then activity rate definitions. An unresolved rate is
// left at zero and not cached, so the next cycle retries.
func (s *Service) resolveHourlyRate(projectID, activityID int) {
	s.mu.RLock()
	candidates := make([]kimai.Timesheet, 0, len(s.recent)+len(s.history))
	candidates = append(candidates, s.recent...)
	candidates = append(candidates, s.history...)
	s.mu.RUnlock()

	if rate, ok := referenceRate(candidates, projectID); ok {
		s.cacheRate(projectID, rate, "cached entry")
		return
	}

	probe, err := s.client.TimesheetsForProject(projectID, 1, rateProbePageSize)
	if err == nil {
		if rate, ok := referenceRate(probe, projectID); ok {
			s.cacheRate(projectID, rate, "historical entry")
			return
		}
	} else {
		s.logger.Debug("Rate probe fetch failed", zap.Error(err))
	}

	if rates, err := s.client.ProjectRates(projectID); err == nil {
		if rate, ok := preferredHourlyRate(rates); ok {
			s.cacheRate(projectID, rate, "project rate")
			return
		}
	} else {
		s.logger.Debug("Project rates fetch failed", zap.Error(err))
	}

	if rates, err := s.client.ActivityRates(activityID); err == nil {
		if rate, ok := preferredHourlyRate(rates); ok {
			s.cacheRate(projectID, rate, "activity rate")
			return
		}
	} else {
		s.logger.Debug("Activity rates fetch failed", zap.Error(err))
	}

	s.mu.Lock()
	s.hourlyRate = 0
	s.ratedProjectID = 0
	s.mu.Unlock()
}

func (s *Service) cacheRate(projectID int, rate float64, source string) {
	s.mu.Lock()
	s.hourlyRate = rate
	s.ratedProjectID = projectID
	s.mu.Unlock()

	s.logger.Info("Hourly rate resolved",
		zap.Int("project_id", projectID),
		zap.Float64("rate", rate),
		zap.String("source", source),
	)
}

// referenceRate finds a completed entry for the project carrying both
// a positive rate and duration, and derives rate / (duration/3600)
func referenceRate(sheets []kimai.Timesheet, projectID int) (float64, bool) {
	for _, ts := range sheets {
		if ts.ProjectID != projectID || ts.IsActive() {
			continue
		}
		if ts.Rate == nil || *ts.Rate <= 0 {
			continue
		}
		if ts.Duration == nil || *ts.Duration <= 0 {
			continue
		}
		return *ts.Rate / (float64(*ts.Duration) / 3600.0), true
	}
	return 0, false
}

// preferredHourlyRate picks a non-fixed rate, preferring one scoped to
// a user, else the first non-fixed one
func preferredHourlyRate(rates []kimai.Rate) (float64, bool) {
	var hourly []kimai.Rate
	for _, r := range rates {
		if !r.IsFixed {
			hourly = append(hourly, r)
		}
	}

	var pick *kimai.Rate
	for i := range hourly {
		if hourly[i].User != nil {
			pick = &hourly[i]
			break
		}
	}
	if pick == nil && len(hourly) > 0 {
		pick = &hourly[0]
	}

	if pick != nil && pick.Rate > 0 {
		return pick.Rate, true
	}
	return 0, false
}

// StartTimer starts a new entry on the server and transitions to
// tracking
func (s *Service) StartTimer(projectID, activityID int, description *string) error {
	sheet, err := s.client.StartTimesheet(projectID, activityID, description)
	if err != nil {
		s.recordError(err)
		return err
	}

	s.mu.Lock()
	s.active = &sheet
	projects := s.projects
	activities := s.activities
	s.mu.Unlock()

	if begin, berr := sheet.BeginTime(); berr == nil {
		s.clock.Start(begin)
	}

	s.logger.Info("Timer started",
		zap.Int("timesheet_id", sheet.ID),
		zap.Int("project_id", projectID),
		zap.Int("activity_id", activityID),
	)

	if s.notifier != nil {
		_ = s.notifier.TrackingStarted(
			sheet.ResolvedProjectName(projects),
			sheet.ResolvedActivityName(activities),
		)
	}

	s.publishSnapshot()
	s.Refresh()
	return nil
}

// StopTimer stops the active entry and transitions to idle
func (s *Service) StopTimer() error {
	s.mu.RLock()
	active := s.active
	projects := s.projects
	s.mu.RUnlock()

	if active == nil {
		return fmt.Errorf("no active entry")
	}

	elapsed := s.clock.Elapsed()

	if _, err := s.client.StopTimesheet(active.ID); err != nil {
		s.recordError(err)
		return err
	}

	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()
	s.clock.Stop()

	s.logger.Info("Timer stopped",
		zap.Int("timesheet_id", active.ID),
		zap.Duration("elapsed", elapsed),
	)

	if s.notifier != nil {
		_ = s.notifier.TrackingStopped(
			active.ResolvedProjectName(projects),
			timeutil.FormatElapsed(elapsed),
		)
	}

	s.publishSnapshot()
	s.Refresh()
	return nil
}

// RestartTimer starts a fresh entry copying the given one, replacing
// the active entry and resetting the elapsed clock
func (s *Service) RestartTimer(timesheetID int) error {
	sheet, err := s.client.RestartTimesheet(timesheetID)
	if err != nil {
		s.recordError(err)
		return err
	}

	s.mu.Lock()
	s.active = &sheet
	projects := s.projects
	activities := s.activities
	s.mu.Unlock()

	if begin, berr := sheet.BeginTime(); berr == nil {
		s.clock.Start(begin)
	}

	s.logger.Info("Timer restarted",
		zap.Int("source_id", timesheetID),
		zap.Int("timesheet_id", sheet.ID),
	)

	if s.notifier != nil {
		_ = s.notifier.TrackingStarted(
			sheet.ResolvedProjectName(projects),
			sheet.ResolvedActivityName(activities),
		)
	}

	s.publishSnapshot()
	s.Refresh()
	return nil
}

// LoadHistory fetches the next page of historical entries. reset
// clears the cursor and accumulated list first. The last page is
// detected by a short page.
func (s *Service) LoadHistory(reset bool) error {
	s.mu.Lock()
	if reset {
		s.historyPage = 1
		s.history = nil
		s.hasMoreHistory = true
	}
	if !s.hasMoreHistory {
		s.mu.Unlock()
		return nil
	}
	page := s.historyPage
	s.mu.Unlock()

	sheets, err := s.client.Timesheets(page, s.opts.HistoryPageSize)
	if err != nil {
		s.recordError(err)
		return err
	}

	s.mu.Lock()
	s.history = append(s.history, sheets...)
	s.hasMoreHistory = len(sheets) == s.opts.HistoryPageSize
	s.historyPage++
	s.mu.Unlock()

	s.logger.Debug("History page loaded",
		zap.Int("page", page),
		zap.Int("count", len(sheets)),
	)
	return nil
}

// TestConnection verifies the configured credentials against the
// current-user endpoint
func (s *Service) TestConnection() error {
	_, err := s.client.CurrentUser()
	return err
}

func (s *Service) recordError(err error) {
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}

// publishSnapshot republishes the reduced tracking state. Publication
// failures are logged, never surfaced.
func (s *Service) publishSnapshot() {
	s.mu.RLock()
	active := s.active
	projects := s.projects
	activities := s.activities
	s.mu.RUnlock()

	if active == nil {
		if err := s.snapshots.Clear(); err != nil {
			s.logger.Warn("Failed to clear tracking snapshot", zap.Error(err))
		}
		return
	}

	projectName := active.ResolvedProjectName(projects)
	activityName := active.ResolvedActivityName(activities)
	snap := snapshot.Tracking{
		IsTracking:   true,
		ProjectName:  &projectName,
		ActivityName: &activityName,
		LastSync:     time.Now(),
	}
	if begin, err := active.BeginTime(); err == nil {
		snap.Begin = &begin
	}

	if err := s.snapshots.Write(snap); err != nil {
		s.logger.Warn("Failed to write tracking snapshot", zap.Error(err))
	}
}
