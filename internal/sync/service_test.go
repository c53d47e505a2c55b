package sync

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"alteran/kimai-agent/internal/kimai"
	"alteran/kimai-agent/internal/snapshot"
	"alteran/kimai-agent/internal/timeutil"

	"go.uber.org/zap"
)

type staticCreds struct {
	baseURL string
	ok      bool
}

func (s staticCreds) Credentials() (string, string, bool) {
	return s.baseURL, "secret", s.ok
}

type fakeSnapshots struct {
	mu     sync.Mutex
	writes []snapshot.Tracking
	clears int
}

func (f *fakeSnapshots) Write(snap snapshot.Tracking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, snap)
	return nil
}

func (f *fakeSnapshots) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return nil
}

func (f *fakeSnapshots) lastWrite() (snapshot.Tracking, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return snapshot.Tracking{}, false
	}
	return f.writes[len(f.writes)-1], true
}

type fakeNotifier struct {
	mu           sync.Mutex
	started      []string
	stopped      []string
	disconnected []string
}

func (f *fakeNotifier) TrackingStarted(project, activity string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, project+"/"+activity)
	return nil
}

func (f *fakeNotifier) TrackingStopped(project, elapsed string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, project)
	return nil
}

func (f *fakeNotifier) Disconnected(reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = append(f.disconnected, reason)
	return nil
}

func newTestService(t *testing.T, handler http.Handler, opts Options) (*Service, *fakeSnapshots, *fakeNotifier) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	creds := staticCreds{baseURL: srv.URL, ok: true}
	client := kimai.NewClient(creds, 5*time.Second, 10*time.Second, "", zap.NewNop())
	snaps := &fakeSnapshots{}
	notif := &fakeNotifier{}
	svc := NewService(client, creds, snaps, notif, opts, nil, zap.NewNop())
	t.Cleanup(svc.Stop)
	return svc, snaps, notif
}

func activeEntryObjectJSON(projectID, activityID int) string {
	return fmt.Sprintf(`{"id": 100, "begin": %q, "project": %d, "activity": %d}`,
		timeutil.FormatForWire(time.Now().Add(-10*time.Minute)), projectID, activityID)
}

func activeEntryJSON(projectID, activityID int) string {
	return "[" + activeEntryObjectJSON(projectID, activityID) + "]"
}

func completedEntryJSON(projectID int, rate float64, duration int) string {
	begin := timeutil.FormatForWire(time.Now().Add(-2 * time.Hour))
	end := timeutil.FormatForWire(time.Now().Add(-time.Hour))
	return fmt.Sprintf(`{"id": 99, "begin": %q, "end": %q, "duration": %d, "project": %d, "activity": 3, "rate": %g}`,
		begin, end, duration, projectID, rate)
}

func TestRefreshPopulatesState(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/projects":
			fmt.Fprint(w, `[{"id": 7, "name": "Website", "visible": true}]`)
		case "/api/activities":
			fmt.Fprint(w, `[{"id": 3, "name": "Development"}]`)
		case "/api/timesheets/active":
			fmt.Fprint(w, activeEntryJSON(7, 3))
		case "/api/timesheets/recent":
			fmt.Fprintf(w, `[%s]`, completedEntryJSON(7, 30, 3600))
		default:
			http.NotFound(w, r)
		}
	})

	svc, snaps, _ := newTestService(t, handler, Options{})
	svc.Refresh()

	if conn := svc.Connection(); !conn.Connected {
		t.Fatalf("not connected: %s", conn.LastError)
	}
	active, ok := svc.Active()
	if !ok || active.ID != 100 {
		t.Fatalf("Active = (%v, %v)", active, ok)
	}
	if !svc.Tracking() {
		t.Error("Tracking() = false with an active entry")
	}
	if len(svc.Projects()) != 1 || len(svc.Activities()) != 1 {
		t.Error("catalogs not populated")
	}
	if elapsed := svc.Elapsed(); elapsed < 9*time.Minute {
		t.Errorf("Elapsed = %v, want about 10 minutes", elapsed)
	}

	// rate derived from the completed recent entry: 30 / (3600s/3600) = 30
	if rate := svc.HourlyRate(); rate != 30 {
		t.Errorf("HourlyRate = %v, want 30", rate)
	}

	snap, ok := snaps.lastWrite()
	if !ok {
		t.Fatal("no snapshot published")
	}
	if !snap.IsTracking || snap.ProjectName == nil || *snap.ProjectName != "Website" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestRefreshUnconfiguredIsNoop(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	creds := staticCreds{baseURL: srv.URL, ok: false}
	client := kimai.NewClient(creds, time.Second, time.Second, "", zap.NewNop())
	svc := NewService(client, creds, &fakeSnapshots{}, &fakeNotifier{}, Options{}, nil, zap.NewNop())
	defer svc.Stop()

	svc.Refresh()
	if calls != 0 {
		t.Errorf("unconfigured refresh made %d requests", calls)
	}
	if svc.Connection().Connected {
		t.Error("unconfigured service reported connected")
	}
}

func TestConcurrentRefreshDropped(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{})
	var mu sync.Mutex
	activeCalls := 0

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/projects":
			fmt.Fprint(w, `[]`)
		case "/api/activities":
			fmt.Fprint(w, `[]`)
		case "/api/timesheets/active":
			mu.Lock()
			activeCalls++
			first := activeCalls == 1
			mu.Unlock()
			if first {
				entered <- struct{}{}
				<-gate
			}
			fmt.Fprint(w, `[]`)
		case "/api/timesheets/recent":
			fmt.Fprint(w, `[]`)
		default:
			http.NotFound(w, r)
		}
	})

	svc, _, _ := newTestService(t, handler, Options{})

	done := make(chan struct{})
	go func() {
		svc.Refresh()
		close(done)
	}()

	<-entered
	svc.Refresh() // in-flight refresh makes this a no-op
	close(gate)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if activeCalls != 1 {
		t.Errorf("active endpoint hit %d times, want 1", activeCalls)
	}
}

func TestDisconnectNotifiesOnceAndKeepsCaches(t *testing.T) {
	var mu sync.Mutex
	failing := false

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		fail := failing
		mu.Unlock()
		switch r.URL.Path {
		case "/api/projects":
			fmt.Fprint(w, `[{"id": 7, "name": "Website", "visible": true}]`)
		case "/api/activities":
			fmt.Fprint(w, `[]`)
		case "/api/timesheets/active":
			if fail {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(w, `[]`)
		case "/api/timesheets/recent":
			fmt.Fprint(w, `[]`)
		default:
			http.NotFound(w, r)
		}
	})

	svc, _, notif := newTestService(t, handler, Options{})

	svc.Refresh()
	if !svc.Connection().Connected {
		t.Fatal("initial refresh did not connect")
	}

	mu.Lock()
	failing = true
	mu.Unlock()

	svc.Refresh()
	svc.Refresh()

	conn := svc.Connection()
	if conn.Connected {
		t.Error("still connected after failures")
	}
	if conn.LastError == "" {
		t.Error("LastError empty after failure")
	}
	if len(svc.Projects()) != 1 {
		t.Error("cached projects discarded on disconnect")
	}

	notif.mu.Lock()
	defer notif.mu.Unlock()
	if len(notif.disconnected) != 1 {
		t.Errorf("Disconnected notified %d times, want 1", len(notif.disconnected))
	}
}

func TestHourlyRateFromProjectRates(t *testing.T) {
	var mu sync.Mutex
	rateCalls := []string{}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/projects":
			fmt.Fprint(w, `[]`)
		case r.URL.Path == "/api/activities":
			fmt.Fprint(w, `[]`)
		case r.URL.Path == "/api/timesheets/active":
			fmt.Fprint(w, activeEntryJSON(7, 3))
		case r.URL.Path == "/api/timesheets/recent":
			fmt.Fprint(w, `[]`)
		case r.URL.Path == "/api/timesheets":
			fmt.Fprint(w, `[]`) // rate probe finds nothing
		case strings.HasSuffix(r.URL.Path, "/rates"):
			mu.Lock()
			rateCalls = append(rateCalls, r.URL.Path)
			mu.Unlock()
			if r.URL.Path == "/api/projects/7/rates" {
				fmt.Fprint(w, `[
					{"id": 1, "rate": 120, "isFixed": true},
					{"id": 2, "rate": 25, "isFixed": false},
					{"id": 3, "rate": 45, "isFixed": false, "user": {"id": 5}}
				]`)
				return
			}
			fmt.Fprint(w, `[]`)
		default:
			http.NotFound(w, r)
		}
	})

	svc, _, _ := newTestService(t, handler, Options{})
	svc.Refresh()

	// the user-scoped hourly rate wins over the generic one
	if rate := svc.HourlyRate(); rate != 45 {
		t.Errorf("HourlyRate = %v, want 45", rate)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(rateCalls) != 1 || rateCalls[0] != "/api/projects/7/rates" {
		t.Errorf("rate endpoints hit: %v, want only project rates", rateCalls)
	}
}

func TestHourlyRateUnresolvedRetries(t *testing.T) {
	var mu sync.Mutex
	probeCalls := 0

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/projects", r.URL.Path == "/api/activities",
			r.URL.Path == "/api/timesheets/recent":
			fmt.Fprint(w, `[]`)
		case r.URL.Path == "/api/timesheets/active":
			fmt.Fprint(w, activeEntryJSON(7, 3))
		case r.URL.Path == "/api/timesheets":
			mu.Lock()
			probeCalls++
			mu.Unlock()
			fmt.Fprint(w, `[]`)
		case strings.HasSuffix(r.URL.Path, "/rates"):
			fmt.Fprint(w, `[]`)
		default:
			http.NotFound(w, r)
		}
	})

	svc, _, _ := newTestService(t, handler, Options{})

	svc.Refresh()
	if rate := svc.HourlyRate(); rate != 0 {
		t.Errorf("HourlyRate = %v, want 0 when unresolvable", rate)
	}

	// an unresolved rate is not cached, so the next cycle probes again
	svc.Refresh()
	mu.Lock()
	defer mu.Unlock()
	if probeCalls != 2 {
		t.Errorf("probe hit %d times across two refreshes, want 2", probeCalls)
	}
}

func TestLoadHistoryPaging(t *testing.T) {
	page1 := fmt.Sprintf(`[%s, %s]`,
		completedEntryJSON(7, 30, 3600), completedEntryJSON(8, 45, 1800))
	page2 := fmt.Sprintf(`[%s]`, completedEntryJSON(9, 60, 900))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/timesheets" {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, page1)
		case "2":
			fmt.Fprint(w, page2)
		default:
			fmt.Fprint(w, `[]`)
		}
	})

	svc, _, _ := newTestService(t, handler, Options{HistoryPageSize: 2})

	if err := svc.LoadHistory(true); err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if got := len(svc.History()); got != 2 {
		t.Fatalf("after page 1: %d entries", got)
	}
	if !svc.HasMoreHistory() {
		t.Fatal("full page should signal more history")
	}

	if err := svc.LoadHistory(false); err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if got := len(svc.History()); got != 3 {
		t.Fatalf("after page 2: %d entries", got)
	}
	if svc.HasMoreHistory() {
		t.Error("short page should end pagination")
	}

	// exhausted cursor makes further loads no-ops
	if err := svc.LoadHistory(false); err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if got := len(svc.History()); got != 3 {
		t.Errorf("exhausted load appended entries: %d", got)
	}

	// reset starts over
	if err := svc.LoadHistory(true); err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if got := len(svc.History()); got != 2 {
		t.Errorf("after reset: %d entries, want 2", got)
	}
}

func TestStopTimerWithoutActiveEntry(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	})
	svc, _, _ := newTestService(t, handler, Options{})

	if err := svc.StopTimer(); err == nil {
		t.Error("StopTimer with no active entry succeeded")
	}
}

func TestStartStopTimerFlow(t *testing.T) {
	var mu sync.Mutex
	running := false

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.URL.Path == "/api/projects":
			fmt.Fprint(w, `[{"id": 7, "name": "Website", "visible": true}]`)
		case r.URL.Path == "/api/activities":
			fmt.Fprint(w, `[{"id": 3, "name": "Development"}]`)
		case r.URL.Path == "/api/timesheets" && r.Method == http.MethodPost:
			running = true
			fmt.Fprint(w, activeEntryObjectJSON(7, 3))
		case r.URL.Path == "/api/timesheets/100/stop":
			running = false
			fmt.Fprint(w, completedEntryJSON(7, 30, 600))
		case r.URL.Path == "/api/timesheets/active":
			if running {
				fmt.Fprint(w, activeEntryJSON(7, 3))
			} else {
				fmt.Fprint(w, `[]`)
			}
		case r.URL.Path == "/api/timesheets/recent", r.URL.Path == "/api/timesheets":
			fmt.Fprint(w, `[]`)
		case strings.HasSuffix(r.URL.Path, "/rates"):
			fmt.Fprint(w, `[]`)
		default:
			http.NotFound(w, r)
		}
	})

	svc, snaps, notif := newTestService(t, handler, Options{})

	if err := svc.StartTimer(7, 3, nil); err != nil {
		t.Fatalf("StartTimer: %v", err)
	}
	if !svc.Tracking() {
		t.Fatal("not tracking after StartTimer")
	}
	snap, ok := snaps.lastWrite()
	if !ok || !snap.IsTracking {
		t.Errorf("snapshot after start = (%+v, %v)", snap, ok)
	}

	if err := svc.StopTimer(); err != nil {
		t.Fatalf("StopTimer: %v", err)
	}
	if svc.Tracking() {
		t.Error("still tracking after StopTimer")
	}
	if svc.Elapsed() != 0 {
		t.Errorf("Elapsed = %v after stop, want 0", svc.Elapsed())
	}

	notif.mu.Lock()
	defer notif.mu.Unlock()
	if len(notif.started) != 1 || notif.started[0] != "Website/Development" {
		t.Errorf("started notifications = %v", notif.started)
	}
	if len(notif.stopped) != 1 {
		t.Errorf("stopped notifications = %v", notif.stopped)
	}

	snaps.mu.Lock()
	defer snaps.mu.Unlock()
	if snaps.clears == 0 {
		t.Error("snapshot never cleared after stop")
	}
}

func TestReferenceRate(t *testing.T) {
	rate := 30.0
	duration := 1800
	end := "2026-02-18T10:00:00+0100"
	sheets := []kimai.Timesheet{
		{ID: 1, ProjectID: 9, End: &end, Rate: &rate, Duration: &duration}, // wrong project
		{ID: 2, ProjectID: 7}, // active
		{ID: 3, ProjectID: 7, End: &end, Rate: &rate, Duration: &duration},
	}

	got, ok := referenceRate(sheets, 7)
	if !ok {
		t.Fatal("no reference rate found")
	}
	// 30 over half an hour is 60/h
	if got != 60 {
		t.Errorf("rate = %v, want 60", got)
	}

	if _, ok := referenceRate(sheets, 12); ok {
		t.Error("found a rate for a project with no entries")
	}
}

func TestPreferredHourlyRate(t *testing.T) {
	if _, ok := preferredHourlyRate(nil); ok {
		t.Error("empty rates resolved")
	}

	// fixed rates never qualify
	if _, ok := preferredHourlyRate([]kimai.Rate{{Rate: 100, IsFixed: true}}); ok {
		t.Error("fixed rate resolved")
	}

	// user-scoped beats generic regardless of order
	rates := []kimai.Rate{
		{Rate: 25},
		{Rate: 45, User: &kimai.RateUser{ID: 5}},
	}
	if got, ok := preferredHourlyRate(rates); !ok || got != 45 {
		t.Errorf("got (%v, %v), want 45", got, ok)
	}

	// a zero picked rate does not resolve
	if _, ok := preferredHourlyRate([]kimai.Rate{{Rate: 0}}); ok {
		t.Error("zero rate resolved")
	}
}
