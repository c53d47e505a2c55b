package tray

import (
	"fmt"
	"time"

	"alteran/kimai-agent/internal/sync"
	"alteran/kimai-agent/internal/timeutil"

	"github.com/getlantern/systray"
	"go.uber.org/zap"
)

// uiRefreshInterval paces menu/title updates; the elapsed value itself
// is derived from the entry's begin time, so coarse updates stay exact.
const uiRefreshInterval = time.Second

// maxRecentMenuItems caps the restart submenu
const maxRecentMenuItems = 5

// Tray is the menu-bar surface of the agent
type Tray struct {
	service        *sync.Service
	currencySuffix string
	logger         *zap.Logger
	onQuit         func()

	recentItems  [maxRecentMenuItems]*systray.MenuItem
	recentClicks chan int

	stopChan chan struct{}
}

// New creates the tray surface. onQuit is invoked after the tray loop
// exits so the caller can shut the agent down.
func New(service *sync.Service, currencySuffix string, onQuit func(), logger *zap.Logger) *Tray {
	return &Tray{
		service:        service,
		currencySuffix: currencySuffix,
		logger:         logger,
		onQuit:         onQuit,
		recentClicks:   make(chan int),
		stopChan:       make(chan struct{}),
	}
}

// Run blocks running the system tray loop. Must be called from the
// main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit asks the tray loop to exit
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Kimai")
	systray.SetTooltip("Kimai time tracking")

	mStatus := systray.AddMenuItem("Not connected", "Current tracking state")
	mStatus.Disable()
	mEarnings := systray.AddMenuItem("", "Current earnings")
	mEarnings.Disable()
	mEarnings.Hide()
	systray.AddSeparator()
	mStop := systray.AddMenuItem("Stop timer", "Stop the running entry")
	mStop.Disable()
	mRestart := systray.AddMenuItem("Restart recent", "Start a fresh entry copying a recent one")
	mRestart.Disable()
	for i := range t.recentItems {
		t.recentItems[i] = mRestart.AddSubMenuItem("", "")
		t.recentItems[i].Hide()
		go t.forwardRecentClicks(i)
	}
	mRefresh := systray.AddMenuItem("Refresh now", "Sync with the server")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Stop the agent")

	go t.loop(mStatus, mEarnings, mStop, mRestart, mRefresh, mQuit)

	t.logger.Info("Tray ready")
}

func (t *Tray) onExit() {
	close(t.stopChan)
	if t.onQuit != nil {
		t.onQuit()
	}
}

func (t *Tray) loop(mStatus, mEarnings, mStop, mRestart, mRefresh, mQuit *systray.MenuItem) {
	ticker := time.NewTicker(uiRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.render(mStatus, mEarnings, mStop, mRestart)
		case <-mStop.ClickedCh:
			if err := t.service.StopTimer(); err != nil {
				t.logger.Warn("Stop from tray failed", zap.Error(err))
			}
		case i := <-t.recentClicks:
			t.restartRecent(i)
		case <-mRefresh.ClickedCh:
			go t.service.Refresh()
		case <-mQuit.ClickedCh:
			systray.Quit()
			return
		case <-t.stopChan:
			return
		}
	}
}

func (t *Tray) render(mStatus, mEarnings, mStop, mRestart *systray.MenuItem) {
	conn := t.service.Connection()

	if active, ok := t.service.Active(); ok {
		elapsed := timeutil.FormatElapsed(t.service.Elapsed())
		systray.SetTitle(fmt.Sprintf("⏱ %s", elapsed))
		mStatus.SetTitle(fmt.Sprintf("%s / %s",
			active.ResolvedProjectName(t.service.Projects()),
			active.ResolvedActivityName(t.service.Activities()),
		))
		mStop.Enable()
		if earnings, ok := t.service.FormattedEarnings(t.currencySuffix); ok {
			mEarnings.SetTitle(earnings)
			mEarnings.Show()
		} else {
			mEarnings.Hide()
		}
	} else {
		systray.SetTitle("Kimai")
		mStop.Disable()
		mEarnings.Hide()
		switch {
		case !t.service.Configured():
			mStatus.SetTitle("Not configured")
		case conn.Connected:
			mStatus.SetTitle("Idle")
		case conn.LastError != "":
			mStatus.SetTitle(fmt.Sprintf("Disconnected: %s", conn.LastError))
		default:
			mStatus.SetTitle("Not connected")
		}
	}

	recent := t.service.Recent()
	projects := t.service.Projects()
	activities := t.service.Activities()
	for i, item := range t.recentItems {
		if i < len(recent) {
			item.SetTitle(fmt.Sprintf("%s / %s",
				recent[i].ResolvedProjectName(projects),
				recent[i].ResolvedActivityName(activities),
			))
			item.Show()
		} else {
			item.Hide()
		}
	}
	if len(recent) > 0 {
		mRestart.Enable()
	} else {
		mRestart.Disable()
	}
}

func (t *Tray) forwardRecentClicks(i int) {
	for {
		select {
		case <-t.recentItems[i].ClickedCh:
			select {
			case t.recentClicks <- i:
			case <-t.stopChan:
				return
			}
		case <-t.stopChan:
			return
		}
	}
}

func (t *Tray) restartRecent(i int) {
	recent := t.service.Recent()
	if i >= len(recent) {
		return
	}
	if err := t.service.RestartTimer(recent[i].ID); err != nil {
		t.logger.Warn("Restart from tray failed", zap.Error(err))
	}
}
