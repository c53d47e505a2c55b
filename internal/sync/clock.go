package sync

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// restartTolerance suppresses clock restarts for the same begin time,
// so polling cycles do not churn the ticker goroutine.
const restartTolerance = time.Second

// Clock tracks elapsed time for the active entry with a one-second
// tick. It is fully stopped and reset when tracking ends.
type Clock struct {
	logger *zap.Logger
	onTick func(time.Duration)

	mu        sync.Mutex
	startedAt time.Time
	running   bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewClock creates a stopped clock. onTick may be nil; when set it is
// called once per second with the current elapsed time.
func NewClock(onTick func(time.Duration), logger *zap.Logger) *Clock {
	return &Clock{
		logger: logger,
		onTick: onTick,
	}
}

// Start begins ticking from the given begin time. A start for the same
// begin time (within one second) while already running is ignored.
func (c *Clock) Start(from time.Time) {
	c.mu.Lock()
	if c.running {
		diff := c.startedAt.Sub(from)
		if diff < 0 {
			diff = -diff
		}
		if diff < restartTolerance {
			c.mu.Unlock()
			return
		}
	}
	c.mu.Unlock()

	c.Stop()

	c.mu.Lock()
	c.startedAt = from
	c.running = true
	c.stopChan = make(chan struct{})
	c.mu.Unlock()

	c.wg.Add(1)
	go c.tickLoop()

	c.logger.Debug("Elapsed clock started", zap.Time("from", from))
}

// Stop halts the clock and resets elapsed time to zero
func (c *Clock) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopChan)
	c.mu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	c.startedAt = time.Time{}
	c.stopChan = nil
	c.mu.Unlock()

	c.logger.Debug("Elapsed clock stopped")
}

// Running reports whether the clock is ticking
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Elapsed returns time since the begin timestamp, or zero when stopped
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return 0
	}
	return time.Since(c.startedAt)
}

func (c *Clock) tickLoop() {
	defer c.wg.Done()

	c.mu.Lock()
	stopChan := c.stopChan
	c.mu.Unlock()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if c.onTick != nil {
				c.onTick(c.Elapsed())
			}
		case <-stopChan:
			return
		}
	}
}
