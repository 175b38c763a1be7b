package exam

import (
	"time"

	"exam-session-service/internal/domain"
)

// Ticker is the subset of time.Ticker the countdown needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type systemTicker struct {
	t *time.Ticker
}

// NewSystemTicker wraps time.NewTicker.
func NewSystemTicker(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

type timer struct {
	ticker Ticker
	stop   chan struct{}
}

// Start launches the one-second countdown. Any running timer is stopped first,
// so at most one is ever active.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return err
	}
	if !c.closed {
		c.startTimerLocked()
	}
	return nil
}

// Stop halts the countdown without changing the phase. Used when the attempt is
// abandoned.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
}

// Tick advances the countdown by one second. The running timer calls it once per
// tick; it does nothing outside the in-progress phase. Reaching zero submits the
// attempt without confirmation.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tickLocked()
}

// RemainingSeconds returns the countdown value.
func (c *Controller) RemainingSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Controller) tickLocked() {
	if c.phase != domain.PhaseInProgress {
		return
	}
	if c.remaining > 0 {
		c.remaining--
	}
	c.broadcastLocked(Event{Type: EventTick, RemainingSeconds: c.remaining})
	if c.remaining == 0 {
		c.log.Info().Msg("time is up, submitting attempt")
		c.submitLocked()
	}
}

func (c *Controller) startTimerLocked() {
	c.stopTimerLocked()
	t := &timer{
		ticker: c.newTicker(time.Second),
		stop:   make(chan struct{}),
	}
	c.timer = t
	go c.run(t)
}

func (c *Controller) stopTimerLocked() {
	if c.timer == nil {
		return
	}
	c.timer.ticker.Stop()
	close(c.timer.stop)
	c.timer = nil
}

func (c *Controller) run(t *timer) {
	for {
		select {
		case <-t.stop:
			return
		case <-t.ticker.C():
			c.mu.Lock()
			if c.timer != t {
				// superseded or stopped while this tick was pending
				c.mu.Unlock()
				return
			}
			c.tickLocked()
			c.mu.Unlock()
		}
	}
}

// timerRunning reports whether a countdown goroutine is active.
func (c *Controller) timerRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}
