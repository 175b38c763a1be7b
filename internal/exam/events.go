package exam

import "exam-session-service/internal/domain"

// EventType names what happened to an attempt.
type EventType string

const (
	EventTick      EventType = "tick"
	EventSubmitted EventType = "submitted"
	EventNotice    EventType = "notice"
)

// Event is pushed to subscribers on every tick, on submission and when
// background persistence fails.
type Event struct {
	Type             EventType              `json:"type"`
	RemainingSeconds int                    `json:"remainingSeconds"`
	Summary          *domain.AttemptSummary `json:"summary,omitempty"`
	Notice           string                 `json:"notice,omitempty"`
}

// Subscribe returns a channel of attempt events, starting with the current
// countdown (or the summary if already submitted). The caller must invoke cancel.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)

	c.mu.Lock()
	initial := Event{Type: EventTick, RemainingSeconds: c.remaining}
	if c.summary != nil {
		summary := *c.summary
		initial = Event{Type: EventSubmitted, RemainingSeconds: c.remaining, Summary: &summary}
	}
	ch <- initial
	if c.closed {
		close(ch)
	} else {
		c.subscribers[ch] = struct{}{}
	}
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

// Close stops the timer and ends every subscription. The attempt keeps its state.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	c.closed = true
	for ch := range c.subscribers {
		delete(c.subscribers, ch)
		close(ch)
	}
}

func (c *Controller) broadcastLocked(ev Event) {
	for ch := range c.subscribers {
		select {
		case ch <- ev:
		default:
			// drop the oldest pending event so a slow reader never stalls the countdown
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
