package statemachine

import (
	"sync"
	"time"

	"github.com/mathisarends/voiceorchestrator/internal/eventbus"
)

// InactivityTimer owns the Listening-state silence timeout as its own small
// service rather than an inline time.AfterFunc per transition, keeping
// timeout bookkeeping out of the transition logic.
type InactivityTimer struct {
	bus      *eventbus.Bus
	duration time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewInactivityTimer builds a timer that publishes TimeoutOccurred after
// duration of silence once armed.
func NewInactivityTimer(bus *eventbus.Bus, duration time.Duration) *InactivityTimer {
	return &InactivityTimer{bus: bus, duration: duration}
}

// Arm (re-)starts the countdown, replacing any timer already running.
func (t *InactivityTimer) Arm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.timer = time.AfterFunc(t.duration, func() {
		t.bus.PublishSync(eventbus.TimeoutOccurred, nil)
	})
}

// Disarm cancels a running countdown, if any. A no-op if none is running.
func (t *InactivityTimer) Disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *InactivityTimer) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
