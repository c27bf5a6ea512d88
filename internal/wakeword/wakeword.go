// Package wakeword implements the Wake-Word Adapter: a thin bridge that
// runs an external wake-word detector and republishes its detections onto
// the Event Bus. The detector itself (the native engine keyed by
// WAKE_WORD_ENGINE_KEY) is an external collaborator behind the narrow
// Start/Stop/DetectedEvent surface.
package wakeword

import (
	"context"

	"github.com/mathisarends/voiceorchestrator/internal/eventbus"
	"github.com/mathisarends/voiceorchestrator/internal/obslog"
)

// Detector is the external wake-word engine collaborator.
type Detector interface {
	// Start begins listening. DetectedEvent() must become readable each time
	// a wake word fires while running.
	Start(ctx context.Context) error
	// Stop halts listening. Idempotent.
	Stop() error
	// DetectedEvent is signaled once per detection.
	DetectedEvent() <-chan struct{}
}

// Adapter runs Detector and republishes each detection as WakeWordDetected.
// The pump goroutine below only ever calls PublishSync; it never touches
// state-machine state directly.
type Adapter struct {
	detector Detector
	bus      *eventbus.Bus

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds an Adapter over detector, publishing onto bus.
func New(detector Detector, bus *eventbus.Bus) *Adapter {
	return &Adapter{detector: detector, bus: bus}
}

// Start begins the detector and the republish pump. Safe to call once per
// Adapter lifetime; call Stop before a second Start.
func (a *Adapter) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})

	if err := a.detector.Start(runCtx); err != nil {
		cancel()
		return err
	}

	go a.pump(runCtx)
	return nil
}

// pump republishes each detection until runCtx is canceled. Remains active
// through Responding so barge-in works. There is no per-state gating here;
// the State Machine decides what WakeWordDetected means in its current
// state.
func (a *Adapter) pump(runCtx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-runCtx.Done():
			return
		case _, ok := <-a.detector.DetectedEvent():
			if !ok {
				return
			}
			obslog.Debug("wakeword: detected")
			a.bus.PublishSync(eventbus.WakeWordDetected, nil)
		}
	}
}

// Stop halts the detector and waits for the pump to exit.
func (a *Adapter) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}
	err := a.detector.Stop()
	if a.done != nil {
		<-a.done
	}
	return err
}
