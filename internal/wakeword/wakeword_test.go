package wakeword

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mathisarends/voiceorchestrator/internal/eventbus"
)

type fakeDetector struct {
	detected  chan struct{}
	startErr  error
	stopCalls int
}

func newFakeDetector() *fakeDetector {
	return &fakeDetector{detected: make(chan struct{}, 1)}
}

func (f *fakeDetector) Start(ctx context.Context) error { return f.startErr }
func (f *fakeDetector) Stop() error                     { f.stopCalls++; return nil }
func (f *fakeDetector) DetectedEvent() <-chan struct{}  { return f.detected }

func TestAdapter_RepublishesDetections(t *testing.T) {
	bus := eventbus.New(eventbus.Options{WorkerPoolSize: 2})
	det := newFakeDetector()
	a := New(det, bus)

	got := make(chan struct{}, 1)
	_, err := bus.Subscribe(eventbus.WakeWordDetected, eventbus.Sync1(func(any) {
		select {
		case got <- struct{}{}:
		default:
		}
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))

	det.detected <- struct{}{}

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for WakeWordDetected republish")
	}

	require.NoError(t, a.Stop())
	require.Equal(t, 1, det.stopCalls)
}

func TestAdapter_StartPropagatesDetectorError(t *testing.T) {
	bus := eventbus.New(eventbus.Options{WorkerPoolSize: 1})
	det := newFakeDetector()
	det.startErr = context.DeadlineExceeded
	a := New(det, bus)

	err := a.Start(context.Background())
	require.Error(t, err)
}

func TestAdapter_StopIsIdempotentIfNeverStarted(t *testing.T) {
	bus := eventbus.New(eventbus.Options{WorkerPoolSize: 1})
	a := New(newFakeDetector(), bus)
	require.NoError(t, a.Stop())
}
