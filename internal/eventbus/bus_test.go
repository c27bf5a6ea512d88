package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBus_ArityDispatch(t *testing.T) {
	bus := New(Options{WorkerPoolSize: 4})

	var mu sync.Mutex
	var arity0Calls, arity2Calls int
	var arity1Got any

	done0 := make(chan struct{})
	done1 := make(chan struct{})
	done2 := make(chan struct{})

	_, err := bus.Subscribe(UserStartedSpeaking, Sync0(func() {
		mu.Lock()
		arity0Calls++
		mu.Unlock()
		close(done0)
	}))
	require.NoError(t, err)

	_, err = bus.Subscribe(UserStartedSpeaking, Sync1(func(data any) {
		mu.Lock()
		arity1Got = data
		mu.Unlock()
		close(done1)
	}))
	require.NoError(t, err)

	_, err = bus.Subscribe(UserStartedSpeaking, Sync2(func(tag EventTag, data any) {
		mu.Lock()
		arity2Calls++
		mu.Unlock()
		require.Equal(t, UserStartedSpeaking, tag)
		close(done2)
	}))
	require.NoError(t, err)

	bus.PublishSync(UserStartedSpeaking, nil)

	waitOrFail(t, done0)
	waitOrFail(t, done1)
	waitOrFail(t, done2)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, arity0Calls)
	require.Equal(t, UserStartedSpeaking, arity1Got, "arity-1 handler falls back to the tag when data is nil")
	require.Equal(t, 1, arity2Calls)
}

func TestBus_Arity1PrefersNonNilData(t *testing.T) {
	bus := New(Options{WorkerPoolSize: 1})
	done := make(chan any, 1)
	_, err := bus.Subscribe(ErrorOccurred, Sync1(func(data any) { done <- data }))
	require.NoError(t, err)

	bus.PublishSync(ErrorOccurred, "boom")

	select {
	case got := <-done:
		require.Equal(t, "boom", got)
	case <-time.After(time.Second):
		t.Fatal("handler never invoked")
	}
}

func TestBus_SubscribeUnsubscribeLeavesCountUnchanged(t *testing.T) {
	bus := New(Options{WorkerPoolSize: 1})
	before := bus.Count(IdleTransition)

	sub, err := bus.Subscribe(IdleTransition, Sync0(func() {}))
	require.NoError(t, err)
	require.Equal(t, before+1, bus.Count(IdleTransition))

	bus.Unsubscribe(sub)
	require.Equal(t, before, bus.Count(IdleTransition))
}

func TestBus_HandlerPanicIsIsolated(t *testing.T) {
	bus := New(Options{WorkerPoolSize: 2})

	done := make(chan struct{})
	_, err := bus.Subscribe(ErrorOccurred, Sync0(func() { panic("handler exploded") }))
	require.NoError(t, err)
	_, err = bus.Subscribe(ErrorOccurred, Sync0(func() { close(done) }))
	require.NoError(t, err)

	require.NotPanics(t, func() {
		bus.PublishSync(ErrorOccurred, nil)
	})
	waitOrFail(t, done)
}

func TestBus_PublishCountMatchesSubscriberCountRegardlessOfArity(t *testing.T) {
	bus := New(Options{WorkerPoolSize: 4})

	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	wg.Add(3)

	_, _ = bus.Subscribe(TimeoutOccurred, Sync0(func() { mu.Lock(); count++; mu.Unlock(); wg.Done() }))
	_, _ = bus.Subscribe(TimeoutOccurred, Sync1(func(any) { mu.Lock(); count++; mu.Unlock(); wg.Done() }))
	_, _ = bus.Subscribe(TimeoutOccurred, Sync2(func(EventTag, any) { mu.Lock(); count++; mu.Unlock(); wg.Done() }))

	bus.PublishSync(TimeoutOccurred, nil)

	wgDone := make(chan struct{})
	go func() { wg.Wait(); close(wgDone) }()
	waitOrFail(t, wgDone)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 3, count)
}

func TestBus_AsyncHandlerRunsOnScheduler(t *testing.T) {
	sched := NewScheduler(8)
	bus := New(Options{Scheduler: sched})
	done := make(chan struct{})
	_, err := bus.Subscribe(WakeWordDetected, Async0(func() { close(done) }))
	require.NoError(t, err)

	bus.PublishSync(WakeWordDetected, nil)

	select {
	case <-done:
		t.Fatal("async handler ran before the scheduler was running")
	case <-time.After(50 * time.Millisecond):
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)
	waitOrFail(t, done)
}

func waitOrFail(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler invocation")
	}
}
