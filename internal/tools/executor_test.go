package tools

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mathisarends/voiceorchestrator/internal/eventbus"
	"github.com/mathisarends/voiceorchestrator/internal/voicemodel"
)

type fakeSink struct {
	mu        sync.Mutex
	results   []voicemodel.FunctionCallResult
	progress  []string
}

func (f *fakeSink) SubmitToolResult(result voicemodel.FunctionCallResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
}

func (f *fakeSink) SendProgressUpdate(chunk string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, chunk)
}

func (f *fakeSink) snapshotResults() []voicemodel.FunctionCallResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]voicemodel.FunctionCallResult(nil), f.results...)
}

func (f *fakeSink) snapshotProgress() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.progress...)
}

func waitForResults(t *testing.T, sink *fakeSink, n int) []voicemodel.FunctionCallResult {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := sink.snapshotResults(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for tool result")
	return nil
}

func TestExecutor_UnknownToolYieldsErrorResult(t *testing.T) {
	bus := eventbus.New(eventbus.Options{WorkerPoolSize: 2})
	registry := New()
	sink := &fakeSink{}
	resultPublished := make(chan struct{}, 1)
	_, _ = bus.Subscribe(eventbus.AssistantReceivedToolCallResult, eventbus.Sync0(func() {
		select {
		case resultPublished <- struct{}{}:
		default:
		}
	}))

	_ = NewExecutor(registry, bus, sink, SpecialToolParameters{})
	bus.PublishSync(eventbus.AssistantStartedToolCall, voicemodel.FunctionCallItem{Name: "does_not_exist", CallID: "C1"})

	results := waitForResults(t, sink, 1)
	require.Contains(t, fmt.Sprint(results[0].Output), "unknown tool")
	require.NotEmpty(t, results[0].ResponseInstruction)

	select {
	case <-resultPublished:
	case <-time.After(time.Second):
		t.Fatal("AssistantReceivedToolCallResult never published for a missing tool")
	}
}

func TestExecutor_MissingRequiredSpecialParameterFailsCall(t *testing.T) {
	bus := eventbus.New(eventbus.Options{WorkerPoolSize: 2})
	registry := New()
	require.NoError(t, registry.Register(Descriptor{
		Name:            "needs_player",
		RequiresSpecial: []string{"AudioPlayer"},
		Handler: func(map[string]any, SpecialToolParameters) (any, error) {
			return "should not run", nil
		},
	}))
	sink := &fakeSink{}
	_ = NewExecutor(registry, bus, sink, SpecialToolParameters{}) // no AudioPlayer configured

	bus.PublishSync(eventbus.AssistantStartedToolCall, voicemodel.FunctionCallItem{Name: "needs_player", CallID: "C2"})

	results := waitForResults(t, sink, 1)
	require.Contains(t, fmt.Sprint(results[0].Output), "unavailable special parameter")
}

func TestExecutor_SyncToolSucceeds(t *testing.T) {
	bus := eventbus.New(eventbus.Options{WorkerPoolSize: 2})
	registry := New()
	require.NoError(t, registry.Register(Descriptor{
		Name: "get_time",
		Handler: func(map[string]any, SpecialToolParameters) (any, error) {
			return "13:05:00", nil
		},
	}))
	sink := &fakeSink{}
	_ = NewExecutor(registry, bus, sink, SpecialToolParameters{})

	bus.PublishSync(eventbus.AssistantStartedToolCall, voicemodel.FunctionCallItem{Name: "get_time", CallID: "C7"})

	results := waitForResults(t, sink, 1)
	require.Equal(t, "13:05:00", results[0].Output)
	require.Equal(t, "C7", results[0].CallID)
}

func TestExecutor_ExecutionMessageSentBeforeHandlerRuns(t *testing.T) {
	bus := eventbus.New(eventbus.Options{WorkerPoolSize: 2})
	registry := New()
	require.NoError(t, registry.Register(Descriptor{
		Name:             "slow_lookup",
		ExecutionMessage: "Let me check on that.",
		Handler: func(map[string]any, SpecialToolParameters) (any, error) {
			return "done", nil
		},
	}))
	sink := &fakeSink{}
	_ = NewExecutor(registry, bus, sink, SpecialToolParameters{})

	bus.PublishSync(eventbus.AssistantStartedToolCall, voicemodel.FunctionCallItem{Name: "slow_lookup", CallID: "C9"})

	waitForResults(t, sink, 1)
	require.Contains(t, sink.snapshotProgress(), "Let me check on that.")
}

func TestExecutor_StreamingToolForwardsChunksInOrderThenCompletes(t *testing.T) {
	bus := eventbus.New(eventbus.Options{WorkerPoolSize: 2})
	registry := New()
	require.NoError(t, registry.Register(Descriptor{
		Name: "narrate",
		StreamHandler: func(map[string]any, SpecialToolParameters) (<-chan string, error) {
			ch := make(chan string)
			go func() {
				defer close(ch)
				ch <- "A"
				ch <- "B"
				ch <- "C"
			}()
			return ch, nil
		},
	}))
	sink := &fakeSink{}
	resultPublished := make(chan struct{}, 1)
	_, _ = bus.Subscribe(eventbus.AssistantReceivedToolCallResult, eventbus.Sync0(func() {
		select {
		case resultPublished <- struct{}{}:
		default:
		}
	}))

	_ = NewExecutor(registry, bus, sink, SpecialToolParameters{})
	bus.PublishSync(eventbus.AssistantStartedToolCall, voicemodel.FunctionCallItem{Name: "narrate", CallID: "C3"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(sink.snapshotProgress()) == 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, []string{"A", "B", "C"}, sink.snapshotProgress())

	select {
	case <-resultPublished:
	case <-time.After(time.Second):
		t.Fatal("streaming tool never published AssistantReceivedToolCallResult on completion")
	}

	// A streaming tool never emits a function-call-output submission.
	require.Empty(t, sink.snapshotResults())
}
