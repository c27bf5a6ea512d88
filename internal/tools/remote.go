package tools

import (
	"sync"

	"github.com/mathisarends/voiceorchestrator/internal/eventbus"
	"github.com/mathisarends/voiceorchestrator/internal/metrics"
	"github.com/mathisarends/voiceorchestrator/internal/obslog"
)

// RemoteToolReference names a remote MCP tool surfaced to the model alongside
// locally-registered function-tool descriptors. The orchestrator never executes
// a remote tool's logic itself (the realtime protocol runs it server-side), so
// this is just the wire-level reference the session.update payload carries.
type RemoteToolReference struct {
	ServerLabel string
	ServerURL   string
}

// RemoteToolTracker is the minimal consumer of the
// AssistantStartedRemoteToolCall / AssistantCompletedRemoteToolCallResult /
// AssistantFailedRemoteToolCall events: it logs and counts them (and bumps the
// ToolCalls metric) so operators have visibility. The orchestrator never acts as an
// MCP client itself; the realtime peer runs remote tools server-side.
type RemoteToolTracker struct {
	mu      sync.Mutex
	started int
	done    int
	failed  int
}

// NewRemoteToolTracker builds a tracker subscribed to bus.
func NewRemoteToolTracker(bus *eventbus.Bus) *RemoteToolTracker {
	t := &RemoteToolTracker{}
	bus.Subscribe(eventbus.AssistantStartedRemoteToolCall, eventbus.Sync0(t.onStarted))
	bus.Subscribe(eventbus.AssistantCompletedRemoteToolCallResult, eventbus.Sync0(t.onCompleted))
	bus.Subscribe(eventbus.AssistantFailedRemoteToolCall, eventbus.Sync0(t.onFailed))
	return t
}

func (t *RemoteToolTracker) onStarted() {
	t.mu.Lock()
	t.started++
	t.mu.Unlock()
	obslog.Info("remote tool call started")
	metrics.ToolCalls.WithLabelValues("__remote_mcp__", "started").Inc()
}

func (t *RemoteToolTracker) onCompleted() {
	t.mu.Lock()
	t.done++
	t.mu.Unlock()
	obslog.Info("remote tool call completed")
	metrics.ToolCalls.WithLabelValues("__remote_mcp__", "completed").Inc()
}

func (t *RemoteToolTracker) onFailed() {
	t.mu.Lock()
	t.failed++
	t.mu.Unlock()
	obslog.Warn("remote tool call failed")
	metrics.ToolCalls.WithLabelValues("__remote_mcp__", "failed").Inc()
}

// Counts returns (started, completed, failed), for tests and diagnostics.
func (t *RemoteToolTracker) Counts() (started, completed, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started, t.done, t.failed
}
