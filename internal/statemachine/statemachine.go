// Package statemachine implements the State Machine: the finite set of
// states {Idle, Listening, Responding, ToolCalling, Error} and the
// event-driven transitions between them: a transition table keyed by
// current state with on_enter/on_exit callbacks, applied to the
// voice-session lifecycle.
package statemachine

import (
	"sync"

	"github.com/mathisarends/voiceorchestrator/internal/eventbus"
	"github.com/mathisarends/voiceorchestrator/internal/metrics"
	"github.com/mathisarends/voiceorchestrator/internal/obslog"
)

// State is one of the five conversation states.
type State string

const (
	Idle        State = "idle"
	Listening   State = "listening"
	Responding  State = "responding"
	ToolCalling State = "tool_calling"
	Error       State = "error"
)

// Hooks are the side effects a State's on_enter/on_exit perform, injected so
// the Machine itself stays free of direct audio/transport/wake-word
// dependencies. The bus is the sole mediator between components, but
// on_enter/on_exit still need to reach the audio layer and session
// lifecycle; that happens through this narrow Hooks interface,
// supplied by the Session Coordinator at construction).
type Hooks interface {
	// EnsureSessionEnded is Idle's on_enter: end any prior realtime session.
	EnsureSessionEnded()
	// StartSessionIfNeeded is run when WakeWordDetected moves Idle to Listening, as part of Listening's on_enter before ResumeMicrophone.
	StartSessionIfNeeded()
	// ResumeMicrophone is Listening's on_enter.
	ResumeMicrophone()
	// PauseMicrophone is Responding's on_enter.
	PauseMicrophone()
	// ArmInactivityTimeout is run when entering Listening from Responding's AssistantCompletedResponse.
	ArmInactivityTimeout()
	// DisarmInactivityTimeout cancels a previously armed timeout, called on Listening's on_exit.
	DisarmInactivityTimeout()
	// PlayErrorCue is Error's on_enter.
	PlayErrorCue()
}

// Machine is the Session Coordinator's finite state machine. It subscribes
// to every EventTag named in the transition table and serializes all
// transitions under a single mutex so on_exit/on_enter pairs never interleave.
type Machine struct {
	hooks Hooks

	mu      sync.Mutex
	current State
}

// New builds a Machine in the initial Idle state, subscribed to bus.
func New(bus *eventbus.Bus, hooks Hooks) *Machine {
	m := &Machine{hooks: hooks, current: Idle}

	bus.Subscribe(eventbus.WakeWordDetected, eventbus.Sync0(func() { m.on(eventWakeWordDetected) }))
	bus.Subscribe(eventbus.UserSpeechEnded, eventbus.Sync0(func() { m.on(eventUserSpeechEnded) }))
	bus.Subscribe(eventbus.TimeoutOccurred, eventbus.Sync0(func() { m.on(eventTimeoutOccurred) }))
	bus.Subscribe(eventbus.ErrorOccurred, eventbus.Sync0(func() { m.on(eventErrorOccurred) }))
	bus.Subscribe(eventbus.AssistantCompletedResponse, eventbus.Sync0(func() { m.on(eventAssistantCompletedResponse) }))
	bus.Subscribe(eventbus.AssistantSpeechInterrupted, eventbus.Sync0(func() { m.on(eventAssistantSpeechInterrupted) }))
	bus.Subscribe(eventbus.AssistantStartedToolCall, eventbus.Sync0(func() { m.on(eventAssistantStartedToolCall) }))
	bus.Subscribe(eventbus.IdleTransition, eventbus.Sync0(func() { m.on(eventIdleTransition) }))
	bus.Subscribe(eventbus.AssistantReceivedToolCallResult, eventbus.Sync0(func() { m.on(eventAssistantReceivedToolCallResult) }))

	return m
}

// Current reports the state the machine currently occupies.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// trigger is the internal event vocabulary the transition table matches on;
// kept distinct from eventbus.EventTag because not every EventTag drives a
// transition and some (AssistantCompletedResponse) mean different things in
// different states.
type trigger int

const (
	eventWakeWordDetected trigger = iota
	eventUserSpeechEnded
	eventTimeoutOccurred
	eventErrorOccurred
	eventAssistantCompletedResponse
	eventAssistantSpeechInterrupted
	eventAssistantStartedToolCall
	eventIdleTransition
	eventAssistantReceivedToolCallResult
)

// transitions is the closed transition table. A (state, trigger) pair absent
// from this map is ignored in that state, logged at debug level.
var transitions = map[State]map[trigger]State{
	Idle: {
		eventWakeWordDetected: Listening,
	},
	Listening: {
		eventUserSpeechEnded: Responding,
		eventTimeoutOccurred: Idle,
		eventErrorOccurred:   Error,
	},
	Responding: {
		eventAssistantCompletedResponse: Listening,
		eventAssistantSpeechInterrupted: Listening,
		eventWakeWordDetected:           Listening,
		eventAssistantStartedToolCall:   ToolCalling,
		eventIdleTransition:             Idle,
		eventErrorOccurred:              Error,
	},
	ToolCalling: {
		eventAssistantReceivedToolCallResult: Responding,
		eventIdleTransition:                  Idle,
		eventErrorOccurred:                   Error,
	},
	Error: {
		eventTimeoutOccurred:            Idle,
		eventAssistantCompletedResponse: Idle,
	},
}

// on runs one transition attempt. Each transition executes the outgoing
// state's on_exit, then the incoming state's on_enter; both run while mu is
// held so no interleaved trigger can observe a half-completed transition.
func (m *Machine) on(t trigger) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.current
	next, ok := transitions[from][t]
	if !ok {
		obslog.Debug("statemachine: ignored trigger", "state", string(from), "trigger", int(t))
		return
	}

	m.onExit(from, next, t)
	m.current = next
	m.onEnter(next, from, t)

	metrics.StateTransitions.WithLabelValues(string(from), string(next)).Inc()
	obslog.StateTransition(string(from), string(next), triggerName(t))
}

func (m *Machine) onExit(from, to State, t trigger) {
	switch from {
	case Listening:
		m.hooks.DisarmInactivityTimeout()
	}
}

func (m *Machine) onEnter(to, from State, t trigger) {
	switch to {
	case Idle:
		m.hooks.EnsureSessionEnded()
	case Listening:
		if from == Idle && t == eventWakeWordDetected {
			m.hooks.StartSessionIfNeeded()
		}
		m.hooks.ResumeMicrophone()
		if from == Responding && t == eventAssistantCompletedResponse {
			m.hooks.ArmInactivityTimeout()
		}
	case Responding:
		m.hooks.PauseMicrophone()
	case Error:
		m.hooks.PlayErrorCue()
	}
}

func triggerName(t trigger) string {
	switch t {
	case eventWakeWordDetected:
		return "wake_word_detected"
	case eventUserSpeechEnded:
		return "user_speech_ended"
	case eventTimeoutOccurred:
		return "timeout_occurred"
	case eventErrorOccurred:
		return "error_occurred"
	case eventAssistantCompletedResponse:
		return "assistant_completed_response"
	case eventAssistantSpeechInterrupted:
		return "assistant_speech_interrupted"
	case eventAssistantStartedToolCall:
		return "assistant_started_tool_call"
	case eventIdleTransition:
		return "idle_transition"
	case eventAssistantReceivedToolCallResult:
		return "assistant_received_tool_call_result"
	default:
		return "unknown"
	}
}
