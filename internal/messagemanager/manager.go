// Package messagemanager implements the Message Manager: session
// initialization, tool-result submission, streaming-tool progress updates,
// barge-in truncation, and outbound queueing while a response is active.
package messagemanager

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mathisarends/voiceorchestrator/internal/eventbus"
	"github.com/mathisarends/voiceorchestrator/internal/obslog"
	"github.com/mathisarends/voiceorchestrator/internal/orcherr"
	"github.com/mathisarends/voiceorchestrator/internal/transport"
	"github.com/mathisarends/voiceorchestrator/internal/voicemodel"
)

const pacingInterval = 100 * time.Millisecond

// SessionSettings is the immutable-at-build-time subset of SessionConfig the
// Message Manager maps into a session.update message. Model and SpeechSpeed
// are kept here (and snapshotted into sessioncache) but are not carried in
// the session.update payload.
type SessionSettings struct {
	Voice                   string
	Model                   string
	Instructions            string
	OutputAudioFormat       string
	InputAudioFormat        string
	Modalities              []string
	MaxResponseOutputTokens any
	Tools                   []transport.ToolDefPayload
	Temperature             float64
	SpeechSpeed             float64
}

// Manager is the Message Manager. It subscribes to the event bus internally
// to track response-active state and the current response context.
type Manager struct {
	sender transport.Sender
	bus    *eventbus.Bus

	mu             sync.Mutex
	responseActive bool
	respCtx        voicemodel.CurrentResponseContext
	queue          outboundQueue
	settings       SessionSettings

	limiter *rate.Limiter
}

// New creates a Manager sending through sender and observing bus.
func New(sender transport.Sender, bus *eventbus.Bus) *Manager {
	m := &Manager{
		sender:  sender,
		bus:     bus,
		limiter: rate.NewLimiter(rate.Every(pacingInterval), 1),
	}

	bus.Subscribe(eventbus.AssistantStartedResponse, eventbus.Sync0(m.onResponseStarted))
	bus.Subscribe(eventbus.AssistantCompletedResponse, eventbus.Sync0(m.onResponseCompleted))
	bus.Subscribe(eventbus.AudioChunkReceived, eventbus.Sync1(m.onAudioChunk))
	bus.Subscribe(eventbus.AssistantSpeechInterrupted, eventbus.Sync0(m.onInterrupted))
	bus.Subscribe(eventbus.AssistantConfigUpdateRequest, eventbus.Sync1(m.onConfigUpdate))

	return m
}

// ConfigUpdate is the payload of AssistantConfigUpdateRequest: the mutable
// subset of the session settings a running session may change in place. A nil
// field leaves that setting untouched.
type ConfigUpdate struct {
	Voice       *string
	SpeechSpeed *float64
}

// onConfigUpdate applies an in-place SessionConfig mutation and re-sends
// session.update. A voice change reaches the remote side through that
// payload; a speech-speed change is recorded in the settings only, since the
// payload has no speed field. Settings only ever change through this event.
func (m *Manager) onConfigUpdate(data any) {
	update, ok := data.(ConfigUpdate)
	if !ok {
		return
	}
	m.mu.Lock()
	if update.Voice != nil {
		m.settings.Voice = *update.Voice
	}
	if update.SpeechSpeed != nil {
		m.settings.SpeechSpeed = *update.SpeechSpeed
	}
	settings := m.settings
	m.mu.Unlock()

	if err := m.sender.SendJSON(transport.SessionUpdateEvent{
		ClientEvent: transport.NewClientEvent("session.update"),
		Session: transport.SessionConfigPayload{
			Modalities:              settings.Modalities,
			Instructions:            settings.Instructions,
			Voice:                   settings.Voice,
			InputAudioFormat:        settings.InputAudioFormat,
			OutputAudioFormat:       settings.OutputAudioFormat,
			Tools:                   settings.Tools,
			Temperature:             settings.Temperature,
			MaxResponseOutputTokens: settings.MaxResponseOutputTokens,
		},
	}); err != nil {
		obslog.Warn("message manager: config update resend failed", "error", err)
	}
}

func (m *Manager) onResponseStarted() {
	m.mu.Lock()
	m.responseActive = true
	m.respCtx.ArmStart(time.Now())
	m.mu.Unlock()
}

func (m *Manager) onAudioChunk(data any) {
	chunk, ok := data.(voicemodel.AudioChunk)
	if !ok {
		return
	}
	m.mu.Lock()
	m.respCtx.LatchItemID(chunk.ItemID)
	m.mu.Unlock()
}

func (m *Manager) onResponseCompleted() {
	m.mu.Lock()
	m.responseActive = false
	m.respCtx.Clear()
	items := m.queue.drainAll()
	m.mu.Unlock()

	m.drain(items)
}

func (m *Manager) onInterrupted() {
	m.mu.Lock()
	ready := m.respCtx.Ready()
	itemID := m.respCtx.ItemID
	elapsed := m.respCtx.ElapsedMs(time.Now())
	m.responseActive = false
	m.respCtx.Clear()
	m.mu.Unlock()

	if !ready {
		return
	}

	if err := m.sender.SendJSON(transport.ConversationItemTruncateEvent{
		ClientEvent:  transport.NewClientEvent("conversation.item.truncate"),
		ItemID:       itemID,
		ContentIndex: 0,
		AudioEndMs:   elapsed,
	}); err != nil {
		obslog.Warn("message manager: truncate send failed", "error", err)
	}
}

func (m *Manager) drain(items []pendingSend) {
	if len(items) == 0 {
		return
	}
	ctx := context.Background()
	for _, fn := range items {
		_ = m.limiter.Wait(ctx)
		if err := fn(m); err != nil {
			obslog.Warn("message manager: queued send failed", "error", err)
		}
	}
}

// InitSession sends the session.update message exactly once. Failure is
// fatal to the session.
func (m *Manager) InitSession(settings SessionSettings) error {
	m.mu.Lock()
	m.settings = settings
	m.mu.Unlock()

	err := m.sender.SendJSON(transport.SessionUpdateEvent{
		ClientEvent: transport.NewClientEvent("session.update"),
		Session: transport.SessionConfigPayload{
			Modalities:              settings.Modalities,
			Instructions:            settings.Instructions,
			Voice:                   settings.Voice,
			InputAudioFormat:        settings.InputAudioFormat,
			OutputAudioFormat:       settings.OutputAudioFormat,
			Tools:                   settings.Tools,
			Temperature:             settings.Temperature,
			MaxResponseOutputTokens: settings.MaxResponseOutputTokens,
		},
	})
	if err != nil {
		return orcherr.New("messagemanager", "InitSession", orcherr.KindConfiguration, err)
	}
	return nil
}

// SubmitToolResult sends the function-call-output item followed by a
// response.create, or queues both if a response is currently active.
func (m *Manager) SubmitToolResult(result voicemodel.FunctionCallResult) {
	send := func(m *Manager) error {
		if err := m.sender.SendJSON(transport.ConversationItemCreateEvent{
			ClientEvent: transport.NewClientEvent("conversation.item.create"),
			Item: transport.ConversationItem{
				Type:   "function_call_output",
				CallID: result.CallID,
				Output: voicemodel.SerializeOutput(result.Output),
			},
		}); err != nil {
			return err
		}
		return m.sender.SendJSON(transport.ResponseCreateEvent{
			ClientEvent: transport.NewClientEvent("response.create"),
			Response:    &transport.ResponseConfigPayload{Instructions: result.EffectiveResponseInstruction()},
		})
	}

	m.mu.Lock()
	active := m.responseActive
	if active {
		m.queue.push(send)
	}
	m.mu.Unlock()

	if !active {
		if err := send(m); err != nil {
			obslog.Warn("message manager: tool result send failed", "error", err)
		}
	}
}

// SendProgressUpdate instructs the model to speak exactly chunk, or queues
// the instruction if a response is currently active.
func (m *Manager) SendProgressUpdate(chunk string) {
	send := func(m *Manager) error {
		return m.sender.SendJSON(transport.ResponseCreateEvent{
			ClientEvent: transport.NewClientEvent("response.create"),
			Response:    &transport.ResponseConfigPayload{Instructions: chunk},
		})
	}

	m.mu.Lock()
	active := m.responseActive
	if active {
		m.queue.push(send)
	}
	m.mu.Unlock()

	if !active {
		if err := send(m); err != nil {
			obslog.Warn("message manager: progress update send failed", "error", err)
		}
	}
}

// ResponseActive reports whether a remote response is currently being generated.
func (m *Manager) ResponseActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.responseActive
}

// QueueLen reports the number of sends currently queued, for tests.
func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.len()
}

// CurrentSettings returns the session settings last sent, for snapshotting
// into sessioncache by the Session Coordinator.
func (m *Manager) CurrentSettings() SessionSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}
