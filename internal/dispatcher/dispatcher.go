// Package dispatcher implements the Event Dispatcher: it decodes frames
// delivered by the transport's receive pump into typed internal events and
// routes them onto the event bus via a closed protocol-type -> EventTag table.
package dispatcher

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/mathisarends/voiceorchestrator/internal/eventbus"
	"github.com/mathisarends/voiceorchestrator/internal/metrics"
	"github.com/mathisarends/voiceorchestrator/internal/obslog"
	"github.com/mathisarends/voiceorchestrator/internal/voicemodel"
)

// ignoredTypes are protocol events explicitly acknowledged but not translated
// into an internal event.
var ignoredTypes = map[string]bool{
	"session.updated": true,
}

// MinProtocolVersion is the oldest realtime protocol revision this
// dispatcher was written against. A session.created reporting an older
// version is logged as a warning, never treated as fatal.
var MinProtocolVersion = semver.MustParse("1.0.0")

// Dispatcher decodes inbound frames and publishes at most one internal event per frame.
type Dispatcher struct {
	bus *eventbus.Bus
}

// New creates a Dispatcher publishing onto bus.
func New(bus *eventbus.Bus) *Dispatcher {
	return &Dispatcher{bus: bus}
}

// Handle decodes one inbound frame and publishes the corresponding internal
// event, or drops it with a log line if it is malformed, unknown, or fails
// payload validation. Never returns an error: dispatch failures are logged
// and dropped, not escalated.
func (d *Dispatcher) Handle(data []byte) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		obslog.Warn("dispatcher: malformed frame", "error", err)
		metrics.DispatcherDrops.WithLabelValues("malformed").Inc()
		return
	}

	if ignoredTypes[envelope.Type] {
		obslog.Debug("dispatcher: ignored frame", "type", envelope.Type)
		return
	}

	switch envelope.Type {
	case "session.created":
		d.handleSessionCreated(data)
	case "input_audio_buffer.speech_started":
		d.bus.PublishSync(eventbus.UserStartedSpeaking, nil)
	case "input_audio_buffer.speech_stopped":
		d.bus.PublishSync(eventbus.UserSpeechEnded, nil)
	case "response.created":
		d.bus.PublishSync(eventbus.AssistantStartedResponse, nil)
	case "response.done":
		d.bus.PublishSync(eventbus.AssistantCompletedResponse, nil)
	case "response.output_audio.delta":
		d.handleAudioDelta(data)
	case "response.output_audio_transcript.done":
		d.handleTranscriptDone(data, eventbus.AssistantTranscriptCompleted)
	case "conversation.item.input_audio_transcription.completed":
		d.handleTranscriptDone(data, eventbus.UserTranscriptCompleted)
	case "response.function_call_arguments.done":
		d.handleFunctionCall(data)
	case "conversation.item.truncated":
		d.bus.PublishSync(eventbus.AssistantSpeechInterrupted, nil)
	case "mcp_call_arguments.done":
		d.bus.PublishSync(eventbus.AssistantStartedRemoteToolCall, nil)
	case "response.mcp_call.completed":
		d.bus.PublishSync(eventbus.AssistantCompletedRemoteToolCallResult, nil)
	case "response.mcp_call.failed":
		d.bus.PublishSync(eventbus.AssistantFailedRemoteToolCall, nil)
	case "error":
		d.handleError(data)
	default:
		obslog.Warn("dispatcher: unknown frame type", "type", envelope.Type)
		metrics.DispatcherDrops.WithLabelValues("unknown_type").Inc()
	}
}

// handleSessionCreated logs the new session's ID and warns,
// non-fatally, if the server advertises a protocol
// version older than MinProtocolVersion.
func (d *Dispatcher) handleSessionCreated(data []byte) {
	var payload struct {
		Session struct {
			ID              string `json:"id"`
			ProtocolVersion string `json:"protocol_version"`
		} `json:"session"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		obslog.Warn("dispatcher: invalid session.created payload", "error", err)
		metrics.DispatcherDrops.WithLabelValues("invalid_session_created").Inc()
		return
	}
	obslog.Info("dispatcher: session created", "session_id", payload.Session.ID)

	if payload.Session.ProtocolVersion == "" {
		return
	}
	v, err := semver.NewVersion(payload.Session.ProtocolVersion)
	if err != nil {
		obslog.Warn("dispatcher: unparsable protocol_version", "value", payload.Session.ProtocolVersion)
		return
	}
	if v.LessThan(MinProtocolVersion) {
		obslog.Warn("dispatcher: remote protocol version older than expected",
			"remote", v.String(), "min", MinProtocolVersion.String())
	}
}

func (d *Dispatcher) handleAudioDelta(data []byte) {
	var payload struct {
		Delta  string `json:"delta"`
		ItemID string `json:"item_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		obslog.Warn("dispatcher: invalid audio delta payload", "error", err)
		metrics.DispatcherDrops.WithLabelValues("invalid_audio_delta").Inc()
		return
	}
	if payload.Delta == "" {
		obslog.Warn("dispatcher: empty audio delta dropped", "item_id", payload.ItemID)
		metrics.DispatcherDrops.WithLabelValues("empty_audio_delta").Inc()
		return
	}
	pcm, err := base64.StdEncoding.DecodeString(payload.Delta)
	if err != nil {
		obslog.Warn("dispatcher: undecodable audio delta", "error", err)
		metrics.DispatcherDrops.WithLabelValues("undecodable_audio_delta").Inc()
		return
	}
	d.bus.PublishSync(eventbus.AudioChunkReceived, voicemodel.AudioChunk{ItemID: payload.ItemID, PCM: pcm})
}

func (d *Dispatcher) handleTranscriptDone(data []byte, tag eventbus.EventTag) {
	var payload struct {
		Transcript string `json:"transcript"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		obslog.Warn("dispatcher: invalid transcript payload", "error", err)
		metrics.DispatcherDrops.WithLabelValues("invalid_transcript").Inc()
		return
	}
	d.bus.PublishSync(tag, payload.Transcript)
}

func (d *Dispatcher) handleFunctionCall(data []byte) {
	var payload struct {
		Name       string          `json:"name"`
		CallID     string          `json:"call_id"`
		Arguments  json.RawMessage `json:"arguments"`
		ResponseID string          `json:"response_id"`
		ItemID     string          `json:"item_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		obslog.Warn("dispatcher: invalid function call payload", "error", err)
		metrics.DispatcherDrops.WithLabelValues("invalid_function_call").Inc()
		return
	}
	args := map[string]any{}
	if len(payload.Arguments) > 0 {
		var s string
		if err := json.Unmarshal(payload.Arguments, &s); err == nil {
			args = voicemodel.DecodeArguments(s)
		} else if err := json.Unmarshal(payload.Arguments, &args); err != nil {
			args = map[string]any{voicemodel.ArgumentsUndecodableKey: string(payload.Arguments)}
		}
	}
	item := voicemodel.FunctionCallItem{
		Name:       payload.Name,
		CallID:     payload.CallID,
		Arguments:  args,
		ResponseID: payload.ResponseID,
		ItemID:     payload.ItemID,
	}
	d.bus.PublishSync(eventbus.AssistantStartedToolCall, item)
}

func (d *Dispatcher) handleError(data []byte) {
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		obslog.Warn("dispatcher: invalid error payload", "error", err)
		metrics.DispatcherDrops.WithLabelValues("invalid_error_payload").Inc()
		return
	}
	d.bus.PublishSync(eventbus.ErrorOccurred, voicemodel.ProtocolError{
		Code:    payload.Error.Code,
		Message: payload.Error.Message,
	})
}

// now exists so tests can deterministically stub time if ever needed.
var now = time.Now
