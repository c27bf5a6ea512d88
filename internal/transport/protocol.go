// Package transport implements the duplex connection to the remote realtime
// API and the wire-level event types it carries: one dial/retry/heartbeat
// client generalized into the orchestrator's thin
// transport interface.
package transport

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ClientEvent is the envelope every client-to-server message carries.
type ClientEvent struct {
	EventID string `json:"event_id,omitempty"`
	Type    string `json:"type"`
}

// NewClientEvent builds a ClientEvent of the given type with a fresh
// random EventID, so every outbound frame can be correlated against a
// server-side error or acknowledgement that echoes it back.
func NewClientEvent(eventType string) ClientEvent {
	return ClientEvent{EventID: uuid.NewString(), Type: eventType}
}

// SessionUpdateEvent configures the realtime session.
type SessionUpdateEvent struct {
	ClientEvent
	Session SessionConfigPayload `json:"session"`
}

// SessionConfigPayload is the wire shape of the session configuration.
type SessionConfigPayload struct {
	Modalities              []string          `json:"modalities,omitempty"`
	Instructions            string            `json:"instructions,omitempty"`
	Voice                   string            `json:"voice,omitempty"`
	InputAudioFormat        string            `json:"input_audio_format,omitempty"`
	OutputAudioFormat       string            `json:"output_audio_format,omitempty"`
	Tools                   []ToolDefPayload  `json:"tools,omitempty"`
	Temperature             float64           `json:"temperature,omitempty"`
	MaxResponseOutputTokens any               `json:"max_response_output_tokens,omitempty"`
}

// ToolDefPayload is one entry of the session.update tools array: either a
// local function tool ("function", with name/description/parameters) or a
// remote MCP server reference ("mcp", with server_label/server_url).
type ToolDefPayload struct {
	Type        string         `json:"type"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	ServerLabel string         `json:"server_label,omitempty"`
	ServerURL   string         `json:"server_url,omitempty"`
}

// InputAudioBufferAppendEvent wraps base64 PCM16 audio for upload.
type InputAudioBufferAppendEvent struct {
	ClientEvent
	Audio string `json:"audio"`
}

// InputAudioBufferCommitEvent commits the pending input audio buffer.
type InputAudioBufferCommitEvent struct {
	ClientEvent
}

// InputAudioBufferClearEvent discards the pending input audio buffer.
type InputAudioBufferClearEvent struct {
	ClientEvent
}

// ConversationItem is either a message or a function_call_output item.
type ConversationItem struct {
	Type   string `json:"type"`
	Role   string `json:"role,omitempty"`
	CallID string `json:"call_id,omitempty"`
	Output string `json:"output,omitempty"`
}

// ConversationItemCreateEvent appends an item to the conversation.
type ConversationItemCreateEvent struct {
	ClientEvent
	Item ConversationItem `json:"item"`
}

// ConversationItemTruncateEvent truncates an in-flight item for barge-in.
type ConversationItemTruncateEvent struct {
	ClientEvent
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	AudioEndMs   int64  `json:"audio_end_ms"`
}

// ResponseCreateEvent requests a model response, optionally with instructions.
type ResponseCreateEvent struct {
	ClientEvent
	Response *ResponseConfigPayload `json:"response,omitempty"`
}

// ResponseConfigPayload carries response-scoped overrides for tool-result
// and progress-update sends.
type ResponseConfigPayload struct {
	Instructions string `json:"instructions,omitempty"`
}

// ResponseCancelEvent cancels an in-flight response.
type ResponseCancelEvent struct {
	ClientEvent
}

// OutputAudioBufferClearEvent discards any buffered outbound audio server-side.
type OutputAudioBufferClearEvent struct {
	ClientEvent
}

// InboundFrame is the minimally-typed shape every server->client frame is
// first decoded into; Raw keeps the original bytes so a caller can re-decode
// them against a specific payload type once it knows Type. The dispatcher
// decodes its own type envelope and does not use InboundFrame.
type InboundFrame struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// DecodeInboundFrame parses data as a generic inbound frame, retaining the
// original bytes in Raw for a second, type-specific decode.
func DecodeInboundFrame(data []byte) (InboundFrame, error) {
	var frame InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return InboundFrame{}, err
	}
	frame.Raw = data
	return frame, nil
}
