// Package voicemodel holds the data-model types shared across the
// dispatcher, message manager, tool executor, and state machine.
package voicemodel

import (
	"encoding/json"
	"fmt"
	"time"
)

// ArgumentsUndecodableKey is the sentinel key FunctionCallItem.Arguments uses
// to preserve a raw arguments string that failed to decode as JSON, rather
// than discarding it.
const ArgumentsUndecodableKey = "_raw"

// FunctionCallItem is a model-initiated request to run a local tool handler.
type FunctionCallItem struct {
	Name       string
	CallID     string
	Arguments  map[string]any
	ResponseID string
	ItemID     string
}

// DecodeArguments parses raw into a map, accepting either a JSON object
// string or an already-decoded map passed through as JSON. An undecodable
// string is preserved under ArgumentsUndecodableKey instead of discarded.
func DecodeArguments(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err == nil {
		return m
	}
	return map[string]any{ArgumentsUndecodableKey: raw}
}

// FunctionCallResult is the outcome of executing a FunctionCallItem.
type FunctionCallResult struct {
	ToolName            string
	CallID              string
	Output              any
	ResponseInstruction string
}

const defaultResponseInstruction = "process the tool result and provide a helpful response"

// EffectiveResponseInstruction returns ResponseInstruction, or a generic
// default when it is empty.
func (r FunctionCallResult) EffectiveResponseInstruction() string {
	if r.ResponseInstruction != "" {
		return r.ResponseInstruction
	}
	return defaultResponseInstruction
}

// SerializeOutput renders a tool output for the wire: strings pass through,
// nil becomes empty string, everything else is JSON-encoded with a
// best-effort fallback to fmt.Sprintf.
func SerializeOutput(output any) string {
	if output == nil {
		return ""
	}
	if s, ok := output.(string); ok {
		return s
	}
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Sprintf("%v", output)
	}
	return string(data)
}

// CurrentResponseContext tracks the in-flight response's item_id and start
// time. The item_id is latched once per response and never overwritten.
type CurrentResponseContext struct {
	ItemID    string
	StartedAt time.Time
	hasItemID bool
	hasStart  bool
}

// ArmStart records the response start time. Called on AssistantStartedResponse.
func (c *CurrentResponseContext) ArmStart(now time.Time) {
	c.StartedAt = now
	c.hasStart = true
}

// LatchItemID records item_id only the first time it is called between
// ArmStart and Clear; subsequent calls are no-ops, per the "latched once"
// invariant.
func (c *CurrentResponseContext) LatchItemID(itemID string) {
	if c.hasItemID {
		return
	}
	c.ItemID = itemID
	c.hasItemID = true
}

// Ready reports whether both item_id and start time are set, the precondition
// for barge-in truncation.
func (c *CurrentResponseContext) Ready() bool {
	return c.hasItemID && c.hasStart
}

// ElapsedMs returns the milliseconds since ArmStart, valid only when Ready().
func (c *CurrentResponseContext) ElapsedMs(now time.Time) int64 {
	return now.Sub(c.StartedAt).Milliseconds()
}

// Clear resets the context at response end (completion or interruption).
func (c *CurrentResponseContext) Clear() {
	*c = CurrentResponseContext{}
}

// AudioChunk is the decoded payload of a response.output_audio.delta event.
type AudioChunk struct {
	ItemID string
	PCM    []byte
}

// ProtocolError is the structured payload of a server "error" event.
type ProtocolError struct {
	Code    string
	Message string
}

func (e ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
