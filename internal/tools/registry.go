// Package tools implements the Tool Registry and Executor: handler
// registration, OpenAI-shaped schema derivation, SpecialToolParameters
// injection, and synchronous/streaming execution.
package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/mathisarends/voiceorchestrator/internal/orcherr"
	"github.com/mathisarends/voiceorchestrator/internal/transport"
)

// Handler is a synchronous tool callback. special carries runtime-injected
// capabilities; handlers read only the fields they declared via
// RequiresSpecial. The returned value is serialized per voicemodel.SerializeOutput.
type Handler func(args map[string]any, special SpecialToolParameters) (any, error)

// StreamHandler is a streaming tool callback.
// Each value sent on the returned channel is forwarded to the Message
// Manager as a spoken progress update; the channel must be closed when the
// handler is done.
type StreamHandler func(args map[string]any, special SpecialToolParameters) (<-chan string, error)

// Descriptor is one registered tool.
type Descriptor struct {
	Name             string
	Description      string
	Params           []Param
	RequiresSpecial  []string // SpecialToolParameters field names this tool needs
	Handler          Handler
	StreamHandler    StreamHandler
	ExecutionMessage string // optional spoken cue sent before the handler runs
}

func (d Descriptor) streaming() bool { return d.StreamHandler != nil }

// Registry holds the tools available to the model for the lifetime of a
// session: locally-registered descriptors plus any configured remote MCP
// tool references.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*Descriptor
	remotes []RemoteToolReference
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{tools: make(map[string]*Descriptor)}
}

// Register adds d to the registry. It rejects a duplicate name, a
// descriptor with neither Handler nor StreamHandler set, and a Param whose
// name collides with a SpecialToolParameters field.
func (r *Registry) Register(d Descriptor) error {
	if d.Handler == nil && d.StreamHandler == nil {
		return orcherr.New("tools", "Register", orcherr.KindConfiguration,
			fmt.Errorf("tool %q has neither Handler nor StreamHandler", d.Name))
	}
	special := specialFieldNames()
	for _, p := range d.Params {
		if special[p.Name] {
			return orcherr.New("tools", "Register", orcherr.KindConfiguration,
				fmt.Errorf("tool %q param %q collides with a SpecialToolParameters field", d.Name, p.Name))
		}
	}
	if err := validateSchema(deriveSchema(d.Name, d.Description, d.Params)); err != nil {
		return orcherr.New("tools", "Register", orcherr.KindConfiguration, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[d.Name]; exists {
		return orcherr.New("tools", "Register", orcherr.KindConfiguration, orcherr.ErrDuplicateTool)
	}
	cp := d
	r.tools[d.Name] = &cp
	return nil
}

// Get looks up a registered tool by name.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

// RegisterRemote adds a remote MCP tool reference to surface in the
// session.update tools array. It rejects a reference without a URL and a
// duplicate server label.
func (r *Registry) RegisterRemote(ref RemoteToolReference) error {
	if ref.ServerURL == "" {
		return orcherr.New("tools", "RegisterRemote", orcherr.KindConfiguration,
			fmt.Errorf("remote tool reference %q has no server URL", ref.ServerLabel))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.remotes {
		if existing.ServerLabel == ref.ServerLabel {
			return orcherr.New("tools", "RegisterRemote", orcherr.KindConfiguration,
				fmt.Errorf("remote tool server %q already registered", ref.ServerLabel))
		}
	}
	r.remotes = append(r.remotes, ref)
	return nil
}

// OpenAISchema builds the session.update tools array: the union of every
// locally-registered tool's derived schema and every configured remote MCP
// tool reference.
func (r *Registry) OpenAISchema() []transport.ToolDefPayload {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]transport.ToolDefPayload, 0, len(r.tools)+len(r.remotes))
	for _, d := range r.tools {
		out = append(out, deriveSchema(d.Name, d.Description, d.Params))
	}
	for _, ref := range r.remotes {
		out = append(out, transport.ToolDefPayload{
			Type:        "mcp",
			ServerLabel: ref.ServerLabel,
			ServerURL:   ref.ServerURL,
		})
	}
	return out
}

// validateSchema compiles the derived JSON schema through gojsonschema to
// catch a malformed declaration at registration time rather than at the
// first tool call.
func validateSchema(def transport.ToolDefPayload) error {
	data, err := json.Marshal(def.Parameters)
	if err != nil {
		return err
	}
	_, err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	return err
}
