package tools

import "github.com/mathisarends/voiceorchestrator/internal/transport"

// ParamType is the JSON-schema primitive type of one tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// Param declares one user-facing tool argument. Declaration is explicit
// rather than reflected off a Go function signature: Go reflection exposes
// parameter types but not parameter names, so the schema the model sees is
// built from this declaration instead of from reflection over a handler
// signature.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// deriveSchema builds the OpenAI-function-call JSON schema for params. It
// never needs to skip a SpecialToolParameters field by name: special values
// are injected through a dedicated handler argument, never mixed into
// params, so the schema can never leak one by construction; Register
// still defends it explicitly in case a caller names a param after one.
func deriveSchema(name, description string, params []Param) transport.ToolDefPayload {
	properties := make(map[string]any, len(params))
	required := make([]string, 0, len(params))
	for _, p := range params {
		properties[p.Name] = map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return transport.ToolDefPayload{
		Type:        "function",
		Name:        name,
		Description: description,
		Parameters: map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}
