package examples

import (
	"fmt"

	"github.com/mathisarends/voiceorchestrator/internal/tools"
)

// Weather is a plain synchronous tool with no SpecialToolParameters,
// exercising the "no injection needed" registration path alongside
// VolumeAdjustment's injected-capability path.
var Weather = tools.Descriptor{
	Name:        "get_weather",
	Description: "Look up the current weather for a named city.",
	Params: []tools.Param{
		{Name: "city", Type: tools.TypeString, Description: "City name, e.g. 'Berlin'", Required: true},
	},
	Handler: func(args map[string]any, _ tools.SpecialToolParameters) (any, error) {
		city, _ := args["city"].(string)
		if city == "" {
			return nil, fmt.Errorf("city is required")
		}
		// Stub: a real deployment wires this to a weather API or the
		// manifest-driven tools.HTTPToolConfig path instead.
		return fmt.Sprintf("It's mild and partly cloudy in %s.", city), nil
	},
}
