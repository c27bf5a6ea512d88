// Package examples ships example tool registrations exercising each tool
// calling path end-to-end: SpecialToolParameters injection, a plain
// synchronous tool, and a streaming tool. These are example registrations,
// not library surface.
package examples

import (
	"fmt"

	"github.com/mathisarends/voiceorchestrator/internal/tools"
)

// VolumeAdjustment pairs a runtime-injected audio-player handle with a
// model-supplied direction/amount.
var VolumeAdjustment = tools.Descriptor{
	Name:        "adjust_volume",
	Description: "Turn the assistant's speaking volume up or down.",
	Params: []tools.Param{
		{Name: "direction", Type: tools.TypeString, Description: "'up' or 'down'", Required: true},
		{Name: "amount", Type: tools.TypeNumber, Description: "Fractional step, e.g. 0.1 for 10%", Required: false},
	},
	RequiresSpecial: []string{"AudioPlayer"},
	Handler: func(args map[string]any, special tools.SpecialToolParameters) (any, error) {
		direction, _ := args["direction"].(string)
		amount, ok := args["amount"].(float64)
		if !ok || amount <= 0 {
			amount = 0.1
		}
		switch direction {
		case "up":
			special.AudioPlayer.SetVolume(special.AudioPlayer.Volume() + amount)
		case "down":
			special.AudioPlayer.SetVolume(special.AudioPlayer.Volume() - amount)
		default:
			return nil, fmt.Errorf("unknown direction %q, expected 'up' or 'down'", direction)
		}
		return fmt.Sprintf("Volume is now %.0f%%.", special.AudioPlayer.Volume()*100), nil
	},
}
