package examples

import (
	"fmt"

	"github.com/mathisarends/voiceorchestrator/internal/config"
	"github.com/mathisarends/voiceorchestrator/internal/eventbus"
	"github.com/mathisarends/voiceorchestrator/internal/messagemanager"
	"github.com/mathisarends/voiceorchestrator/internal/tools"
)

// SetSpeechSpeed publishes an AssistantConfigUpdateRequest to mutate the
// in-flight session's speech speed. Unlike VolumeAdjustment it exercises
// the EventBus special parameter rather than AudioPlayer.
var SetSpeechSpeed = tools.Descriptor{
	Name:        "set_speech_speed",
	Description: "Change how fast the assistant speaks.",
	Params: []tools.Param{
		{Name: "speed", Type: tools.TypeNumber, Description: "0.25 (slowest) to 1.5 (fastest)", Required: true},
	},
	RequiresSpecial: []string{"EventBus"},
	Handler: func(args map[string]any, special tools.SpecialToolParameters) (any, error) {
		speed, ok := args["speed"].(float64)
		if !ok {
			return nil, fmt.Errorf("speed must be a number")
		}
		speed = config.ClampSpeechSpeed(speed)
		special.EventBus.PublishSync(eventbus.AssistantConfigUpdateRequest, messagemanager.ConfigUpdate{
			SpeechSpeed: &speed,
		})
		return fmt.Sprintf("Speech speed set to %.2fx.", speed), nil
	},
}
