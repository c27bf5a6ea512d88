package examples

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mathisarends/voiceorchestrator/internal/eventbus"
	"github.com/mathisarends/voiceorchestrator/internal/messagemanager"
	"github.com/mathisarends/voiceorchestrator/internal/tools"
)

func TestSetSpeechSpeed_PublishesClampedConfigUpdate(t *testing.T) {
	bus := eventbus.New(eventbus.Options{WorkerPoolSize: 1})

	var got messagemanager.ConfigUpdate
	received := make(chan struct{}, 1)
	_, err := bus.Subscribe(eventbus.AssistantConfigUpdateRequest, eventbus.Sync1(func(data any) {
		got = data.(messagemanager.ConfigUpdate)
		received <- struct{}{}
	}))
	require.NoError(t, err)

	special := tools.SpecialToolParameters{EventBus: bus}
	out, err := SetSpeechSpeed.Handler(map[string]any{"speed": 3.0}, special)
	require.NoError(t, err)
	require.Contains(t, out, "1.50")

	<-received
	require.NotNil(t, got.SpeechSpeed)
	require.InDelta(t, 1.5, *got.SpeechSpeed, 0.0001)
}

func TestSetSpeechSpeed_RejectsNonNumericArg(t *testing.T) {
	special := tools.SpecialToolParameters{EventBus: eventbus.New(eventbus.Options{WorkerPoolSize: 1})}
	_, err := SetSpeechSpeed.Handler(map[string]any{"speed": "fast"}, special)
	require.Error(t, err)
}
