package messagemanager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mathisarends/voiceorchestrator/internal/eventbus"
	"github.com/mathisarends/voiceorchestrator/internal/transport/transporttest"
)

func TestManager_ConfigUpdateMutatesSettingsAndResendsSessionUpdate(t *testing.T) {
	bus := eventbus.New(eventbus.Options{WorkerPoolSize: 1})
	fake := transporttest.New()
	m := New(fake, bus)

	require.NoError(t, m.InitSession(SessionSettings{Voice: "alloy", SpeechSpeed: 1.0}))

	speed := 0.5
	done := make(chan struct{})
	go func() {
		bus.PublishSync(eventbus.AssistantConfigUpdateRequest, ConfigUpdate{SpeechSpeed: &speed})
		close(done)
	}()
	<-done

	require.Eventually(t, func() bool {
		return m.CurrentSettings().SpeechSpeed == 0.5
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(fake.JSONSent) >= 2
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, "alloy", m.CurrentSettings().Voice, "voice left untouched by a speed-only update")
}
