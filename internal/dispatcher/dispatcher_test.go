package dispatcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mathisarends/voiceorchestrator/internal/eventbus"
	"github.com/mathisarends/voiceorchestrator/internal/voicemodel"
)

func subscribeOnce(t *testing.T, bus *eventbus.Bus, tag eventbus.EventTag) <-chan any {
	t.Helper()
	ch := make(chan any, 1)
	_, err := bus.Subscribe(tag, eventbus.Sync1(func(data any) {
		select {
		case ch <- data:
		default:
		}
	}))
	require.NoError(t, err)
	return ch
}

func expectNone(t *testing.T, ch <-chan any) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("expected no publish, got %#v", v)
	case <-time.After(100 * time.Millisecond):
	}
}

func expectSome(t *testing.T, ch <-chan any) any {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("expected a publish, got none")
		return nil
	}
}

func TestDispatcher_MalformedFrameDropped(t *testing.T) {
	bus := eventbus.New(eventbus.Options{WorkerPoolSize: 1})
	ch := subscribeOnce(t, bus, eventbus.ErrorOccurred)

	d := New(bus)
	d.Handle([]byte("not json"))

	expectNone(t, ch)
}

func TestDispatcher_UnknownTypeIgnored(t *testing.T) {
	bus := eventbus.New(eventbus.Options{WorkerPoolSize: 1})
	ch := subscribeOnce(t, bus, eventbus.ErrorOccurred)

	d := New(bus)
	d.Handle([]byte(`{"type":"some.future.event"}`))

	expectNone(t, ch)
}

func TestDispatcher_SessionUpdatedIsExplicitlyIgnored(t *testing.T) {
	bus := eventbus.New(eventbus.Options{WorkerPoolSize: 1})
	ch := subscribeOnce(t, bus, eventbus.ErrorOccurred)

	d := New(bus)
	d.Handle([]byte(`{"type":"session.updated"}`))

	expectNone(t, ch)
}

func TestDispatcher_EmptyAudioDeltaDropped(t *testing.T) {
	bus := eventbus.New(eventbus.Options{WorkerPoolSize: 1})
	ch := subscribeOnce(t, bus, eventbus.AudioChunkReceived)

	d := New(bus)
	d.Handle([]byte(`{"type":"response.output_audio.delta","delta":"","item_id":"R1"}`))

	expectNone(t, ch)
}

func TestDispatcher_AudioDeltaDecodedAndPublished(t *testing.T) {
	bus := eventbus.New(eventbus.Options{WorkerPoolSize: 1})
	ch := subscribeOnce(t, bus, eventbus.AudioChunkReceived)

	d := New(bus)
	// base64("hi") == "aGk="
	d.Handle([]byte(`{"type":"response.output_audio.delta","delta":"aGk=","item_id":"R1"}`))

	got := expectSome(t, ch).(voicemodel.AudioChunk)
	require.Equal(t, "R1", got.ItemID)
	require.Equal(t, []byte("hi"), got.PCM)
}

func TestDispatcher_FunctionCallArgumentsDecodedFromJSONString(t *testing.T) {
	bus := eventbus.New(eventbus.Options{WorkerPoolSize: 1})
	ch := subscribeOnce(t, bus, eventbus.AssistantStartedToolCall)

	d := New(bus)
	d.Handle([]byte(`{"type":"response.function_call_arguments.done","name":"get_time","call_id":"C7","arguments":"{\"city\":\"Berlin\"}"}`))

	got := expectSome(t, ch).(voicemodel.FunctionCallItem)
	require.Equal(t, "get_time", got.Name)
	require.Equal(t, "C7", got.CallID)
	require.Equal(t, "Berlin", got.Arguments["city"])
}

func TestDispatcher_UndecodableArgumentsPreservedUnderSentinelKey(t *testing.T) {
	bus := eventbus.New(eventbus.Options{WorkerPoolSize: 1})
	ch := subscribeOnce(t, bus, eventbus.AssistantStartedToolCall)

	d := New(bus)
	d.Handle([]byte(`{"type":"response.function_call_arguments.done","name":"weird","call_id":"C1","arguments":"not-json"}`))

	got := expectSome(t, ch).(voicemodel.FunctionCallItem)
	require.Equal(t, "not-json", got.Arguments[voicemodel.ArgumentsUndecodableKey])
}

func TestDispatcher_ErrorEventPublishesProtocolError(t *testing.T) {
	bus := eventbus.New(eventbus.Options{WorkerPoolSize: 1})
	ch := subscribeOnce(t, bus, eventbus.ErrorOccurred)

	d := New(bus)
	d.Handle([]byte(`{"type":"error","error":{"code":"bad_request","message":"nope"}}`))

	got := expectSome(t, ch).(voicemodel.ProtocolError)
	require.Equal(t, "bad_request", got.Code)
	require.Equal(t, "nope", got.Message)
}

func TestDispatcher_TruncatedMapsToAssistantSpeechInterrupted(t *testing.T) {
	bus := eventbus.New(eventbus.Options{WorkerPoolSize: 1})
	ch := subscribeOnce(t, bus, eventbus.AssistantSpeechInterrupted)

	d := New(bus)
	d.Handle([]byte(`{"type":"conversation.item.truncated"}`))

	expectSome(t, ch)
}

func TestDispatcher_ResponseLifecycleEvents(t *testing.T) {
	bus := eventbus.New(eventbus.Options{WorkerPoolSize: 1})
	started := subscribeOnce(t, bus, eventbus.AssistantStartedResponse)
	completed := subscribeOnce(t, bus, eventbus.AssistantCompletedResponse)

	d := New(bus)
	d.Handle([]byte(`{"type":"response.created"}`))
	d.Handle([]byte(`{"type":"response.done"}`))

	expectSome(t, started)
	expectSome(t, completed)
}
