package eventbus

// EventTag is the closed set of internal voice-assistant events flowing
// through the bus. Every remote protocol event the dispatcher consumes maps
// to exactly one EventTag, or is explicitly ignored (see the dispatcher
// package).
type EventTag string

const (
	WakeWordDetected                       EventTag = "wake_word_detected"
	UserStartedSpeaking                    EventTag = "user_started_speaking"
	UserSpeechEnded                        EventTag = "user_speech_ended"
	UserTranscriptCompleted                EventTag = "user_transcript_completed"
	AudioChunkReceived                     EventTag = "audio_chunk_received"
	AssistantStartedResponse               EventTag = "assistant_started_response"
	AssistantCompletedResponse             EventTag = "assistant_completed_response"
	AssistantTranscriptCompleted           EventTag = "assistant_transcript_completed"
	AssistantSpeechInterrupted             EventTag = "assistant_speech_interrupted"
	AssistantStartedToolCall               EventTag = "assistant_started_tool_call"
	AssistantReceivedToolCallResult        EventTag = "assistant_received_tool_call_result"
	AssistantStartedRemoteToolCall         EventTag = "assistant_started_remote_tool_call"
	AssistantCompletedRemoteToolCallResult EventTag = "assistant_completed_remote_tool_call_result"
	AssistantFailedRemoteToolCall          EventTag = "assistant_failed_remote_tool_call"
	IdleTransition                         EventTag = "idle_transition"
	TimeoutOccurred                        EventTag = "timeout_occurred"
	AssistantConfigUpdateRequest           EventTag = "assistant_config_update_request"
	ErrorOccurred                          EventTag = "error_occurred"
)

// Kind selects which dispatch lane a handler runs on: Sync handlers run on
// the bounded worker pool so they never block the cooperative scheduler;
// Async handlers run on the scheduler itself.
type Kind int

const (
	Sync Kind = iota
	Async
)

// HandlerSpec carries a handler plus its dispatch Kind and arity, chosen
// explicitly at registration time rather than detected via reflection.
// Exactly one of Func0/Func1/Func2 is non-nil; the constructors below
// enforce this.
type HandlerSpec struct {
	Kind  Kind
	Func0 func()
	Func1 func(data any)
	Func2 func(tag EventTag, data any)
}

// Sync0 builds a synchronous, zero-argument handler spec.
func Sync0(fn func()) HandlerSpec { return HandlerSpec{Kind: Sync, Func0: fn} }

// Sync1 builds a synchronous, one-argument handler spec. The argument is the
// published data if non-nil, else the event tag.
func Sync1(fn func(data any)) HandlerSpec { return HandlerSpec{Kind: Sync, Func1: fn} }

// Sync2 builds a synchronous, two-argument handler spec receiving (tag, data).
func Sync2(fn func(tag EventTag, data any)) HandlerSpec {
	return HandlerSpec{Kind: Sync, Func2: fn}
}

// Async0 builds an asynchronous, zero-argument handler spec.
func Async0(fn func()) HandlerSpec { return HandlerSpec{Kind: Async, Func0: fn} }

// Async1 builds an asynchronous, one-argument handler spec.
func Async1(fn func(data any)) HandlerSpec { return HandlerSpec{Kind: Async, Func1: fn} }

// Async2 builds an asynchronous, two-argument handler spec receiving (tag, data).
func Async2(fn func(tag EventTag, data any)) HandlerSpec {
	return HandlerSpec{Kind: Async, Func2: fn}
}

// invoke calls whichever of Func0/Func1/Func2 is set, applying the arity-1
// fallback rule: when data is nil, arity-1 handlers receive the tag instead.
func (s HandlerSpec) invoke(tag EventTag, data any) {
	switch {
	case s.Func0 != nil:
		s.Func0()
	case s.Func1 != nil:
		if data != nil {
			s.Func1(data)
		} else {
			s.Func1(tag)
		}
	case s.Func2 != nil:
		s.Func2(tag, data)
	}
}
