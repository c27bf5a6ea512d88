package coordinator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/mathisarends/voiceorchestrator/internal/config"
	"github.com/mathisarends/voiceorchestrator/internal/statemachine"
	"github.com/mathisarends/voiceorchestrator/internal/tools"
)

// fakeDetector is a wakeword.Detector the test fires by hand.
type fakeDetector struct {
	events  chan struct{}
	stopped bool
}

func newFakeDetector() *fakeDetector {
	return &fakeDetector{events: make(chan struct{}, 1)}
}

func (d *fakeDetector) Start(ctx context.Context) error { return nil }
func (d *fakeDetector) Stop() error                     { d.stopped = true; return nil }
func (d *fakeDetector) DetectedEvent() <-chan struct{}  { return d.events }
func (d *fakeDetector) Fire()                           { d.events <- struct{}{} }

// recordingOutput collects every PCM write so the test can assert on the
// playback FIFO's ordering.
type recordingOutput struct {
	mu     sync.Mutex
	writes [][]byte
}

func (r *recordingOutput) Write(pcm []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, append([]byte(nil), pcm...))
	return nil
}
func (r *recordingOutput) Stop() error             { return nil }
func (r *recordingOutput) PlayFile(p string) error { return nil }
func (r *recordingOutput) Writes() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.writes...)
}

// realtimeServer is a scripted realtime-endpoint double: the test pushes
// server events through Outbound and inspects client frames via Received.
type realtimeServer struct {
	*httptest.Server
	Received chan map[string]any
	Outbound chan []byte
}

func newRealtimeServer(t *testing.T) *realtimeServer {
	t.Helper()
	s := &realtimeServer{
		Received: make(chan map[string]any, 64),
		Outbound: make(chan []byte, 64),
	}
	upgrader := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		go func() {
			for msg := range s.Outbound {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var m map[string]any
			if err := json.Unmarshal(data, &m); err != nil {
				continue
			}
			select {
			case s.Received <- m:
			default:
			}
		}
	}))
	t.Cleanup(s.Server.Close)
	return s
}

func (s *realtimeServer) URL() string {
	return "ws" + strings.TrimPrefix(s.Server.URL, "http")
}

// awaitFrame drains Received until a frame of the wanted type arrives,
// skipping the microphone's input_audio_buffer.append stream.
func (s *realtimeServer) awaitFrame(t *testing.T, wantType string) map[string]any {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case frame := <-s.Received:
			if frame["type"] == wantType {
				return frame
			}
		case <-deadline:
			t.Fatalf("timed out waiting for a %q frame", wantType)
			return nil
		}
	}
}

func awaitState(t *testing.T, c *Coordinator, want statemachine.State) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == want },
		3*time.Second, 10*time.Millisecond, "expected state %q", want)
}

func testConfig(url string) config.Config {
	cfg := config.Default()
	cfg.RealtimeURL = url
	cfg.RealtimeAPIKey = "test-key"
	cfg.WakeWordEngineKey = "test-wake-key"
	cfg.ConnectWait = 5 * time.Second
	cfg.SilenceWait = time.Minute
	return cfg
}

func TestColdStartWakeAndShortExchange(t *testing.T) {
	srv := newRealtimeServer(t)
	detector := newFakeDetector()
	output := &recordingOutput{}

	c := New(Deps{
		Config:   testConfig(srv.URL()),
		Detector: detector,
		Mic:      bytes.NewReader(make([]byte, 8192*4)),
		Output:   output,
	}, tools.New())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()

	require.Equal(t, statemachine.Idle, c.State())

	detector.Fire()
	awaitState(t, c, statemachine.Listening)
	srv.awaitFrame(t, "session.update")

	srv.Outbound <- []byte(`{"type":"input_audio_buffer.speech_started"}`)
	srv.Outbound <- []byte(`{"type":"input_audio_buffer.speech_stopped"}`)
	awaitState(t, c, statemachine.Responding)

	srv.Outbound <- []byte(`{"type":"response.created"}`)
	for _, pcm := range [][]byte{{1, 0}, {2, 0}, {3, 0}} {
		delta, err := json.Marshal(map[string]any{
			"type":    "response.output_audio.delta",
			"delta":   base64.StdEncoding.EncodeToString(pcm),
			"item_id": "R1",
		})
		require.NoError(t, err)
		srv.Outbound <- delta
	}
	require.Eventually(t, func() bool { return len(output.Writes()) == 3 },
		3*time.Second, 10*time.Millisecond, "all three deltas must reach the device")
	writes := output.Writes()
	require.Equal(t, []byte{1, 0}, writes[0])
	require.Equal(t, []byte{2, 0}, writes[1])
	require.Equal(t, []byte{3, 0}, writes[2])

	srv.Outbound <- []byte(`{"type":"response.done"}`)
	awaitState(t, c, statemachine.Listening)

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("coordinator did not shut down")
	}
	require.True(t, detector.stopped, "shutdown must stop the wake-word detector")
}

func TestBargeInSendsTruncateWithLatchedItemID(t *testing.T) {
	srv := newRealtimeServer(t)
	detector := newFakeDetector()

	c := New(Deps{
		Config:   testConfig(srv.URL()),
		Detector: detector,
		Mic:      bytes.NewReader(make([]byte, 8192*4)),
		Output:   &recordingOutput{},
	}, tools.New())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	detector.Fire()
	awaitState(t, c, statemachine.Listening)
	srv.awaitFrame(t, "session.update")

	srv.Outbound <- []byte(`{"type":"input_audio_buffer.speech_stopped"}`)
	awaitState(t, c, statemachine.Responding)

	srv.Outbound <- []byte(`{"type":"response.created"}`)
	delta, err := json.Marshal(map[string]any{
		"type":    "response.output_audio.delta",
		"delta":   base64.StdEncoding.EncodeToString([]byte{1, 0}),
		"item_id": "R1",
	})
	require.NoError(t, err)
	srv.Outbound <- delta

	// Let the delta reach the playback worker so the assistant counts as
	// audibly speaking before the user talks over it.
	time.Sleep(150 * time.Millisecond)
	srv.Outbound <- []byte(`{"type":"input_audio_buffer.speech_started"}`)

	truncate := srv.awaitFrame(t, "conversation.item.truncate")
	require.Equal(t, "R1", truncate["item_id"])
	require.EqualValues(t, 0, truncate["content_index"])
	require.Contains(t, truncate, "audio_end_ms")
}
