package audio

import (
	"context"
	"io"

	"github.com/mathisarends/voiceorchestrator/internal/obslog"
)

// fanoutFrameBytes matches captureChunkBytes so a single physical microphone
// stream can feed both the Capturer and an independent wake-word detector
// without either one needing raw device access.
const fanoutFrameBytes = captureChunkBytes

// Fanout reads fixed-size PCM16 frames from one physical microphone source
// and republishes each frame to every registered tap. A slow tap drops
// frames rather than blocking the others, since a stale frame is worse than
// a missing one for both speech capture and wake-word detection.
type Fanout struct {
	source io.Reader
	taps   []chan []byte
}

// NewFanout builds a Fanout over source. Call Tap for each independent
// consumer before calling Run.
func NewFanout(source io.Reader) *Fanout {
	return &Fanout{source: source}
}

// Tap registers a new consumer and returns an io.Reader delivering each
// frame Run reads from the underlying source.
func (f *Fanout) Tap() io.Reader {
	ch := make(chan []byte, 4)
	f.taps = append(f.taps, ch)
	return &tapReader{frames: ch}
}

// Run reads frames from the source until ctx is canceled or the source ends.
func (f *Fanout) Run(ctx context.Context) {
	buf := make([]byte, fanoutFrameBytes)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := io.ReadFull(f.source, buf)
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				obslog.Warn("audio: fanout source read failed", "error", err)
			}
			return
		}
		frame := append([]byte(nil), buf[:n]...)
		for _, tap := range f.taps {
			select {
			case tap <- frame:
			default:
			}
		}
	}
}

// tapReader adapts one Fanout consumer channel to io.Reader, serving one
// buffered frame per Read call.
type tapReader struct {
	frames  chan []byte
	pending []byte
}

func (r *tapReader) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		r.pending = <-r.frames
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}
