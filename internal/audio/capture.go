package audio

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/mathisarends/voiceorchestrator/internal/obslog"
)

// pausedPollInterval bounds how long a paused Capturer sleeps between resume checks.
const pausedPollInterval = 20 * time.Millisecond

// captureChunkBytes is ~4096 samples of PCM16 mono at 24kHz.
const captureChunkBytes = 4096 * 2

// Sender is the subset of transport.Client the Capturer needs, kept narrow
// so tests can fake it without pulling in the transport package.
type Sender interface {
	SendBinary(pcm []byte) error
}

// Capturer is the microphone-capture half of the Audio I/O Layer: a
// cooperative loop reading fixed-size PCM16 chunks and handing them to the
// transport as binary frames. It may be paused and resumed without closing
// the underlying OS stream.
type Capturer struct {
	source io.Reader
	sender Sender
	paused atomic.Bool
}

// NewCapturer builds a Capturer reading raw PCM16 from source.
func NewCapturer(source io.Reader, sender Sender) *Capturer {
	return &Capturer{source: source, sender: sender}
}

// Pause suspends capture without closing the OS stream; Resume continues it.
func (c *Capturer) Pause()  { c.paused.Store(true) }
func (c *Capturer) Resume() { c.paused.Store(false) }

// Run reads and forwards chunks until ctx is cancelled or the source is exhausted.
func (c *Capturer) Run(ctx context.Context) {
	buf := make([]byte, captureChunkBytes)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if c.paused.Load() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pausedPollInterval):
			}
			continue
		}
		n, err := io.ReadFull(c.source, buf)
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				obslog.Warn("audio: capture read failed", "error", err)
			}
			return
		}
		if err := c.sender.SendBinary(buf[:n]); err != nil {
			obslog.Warn("audio: capture send failed", "error", err)
			return
		}
	}
}
