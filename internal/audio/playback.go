package audio

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/mathisarends/voiceorchestrator/internal/eventbus"
	"github.com/mathisarends/voiceorchestrator/internal/obslog"
)

// minTransitionInterval is the debounce floor between playback
// start/stop state transitions, preventing flapping on tiny audio bursts.
const minTransitionInterval = 500 * time.Millisecond

// Playback is the playback half of the Audio I/O Layer: a FIFO of decoded
// PCM chunks drained by one worker goroutine, with a debounced
// AssistantCompletedResponse publication on drain and a barge-in bridge
// reacting to UserStartedSpeaking.
type Playback struct {
	bus      *eventbus.Bus
	strategy OutputStrategy
	soundDir string

	mu             sync.Mutex
	queue          []PCMChunk
	volumeScale    float64
	playing        bool
	lastTransition time.Time

	wake chan struct{}
	done chan struct{}
}

// NewPlayback builds a Playback driven by bus and writing through strategy.
// soundDir is the resource directory PlaySoundFile resolves cues against.
func NewPlayback(bus *eventbus.Bus, strategy OutputStrategy, soundDir string) *Playback {
	p := &Playback{
		bus:         bus,
		strategy:    strategy,
		soundDir:    soundDir,
		volumeScale: 1.0,
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	bus.Subscribe(eventbus.UserStartedSpeaking, eventbus.Sync0(p.onUserStartedSpeaking))
	return p
}

// Run drains the queue until ctx is cancelled. Intended to be started once
// by the Session Coordinator as its own goroutine.
func (p *Playback) Run(ctx <-chan struct{}) {
	for {
		chunk, ok := p.pop()
		if !ok {
			select {
			case <-p.wake:
				continue
			case <-ctx:
				close(p.done)
				return
			}
		}
		p.transitionTo(true)
		if err := p.strategy.Write(scaleVolume(chunk.PCM, p.Volume())); err != nil {
			obslog.Warn("audio: playback write failed", "error", err)
		}
	}
}

// Enqueue appends a decoded audio chunk to the playback FIFO.
func (p *Playback) Enqueue(chunk PCMChunk) {
	p.mu.Lock()
	p.queue = append(p.queue, chunk)
	p.mu.Unlock()
	p.notify()
}

func (p *Playback) pop() (PCMChunk, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		p.transitionTo(false)
		return PCMChunk{}, false
	}
	chunk := p.queue[0]
	p.queue = p.queue[1:]
	return chunk, true
}

func (p *Playback) notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// transitionTo flips the playing flag, debounced to at most one transition
// per minTransitionInterval, and publishes AssistantCompletedResponse on
// drain; the start side only logs. Caller holds p.mu for the false branch
// (called from pop); the true branch (called from Run) takes the lock itself.
func (p *Playback) transitionTo(playing bool) {
	now := time.Now()
	if playing {
		p.mu.Lock()
		defer p.mu.Unlock()
	}
	if p.playing == playing {
		return
	}
	if now.Sub(p.lastTransition) < minTransitionInterval {
		return
	}
	p.playing = playing
	p.lastTransition = now
	if playing {
		// The protocol's response.created is the authoritative start signal;
		// republishing here would double-arm the response context and skew
		// the barge-in truncation offset.
		obslog.Debug("audio: playback started")
	} else {
		p.bus.PublishSync(eventbus.AssistantCompletedResponse, nil)
	}
}

// ClearQueueAndStopChunks empties the queue and forces the output device to
// drop any already-buffered hardware samples.
func (p *Playback) ClearQueueAndStopChunks() {
	p.mu.Lock()
	p.queue = nil
	p.playing = false
	p.mu.Unlock()
	if err := p.strategy.Stop(); err != nil {
		obslog.Warn("audio: stop failed", "error", err)
	}
}

// onUserStartedSpeaking is the barge-in bridge: if playback is active,
// AssistantSpeechInterrupted is published before the queue is cleared so the
// Message Manager can truncate with a still-valid item_id. That ordering
// is mandatory.
func (p *Playback) onUserStartedSpeaking() {
	p.mu.Lock()
	active := p.playing
	p.mu.Unlock()
	if !active {
		return
	}
	p.bus.PublishSync(eventbus.AssistantSpeechInterrupted, nil)
	p.ClearQueueAndStopChunks()
}

// SetVolume sets the playback volume scale (0.0-2.0; clamped).
func (p *Playback) SetVolume(scale float64) {
	if scale < 0 {
		scale = 0
	}
	if scale > 2 {
		scale = 2
	}
	p.mu.Lock()
	p.volumeScale = scale
	p.mu.Unlock()
}

// Volume reports the current volume scale.
func (p *Playback) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volumeScale
}

// PlaySoundFile plays cue non-blockingly; it never touches the streaming queue.
func (p *Playback) PlaySoundFile(cue SoundCue) error {
	go func() {
		if err := p.strategy.PlayFile(resourcePath(p.soundDir, cue)); err != nil {
			obslog.Warn("audio: sound cue failed", "cue", string(cue), "error", err)
		}
	}()
	return nil
}

// scaleVolume applies scale to pcm interpreted as little-endian int16
// samples, clamping to avoid wraparound.
func scaleVolume(pcm []byte, scale float64) []byte {
	if scale == 1.0 || len(pcm) < 2 {
		return pcm
	}
	out := make([]byte, len(pcm))
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		scaled := float64(sample) * scale
		scaled = math.Max(math.MinInt16, math.Min(math.MaxInt16, scaled))
		binary.LittleEndian.PutUint16(out[i:i+2], uint16(int16(scaled)))
	}
	return out
}
