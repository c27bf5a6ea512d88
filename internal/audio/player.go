// Package audio implements the Audio I/O Layer: microphone capture,
// playback queueing with debounce, the barge-in bridge, and sound-file cues.
package audio

import "fmt"

// SoundCue names one of the short local assets PlaySoundFile can play.
type SoundCue string

const (
	CueStartup      SoundCue = "STARTUP"
	CueWakeWord     SoundCue = "WAKE_WORD"
	CueReturnToIdle SoundCue = "RETURN_TO_IDLE"
	CueError        SoundCue = "ERROR"
)

// Player is the capability SpecialToolParameters injects into tool handlers
// that need to affect playback directly (e.g. a volume-adjustment tool).
type Player interface {
	SetVolume(scale float64)
	Volume() float64
	PlaySoundFile(cue SoundCue) error
}

// PCMChunk is one decoded audio delta queued for playback.
type PCMChunk struct {
	ItemID string
	PCM    []byte
}

var _ Player = (*Playback)(nil)

// resourcePath resolves cue to a file under the configured resource
// directory.
func resourcePath(dir string, cue SoundCue) string {
	return fmt.Sprintf("%s/%s.wav", dir, cue)
}
