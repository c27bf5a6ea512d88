// Package coordinator builds every other component in dependency order,
// owns the realtime session's connect/disconnect lifecycle, and drives
// orderly concurrent shutdown.
package coordinator

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mathisarends/voiceorchestrator/internal/audio"
	"github.com/mathisarends/voiceorchestrator/internal/config"
	"github.com/mathisarends/voiceorchestrator/internal/dispatcher"
	"github.com/mathisarends/voiceorchestrator/internal/eventbus"
	"github.com/mathisarends/voiceorchestrator/internal/messagemanager"
	"github.com/mathisarends/voiceorchestrator/internal/obslog"
	"github.com/mathisarends/voiceorchestrator/internal/sessioncache"
	"github.com/mathisarends/voiceorchestrator/internal/statemachine"
	"github.com/mathisarends/voiceorchestrator/internal/tools"
	"github.com/mathisarends/voiceorchestrator/internal/transport"
	"github.com/mathisarends/voiceorchestrator/internal/voicemodel"
	"github.com/mathisarends/voiceorchestrator/internal/wakeword"
)

// AudioSource is the microphone collaborator the Capturer reads raw PCM16
// from, supplied by main.
type AudioSource = io.Reader

// Deps are the Coordinator's external collaborators (the native wake-word
// engine and the microphone stream), plus the resolved Config.
type Deps struct {
	Config       config.Config
	Detector     wakeword.Detector
	Mic          AudioSource
	Output       audio.OutputStrategy // nil selects audio.NewLocalStrategy()
	SessionCache *sessioncache.Cache  // nil disables cross-reconnect snapshotting
}

// Coordinator owns the full component graph and its run/shutdown lifecycle.
type Coordinator struct {
	cfg config.Config

	bus       *eventbus.Bus
	scheduler *eventbus.Scheduler
	transport *transport.Client
	dispatch  *dispatcher.Dispatcher
	mm        *messagemanager.Manager
	machine   *statemachine.Machine
	timer     *statemachine.InactivityTimer
	wakeword  *wakeword.Adapter
	capturer  *audio.Capturer
	playback  *audio.Playback
	registry  *tools.Registry
	executor  *tools.Executor
	remote    *tools.RemoteToolTracker
	cache     *sessioncache.Cache

	sessionMu     sync.Mutex
	sessionActive bool
	sessionCancel context.CancelFunc
}

// New builds every component in dependency order (leaves first) but starts
// nothing; call Run to start the supervisory loop.
func New(deps Deps, registry *tools.Registry) *Coordinator {
	scheduler := eventbus.NewScheduler(0)
	bus := eventbus.New(eventbus.Options{Scheduler: scheduler, WorkerPoolSize: 8})

	tc := transport.New(deps.Config.RealtimeURL, deps.Config.RealtimeAPIKey)
	disp := dispatcher.New(bus)
	mm := messagemanager.New(tc, bus)

	output := deps.Output
	if output == nil {
		output = audio.NewLocalStrategy()
	}
	playback := audio.NewPlayback(bus, output, deps.Config.ResourceDir)
	capturer := audio.NewCapturer(deps.Mic, tc)

	special := tools.SpecialToolParameters{
		AudioPlayer: playback,
		EventBus:    bus,
		ModelName:   deps.Config.Model,
		VoiceSettings: tools.VoiceSettings{
			Voice:       deps.Config.Voice,
			SpeechSpeed: deps.Config.SpeechSpeed,
		},
	}
	executor := tools.NewExecutor(registry, bus, mm, special)
	remote := tools.NewRemoteToolTracker(bus)

	for _, srv := range deps.Config.MCPServers {
		ref := tools.RemoteToolReference{ServerLabel: srv.Label, ServerURL: srv.URL}
		if err := registry.RegisterRemote(ref); err != nil {
			obslog.Warn("coordinator: skipping remote tool server", "label", srv.Label, "error", err)
		}
	}

	timer := statemachine.NewInactivityTimer(bus, deps.Config.SilenceWait)

	c := &Coordinator{
		cfg:       deps.Config,
		bus:       bus,
		scheduler: scheduler,
		transport: tc,
		dispatch:  disp,
		mm:        mm,
		timer:     timer,
		capturer:  capturer,
		playback:  playback,
		registry:  registry,
		executor:  executor,
		remote:    remote,
		cache:     deps.SessionCache,
	}
	c.machine = statemachine.New(bus, c)
	c.wakeword = wakeword.New(deps.Detector, bus)

	bus.Subscribe(eventbus.AudioChunkReceived, eventbus.Sync1(c.onAudioChunk))

	return c
}

func (c *Coordinator) onAudioChunk(data any) {
	chunk, ok := data.(voicemodel.AudioChunk)
	if !ok {
		return
	}
	c.playback.Enqueue(audio.PCMChunk{ItemID: chunk.ItemID, PCM: chunk.PCM})
}

// Run starts every long-lived loop and blocks until ctx is canceled, then
// performs orderly shutdown and returns.
func (c *Coordinator) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.scheduler.Run(runCtx)
	go c.capturer.Run(runCtx)
	c.capturer.Pause()
	go c.playback.Run(runCtx.Done())

	if err := c.wakeword.Start(runCtx); err != nil {
		return fmt.Errorf("coordinator: starting wake word adapter: %w", err)
	}

	obslog.Info("coordinator: running")
	<-ctx.Done()

	return c.Shutdown()
}

// Shutdown concurrently exits the current state, stops the wake-word
// adapter, and drains playback, logging but not escalating per-task errors;
// each resource is released exactly once.
func (c *Coordinator) Shutdown() error {
	obslog.Info("coordinator: shutting down")

	var g errgroup.Group
	g.Go(func() error {
		c.EnsureSessionEnded()
		return nil
	})
	g.Go(func() error {
		if err := c.wakeword.Stop(); err != nil {
			obslog.Warn("coordinator: wake word stop failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		c.playback.ClearQueueAndStopChunks()
		return nil
	})
	g.Go(func() error {
		c.executor.Shutdown()
		return nil
	})
	_ = g.Wait()

	c.bus.Shutdown()
	return nil
}

// StartSessionIfNeeded implements statemachine.Hooks. It is idempotent: a
// session already connected is left untouched.
func (c *Coordinator) StartSessionIfNeeded() {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	if c.sessionActive {
		return
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectWait)
	defer cancel()
	if err := c.transport.Connect(connectCtx); err != nil {
		obslog.Error("coordinator: session connect failed", "error", err)
		c.bus.PublishSync(eventbus.ErrorOccurred, voicemodel.ProtocolError{Code: "connect_failed", Message: err.Error()})
		return
	}

	sessCtx, sessCancel := context.WithCancel(context.Background())
	c.sessionCancel = sessCancel
	c.transport.StartHeartbeat(sessCtx)
	go c.runReceiveLoop(sessCtx)

	settings := messagemanager.SessionSettings{
		Voice:             c.cfg.Voice,
		Model:             c.cfg.Model,
		Instructions:      c.cfg.Instructions,
		OutputAudioFormat: "pcm16",
		InputAudioFormat:  "pcm16",
		Modalities:        []string{"audio", "text"},
		Tools:             c.registry.OpenAISchema(),
		SpeechSpeed:       c.cfg.SpeechSpeed,
	}
	if c.cache != nil {
		if snap, err := c.cache.Load(context.Background(), "default"); err == nil {
			settings.Voice = snap.Voice
			settings.SpeechSpeed = snap.SpeechSpeed
		}
	}

	if err := c.mm.InitSession(settings); err != nil {
		obslog.Error("coordinator: session init failed", "error", err)
		c.bus.PublishSync(eventbus.ErrorOccurred, voicemodel.ProtocolError{Code: "init_failed", Message: err.Error()})
		sessCancel()
		_ = c.transport.Close()
		return
	}

	c.sessionActive = true
}

// EnsureSessionEnded implements statemachine.Hooks: Idle's on_enter. The
// realtime connection is only held open while a conversation is plausibly
// in progress; the next wake word reconnects.
func (c *Coordinator) EnsureSessionEnded() {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	if !c.sessionActive {
		return
	}

	if c.cache != nil {
		settings := c.mm.CurrentSettings()
		snap := sessioncache.Snapshot{Voice: settings.Voice, SpeechSpeed: settings.SpeechSpeed}
		if err := c.cache.Save(context.Background(), "default", snap); err != nil {
			obslog.Warn("coordinator: session snapshot save failed", "error", err)
		}
	}

	if c.sessionCancel != nil {
		c.sessionCancel()
		c.sessionCancel = nil
	}
	if err := c.transport.Close(); err != nil {
		obslog.Warn("coordinator: transport close failed", "error", err)
	}
	c.sessionActive = false
}

func (c *Coordinator) runReceiveLoop(ctx context.Context) {
	msgCh := make(chan []byte, 64)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case data := <-msgCh:
				c.dispatch.Handle(data)
			}
		}
	}()

	if err := c.transport.ReceiveLoop(ctx, msgCh); err != nil {
		select {
		case <-ctx.Done():
			return
		default:
		}
		obslog.Warn("coordinator: receive loop ended", "error", err)
		c.bus.PublishSync(eventbus.ErrorOccurred, voicemodel.ProtocolError{Code: "transport_closed", Message: err.Error()})
	}
}

// ResumeMicrophone implements statemachine.Hooks: Listening's on_enter.
func (c *Coordinator) ResumeMicrophone() { c.capturer.Resume() }

// PauseMicrophone implements statemachine.Hooks: Responding's on_enter.
func (c *Coordinator) PauseMicrophone() { c.capturer.Pause() }

// ArmInactivityTimeout implements statemachine.Hooks.
func (c *Coordinator) ArmInactivityTimeout() { c.timer.Arm() }

// DisarmInactivityTimeout implements statemachine.Hooks.
func (c *Coordinator) DisarmInactivityTimeout() { c.timer.Disarm() }

// PlayErrorCue implements statemachine.Hooks: Error's on_enter.
func (c *Coordinator) PlayErrorCue() {
	if err := c.playback.PlaySoundFile(audio.CueError); err != nil {
		obslog.Warn("coordinator: error cue playback failed", "error", err)
	}
}

// State reports the state machine's current state, for diagnostics.
func (c *Coordinator) State() statemachine.State { return c.machine.Current() }
