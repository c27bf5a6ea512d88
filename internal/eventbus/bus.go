// Package eventbus implements the typed pub/sub bus that decouples
// producers (transport, audio, wake-word) from consumers (state machine, tool
// executor, message manager) across OS threads and the cooperative scheduler.
package eventbus

import (
	"sync"
	"sync/atomic"

	"github.com/mathisarends/voiceorchestrator/internal/obslog"
	"github.com/mathisarends/voiceorchestrator/internal/orcherr"
)

// Subscription identifies a registered handler so it can later be unsubscribed.
type Subscription struct {
	tag EventTag
	id  uint64
}

type subscriber struct {
	id   uint64
	spec HandlerSpec
}

// Bus is the central event bus. The zero value is not usable; use New.
type Bus struct {
	mu        sync.RWMutex
	listeners map[EventTag][]subscriber
	nextID    uint64
	scheduler *Scheduler
	pool      *workerPool
	shutdown  atomic.Bool
}

// Options configures Bus construction.
type Options struct {
	// Scheduler is the cooperative scheduler Async handlers are scheduled onto.
	Scheduler *Scheduler
	// WorkerPoolSize bounds the number of concurrently running Sync-handler batches.
	WorkerPoolSize int64
}

// New creates a Bus attached to the given scheduler and worker pool size.
func New(opts Options) *Bus {
	if opts.Scheduler == nil {
		opts.Scheduler = NewScheduler(0)
	}
	return &Bus{
		listeners: make(map[EventTag][]subscriber),
		scheduler: opts.Scheduler,
		pool:      newWorkerPool(opts.WorkerPoolSize),
	}
}

// Subscribe registers a handler for tag and returns a Subscription usable
// with Unsubscribe. Subscribers are retained in insertion order per tag.
func (b *Bus) Subscribe(tag EventTag, spec HandlerSpec) (Subscription, error) {
	if b.shutdown.Load() {
		return Subscription{}, orcherr.ErrBusShutdown
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	id := atomic.AddUint64(&b.nextID, 1)
	b.listeners[tag] = append(b.listeners[tag], subscriber{id: id, spec: spec})
	return Subscription{tag: tag, id: id}, nil
}

// Unsubscribe removes a previously registered handler. A no-op if already removed.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.listeners[sub.tag]
	for i, s := range subs {
		if s.id == sub.id {
			b.listeners[sub.tag] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// PublishSync delivers an event to every subscriber of tag. Safe to call from
// any goroutine. Sync-kind subscribers run, in subscription order, as one
// batch on the bounded worker pool; Async-kind subscribers run, in
// subscription order, as one batch scheduled onto the cooperative scheduler.
// A handler that panics is recovered and logged; it never prevents the
// remaining handlers in its batch from running, and never propagates to the caller.
func (b *Bus) PublishSync(tag EventTag, data any) {
	if b.shutdown.Load() {
		return
	}
	b.mu.RLock()
	subs := append([]subscriber(nil), b.listeners[tag]...)
	b.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	var syncBatch, asyncBatch []subscriber
	for _, s := range subs {
		if s.spec.Kind == Sync {
			syncBatch = append(syncBatch, s)
		} else {
			asyncBatch = append(asyncBatch, s)
		}
	}

	if len(syncBatch) > 0 {
		b.pool.submit(func() { runBatch(tag, data, syncBatch) })
	}
	if len(asyncBatch) > 0 {
		b.scheduler.Schedule(func() { runBatch(tag, data, asyncBatch) })
	}
}

// PublishAsync is equivalent to PublishSync but documents the caller's
// intent: it must only be called from within the cooperative scheduler
// (e.g. from inside a running job).
func (b *Bus) PublishAsync(tag EventTag, data any) {
	b.PublishSync(tag, data)
}

// Shutdown marks the bus closed; subsequent Subscribe/Publish calls are no-ops
// (Subscribe returns ErrBusShutdown). In-flight handler batches are not interrupted.
func (b *Bus) Shutdown() {
	b.shutdown.Store(true)
}

// Count returns the number of subscribers currently registered for tag, for tests.
func (b *Bus) Count(tag EventTag) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[tag])
}

func runBatch(tag EventTag, data any, subs []subscriber) {
	for _, s := range subs {
		safeInvoke(tag, data, s.spec)
	}
}

func safeInvoke(tag EventTag, data any, spec HandlerSpec) {
	defer func() {
		if r := recover(); r != nil {
			obslog.Error("event handler panicked", "tag", string(tag), "panic", r)
		}
	}()
	spec.invoke(tag, data)
}
