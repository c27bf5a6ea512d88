package eventbus

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// workerPool is the small bounded pool sync event-bus handlers run on, so
// they never block the cooperative scheduler. Playback device writes do not
// run here; audio.Playback.Run writes from its own goroutine.
// Bounded via a weighted semaphore rather than a fixed goroutine set.
type workerPool struct {
	sem *semaphore.Weighted
}

func newWorkerPool(size int64) *workerPool {
	if size <= 0 {
		size = 4
	}
	return &workerPool{sem: semaphore.NewWeighted(size)}
}

// submit blocks until a slot is free, then runs fn on a new goroutine and
// releases the slot when fn returns. fn is expected to recover its own panics
// via safeInvoke at the call site.
func (p *workerPool) submit(fn func()) {
	ctx := context.Background()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return
	}
	go func() {
		defer p.sem.Release(1)
		fn()
	}()
}
