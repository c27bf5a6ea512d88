package eventbus

import "context"

// Scheduler is the single primary cooperative scheduler: one goroutine
// draining a FIFO of submitted jobs, so that async event-bus handlers
// serialize against each other exactly as they would on a single-threaded
// cooperative event loop. Only Async-kind handlers run here; the state
// machine and the tool executor subscribe Sync handlers, which run on the
// worker pool.
type Scheduler struct {
	jobs chan func()
	done chan struct{}
}

// NewScheduler creates a Scheduler with the given job-queue depth. A deeper
// queue tolerates more PublishSync bursts from other threads before Schedule
// starts blocking the caller.
func NewScheduler(queueDepth int) *Scheduler {
	if queueDepth <= 0 {
		queueDepth = 256
	}
	return &Scheduler{
		jobs: make(chan func(), queueDepth),
		done: make(chan struct{}),
	}
}

// Run drains the job queue on the calling goroutine until ctx is canceled.
// Callers typically run this in its own goroutine for the lifetime of a session.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			job()
		}
	}
}

// Schedule enqueues fn to run on the scheduler goroutine. Safe to call from
// any goroutine, including from within a running job (re-entrant scheduling).
func (s *Scheduler) Schedule(fn func()) {
	select {
	case s.jobs <- fn:
	case <-s.done:
	}
}

// Done returns a channel closed once Run has returned.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}
