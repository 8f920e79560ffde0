// Package worker provides a bounded goroutine pool for fanning requests out
// with controlled concurrency, so a burst of dispatches cannot stampede the
// connection pool with more parallel builds than intended.
package worker

import (
	"sync"
)

// Pool manages a fixed number of goroutines that drain a shared job queue.
//
// Design choices:
//   - size goroutines are started once and reused, avoiding the cost of
//     spawning a goroutine per request.
//   - jobs is a buffered channel (capacity size*4): workers can pick up the
//     next job immediately after finishing the current one.  Submit blocks
//     only when the buffer is full, applying natural back-pressure to
//     producers.
//   - Stop closes the channel and waits for every in-flight job to finish
//     before returning, preventing goroutine leaks.
type Pool struct {
	size int
	jobs chan func()
	wg   sync.WaitGroup
}

// New creates a Pool with size goroutines ready to receive jobs.  The queue
// buffers up to size*4 pending jobs before Submit starts blocking, a small
// burst buffer without unbounded growth.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		size: size,
		jobs: make(chan func(), size*4),
	}
}

// Start launches the worker goroutines.  It must be called exactly once
// before any jobs are submitted.
func (p *Pool) Start() {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}
}

// Submit enqueues job for execution by one of the pool's goroutines.  It
// blocks if the internal buffer is full.  Submit must not be called after
// Stop.
func (p *Pool) Submit(job func()) {
	p.jobs <- job
}

// Stop finishes all queued jobs and then waits for all worker goroutines to
// exit.  No new jobs may be submitted after Stop is called.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
