// Package pool provides a fixed-capacity worker pool. It exposes the
// operations the scheduler loop needs: submit a job, probe for a free slot
// without taking it, read the number of jobs currently running, and drain
// (block until every submitted job has returned). Capacity is enforced with a weighted semaphore rather than the
// channel-based permit pool the build driver used previously -- the
// semantics are identical but golang.org/x/sync/semaphore.Weighted is the
// ecosystem's standard primitive for this and several sibling build tools in
// this codebase's lineage already depend on it directly.
package pool

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool runs submitted jobs with at most Capacity running concurrently.
type Pool struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	active int64
}

// New creates a pool that runs at most capacity jobs concurrently.
func New(capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(capacity))}
}

// Submit blocks until a capacity slot is free, then runs fn in a new
// goroutine. It returns immediately once the goroutine has started; callers
// wait for completion with Drain.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.wg.Add(1)
	atomic.AddInt64(&p.active, 1)
	go func() {
		defer func() {
			atomic.AddInt64(&p.active, -1)
			p.sem.Release(1)
			p.wg.Done()
		}()
		fn()
	}()
	return nil
}

// TryAcquire reports whether a capacity slot is immediately available,
// without blocking and without consuming it. The scheduler loop uses this to
// decide, once per tick, how many more jobs it has room to dispatch.
func (p *Pool) TryAcquire() bool {
	if p.sem.TryAcquire(1) {
		p.sem.Release(1)
		return true
	}
	return false
}

// ActiveCount returns the number of jobs currently running.
func (p *Pool) ActiveCount() int {
	return int(atomic.LoadInt64(&p.active))
}

// Drain blocks until every submitted job has returned.
func (p *Pool) Drain() {
	p.wg.Wait()
}
