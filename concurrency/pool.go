// Package concurrency implements opcode-level fan-out: a bounded pool
// that composite opcodes with the concurrency flag may submit one task
// per child to, under an all-or-nothing batch-enqueue handshake with a
// serial fallback.
package concurrency

import (
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool bounds how many opcode-level tasks may run concurrently.
type Pool struct {
	sem      *semaphore.Weighted
	capacity int64
}

// New creates a pool that can run up to capacity tasks at once. A
// capacity of 0 or less means "no threads available": every RunOrdered
// call will report ok=false and callers fall back to serial evaluation.
func New(capacity int) *Pool {
	if capacity <= 0 {
		return &Pool{}
	}
	return &Pool{sem: semaphore.NewWeighted(int64(capacity)), capacity: int64(capacity)}
}

// Capacity reports the pool's configured concurrency limit.
func (p *Pool) Capacity() int {
	if p == nil {
		return 0
	}
	return int(p.capacity)
}

// RunOrdered is the batch-enqueue handshake: it tries to reserve n slots
// for n independent tasks; if it cannot (no pool, or fewer than n slots
// free), it returns ok=false without running anything, so the caller
// evaluates serially instead. On success, all n tasks run concurrently
// and their results are returned in submission order regardless of
// completion order, keeping reassembly deterministic.
func RunOrdered[T any](p *Pool, n int, task func(i int) (T, error)) (results []T, ok bool, err error) {
	if p == nil || p.sem == nil || n <= 0 || !p.sem.TryAcquire(int64(n)) {
		return nil, false, nil
	}
	defer p.sem.Release(int64(n))

	results = make([]T, n)
	g := &errgroup.Group{}
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			r, taskErr := task(i)
			results[i] = r
			return taskErr
		})
	}
	err = g.Wait()
	return results, true, err
}
