// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package workerpool provides a persistent, reusable worker pool for parallel
// kernels. A Pool is created once, when the optimizer is built, and reused
// across every Parallel or Hybrid kernel call, so no call pays for goroutine
// spawning.
//
// Work is submitted through a bounded queue and every submitting call blocks
// on a barrier until all of its chunks have run: there is no fire-and-forget
// variant.
//
// Usage:
//
//	pool := workerpool.New(runtime.GOMAXPROCS(0))
//	defer pool.Close()
//
//	err := pool.ParallelFor(m, func(start, end int) {
//	    processRows(start, end)
//	})
//
// A task must not submit work to the pool that is running it; with every
// worker blocked on a nested barrier the pool would deadlock.
package workerpool

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned when work is submitted after Close.
var ErrPoolClosed = errors.New("workerpool: pool is closed")

// Pool is a persistent worker pool that can be reused across many parallel
// operations. Workers are spawned once at creation and joined by Close.
type Pool struct {
	numWorkers int
	workC      chan workItem

	// mu orders submissions against Close: senders hold it shared while
	// enqueueing, Close holds it exclusively while closing workC.
	mu        sync.RWMutex
	closed    atomic.Bool
	closeOnce sync.Once
	workers   sync.WaitGroup
}

// workItem represents a single chunk of a parallel operation.
type workItem struct {
	fn      func()
	barrier *sync.WaitGroup
}

// New creates a new worker pool with the specified number of workers.
// Workers are spawned immediately and persist until Close is called.
// If numWorkers <= 0, uses GOMAXPROCS.
func New(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	p := &Pool{
		numWorkers: numWorkers,
		// Buffer enough for all workers to have pending work
		workC: make(chan workItem, numWorkers*2),
	}

	p.workers.Add(numWorkers)
	for range numWorkers {
		go p.worker()
	}

	return p
}

// worker is the main loop for each persistent worker goroutine.
func (p *Pool) worker() {
	defer p.workers.Done()
	for item := range p.workC {
		item.fn()
		item.barrier.Done()
	}
}

// NumWorkers returns the number of workers in the pool.
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

// Closed reports whether Close has been called.
func (p *Pool) Closed() bool {
	return p.closed.Load()
}

// Close shuts down the worker pool and waits for every worker to exit.
// Work already queued completes first. Calling Close multiple times, or on
// a pool that never received work, is safe.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed.Store(true)
		close(p.workC)
		p.mu.Unlock()
	})
	p.workers.Wait()
}

// submit enqueues one chunk per fn and waits for all of them.
func (p *Pool) submit(fns []func()) error {
	var wg sync.WaitGroup

	p.mu.RLock()
	if p.closed.Load() {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	wg.Add(len(fns))
	for _, fn := range fns {
		p.workC <- workItem{fn: fn, barrier: &wg}
	}
	p.mu.RUnlock()

	wg.Wait()
	return nil
}

// ParallelFor executes fn over [0, n) split into min(n, NumWorkers())
// contiguous chunks, one per worker. Chunks never overlap, so fn may write
// its own index range of a shared output without locking.
// Blocks until all work completes.
//
// fn receives (start, end) indices where work should process [start, end).
func (p *Pool) ParallelFor(n int, fn func(start, end int)) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	if n <= 0 {
		return nil
	}

	ranges := Partition(n, p.numWorkers)

	// For a single chunk, just run on the caller
	if len(ranges) == 1 {
		fn(0, n)
		return nil
	}

	fns := make([]func(), len(ranges))
	for i, r := range ranges {
		fns[i] = func() { fn(r.Start, r.End) }
	}
	return p.submit(fns)
}

// ParallelForAtomic executes fn for each index in [0, n) using atomic work
// stealing. This provides better load balancing when work per item varies.
// Blocks until all work completes.
func (p *Pool) ParallelForAtomic(n int, fn func(i int)) error {
	return p.ParallelForAtomicBatched(n, 1, func(start, end int) {
		for i := start; i < end; i++ {
			fn(i)
		}
	})
}

// ParallelForAtomicBatched executes fn for batches of indices using atomic
// work stealing. Combines the load balancing of atomic distribution with
// reduced atomic operation overhead by processing multiple items per grab.
//
// fn receives (start, end) indices where work should process [start, end).
// batchSize controls how many items are grabbed per atomic operation.
func (p *Pool) ParallelForAtomicBatched(n int, batchSize int, fn func(start, end int)) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	if n <= 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 1
	}

	numBatches := (n + batchSize - 1) / batchSize
	workers := min(p.numWorkers, numBatches)

	if workers == 1 {
		fn(0, n)
		return nil
	}

	var nextBatch atomic.Int64
	grab := func() {
		for {
			batch := int(nextBatch.Add(1)) - 1
			start := batch * batchSize
			if start >= n {
				return
			}
			fn(start, min(start+batchSize, n))
		}
	}

	fns := make([]func(), workers)
	for i := range fns {
		fns[i] = grab
	}
	return p.submit(fns)
}
