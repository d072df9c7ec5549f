// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package workerpool

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

func TestNew(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	if pool.NumWorkers() != 4 {
		t.Errorf("NumWorkers() = %d, want 4", pool.NumWorkers())
	}
}

func TestNewDefault(t *testing.T) {
	pool := New(0)
	defer pool.Close()

	if pool.NumWorkers() != runtime.GOMAXPROCS(0) {
		t.Errorf("NumWorkers() = %d, want %d", pool.NumWorkers(), runtime.GOMAXPROCS(0))
	}
}

func TestParallelFor(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	n := 100
	results := make([]int, n)

	err := pool.ParallelFor(n, func(start, end int) {
		for i := start; i < end; i++ {
			results[i] = i * 2
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < n; i++ {
		if results[i] != i*2 {
			t.Errorf("results[%d] = %d, want %d", i, results[i], i*2)
		}
	}
}

// TestParallelForWritesEachIndexOnce records which chunk wrote every index.
func TestParallelForWritesEachIndexOnce(t *testing.T) {
	for _, workers := range []int{1, 2, 3, 8} {
		for _, n := range []int{1, 2, 7, 64, 1001} {
			t.Run(fmt.Sprintf("workers=%d/n=%d", workers, n), func(t *testing.T) {
				pool := New(workers)
				defer pool.Close()

				writes := make([]atomic.Int32, n)
				var chunks atomic.Int32
				err := pool.ParallelFor(n, func(start, end int) {
					chunks.Add(1)
					for i := start; i < end; i++ {
						writes[i].Add(1)
					}
				})
				if err != nil {
					t.Fatal(err)
				}
				for i := range writes {
					if c := writes[i].Load(); c != 1 {
						t.Errorf("index %d written %d times", i, c)
					}
				}
				if got, want := int(chunks.Load()), min(n, workers); got != want {
					t.Errorf("chunks = %d, want %d", got, want)
				}
			})
		}
	}
}

func TestParallelForAtomic(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	n := 100
	results := make([]int, n)

	if err := pool.ParallelForAtomic(n, func(i int) {
		results[i] = i * 2
	}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < n; i++ {
		if results[i] != i*2 {
			t.Errorf("results[%d] = %d, want %d", i, results[i], i*2)
		}
	}
}

func TestParallelForAtomicBatched(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	n := 100
	results := make([]int, n)

	if err := pool.ParallelForAtomicBatched(n, 10, func(start, end int) {
		for i := start; i < end; i++ {
			results[i] = i * 2
		}
	}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < n; i++ {
		if results[i] != i*2 {
			t.Errorf("results[%d] = %d, want %d", i, results[i], i*2)
		}
	}
}

func TestParallelForSmallN(t *testing.T) {
	pool := New(8)
	defer pool.Close()

	// Test with n smaller than workers
	n := 3
	var count atomic.Int32

	_ = pool.ParallelFor(n, func(start, end int) {
		count.Add(int32(end - start))
	})

	if count.Load() != int32(n) {
		t.Errorf("count = %d, want %d", count.Load(), n)
	}
}

func TestParallelForZeroN(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	var called bool
	err := pool.ParallelFor(0, func(start, end int) {
		called = true
	})

	if err != nil || called {
		t.Errorf("ParallelFor(0): err=%v called=%v, want nil/false", err, called)
	}
}

func TestCloseMultipleTimes(t *testing.T) {
	pool := New(4)
	pool.Close()
	pool.Close() // Should not panic
}

func TestCloseWithoutWork(t *testing.T) {
	for range 10 {
		New(3).Close()
	}
}

func TestCloseConcurrent(t *testing.T) {
	pool := New(4)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Close()
		}()
	}
	wg.Wait()
	if !pool.Closed() {
		t.Error("Closed() = false after Close")
	}
}

func TestClosedPoolRejectsWork(t *testing.T) {
	pool := New(4)
	pool.Close()

	var called bool
	fn := func(start, end int) { called = true }

	if err := pool.ParallelFor(100, fn); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("ParallelFor after Close: err = %v, want ErrPoolClosed", err)
	}
	if err := pool.ParallelForAtomicBatched(100, 4, fn); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("ParallelForAtomicBatched after Close: err = %v, want ErrPoolClosed", err)
	}
	if called {
		t.Error("closed pool ran work")
	}
}

func TestSubmitRacingClose(t *testing.T) {
	pool := New(4)
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				err := pool.ParallelFor(64, func(start, end int) {})
				if err != nil && !errors.Is(err, ErrPoolClosed) {
					t.Errorf("unexpected error: %v", err)
					return
				}
			}
		}()
	}
	pool.Close()
	wg.Wait()
}

func TestPartition(t *testing.T) {
	tests := []struct {
		n, parts  int
		wantParts int
	}{
		{0, 4, 0},
		{1, 4, 1},
		{3, 8, 3},
		{10, 3, 3},
		{100, 7, 7},
		{5, 0, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d/parts=%d", tt.n, tt.parts), func(t *testing.T) {
			ranges := Partition(tt.n, tt.parts)
			if len(ranges) != tt.wantParts {
				t.Fatalf("len = %d, want %d", len(ranges), tt.wantParts)
			}
			next := 0
			minLen, maxLen := tt.n, 0
			for _, r := range ranges {
				if r.Start != next {
					t.Errorf("range %v does not start at %d", r, next)
				}
				if r.Len() <= 0 {
					t.Errorf("empty range %v", r)
				}
				minLen, maxLen = min(minLen, r.Len()), max(maxLen, r.Len())
				next = r.End
			}
			if next != tt.n {
				t.Errorf("ranges cover [0, %d), want [0, %d)", next, tt.n)
			}
			if len(ranges) > 0 && maxLen-minLen > 1 {
				t.Errorf("unbalanced: min %d max %d", minLen, maxLen)
			}
		})
	}
}

func BenchmarkParallelFor(b *testing.B) {
	pool := New(0) // Use GOMAXPROCS
	defer pool.Close()

	n := 1000

	for b.Loop() {
		_ = pool.ParallelFor(n, func(start, end int) {
			// Simulate work
			for j := start; j < end; j++ {
				_ = j * j
			}
		})
	}
}

func BenchmarkParallelForAtomicBatched(b *testing.B) {
	pool := New(0)
	defer pool.Close()

	n := 1000

	for b.Loop() {
		_ = pool.ParallelForAtomicBatched(n, 10, func(start, end int) {
			for j := start; j < end; j++ {
				_ = j * j
			}
		})
	}
}
