// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package optimizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSelectorHeuristic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoTune = false
	multi := NewSelector(cfg, 8, nil)
	single := NewSelector(cfg, 1, nil)

	tests := []struct {
		size         int
		multi, alone Strategy
	}{
		{0, Vectorized, Vectorized},
		{999, Vectorized, Vectorized},
		{1000, CacheOptimized, CacheOptimized},
		{99999, CacheOptimized, CacheOptimized},
		{100000, Parallel, MemoryBound},
		{1 << 24, Parallel, MemoryBound},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.multi, multi.Heuristic(tt.size), "size %d, 8 cores", tt.size)
		assert.Equal(t, tt.alone, single.Heuristic(tt.size), "size %d, 1 core", tt.size)
		assert.Equal(t, tt.multi, multi.Select(OpAdd, tt.size), "Select without auto-tune")
	}
}

func TestSelectorAutoTune(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 2
	profiler := NewProfiler(nil)
	s := NewSelector(cfg, 4, profiler)

	// Hybrid is fastest; every other candidate takes 10ms.
	cost := func(c Strategy) time.Duration {
		if c == Hybrid {
			return time.Millisecond
		}
		return 10 * time.Millisecond
	}
	observe := func(op Op, size int, c Strategy) {
		profiler.Record(string(op), Sample{Elapsed: cost(c), Size: size, Strategy: c})
	}

	// The cold start is the heuristic until it has MinSamples samples.
	for range cfg.MinSamples {
		c := s.Select(OpMatMul, 5000)
		assert.Equal(t, CacheOptimized, c)
		observe(OpMatMul, 5000, c)
	}

	// Exploration then visits every other candidate.
	var explored []Strategy
	for range (len(tuneCandidates) - 1) * cfg.MinSamples {
		c := s.Select(OpMatMul, 5000)
		explored = append(explored, c)
		observe(OpMatMul, 5000, c)
	}
	for _, c := range tuneCandidates {
		if c != CacheOptimized {
			assert.Contains(t, explored, c)
		}
	}

	assert.Equal(t, Hybrid, s.Select(OpMatMul, 5000))
	// Same power-of-two bucket.
	assert.Equal(t, Hybrid, s.Select(OpMatMul, 6000))
	// Other buckets and ops start from the heuristic.
	assert.Equal(t, Vectorized, s.Select(OpMatMul, 50))
	assert.Equal(t, CacheOptimized, s.Select(OpAdd, 5000))

	// Clearing the profiles returns to the heuristic.
	profiler.Reset()
	assert.Equal(t, CacheOptimized, s.Select(OpMatMul, 5000))
}

func TestSelectorIgnoresAdaptiveSamples(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 1
	profiler := NewProfiler(nil)
	s := NewSelector(cfg, 4, profiler)
	profiler.Record(string(OpAdd), Sample{Elapsed: time.Nanosecond, Size: 10, Strategy: Adaptive})
	profiler.Record(string(OpAdd), Sample{Elapsed: time.Nanosecond, Size: 10, Strategy: Strategy(77)})
	assert.Empty(t, profiler.StrategyStats(string(OpAdd), 10))
	assert.Equal(t, Vectorized, s.Select(OpAdd, 10))
}

func TestSelectorWithoutProfiler(t *testing.T) {
	s := NewSelector(DefaultConfig(), 4, nil)
	assert.Equal(t, Parallel, s.Select(OpAdd, 1<<20))
}
