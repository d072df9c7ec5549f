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

// tuneCandidates are the concrete strategies auto-tuning chooses among,
// in exploration order.
var tuneCandidates = []Strategy{Vectorized, CacheOptimized, Parallel, Hybrid, MemoryBound, ComputeBound}

// Selector resolves Adaptive to a concrete strategy per call.
//
// The cold-start choice is by size alone: below SmallThreshold
// Vectorized, below LargeThreshold CacheOptimized, and above it Parallel
// on multi-core machines or MemoryBound otherwise.
//
// With auto-tuning the selector reads the profiler's per-strategy timings
// for the operation's power-of-two size bucket. The heuristic choice runs
// until it has MinSamples samples, then every other candidate in turn,
// and from then on the one with the lowest mean. Clearing the profiler
// returns every bucket to the heuristic.
type Selector struct {
	small, large int
	cores        int
	autoTune     bool
	minSamples   int64
	profiler     *Profiler
}

// NewSelector returns a selector for the thresholds of cfg on a machine
// with the given core count, tuning from the timings in profiler.
func NewSelector(cfg Config, cores int, profiler *Profiler) *Selector {
	return &Selector{
		small:      cfg.SmallThreshold,
		large:      cfg.LargeThreshold,
		cores:      cores,
		autoTune:   cfg.AutoTune && profiler != nil,
		minSamples: int64(max(cfg.MinSamples, 1)),
		profiler:   profiler,
	}
}

// Heuristic returns the size-based choice, ignoring measurements.
func (s *Selector) Heuristic(size int) Strategy {
	switch {
	case size < s.small:
		return Vectorized
	case size < s.large:
		return CacheOptimized
	case s.cores > 1:
		return Parallel
	default:
		return MemoryBound
	}
}

// Select returns the strategy for one call of op over size elements.
func (s *Selector) Select(op Op, size int) Strategy {
	cold := s.Heuristic(size)
	if !s.autoTune {
		return cold
	}
	stats := s.profiler.StrategyStats(string(op), size)
	if stats[cold].Samples < s.minSamples {
		return cold
	}
	best := cold
	for _, c := range tuneCandidates {
		st := stats[c]
		if st.Samples < s.minSamples {
			return c
		}
		if st.Mean < stats[best].Mean {
			best = c
		}
	}
	return best
}
