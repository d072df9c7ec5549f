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
	"math/bits"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/go-highway/hyperopt/hwy"
)

// Sample is one measured call.
type Sample struct {
	Elapsed time.Duration

	// Size is the problem size the selector saw for the call.
	Size int

	// VectorizationRatio is the fraction of elements handled by full
	// vectors of the tier used; the rest went through the scalar tail.
	VectorizationRatio float64

	// CacheMissRate estimates the fraction of the working set that does
	// not fit in L2.
	CacheMissRate float64

	Strategy Strategy
	Tier     hwy.DispatchLevel
}

// PerformanceProfile aggregates the samples of one operation.
type PerformanceProfile struct {
	Operation string
	Samples   int64
	Mean      time.Duration
	Min       time.Duration
	Max       time.Duration

	// Running means of the per-sample estimates.
	CacheMissRate      float64
	VectorizationRatio float64

	LastStrategy Strategy
	LastTier     hwy.DispatchLevel
	LastUpdate   time.Time
}

// StrategyStats summarizes the samples one strategy produced for an
// operation within one size bucket.
type StrategyStats struct {
	Samples int64
	Mean    time.Duration
}

// runningMean keeps the mean in float64 nanoseconds so repeated updates do
// not accumulate rounding to whole nanoseconds.
type runningMean struct {
	n      int64
	meanNs float64
}

func (m *runningMean) add(d time.Duration) {
	m.n++
	m.meanNs += (float64(d) - m.meanNs) / float64(m.n)
}

// bucketKey groups the samples of one strategy by the power of two of the
// problem size.
type bucketKey struct {
	bucket   int
	strategy Strategy
}

func sizeBucket(size int) int { return bits.Len(uint(max(size, 0))) }

type profileEntry struct {
	PerformanceProfile
	mean    runningMean
	buckets map[bucketKey]*runningMean
}

// Profiler records rolling timing statistics keyed by operation name.
// It is safe for concurrent use; the lock is held only for the update.
type Profiler struct {
	mu       sync.Mutex
	profiles map[string]*profileEntry
	now      func() time.Time
}

// NewProfiler returns an empty profiler stamping updates with now
// (time.Now when nil).
func NewProfiler(now func() time.Time) *Profiler {
	if now == nil {
		now = time.Now
	}
	return &Profiler{profiles: make(map[string]*profileEntry), now: now}
}

// Record folds s into the profile of op. The mean is updated
// incrementally: mean += (x - mean) / n.
func (p *Profiler) Record(op string, s Sample) {
	stamp := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.profiles[op]
	if !ok {
		e = &profileEntry{
			PerformanceProfile: PerformanceProfile{Operation: op, Min: s.Elapsed, Max: s.Elapsed},
			buckets:            make(map[bucketKey]*runningMean),
		}
		p.profiles[op] = e
	}
	e.mean.add(s.Elapsed)
	e.Samples = e.mean.n
	n := float64(e.Samples)
	e.Mean = time.Duration(e.mean.meanNs)
	e.Min = min(e.Min, s.Elapsed)
	e.Max = max(e.Max, s.Elapsed)
	e.CacheMissRate += (s.CacheMissRate - e.CacheMissRate) / n
	e.VectorizationRatio += (s.VectorizationRatio - e.VectorizationRatio) / n
	e.LastStrategy = s.Strategy
	e.LastTier = s.Tier
	e.LastUpdate = stamp

	if s.Strategy.Valid() && s.Strategy != Adaptive {
		key := bucketKey{sizeBucket(s.Size), s.Strategy}
		m, ok := e.buckets[key]
		if !ok {
			m = new(runningMean)
			e.buckets[key] = m
		}
		m.add(s.Elapsed)
	}
}

// StrategyStats returns, per concrete strategy, the samples of op whose
// size falls in the same power-of-two bucket as size. Strategies without
// samples are absent.
func (p *Profiler) StrategyStats(op string, size int) map[Strategy]StrategyStats {
	bucket := sizeBucket(size)
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[Strategy]StrategyStats)
	e, ok := p.profiles[op]
	if !ok {
		return out
	}
	for key, m := range e.buckets {
		if key.bucket == bucket {
			out[key.strategy] = StrategyStats{Samples: m.n, Mean: time.Duration(m.meanNs)}
		}
	}
	return out
}

// Profile returns a copy of the profile of op. The boolean is false when
// op has no samples, which is distinct from a measured zero.
func (p *Profiler) Profile(op string) (PerformanceProfile, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.profiles[op]
	if !ok {
		return PerformanceProfile{}, false
	}
	return e.PerformanceProfile, true
}

// Operations returns the names with at least one sample, sorted.
func (p *Profiler) Operations() []string {
	p.mu.Lock()
	names := lo.Keys(p.profiles)
	p.mu.Unlock()
	slices.Sort(names)
	return names
}

// Snapshot returns copies of all profiles sorted by operation name.
func (p *Profiler) Snapshot() []PerformanceProfile {
	p.mu.Lock()
	out := lo.MapToSlice(p.profiles, func(_ string, e *profileEntry) PerformanceProfile {
		return e.PerformanceProfile
	})
	p.mu.Unlock()
	slices.SortFunc(out, func(a, b PerformanceProfile) int {
		return strings.Compare(a.Operation, b.Operation)
	})
	return out
}

// Reset drops every profile.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.profiles)
}

