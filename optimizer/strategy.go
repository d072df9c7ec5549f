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
	"fmt"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Strategy is a named policy choosing the execution path of a call.
type Strategy int

const (
	// Adaptive defers to the Selector, which picks by data size and,
	// when auto-tuning, by measured timings.
	Adaptive Strategy = iota

	// CacheOptimized runs the widest tier single-threaded with cache
	// blocking where the kernel has a blocked form.
	CacheOptimized

	// Vectorized forces the widest available tier, single-threaded.
	Vectorized

	// Parallel partitions the output across the worker pool, each worker
	// running the widest tier.
	Parallel

	// Hybrid is Parallel with cache blocking inside each partition.
	Hybrid

	// MemoryBound partitions across the pool with streaming (unblocked)
	// kernels, favouring bandwidth.
	MemoryBound

	// ComputeBound runs blocked kernels single-threaded, keeping operands
	// hot in cache.
	ComputeBound
)

const numStrategies = int(ComputeBound) + 1

var strategyNames = map[Strategy]string{
	Adaptive:       "adaptive",
	CacheOptimized: "cache_optimized",
	Vectorized:     "vectorized",
	Parallel:       "parallel",
	Hybrid:         "hybrid",
	MemoryBound:    "memory_bound",
	ComputeBound:   "compute_bound",
}

var strategiesByName = lo.Invert(strategyNames)

// Strategies lists every strategy in declaration order.
func Strategies() []Strategy {
	return []Strategy{Adaptive, CacheOptimized, Vectorized, Parallel, Hybrid, MemoryBound, ComputeBound}
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// Valid reports whether s is a defined strategy.
func (s Strategy) Valid() bool {
	_, ok := strategyNames[s]
	return ok
}

// ParseStrategy converts a name such as "cache_optimized",
// "cache-optimized" or "CacheOptimized" to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, "-", "_")
	if s, ok := strategiesByName[key]; ok {
		return s, nil
	}
	// CamelCase forms.
	for s, n := range strategyNames {
		if strings.ReplaceAll(n, "_", "") == key {
			return s, nil
		}
	}
	return Adaptive, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// MarshalYAML implements yaml.Marshaler.
func (s Strategy) MarshalYAML() (any, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, int(s))
	}
	return s.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Strategy) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	parsed, err := ParseStrategy(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// parallel reports whether the strategy fans out over the worker pool.
func (s Strategy) parallel() bool {
	return s == Parallel || s == Hybrid || s == MemoryBound
}

// blocked reports whether the strategy uses cache-blocked kernels.
func (s Strategy) blocked() bool {
	return s == CacheOptimized || s == Hybrid || s == ComputeBound
}
