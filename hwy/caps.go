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

package hwy

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// Platform-typical defaults used when the cache hierarchy cannot be detected.
const (
	DefaultCacheLine = 64
	DefaultL1        = 32 * 1024
	DefaultL2        = 256 * 1024
	DefaultL3        = 8 * 1024 * 1024
)

// HardwareCapabilities is the immutable result of probing the CPU.
// Treat it as read-only once returned; it is passed by value.
type HardwareCapabilities struct {
	// SSE41 reports 128-bit vector support (SSE4.1 on x86-64, ASIMD on arm64).
	SSE41 bool
	// AVX2 reports 256-bit vector support.
	AVX2 bool
	// AVX512 reports 512-bit vector support (AVX-512F).
	AVX512 bool
	// FMA reports fused multiply-add support.
	FMA bool

	CacheLine int // bytes
	L1        int // L1 data cache, bytes
	L2        int // bytes
	L3        int // bytes

	LogicalCores   int
	PhysicalCores  int
	NUMANodes      int
	Hyperthreading bool

	Brand string
}

// isaFlags is what the architecture-specific detection reports.
type isaFlags struct {
	sse41, avx2, avx512, fma bool
}

var (
	detectOnce sync.Once
	detected   HardwareCapabilities
)

// DetectOnce returns the capabilities of this machine, probing on first use.
func DetectOnce() HardwareCapabilities {
	detectOnce.Do(func() {
		detected = Detect()
	})
	return detected
}

// Detect inspects the CPU. It never fails: anything that cannot be determined
// is reported as absent, and cache sizes fall back to platform defaults.
// When HWY_NO_SIMD is set the wide-vector flags are all cleared.
func Detect() HardwareCapabilities {
	c := HardwareCapabilities{
		CacheLine:    positiveOr(cpuid.CPU.CacheLine, DefaultCacheLine),
		L1:           positiveOr(cpuid.CPU.Cache.L1D, DefaultL1),
		L2:           positiveOr(cpuid.CPU.Cache.L2, DefaultL2),
		L3:           positiveOr(cpuid.CPU.Cache.L3, DefaultL3),
		LogicalCores: runtime.NumCPU(),
		NUMANodes:    numaNodes(),
		Brand:        cpuid.CPU.BrandName,
	}
	c.PhysicalCores = positiveOr(cpuid.CPU.PhysicalCores, c.LogicalCores)
	if cpuid.CPU.ThreadsPerCore > 0 && cpuid.CPU.PhysicalCores > 0 {
		c.Hyperthreading = cpuid.CPU.ThreadsPerCore > 1
	} else {
		// No topology information: assume SMT on larger parts.
		c.Hyperthreading = c.LogicalCores > 4
	}

	if NoSimdEnv() {
		return c
	}

	flags := readISA()
	c.SSE41 = flags.sse41
	c.AVX2 = flags.avx2
	c.AVX512 = flags.avx512
	c.FMA = flags.fma
	return c
}

// ScalarCapabilities returns a record describing a machine with no wide
// vector units but otherwise default topology. Every kernel must still
// produce correct results under it.
func ScalarCapabilities() HardwareCapabilities {
	return HardwareCapabilities{
		CacheLine:     DefaultCacheLine,
		L1:            DefaultL1,
		L2:            DefaultL2,
		L3:            DefaultL3,
		LogicalCores:  runtime.NumCPU(),
		PhysicalCores: runtime.NumCPU(),
		NUMANodes:     1,
	}
}

// Supports reports whether the tier's feature flag is set.
// The scalar tier is always supported.
func (c HardwareCapabilities) Supports(level DispatchLevel) bool {
	switch level {
	case DispatchScalar:
		return true
	case DispatchSSE4:
		return c.SSE41
	case DispatchAVX2:
		return c.AVX2
	case DispatchAVX512:
		return c.AVX512
	}
	return false
}

// Levels lists the supported tiers from narrowest to widest.
func (c HardwareCapabilities) Levels() []DispatchLevel {
	levels := make([]DispatchLevel, 0, NumLevels)
	for l := DispatchScalar; l <= DispatchAVX512; l++ {
		if c.Supports(l) {
			levels = append(levels, l)
		}
	}
	return levels
}

// MaxLevel returns the widest supported tier.
func (c HardwareCapabilities) MaxLevel() DispatchLevel {
	for l := DispatchAVX512; l > DispatchScalar; l-- {
		if c.Supports(l) {
			return l
		}
	}
	return DispatchScalar
}

// Resolve returns want if it is supported, otherwise the next tier down,
// ending at scalar.
func (c HardwareCapabilities) Resolve(want DispatchLevel) DispatchLevel {
	for l := want; l > DispatchScalar; l-- {
		if c.Supports(l) {
			return l
		}
	}
	return DispatchScalar
}

// Capped returns a copy with every tier wider than max cleared.
func (c HardwareCapabilities) Capped(max DispatchLevel) HardwareCapabilities {
	if max < DispatchAVX512 {
		c.AVX512 = false
	}
	if max < DispatchAVX2 {
		c.AVX2 = false
	}
	if max < DispatchSSE4 {
		c.SSE41 = false
	}
	return c
}

// String summarizes the record on one line.
func (c HardwareCapabilities) String() string {
	return fmt.Sprintf("max=%s fma=%v cores=%d/%d numa=%d ht=%v line=%d L1=%d L2=%d L3=%d",
		c.MaxLevel(), c.FMA, c.LogicalCores, c.PhysicalCores, c.NUMANodes,
		c.Hyperthreading, c.CacheLine, c.L1, c.L2, c.L3)
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
