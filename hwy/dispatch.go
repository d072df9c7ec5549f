package hwy

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"unsafe"
)

// DispatchLevel identifies a vector tier: the register width a kernel
// implementation is written for.
type DispatchLevel int

const (
	// DispatchScalar indicates no SIMD, pure Go implementation.
	DispatchScalar DispatchLevel = iota

	// DispatchSSE4 indicates 128-bit vectors (SSE4.1 on x86-64, NEON on arm64).
	DispatchSSE4

	// DispatchAVX2 indicates AVX2 instructions (256-bit SIMD).
	DispatchAVX2

	// DispatchAVX512 indicates AVX-512 instructions (512-bit SIMD).
	DispatchAVX512
)

// NumLevels is the number of dispatch tiers.
const NumLevels = int(DispatchAVX512) + 1

// String returns a human-readable name for the dispatch level.
func (d DispatchLevel) String() string {
	switch d {
	case DispatchScalar:
		return "scalar"
	case DispatchSSE4:
		if runtime.GOARCH == "arm64" {
			return "neon"
		}
		return "sse4"
	case DispatchAVX2:
		return "avx2"
	case DispatchAVX512:
		return "avx512"
	default:
		return "unknown"
	}
}

// Width returns the register width in bytes for the level.
// The scalar level reports the width of one float64.
func (d DispatchLevel) Width() int {
	switch d {
	case DispatchSSE4:
		return 16
	case DispatchAVX2:
		return 32
	case DispatchAVX512:
		return 64
	default:
		return 8
	}
}

// Bits returns the register width in bits, or 0 for scalar.
func (d DispatchLevel) Bits() int {
	if d == DispatchScalar {
		return 0
	}
	return d.Width() * 8
}

// Valid reports whether d is one of the defined tiers.
func (d DispatchLevel) Valid() bool {
	return d >= DispatchScalar && d <= DispatchAVX512
}

// ParseLevel converts a tier name ("scalar", "sse4", "neon", "avx2",
// "avx512", or a bit width such as "256") to a DispatchLevel.
func ParseLevel(s string) (DispatchLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scalar", "none", "0":
		return DispatchScalar, nil
	case "sse4", "sse4.1", "neon", "128":
		return DispatchSSE4, nil
	case "avx2", "256":
		return DispatchAVX2, nil
	case "avx512", "avx-512", "512":
		return DispatchAVX512, nil
	}
	return DispatchScalar, fmt.Errorf("hwy: unknown dispatch level %q", s)
}

// NoSimdEnv checks if the HWY_NO_SIMD environment variable is set.
// When set, detection reports no wide-vector support regardless of CPU
// capabilities. This is useful for testing and debugging.
func NoSimdEnv() bool {
	val := os.Getenv("HWY_NO_SIMD")
	if val == "" {
		return false
	}
	// Any non-empty value is considered true, but also parse as bool
	if b, err := strconv.ParseBool(val); err == nil {
		return b
	}
	return true
}

// Desc describes one tier for element type T: how many lanes a vector
// holds and whether multiply-add is fused.
//
// For example, with AVX2 (256 bits / 32 bytes):
//   - float32: 32/4 = 8 lanes
//   - float64: 32/8 = 4 lanes
type Desc[T Floats] struct {
	level DispatchLevel
	lanes int
	fma   bool
}

// NewDesc returns the descriptor for level. The scalar level has one lane.
func NewDesc[T Floats](level DispatchLevel, fma bool) Desc[T] {
	var zero T
	lanes := 1
	if level != DispatchScalar {
		lanes = level.Width() / int(unsafe.Sizeof(zero))
	}
	return Desc[T]{level: level, lanes: lanes, fma: fma}
}

// Level returns the tier this descriptor targets.
func (d Desc[T]) Level() DispatchLevel { return d.level }

// Lanes returns the number of elements per vector.
func (d Desc[T]) Lanes() int { return d.lanes }

// FMA reports whether MulAdd uses a single rounding step.
func (d Desc[T]) FMA() bool { return d.fma }

// VectorizedCount returns how many of n elements a loop over this tier
// processes in full vectors; the rest go through the scalar tail.
func (d Desc[T]) VectorizedCount(n int) int {
	if d.level == DispatchScalar {
		return 0
	}
	return n - n%d.lanes
}
