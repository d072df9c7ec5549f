package vec

import (
	"github.com/viterin/vek"
	"github.com/viterin/vek/vek32"

	"github.com/go-highway/hyperopt/hwy"
)

// vek ships hand-written AVX2 kernels for the common float operations. When
// it reports hardware acceleration they replace the portable loop on the
// 256- and 512-bit tiers. vek rejects empty slices, so every wrapper
// handles n == 0 itself.

// Accelerated reports whether vek's assembly kernels are active on this CPU.
func Accelerated() bool {
	return vek32.Info().Acceleration
}

// AccelFeatures lists the CPU features vek detected.
func AccelFeatures() []string {
	return vek32.Info().CPUFeatures
}

// AccelAdd computes dst[i] = a[i] + b[i] with vek.
func AccelAdd[T hwy.Floats](dst, a, b []T) {
	n := len(dst)
	if n == 0 {
		return
	}
	switch d := any(dst).(type) {
	case []float32:
		vek32.Add_Into(d, any(a).([]float32)[:n], any(b).([]float32)[:n])
	case []float64:
		vek.Add_Into(d, any(a).([]float64)[:n], any(b).([]float64)[:n])
	default:
		ScalarAdd(dst, a, b)
	}
}

// AccelMul computes dst[i] = a[i] * b[i] with vek.
func AccelMul[T hwy.Floats](dst, a, b []T) {
	n := len(dst)
	if n == 0 {
		return
	}
	switch d := any(dst).(type) {
	case []float32:
		vek32.Mul_Into(d, any(a).([]float32)[:n], any(b).([]float32)[:n])
	case []float64:
		vek.Mul_Into(d, any(a).([]float64)[:n], any(b).([]float64)[:n])
	default:
		ScalarMul(dst, a, b)
	}
}

// AccelSum returns the sum of v with vek, or 0 when empty.
func AccelSum[T hwy.Floats](v []T) T {
	if len(v) == 0 {
		return 0
	}
	switch x := any(v).(type) {
	case []float32:
		return T(vek32.Sum(x))
	case []float64:
		return T(vek.Sum(x))
	}
	return ScalarSum(v)
}

// AccelMax returns the largest element of v with vek, or -Inf when empty.
func AccelMax[T hwy.Floats](v []T) T {
	if len(v) == 0 {
		return hwy.Inf[T](-1)
	}
	switch x := any(v).(type) {
	case []float32:
		return T(vek32.Max(x))
	case []float64:
		return T(vek.Max(x))
	}
	return ScalarMax(v)
}

// AccelMin returns the smallest element of v with vek, or +Inf when empty.
func AccelMin[T hwy.Floats](v []T) T {
	if len(v) == 0 {
		return hwy.Inf[T](1)
	}
	switch x := any(v).(type) {
	case []float32:
		return T(vek32.Min(x))
	case []float64:
		return T(vek.Min(x))
	}
	return ScalarMin(v)
}

// AccelDot returns the dot product of a and b over len(a) elements with
// vek, or 0 when a is empty.
func AccelDot[T hwy.Floats](a, b []T) T {
	n := len(a)
	if n == 0 {
		return 0
	}
	switch x := any(a).(type) {
	case []float32:
		return T(vek32.Dot(x, any(b).([]float32)[:n]))
	case []float64:
		return T(vek.Dot(x, any(b).([]float64)[:n]))
	}
	return ScalarDot(a, b)
}
