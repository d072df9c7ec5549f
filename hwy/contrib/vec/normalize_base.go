package vec

import "github.com/go-highway/hyperopt/hwy"

// ScalarNormalize writes src scaled to unit L2 norm into dst.
// A zero vector is written as zeros.
func ScalarNormalize[T hwy.Floats](dst, src []T) {
	var sq T
	for _, x := range src[:len(dst)] {
		sq += x * x
	}
	if sq == 0 {
		clear(dst)
		return
	}
	scale := 1 / hwy.Sqrt(sq)
	for i := range dst {
		dst[i] = src[i] * scale
	}
}

// BaseNormalize normalizes src into dst to unit length (L2 norm = 1).
// The L2 norm is defined as sqrt(sum of squares): ||v|| = sqrt(Σ v[i]^2).
//
// If src has zero norm, dst is filled with zeros. This prevents division
// by zero. dst and src may be the same slice.
//
// Example:
//
//	src := []float32{3, 0, 4}
//	BaseNormalize(d, dst, src)  // dst is now [0.6, 0, 0.8]
func BaseNormalize[T hwy.Floats](d hwy.Desc[T], dst, src []T) {
	n := len(dst)
	if n == 0 {
		return
	}

	squaredNorm := BaseSquaredNorm(d, src[:n])
	if squaredNorm == 0 {
		clear(dst)
		return
	}

	BaseScale(d, dst, src[:n], 1/hwy.Sqrt(squaredNorm))
}
