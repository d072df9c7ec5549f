package hwy

import (
	stdmath "math"

	"github.com/chewxy/math32"
)

// Scalar transcendental helpers. float32 goes through math32 so that single
// precision kernels never round-trip through float64.

// Exp returns e**x.
func Exp[T Floats](x T) T {
	if v, ok := any(x).(float32); ok {
		return T(math32.Exp(v))
	}
	return T(stdmath.Exp(float64(x)))
}

// Tanh returns the hyperbolic tangent of x.
func Tanh[T Floats](x T) T {
	if v, ok := any(x).(float32); ok {
		return T(math32.Tanh(v))
	}
	return T(stdmath.Tanh(float64(x)))
}

// Erf returns the error function of x.
func Erf[T Floats](x T) T {
	if v, ok := any(x).(float32); ok {
		return T(math32.Erf(v))
	}
	return T(stdmath.Erf(float64(x)))
}

// Log1p returns the natural logarithm of 1 plus x.
func Log1p[T Floats](x T) T {
	if v, ok := any(x).(float32); ok {
		return T(math32.Log1p(v))
	}
	return T(stdmath.Log1p(float64(x)))
}

// Sqrt returns the square root of x.
func Sqrt[T Floats](x T) T {
	if v, ok := any(x).(float32); ok {
		return T(math32.Sqrt(v))
	}
	return T(stdmath.Sqrt(float64(x)))
}

// AbsScalar returns |x|.
func AbsScalar[T Floats](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

// Inf returns positive infinity if sign >= 0, negative infinity otherwise.
func Inf[T Floats](sign int) T {
	return T(stdmath.Inf(sign))
}
