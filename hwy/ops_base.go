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
	"math"
	"unsafe"
)

// This file provides the portable lane operations every tier is built from.
// Loads and stores are unaligned by default; LoadAligned is the checked
// fast path for buffers that come from the aligned allocator.

// Load creates a vector by loading d.Lanes() elements from src.
// src must hold at least d.Lanes() elements.
func (d Desc[T]) Load(src []T) Vec[T] {
	v := Vec[T]{n: d.lanes}
	copy(v.data[:d.lanes], src[:d.lanes])
	return v
}

// LoadAligned is Load for sources whose first element sits on a vector
// boundary. It panics if src is misaligned for this tier.
func (d Desc[T]) LoadAligned(src []T) Vec[T] {
	if d.level != DispatchScalar && uintptr(unsafe.Pointer(&src[0]))%uintptr(d.level.Width()) != 0 {
		panic("hwy: LoadAligned on misaligned slice")
	}
	return d.Load(src)
}

// Set creates a vector with all lanes set to the same value.
func (d Desc[T]) Set(value T) Vec[T] {
	v := Vec[T]{n: d.lanes}
	for i := range d.lanes {
		v.data[i] = value
	}
	return v
}

// Zero creates a vector with all lanes set to zero.
func (d Desc[T]) Zero() Vec[T] {
	return Vec[T]{n: d.lanes}
}

// MulAdd computes a*b + c, fused when the tier supports FMA.
func (d Desc[T]) MulAdd(a, b, c Vec[T]) Vec[T] {
	if d.fma {
		return FMA(a, b, c)
	}
	return Add(Mul(a, b), c)
}

// Store writes a vector's data to a slice.
func Store[T Floats](v Vec[T], dst []T) {
	copy(dst[:v.n], v.data[:v.n])
}

// Add performs element-wise addition.
func Add[T Floats](a, b Vec[T]) Vec[T] {
	for i := range a.n {
		a.data[i] += b.data[i]
	}
	return a
}

// Sub performs element-wise subtraction.
func Sub[T Floats](a, b Vec[T]) Vec[T] {
	for i := range a.n {
		a.data[i] -= b.data[i]
	}
	return a
}

// Mul performs element-wise multiplication.
func Mul[T Floats](a, b Vec[T]) Vec[T] {
	for i := range a.n {
		a.data[i] *= b.data[i]
	}
	return a
}

// Div performs element-wise division.
func Div[T Floats](a, b Vec[T]) Vec[T] {
	for i := range a.n {
		a.data[i] /= b.data[i]
	}
	return a
}

// Max returns the element-wise maximum.
func Max[T Floats](a, b Vec[T]) Vec[T] {
	for i := range a.n {
		if b.data[i] > a.data[i] {
			a.data[i] = b.data[i]
		}
	}
	return a
}

// Min returns the element-wise minimum.
func Min[T Floats](a, b Vec[T]) Vec[T] {
	for i := range a.n {
		if b.data[i] < a.data[i] {
			a.data[i] = b.data[i]
		}
	}
	return a
}

// Abs returns the element-wise absolute value.
func Abs[T Floats](v Vec[T]) Vec[T] {
	for i := range v.n {
		if v.data[i] < 0 {
			v.data[i] = -v.data[i]
		}
	}
	return v
}

// FMA computes a*b + c per lane with a single rounding.
func FMA[T Floats](a, b, c Vec[T]) Vec[T] {
	for i := range a.n {
		a.data[i] = T(math.FMA(float64(a.data[i]), float64(b.data[i]), float64(c.data[i])))
	}
	return a
}

// MulAdd computes a*b + c with separate rounding of the product.
func MulAdd[T Floats](a, b, c Vec[T]) Vec[T] {
	return Add(Mul(a, b), c)
}

// Map applies fn to every lane. It is the escape hatch for transcendental
// functions that have no lane-parallel form here.
func Map[T Floats](v Vec[T], fn func(T) T) Vec[T] {
	for i := range v.n {
		v.data[i] = fn(v.data[i])
	}
	return v
}

// ReduceSum sums all lanes with a pairwise tree, the order a hardware
// horizontal add uses.
func ReduceSum[T Floats](v Vec[T]) T {
	n := v.n
	for n > 1 {
		half := n / 2
		for i := range half {
			v.data[i] += v.data[i+half]
		}
		if n%2 == 1 {
			v.data[0] += v.data[n-1]
		}
		n = half
	}
	if v.n == 0 {
		return 0
	}
	return v.data[0]
}

// ReduceMax returns the largest lane.
func ReduceMax[T Floats](v Vec[T]) T {
	m := v.data[0]
	for i := 1; i < v.n; i++ {
		if v.data[i] > m {
			m = v.data[i]
		}
	}
	return m
}

// ReduceMin returns the smallest lane.
func ReduceMin[T Floats](v Vec[T]) T {
	m := v.data[0]
	for i := 1; i < v.n; i++ {
		if v.data[i] < m {
			m = v.data[i]
		}
	}
	return m
}
