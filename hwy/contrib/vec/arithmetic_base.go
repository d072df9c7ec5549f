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

// Package vec provides element-wise vector arithmetic, reductions and
// normalization.
//
// Every operation comes in two forms:
//   - ScalarX: the reference loop, always correct and always available.
//   - BaseX: the vector loop for the tier described by d, followed by a
//     scalar tail for the remainder.
//
// Both forms operate on the first len(dst) elements; callers validate
// lengths beforehand.
package vec

import "github.com/go-highway/hyperopt/hwy"

// ScalarAdd computes dst[i] = a[i] + b[i].
func ScalarAdd[T hwy.Floats](dst, a, b []T) {
	for i := range dst {
		dst[i] = a[i] + b[i]
	}
}

// BaseAdd computes dst[i] = a[i] + b[i] using vectors of d.Lanes() elements.
//
// Example:
//
//	a := []float32{1, 2, 3, 4}
//	b := []float32{5, 6, 7, 8}
//	BaseAdd(d, dst, a, b)  // dst is now {6, 8, 10, 12}
func BaseAdd[T hwy.Floats](d hwy.Desc[T], dst, a, b []T) {
	n := len(dst)
	lanes := d.Lanes()
	load := loader(d, a, b)

	// Process full vectors
	var i int
	for i = 0; i+lanes <= n; i += lanes {
		va := load(a[i:])
		vb := load(b[i:])
		hwy.Store(hwy.Add(va, vb), dst[i:])
	}

	// Handle tail elements with scalar code
	for ; i < n; i++ {
		dst[i] = a[i] + b[i]
	}
}

// ScalarMul computes dst[i] = a[i] * b[i].
func ScalarMul[T hwy.Floats](dst, a, b []T) {
	for i := range dst {
		dst[i] = a[i] * b[i]
	}
}

// BaseMul computes dst[i] = a[i] * b[i] using vectors of d.Lanes() elements.
func BaseMul[T hwy.Floats](d hwy.Desc[T], dst, a, b []T) {
	n := len(dst)
	lanes := d.Lanes()
	load := loader(d, a, b)

	var i int
	for i = 0; i+lanes <= n; i += lanes {
		va := load(a[i:])
		vb := load(b[i:])
		hwy.Store(hwy.Mul(va, vb), dst[i:])
	}

	for ; i < n; i++ {
		dst[i] = a[i] * b[i]
	}
}

// ScalarFMA computes dst[i] = a[i]*b[i] + c[i] with separate rounding.
func ScalarFMA[T hwy.Floats](dst, a, b, c []T) {
	for i := range dst {
		dst[i] = a[i]*b[i] + c[i]
	}
}

// BaseFMA computes dst[i] = a[i]*b[i] + c[i]. The product is fused with the
// addition when d.FMA() is set; the tail uses the same rounding as the
// vector loop so results do not depend on where the tail starts.
func BaseFMA[T hwy.Floats](d hwy.Desc[T], dst, a, b, c []T) {
	n := len(dst)
	lanes := d.Lanes()
	load := loader(d, a, b, c)

	var i int
	for i = 0; i+lanes <= n; i += lanes {
		va := load(a[i:])
		vb := load(b[i:])
		vc := load(c[i:])
		hwy.Store(d.MulAdd(va, vb, vc), dst[i:])
	}

	tail := hwy.NewDesc[T](hwy.DispatchScalar, d.FMA())
	for ; i < n; i++ {
		v := tail.MulAdd(tail.Set(a[i]), tail.Set(b[i]), tail.Set(c[i]))
		dst[i] = v.Lane(0)
	}
}
