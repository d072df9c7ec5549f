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

package vec

import "github.com/go-highway/hyperopt/hwy"

// ScalarSum returns the sum of v. The sum of an empty slice is 0.
func ScalarSum[T hwy.Floats](v []T) T {
	var s T
	for _, x := range v {
		s += x
	}
	return s
}

// BaseSum returns the sum of v: lane-wise accumulation, a horizontal
// reduction, then the scalar tail.
func BaseSum[T hwy.Floats](d hwy.Desc[T], v []T) T {
	n := len(v)
	lanes := d.Lanes()
	load := loader(d, v)

	acc := d.Zero()
	var i int
	for i = 0; i+lanes <= n; i += lanes {
		acc = hwy.Add(acc, load(v[i:]))
	}

	s := hwy.ReduceSum(acc)
	for ; i < n; i++ {
		s += v[i]
	}
	return s
}

// ScalarMax returns the largest element of v, or -Inf for an empty slice.
func ScalarMax[T hwy.Floats](v []T) T {
	m := hwy.Inf[T](-1)
	for _, x := range v {
		if x > m {
			m = x
		}
	}
	return m
}

// BaseMax returns the largest element of v, or -Inf for an empty slice.
func BaseMax[T hwy.Floats](d hwy.Desc[T], v []T) T {
	n := len(v)
	lanes := d.Lanes()
	load := loader(d, v)

	m := hwy.Inf[T](-1)
	var i int
	if n >= lanes {
		acc := load(v)
		for i = lanes; i+lanes <= n; i += lanes {
			acc = hwy.Max(acc, load(v[i:]))
		}
		m = hwy.ReduceMax(acc)
	}
	for ; i < n; i++ {
		if v[i] > m {
			m = v[i]
		}
	}
	return m
}

// ScalarMin returns the smallest element of v, or +Inf for an empty slice.
func ScalarMin[T hwy.Floats](v []T) T {
	m := hwy.Inf[T](1)
	for _, x := range v {
		if x < m {
			m = x
		}
	}
	return m
}

// BaseMin returns the smallest element of v, or +Inf for an empty slice.
func BaseMin[T hwy.Floats](d hwy.Desc[T], v []T) T {
	n := len(v)
	lanes := d.Lanes()
	load := loader(d, v)

	m := hwy.Inf[T](1)
	var i int
	if n >= lanes {
		acc := load(v)
		for i = lanes; i+lanes <= n; i += lanes {
			acc = hwy.Min(acc, load(v[i:]))
		}
		m = hwy.ReduceMin(acc)
	}
	for ; i < n; i++ {
		if v[i] < m {
			m = v[i]
		}
	}
	return m
}

// BaseDot returns the dot product of a and b over len(a) elements, using
// multiply-accumulate into one vector register.
func BaseDot[T hwy.Floats](d hwy.Desc[T], a, b []T) T {
	n := len(a)
	lanes := d.Lanes()
	load := loader(d, a, b)

	acc := d.Zero()
	var i int
	for i = 0; i+lanes <= n; i += lanes {
		acc = d.MulAdd(load(a[i:]), load(b[i:]), acc)
	}

	s := hwy.ReduceSum(acc)
	for ; i < n; i++ {
		s += a[i] * b[i]
	}
	return s
}

// ScalarDot returns the dot product of a and b over len(a) elements.
func ScalarDot[T hwy.Floats](a, b []T) T {
	var s T
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
