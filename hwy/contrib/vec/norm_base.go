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

// BaseSquaredNorm computes the squared L2 norm (sum of squares) of a vector.
// The result is equivalent to Dot(v, v): Σ(v[i] * v[i]).
//
// Returns 0 if the slice is empty.
//
// Example:
//
//	v := []float32{3, 4}
//	result := BaseSquaredNorm(d, v)  // 3*3 + 4*4 = 25
func BaseSquaredNorm[T hwy.Floats](d hwy.Desc[T], v []T) T {
	return BaseDot(d, v, v)
}

// BaseNorm computes the L2 norm (Euclidean magnitude) of a vector:
// Sqrt(Σ(v[i] * v[i])). Returns 0 if the slice is empty.
func BaseNorm[T hwy.Floats](d hwy.Desc[T], v []T) T {
	squaredNorm := BaseSquaredNorm(d, v)
	if squaredNorm == 0 {
		return 0
	}
	return hwy.Sqrt(squaredNorm)
}

// ScalarScale writes dst[i] = src[i] * c.
func ScalarScale[T hwy.Floats](dst, src []T, c T) {
	for i := range dst {
		dst[i] = src[i] * c
	}
}

// BaseScale writes dst[i] = src[i] * c. dst and src may be the same slice.
func BaseScale[T hwy.Floats](d hwy.Desc[T], dst, src []T, c T) {
	n := len(dst)
	vc := d.Set(c)
	lanes := d.Lanes()

	var i int
	for i = 0; i+lanes <= n; i += lanes {
		hwy.Store(hwy.Mul(d.Load(src[i:]), vc), dst[i:])
	}
	for ; i < n; i++ {
		dst[i] = src[i] * c
	}
}
