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

// Package matmul provides row-major matrix multiplication C = A * B in
// several forms:
//   - ScalarMatMul: the naive triple loop, always available.
//   - BaseMatMul: streaming vector kernel, one output row at a time.
//   - BaseBlockedMatMul: cache-blocked with packed B panels and a 2-row
//     register micro-kernel.
//   - ParallelMatMul: disjoint row blocks of any of the above on a
//     worker pool.
//
// Shapes: A is M x K, B is K x N, C is M x N.
package matmul

import "github.com/go-highway/hyperopt/hwy"

// ScalarMatMul is the pure Go scalar implementation.
// C[i,j] = sum(A[i,p] * B[p,j]) for p in 0..K-1
func ScalarMatMul[T hwy.Floats](a, b, c []T, m, n, k int) {
	// Clear output
	clear(c[:m*n])

	// Standard triple-loop matrix multiply
	for i := range m {
		for p := range k {
			aip := a[i*k+p]
			for j := range n {
				c[i*n+j] += aip * b[p*n+j]
			}
		}
	}
}

// BaseMatMul computes C = A * B by streaming each row of B through vector
// registers: for every A[i,p], C[i,:] += A[i,p] * B[p,:].
//
// No blocking is done, which keeps overhead lowest for matrices that fit
// in cache.
func BaseMatMul[T hwy.Floats](d hwy.Desc[T], a, b, c []T, m, n, k int) {
	checkShapes(a, b, c, m, n, k)
	lanes := d.Lanes()

	for i := range m {
		cRow := c[i*n : (i+1)*n]
		clear(cRow)

		for p := range k {
			aip := a[i*k+p]
			vA := d.Set(aip)
			bRow := b[p*n : (p+1)*n]

			var j int
			for j = 0; j+lanes <= n; j += lanes {
				acc := d.MulAdd(vA, d.Load(bRow[j:]), d.Load(cRow[j:]))
				hwy.Store(acc, cRow[j:])
			}
			for ; j < n; j++ {
				cRow[j] += aip * bRow[j]
			}
		}
	}
}

func checkShapes[T hwy.Floats](a, b, c []T, m, n, k int) {
	if len(a) < m*k {
		panic("matmul: A slice too short")
	}
	if len(b) < k*n {
		panic("matmul: B slice too short")
	}
	if len(c) < m*n {
		panic("matmul: C slice too short")
	}
}
