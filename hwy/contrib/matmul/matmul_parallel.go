// Copyright 2024 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package matmul

import (
	"github.com/go-highway/hyperopt/hwy"
	"github.com/go-highway/hyperopt/hwy/contrib/workerpool"
)

// Kernel is any single-threaded C = A * B implementation over the full
// shape it is given.
type Kernel[T hwy.Floats] func(a, b, c []T, m, n, k int)

// ParallelMatMul computes C = A * B by splitting the M rows into one
// contiguous block per worker; each block runs kernel on its own slice of
// A and C.
//
//   - A is M x K (row-major)
//   - B is K x N (row-major), shared read-only by all workers
//   - C is M x N (row-major)
//
// Row blocks are disjoint, so no two workers ever write the same element of
// C and no locking is needed. Blocks until every block is done.
func ParallelMatMul[T hwy.Floats](pool *workerpool.Pool, a, b, c []T, m, n, k int, kernel Kernel[T]) error {
	checkShapes(a, b, c, m, n, k)
	if pool == nil || m < 2 {
		kernel(a, b, c, m, n, k)
		return nil
	}

	return pool.ParallelFor(m, func(rowStart, rowEnd int) {
		// Get slices for this strip
		aStrip := a[rowStart*k : rowEnd*k]
		cStrip := c[rowStart*n : rowEnd*n]
		kernel(aStrip, b, cStrip, rowEnd-rowStart, n, k)
	})
}
