package matvec

import (
	"github.com/go-highway/hyperopt/hwy"
	"github.com/go-highway/hyperopt/hwy/contrib/vec"
	"github.com/go-highway/hyperopt/hwy/contrib/workerpool"
)

// ScalarMatVec computes result = M * v with a plain double loop.
func ScalarMatVec[T hwy.Floats](m []T, rows, cols int, v, result []T) {
	for i := range rows {
		row := m[i*cols : (i+1)*cols]
		var acc T
		for j := range cols {
			acc += row[j] * v[j]
		}
		result[i] = acc
	}
}

// BaseMatVec computes the matrix-vector product: result = M * v
//
// Parameters:
//   - m: matrix in row-major order with shape [rows, cols]
//   - rows: number of rows in the matrix
//   - cols: number of columns in the matrix
//   - v: input vector of length cols
//   - result: output vector of length rows (must be pre-allocated)
//
// Each element result[i] is the dot product of row i with vector v,
// accumulated with multiply-add into one vector register, reduced
// horizontally, then finished with a scalar tail over the leftover columns.
//
// Panics if:
//   - len(m) < rows * cols
//   - len(v) < cols
//   - len(result) < rows
//
// Example:
//
//	// 2x3 matrix:
//	//   [1 2 3]
//	//   [4 5 6]
//	m := []float32{1, 2, 3, 4, 5, 6}
//	v := []float32{1, 0, 1}
//	result := make([]float32, 2)
//	BaseMatVec(d, m, 2, 3, v, result)  // result = [4, 10]
func BaseMatVec[T hwy.Floats](d hwy.Desc[T], m []T, rows, cols int, v, result []T) {
	if len(m) < rows*cols {
		panic("matrix slice too small")
	}
	if len(v) < cols {
		panic("vector slice too small")
	}
	if len(result) < rows {
		panic("result slice too small")
	}

	for i := range rows {
		result[i] = vec.BaseDot(d, m[i*cols:(i+1)*cols], v)
	}
}

// AccelMatVec is BaseMatVec with each row dot product computed by vek.
// A matrix without columns yields zeros.
func AccelMatVec[T hwy.Floats](m []T, rows, cols int, v, result []T) {
	if cols == 0 {
		clear(result[:rows])
		return
	}
	for i := range rows {
		result[i] = vec.AccelDot(m[i*cols:(i+1)*cols], v[:cols])
	}
}

// ParallelMatVec splits the output rows into one contiguous block per
// worker and runs kernel on each block. Blocks are disjoint, so no two
// workers write the same element of result.
func ParallelMatVec[T hwy.Floats](pool *workerpool.Pool, m []T, rows, cols int, v, result []T,
	kernel func(m []T, rows, cols int, v, result []T)) error {
	if pool == nil {
		kernel(m, rows, cols, v, result)
		return nil
	}
	return pool.ParallelFor(rows, func(start, end int) {
		kernel(m[start*cols:end*cols], end-start, cols, v, result[start:end])
	})
}
