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

package nn

import (
	"github.com/go-highway/hyperopt/hwy"
	"github.com/go-highway/hyperopt/hwy/contrib/workerpool"
)

// RowBatch is how many rows a worker claims at a time in the parallel
// variants. Rows of softmax and attention vary in cost only with their
// length, so small batches keep workers evenly loaded.
const RowBatch = 4

// ParallelRows applies fn independently to each row of a [rows, cols]
// matrix, with workers claiming RowBatch rows at a time. Runs sequentially
// when pool is nil.
func ParallelRows[T hwy.Floats](pool *workerpool.Pool, input, output []T, rows, cols int, fn func(in, out []T)) error {
	if rows <= 0 || cols <= 0 {
		return nil
	}
	if pool == nil || rows == 1 {
		for r := range rows {
			fn(input[r*cols:(r+1)*cols], output[r*cols:(r+1)*cols])
		}
		return nil
	}
	return pool.ParallelForAtomicBatched(rows, RowBatch, func(start, end int) {
		for r := start; r < end; r++ {
			fn(input[r*cols:(r+1)*cols], output[r*cols:(r+1)*cols])
		}
	})
}

// LayerNormKernel normalizes every whole group of normSize elements of
// input into output.
type LayerNormKernel[T hwy.Floats] func(input, output []T, normSize int, gamma, beta []T, epsilon T)

// AttentionKernel computes the attention weights of qLen query rows.
type AttentionKernel[T hwy.Floats] func(query, keys, weights []T, qLen, seqLen, dim int)

// ParallelLayerNorm runs kernel over the normalization groups of input in
// parallel. Each worker receives whole groups, so the result equals one
// sequential call.
func ParallelLayerNorm[T hwy.Floats](pool *workerpool.Pool, input, output []T, normSize int, gamma, beta []T, epsilon T, kernel LayerNormKernel[T]) error {
	size := min(len(input), len(output))
	if size == 0 || normSize <= 0 {
		return nil
	}
	return ParallelRows(pool, input, output, size/normSize, normSize, func(in, out []T) {
		kernel(in, out, normSize, gamma, beta, epsilon)
	})
}

// ParallelAttentionWeights splits the query rows across the pool. Every
// worker writes only its own rows of weights.
func ParallelAttentionWeights[T hwy.Floats](pool *workerpool.Pool, query, keys, weights []T, qLen, seqLen, dim int, kernel AttentionKernel[T]) error {
	checkAttention(query, keys, weights, qLen, seqLen, dim)
	if pool == nil || qLen < 2 {
		kernel(query, keys, weights, qLen, seqLen, dim)
		return nil
	}
	return pool.ParallelForAtomicBatched(qLen, RowBatch, func(start, end int) {
		kernel(query[start*dim:end*dim], keys, weights[start*seqLen:end*seqLen], end-start, seqLen, dim)
	})
}
