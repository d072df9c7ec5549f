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
	"github.com/go-highway/hyperopt/hwy/contrib/vec"
)

// BaseAttentionWeights computes single-head attention weights.
//
//   - query:   [qLen, dim]
//   - keys:    [seqLen, dim]
//   - weights: [qLen, seqLen] (result)
//
// Each row of weights is softmax(query[i] . keys[j] / sqrt(dim)) over j.
// Panics if a slice is shorter than its shape.
func BaseAttentionWeights[T hwy.Floats](d hwy.Desc[T], query, keys, weights []T, qLen, seqLen, dim int) {
	checkAttention(query, keys, weights, qLen, seqLen, dim)
	if qLen == 0 || seqLen == 0 {
		return
	}
	s := attentionScale[T](dim)
	for i := range qLen {
		q := query[i*dim : (i+1)*dim]
		row := weights[i*seqLen : (i+1)*seqLen]
		for j := range seqLen {
			row[j] = vec.BaseDot(d, q, keys[j*dim:(j+1)*dim]) * s
		}
		BaseSoftmax(d, row, row)
	}
}

// ScalarAttentionWeights is the reference loop for BaseAttentionWeights.
func ScalarAttentionWeights[T hwy.Floats](query, keys, weights []T, qLen, seqLen, dim int) {
	checkAttention(query, keys, weights, qLen, seqLen, dim)
	if qLen == 0 || seqLen == 0 {
		return
	}
	s := attentionScale[T](dim)
	for i := range qLen {
		row := weights[i*seqLen : (i+1)*seqLen]
		for j := range seqLen {
			var sum T
			for p := range dim {
				sum += query[i*dim+p] * keys[j*dim+p]
			}
			row[j] = sum * s
		}
		ScalarSoftmax(row, row)
	}
}

func attentionScale[T hwy.Floats](dim int) T {
	if dim <= 0 {
		return 1
	}
	return 1 / hwy.Sqrt(T(dim))
}

func checkAttention[T hwy.Floats](query, keys, weights []T, qLen, seqLen, dim int) {
	if len(query) < qLen*dim {
		panic("nn: query slice too short")
	}
	if len(keys) < seqLen*dim {
		panic("nn: keys slice too short")
	}
	if len(weights) < qLen*seqLen {
		panic("nn: weights slice too short")
	}
}
