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

package conv

import (
	"github.com/go-highway/hyperopt/hwy"
	"github.com/go-highway/hyperopt/hwy/contrib/workerpool"
)

// Kernel is a single-threaded convolution or pooling call with its
// descriptor and weights already bound.
type Kernel[T hwy.Floats] func(g Geometry, input, output []T)

// ParallelRows splits the output rows into one contiguous band per worker
// and runs kernel on each band with the input rows it reads. Bands write
// disjoint output rows; neighbouring bands may read overlapping input rows.
//
// Runs kernel directly when pool is nil.
func ParallelRows[T hwy.Floats](pool *workerpool.Pool, g Geometry, input, output []T, kernel Kernel[T]) error {
	oh, ow, err := g.Validate()
	if err != nil {
		return err
	}
	if pool == nil || oh < 2 {
		kernel(g, input, output)
		return nil
	}
	return pool.ParallelFor(oh, func(start, end int) {
		band := g
		// Input rows touched by output rows [start, end).
		band.InH = (end-1-start)*g.StrideH + g.KH
		inStart := start * g.StrideH * g.InW
		kernel(band, input[inStart:inStart+band.InH*g.InW], output[start*ow:end*ow])
	})
}
