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

package activation

import (
	"github.com/go-highway/hyperopt/hwy"
	"github.com/go-highway/hyperopt/hwy/contrib/workerpool"
)

// ParallelApply applies fn to contiguous, disjoint chunks of input/output,
// one chunk per worker. fn is any of the BaseX or ScalarX activations with
// its descriptor bound.
//
// Runs sequentially when pool is nil.
func ParallelApply[T hwy.Floats](pool *workerpool.Pool, input, output []T, fn func(input, output []T)) error {
	if pool == nil {
		fn(input, output)
		return nil
	}
	return pool.ParallelFor(len(output), func(start, end int) {
		fn(input[start:end], output[start:end])
	})
}
