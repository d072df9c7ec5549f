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

import (
	"github.com/go-highway/hyperopt/hwy"
	"github.com/go-highway/hyperopt/hwy/contrib/align"
)

// loader returns d.LoadAligned when every source starts on a vector
// boundary, as buffers from align.Alloc do, and d.Load otherwise.
// Stepping by d.Lanes() elements keeps an aligned start aligned.
func loader[T hwy.Floats](d hwy.Desc[T], srcs ...[]T) func([]T) hwy.Vec[T] {
	if Aligned(d, srcs...) {
		return d.LoadAligned
	}
	return d.Load
}

// Aligned reports whether every slice starts on a vector boundary of
// d's tier, so the kernels of this package take the aligned-load path.
// The scalar tier has no aligned path.
func Aligned[T hwy.Floats](d hwy.Desc[T], srcs ...[]T) bool {
	if d.Level() == hwy.DispatchScalar {
		return false
	}
	for _, s := range srcs {
		if !align.IsAligned(s, d.Level().Width()) {
			return false
		}
	}
	return true
}
