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

// Package matvec computes matrix-vector products result = M * v, with M a
// rows x cols row-major matrix, v of length cols and result of length rows.
//
// Each output element is the dot product of one row with v:
//   - ScalarMatVec: the plain double loop, always available.
//   - BaseMatVec: one vector dot product per row on a given tier.
//   - AccelMatVec: each row dot product computed by vek.
//   - ParallelMatVec: disjoint row blocks of any of the above on a
//     worker pool.
//
// Example:
//
//	m := []float32{
//		1, 2, 3, 4,
//		5, 6, 7, 8,
//		9, 0, 1, 2,
//	}
//	v := []float32{1, 2, 3, 4}
//	result := make([]float32, 3)
//	d := hwy.NewDesc[float32](hwy.DispatchAVX2, true)
//	matvec.BaseMatVec(d, m, 3, 4, v, result)
//	// result = [30, 70, 20]
package matvec
