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

import "github.com/go-highway/hyperopt/hwy"

// ScalarMaxPool2D writes the maximum of every window into output.
func ScalarMaxPool2D[T hwy.Floats](g Geometry, input, output []T) {
	oh, ow := g.mustValidate(len(input), -1, len(output))
	for oy := range oh {
		for ox := range ow {
			best := hwy.Inf[T](-1)
			for ky := range g.KH {
				row := input[(oy*g.StrideH+ky)*g.InW+ox*g.StrideW:]
				for kx := range g.KW {
					best = max(best, row[kx])
				}
			}
			output[oy*ow+ox] = best
		}
	}
}

// ScalarAvgPool2D writes the mean of every window into output.
func ScalarAvgPool2D[T hwy.Floats](g Geometry, input, output []T) {
	oh, ow := g.mustValidate(len(input), -1, len(output))
	inv := 1 / T(g.KH*g.KW)
	for oy := range oh {
		for ox := range ow {
			var sum T
			for ky := range g.KH {
				row := input[(oy*g.StrideH+ky)*g.InW+ox*g.StrideW:]
				for kx := range g.KW {
					sum += row[kx]
				}
			}
			output[oy*ow+ox] = sum * inv
		}
	}
}

// BaseMaxPool2D is the vector form of ScalarMaxPool2D. With unit column
// stride, lanes cover adjacent output columns; otherwise each window is
// reduced on its own, a vector at a time along its rows.
func BaseMaxPool2D[T hwy.Floats](d hwy.Desc[T], g Geometry, input, output []T) {
	oh, ow := g.mustValidate(len(input), -1, len(output))
	if g.StrideW == 1 {
		poolColumns(d, g, input, output, oh, ow, hwy.Inf[T](-1), hwy.Max[T], maxOf[T])
		return
	}
	for oy := range oh {
		for ox := range ow {
			best := hwy.Inf[T](-1)
			for ky := range g.KH {
				start := (oy*g.StrideH+ky)*g.InW + ox*g.StrideW
				best = max(best, reduceRow(d, input[start:start+g.KW], hwy.Max[T], hwy.ReduceMax[T], maxOf[T], hwy.Inf[T](-1)))
			}
			output[oy*ow+ox] = best
		}
	}
}

// BaseAvgPool2D is the vector form of ScalarAvgPool2D.
func BaseAvgPool2D[T hwy.Floats](d hwy.Desc[T], g Geometry, input, output []T) {
	oh, ow := g.mustValidate(len(input), -1, len(output))
	inv := 1 / T(g.KH*g.KW)
	if g.StrideW == 1 {
		poolColumns(d, g, input, output, oh, ow, 0, hwy.Add[T], add[T])
		vInv := d.Set(inv)
		lanes := d.Lanes()
		n := oh * ow
		var i int
		for i = 0; i+lanes <= n; i += lanes {
			hwy.Store(hwy.Mul(d.Load(output[i:]), vInv), output[i:])
		}
		for ; i < n; i++ {
			output[i] *= inv
		}
		return
	}
	for oy := range oh {
		for ox := range ow {
			var sum T
			for ky := range g.KH {
				start := (oy*g.StrideH+ky)*g.InW + ox*g.StrideW
				sum += reduceRow(d, input[start:start+g.KW], hwy.Add[T], hwy.ReduceSum[T], add[T], 0)
			}
			output[oy*ow+ox] = sum * inv
		}
	}
}

func add[T hwy.Floats](a, b T) T { return a + b }
func maxOf[T hwy.Floats](a, b T) T { return max(a, b) }

// poolColumns folds every window tap into the output rows with combine,
// starting from identity. Requires unit column stride.
func poolColumns[T hwy.Floats](d hwy.Desc[T], g Geometry, input, output []T, oh, ow int, identity T,
	combine func(a, b hwy.Vec[T]) hwy.Vec[T], combineScalar func(a, b T) T) {
	lanes := d.Lanes()
	vIdentity := d.Set(identity)
	for oy := range oh {
		outRow := output[oy*ow : (oy+1)*ow]
		var ox int
		for ox = 0; ox+lanes <= ow; ox += lanes {
			acc := vIdentity
			for ky := range g.KH {
				inRow := input[(oy*g.StrideH+ky)*g.InW:]
				for kx := range g.KW {
					acc = combine(acc, d.Load(inRow[ox+kx:]))
				}
			}
			hwy.Store(acc, outRow[ox:])
		}
		for ; ox < ow; ox++ {
			acc := identity
			for ky := range g.KH {
				inRow := input[(oy*g.StrideH+ky)*g.InW:]
				for kx := range g.KW {
					acc = combineScalar(acc, inRow[ox+kx])
				}
			}
			outRow[ox] = acc
		}
	}
}

// reduceRow folds one window row: full vectors first, then the tail.
func reduceRow[T hwy.Floats](d hwy.Desc[T], row []T, combine func(a, b hwy.Vec[T]) hwy.Vec[T],
	reduce func(hwy.Vec[T]) T, combineScalar func(a, b T) T, identity T) T {
	lanes := d.Lanes()
	acc := identity
	var i int
	if len(row) >= lanes {
		v := d.Load(row)
		for i = lanes; i+lanes <= len(row); i += lanes {
			v = combine(v, d.Load(row[i:]))
		}
		acc = reduce(v)
	}
	for ; i < len(row); i++ {
		acc = combineScalar(acc, row[i])
	}
	return acc
}
