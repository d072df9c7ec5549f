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

import "github.com/go-highway/hyperopt/hwy"

// BaseSoftmax computes the softmax function over the input slice.
//
//	softmax(x_i) = exp(x_i - max(x)) / sum(exp(x_j - max(x)))
//
// The max subtraction keeps every exponent at or below zero, so large
// inputs cannot overflow. input and output may be the same slice.
func BaseSoftmax[T hwy.Floats](d hwy.Desc[T], input, output []T) {
	size := min(len(input), len(output))
	if size == 0 {
		return
	}
	input, output = input[:size], output[:size]
	lanes := d.Lanes()

	// Step 1: Find the maximum value for numerical stability
	maxVal := rowMax(d, input)

	// Step 2: exp(x - max), accumulating the sum in vector lanes
	vMax := d.Set(maxVal)
	sumAcc := d.Zero()
	var i int
	for i = 0; i+lanes <= size; i += lanes {
		e := hwy.Map(hwy.Sub(d.Load(input[i:]), vMax), hwy.Exp[T])
		hwy.Store(e, output[i:])
		sumAcc = hwy.Add(sumAcc, e)
	}
	expSum := hwy.ReduceSum(sumAcc)
	for ; i < size; i++ {
		output[i] = hwy.Exp(input[i] - maxVal)
		expSum += output[i]
	}

	// Step 3: Normalize by dividing by sum
	scale(d, output, 1/expSum)
}

// ScalarSoftmax is the reference loop for BaseSoftmax.
func ScalarSoftmax[T hwy.Floats](input, output []T) {
	size := min(len(input), len(output))
	if size == 0 {
		return
	}

	maxVal := input[0]
	for i := 1; i < size; i++ {
		if input[i] > maxVal {
			maxVal = input[i]
		}
	}

	var expSum T
	for i := range size {
		output[i] = hwy.Exp(input[i] - maxVal)
		expSum += output[i]
	}

	invSum := 1 / expSum
	for i := range size {
		output[i] *= invSum
	}
}

func rowMax[T hwy.Floats](d hwy.Desc[T], row []T) T {
	lanes := d.Lanes()
	best := row[0]
	var i int
	if len(row) >= lanes {
		acc := d.Load(row)
		for i = lanes; i+lanes <= len(row); i += lanes {
			acc = hwy.Max(acc, d.Load(row[i:]))
		}
		best = hwy.ReduceMax(acc)
	}
	for ; i < len(row); i++ {
		best = max(best, row[i])
	}
	return best
}

func scale[T hwy.Floats](d hwy.Desc[T], row []T, s T) {
	lanes := d.Lanes()
	vs := d.Set(s)
	var i int
	for i = 0; i+lanes <= len(row); i += lanes {
		hwy.Store(hwy.Mul(d.Load(row[i:]), vs), row[i:])
	}
	for ; i < len(row); i++ {
		row[i] *= s
	}
}
