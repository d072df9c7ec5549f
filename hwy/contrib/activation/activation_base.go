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

// Package activation provides neural-network activation functions with a
// scalar reference and a tiered vector form for each.
//
// All functions write output[i] = f(input[i]) for i < len(output); input
// and output may be the same slice.
package activation

import "github.com/go-highway/hyperopt/hwy"

// invSqrt2 is 1/sqrt(2).
const invSqrt2 = 0.7071067811865476

// softplusLinear is where log1p(exp(x)) equals x to working precision.
const softplusLinear = 20

// BaseSigmoid computes the rational sigmoid approximation
//
//	sigmoid(x) ≈ 0.5 * (x / (1 + |x|)) + 0.5
//
// It needs no transcendental call, so the vector loop stays pure
// arithmetic. Every tier, including the scalar one, uses this exact formula.
// It approaches 0 and 1 more slowly than the logistic function.
func BaseSigmoid[T hwy.Floats](d hwy.Desc[T], input, output []T) {
	size := len(output)
	vHalf := d.Set(0.5)
	vOne := d.Set(1)

	lanes := d.Lanes()
	ii := 0

	// Process full vectors
	for ; ii+lanes <= size; ii += lanes {
		x := d.Load(input[ii:])
		ratio := hwy.Div(x, hwy.Add(vOne, hwy.Abs(x)))
		hwy.Store(d.MulAdd(ratio, vHalf, vHalf), output[ii:])
	}

	// Handle tail elements with scalar math
	for i := ii; i < size; i++ {
		output[i] = sigmoidScalar(input[i])
	}
}

// ScalarSigmoid is the reference loop for BaseSigmoid.
func ScalarSigmoid[T hwy.Floats](input, output []T) {
	for i := range output {
		output[i] = sigmoidScalar(input[i])
	}
}

func sigmoidScalar[T hwy.Floats](x T) T {
	return 0.5*(x/(1+hwy.AbsScalar(x))) + 0.5
}

// BaseReLU computes ReLU(x) = max(0, x).
func BaseReLU[T hwy.Floats](d hwy.Desc[T], input, output []T) {
	size := len(output)
	vZero := d.Zero()
	lanes := d.Lanes()
	ii := 0

	for ; ii+lanes <= size; ii += lanes {
		x := d.Load(input[ii:])
		hwy.Store(hwy.Max(x, vZero), output[ii:])
	}

	for i := ii; i < size; i++ {
		output[i] = max(input[i], 0)
	}
}

// ScalarReLU is the reference loop for BaseReLU.
func ScalarReLU[T hwy.Floats](input, output []T) {
	for i := range output {
		if input[i] > 0 {
			output[i] = input[i]
		} else {
			output[i] = 0
		}
	}
}

// BaseTanh computes the hyperbolic tangent.
func BaseTanh[T hwy.Floats](d hwy.Desc[T], input, output []T) {
	size := len(output)
	lanes := d.Lanes()
	ii := 0

	for ; ii+lanes <= size; ii += lanes {
		x := d.Load(input[ii:])
		hwy.Store(hwy.Map(x, hwy.Tanh[T]), output[ii:])
	}

	for i := ii; i < size; i++ {
		output[i] = hwy.Tanh(input[i])
	}
}

// ScalarTanh is the reference loop for BaseTanh.
func ScalarTanh[T hwy.Floats](input, output []T) {
	for i := range output {
		output[i] = hwy.Tanh(input[i])
	}
}

// BaseGELU computes the Gaussian Error Linear Unit activation function.
//
// GELU(x) = x * 0.5 * (1 + erf(x / sqrt(2)))
//
// This is the exact GELU formula used in BERT, GPT, and other transformer models.
func BaseGELU[T hwy.Floats](d hwy.Desc[T], input, output []T) {
	size := len(output)
	vHalf := d.Set(0.5)
	vOne := d.Set(1)
	vInvSqrt2 := d.Set(invSqrt2)

	lanes := d.Lanes()
	ii := 0

	for ; ii+lanes <= size; ii += lanes {
		x := d.Load(input[ii:])

		// Compute erf(x / sqrt(2)) = erf(x * invSqrt2)
		erfX := hwy.Map(hwy.Mul(x, vInvSqrt2), hwy.Erf[T])

		// Compute x * 0.5 * (1 + erf(...))
		halfOnePlusErf := hwy.Mul(vHalf, hwy.Add(vOne, erfX))
		hwy.Store(hwy.Mul(x, halfOnePlusErf), output[ii:])
	}

	for i := ii; i < size; i++ {
		output[i] = geluScalar(input[i])
	}
}

// ScalarGELU is the reference loop for BaseGELU.
func ScalarGELU[T hwy.Floats](input, output []T) {
	for i := range output {
		output[i] = geluScalar(input[i])
	}
}

func geluScalar[T hwy.Floats](x T) T {
	return x * 0.5 * (1 + hwy.Erf(x*invSqrt2))
}

// BaseSwish computes Swish(x) = x * sigmoid(x) = x / (1 + exp(-x)), with the
// exact logistic function.
func BaseSwish[T hwy.Floats](d hwy.Desc[T], input, output []T) {
	size := len(output)
	vOne := d.Set(1)
	lanes := d.Lanes()
	ii := 0

	for ; ii+lanes <= size; ii += lanes {
		x := d.Load(input[ii:])
		expNeg := hwy.Map(x, func(v T) T { return hwy.Exp(-v) })
		hwy.Store(hwy.Div(x, hwy.Add(vOne, expNeg)), output[ii:])
	}

	for i := ii; i < size; i++ {
		output[i] = swishScalar(input[i])
	}
}

// ScalarSwish is the reference loop for BaseSwish.
func ScalarSwish[T hwy.Floats](input, output []T) {
	for i := range output {
		output[i] = swishScalar(input[i])
	}
}

func swishScalar[T hwy.Floats](x T) T {
	return x / (1 + hwy.Exp(-x))
}

// BaseMish computes Mish(x) = x * tanh(softplus(x)) where
// softplus(x) = log(1 + exp(x)).
func BaseMish[T hwy.Floats](d hwy.Desc[T], input, output []T) {
	size := len(output)
	lanes := d.Lanes()
	ii := 0

	for ; ii+lanes <= size; ii += lanes {
		x := d.Load(input[ii:])
		sp := hwy.Map(x, softplus[T])
		hwy.Store(hwy.Mul(x, hwy.Map(sp, hwy.Tanh[T])), output[ii:])
	}

	for i := ii; i < size; i++ {
		output[i] = mishScalar(input[i])
	}
}

// ScalarMish is the reference loop for BaseMish.
func ScalarMish[T hwy.Floats](input, output []T) {
	for i := range output {
		output[i] = mishScalar(input[i])
	}
}

func mishScalar[T hwy.Floats](x T) T {
	return x * hwy.Tanh(softplus(x))
}

func softplus[T hwy.Floats](x T) T {
	if x > softplusLinear {
		return x
	}
	return hwy.Log1p(hwy.Exp(x))
}
