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

// BaseLayerNorm normalizes each whole group of normSize elements of input
// to zero mean and unit variance:
//
//	output[i] = (input[i] - mean) * invStd * gamma[i%normSize] + beta[i%normSize]
//
// gamma and beta are independent and optional; a nil gamma scales by one
// and a nil beta shifts by zero. Trailing elements that do not fill a
// group are left untouched.
func BaseLayerNorm[T hwy.Floats](d hwy.Desc[T], input, output []T, normSize int, gamma, beta []T, epsilon T) {
	size := min(len(input), len(output))
	if size == 0 || normSize <= 0 {
		return
	}
	for off := 0; off+normSize <= size; off += normSize {
		group := input[off : off+normSize]
		mean, invStd := moments(d, group, epsilon)
		affine(d, group, output[off:off+normSize], mean, invStd, gamma, beta)
	}
}

// moments returns the mean of x and 1/sqrt(variance+epsilon), with the
// variance taken around the mean in a second pass.
func moments[T hwy.Floats](d hwy.Desc[T], x []T, epsilon T) (mean, invStd T) {
	n := len(x)
	lanes := d.Lanes()
	mean = vec.BaseSum(d, x) / T(n)

	vMean := d.Set(mean)
	acc := d.Zero()
	i := 0
	for ; i+lanes <= n; i += lanes {
		diff := hwy.Sub(d.Load(x[i:]), vMean)
		acc = d.MulAdd(diff, diff, acc)
	}
	sq := hwy.ReduceSum(acc)
	for ; i < n; i++ {
		sq += (x[i] - mean) * (x[i] - mean)
	}
	return mean, 1 / hwy.Sqrt(sq/T(n)+epsilon)
}

// affine writes (x - mean) * invStd, scaled by gamma and shifted by beta
// when given, into out.
func affine[T hwy.Floats](d hwy.Desc[T], x, out []T, mean, invStd T, gamma, beta []T) {
	n := len(x)
	lanes := d.Lanes()
	vMean, vInvStd := d.Set(mean), d.Set(invStd)

	i := 0
	for ; i+lanes <= n; i += lanes {
		v := hwy.Mul(hwy.Sub(d.Load(x[i:]), vMean), vInvStd)
		switch {
		case gamma != nil && beta != nil:
			v = d.MulAdd(v, d.Load(gamma[i:]), d.Load(beta[i:]))
		case gamma != nil:
			v = hwy.Mul(v, d.Load(gamma[i:]))
		case beta != nil:
			v = hwy.Add(v, d.Load(beta[i:]))
		}
		hwy.Store(v, out[i:])
	}
	for ; i < n; i++ {
		v := (x[i] - mean) * invStd
		if gamma != nil {
			v *= gamma[i]
		}
		if beta != nil {
			v += beta[i]
		}
		out[i] = v
	}
}

// ScalarLayerNorm is the reference loop for BaseLayerNorm.
func ScalarLayerNorm[T hwy.Floats](input, output []T, normSize int, gamma, beta []T, epsilon T) {
	size := min(len(input), len(output))
	if size == 0 || normSize <= 0 {
		return
	}
	invN := 1 / T(normSize)
	for off := 0; off+normSize <= size; off += normSize {
		group := input[off : off+normSize]
		var mean T
		for _, x := range group {
			mean += x
		}
		mean *= invN
		var variance T
		for _, x := range group {
			variance += (x - mean) * (x - mean)
		}
		variance *= invN
		invStd := 1 / hwy.Sqrt(variance+epsilon)

		for i, x := range group {
			normed := (x - mean) * invStd
			if gamma != nil {
				normed *= gamma[i]
			}
			if beta != nil {
				normed += beta[i]
			}
			output[off+i] = normed
		}
	}
}
