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

package optimizer

import (
	"unsafe"

	"github.com/go-highway/hyperopt/hwy"
	"github.com/go-highway/hyperopt/hwy/contrib/activation"
	"github.com/go-highway/hyperopt/hwy/contrib/align"
	"github.com/go-highway/hyperopt/hwy/contrib/conv"
	"github.com/go-highway/hyperopt/hwy/contrib/matmul"
	"github.com/go-highway/hyperopt/hwy/contrib/matvec"
	"github.com/go-highway/hyperopt/hwy/contrib/nn"
	"github.com/go-highway/hyperopt/hwy/contrib/vec"
)

// vekSuffix marks implementations backed by vek's assembly.
const vekSuffix = "+vek"

// vekTier is the tier of vek's assembly kernels, which are AVX2 only.
const vekTier = hwy.DispatchAVX2

type (
	binaryFn[T hwy.Floats]    func(dst, a, b []T)
	unaryFn[T hwy.Floats]     func(input, output []T)
	reduceFn[T hwy.Floats]    func(v []T) T
	matvecFn[T hwy.Floats]    func(m []T, rows, cols int, v, result []T)
	convFn[T hwy.Floats]      func(g conv.Geometry, input, kernel, output []T)
)

// kernels is one row of the dispatch table: every operation for one
// precision at one tier.
type kernels[T hwy.Floats] struct {
	level     hwy.DispatchLevel
	effective map[Op]hwy.DispatchLevel // tier each op actually runs at
	names     map[Op]string

	add, mul      binaryFn[T]
	fma           func(dst, a, b, c []T)
	activations   map[Op]unaryFn[T]
	matvec        matvecFn[T]
	matmul        matmul.Kernel[T] // streaming
	matmulBlocked matmul.Kernel[T]
	conv          convFn[T]
	maxPool       conv.Kernel[T]
	avgPool       conv.Kernel[T]
	sum, max, min reduceFn[T]
	dot           func(a, b []T) T
	scale         func(dst, src []T, c T)
	normalize     unaryFn[T]
	layerNorm     nn.LayerNormKernel[T]
	softmax       unaryFn[T]
	attention     nn.AttentionKernel[T]
}

// table holds the kernels of every tier the hardware supports for one
// precision. It is built once and read-only afterwards.
type table[T hwy.Floats] struct {
	caps  hwy.HardwareCapabilities
	tiers [hwy.NumLevels]*kernels[T]
}

func newTable[T hwy.Floats](caps hwy.HardwareCapabilities, scratch *align.Pool, accel bool) *table[T] {
	var zero T
	blocks := matmul.BlockSizesFor(caps.L1, caps.L2, int(unsafe.Sizeof(zero)))

	t := &table[T]{caps: caps}
	for _, level := range caps.Levels() {
		if level == hwy.DispatchScalar {
			t.tiers[level] = scalarKernels[T](blocks, scratch)
			continue
		}
		t.tiers[level] = vectorKernels(hwy.NewDesc[T](level, caps.FMA), blocks, scratch, accel && level >= hwy.DispatchAVX2)
	}
	return t
}

// at returns the kernels for level, falling down to the nearest supported
// tier.
func (t *table[T]) at(level hwy.DispatchLevel) *kernels[T] {
	return t.tiers[t.caps.Resolve(level)]
}

func scalarKernels[T hwy.Floats](blocks matmul.BlockSizes, scratch *align.Pool) *kernels[T] {
	d := hwy.NewDesc[T](hwy.DispatchScalar, false)
	k := &kernels[T]{
		level: hwy.DispatchScalar,
		add:   vec.ScalarAdd[T],
		mul:   vec.ScalarMul[T],
		fma:   vec.ScalarFMA[T],
		activations: map[Op]unaryFn[T]{
			OpSigmoid: activation.ScalarSigmoid[T],
			OpTanh:    activation.ScalarTanh[T],
			OpReLU:    activation.ScalarReLU[T],
			OpGELU:    activation.ScalarGELU[T],
			OpSwish:   activation.ScalarSwish[T],
			OpMish:    activation.ScalarMish[T],
		},
		matvec: matvec.ScalarMatVec[T],
		matmul: matmul.ScalarMatMul[T],
		matmulBlocked: func(a, b, c []T, m, n, kk int) {
			matmul.BaseBlockedMatMul(d, a, b, c, m, n, kk, blocks, scratch)
		},
		conv:      conv.ScalarConv2D[T],
		maxPool:   conv.ScalarMaxPool2D[T],
		avgPool:   conv.ScalarAvgPool2D[T],
		sum:       vec.ScalarSum[T],
		max:       vec.ScalarMax[T],
		min:       vec.ScalarMin[T],
		dot:       vec.ScalarDot[T],
		scale:     vec.ScalarScale[T],
		normalize: func(input, output []T) { vec.ScalarNormalize(output, input) },
		layerNorm: nn.ScalarLayerNorm[T],
		softmax:   nn.ScalarSoftmax[T],
		attention: nn.ScalarAttentionWeights[T],
	}
	k.label(nil)
	return k
}

func vectorKernels[T hwy.Floats](d hwy.Desc[T], blocks matmul.BlockSizes, scratch *align.Pool, accel bool) *kernels[T] {
	k := &kernels[T]{
		level: d.Level(),
		add:   func(dst, a, b []T) { vec.BaseAdd(d, dst, a, b) },
		mul:   func(dst, a, b []T) { vec.BaseMul(d, dst, a, b) },
		fma:   func(dst, a, b, c []T) { vec.BaseFMA(d, dst, a, b, c) },
		activations: map[Op]unaryFn[T]{
			OpSigmoid: func(in, out []T) { activation.BaseSigmoid(d, in, out) },
			OpTanh:    func(in, out []T) { activation.BaseTanh(d, in, out) },
			OpReLU:    func(in, out []T) { activation.BaseReLU(d, in, out) },
			OpGELU:    func(in, out []T) { activation.BaseGELU(d, in, out) },
			OpSwish:   func(in, out []T) { activation.BaseSwish(d, in, out) },
			OpMish:    func(in, out []T) { activation.BaseMish(d, in, out) },
		},
		matvec: func(m []T, rows, cols int, v, result []T) { matvec.BaseMatVec(d, m, rows, cols, v, result) },
		matmul: func(a, b, c []T, m, n, kk int) { matmul.BaseMatMul(d, a, b, c, m, n, kk) },
		matmulBlocked: func(a, b, c []T, m, n, kk int) {
			matmul.BaseBlockedMatMul(d, a, b, c, m, n, kk, blocks, scratch)
		},
		conv: func(g conv.Geometry, in, kernel, out []T) { conv.BaseConv2D(d, g, in, kernel, out, scratch) },
		maxPool: func(g conv.Geometry, in, out []T) { conv.BaseMaxPool2D(d, g, in, out) },
		avgPool: func(g conv.Geometry, in, out []T) { conv.BaseAvgPool2D(d, g, in, out) },
		sum:     func(v []T) T { return vec.BaseSum(d, v) },
		max:     func(v []T) T { return vec.BaseMax(d, v) },
		min:     func(v []T) T { return vec.BaseMin(d, v) },
		dot:     func(a, b []T) T { return vec.BaseDot(d, a, b) },
		scale:   func(dst, src []T, c T) { vec.BaseScale(d, dst, src, c) },
		normalize: func(in, out []T) { vec.BaseNormalize(d, out, in) },
		layerNorm: func(in, out []T, normSize int, gamma, beta []T, eps T) {
			nn.BaseLayerNorm(d, in, out, normSize, gamma, beta, eps)
		},
		softmax: func(in, out []T) { nn.BaseSoftmax(d, in, out) },
		attention: func(q, keys, w []T, qLen, seqLen, dim int) {
			nn.BaseAttentionWeights(d, q, keys, w, qLen, seqLen, dim)
		},
	}

	var accelerated []Op
	if accel {
		k.add = vec.AccelAdd[T]
		k.mul = vec.AccelMul[T]
		k.sum = vec.AccelSum[T]
		k.max = vec.AccelMax[T]
		k.min = vec.AccelMin[T]
		k.dot = vec.AccelDot[T]
		k.matvec = matvec.AccelMatVec[T]
		accelerated = []Op{OpAdd, OpMul, OpSum, OpMax, OpMin, OpMatVec}
	}
	k.label(accelerated)
	return k
}

// label records the tier and implementation name of every op. Ops on vek
// run at vekTier whatever the row's tier.
func (k *kernels[T]) label(accelerated []Op) {
	k.effective = make(map[Op]hwy.DispatchLevel, len(Ops))
	k.names = make(map[Op]string, len(Ops))
	for _, op := range Ops {
		k.effective[op] = k.level
		k.names[op] = k.level.String()
	}
	for _, op := range accelerated {
		k.effective[op] = vekTier
		k.names[op] = vekTier.String() + vekSuffix
	}
}
