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
	"errors"
	"fmt"
	"math"
	"math/bits"
	"time"
	"unsafe"

	"github.com/go-highway/hyperopt/hwy"
	"github.com/go-highway/hyperopt/hwy/contrib/activation"
	"github.com/go-highway/hyperopt/hwy/contrib/conv"
	"github.com/go-highway/hyperopt/hwy/contrib/matmul"
	"github.com/go-highway/hyperopt/hwy/contrib/matvec"
	"github.com/go-highway/hyperopt/hwy/contrib/nn"
	"github.com/go-highway/hyperopt/hwy/contrib/workerpool"
)

// Engine runs every operation for one precision. Obtain one from
// Optimizer.Float32 or Optimizer.Float64.
//
// Each method takes an optional trailing Strategy; without one the
// optimizer's default applies. Shapes are checked before any kernel runs
// and mismatches return ErrShapeMismatch. Calls block until all parallel
// work has finished.
type Engine[T hwy.Floats] struct {
	opt       *Optimizer
	table     *table[T]
	precision Precision
}

func newEngine[T hwy.Floats](opt *Optimizer, precision Precision) *Engine[T] {
	return &Engine[T]{
		opt:       opt,
		table:     newTable[T](opt.caps, opt.scratch, opt.accel),
		precision: precision,
	}
}

// Precision returns the element type the engine runs.
func (e *Engine[T]) Precision() Precision { return e.precision }

// Tier returns the tier every strategy dispatches to.
func (e *Engine[T]) Tier() hwy.DispatchLevel { return e.table.at(e.opt.level).level }

// TierOf returns the tier op actually runs at. It is below Tier for ops
// served by vek's AVX2 kernels on an AVX-512 machine.
func (e *Engine[T]) TierOf(op Op) hwy.DispatchLevel {
	return e.table.at(e.opt.level).effective[op]
}

// implementation names the kernel op runs on.
func (e *Engine[T]) implementation(op Op) string {
	return e.table.at(e.opt.level).names[op]
}

// plan is the resolved execution path of one call.
type plan[T hwy.Floats] struct {
	strategy Strategy
	k        *kernels[T]
	pool     *workerpool.Pool // nil runs on the calling goroutine
	blocked  bool
}

func (e *Engine[T]) plan(op Op, size int, s []Strategy) (plan[T], error) {
	if e.opt.closed.Load() {
		return plan[T]{}, ErrClosed
	}
	strategy := e.opt.DefaultStrategy()
	if len(s) > 0 {
		strategy = s[0]
	}
	if !strategy.Valid() {
		return plan[T]{}, fmt.Errorf("%w: %d", ErrUnknownStrategy, int(strategy))
	}
	if strategy == Adaptive {
		strategy = e.opt.selector.Select(op, size)
	}
	p := plan[T]{
		strategy: strategy,
		k:        e.table.at(e.opt.level),
		blocked:  strategy.blocked(),
	}
	if strategy.parallel() {
		p.pool = e.opt.pool
	}
	return p, nil
}

// record feeds one successful call to the profiler and returns err
// unchanged; failed calls are not recorded. vectorDim is the extent the
// kernel vectorizes along; workingSet is in elements.
func (e *Engine[T]) record(err error, op Op, size int, p plan[T], start time.Time, vectorDim, workingSet int) error {
	if err != nil || !e.opt.cfg.Profiling {
		return err
	}
	tier := p.k.effective[op]
	e.opt.profiler.Record(string(op), Sample{
		Elapsed:            e.opt.now().Sub(start),
		Size:               size,
		VectorizationRatio: vectorRatio[T](tier, vectorDim),
		CacheMissRate:      e.missRate(workingSet),
		Strategy:           p.strategy,
		Tier:               tier,
	})
	return nil
}

// vectorRatio is the share of n elements a loop at level handles in full
// vectors.
func vectorRatio[T hwy.Floats](level hwy.DispatchLevel, n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(hwy.NewDesc[T](level, false).VectorizedCount(n)) / float64(n)
}

// missRate estimates the share of a working set that cannot stay in L2.
func (e *Engine[T]) missRate(elems int) float64 {
	var zero T
	bytes := float64(elems) * float64(unsafe.Sizeof(zero))
	l2 := float64(e.opt.caps.L2)
	if bytes <= l2 || l2 <= 0 {
		return 0
	}
	return 1 - l2/bytes
}

func poolErr(err error) error {
	if errors.Is(err, workerpool.ErrPoolClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}

func shapeErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrShapeMismatch, fmt.Sprintf(format, args...))
}

// mulDims returns the product of dims. It fails when a dimension is
// negative or the product does not fit in an int.
func mulDims(dims ...int) (int, bool) {
	p := uint64(1)
	for _, d := range dims {
		if d < 0 {
			return 0, false
		}
		hi, prod := bits.Mul64(p, uint64(d))
		if hi != 0 || prod > math.MaxInt {
			return 0, false
		}
		p = prod
	}
	return int(p), true
}

// hasLen reports whether len(s) is exactly the product of dims.
func hasLen[T hwy.Floats](s []T, dims ...int) bool {
	n, ok := mulDims(dims...)
	return ok && len(s) == n
}

// elementwise runs fn over [0, n), split into one contiguous chunk per
// worker when the plan is parallel.
func (p plan[T]) elementwise(n int, fn func(start, end int)) error {
	if p.pool == nil || n < 2 {
		fn(0, n)
		return nil
	}
	return poolErr(p.pool.ParallelFor(n, fn))
}

// reduce folds v with fn per chunk and combines the partial results in
// chunk order.
func (p plan[T]) reduce(v []T, fn reduceFn[T], combine func(a, b T) T) (T, error) {
	if p.pool == nil || len(v) < 2 {
		return fn(v), nil
	}
	ranges := workerpool.Partition(len(v), p.pool.NumWorkers())
	partials := make([]T, len(ranges))
	err := p.pool.ParallelForAtomic(len(ranges), func(i int) {
		partials[i] = fn(v[ranges[i].Start:ranges[i].End])
	})
	if err != nil {
		return 0, poolErr(err)
	}
	acc := partials[0]
	for _, x := range partials[1:] {
		acc = combine(acc, x)
	}
	return acc, nil
}

func (e *Engine[T]) binary(op Op, dst, a, b []T, fn func(k *kernels[T]) binaryFn[T], s []Strategy) error {
	n := len(dst)
	if len(a) != n || len(b) != n {
		return shapeErr("%s: len(dst)=%d len(a)=%d len(b)=%d", op, n, len(a), len(b))
	}
	p, err := e.plan(op, n, s)
	if err != nil {
		return err
	}
	start := e.opt.now()
	kernel := fn(p.k)
	err = p.elementwise(n, func(lo, hi int) { kernel(dst[lo:hi], a[lo:hi], b[lo:hi]) })
	return e.record(err, op, n, p, start, n, 3*n)
}

// Add computes dst[i] = a[i] + b[i].
func (e *Engine[T]) Add(dst, a, b []T, s ...Strategy) error {
	return e.binary(OpAdd, dst, a, b, func(k *kernels[T]) binaryFn[T] { return k.add }, s)
}

// Mul computes dst[i] = a[i] * b[i].
func (e *Engine[T]) Mul(dst, a, b []T, s ...Strategy) error {
	return e.binary(OpMul, dst, a, b, func(k *kernels[T]) binaryFn[T] { return k.mul }, s)
}

// FMA computes dst[i] = a[i]*b[i] + c[i], with a single rounding when the
// hardware has fused multiply-add.
func (e *Engine[T]) FMA(dst, a, b, c []T, s ...Strategy) error {
	n := len(dst)
	if len(a) != n || len(b) != n || len(c) != n {
		return shapeErr("fma: len(dst)=%d len(a)=%d len(b)=%d len(c)=%d", n, len(a), len(b), len(c))
	}
	p, err := e.plan(OpFMA, n, s)
	if err != nil {
		return err
	}
	start := e.opt.now()
	err = p.elementwise(n, func(lo, hi int) { p.k.fma(dst[lo:hi], a[lo:hi], b[lo:hi], c[lo:hi]) })
	return e.record(err, OpFMA, n, p, start, n, 4*n)
}

// Activation applies the activation op (OpSigmoid, OpTanh, OpReLU,
// OpGELU, OpSwish or OpMish) elementwise. input and output may alias.
func (e *Engine[T]) Activation(op Op, input, output []T, s ...Strategy) error {
	n := len(output)
	if len(input) != n {
		return shapeErr("%s: len(input)=%d len(output)=%d", op, len(input), n)
	}
	if _, ok := e.table.at(e.opt.level).activations[op]; !ok {
		return fmt.Errorf("%w: %q is not an activation", ErrUnknownOp, op)
	}
	p, err := e.plan(op, n, s)
	if err != nil {
		return err
	}
	start := e.opt.now()
	err = poolErr(activation.ParallelApply(p.pool, input, output, p.k.activations[op]))
	return e.record(err, op, n, p, start, n, 2*n)
}

// Sigmoid applies 0.5*(x/(1+|x|)) + 0.5, a rational approximation of the
// logistic function used identically on every tier.
func (e *Engine[T]) Sigmoid(input, output []T, s ...Strategy) error {
	return e.Activation(OpSigmoid, input, output, s...)
}

// Tanh applies the hyperbolic tangent.
func (e *Engine[T]) Tanh(input, output []T, s ...Strategy) error {
	return e.Activation(OpTanh, input, output, s...)
}

// ReLU applies max(0, x).
func (e *Engine[T]) ReLU(input, output []T, s ...Strategy) error {
	return e.Activation(OpReLU, input, output, s...)
}

// GELU applies x * 0.5 * (1 + erf(x/sqrt(2))).
func (e *Engine[T]) GELU(input, output []T, s ...Strategy) error {
	return e.Activation(OpGELU, input, output, s...)
}

// Swish applies x * sigmoid(x) with the exact logistic function.
func (e *Engine[T]) Swish(input, output []T, s ...Strategy) error {
	return e.Activation(OpSwish, input, output, s...)
}

// Mish applies x * tanh(softplus(x)).
func (e *Engine[T]) Mish(input, output []T, s ...Strategy) error {
	return e.Activation(OpMish, input, output, s...)
}

// MatVec computes result = m * v for a row-major rows x cols matrix.
// A matrix without columns yields zeros.
func (e *Engine[T]) MatVec(m []T, rows, cols int, v, result []T, s ...Strategy) error {
	if !hasLen(m, rows, cols) || len(v) != cols || len(result) != rows {
		return shapeErr("matvec: %dx%d matrix with len(m)=%d len(v)=%d len(result)=%d",
			rows, cols, len(m), len(v), len(result))
	}
	size := len(m)
	p, err := e.plan(OpMatVec, size, s)
	if err != nil {
		return err
	}
	start := e.opt.now()
	if p.pool != nil {
		err = poolErr(matvec.ParallelMatVec(p.pool, m, rows, cols, v, result, p.k.matvec))
	} else {
		p.k.matvec(m, rows, cols, v, result)
	}
	return e.record(err, OpMatVec, size, p, start, cols, size+rows+cols)
}

// MatMul computes C = A * B with A m x k, B k x n and C m x n, all
// row-major. Parallel strategies give each worker a disjoint block of
// rows of C.
func (e *Engine[T]) MatMul(a, b, c []T, m, n, k int, s ...Strategy) error {
	if !hasLen(a, m, k) || !hasLen(b, k, n) || !hasLen(c, m, n) {
		return shapeErr("matmul: m=%d n=%d k=%d with len(a)=%d len(b)=%d len(c)=%d",
			m, n, k, len(a), len(b), len(c))
	}
	size := len(a) + len(b) + len(c)
	p, err := e.plan(OpMatMul, size, s)
	if err != nil {
		return err
	}
	kernel := p.k.matmul
	if p.blocked {
		kernel = p.k.matmulBlocked
	}
	start := e.opt.now()
	if p.pool != nil {
		err = poolErr(matmul.ParallelMatMul(p.pool, a, b, c, m, n, k, kernel))
	} else {
		kernel(a, b, c, m, n, k)
	}
	return e.record(err, OpMatMul, size, p, start, n, size)
}

func checkGeometry[T hwy.Floats](op Op, g conv.Geometry, input, kernel, output []T) (int, error) {
	oh, ow, err := g.Validate()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if !hasLen(input, g.InH, g.InW) || (kernel != nil && !hasLen(kernel, g.KH, g.KW)) || !hasLen(output, oh, ow) {
		return 0, shapeErr("%s: %+v with len(input)=%d len(kernel)=%d len(output)=%d",
			op, g, len(input), len(kernel), len(output))
	}
	return ow, nil
}

// Conv2D computes the valid-mode convolution of a single-channel image.
// A window larger than the input returns conv.ErrWindowTooLarge.
func (e *Engine[T]) Conv2D(g conv.Geometry, input, kernel, output []T, s ...Strategy) error {
	if kernel == nil {
		kernel = []T{}
	}
	ow, err := checkGeometry(OpConv2D, g, input, kernel, output)
	if err != nil {
		return err
	}
	size := len(input)
	p, err := e.plan(OpConv2D, size, s)
	if err != nil {
		return err
	}
	start := e.opt.now()
	run := func(g conv.Geometry, in, out []T) { p.k.conv(g, in, kernel, out) }
	if p.pool != nil {
		err = poolErr(conv.ParallelRows(p.pool, g, input, output, run))
	} else {
		run(g, input, output)
	}
	return e.record(err, OpConv2D, size, p, start, ow, size+len(kernel)+len(output))
}

func (e *Engine[T]) pool2D(op Op, g conv.Geometry, input, output []T, fn func(k *kernels[T]) conv.Kernel[T], s []Strategy) error {
	ow, err := checkGeometry[T](op, g, input, nil, output)
	if err != nil {
		return err
	}
	size := len(input)
	p, err := e.plan(op, size, s)
	if err != nil {
		return err
	}
	start := e.opt.now()
	kernel := fn(p.k)
	if p.pool != nil {
		err = poolErr(conv.ParallelRows(p.pool, g, input, output, kernel))
	} else {
		kernel(g, input, output)
	}
	return e.record(err, op, size, p, start, ow, size+len(output))
}

// MaxPool2D writes the maximum of every window.
func (e *Engine[T]) MaxPool2D(g conv.Geometry, input, output []T, s ...Strategy) error {
	return e.pool2D(OpMaxPool2D, g, input, output, func(k *kernels[T]) conv.Kernel[T] { return k.maxPool }, s)
}

// AvgPool2D writes the mean of every window.
func (e *Engine[T]) AvgPool2D(g conv.Geometry, input, output []T, s ...Strategy) error {
	return e.pool2D(OpAvgPool2D, g, input, output, func(k *kernels[T]) conv.Kernel[T] { return k.avgPool }, s)
}

func (e *Engine[T]) reduction(op Op, v []T, fn func(k *kernels[T]) reduceFn[T], combine func(a, b T) T, s []Strategy) (T, error) {
	n := len(v)
	if n == 0 && op != OpSum {
		return 0, fmt.Errorf("%s: %w", op, ErrEmptyInput)
	}
	p, err := e.plan(op, n, s)
	if err != nil {
		return 0, err
	}
	start := e.opt.now()
	r, err := p.reduce(v, fn(p.k), combine)
	return r, e.record(err, op, n, p, start, n, n)
}

// Sum returns the sum of v; 0 for an empty slice.
func (e *Engine[T]) Sum(v []T, s ...Strategy) (T, error) {
	return e.reduction(OpSum, v, func(k *kernels[T]) reduceFn[T] { return k.sum },
		func(a, b T) T { return a + b }, s)
}

// Max returns the largest element. An empty slice returns ErrEmptyInput.
func (e *Engine[T]) Max(v []T, s ...Strategy) (T, error) {
	return e.reduction(OpMax, v, func(k *kernels[T]) reduceFn[T] { return k.max },
		func(a, b T) T { return max(a, b) }, s)
}

// Min returns the smallest element. An empty slice returns ErrEmptyInput.
func (e *Engine[T]) Min(v []T, s ...Strategy) (T, error) {
	return e.reduction(OpMin, v, func(k *kernels[T]) reduceFn[T] { return k.min },
		func(a, b T) T { return min(a, b) }, s)
}

// Normalize writes src scaled to unit L2 norm into dst. A zero vector is
// written as zeros. dst and src may alias.
func (e *Engine[T]) Normalize(dst, src []T, s ...Strategy) error {
	n := len(dst)
	if len(src) != n {
		return shapeErr("normalize: len(dst)=%d len(src)=%d", n, len(src))
	}
	p, err := e.plan(OpNormalize, n, s)
	if err != nil {
		return err
	}
	start := e.opt.now()
	return e.record(e.normalize(p, dst, src), OpNormalize, n, p, start, n, 2*n)
}

func (e *Engine[T]) normalize(p plan[T], dst, src []T) error {
	if p.pool == nil {
		p.k.normalize(src, dst)
		return nil
	}
	squares := func(part []T) T { return p.k.dot(part, part) }
	sq, err := p.reduce(src, squares, func(a, b T) T { return a + b })
	if err != nil {
		return err
	}
	if sq == 0 {
		clear(dst)
		return nil
	}
	inv := 1 / hwy.Sqrt(sq)
	return p.elementwise(len(dst), func(lo, hi int) { p.k.scale(dst[lo:hi], src[lo:hi], inv) })
}

// LayerNorm normalizes each group of normSize elements to zero mean and
// unit variance, then scales by gamma and shifts by beta when given (each
// optional and of length normSize).
func (e *Engine[T]) LayerNorm(input, output []T, normSize int, gamma, beta []T, epsilon T, s ...Strategy) error {
	n := len(output)
	switch {
	case normSize <= 0 || len(input) != n || n%normSize != 0:
		return shapeErr("layernorm: normSize=%d len(input)=%d len(output)=%d", normSize, len(input), n)
	case gamma != nil && len(gamma) != normSize, beta != nil && len(beta) != normSize:
		return shapeErr("layernorm: normSize=%d len(gamma)=%d len(beta)=%d", normSize, len(gamma), len(beta))
	}
	p, err := e.plan(OpLayerNorm, n, s)
	if err != nil {
		return err
	}
	start := e.opt.now()
	err = poolErr(nn.ParallelLayerNorm(p.pool, input, output, normSize, gamma, beta, epsilon, p.k.layerNorm))
	return e.record(err, OpLayerNorm, n, p, start, normSize, 2*n)
}

// Softmax writes the numerically stable softmax of input into output.
func (e *Engine[T]) Softmax(input, output []T, s ...Strategy) error {
	if len(input) != len(output) {
		return shapeErr("softmax: len(input)=%d len(output)=%d", len(input), len(output))
	}
	if len(input) == 0 {
		return nil
	}
	return e.SoftmaxRows(input, output, 1, len(input), s...)
}

// SoftmaxRows applies Softmax to each row of a row-major rows x cols
// matrix. Parallel strategies distribute rows across the pool.
func (e *Engine[T]) SoftmaxRows(input, output []T, rows, cols int, s ...Strategy) error {
	if !hasLen(input, rows, cols) || !hasLen(output, rows, cols) {
		return shapeErr("softmax: %dx%d with len(input)=%d len(output)=%d", rows, cols, len(input), len(output))
	}
	n := len(input)
	p, err := e.plan(OpSoftmax, n, s)
	if err != nil {
		return err
	}
	start := e.opt.now()
	err = poolErr(nn.ParallelRows(p.pool, input, output, rows, cols, p.k.softmax))
	return e.record(err, OpSoftmax, n, p, start, cols, 2*n)
}

// AttentionWeights computes softmax(query . keys^T / sqrt(dim)) per query
// row. query is qLen x dim, keys is seqLen x dim and weights qLen x seqLen.
func (e *Engine[T]) AttentionWeights(query, keys, weights []T, qLen, seqLen, dim int, s ...Strategy) error {
	if !hasLen(query, qLen, dim) || !hasLen(keys, seqLen, dim) || !hasLen(weights, qLen, seqLen) {
		return shapeErr("attention: qLen=%d seqLen=%d dim=%d with len(query)=%d len(keys)=%d len(weights)=%d",
			qLen, seqLen, dim, len(query), len(keys), len(weights))
	}
	size, ok := mulDims(qLen, seqLen, dim)
	if !ok {
		size = math.MaxInt
	}
	p, err := e.plan(OpAttention, size, s)
	if err != nil {
		return err
	}
	start := e.opt.now()
	err = poolErr(nn.ParallelAttentionWeights(p.pool, query, keys, weights, qLen, seqLen, dim, p.k.attention))
	return e.record(err, OpAttention, size, p, start, dim, len(query)+len(keys)+len(weights))
}
