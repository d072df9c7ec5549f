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
	"fmt"
	"math/rand/v2"
	"time"
	"unsafe"

	"github.com/go-highway/hyperopt/hwy/contrib/align"
	"github.com/go-highway/hyperopt/hwy/contrib/conv"
	"github.com/go-highway/hyperopt/hwy/contrib/matmul"
	"github.com/go-highway/hyperopt/hwy/contrib/vec"
)

// BenchmarkResult is one measured operation, compared against the scalar
// reference loop on the same data.
type BenchmarkResult struct {
	Operation  string
	Size       string // shape, e.g. "4096" or "256x256x256"
	Iterations int

	Elapsed       time.Duration // per iteration, chosen implementation
	ScalarElapsed time.Duration // per iteration, scalar reference
	Speedup       float64

	Throughput   float64 // elements per second
	GFLOPS       float64
	BandwidthGBs float64

	// CacheEfficiency is the estimated share of the working set that
	// stays in L2.
	CacheEfficiency float64

	Strategy       Strategy
	Tier           string
	Implementation string
}

// ConvCase is one convolution benchmark shape: an H x W input and a K x K
// kernel.
type ConvCase struct {
	H, W, K int
}

// Suite lists the benchmarks RunBenchmarks performs.
type Suite struct {
	VectorSizes []int
	MatrixSizes []int
	ConvCases   []ConvCase
	Iterations  int
	Strategy    Strategy
}

// DefaultSuite covers sizes on both sides of the selector thresholds.
func DefaultSuite() Suite {
	return Suite{
		VectorSizes: []int{1 << 10, 1 << 14, 1 << 18, 1 << 20},
		MatrixSizes: []int{64, 128, 256},
		ConvCases:   []ConvCase{{H: 64, W: 64, K: 3}, {H: 256, W: 256, K: 5}},
		Iterations:  10,
		Strategy:    Adaptive,
	}
}

// RunBenchmarks runs every benchmark of the suite with float32 data.
func (o *Optimizer) RunBenchmarks(suite Suite) ([]BenchmarkResult, error) {
	var results []BenchmarkResult
	for _, n := range suite.VectorSizes {
		r, err := o.BenchmarkVectorAdd(n, suite.Iterations, suite.Strategy)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	for _, n := range suite.MatrixSizes {
		r, err := o.BenchmarkMatMul(n, suite.Iterations, suite.Strategy)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	for _, c := range suite.ConvCases {
		r, err := o.BenchmarkConv2D(c.H, c.W, c.K, suite.Iterations, suite.Strategy)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}

// BenchmarkVectorAdd times Add over vectors of size elements.
func (o *Optimizer) BenchmarkVectorAdd(size, iterations int, s ...Strategy) (BenchmarkResult, error) {
	if size <= 0 || iterations <= 0 {
		return BenchmarkResult{}, shapeErr("benchmark add: size=%d iterations=%d", size, iterations)
	}
	var result BenchmarkResult
	err := o.withFloats(3*size, func(buf []float32) error {
		a, b, dst := buf[:size], buf[size:2*size], buf[2*size:]
		fillRandom(a, 1)
		fillRandom(b, 2)
		strategy := o.resolve(OpAdd, size, s)
		e := o.f32

		elapsed, err := o.timeIt(iterations, func() error { return e.Add(dst, a, b, strategy) })
		if err != nil {
			return err
		}
		scalar, _ := o.timeIt(iterations, func() error { vec.ScalarAdd(dst, a, b); return nil })

		result = o.result(OpAdd, fmt.Sprint(size), iterations, strategy, elapsed, scalar)
		perIter := float64(size)
		result.Throughput = perSecond(perIter, result.Elapsed)
		result.GFLOPS = perSecond(perIter, result.Elapsed) / 1e9
		result.BandwidthGBs = perSecond(perIter*3*4, result.Elapsed) / 1e9
		result.CacheEfficiency = 1 - e.missRate(3*size)
		return nil
	})
	return result, err
}

// BenchmarkMatMul times an n x n x n MatMul.
func (o *Optimizer) BenchmarkMatMul(n, iterations int, s ...Strategy) (BenchmarkResult, error) {
	if n <= 0 || iterations <= 0 {
		return BenchmarkResult{}, shapeErr("benchmark matmul: n=%d iterations=%d", n, iterations)
	}
	var result BenchmarkResult
	nn := n * n
	err := o.withFloats(3*nn, func(buf []float32) error {
		a, b, c := buf[:nn], buf[nn:2*nn], buf[2*nn:]
		fillRandom(a, 3)
		fillRandom(b, 4)
		strategy := o.resolve(OpMatMul, 3*nn, s)
		e := o.f32

		elapsed, err := o.timeIt(iterations, func() error { return e.MatMul(a, b, c, n, n, n, strategy) })
		if err != nil {
			return err
		}
		scalar, _ := o.timeIt(iterations, func() error { matmul.ScalarMatMul(a, b, c, n, n, n); return nil })

		result = o.result(OpMatMul, fmt.Sprintf("%dx%dx%d", n, n, n), iterations, strategy, elapsed, scalar)
		flops := 2 * float64(nn) * float64(n)
		result.Throughput = perSecond(float64(nn), result.Elapsed)
		result.GFLOPS = perSecond(flops, result.Elapsed) / 1e9
		result.BandwidthGBs = perSecond(float64(3*nn*4), result.Elapsed) / 1e9
		result.CacheEfficiency = 1 - e.missRate(3*nn)
		return nil
	})
	return result, err
}

// BenchmarkConv2D times a valid-mode convolution of an h x w input with a
// k x k kernel at stride 1.
func (o *Optimizer) BenchmarkConv2D(h, w, k, iterations int, s ...Strategy) (BenchmarkResult, error) {
	g := conv.Geometry{InH: h, InW: w, KH: k, KW: k, StrideH: 1, StrideW: 1}
	oh, ow, err := g.Validate()
	if err != nil {
		return BenchmarkResult{}, err
	}
	if iterations <= 0 {
		return BenchmarkResult{}, shapeErr("benchmark conv2d: iterations=%d", iterations)
	}
	in, kk, out := h*w, k*k, oh*ow
	var result BenchmarkResult
	err = o.withFloats(in+kk+out, func(buf []float32) error {
		input, kernel, output := buf[:in], buf[in:in+kk], buf[in+kk:]
		fillRandom(input, 5)
		fillRandom(kernel, 6)
		strategy := o.resolve(OpConv2D, in, s)
		e := o.f32

		elapsed, err := o.timeIt(iterations, func() error { return e.Conv2D(g, input, kernel, output, strategy) })
		if err != nil {
			return err
		}
		scalar, _ := o.timeIt(iterations, func() error { conv.ScalarConv2D(g, input, kernel, output); return nil })

		result = o.result(OpConv2D, fmt.Sprintf("%dx%d*%dx%d", h, w, k, k), iterations, strategy, elapsed, scalar)
		flops := 2 * float64(out) * float64(kk)
		result.Throughput = perSecond(float64(out), result.Elapsed)
		result.GFLOPS = perSecond(flops, result.Elapsed) / 1e9
		result.BandwidthGBs = perSecond(float64((in+kk+out)*4), result.Elapsed) / 1e9
		result.CacheEfficiency = 1 - e.missRate(in+kk+out)
		return nil
	})
	return result, err
}

// resolve fixes the strategy of a benchmark once, so every iteration
// measures the same path.
func (o *Optimizer) resolve(op Op, size int, s []Strategy) Strategy {
	strategy := o.DefaultStrategy()
	if len(s) > 0 {
		strategy = s[0]
	}
	if strategy == Adaptive {
		strategy = o.selector.Select(op, size)
	}
	return strategy
}

// withFloats runs fn on n aligned float32 elements.
func (o *Optimizer) withFloats(n int, fn func([]float32) error) error {
	var zero float32
	return align.With(n*int(unsafe.Sizeof(zero)), o.cfg.Alignment, func(b *align.Buffer) error {
		return fn(b.Float32s()[:n])
	})
}

// timeIt returns the mean duration of one call over iterations calls.
func (o *Optimizer) timeIt(iterations int, fn func() error) (time.Duration, error) {
	start := o.now()
	for range iterations {
		if err := fn(); err != nil {
			return 0, err
		}
	}
	return o.now().Sub(start) / time.Duration(iterations), nil
}

func (o *Optimizer) result(op Op, size string, iterations int, strategy Strategy, elapsed, scalar time.Duration) BenchmarkResult {
	impl, _ := o.Implementation(op, Float32, strategy)
	r := BenchmarkResult{
		Operation:      string(op),
		Size:           size,
		Iterations:     iterations,
		Elapsed:        elapsed,
		ScalarElapsed:  scalar,
		Strategy:       strategy,
		Tier:           o.f32.TierOf(op).String(),
		Implementation: impl,
	}
	if elapsed > 0 {
		r.Speedup = float64(scalar) / float64(elapsed)
	}
	o.log.Info("benchmark complete",
		"op", op, "size", size, "strategy", strategy,
		"elapsed", elapsed, "scalar", scalar, "speedup", r.Speedup)
	return r
}

func perSecond(amount float64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return amount / d.Seconds()
}

func fillRandom(s []float32, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, seed))
	for i := range s {
		s[i] = rng.Float32()*2 - 1
	}
}
