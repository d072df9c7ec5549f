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
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-highway/hyperopt/hwy"
	"github.com/go-highway/hyperopt/hwy/contrib/activation"
	"github.com/go-highway/hyperopt/hwy/contrib/conv"
	"github.com/go-highway/hyperopt/hwy/contrib/matmul"
	"github.com/go-highway/hyperopt/hwy/contrib/matvec"
	"github.com/go-highway/hyperopt/hwy/contrib/nn"
	"github.com/go-highway/hyperopt/hwy/contrib/vec"
)

// wideCaps claims every tier; the portable vector types run anywhere.
func wideCaps() hwy.HardwareCapabilities {
	c := hwy.ScalarCapabilities()
	c.SSE41, c.AVX2, c.AVX512, c.FMA = true, true, true, true
	return c
}

var capsCases = []struct {
	name string
	caps hwy.HardwareCapabilities
}{
	{"scalar", hwy.ScalarCapabilities()},
	{"wide", wideCaps()},
	{"detected", hwy.DetectOnce()},
}

func newTestOptimizer(t testing.TB, workers int, opts ...Option) *Optimizer {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Workers = workers
	return newTestOptimizerConfig(t, cfg, opts...)
}

func newTestOptimizerConfig(t testing.TB, cfg Config, opts ...Option) *Optimizer {
	t.Helper()
	opt, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(opt.Close)
	return opt
}

func randSlice(rng *rand.Rand, n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = rng.Float32()*2 - 1
	}
	return s
}

func filled(n int, v float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = v
	}
	return s
}

type opCase struct {
	name string
	run  func(e *Engine[float32], s Strategy) ([]float32, error)
	want []float32
	tol  cmp.Option
}

var (
	tight = cmpopts.EquateApprox(1e-5, 1e-5)
	loose = cmpopts.EquateApprox(1e-3, 1e-4)
)

// engineCases pairs every operation with its scalar reference result.
func engineCases() []opCase {
	rng := rand.New(rand.NewPCG(11, 11))
	const n = 1037
	a, b, c := randSlice(rng, n), randSlice(rng, n), randSlice(rng, n)
	ref := func(fn func(out []float32)) []float32 {
		out := make([]float32, n)
		fn(out)
		return out
	}

	cases := []opCase{
		{
			name: "add",
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				out := make([]float32, n)
				return out, e.Add(out, a, b, s)
			},
			want: ref(func(out []float32) { vec.ScalarAdd(out, a, b) }),
			tol:  tight,
		},
		{
			name: "mul",
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				out := make([]float32, n)
				return out, e.Mul(out, a, b, s)
			},
			want: ref(func(out []float32) { vec.ScalarMul(out, a, b) }),
			tol:  tight,
		},
		{
			name: "fma",
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				out := make([]float32, n)
				return out, e.FMA(out, a, b, c, s)
			},
			want: ref(func(out []float32) { vec.ScalarFMA(out, a, b, c) }),
			tol:  tight,
		},
	}

	activations := map[Op]func(in, out []float32){
		OpSigmoid: activation.ScalarSigmoid[float32],
		OpTanh:    activation.ScalarTanh[float32],
		OpReLU:    activation.ScalarReLU[float32],
		OpGELU:    activation.ScalarGELU[float32],
		OpSwish:   activation.ScalarSwish[float32],
		OpMish:    activation.ScalarMish[float32],
	}
	x := make([]float32, n)
	for i := range x {
		x[i] = a[i] * 6
	}
	for op, scalar := range activations {
		cases = append(cases, opCase{
			name: string(op),
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				out := make([]float32, n)
				return out, e.Activation(op, x, out, s)
			},
			want: ref(func(out []float32) { scalar(x, out) }),
			tol:  loose,
		})
	}

	const rows, cols = 37, 29
	m, v := randSlice(rng, rows*cols), randSlice(rng, cols)
	mvWant := make([]float32, rows)
	matvec.ScalarMatVec(m, rows, cols, v, mvWant)
	cases = append(cases, opCase{
		name: "matvec",
		run: func(e *Engine[float32], s Strategy) ([]float32, error) {
			out := make([]float32, rows)
			return out, e.MatVec(m, rows, cols, v, out, s)
		},
		want: mvWant,
		tol:  loose,
	})

	const mRows, nCols, kDepth = 23, 35, 19
	ma, mb := randSlice(rng, mRows*kDepth), randSlice(rng, kDepth*nCols)
	mmWant := make([]float32, mRows*nCols)
	matmul.ScalarMatMul(ma, mb, mmWant, mRows, nCols, kDepth)
	cases = append(cases, opCase{
		name: "matmul",
		run: func(e *Engine[float32], s Strategy) ([]float32, error) {
			out := make([]float32, mRows*nCols)
			return out, e.MatMul(ma, mb, out, mRows, nCols, kDepth, s)
		},
		want: mmWant,
		tol:  loose,
	})

	for _, g := range []conv.Geometry{
		{InH: 20, InW: 17, KH: 3, KW: 3, StrideH: 1, StrideW: 1},
		{InH: 21, InW: 19, KH: 4, KW: 2, StrideH: 2, StrideW: 3},
	} {
		img, kernel := randSlice(rng, g.InH*g.InW), randSlice(rng, g.KH*g.KW)
		label := fmt.Sprintf("%dx%d/%dx%d/s%d", g.InH, g.InW, g.KH, g.KW, g.StrideW)
		want := make([]float32, g.OutLen())
		conv.ScalarConv2D(g, img, kernel, want)
		maxWant := make([]float32, g.OutLen())
		conv.ScalarMaxPool2D(g, img, maxWant)
		avgWant := make([]float32, g.OutLen())
		conv.ScalarAvgPool2D(g, img, avgWant)
		cases = append(cases,
			opCase{
				name: "conv2d/" + label,
				run: func(e *Engine[float32], s Strategy) ([]float32, error) {
					out := make([]float32, g.OutLen())
					return out, e.Conv2D(g, img, kernel, out, s)
				},
				want: want,
				tol:  loose,
			},
			opCase{
				name: "maxpool2d/" + label,
				run: func(e *Engine[float32], s Strategy) ([]float32, error) {
					out := make([]float32, g.OutLen())
					return out, e.MaxPool2D(g, img, out, s)
				},
				want: maxWant,
			},
			opCase{
				name: "avgpool2d/" + label,
				run: func(e *Engine[float32], s Strategy) ([]float32, error) {
					out := make([]float32, g.OutLen())
					return out, e.AvgPool2D(g, img, out, s)
				},
				want: avgWant,
				tol:  tight,
			},
		)
	}

	scalarReduce := map[string]func([]float32) float32{
		"sum": vec.ScalarSum[float32],
		"max": vec.ScalarMax[float32],
		"min": vec.ScalarMin[float32],
	}
	for name, fn := range scalarReduce {
		tol := cmp.Option(nil)
		if name == "sum" {
			tol = cmpopts.EquateApprox(1e-4, 1e-3)
		}
		cases = append(cases, opCase{
			name: name,
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				var r float32
				var err error
				switch name {
				case "sum":
					r, err = e.Sum(a, s)
				case "max":
					r, err = e.Max(a, s)
				default:
					r, err = e.Min(a, s)
				}
				return []float32{r}, err
			},
			want: []float32{fn(a)},
			tol:  tol,
		})
	}

	cases = append(cases, opCase{
		name: "normalize",
		run: func(e *Engine[float32], s Strategy) ([]float32, error) {
			out := make([]float32, n)
			return out, e.Normalize(out, a, s)
		},
		want: ref(func(out []float32) { vec.ScalarNormalize(out, a) }),
		tol:  loose,
	})

	const normSize = 33
	ln := randSlice(rng, 7*normSize)
	gamma, beta := randSlice(rng, normSize), randSlice(rng, normSize)
	lnWant := make([]float32, len(ln))
	nn.ScalarLayerNorm(ln, lnWant, normSize, gamma, beta, 1e-5)
	cases = append(cases, opCase{
		name: "layernorm",
		run: func(e *Engine[float32], s Strategy) ([]float32, error) {
			out := make([]float32, len(ln))
			return out, e.LayerNorm(ln, out, normSize, gamma, beta, 1e-5, s)
		},
		want: lnWant,
		tol:  loose,
	})

	smWant := make([]float32, len(ln))
	for r := range 7 {
		nn.ScalarSoftmax(ln[r*normSize:(r+1)*normSize], smWant[r*normSize:(r+1)*normSize])
	}
	cases = append(cases,
		opCase{
			name: "softmax",
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				out := make([]float32, n)
				return out, e.Softmax(a, out, s)
			},
			want: ref(func(out []float32) { nn.ScalarSoftmax(a, out) }),
			tol:  loose,
		},
		opCase{
			name: "softmax_rows",
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				out := make([]float32, len(ln))
				return out, e.SoftmaxRows(ln, out, 7, normSize, s)
			},
			want: smWant,
			tol:  loose,
		},
	)

	const qLen, seqLen, dim = 9, 13, 16
	q, keys := randSlice(rng, qLen*dim), randSlice(rng, seqLen*dim)
	attWant := make([]float32, qLen*seqLen)
	nn.ScalarAttentionWeights(q, keys, attWant, qLen, seqLen, dim)
	cases = append(cases, opCase{
		name: "attention",
		run: func(e *Engine[float32], s Strategy) ([]float32, error) {
			out := make([]float32, qLen*seqLen)
			return out, e.AttentionWeights(q, keys, out, qLen, seqLen, dim, s)
		},
		want: attWant,
		tol:  loose,
	})
	return cases
}

// TestEngineMatchesScalar runs every operation under every strategy on
// simulated and detected hardware and compares it with the scalar loop.
func TestEngineMatchesScalar(t *testing.T) {
	cases := engineCases()
	for _, cc := range capsCases {
		opt := newTestOptimizer(t, 4, WithCapabilities(cc.caps))
		e := opt.Float32()
		for _, s := range Strategies() {
			for _, tc := range cases {
				t.Run(fmt.Sprintf("%s/%s/%s", cc.name, s, tc.name), func(t *testing.T) {
					got, err := tc.run(e, s)
					require.NoError(t, err)
					if diff := cmp.Diff(tc.want, got, tc.tol); diff != "" {
						t.Errorf("mismatch (-want +got):\n%s", diff)
					}
				})
			}
		}
	}
}

// edgeCases covers empty and single-element inputs of every operation.
func edgeCases(n int) []opCase {
	a, b, c := filled(n, 0.5), filled(n, -2), filled(n, 3)
	ref := func(fn func(out []float32)) []float32 {
		out := make([]float32, n)
		fn(out)
		return out
	}
	cases := []opCase{
		{name: "add", want: ref(func(out []float32) { vec.ScalarAdd(out, a, b) }),
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				out := make([]float32, n)
				return out, e.Add(out, a, b, s)
			}},
		{name: "mul", want: ref(func(out []float32) { vec.ScalarMul(out, a, b) }),
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				out := make([]float32, n)
				return out, e.Mul(out, a, b, s)
			}},
		{name: "fma", want: ref(func(out []float32) { vec.ScalarFMA(out, a, b, c) }),
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				out := make([]float32, n)
				return out, e.FMA(out, a, b, c, s)
			}},
		{name: "gelu", tol: loose, want: ref(func(out []float32) { activation.ScalarGELU(b, out) }),
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				out := make([]float32, n)
				return out, e.GELU(b, out, s)
			}},
		{name: "matvec/cols", want: make([]float32, 2),
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				out := filled(2, 9)
				return out, e.MatVec(nil, 2, 0, nil, out, s)
			}},
		{name: "matvec/rows", want: ref(func(out []float32) { matvec.ScalarMatVec(a, n, 1, []float32{-2}, out) }),
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				out := make([]float32, n)
				return out, e.MatVec(a, n, 1, []float32{-2}, out, s)
			}},
		{name: "matmul/k", want: make([]float32, 4),
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				out := filled(4, 9)
				return out, e.MatMul(nil, nil, out, 2, 2, 0, s)
			}},
		{name: "matmul/m", want: ref(func(out []float32) { matmul.ScalarMatMul(a, []float32{-2}, out, n, 1, 1) }),
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				out := make([]float32, n)
				return out, e.MatMul(a, []float32{-2}, out, n, 1, 1, s)
			}},
		{name: "normalize", tol: tight, want: ref(func(out []float32) { vec.ScalarNormalize(out, b) }),
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				out := make([]float32, n)
				return out, e.Normalize(out, b, s)
			}},
		{name: "softmax", tol: tight, want: ref(func(out []float32) { nn.ScalarSoftmax(b, out) }),
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				out := make([]float32, n)
				return out, e.Softmax(b, out, s)
			}},
		{name: "softmax_rows", tol: tight, want: ref(func(out []float32) { nn.ScalarSoftmax(b, out) }),
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				out := make([]float32, n)
				return out, e.SoftmaxRows(b, out, n, 1, s)
			}},
		{name: "attention/dim", tol: tight, want: filled(n, 1),
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				out := make([]float32, n)
				return out, e.AttentionWeights(nil, nil, out, n, 1, 0, s)
			}},
		{name: "sum", want: []float32{vec.ScalarSum(b)},
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				r, err := e.Sum(b, s)
				return []float32{r}, err
			}},
	}
	if n == 0 {
		return cases
	}
	return append(cases,
		opCase{name: "max", want: []float32{-2},
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				r, err := e.Max(b, s)
				return []float32{r}, err
			}},
		opCase{name: "min", want: []float32{0.5},
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				r, err := e.Min(a, s)
				return []float32{r}, err
			}},
		opCase{name: "conv2d", want: []float32{-1},
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				out := make([]float32, 1)
				return out, e.Conv2D(conv.Square(1, 1, 1), a, b, out, s)
			}},
		opCase{name: "maxpool2d", want: []float32{0.5},
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				out := make([]float32, 1)
				return out, e.MaxPool2D(conv.Square(1, 1, 1), a, out, s)
			}},
		opCase{name: "layernorm", want: []float32{3},
			run: func(e *Engine[float32], s Strategy) ([]float32, error) {
				out := make([]float32, 1)
				return out, e.LayerNorm(a, out, 1, b, c, 1e-5, s)
			}},
	)
}

// TestEngineEdgeSizes runs empty and single-element inputs on every tier,
// with and without vek, under every strategy.
func TestEngineEdgeSizes(t *testing.T) {
	edgeCaps := append(capsCases, struct {
		name string
		caps hwy.HardwareCapabilities
	}{"wide+vek", wideCaps()})
	for _, cc := range edgeCaps {
		opt := newTestOptimizer(t, 4, WithCapabilities(cc.caps), WithAcceleration(true))
		e := opt.Float32()
		for _, n := range []int{0, 1} {
			for _, tc := range edgeCases(n) {
				for _, s := range Strategies() {
					t.Run(fmt.Sprintf("%s/n=%d/%s/%s", cc.name, n, tc.name, s), func(t *testing.T) {
						got, err := tc.run(e, s)
						require.NoError(t, err)
						if diff := cmp.Diff(tc.want, got, tc.tol); diff != "" {
							t.Errorf("mismatch (-want +got):\n%s", diff)
						}
					})
				}
			}
		}
	}
}

func TestEngineScenarios(t *testing.T) {
	opt := newTestOptimizer(t, 2)
	e := opt.Float32()

	t.Run("add", func(t *testing.T) {
		a := []float32{1, 2, 3, 4, 5, 6, 7, 8}
		b := []float32{8, 7, 6, 5, 4, 3, 2, 1}
		for _, s := range Strategies() {
			out := make([]float32, 8)
			require.NoError(t, e.Add(out, a, b, s))
			assert.Equal(t, filled(8, 9), out, "strategy %s", s)
		}
	})

	t.Run("identity matvec", func(t *testing.T) {
		const n = 5
		id := make([]float64, n*n)
		for i := range n {
			id[i*n+i] = 1
		}
		v := []float64{3, -1, 4, 1, -5}
		for _, s := range Strategies() {
			out := make([]float64, n)
			require.NoError(t, opt.Float64().MatVec(id, n, n, v, out, s))
			assert.Equal(t, v, out, "strategy %s", s)
		}
	})

	t.Run("conv ones", func(t *testing.T) {
		g := conv.Square(4, 2, 1)
		for _, s := range Strategies() {
			out := make([]float32, g.OutLen())
			require.NoError(t, e.Conv2D(g, filled(16, 1), filled(4, 1), out, s))
			assert.Equal(t, filled(9, 4), out, "strategy %s", s)
		}
	})

	t.Run("float64 matmul", func(t *testing.T) {
		a := []float64{1, 2, 3, 4}
		b := []float64{5, 6, 7, 8}
		for _, s := range Strategies() {
			c := make([]float64, 4)
			require.NoError(t, opt.Float64().MatMul(a, b, c, 2, 2, 2, s))
			assert.Equal(t, []float64{19, 22, 43, 50}, c, "strategy %s", s)
		}
	})

	t.Run("normalize zero", func(t *testing.T) {
		for _, s := range Strategies() {
			out := filled(4, 7)
			require.NoError(t, e.Normalize(out, make([]float32, 4), s))
			assert.Equal(t, make([]float32, 4), out, "strategy %s", s)
		}
	})

	t.Run("layernorm beta only", func(t *testing.T) {
		in := []float32{1, 2, 3, 4}
		out := make([]float32, 4)
		require.NoError(t, e.LayerNorm(in, out, 4, nil, filled(4, 10), 0))
		want := make([]float32, 4)
		nn.ScalarLayerNorm(in, want, 4, filled(4, 1), filled(4, 10), 0)
		if diff := cmp.Diff(want, out, tight); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestEngineErrors(t *testing.T) {
	opt := newTestOptimizer(t, 2)
	e := opt.Float32()
	three, four := make([]float32, 3), make([]float32, 4)

	t.Run("shape", func(t *testing.T) {
		for name, err := range map[string]error{
			"add":       e.Add(three, four, four),
			"fma":       e.FMA(four, four, four, three),
			"relu":      e.ReLU(three, four),
			"matvec":    e.MatVec(four, 2, 2, three, make([]float32, 2)),
			"matmul":    e.MatMul(four, four, three, 2, 2, 2),
			"conv2d":    e.Conv2D(conv.Square(4, 2, 1), make([]float32, 16), three, make([]float32, 9)),
			"conv nil":  e.Conv2D(conv.Square(4, 2, 1), make([]float32, 16), nil, make([]float32, 9)),
			"maxpool":   e.MaxPool2D(conv.Square(4, 2, 2), make([]float32, 16), three),
			"normalize": e.Normalize(three, four),
			"layernorm": e.LayerNorm(make([]float32, 6), make([]float32, 6), 4, nil, nil, 1e-5),
			"gamma":     e.LayerNorm(four, four, 4, three, nil, 1e-5),
			"softmax":   e.Softmax(three, four),
			"rows":      e.SoftmaxRows(four, four, 3, 2),
			"attention": e.AttentionWeights(four, four, three, 1, 2, 4),
		} {
			assert.ErrorIs(t, err, ErrShapeMismatch, name)
		}
	})

	t.Run("overflow", func(t *testing.T) {
		const huge = math.MaxInt/2 + 1
		one := []float32{1}
		for name, err := range map[string]error{
			"matmul":    e.MatMul(nil, nil, nil, huge, 0, huge),
			"matmul k":  e.MatMul(nil, nil, nil, 0, huge, huge),
			"matvec":    e.MatVec(nil, huge, 2, make([]float32, 2), nil),
			"conv2d":    e.Conv2D(conv.Geometry{InH: huge, InW: huge, KH: 1, KW: 1, StrideH: 1, StrideW: 1}, nil, one, nil),
			"maxpool":   e.MaxPool2D(conv.Geometry{InH: huge, InW: 4, KH: 1, KW: 1, StrideH: 1, StrideW: 1}, nil, nil),
			"rows":      e.SoftmaxRows(nil, nil, huge, 2),
			"attention": e.AttentionWeights(nil, nil, nil, huge, huge, 0),
			"negative":  e.MatMul(nil, nil, nil, -1, -1, 0),
		} {
			assert.ErrorIs(t, err, ErrShapeMismatch, name)
		}
	})

	t.Run("window too large", func(t *testing.T) {
		g := conv.Geometry{InH: 2, InW: 2, KH: 3, KW: 3, StrideH: 1, StrideW: 1}
		err := e.Conv2D(g, four, make([]float32, 9), nil)
		assert.ErrorIs(t, err, conv.ErrWindowTooLarge)
		err = e.AvgPool2D(conv.Geometry{InH: 4, InW: 4, KH: 2, KW: 2}, make([]float32, 16), four)
		assert.ErrorIs(t, err, conv.ErrInvalidStride)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := e.Max(nil)
		assert.ErrorIs(t, err, ErrEmptyInput)
		_, err = e.Min([]float32{})
		assert.ErrorIs(t, err, ErrEmptyInput)
		sum, err := e.Sum(nil, Parallel)
		require.NoError(t, err)
		assert.Zero(t, sum)
		assert.NoError(t, e.Softmax(nil, nil))
		assert.NoError(t, e.Add(nil, nil, nil, Hybrid))
	})

	t.Run("unknown", func(t *testing.T) {
		assert.ErrorIs(t, e.Add(four, four, four, Strategy(99)), ErrUnknownStrategy)
		assert.ErrorIs(t, e.Activation(OpMatMul, four, four), ErrUnknownOp)
	})
}

func TestEngineClosed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 2
	opt, err := New(cfg)
	require.NoError(t, err)
	opt.Close()
	opt.Close()

	e := opt.Float32()
	four := make([]float32, 4)
	for _, s := range Strategies() {
		assert.ErrorIs(t, e.Add(four, four, four, s), ErrClosed)
		_, err := e.Sum(four, s)
		assert.ErrorIs(t, err, ErrClosed)
		assert.ErrorIs(t, e.MatMul(four, four, four, 2, 2, 2, s), ErrClosed)
	}
}

// TestParallelMatMulDeterministic checks that splitting rows across the
// pool does not change a single bit of the result.
func TestParallelMatMulDeterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(21, 21))
	const m, n, k = 97, 64, 45
	a, b := randSlice(rng, m*k), randSlice(rng, k*n)

	for _, workers := range []int{1, 2, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			opt := newTestOptimizer(t, workers)
			e := opt.Float32()

			blocked := make([]float32, m*n)
			require.NoError(t, e.MatMul(a, b, blocked, m, n, k, CacheOptimized))
			hybrid := make([]float32, m*n)
			require.NoError(t, e.MatMul(a, b, hybrid, m, n, k, Hybrid))
			assert.Equal(t, blocked, hybrid)

			streaming := make([]float32, m*n)
			require.NoError(t, e.MatMul(a, b, streaming, m, n, k, Vectorized))
			parallel := make([]float32, m*n)
			require.NoError(t, e.MatMul(a, b, parallel, m, n, k, Parallel))
			assert.Equal(t, streaming, parallel)
		})
	}
}

func TestEngineConcurrentCallers(t *testing.T) {
	opt := newTestOptimizer(t, 4)
	e := opt.Float64()
	const n = 4096
	a, b := make([]float64, n), make([]float64, n)
	for i := range n {
		a[i], b[i] = float64(i), 1
	}

	var wg sync.WaitGroup
	errs := make([]error, 16)
	sums := make([]float64, 16)
	for g := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := make([]float64, n)
			if errs[g] = e.Add(out, a, b, Parallel); errs[g] != nil {
				return
			}
			sums[g], errs[g] = e.Sum(out, MemoryBound)
		}()
	}
	wg.Wait()

	want := float64(n*(n-1)/2 + n)
	for g := range 16 {
		require.NoError(t, errs[g])
		assert.Equal(t, want, sums[g])
	}
}

func TestEngineProfiling(t *testing.T) {
	clock := newFakeClock(time.Millisecond)
	opt := newTestOptimizer(t, 4, WithClock(clock.Now), WithCapabilities(wideCaps()), WithAcceleration(false))
	e := opt.Float32()

	a := make([]float32, 128)
	for range 3 {
		require.NoError(t, e.Add(a, a, a))
	}
	prof, ok := opt.Profile("add")
	require.True(t, ok)
	assert.EqualValues(t, 3, prof.Samples)
	assert.Equal(t, time.Millisecond, prof.Mean)
	assert.Equal(t, Vectorized, prof.LastStrategy, "128 elements is below the small threshold")
	assert.Equal(t, hwy.DispatchAVX512, prof.LastTier)
	assert.InDelta(t, 1, prof.VectorizationRatio, 1e-9, "128 is a multiple of the lane count")

	require.NoError(t, e.Add(make([]float32, 200000), make([]float32, 200000), make([]float32, 200000)))
	prof, _ = opt.Profile("add")
	assert.Equal(t, Parallel, prof.LastStrategy)

	opt.Reprofile()
	_, ok = opt.Profile("add")
	assert.False(t, ok)
}

func TestEngineProfilingDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profiling = false
	cfg.AutoTune = false
	opt, err := New(cfg)
	require.NoError(t, err)
	defer opt.Close()

	require.NoError(t, opt.Float32().Add(make([]float32, 8), make([]float32, 8), make([]float32, 8)))
	assert.Empty(t, opt.Profiler().Operations())
}

func TestVectorRatio(t *testing.T) {
	assert.InDelta(t, 0.8, vectorRatio[float32](hwy.DispatchAVX2, 20), 1e-12)
	assert.InDelta(t, 0.8, vectorRatio[float64](hwy.DispatchAVX2, 20), 1e-12)
	assert.InDelta(t, 0.5, vectorRatio[float64](hwy.DispatchAVX512, 12), 1e-12)
	assert.Zero(t, vectorRatio[float32](hwy.DispatchScalar, 20))
	assert.Zero(t, vectorRatio[float32](hwy.DispatchAVX2, 0))
}

func TestEngineFailedCallNotProfiled(t *testing.T) {
	opt := newTestOptimizer(t, 2)
	e := opt.Float32()
	four := make([]float32, 4)
	require.NoError(t, e.Add(four, four, four, Vectorized))

	// A pool closed under a live optimizer fails parallel calls.
	opt.pool.Close()
	assert.ErrorIs(t, e.Add(four, four, four, Parallel), ErrClosed)
	_, err := e.Sum(four, Parallel)
	assert.ErrorIs(t, err, ErrClosed)

	prof, ok := opt.Profile("add")
	require.True(t, ok)
	assert.EqualValues(t, 1, prof.Samples)
	assert.Equal(t, Vectorized, prof.LastStrategy)
	_, ok = opt.Profile("sum")
	assert.False(t, ok)
}

func TestEngineAutoTuneFromProfiles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.MinSamples = 1
	clock := newFakeClock(time.Millisecond)
	opt := newTestOptimizerConfig(t, cfg, WithClock(clock.Now))
	e := opt.Float32()
	a := make([]float32, 128)

	// Cold start, then one sample of every other candidate.
	var seen []Strategy
	for range len(tuneCandidates) {
		require.NoError(t, e.Add(a, a, a))
		prof, _ := opt.Profile("add")
		seen = append(seen, prof.LastStrategy)
	}
	assert.Equal(t, Vectorized, seen[0])
	assert.ElementsMatch(t, tuneCandidates, seen)

	// Every candidate measured the same, so the heuristic choice stays.
	require.NoError(t, e.Add(a, a, a))
	prof, _ := opt.Profile("add")
	assert.Equal(t, Vectorized, prof.LastStrategy)

	opt.Reprofile()
	assert.Empty(t, opt.Profiler().StrategyStats("add", 128))
}

func TestEngineProfilesVekTier(t *testing.T) {
	opt := newTestOptimizer(t, 1, WithCapabilities(wideCaps()), WithAcceleration(true))
	e := opt.Float32()
	a := make([]float32, 64)
	require.NoError(t, e.Add(a, a, a, Vectorized))
	require.NoError(t, e.Softmax(a, a, Vectorized))

	prof, _ := opt.Profile("add")
	assert.Equal(t, hwy.DispatchAVX2, prof.LastTier)
	prof, _ = opt.Profile("softmax")
	assert.Equal(t, hwy.DispatchAVX512, prof.LastTier)
}
