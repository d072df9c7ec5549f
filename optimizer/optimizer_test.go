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
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-highway/hyperopt/hwy"
	"github.com/go-highway/hyperopt/hwy/contrib/align"
)

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Alignment = 3
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewLogsDispatch(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opt := newTestOptimizer(t, 2, WithLogger(logger), WithCapabilities(hwy.ScalarCapabilities()))

	out := buf.String()
	assert.Contains(t, out, "optimizer ready")
	assert.Contains(t, out, "tier=scalar")
	assert.Equal(t, len(Ops), strings.Count(out, "msg=dispatch"))
	assert.Equal(t, 2, opt.Workers())
}

func TestMaxTierCapsDispatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTier = "avx2"
	opt, err := New(cfg, WithCapabilities(wideCaps()))
	require.NoError(t, err)
	defer opt.Close()

	assert.Equal(t, hwy.DispatchAVX2, opt.Tier())
	assert.Equal(t, hwy.DispatchAVX2, opt.Float32().Tier())
	assert.False(t, opt.Capabilities().AVX512)
	assert.True(t, opt.Capabilities().AVX2)
}

func TestImplementation(t *testing.T) {
	scalar := newTestOptimizer(t, 1, WithCapabilities(hwy.ScalarCapabilities()))
	got, err := scalar.Implementation(OpMatMul, Float32, Parallel)
	require.NoError(t, err)
	assert.Equal(t, "scalar/parallel", got)

	plain := newTestOptimizer(t, 1, WithCapabilities(wideCaps()), WithAcceleration(false))
	got, err = plain.Implementation(OpAdd, Float64, Hybrid)
	require.NoError(t, err)
	assert.Equal(t, "avx512/hybrid", got)

	accel := newTestOptimizer(t, 1, WithCapabilities(wideCaps()), WithAcceleration(true))
	got, err = accel.Implementation(OpAdd, Float32, Vectorized)
	require.NoError(t, err)
	assert.Equal(t, "avx2+vek/vectorized", got)
	assert.Equal(t, hwy.DispatchAVX2, accel.Float32().TierOf(OpAdd))
	assert.Equal(t, hwy.DispatchAVX512, accel.Float32().TierOf(OpSoftmax))
	got, err = accel.Implementation(OpSoftmax, Float32, Adaptive)
	require.NoError(t, err)
	assert.Equal(t, "avx512/adaptive", got)

	_, err = accel.Implementation(Op("fft"), Float32, Vectorized)
	assert.ErrorIs(t, err, ErrUnknownOp)
	_, err = accel.Implementation(OpAdd, Float32, Strategy(50))
	assert.ErrorIs(t, err, ErrUnknownStrategy)
	_, err = accel.Implementation(OpAdd, Precision(9), Vectorized)
	assert.Error(t, err)
}

func TestAccelerationNeedsAVX2(t *testing.T) {
	caps := hwy.ScalarCapabilities()
	caps.SSE41 = true
	opt := newTestOptimizer(t, 1, WithCapabilities(caps), WithAcceleration(true))
	got, err := opt.Implementation(OpAdd, Float32, Vectorized)
	require.NoError(t, err)
	assert.NotContains(t, got, vekSuffix)
}

func TestSetDefaultStrategy(t *testing.T) {
	opt := newTestOptimizer(t, 2)
	assert.Equal(t, Adaptive, opt.DefaultStrategy())

	require.NoError(t, opt.SetDefaultStrategy(ComputeBound))
	assert.Equal(t, ComputeBound, opt.DefaultStrategy())

	a := make([]float32, 16)
	require.NoError(t, opt.Float32().Add(a, a, a))
	prof, ok := opt.Profile("add")
	require.True(t, ok)
	assert.Equal(t, ComputeBound, prof.LastStrategy)

	assert.ErrorIs(t, opt.SetDefaultStrategy(Strategy(-3)), ErrUnknownStrategy)
	assert.Equal(t, ComputeBound, opt.DefaultStrategy())
}

func TestWithBuffer(t *testing.T) {
	opt := newTestOptimizer(t, 1)

	var kept *align.Buffer
	err := opt.WithBuffer(1000, func(b *align.Buffer) error {
		kept = b
		assert.True(t, align.IsAligned(b.Float32s(), opt.Config().Alignment))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, kept.Freed())

	boom := errors.New("boom")
	err = opt.WithBuffer(64, func(b *align.Buffer) error {
		kept = b
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, kept.Freed())

	buf, err := opt.Alloc(256)
	require.NoError(t, err)
	assert.Equal(t, 256, buf.Len())
	buf.Free()
}

func TestScratchPoolReuse(t *testing.T) {
	opt := newTestOptimizer(t, 1, WithCapabilities(wideCaps()))
	e := opt.Float32()
	const m, n, k = 64, 64, 64
	a, b := make([]float32, m*k), make([]float32, k*n)
	for range 3 {
		require.NoError(t, e.MatMul(a, b, make([]float32, m*n), m, n, k, CacheOptimized))
	}
	stats := opt.ScratchStats()
	assert.EqualValues(t, 1, stats.Misses)
	assert.EqualValues(t, 2, stats.Hits)
	assert.Zero(t, stats.Outstanding)
}

func TestDefaultAndShutdown(t *testing.T) {
	t.Setenv("HYPEROPT_WORKERS", "3")
	t.Cleanup(Shutdown)

	first := Default()
	require.NotNil(t, first)
	assert.Same(t, first, Default())
	assert.Equal(t, 3, first.Workers())

	Shutdown()
	four := make([]float32, 4)
	assert.ErrorIs(t, first.Float32().Add(four, four, four), ErrClosed)

	second := Default()
	assert.NotSame(t, first, second)
	assert.NoError(t, second.Float32().Add(four, four, four))
}
