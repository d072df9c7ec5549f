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

// Package optimizer is the service layer over the hwy kernels: it detects
// the hardware once, builds a dispatch table per precision keyed by
// operation and tier, picks a strategy per call, runs it on a shared
// worker pool and profiles the result.
//
// An Optimizer is an ordinary value built by New and owned by the caller:
//
//	opt, err := optimizer.New(optimizer.DefaultConfig(), optimizer.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer opt.Close()
//
//	err = opt.Float32().MatMul(a, b, c, m, n, k, optimizer.Hybrid)
//
// Default returns a lazily built process-wide instance for callers that
// do not wire one through.
package optimizer

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-highway/hyperopt/hwy"
	"github.com/go-highway/hyperopt/hwy/contrib/align"
	"github.com/go-highway/hyperopt/hwy/contrib/vec"
	"github.com/go-highway/hyperopt/hwy/contrib/workerpool"
)

// Optimizer owns the capability record, dispatch tables, worker pool,
// scratch memory pool and profiler. It is safe for concurrent use.
type Optimizer struct {
	cfg   Config
	caps  hwy.HardwareCapabilities
	level hwy.DispatchLevel
	accel bool
	log   *slog.Logger
	now   func() time.Time

	pool     *workerpool.Pool
	scratch  *align.Pool
	profiler *Profiler
	selector *Selector
	strategy atomic.Int32

	f32 *Engine[float32]
	f64 *Engine[float64]

	closeOnce sync.Once
	closed    atomic.Bool
}

type options struct {
	caps   *hwy.HardwareCapabilities
	logger *slog.Logger
	now    func() time.Time
	accel  *bool
}

// Option customizes New.
type Option func(*options)

// WithCapabilities replaces hardware detection, e.g. to simulate a
// machine without wide vectors.
func WithCapabilities(caps hwy.HardwareCapabilities) Option {
	return func(o *options) { o.caps = &caps }
}

// WithLogger sets the structured logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock sets the time source used for profiling.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithAcceleration enables or disables the vek-backed kernels on the 256-
// and 512-bit tiers. By default they are used when vek reports hardware
// acceleration.
func WithAcceleration(enabled bool) Option {
	return func(o *options) { o.accel = &enabled }
}

// New validates cfg and builds an Optimizer. The worker pool starts here
// and runs until Close.
func New(cfg Config, opts ...Option) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	caps := hwy.DetectOnce()
	if o.caps != nil {
		caps = *o.caps
	}
	if cfg.MaxTier != "" {
		maxTier, _ := hwy.ParseLevel(cfg.MaxTier) // checked by Validate
		caps = caps.Capped(maxTier)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := o.now
	if now == nil {
		now = time.Now
	}
	accel := vec.Accelerated() && caps.AVX2
	if o.accel != nil {
		accel = *o.accel && caps.AVX2
	}

	scratch, err := align.NewPool(cfg.Alignment)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	workers := cfg.workers()
	profiler := NewProfiler(now)
	opt := &Optimizer{
		cfg:      cfg,
		caps:     caps,
		level:    caps.MaxLevel(),
		accel:    accel,
		log:      logger,
		now:      now,
		pool:     workerpool.New(workers),
		scratch:  scratch,
		profiler: profiler,
		selector: NewSelector(cfg, workers, profiler),
	}
	opt.strategy.Store(int32(cfg.DefaultStrategy))
	opt.f32 = newEngine[float32](opt, Float32)
	opt.f64 = newEngine[float64](opt, Float64)

	logger.Info("optimizer ready",
		"tier", opt.level,
		"fma", caps.FMA,
		"vek", accel,
		"workers", workers,
		"strategy", cfg.DefaultStrategy,
		"auto_tune", cfg.AutoTune,
		"l1", caps.L1, "l2", caps.L2, "l3", caps.L3)
	for _, op := range Ops {
		logger.Debug("dispatch", "op", op,
			"float32", opt.f32.implementation(op),
			"float64", opt.f64.implementation(op))
	}
	return opt, nil
}

// Float32 returns the single-precision engine.
func (o *Optimizer) Float32() *Engine[float32] { return o.f32 }

// Float64 returns the double-precision engine.
func (o *Optimizer) Float64() *Engine[float64] { return o.f64 }

// Capabilities returns the capability record dispatch is built on, after
// any MaxTier cap.
func (o *Optimizer) Capabilities() hwy.HardwareCapabilities { return o.caps }

// Tier returns the widest tier in use.
func (o *Optimizer) Tier() hwy.DispatchLevel { return o.level }

// Config returns the configuration the optimizer was built with.
func (o *Optimizer) Config() Config { return o.cfg }

// Workers returns the worker pool size.
func (o *Optimizer) Workers() int { return o.pool.NumWorkers() }

// Profiler returns the profiler fed by every call.
func (o *Optimizer) Profiler() *Profiler { return o.profiler }

// Profile is shorthand for Profiler().Profile.
func (o *Optimizer) Profile(op string) (PerformanceProfile, bool) {
	return o.profiler.Profile(op)
}

// Selector returns the strategy selector.
func (o *Optimizer) Selector() *Selector { return o.selector }

// DefaultStrategy returns the strategy used by calls that pass none.
func (o *Optimizer) DefaultStrategy() Strategy {
	return Strategy(o.strategy.Load())
}

// SetDefaultStrategy changes the strategy used by calls that pass none.
func (o *Optimizer) SetDefaultStrategy(s Strategy) error {
	if !s.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownStrategy, int(s))
	}
	if old := Strategy(o.strategy.Swap(int32(s))); old != s {
		o.log.Info("default strategy changed", "from", old, "to", s)
	}
	return nil
}

// Reprofile clears every profile, and with it the timings auto-tuning
// reads, so strategy selection starts again from the size heuristic.
func (o *Optimizer) Reprofile() {
	o.profiler.Reset()
	o.log.Info("profiles reset")
}

// Implementation describes how op runs for precision under strategy, as
// "<kernel>/<strategy>", e.g. "avx2+vek/parallel", where the kernel part
// names the tier the op actually runs at. Adaptive is reported
// as such since it resolves per call.
func (o *Optimizer) Implementation(op Op, precision Precision, strategy Strategy) (string, error) {
	if !op.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
	if !strategy.Valid() {
		return "", fmt.Errorf("%w: %d", ErrUnknownStrategy, int(strategy))
	}
	var kernel string
	switch precision {
	case Float32:
		kernel = o.f32.implementation(op)
	case Float64:
		kernel = o.f64.implementation(op)
	default:
		return "", fmt.Errorf("optimizer: unknown precision %v", precision)
	}
	return kernel + "/" + strategy.String(), nil
}

// Alloc returns a buffer aligned to the configured alignment. The caller
// releases it with Free; WithBuffer does so automatically.
func (o *Optimizer) Alloc(size int) (*align.Buffer, error) {
	return align.Alloc(size, o.cfg.Alignment)
}

// WithBuffer runs fn with an aligned buffer of size bytes and frees it on
// every exit path.
func (o *Optimizer) WithBuffer(size int, fn func(*align.Buffer) error) error {
	return align.With(size, o.cfg.Alignment, fn)
}

// ScratchStats reports the state of the internal scratch pool.
func (o *Optimizer) ScratchStats() align.PoolStats { return o.scratch.Stats() }

// Close joins the worker pool and releases pooled memory. It is safe to
// call more than once; afterwards every operation returns ErrClosed.
func (o *Optimizer) Close() {
	o.closeOnce.Do(func() {
		o.closed.Store(true)
		o.pool.Close()
		o.scratch.Release()
		o.log.Info("optimizer closed")
	})
}

var (
	defaultMu  sync.Mutex
	defaultOpt *Optimizer
)

// Default returns the process-wide optimizer, building it on first use
// from HYPEROPT_* environment settings. Concurrent first calls build it
// exactly once. After Shutdown the next call builds a fresh one.
func Default() *Optimizer {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultOpt == nil {
		cfg, err := LoadConfig("")
		if err != nil {
			cfg = DefaultConfig()
		}
		opt, err := New(cfg)
		if err != nil {
			opt, _ = New(DefaultConfig())
		}
		defaultOpt = opt
	}
	return defaultOpt
}

// Shutdown closes the process-wide optimizer if one was built.
func Shutdown() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultOpt != nil {
		defaultOpt.Close()
		defaultOpt = nil
	}
}
