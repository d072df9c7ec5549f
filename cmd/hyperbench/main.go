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

// Command hyperbench inspects the dispatch chosen for this machine and
// benchmarks the optimizer against the scalar reference kernels.
//
// Usage:
//
//	hyperbench caps
//	hyperbench bench --sizes 1024,65536 --matrix 128,256 --iterations 20
//	hyperbench bench --strategy hybrid --format yaml
//
// Every flag defaults to its HYPEROPT_* environment variable, and
// --config loads a YAML file underneath both.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hyperbench",
		Short: "Inspect and benchmark hardware-adaptive kernels",
		Long: `hyperbench reports the vector tiers, caches and cores detected on this
machine, the kernel every operation dispatches to, and how the dispatched
kernels compare with the scalar reference loops.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", getEnvStr("HYPEROPT_CONFIG", ""), "YAML config file")
	flags.Int("workers", getEnvInt("HYPEROPT_WORKERS", 0), "Worker pool size (0 = one per core)")
	flags.String("strategy", getEnvStr("HYPEROPT_STRATEGY", ""), "Default strategy: adaptive, cache_optimized, vectorized, parallel, hybrid, memory_bound, compute_bound")
	flags.String("max-tier", getEnvStr("HYPEROPT_MAX_TIER", ""), "Cap dispatch at a tier: scalar, sse4, neon, avx2, avx512")
	flags.String("log-level", getEnvStr("HYPEROPT_LOG_LEVEL", ""), "Log level: debug, info, warn, error")
	flags.Bool("no-vek", getEnvBool("HYPEROPT_NO_VEK", false), "Do not use vek-backed kernels")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hyperbench v%s (%s) %s/%s\n", version, commit, runtime.GOOS, runtime.GOARCH)
		},
	})

	capsCmd := &cobra.Command{
		Use:   "caps",
		Short: "Show detected hardware and the dispatch table",
		RunE:  runCaps,
	}
	capsCmd.Flags().String("precision", "", "Only list kernels for this precision: float32 or float64")
	rootCmd.AddCommand(capsCmd)

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark vector add, matmul and conv2d against the scalar loops",
		RunE:  runBench,
	}
	benchCmd.Flags().String("sizes", "", "Comma-separated vector sizes (default: built-in suite)")
	benchCmd.Flags().String("matrix", "", "Comma-separated square matrix sizes")
	benchCmd.Flags().String("conv", "", "Comma-separated conv cases as HxWxK, e.g. 64x64x3")
	benchCmd.Flags().Int("iterations", getEnvInt("HYPEROPT_BENCH_ITERATIONS", 10), "Iterations per benchmark")
	benchCmd.Flags().String("format", "table", "Output format: table or yaml")
	benchCmd.Flags().Bool("profile", false, "Print the collected operation profiles after the run")
	rootCmd.AddCommand(benchCmd)

	return rootCmd
}

func getEnvStr(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

// newLogger writes text logs to stderr at level.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
