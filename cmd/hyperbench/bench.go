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

package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/go-highway/hyperopt/optimizer"
)

// report is the YAML form of a benchmark run.
type report struct {
	RunID    string       `yaml:"run_id"`
	Tier     string       `yaml:"tier"`
	Workers  int          `yaml:"workers"`
	Started  time.Time    `yaml:"started"`
	Results  []resultRow  `yaml:"results"`
	Profiles []profileRow `yaml:"profiles,omitempty"`
}

type resultRow struct {
	Operation       string  `yaml:"operation"`
	Size            string  `yaml:"size"`
	Strategy        string  `yaml:"strategy"`
	Implementation  string  `yaml:"implementation"`
	Elapsed         string  `yaml:"elapsed"`
	ScalarElapsed   string  `yaml:"scalar_elapsed"`
	Speedup         float64 `yaml:"speedup"`
	GFLOPS          float64 `yaml:"gflops"`
	BandwidthGBs    float64 `yaml:"bandwidth_gbs"`
	CacheEfficiency float64 `yaml:"cache_efficiency"`
}

type profileRow struct {
	Operation          string  `yaml:"operation"`
	Samples            int64   `yaml:"samples"`
	Mean               string  `yaml:"mean"`
	Min                string  `yaml:"min"`
	Max                string  `yaml:"max"`
	LastStrategy       string  `yaml:"last_strategy"`
	LastTier           string  `yaml:"last_tier"`
	VectorizationRatio float64 `yaml:"vectorization_ratio"`
	CacheMissRate      float64 `yaml:"cache_miss_rate"`
}

func runBench(cmd *cobra.Command, args []string) error {
	suite, err := suiteFromFlags(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "yaml" {
		return fmt.Errorf("unknown format %q", format)
	}
	withProfile, _ := cmd.Flags().GetBool("profile")

	opt, err := newOptimizer(cmd)
	if err != nil {
		return err
	}
	defer opt.Close()
	suite.Strategy = opt.DefaultStrategy()

	rep := report{
		RunID:   uuid.New().String(),
		Tier:    opt.Tier().String(),
		Workers: opt.Workers(),
		Started: time.Now().UTC(),
	}
	log := newLogger(slogLevel(opt)).With("run_id", rep.RunID)
	log.Info("benchmark run started", "tier", rep.Tier, "workers", rep.Workers, "strategy", suite.Strategy)

	results, err := opt.RunBenchmarks(suite)
	if err != nil {
		return err
	}
	for _, r := range results {
		rep.Results = append(rep.Results, resultRow{
			Operation:       r.Operation,
			Size:            r.Size,
			Strategy:        r.Strategy.String(),
			Implementation:  r.Implementation,
			Elapsed:         r.Elapsed.String(),
			ScalarElapsed:   r.ScalarElapsed.String(),
			Speedup:         r.Speedup,
			GFLOPS:          r.GFLOPS,
			BandwidthGBs:    r.BandwidthGBs,
			CacheEfficiency: r.CacheEfficiency,
		})
	}
	if withProfile {
		for _, p := range opt.Profiler().Snapshot() {
			rep.Profiles = append(rep.Profiles, profileRow{
				Operation:          p.Operation,
				Samples:            p.Samples,
				Mean:               p.Mean.String(),
				Min:                p.Min.String(),
				Max:                p.Max.String(),
				LastStrategy:       p.LastStrategy.String(),
				LastTier:           p.LastTier.String(),
				VectorizationRatio: p.VectorizationRatio,
				CacheMissRate:      p.CacheMissRate,
			})
		}
	}
	log.Info("benchmark run finished", "results", len(results), "elapsed", time.Since(rep.Started))

	out := cmd.OutOrStdout()
	if format == "yaml" {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	}
	if err := writeResults(out, rep, results); err != nil {
		return err
	}
	if withProfile {
		fmt.Fprintln(out)
		return writeProfiles(out, rep.Profiles)
	}
	return nil
}

func slogLevel(opt *optimizer.Optimizer) slog.Level {
	cfg := opt.Config()
	level, _ := cfg.SlogLevel()
	return level
}

func writeResults(out io.Writer, rep report, results []optimizer.BenchmarkResult) error {
	p := message.NewPrinter(language.English)
	title := cases.Title(language.English)

	fmt.Fprintf(out, "run %s  tier %s  workers %d\n\n", rep.RunID, rep.Tier, rep.Workers)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Operation\tSize\tStrategy\tKernel\tTime\tScalar\tSpeedup\tElems/s\tGFLOPS\tGB/s\t")
	for _, r := range results {
		p.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%v\t%.2fx\t%.0f\t%.2f\t%.2f\t\n",
			title.String(r.Operation), r.Size, r.Strategy, r.Implementation,
			r.Elapsed, r.ScalarElapsed, r.Speedup, r.Throughput, r.GFLOPS, r.BandwidthGBs)
	}
	return w.Flush()
}

func writeProfiles(out io.Writer, profiles []profileRow) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OP\tSAMPLES\tMEAN\tMIN\tMAX\tSTRATEGY\tTIER\tVECTORIZED\tL2 MISS")
	for _, p := range profiles {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%.0f%%\t%.0f%%\n",
			p.Operation, p.Samples, p.Mean, p.Min, p.Max, p.LastStrategy, p.LastTier,
			100*p.VectorizationRatio, 100*p.CacheMissRate)
	}
	return w.Flush()
}

// suiteFromFlags starts from the default suite and replaces each list
// that was given on the command line.
func suiteFromFlags(cmd *cobra.Command) (optimizer.Suite, error) {
	suite := optimizer.DefaultSuite()
	flags := cmd.Flags()

	if s, _ := flags.GetString("sizes"); s != "" {
		sizes, err := parseInts(s)
		if err != nil {
			return suite, fmt.Errorf("--sizes: %w", err)
		}
		suite.VectorSizes = sizes
	}
	if s, _ := flags.GetString("matrix"); s != "" {
		sizes, err := parseInts(s)
		if err != nil {
			return suite, fmt.Errorf("--matrix: %w", err)
		}
		suite.MatrixSizes = sizes
	}
	if s, _ := flags.GetString("conv"); s != "" {
		var convs []optimizer.ConvCase
		for _, field := range strings.Split(s, ",") {
			dims, err := parseInts(strings.ReplaceAll(strings.TrimSpace(field), "x", ","))
			if err != nil || len(dims) != 3 {
				return suite, fmt.Errorf("--conv: %q is not HxWxK", field)
			}
			convs = append(convs, optimizer.ConvCase{H: dims[0], W: dims[1], K: dims[2]})
		}
		suite.ConvCases = convs
	}
	suite.Iterations, _ = flags.GetInt("iterations")
	if suite.Iterations <= 0 {
		return suite, fmt.Errorf("--iterations must be positive, got %d", suite.Iterations)
	}
	return suite, nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, field := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, fmt.Errorf("size must be positive, got %d", n)
		}
		out = append(out, n)
	}
	return out, nil
}
