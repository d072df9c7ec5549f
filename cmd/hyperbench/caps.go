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
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/go-highway/hyperopt/hwy"
	"github.com/go-highway/hyperopt/hwy/contrib/vec"
	"github.com/go-highway/hyperopt/optimizer"
)

func runCaps(cmd *cobra.Command, args []string) error {
	opt, err := newOptimizer(cmd)
	if err != nil {
		return err
	}
	defer opt.Close()

	caps := opt.Capabilities()
	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	brand := caps.Brand
	if brand == "" {
		brand = "unknown"
	}
	tiers := lo.Map(caps.Levels(), func(l hwy.DispatchLevel, _ int) string { return l.String() })
	fma := ""
	if caps.FMA {
		fma = " (fma)"
	}
	accel := "off"
	if features := vec.AccelFeatures(); vec.Accelerated() {
		accel = "available [" + strings.Join(features, " ") + "]"
	}

	fmt.Fprintf(w, "CPU\t%s\n", brand)
	fmt.Fprintf(w, "Tiers\t%s\n", strings.Join(tiers, ", "))
	fmt.Fprintf(w, "Active\t%s%s\n", opt.Tier(), fma)
	fmt.Fprintf(w, "Cores\t%d logical / %d physical, %d NUMA node(s), SMT %v\n",
		caps.LogicalCores, caps.PhysicalCores, caps.NUMANodes, caps.Hyperthreading)
	fmt.Fprintf(w, "Caches\tL1 %s  L2 %s  L3 %s  line %s\n",
		humanize.IBytes(uint64(caps.L1)), humanize.IBytes(uint64(caps.L2)),
		humanize.IBytes(uint64(caps.L3)), humanize.IBytes(uint64(caps.CacheLine)))
	fmt.Fprintf(w, "vek\t%s\n", accel)
	fmt.Fprintf(w, "Workers\t%d\n", opt.Workers())
	fmt.Fprintf(w, "Strategy\t%s\n", opt.DefaultStrategy())
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	return writeDispatch(cmd, opt)
}

// writeDispatch prints the kernel each operation runs. The --precision flag
// narrows the table to a single column.
func writeDispatch(cmd *cobra.Command, opt *optimizer.Optimizer) error {
	precisions := []optimizer.Precision{optimizer.Float32, optimizer.Float64}
	if s, _ := cmd.Flags().GetString("precision"); s != "" {
		p, err := optimizer.ParsePrecision(s)
		if err != nil {
			return err
		}
		precisions = []optimizer.Precision{p}
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	header := lo.Map(precisions, func(p optimizer.Precision, _ int) string { return strings.ToUpper(p.String()) })
	fmt.Fprintf(w, "OP\t%s\n", strings.Join(header, "\t"))
	for _, op := range optimizer.Ops {
		row := make([]string, 0, len(precisions))
		for _, p := range precisions {
			impl, err := opt.Implementation(op, p, opt.DefaultStrategy())
			if err != nil {
				return err
			}
			row = append(row, impl)
		}
		fmt.Fprintf(w, "%s\t%s\n", op, strings.Join(row, "\t"))
	}
	return w.Flush()
}
