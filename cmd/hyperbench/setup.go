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

	"github.com/spf13/cobra"

	"github.com/go-highway/hyperopt/optimizer"
)

// loadConfig layers the config file, HYPEROPT_* variables and explicit
// flags, in that order.
func loadConfig(cmd *cobra.Command) (optimizer.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := optimizer.LoadConfig(path)
	if err != nil {
		return cfg, err
	}

	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if name, _ := flags.GetString("strategy"); name != "" {
		s, err := optimizer.ParseStrategy(name)
		if err != nil {
			return cfg, err
		}
		cfg.DefaultStrategy = s
	}
	if tier, _ := flags.GetString("max-tier"); tier != "" {
		cfg.MaxTier = tier
	}
	if level, _ := flags.GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newOptimizer(cmd *cobra.Command) (*optimizer.Optimizer, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	level, _ := cfg.SlogLevel() // checked by Validate

	opts := []optimizer.Option{optimizer.WithLogger(newLogger(level))}
	if noVek, _ := cmd.Flags().GetBool("no-vek"); noVek {
		opts = append(opts, optimizer.WithAcceleration(false))
	}
	return optimizer.New(cfg, opts...)
}
