package main

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	epiapi "epigonos/pkg/epigonos"
)

// runConfigFile is the TOML shape accepted by `epigonosctl run -config`.
// Absent keys keep the flag defaults; flags set explicitly on the command
// line win over config values.
type runConfigFile struct {
	Problem       *string  `toml:"problem"`
	Population    *int     `toml:"population"`
	Generations   *int     `toml:"generations"`
	Seed          *int64   `toml:"seed"`
	Workers       *int     `toml:"workers"`
	Selection     *string  `toml:"selection"`
	EliteCount    *int     `toml:"elite_count"`
	CrossoverRate *float64 `toml:"crossover_rate"`
	MutationRate  *float64 `toml:"mutation_rate"`
	Fuel          *int64   `toml:"fuel"`
	TimeBudgetMS  *int     `toml:"time_budget_ms"`
}

// applyRunConfig layers config-file values onto req. A value is applied only
// when the key is present in the file and the matching flag was not set on
// the command line.
func applyRunConfig(req *epiapi.RunRequest, path string, setFlags map[string]bool) error {
	var cfg runConfigFile
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return fmt.Errorf("load run config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load run config %s: unknown key %q", path, undecoded[0].String())
	}

	if cfg.Problem != nil && !setFlags["problem"] {
		req.Problem = *cfg.Problem
	}
	if cfg.Population != nil && !setFlags["pop"] {
		req.Population = *cfg.Population
	}
	if cfg.Generations != nil && !setFlags["gens"] {
		req.Generations = *cfg.Generations
	}
	if cfg.Seed != nil && !setFlags["seed"] {
		req.Seed = *cfg.Seed
	}
	if cfg.Workers != nil && !setFlags["workers"] {
		req.Workers = *cfg.Workers
	}
	if cfg.Selection != nil && !setFlags["selection"] {
		req.Selection = *cfg.Selection
	}
	if cfg.EliteCount != nil && !setFlags["elites"] {
		req.EliteCount = *cfg.EliteCount
	}
	if cfg.CrossoverRate != nil && !setFlags["crossover-rate"] {
		req.CrossoverRate = *cfg.CrossoverRate
	}
	if cfg.MutationRate != nil && !setFlags["mutation-rate"] {
		req.MutationRate = *cfg.MutationRate
	}
	if cfg.Fuel != nil && !setFlags["fuel"] {
		req.Fuel = *cfg.Fuel
	}
	if cfg.TimeBudgetMS != nil && !setFlags["time-budget-ms"] {
		req.TimeBudget = time.Duration(*cfg.TimeBudgetMS) * time.Millisecond
	}
	return nil
}
