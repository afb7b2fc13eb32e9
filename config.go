package admission

import (
	"fmt"
)

// CostTable maps operation kinds to their token cost.
type CostTable map[string]int

// Config holds the pipeline's billing parameters. Component-level knobs
// (rate window, cache TTL, breaker thresholds, retry schedule) live in
// the respective component configs; the pipeline only decides what an
// operation costs.
type Config struct {
	// Costs is the per-operation cost table, e.g.
	// "suggestions:1,optimize:2,generate:2".
	Costs CostTable `env:"ADMISSION_COSTS" envDefault:"suggestions:1,optimize:2,generate:2"`
	// DefaultCost applies to operation kinds missing from the table.
	DefaultCost int `env:"ADMISSION_DEFAULT_COST" envDefault:"1"`
}

// DefaultConfig returns the production cost table.
func DefaultConfig() Config {
	return Config{
		Costs: CostTable{
			"suggestions": 1,
			"optimize":    2,
			"generate":    2,
		},
		DefaultCost: 1,
	}
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.DefaultCost < 0 {
		return fmt.Errorf("%w: default cost must be >= 0, got %d", ErrInvalidConfig, c.DefaultCost)
	}
	for op, cost := range c.Costs {
		if cost < 0 {
			return fmt.Errorf("%w: cost for %q must be >= 0, got %d", ErrInvalidConfig, op, cost)
		}
	}
	return nil
}

// CostFor returns the token cost of an operation kind, falling back to
// DefaultCost for unknown kinds.
func (c Config) CostFor(operation string) int {
	if cost, ok := c.Costs[operation]; ok {
		return cost
	}
	return c.DefaultCost
}
