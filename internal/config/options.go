package config

import "strings"

// Option mutates an AppConfig when applied via Apply.
type Option func(*AppConfig)

// Apply applies opts to a copy of base and re-validates the result.
func Apply(base AppConfig, opts ...Option) (AppConfig, error) {
	cfg := base
	if base.Logging.OutputPaths != nil {
		cfg.Logging.OutputPaths = append([]string(nil), base.Logging.OutputPaths...)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if err := cfg.normalise(); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// WithLogLevel overrides the log level when non-empty.
func WithLogLevel(level string) Option {
	level = strings.TrimSpace(level)
	return func(c *AppConfig) {
		if level != "" {
			c.Logging.Level = level
		}
	}
}

// WithMetricsAddr overrides the Prometheus listen address when non-empty.
func WithMetricsAddr(addr string) Option {
	addr = strings.TrimSpace(addr)
	return func(c *AppConfig) {
		if addr != "" {
			c.Metrics.Addr = addr
		}
	}
}

// WithActions sets the number of simulated actions.
func WithActions(n int) Option {
	return func(c *AppConfig) {
		c.Simulation.Actions = n
	}
}

// WithSeed fixes the simulation random seed.
func WithSeed(seed int64) Option {
	return func(c *AppConfig) {
		c.Simulation.Seed = seed
	}
}

// WithOpsPerSecond paces simulated actions; zero disables pacing.
func WithOpsPerSecond(rate float64) Option {
	return func(c *AppConfig) {
		c.Simulation.OpsPerSecond = rate
	}
}

// WithDebug toggles per-action status tracing.
func WithDebug(debug bool) Option {
	return func(c *AppConfig) {
		c.Simulation.Debug = debug
	}
}

// WithRuns sets the number of independent runs and the worker bound for bench.
func WithRuns(runs, workers int) Option {
	return func(c *AppConfig) {
		if runs > 0 {
			c.Simulation.Runs = runs
		}
		if workers > 0 {
			c.Simulation.Workers = workers
		}
	}
}
