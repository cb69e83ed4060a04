// Package config manages application configuration loading and validation.
package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coachpo/leasepool/internal/observability"
	"github.com/coachpo/leasepool/internal/pool"
	"github.com/coachpo/leasepool/internal/telemetry"
)

// PoolConfig sizes the simulated pool.
type PoolConfig struct {
	Name           string `yaml:"name"`
	GrowthFactor   int    `yaml:"growthFactor"`
	Capacity       int    `yaml:"capacity"`
	InitialSize    int    `yaml:"initialSize"`
	ResetOnRelease bool   `yaml:"resetOnRelease"`
}

// Policy converts the sizing fields into a pool policy.
func (c PoolConfig) Policy() pool.Policy {
	return pool.Policy{
		GrowthFactor: c.GrowthFactor,
		Capacity:     c.Capacity,
		InitialSize:  c.InitialSize,
	}
}

// SimulationConfig drives the randomized acquire/release exerciser.
type SimulationConfig struct {
	Actions      int     `yaml:"actions"`
	Seed         int64   `yaml:"seed"` // 0 seeds from the clock
	OpsPerSecond float64 `yaml:"opsPerSecond"`
	Burst        int     `yaml:"burst"`
	Debug        bool    `yaml:"debug"`
	Runs         int     `yaml:"runs"`
	Workers      int     `yaml:"workers"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root configuration document.
type AppConfig struct {
	Environment Environment             `yaml:"environment"`
	Logging     observability.LogConfig `yaml:"logging"`
	Telemetry   telemetry.Config        `yaml:"telemetry"`
	Metrics     MetricsConfig           `yaml:"metrics"`
	Pool        PoolConfig              `yaml:"pool"`
	Simulation  SimulationConfig        `yaml:"simulation"`
}

// Default returns the configuration used when no file is supplied.
func Default() AppConfig {
	policy := pool.DefaultPolicy()
	return AppConfig{
		Environment: EnvDev,
		Logging:     observability.DefaultLogConfig(),
		Telemetry:   telemetry.DefaultConfig(),
		Metrics:     MetricsConfig{Addr: ""},
		Pool: PoolConfig{
			Name:         "resource",
			GrowthFactor: policy.GrowthFactor,
			Capacity:     policy.Capacity,
			InitialSize:  policy.InitialSize,
		},
		Simulation: SimulationConfig{
			Actions: 5,
			Runs:    1,
			Workers: 1,
			Burst:   1,
		},
	}
}

// Load reads a YAML document, substitutes ${VAR} references from the
// environment, and overlays it on Default.
func Load(ctx context.Context, configPath string) (AppConfig, error) {
	_ = ctx

	reader, closer, err := openConfigFile(configPath)
	if err != nil {
		return AppConfig{}, err
	}
	defer closer()

	bytes, err := io.ReadAll(reader)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(substituteEnvVars(string(bytes))), &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.normalise(); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// LoadOrDefault loads configPath when set, otherwise returns validated defaults.
func LoadOrDefault(ctx context.Context, configPath string) (AppConfig, error) {
	if strings.TrimSpace(configPath) != "" {
		return Load(ctx, configPath)
	}
	cfg := Default()
	if err := cfg.normalise(); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c *AppConfig) normalise() error {
	c.Environment = Environment(strings.ToLower(strings.TrimSpace(string(c.Environment))))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Encoding = strings.ToLower(strings.TrimSpace(c.Logging.Encoding))
	c.Metrics.Addr = strings.TrimSpace(c.Metrics.Addr)
	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)
	c.Telemetry.Environment = string(c.Environment)
	c.Pool.Name = strings.TrimSpace(c.Pool.Name)

	if c.Simulation.Runs <= 0 {
		c.Simulation.Runs = 1
	}
	if c.Simulation.Workers <= 0 {
		c.Simulation.Workers = 1
	}
	if c.Simulation.Burst <= 0 {
		c.Simulation.Burst = 1
	}
	return nil
}

// Validate performs semantic validation on the configuration.
func (c AppConfig) Validate() error {
	switch c.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return fmt.Errorf("environment must be one of dev, staging, prod")
	}

	switch c.Logging.Encoding {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.encoding must be json or console")
	}

	if err := c.Pool.Policy().Validate(); err != nil {
		return fmt.Errorf("pool: %w", err)
	}

	if c.Simulation.Actions < 0 {
		return fmt.Errorf("simulation.actions must be >=0")
	}
	if c.Simulation.OpsPerSecond < 0 {
		return fmt.Errorf("simulation.opsPerSecond must be >=0")
	}

	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		return fmt.Errorf("telemetry.otlpEndpoint required when telemetry is enabled")
	}
	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start
		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}

func openConfigFile(path string) (io.Reader, func(), error) {
	candidate := strings.TrimSpace(path)
	candidate = filepath.Clean(candidate)

	file, err := os.Open(candidate) // #nosec G304 -- path is operator controlled.
	if err != nil {
		return nil, nil, fmt.Errorf("open app config: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}
