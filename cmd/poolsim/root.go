package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coachpo/leasepool/internal/config"
	"github.com/coachpo/leasepool/internal/pool"
	"github.com/coachpo/leasepool/internal/sim"
)

type globalFlags struct {
	configPath  string
	logLevel    string
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "poolsim",
		Short: "Exercise a bounded, growth-controlled object pool",
		Long: `poolsim drives an object pool with random allocate (A) and release (R)
actions and reports how the pool grew. Growth follows
  grow = F*A if A < C - F*A, else C - A
where F is the growth factor, C the capacity and A the instances allocated so far.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to YAML configuration file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9102")

	root.AddCommand(
		newRunCmd(flags),
		newBenchCmd(flags),
		newStatusCmd(flags),
		newVersionCmd(),
	)
	return root
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	var (
		actions   int
		seed      int64
		opsPerSec float64
		debug     bool
		asJSON    bool
		linger    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run [actions]",
		Short: "Run one random allocate/release sequence",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if _, err := fmt.Sscan(args[0], &actions); err != nil {
					return fmt.Errorf("actions must be an integer: %w", err)
				}
			}
			var overrides []config.Option
			if len(args) == 1 || cmd.Flags().Changed("actions") {
				overrides = append(overrides, config.WithActions(actions))
			}
			if cmd.Flags().Changed("seed") {
				overrides = append(overrides, config.WithSeed(seed))
			}
			if cmd.Flags().Changed("ops-per-sec") {
				overrides = append(overrides, config.WithOpsPerSecond(opsPerSec))
			}
			if cmd.Flags().Changed("debug") {
				overrides = append(overrides, config.WithDebug(debug))
			}

			a, err := newApp(cmd.Context(), flags, overrides...)
			if err != nil {
				return err
			}
			defer a.shutdown(context.Background())
			return runSimulation(cmd.Context(), a, cmd.OutOrStdout(), asJSON, linger)
		},
	}
	cmd.Flags().IntVarP(&actions, "actions", "n", 5, "Number of random actions")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed; 0 seeds from the clock")
	cmd.Flags().Float64Var(&opsPerSec, "ops-per-sec", 0, "Pace actions to this rate; 0 runs unpaced")
	cmd.Flags().BoolVar(&debug, "debug", false, "Print the action list and pool status around every action")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run report as JSON")
	cmd.Flags().DurationVar(&linger, "linger", 0, "Keep serving metrics this long after the run")
	return cmd
}

func runSimulation(ctx context.Context, a *app, out io.Writer, asJSON bool, linger time.Duration) error {
	simCfg := a.cfg.Simulation
	opts := sim.Options{
		Name:           a.cfg.Pool.Name,
		Policy:         a.cfg.Pool.Policy(),
		ResetOnRelease: a.cfg.Pool.ResetOnRelease,
		Actions:        simCfg.Actions,
		Seed:           simCfg.Seed,
		OpsPerSecond:   simCfg.OpsPerSecond,
		Burst:          simCfg.Burst,
		Logger:         a.log,
		Observer:       a.observer,
		Manager:        a.manager,
	}
	if !asJSON {
		_, _ = fmt.Fprintf(out, "Actions number = %d\n", simCfg.Actions)
		if simCfg.Debug {
			opts.Trace = out
		}
	}

	report, runErr := sim.Simulate(ctx, opts)
	if runErr != nil && report.RunID == "" {
		return runErr
	}
	if asJSON {
		if err := pool.WriteJSON(out, report); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintf(out, "Final >>> %s\n", report.Final)
	}

	if linger > 0 && a.metrics != nil {
		a.log.Info("lingering for metrics scrape", zap.Duration("linger", linger))
		select {
		case <-ctx.Done():
		case <-time.After(linger):
		}
	}

	if errors.Is(runErr, pool.ErrCapacityExceeded) {
		return fmt.Errorf("run %s stopped: %w", report.RunID, runErr)
	}
	return runErr
}

func newBenchCmd(flags *globalFlags) *cobra.Command {
	var (
		runs    int
		workers int
		actions int
		seed    int64
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run many independent sequences in parallel and summarise growth",
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := []config.Option{config.WithRuns(runs, workers)}
			if cmd.Flags().Changed("actions") {
				overrides = append(overrides, config.WithActions(actions))
			}
			if cmd.Flags().Changed("seed") {
				overrides = append(overrides, config.WithSeed(seed))
			}
			a, err := newApp(cmd.Context(), flags, overrides...)
			if err != nil {
				return err
			}
			defer a.shutdown(context.Background())

			simCfg := a.cfg.Simulation
			report, err := sim.Bench(cmd.Context(), sim.Options{
				Name:           a.cfg.Pool.Name,
				Policy:         a.cfg.Pool.Policy(),
				ResetOnRelease: a.cfg.Pool.ResetOnRelease,
				Actions:        simCfg.Actions,
				Seed:           simCfg.Seed,
				Logger:         a.log,
			}, simCfg.Runs, simCfg.Workers)
			if err != nil {
				return err
			}
			return pool.WriteJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 0, "Number of independent runs (default from config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Maximum runs in flight (default from config)")
	cmd.Flags().IntVarP(&actions, "actions", "n", 0, "Actions per run")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Seed of the first run; run i uses seed+i")
	return cmd
}

func newStatusCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the status of a freshly built pool for the configured policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.shutdown(context.Background())

			opts := []pool.Option[sim.Resource]{pool.WithInit(sim.InitResource)}
			if a.cfg.Pool.Name != "" {
				opts = append(opts, pool.WithName[sim.Resource](a.cfg.Pool.Name))
			}
			if _, err := pool.Lookup(a.manager, a.cfg.Pool.Policy(), opts...); err != nil {
				return err
			}
			for _, s := range a.manager.Statuses() {
				if asJSON {
					if err := pool.WriteJSON(cmd.OutOrStdout(), s); err != nil {
						return err
					}
					continue
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print status as JSON")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "poolsim v%s\n", version)
			_, _ = fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			_, _ = fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
