package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"slices"
	"time"

	"github.com/google/uuid"
	concpool "github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/coachpo/leasepool/internal/pool"
)

// Options describes one simulation.
type Options struct {
	Name           string
	Policy         pool.Policy
	ResetOnRelease bool
	Actions        int
	Seed           int64 // 0 picks a clock-based seed
	OpsPerSecond   float64
	Burst          int
	Trace          io.Writer
	Logger         *zap.Logger
	Observer       pool.Observer
	// Manager, when set, supplies the pool shared by every simulation with
	// the same growth factor and capacity. The manager then owns its
	// lifecycle and Simulate leaves it open.
	Manager *pool.Manager
}

// Report summarises a run.
type Report struct {
	RunID     string      `json:"runId"`
	Index     int         `json:"index"`
	Seed      int64       `json:"seed"`
	Actions   int         `json:"actions"`
	Applied   int         `json:"applied"`
	Acquired  int         `json:"acquired"`
	Released  int         `json:"released"`
	Idle      int         `json:"idle"`
	Held      int         `json:"held"`
	Exhausted bool        `json:"exhausted"`
	Final     pool.Status `json:"final"`
	Elapsed   string      `json:"elapsed"`
	Err       string      `json:"error,omitempty"`
}

// Simulate applies a generated action sequence to a pool, then releases
// whatever is still held. Pools it built itself are closed. A run that hits
// capacity returns its report together with an error wrapping
// pool.ErrCapacityExceeded.
func Simulate(ctx context.Context, opts Options) (Report, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	p, owned, err := buildPool(opts, log)
	if err != nil {
		return Report{}, fmt.Errorf("sim: build pool: %w", err)
	}

	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID), zap.Int64("seed", seed))
	runner := NewRunner(p,
		WithTrace(opts.Trace),
		WithRate(opts.OpsPerSecond, opts.Burst),
		WithRunnerLogger(log),
	)

	actions := Generate(opts.Actions, rand.New(rand.NewSource(seed))) // #nosec G404 -- simulation only
	started := time.Now()
	report, runErr := runner.Run(ctx, actions)
	report.RunID = runID
	report.Seed = seed
	report.Elapsed = time.Since(started).String()

	runner.Drain()
	if owned {
		if err := p.Close(); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	log.Debug("simulation finished",
		zap.Int("applied", report.Applied),
		zap.Int("allocated", report.Final.Allocated),
	)
	return report, runErr
}

func buildPool(opts Options, log *zap.Logger) (*pool.Pool[Resource], bool, error) {
	poolOpts := []pool.Option[Resource]{
		pool.WithInit(InitResource),
		pool.WithLogger[Resource](log),
	}
	if opts.Name != "" {
		poolOpts = append(poolOpts, pool.WithName[Resource](opts.Name))
	}
	if opts.ResetOnRelease {
		poolOpts = append(poolOpts, pool.WithReset(InitResource))
	}
	if opts.Observer != nil {
		poolOpts = append(poolOpts, pool.WithObserver[Resource](opts.Observer))
	}
	if opts.Manager != nil {
		p, err := pool.Lookup(opts.Manager, opts.Policy, poolOpts...)
		return p, false, err
	}
	p, err := pool.New(opts.Policy, poolOpts...)
	return p, true, err
}

// BenchReport aggregates independent runs.
type BenchReport struct {
	Runs         []Report `json:"runs"`
	Exhausted    int      `json:"exhausted"`
	MaxAllocated int      `json:"maxAllocated"`
	Workers      int      `json:"workers"`
	Elapsed      string   `json:"elapsed"`
}

// Bench runs independent simulations in parallel, each on its own pool, with
// at most workers in flight. Run i uses seed base+i so a bench is reproducible
// from its first seed. Capacity exhaustion is recorded per run, not returned;
// only cancellation or a pool construction failure aborts the bench.
func Bench(ctx context.Context, opts Options, runs, workers int) (BenchReport, error) {
	if runs <= 0 {
		return BenchReport{}, fmt.Errorf("sim: runs must be >0")
	}
	workers = max(workers, 1)
	base := opts.Seed
	if base == 0 {
		base = time.Now().UnixNano()
	}
	opts.Trace = nil
	opts.Manager = nil

	started := time.Now()
	tasks := concpool.NewWithResults[Report]().
		WithContext(ctx).
		WithMaxGoroutines(workers)
	for i := range runs {
		runOpts := opts
		runOpts.Seed = base + int64(i)
		tasks.Go(func(ctx context.Context) (Report, error) {
			report, err := Simulate(ctx, runOpts)
			report.Index = i
			if err != nil && !errors.Is(err, pool.ErrCapacityExceeded) {
				return report, err
			}
			return report, nil
		})
	}
	results, err := tasks.Wait()
	if err != nil {
		return BenchReport{}, fmt.Errorf("sim: bench: %w", err)
	}

	slices.SortFunc(results, func(a, b Report) int { return a.Index - b.Index })
	out := BenchReport{
		Runs:    results,
		Workers: workers,
		Elapsed: time.Since(started).String(),
	}
	for _, r := range results {
		if r.Exhausted {
			out.Exhausted++
		}
		out.MaxAllocated = max(out.MaxAllocated, r.Final.Allocated)
	}
	return out, nil
}
