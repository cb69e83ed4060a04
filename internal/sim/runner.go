package sim

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/coachpo/leasepool/internal/pool"
)

// ErrUnknownAction is returned for an action other than Allocate or Release.
var ErrUnknownAction = errors.New("sim: undefined action")

// Runner applies actions to a single pool, keeping acquired leases on a
// LIFO in-use list. A Runner is not safe for concurrent use.
type Runner struct {
	pool    *pool.Pool[Resource]
	inUse   []*pool.Lease[Resource]
	limiter *rate.Limiter
	trace   io.Writer
	log     *zap.Logger

	acquired int
	released int
	idle     int
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTrace writes the pool status before and after each action to w.
func WithTrace(w io.Writer) RunnerOption {
	return func(r *Runner) {
		r.trace = w
	}
}

// WithRate paces actions to opsPerSecond with the given burst. Zero or
// negative rates leave the runner unpaced.
func WithRate(opsPerSecond float64, burst int) RunnerOption {
	return func(r *Runner) {
		if opsPerSecond <= 0 {
			r.limiter = nil
			return
		}
		r.limiter = rate.NewLimiter(rate.Limit(opsPerSecond), max(burst, 1))
	}
}

// WithRunnerLogger sets the runner logger.
func WithRunnerLogger(log *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRunner wraps p.
func NewRunner(p *pool.Pool[Resource], opts ...RunnerOption) *Runner {
	r := &Runner{pool: p, log: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.log = r.log.Named("sim")
	return r
}

// Held returns the number of leases currently kept by the runner.
func (r *Runner) Held() int { return len(r.inUse) }

// Step applies one action. Release with nothing held is a no-op.
func (r *Runner) Step(a Action) error {
	r.tracef("Before >>> %s\n", r.pool.Status())
	switch a {
	case Allocate:
		lease, err := r.pool.Acquire()
		if err != nil {
			return err
		}
		r.inUse = append(r.inUse, lease)
		r.acquired++
	case Release:
		if len(r.inUse) == 0 {
			r.idle++
			r.tracef("Nothing to release.\n")
			break
		}
		last := len(r.inUse) - 1
		lease := r.inUse[last]
		r.inUse[last] = nil
		r.inUse = r.inUse[:last]
		lease.Release()
		r.released++
	default:
		r.tracef("Undefined action.\n")
		return fmt.Errorf("%w %q", ErrUnknownAction, byte(a))
	}
	r.tracef("After >>> %s\n", r.pool.Status())
	return nil
}

// Run applies actions in order, waiting on the rate limiter between steps.
// It stops at the first failing step; the report covers the steps applied.
// Leases still held afterwards stay with the runner until Drain.
func (r *Runner) Run(ctx context.Context, actions []Action) (Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	r.tracef("Test Cases:\n%s\n", FormatActions(actions))

	var runErr error
	steps := 0
	for i, a := range actions {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				runErr = fmt.Errorf("sim: step %d: %w", i, err)
				break
			}
		} else if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("sim: step %d: %w", i, err)
			break
		}
		if err := r.Step(a); err != nil {
			runErr = fmt.Errorf("sim: step %d (%s): %w", i, a, err)
			break
		}
		steps++
	}

	report := Report{
		Actions:  len(actions),
		Applied:  steps,
		Acquired: r.acquired,
		Released: r.released,
		Idle:     r.idle,
		Held:     len(r.inUse),
		Final:    r.pool.Status(),
	}
	if runErr != nil {
		report.Err = runErr.Error()
		report.Exhausted = errors.Is(runErr, pool.ErrCapacityExceeded)
		r.log.Warn("simulation stopped", zap.Int("applied", steps), zap.Error(runErr))
	}
	return report, runErr
}

// Drain releases every lease the runner still holds, most recent first.
func (r *Runner) Drain() {
	for len(r.inUse) > 0 {
		last := len(r.inUse) - 1
		r.inUse[last].Release()
		r.inUse[last] = nil
		r.inUse = r.inUse[:last]
	}
}

func (r *Runner) tracef(format string, args ...any) {
	if r.trace == nil {
		return
	}
	_, _ = fmt.Fprintf(r.trace, format, args...)
}
