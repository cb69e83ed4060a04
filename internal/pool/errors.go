package pool

import (
	"errors"
	"strconv"

	"github.com/coachpo/leasepool/errs"
)

var (
	// ErrCapacityExceeded indicates the free list was empty and the growth policy yielded no new instances.
	ErrCapacityExceeded = errors.New("pool: capacity exceeded")
	// ErrClosed indicates the pool has been closed and no longer hands out leases.
	ErrClosed = errors.New("pool: closed")
	// ErrOutstandingLeases indicates a pool was closed while leases were still held.
	ErrOutstandingLeases = errors.New("pool: leases outstanding at close")
	// ErrInvalidPolicy indicates a growth policy failed validation.
	ErrInvalidPolicy = errors.New("pool: invalid policy")
	// ErrManagerClosed indicates the manager is shutting down and cannot create pools.
	ErrManagerClosed = errors.New("pool manager: shut down")
)

func capacityExceeded(s Status) error {
	return errs.New("pool", errs.CodeCapacityExceeded,
		errs.WithMessage("free list empty and growth policy yields no instances"),
		errs.WithMetadata(map[string]string{
			"pool":      s.Name,
			"capacity":  strconv.Itoa(s.Capacity),
			"allocated": strconv.Itoa(s.Allocated),
		}),
		errs.WithRemediation("release outstanding leases or raise capacity"),
		errs.WithCause(ErrCapacityExceeded),
	)
}

func closedErr(name string) error {
	return errs.New("pool", errs.CodeClosed,
		errs.WithField("pool", name),
		errs.WithCause(ErrClosed),
	)
}

func managerClosedErr() error {
	return errs.New("pool manager", errs.CodeClosed,
		errs.WithRemediation("look pools up before Shutdown"),
		errs.WithCause(ErrManagerClosed),
	)
}

func outstandingErr(name string, outstanding int, stacks []string) error {
	opts := []errs.Option{
		errs.WithMessage(strconv.Itoa(outstanding) + " leases not released"),
		errs.WithField("pool", name),
		errs.WithCause(ErrOutstandingLeases),
	}
	if len(stacks) > 0 {
		opts = append(opts, errs.WithField("first_acquired_at", stacks[0]))
	}
	return errs.New("pool", errs.CodeOutstanding, opts...)
}
