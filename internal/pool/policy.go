package pool

import (
	"strconv"

	"github.com/coachpo/leasepool/errs"
)

const (
	// DefaultGrowthFactor multiplies the allocated count on every growth event.
	DefaultGrowthFactor = 1
	// DefaultCapacity bounds the number of instances a pool may ever construct.
	DefaultCapacity = 100000
	// DefaultInitialSize is the number of instances constructed up front.
	DefaultInitialSize = 10
)

// Policy sizes a pool: how many instances to start with, how fast to grow and
// where to stop.
type Policy struct {
	GrowthFactor int `yaml:"growthFactor" json:"growthFactor"`
	Capacity     int `yaml:"capacity" json:"capacity"`
	InitialSize  int `yaml:"initialSize" json:"initialSize"`
}

// DefaultPolicy returns F=1, C=100000 with ten instances pre-allocated.
func DefaultPolicy() Policy {
	return Policy{
		GrowthFactor: DefaultGrowthFactor,
		Capacity:     DefaultCapacity,
		InitialSize:  DefaultInitialSize,
	}
}

// Validate rejects non-positive factors, capacities and initial sizes.
func (p Policy) Validate() error {
	switch {
	case p.GrowthFactor < 1:
		return invalidPolicy("growthFactor must be >=1", "growthFactor", p.GrowthFactor)
	case p.Capacity < 1:
		return invalidPolicy("capacity must be >=1", "capacity", p.Capacity)
	case p.InitialSize < 1:
		return invalidPolicy("initialSize must be >=1", "initialSize", p.InitialSize)
	}
	return nil
}

// Grow returns how many instances to construct when the free list is empty
// and allocated instances already exist:
//
//	F*A    if A < C - F*A
//	C - A  otherwise
//
// A result <= 0 means the pool is exhausted. The comparison is rearranged so
// F*A is never computed when it could overflow.
func (p Policy) Grow(allocated int) int {
	remaining := p.Capacity - allocated
	if remaining <= 0 {
		return 0
	}
	if allocated <= 0 {
		return 0
	}
	if p.GrowthFactor <= (remaining-1)/allocated {
		return p.GrowthFactor * allocated
	}
	return remaining
}

// initial is the pre-allocation count, clamped to capacity.
func (p Policy) initial() int {
	return min(p.InitialSize, p.Capacity)
}

func invalidPolicy(msg, field string, value int) error {
	return errs.New("pool", errs.CodeInvalid,
		errs.WithMessage(msg),
		errs.WithField(field, strconv.Itoa(value)),
		errs.WithCause(ErrInvalidPolicy),
	)
}
