// Package pool contains a bounded, growth-controlled object pool that hands
// out scoped, release-once leases.
//
// A Pool is not safe for concurrent use. Callers sharing one across
// goroutines must serialise access themselves.
package pool

import (
	"reflect"

	"go.uber.org/zap"
)

// Pool owns every instance of T it constructs. Instances live in fixed chunks
// that are never reallocated, so pointers handed out through leases stay
// valid for the lifetime of the lease. Unleased slots sit on a LIFO free list.
type Pool[T any] struct {
	name   string
	policy Policy

	chunks [][]T
	slots  []*T
	leased []bool
	gen    []uint32
	free   []int

	allocated int
	inUse     int
	closed    bool

	init     func(*T)
	reset    func(*T)
	log      *zap.Logger
	observer Observer
	debug    *debugState
}

// New validates policy and constructs a pool with min(InitialSize, Capacity)
// instances already on the free list.
func New[T any](policy Policy, opts ...Option[T]) (*Pool[T], error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	p := new(Pool[T])
	p.name = reflect.TypeFor[T]().String()
	p.policy = policy
	p.log = zap.NewNop()
	p.observer = noopObserver{}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.log = p.log.Named("pool").With(zap.String("pool", p.name))
	p.debug = newDebugState(p.name)

	p.grow(policy.initial())
	return p, nil
}

// Name returns the pool label.
func (p *Pool[T]) Name() string { return p.name }

// Policy returns the growth policy the pool was built with.
func (p *Pool[T]) Policy() Policy { return p.policy }

// Acquire leases the most recently released instance. When the free list is
// empty the pool grows according to its policy; if the policy yields nothing
// the returned error wraps ErrCapacityExceeded and the pool is unchanged.
func (p *Pool[T]) Acquire() (*Lease[T], error) {
	if p.closed {
		return nil, closedErr(p.name)
	}

	if len(p.free) == 0 {
		n := p.policy.Grow(p.allocated)
		if n <= 0 {
			s := p.Status()
			p.observer.OnExhausted(s)
			p.log.Warn("capacity exceeded",
				zap.Int("capacity", s.Capacity),
				zap.Int("allocated", s.Allocated),
			)
			return nil, capacityExceeded(s)
		}
		p.grow(n)
		p.log.Debug("pool grown", zap.Int("added", n), zap.Int("allocated", p.allocated))
		p.observer.OnGrow(n, p.Status())
	}

	last := len(p.free) - 1
	slot := p.free[last]
	p.free = p.free[:last]

	markAcquired(p, slot)
	p.debug.recordAcquire(slot)
	p.observer.OnAcquire(p.Status())

	return &Lease[T]{pool: p, slot: slot, gen: p.gen[slot]}, nil
}

// With acquires a lease, passes its instance to fn and releases it on every
// exit path, including a panic inside fn.
func (p *Pool[T]) With(fn func(*T) error) error {
	lease, err := p.Acquire()
	if err != nil {
		return err
	}
	defer lease.Release()
	return fn(lease.Value())
}

// Status reports the current counters without changing anything.
func (p *Pool[T]) Status() Status {
	return Status{
		Name:         p.name,
		GrowthFactor: p.policy.GrowthFactor,
		Capacity:     p.policy.Capacity,
		Free:         len(p.free),
		Allocated:    p.allocated,
		Leased:       p.inUse,
		Closed:       p.closed,
	}
}

// Close stops the pool from handing out leases and drops every free instance.
// Leases still held keep their instance until released; the remaining storage
// goes away with the last of them. A non-nil error wrapping
// ErrOutstandingLeases lists how many were still out. Closing twice is a no-op.
func (p *Pool[T]) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.free = nil

	if p.inUse == 0 {
		p.dropStorage()
		p.log.Debug("pool closed")
		return nil
	}

	stacks := p.debug.activeStacks()
	p.log.Warn("pool closed with outstanding leases",
		zap.Int("outstanding", p.inUse),
		zap.Strings("acquired_at", stacks),
	)
	return outstandingErr(p.name, p.inUse, stacks)
}

func (p *Pool[T]) grow(n int) {
	chunk := make([]T, n)
	base := len(p.slots)
	for i := range chunk {
		if p.init != nil {
			p.init(&chunk[i])
		}
		p.slots = append(p.slots, &chunk[i])
		p.leased = append(p.leased, false)
		p.gen = append(p.gen, 0)
	}
	// Pushed in reverse so the lowest new slot is handed out first.
	for i := n - 1; i >= 0; i-- {
		p.free = append(p.free, base+i)
	}
	p.chunks = append(p.chunks, chunk)
	p.allocated += n
}

func (p *Pool[T]) value(slot int, gen uint32) *T {
	ensureHeld(p, slot, gen)
	return p.slots[slot]
}

func (p *Pool[T]) release(slot int, gen uint32) {
	ensureHeld(p, slot, gen)
	markReturned(p, slot)
	p.debug.recordRelease(slot)

	if p.closed {
		if p.inUse == 0 {
			p.dropStorage()
			p.log.Debug("last outstanding lease released after close")
		}
		return
	}

	// The slot goes back on the free list even if the reset hook panics.
	defer func() {
		p.free = append(p.free, slot)
		p.observer.OnRelease(p.Status())
	}()
	if p.reset != nil {
		p.reset(p.slots[slot])
	}
}

func (p *Pool[T]) dropStorage() {
	p.chunks = nil
	p.slots = nil
	p.leased = nil
	p.gen = nil
	p.free = nil
}
