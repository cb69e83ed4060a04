package pool

import (
	"cmp"
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/coachpo/leasepool/internal/observability"
)

type poolKey struct {
	elem     reflect.Type
	growth   int
	capacity int
}

type managedPool interface {
	Status() Status
	Close() error
}

// Manager owns at most one pool per (element type, growth factor, capacity).
// Lookup is safe for concurrent use; the pools it returns are not, and
// neither is Statuses while any of them is in use on another goroutine.
type Manager struct {
	mu     sync.Mutex
	pools  map[poolKey]managedPool
	order  []poolKey
	closed bool
	log    *zap.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger used by the manager and handed to pools
// it creates when they carry no logger of their own.
func WithManagerLogger(log *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewManager constructs an empty manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := new(Manager)
	m.pools = make(map[poolKey]managedPool)
	m.log = zap.NewNop()
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

var (
	defaultManager     *Manager
	defaultManagerOnce sync.Once
)

// Default returns a process-wide manager, created on first use. Prefer an
// explicitly constructed Manager where one can be passed down.
func Default() *Manager {
	defaultManagerOnce.Do(func() {
		defaultManager = NewManager()
	})
	return defaultManager
}

// Lookup returns the pool for T under policy's growth factor and capacity,
// creating it with opts on first request. Later calls with the same key
// return the same pool and ignore opts and InitialSize.
func Lookup[T any](m *Manager, policy Policy, opts ...Option[T]) (*Pool[T], error) {
	key := poolKey{
		elem:     reflect.TypeFor[T](),
		growth:   policy.GrowthFactor,
		capacity: policy.Capacity,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, managerClosedErr()
	}
	if existing, ok := m.pools[key]; ok {
		p, ok := existing.(*Pool[T])
		if !ok {
			return nil, fmt.Errorf("pool manager: pool for %s has unexpected type %T", key.elem, existing)
		}
		return p, nil
	}

	withLogger := make([]Option[T], 0, len(opts)+1)
	withLogger = append(withLogger, WithLogger[T](m.log))
	withLogger = append(withLogger, opts...)
	p, err := New(policy, withLogger...)
	if err != nil {
		return nil, fmt.Errorf("pool manager: create %s: %w", key.elem, err)
	}
	m.pools[key] = p
	m.order = append(m.order, key)
	m.log.Debug("pool registered",
		zap.String("pool", p.Name()),
		zap.Int("growth_factor", policy.GrowthFactor),
		zap.Int("capacity", policy.Capacity),
	)
	return p, nil
}

// Statuses snapshots every registered pool, sorted by name then capacity.
// It reads each pool directly, so the caller must serialise it with pool use.
func (m *Manager) Statuses() []Status {
	m.mu.Lock()
	out := make([]Status, 0, len(m.pools))
	for _, key := range m.order {
		out = append(out, m.pools[key].Status())
	}
	m.mu.Unlock()

	slices.SortStableFunc(out, func(a, b Status) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Capacity, b.Capacity); c != 0 {
			return c
		}
		return cmp.Compare(a.GrowthFactor, b.GrowthFactor)
	})
	return out
}

// Shutdown closes every registered pool and rejects further lookups. Pools
// closed with leases still out contribute to the aggregated error. If ctx is
// cancelled part way the remaining pools stay open and ctx's error is
// included. Calling Shutdown again closes whatever the first call skipped.
func (m *Manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	m.closed = true
	pending := make([]managedPool, 0, len(m.order))
	for _, key := range m.order {
		pending = append(pending, m.pools[key])
	}
	m.mu.Unlock()

	var failures []error
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			failures = append(failures, fmt.Errorf("pool manager: shutdown interrupted: %w", err))
			break
		}
		if err := p.Close(); err != nil {
			failures = append(failures, err)
		}
	}
	return observability.AggregateErrors(m.log, "pool manager shutdown", failures,
		zap.Int("pools", len(pending)),
	)
}
