package pool

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/coachpo/leasepool/errs"
)

type resource struct {
	lines []string
	uses  int
}

func newTestPool(t *testing.T, policy Policy, opts ...Option[resource]) *Pool[resource] {
	t.Helper()
	p, err := New(policy, opts...)
	require.NoError(t, err)
	return p
}

func TestNewPreallocatesInitialSize(t *testing.T) {
	p := newTestPool(t, DefaultPolicy())
	s := p.Status()
	require.Equal(t, 10, s.Free)
	require.Equal(t, 10, s.Allocated)
	require.Equal(t, 0, s.Leased)
	require.Equal(t, 1, s.GrowthFactor)
	require.Equal(t, 100000, s.Capacity)
	require.Equal(t, "pool.resource", s.Name)
}

func TestNewRejectsInvalidPolicy(t *testing.T) {
	_, err := New[resource](Policy{GrowthFactor: 1, Capacity: 0, InitialSize: 1})
	require.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestNewClampsInitialToCapacity(t *testing.T) {
	p := newTestPool(t, Policy{GrowthFactor: 1, Capacity: 4, InitialSize: 10})
	require.Equal(t, 4, p.Status().Allocated)
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p := newTestPool(t, DefaultPolicy())

	lease, err := p.Acquire()
	require.NoError(t, err)
	require.Equal(t, 9, p.Status().Free)
	require.Equal(t, 1, p.Status().Leased)

	lease.Release()
	require.Equal(t, 10, p.Status().Free)
	require.Equal(t, 10, p.Status().Allocated)
	require.Equal(t, 0, p.Status().Leased)
}

func TestEleventhAcquireGrowsByTen(t *testing.T) {
	p := newTestPool(t, DefaultPolicy())

	leases := make([]*Lease[resource], 0, 11)
	for range 10 {
		l, err := p.Acquire()
		require.NoError(t, err)
		leases = append(leases, l)
	}
	require.Equal(t, 0, p.Status().Free)

	l, err := p.Acquire()
	require.NoError(t, err)
	leases = append(leases, l)

	s := p.Status()
	require.Equal(t, 20, s.Allocated)
	require.Equal(t, 9, s.Free)

	for _, l := range leases {
		l.Release()
	}
	require.Equal(t, 20, p.Status().Free)
}

func TestCapacityExceededLeavesPoolUnchanged(t *testing.T) {
	p := newTestPool(t, Policy{GrowthFactor: 1, Capacity: 10, InitialSize: 10})

	held := make([]*Lease[resource], 0, 10)
	for range 10 {
		l, err := p.Acquire()
		require.NoError(t, err)
		held = append(held, l)
	}
	before := p.Status()

	l, err := p.Acquire()
	require.Nil(t, l)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrCapacityExceeded))
	require.True(t, errs.IsCode(err, errs.CodeCapacityExceeded))
	require.Equal(t, before, p.Status())

	held[0].Release()
	l, err = p.Acquire()
	require.NoError(t, err)
	l.Release()
}

func TestGrowthClampsToCapacity(t *testing.T) {
	p := newTestPool(t, Policy{GrowthFactor: 1, Capacity: 15, InitialSize: 10})
	held := make([]*Lease[resource], 0, 15)
	for range 11 {
		l, err := p.Acquire()
		require.NoError(t, err)
		held = append(held, l)
	}
	require.Equal(t, 15, p.Status().Allocated)
	require.Equal(t, 4, p.Status().Free)
	for _, l := range held {
		l.Release()
	}
}

func TestReleaseIsLIFO(t *testing.T) {
	p := newTestPool(t, DefaultPolicy())

	a, err := p.Acquire()
	require.NoError(t, err)
	b, err := p.Acquire()
	require.NoError(t, err)

	aPtr, bPtr := a.Value(), b.Value()
	a.Release()
	b.Release()

	next, err := p.Acquire()
	require.NoError(t, err)
	require.Same(t, bPtr, next.Value())
	next.Release()

	next, err = p.Acquire()
	require.NoError(t, err)
	require.Same(t, bPtr, next.Value())
	require.NotSame(t, aPtr, next.Value())
	next.Release()
}

func TestFirstAcquireReturnsLowestSlot(t *testing.T) {
	p := newTestPool(t, DefaultPolicy())
	l, err := p.Acquire()
	require.NoError(t, err)
	require.Equal(t, 0, l.Slot())
	l.Release()
}

func TestStateSurvivesReleaseWithoutReset(t *testing.T) {
	p := newTestPool(t, DefaultPolicy())

	l, err := p.Acquire()
	require.NoError(t, err)
	l.Value().uses = 7
	l.Release()

	l, err = p.Acquire()
	require.NoError(t, err)
	require.Equal(t, 7, l.Value().uses)
	l.Release()
}

func TestPanickingResetStillReturnsSlot(t *testing.T) {
	p := newTestPool(t, Policy{GrowthFactor: 1, Capacity: 2, InitialSize: 2},
		WithReset(func(r *resource) {
			if r.uses > 0 {
				panic("reset failed")
			}
		}))

	lease, err := p.Acquire()
	require.NoError(t, err)
	lease.Value().uses = 1
	require.Panics(t, lease.Release)

	s := p.Status()
	require.Equal(t, 0, s.Leased)
	require.Equal(t, 2, s.Free)
	require.Equal(t, s.Allocated, s.Free+s.Leased)

	// Both instances are still reachable.
	a, err := p.Acquire()
	require.NoError(t, err)
	b, err := p.Acquire()
	require.NoError(t, err)
	require.NotEqual(t, a.Slot(), b.Slot())
}

func TestResetHookRunsOnRelease(t *testing.T) {
	p := newTestPool(t, DefaultPolicy(), WithReset(func(r *resource) { r.uses = 0 }))

	l, err := p.Acquire()
	require.NoError(t, err)
	l.Value().uses = 7
	l.Release()

	l, err = p.Acquire()
	require.NoError(t, err)
	require.Zero(t, l.Value().uses)
	l.Release()
}

func TestInitHookRunsOncePerConstructedInstance(t *testing.T) {
	calls := 0
	p := newTestPool(t, Policy{GrowthFactor: 2, Capacity: 100, InitialSize: 2},
		WithInit(func(r *resource) {
			calls++
			r.lines = []string{"ready"}
		}),
	)
	require.Equal(t, 2, calls)

	held := make([]*Lease[resource], 0, 3)
	for range 3 {
		l, err := p.Acquire()
		require.NoError(t, err)
		require.Equal(t, []string{"ready"}, l.Value().lines)
		held = append(held, l)
	}
	require.Equal(t, 6, calls)
	require.Equal(t, 6, p.Status().Allocated)
	for _, l := range held {
		l.Release()
	}
}

func TestPointersStableAcrossGrowth(t *testing.T) {
	p := newTestPool(t, Policy{GrowthFactor: 1, Capacity: 1000, InitialSize: 1})

	first, err := p.Acquire()
	require.NoError(t, err)
	ptr := first.Value()
	ptr.uses = 42

	held := make([]*Lease[resource], 0, 100)
	for range 100 {
		l, err := p.Acquire()
		require.NoError(t, err)
		held = append(held, l)
	}
	require.Same(t, ptr, first.Value())
	require.Equal(t, 42, first.Value().uses)

	first.Release()
	for _, l := range held {
		l.Release()
	}
}

func TestWithReleasesOnSuccessAndError(t *testing.T) {
	p := newTestPool(t, DefaultPolicy())

	require.NoError(t, p.With(func(r *resource) error {
		require.Equal(t, 1, p.Status().Leased)
		return nil
	}))
	require.Equal(t, 0, p.Status().Leased)

	boom := errors.New("boom")
	require.ErrorIs(t, p.With(func(*resource) error { return boom }), boom)
	require.Equal(t, 0, p.Status().Leased)
	require.Equal(t, 10, p.Status().Free)
}

func TestWithReleasesOnPanic(t *testing.T) {
	p := newTestPool(t, DefaultPolicy())

	require.Panics(t, func() {
		_ = p.With(func(*resource) error { panic("unwind") })
	})
	require.Equal(t, 0, p.Status().Leased)
	require.Equal(t, 10, p.Status().Free)
}

func TestWithSurfacesCapacityExceeded(t *testing.T) {
	p := newTestPool(t, Policy{GrowthFactor: 1, Capacity: 1, InitialSize: 1})
	l, err := p.Acquire()
	require.NoError(t, err)

	called := false
	err = p.With(func(*resource) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrCapacityExceeded)
	require.False(t, called)
	l.Release()
}

func TestCloseWithoutOutstanding(t *testing.T) {
	p := newTestPool(t, DefaultPolicy())
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	s := p.Status()
	require.True(t, s.Closed)
	require.Equal(t, 0, s.Free)

	_, err := p.Acquire()
	require.ErrorIs(t, err, ErrClosed)
	require.True(t, errs.IsCode(err, errs.CodeClosed))
}

func TestCloseReportsOutstandingLeases(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p := newTestPool(t, DefaultPolicy(), WithLogger[resource](zap.New(core)))

	l, err := p.Acquire()
	require.NoError(t, err)
	ptr := l.Value()

	err = p.Close()
	require.ErrorIs(t, err, ErrOutstandingLeases)
	require.True(t, errs.IsCode(err, errs.CodeOutstanding))
	require.Equal(t, 1, logs.FilterMessage("pool closed with outstanding leases").Len())

	// The held instance stays usable until its lease goes away.
	require.Same(t, ptr, l.Value())
	l.Release()

	s := p.Status()
	require.Equal(t, 0, s.Leased)
	require.Equal(t, 0, s.Free)
}

func TestInvariantsHoldUnderRandomSequence(t *testing.T) {
	policy := Policy{GrowthFactor: 2, Capacity: 50, InitialSize: 3}
	p := newTestPool(t, policy)
	rng := rand.New(rand.NewSource(7))

	var held []*Lease[resource]
	seen := make(map[*resource]struct{})
	for range 2000 {
		if rng.Intn(2) == 0 {
			l, err := p.Acquire()
			if err != nil {
				require.ErrorIs(t, err, ErrCapacityExceeded)
				require.Equal(t, policy.Capacity, p.Status().Allocated)
				require.Len(t, held, policy.Capacity)
				continue
			}
			held = append([]*Lease[resource]{l}, held...)
		} else if len(held) > 0 {
			held[0].Release()
			held = held[1:]
		}

		s := p.Status()
		require.LessOrEqual(t, s.Allocated, s.Capacity)
		require.Equal(t, s.Allocated, s.Free+s.Leased)
		require.Equal(t, len(held), s.Leased)

		clear(seen)
		for _, l := range held {
			v := l.Value()
			_, dup := seen[v]
			require.False(t, dup, "instance leased twice")
			seen[v] = struct{}{}
		}
	}
}

type recordingObserver struct {
	acquires, releases, exhausted int
	grown                         []int
}

func (r *recordingObserver) OnAcquire(Status)       { r.acquires++ }
func (r *recordingObserver) OnRelease(Status)       { r.releases++ }
func (r *recordingObserver) OnGrow(n int, _ Status) { r.grown = append(r.grown, n) }
func (r *recordingObserver) OnExhausted(Status)     { r.exhausted++ }

func TestObserverNotifications(t *testing.T) {
	obs := &recordingObserver{}
	p := newTestPool(t, Policy{GrowthFactor: 1, Capacity: 3, InitialSize: 2}, WithObserver[resource](obs))

	a, err := p.Acquire()
	require.NoError(t, err)
	b, err := p.Acquire()
	require.NoError(t, err)
	c, err := p.Acquire()
	require.NoError(t, err)
	_, err = p.Acquire()
	require.Error(t, err)

	a.Release()
	b.Release()
	c.Release()

	require.Equal(t, 3, obs.acquires)
	require.Equal(t, 3, obs.releases)
	require.Equal(t, 1, obs.exhausted)
	require.Equal(t, []int{1}, obs.grown)
}

func TestStatusString(t *testing.T) {
	p := newTestPool(t, DefaultPolicy())
	require.Equal(t,
		"Object Pool Status: Growth Factor = 1; Capacity = 100000; Current Free Objects Number = 10; Current Total Allocated Number = 10; ",
		p.Status().String(),
	)
}

func TestStatusJSON(t *testing.T) {
	p := newTestPool(t, DefaultPolicy(), WithName[resource]("resources"))
	data, err := EncodeJSON(p.Status())
	require.NoError(t, err)
	require.JSONEq(t,
		`{"name":"resources","growthFactor":1,"capacity":100000,"free":10,"allocated":10,"leased":0,"closed":false}`,
		string(data),
	)
}
