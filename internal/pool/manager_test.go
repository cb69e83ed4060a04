package pool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/coachpo/leasepool/errs"
)

type widget struct{ id int }

func TestLookupReturnsSamePoolPerKey(t *testing.T) {
	m := NewManager(WithManagerLogger(zaptest.NewLogger(t)))

	first, err := Lookup[resource](m, DefaultPolicy())
	require.NoError(t, err)
	second, err := Lookup[resource](m, DefaultPolicy())
	require.NoError(t, err)
	require.Same(t, first, second)

	l, err := first.Acquire()
	require.NoError(t, err)
	require.Equal(t, 9, second.Status().Free)
	l.Release()
}

func TestLookupDistinguishesTypeAndPolicy(t *testing.T) {
	m := NewManager()

	base, err := Lookup[resource](m, DefaultPolicy())
	require.NoError(t, err)

	otherCap, err := Lookup[resource](m, Policy{GrowthFactor: 1, Capacity: 50, InitialSize: 10})
	require.NoError(t, err)
	require.NotSame(t, base, otherCap)

	otherFactor, err := Lookup[resource](m, Policy{GrowthFactor: 2, Capacity: 100000, InitialSize: 10})
	require.NoError(t, err)
	require.NotSame(t, base, otherFactor)

	widgets, err := Lookup[widget](m, DefaultPolicy())
	require.NoError(t, err)
	require.Equal(t, "pool.widget", widgets.Name())

	require.Len(t, m.Statuses(), 4)
}

func TestLookupIgnoresInitialSizeForExistingPool(t *testing.T) {
	m := NewManager()
	first, err := Lookup[resource](m, Policy{GrowthFactor: 1, Capacity: 100, InitialSize: 5})
	require.NoError(t, err)
	second, err := Lookup[resource](m, Policy{GrowthFactor: 1, Capacity: 100, InitialSize: 50})
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, 5, second.Status().Allocated)
}

func TestLookupRejectsInvalidPolicy(t *testing.T) {
	m := NewManager()
	_, err := Lookup[resource](m, Policy{GrowthFactor: 0, Capacity: 10, InitialSize: 1})
	require.ErrorIs(t, err, ErrInvalidPolicy)
	require.Empty(t, m.Statuses())
}

func TestStatusesSorted(t *testing.T) {
	m := NewManager()
	_, err := Lookup[widget](m, Policy{GrowthFactor: 1, Capacity: 20, InitialSize: 1})
	require.NoError(t, err)
	_, err = Lookup[resource](m, Policy{GrowthFactor: 1, Capacity: 30, InitialSize: 1})
	require.NoError(t, err)
	_, err = Lookup[resource](m, Policy{GrowthFactor: 1, Capacity: 10, InitialSize: 1})
	require.NoError(t, err)

	statuses := m.Statuses()
	require.Len(t, statuses, 3)
	require.Equal(t, "pool.resource", statuses[0].Name)
	require.Equal(t, 10, statuses[0].Capacity)
	require.Equal(t, 30, statuses[1].Capacity)
	require.Equal(t, "pool.widget", statuses[2].Name)
}

func TestShutdownClosesPoolsAndRejectsLookups(t *testing.T) {
	m := NewManager(WithManagerLogger(zaptest.NewLogger(t)))
	p, err := Lookup[resource](m, DefaultPolicy())
	require.NoError(t, err)

	require.NoError(t, m.Shutdown(context.Background()))
	require.True(t, p.Status().Closed)

	_, err = Lookup[resource](m, DefaultPolicy())
	require.ErrorIs(t, err, ErrManagerClosed)
	require.True(t, errs.IsCode(err, errs.CodeClosed))
}

func TestShutdownAggregatesOutstandingLeases(t *testing.T) {
	m := NewManager()
	resources, err := Lookup[resource](m, DefaultPolicy())
	require.NoError(t, err)
	widgets, err := Lookup[widget](m, DefaultPolicy())
	require.NoError(t, err)

	r, err := resources.Acquire()
	require.NoError(t, err)
	w, err := widgets.Acquire()
	require.NoError(t, err)

	err = m.Shutdown(context.Background())
	require.ErrorIs(t, err, ErrOutstandingLeases)
	require.Contains(t, err.Error(), "pool manager shutdown failed")

	r.Release()
	w.Release()
	require.Equal(t, 0, resources.Status().Leased)
}

func TestShutdownHonoursCancelledContext(t *testing.T) {
	m := NewManager()
	p, err := Lookup[resource](m, DefaultPolicy())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = m.Shutdown(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, p.Status().Closed)

	require.NoError(t, m.Shutdown(context.Background()))
	require.True(t, p.Status().Closed)
}

func TestDefaultManagerIsShared(t *testing.T) {
	require.Same(t, Default(), Default())
}
