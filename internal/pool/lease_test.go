package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReleaseIsIdempotent(t *testing.T) {
	p := newTestPool(t, DefaultPolicy())
	l, err := p.Acquire()
	require.NoError(t, err)

	l.Release()
	l.Release()
	require.False(t, l.Valid())
	require.Equal(t, -1, l.Slot())
	require.Equal(t, 10, p.Status().Free)
	require.Equal(t, 0, p.Status().Leased)
}

func TestValueOnReleasedLeasePanics(t *testing.T) {
	p := newTestPool(t, DefaultPolicy())
	l, err := p.Acquire()
	require.NoError(t, err)
	l.Release()

	require.Panics(t, func() { _ = l.Value() })
}

func TestMoveTransfersObligation(t *testing.T) {
	p := newTestPool(t, DefaultPolicy())
	l, err := p.Acquire()
	require.NoError(t, err)
	ptr := l.Value()

	moved := l.Move()
	require.False(t, l.Valid())
	require.True(t, moved.Valid())
	require.Same(t, ptr, moved.Value())

	// Releasing the source must not return the instance.
	l.Release()
	require.Equal(t, 1, p.Status().Leased)

	moved.Release()
	require.Equal(t, 0, p.Status().Leased)
	require.Equal(t, 10, p.Status().Free)
}

func TestMoveOfInertLeaseIsInert(t *testing.T) {
	var l *Lease[resource]
	moved := l.Move()
	require.False(t, moved.Valid())
	moved.Release()
}

func TestNilLeaseIsInert(t *testing.T) {
	var l *Lease[resource]
	require.False(t, l.Valid())
	require.Equal(t, -1, l.Slot())
	require.NotPanics(t, l.Release)
}

func TestCopiedLeaseCannotReleaseTwice(t *testing.T) {
	p := newTestPool(t, DefaultPolicy())
	l, err := p.Acquire()
	require.NoError(t, err)

	dup := &Lease[resource]{pool: l.pool, slot: l.slot, gen: l.gen}
	l.Release()

	require.Panics(t, dup.Release)
	require.Equal(t, 10, p.Status().Free)
}

func TestStaleLeaseCannotTouchReacquiredSlot(t *testing.T) {
	p := newTestPool(t, DefaultPolicy())
	l, err := p.Acquire()
	require.NoError(t, err)

	stale := &Lease[resource]{pool: l.pool, slot: l.slot, gen: l.gen}
	l.Release()

	again, err := p.Acquire()
	require.NoError(t, err)
	require.Equal(t, stale.slot, again.Slot())

	require.Panics(t, func() { _ = stale.Value() })
	require.Panics(t, stale.Release)
	require.True(t, again.Valid())
	require.Equal(t, 1, p.Status().Leased)
	again.Release()
}

func TestLeaseScopedByDefer(t *testing.T) {
	p := newTestPool(t, DefaultPolicy())

	func() {
		l, err := p.Acquire()
		require.NoError(t, err)
		defer l.Release()
		l.Value().uses++
		require.Equal(t, 1, p.Status().Leased)
	}()

	require.Equal(t, 0, p.Status().Leased)
}
