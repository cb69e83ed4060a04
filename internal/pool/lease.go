package pool

// noCopy makes go vet's copylocks check flag copies of a Lease.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Lease is the exclusive right to use one pooled instance. It returns the
// instance at most once: after Release or Move the lease is inert and every
// further Release is a no-op. Leases must not be copied; pass the pointer or
// hand ownership over with Move.
//
//	lease, err := p.Acquire()
//	if err != nil {
//		return err
//	}
//	defer lease.Release()
type Lease[T any] struct {
	noCopy noCopy

	pool *Pool[T]
	slot int
	gen  uint32
}

// Valid reports whether the lease still holds an instance.
func (l *Lease[T]) Valid() bool {
	return l != nil && l.pool != nil
}

// Slot returns the storage index of the leased instance, or -1 once inert.
func (l *Lease[T]) Slot() int {
	if !l.Valid() {
		return -1
	}
	return l.slot
}

// Value returns the leased instance. It panics on an inert lease.
func (l *Lease[T]) Value() *T {
	if !l.Valid() {
		panic("pool: Value called on a released or moved lease")
	}
	return l.pool.value(l.slot, l.gen)
}

// Move transfers the release obligation to a new lease and leaves l inert.
func (l *Lease[T]) Move() *Lease[T] {
	if !l.Valid() {
		return &Lease[T]{slot: -1}
	}
	moved := &Lease[T]{pool: l.pool, slot: l.slot, gen: l.gen}
	l.pool = nil
	return moved
}

// Release returns the instance to its pool. Safe to call more than once.
func (l *Lease[T]) Release() {
	if !l.Valid() {
		return
	}
	p := l.pool
	l.pool = nil
	p.release(l.slot, l.gen)
}
