package pool

import (
	"fmt"
	"runtime/debug"
)

// ensureHeld panics unless slot is currently leased under generation gen.
// A mismatch means a lease was copied and released twice, or outlived its slot.
func ensureHeld[T any](p *Pool[T], slot int, gen uint32) {
	if slot >= 0 && slot < len(p.leased) && p.leased[slot] && p.gen[slot] == gen {
		return
	}
	panic(fmt.Sprintf("pool %s: slot %d is not held by this lease\n%s", p.name, slot, debug.Stack()))
}

func markAcquired[T any](p *Pool[T], slot int) {
	p.leased[slot] = true
	p.gen[slot]++
	p.inUse++
}

func markReturned[T any](p *Pool[T], slot int) {
	p.leased[slot] = false
	p.inUse--
}
