//go:build debug

package pool

import (
	"runtime/debug"
	"sort"
	"sync"
)

type debugState struct {
	name   string
	mu     sync.Mutex
	stacks map[int]string
}

func newDebugState(name string) *debugState {
	return &debugState{
		name:   name,
		stacks: make(map[int]string),
	}
}

func (d *debugState) recordAcquire(slot int) {
	if d == nil {
		return
	}
	stack := string(debug.Stack())
	d.mu.Lock()
	d.stacks[slot] = stack
	d.mu.Unlock()
}

func (d *debugState) recordRelease(slot int) {
	if d == nil {
		return
	}
	d.mu.Lock()
	delete(d.stacks, slot)
	d.mu.Unlock()
}

// activeStacks returns acquisition stacks of unreleased leases ordered by slot.
func (d *debugState) activeStacks() []string {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.stacks) == 0 {
		return nil
	}
	slots := make([]int, 0, len(d.stacks))
	for slot := range d.stacks {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	out := make([]string, 0, len(slots))
	for _, slot := range slots {
		out = append(out, d.stacks[slot])
	}
	return out
}
