// Package sim drives a pool with random allocate/release sequences and
// reports how it grew.
package sim

import (
	"math/rand"
	"strings"
)

const (
	residentLine  = "My name is Richard"
	residentLines = 5
)

// Resource is the pooled payload used by simulations: a handful of strings
// so every instance carries real heap state.
type Resource struct {
	Lines []string
}

// InitResource fills r with its resident lines.
func InitResource(r *Resource) {
	if cap(r.Lines) < residentLines {
		r.Lines = make([]string, residentLines)
	}
	r.Lines = r.Lines[:residentLines]
	for i := range r.Lines {
		r.Lines[i] = residentLine
	}
}

// Action is one simulated step.
type Action byte

const (
	// Allocate acquires a lease and keeps it.
	Allocate Action = 'A'
	// Release drops the most recently kept lease.
	Release Action = 'R'
)

func (a Action) String() string { return string(rune(a)) }

// Generate returns n actions, each Allocate or Release with equal odds.
func Generate(n int, rng *rand.Rand) []Action {
	out := make([]Action, 0, max(n, 0))
	for range n {
		if rng.Intn(2) == 1 {
			out = append(out, Allocate)
		} else {
			out = append(out, Release)
		}
	}
	return out
}

// FormatActions renders actions space separated, e.g. "A R A".
func FormatActions(actions []Action) string {
	parts := make([]string, len(actions))
	for i, a := range actions {
		parts[i] = a.String()
	}
	return strings.Join(parts, " ")
}
