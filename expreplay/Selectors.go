package expreplay

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// SelectorType names a method of choosing sequences from a buffer
type SelectorType string

// Available selectors
const (
	Uniform SelectorType = "Uniform"
	Fifo    SelectorType = "Fifo"
)

// Selector chooses the start positions of sequences to sample from a
// buffer. Positions are logical: 0 is the oldest step in the buffer.
type Selector interface {
	// choose returns n start positions in [low, high]
	choose(n, low, high int) []int
}

// NewSelector returns the Selector of the given type
func NewSelector(t SelectorType, seed uint64) (Selector, error) {
	switch t {
	case Uniform, "":
		return NewUniformSelector(seed), nil
	case Fifo:
		return NewFifoSelector(), nil
	default:
		return nil, fmt.Errorf("newselector: unknown selector type %q", t)
	}
}

// uniformSelector chooses start positions uniformly randomly
type uniformSelector struct {
	rng *rand.Rand
}

// NewUniformSelector returns a new Selector which chooses sequences
// uniformly randomly
func NewUniformSelector(seed uint64) Selector {
	return &uniformSelector{rng: rand.New(rand.NewSource(seed))}
}

func (u *uniformSelector) choose(n, low, high int) []int {
	selected := make([]int, n)
	for i := range selected {
		selected[i] = low + u.rng.Intn(high-low+1)
	}
	return selected
}

// fifoSelector sweeps through the buffer from the oldest sequence to
// the newest, wrapping around when the newest sequence is reached.
type fifoSelector struct {
	next int
}

// NewFifoSelector returns a new Selector which chooses sequences in
// the order they were added to the buffer.
func NewFifoSelector() Selector {
	return &fifoSelector{}
}

func (f *fifoSelector) choose(n, low, high int) []int {
	selected := make([]int, n)
	for i := range selected {
		if f.next < low || f.next > high {
			f.next = low
		}
		selected[i] = f.next
		f.next++
	}
	return selected
}
