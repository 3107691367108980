// Package irq wraps the global interrupt mask in a scoped critical-section
// guard and dispatches application callbacks from interrupt context.
//
// One Guard exists per board. It is only sound on a single core: masking
// interrupts is the sole mutual-exclusion primitive.
package irq

import (
	"sync/atomic"

	"periphcore-go/errcode"
	"periphcore-go/hal"
)

// Guard serialises normal-context multi-step mutations against handlers.
type Guard struct {
	mask        hal.Mask
	dispatching atomic.Bool
	dispatches  atomic.Uint32
}

// New returns a guard over the board's global mask.
func New(m hal.Mask) *Guard {
	return &Guard{mask: m}
}

// Section is an acquired critical section. Exit is idempotent.
type Section struct {
	g      *Guard
	st     hal.MaskState
	active bool
}

// Enter masks interrupts. It fails with errcode.Reentrant while a callback
// is being dispatched, leaving the mask untouched.
func (g *Guard) Enter() (Section, error) {
	if g.dispatching.Load() {
		return Section{}, errcode.Reentrant
	}
	return Section{g: g, st: g.mask.Disable(), active: true}, nil
}

// Exit restores the mask state captured by Enter.
func (s *Section) Exit() {
	if !s.active {
		return
	}
	s.active = false
	s.g.mask.Restore(s.st)
}

// Do runs fn inside a critical section.
func (g *Guard) Do(fn func()) error {
	s, err := g.Enter()
	if err != nil {
		return err
	}
	defer s.Exit()
	fn()
	return nil
}

// Dispatch runs cb from interrupt context with the global mask disabled for
// the duration of the call, so cb appears atomic to every other source.
func (g *Guard) Dispatch(cb func()) {
	if cb == nil {
		return
	}
	st := g.mask.Disable()
	g.dispatching.Store(true)
	defer func() {
		g.dispatching.Store(false)
		g.mask.Restore(st)
	}()
	g.dispatches.Add(1)
	cb()
}

// InCallback reports whether a dispatched callback is currently running.
func (g *Guard) InCallback() bool { return g.dispatching.Load() }

// Dispatches counts callbacks run through Dispatch.
func (g *Guard) Dispatches() uint32 { return g.dispatches.Load() }
