package irq

import (
	"testing"

	"periphcore-go/errcode"
	"periphcore-go/hal"
)

// fakeMask counts nesting like a PRIMASK save/restore pair.
type fakeMask struct {
	masked bool
	calls  int
}

func (m *fakeMask) Disable() hal.MaskState {
	prev := m.masked
	m.masked = true
	m.calls++
	if prev {
		return 1
	}
	return 0
}

func (m *fakeMask) Restore(s hal.MaskState) { m.masked = s == 1 }
func (m *fakeMask) In() bool { return false }

func TestSectionRestoresOnce(t *testing.T) {
	m := &fakeMask{}
	g := New(m)

	s, err := g.Enter()
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if !m.masked {
		t.Fatal("mask not disabled inside section")
	}
	s.Exit()
	s.Exit()
	if m.masked {
		t.Fatal("mask still disabled after Exit")
	}
}

func TestNestedSectionsKeepOuterMask(t *testing.T) {
	m := &fakeMask{}
	g := New(m)
	outer, _ := g.Enter()
	if err := g.Do(func() {}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !m.masked {
		t.Fatal("inner section unmasked the outer one")
	}
	outer.Exit()
	if m.masked {
		t.Fatal("mask left disabled")
	}
}

func TestDispatchRejectsReentry(t *testing.T) {
	m := &fakeMask{}
	g := New(m)

	var inner error
	var maskedDuring bool
	g.Dispatch(func() {
		maskedDuring = m.masked
		inner = g.Do(func() { t.Fatal("guard acquired from callback") })
	})
	if !maskedDuring {
		t.Fatal("callback ran with interrupts enabled")
	}
	if inner != errcode.Reentrant {
		t.Fatalf("inner Enter = %v, want reentrant", inner)
	}
	if g.InCallback() || m.masked {
		t.Fatal("dispatch state not restored")
	}
	if g.Dispatches() != 1 {
		t.Fatalf("Dispatches = %d", g.Dispatches())
	}
	g.Dispatch(nil)
	if g.Dispatches() != 1 {
		t.Fatal("nil callback counted")
	}
}

func TestDispatchRestoresAfterPanic(t *testing.T) {
	m := &fakeMask{}
	g := New(m)
	func() {
		defer func() { _ = recover() }()
		g.Dispatch(func() { panic("cb") })
	}()
	if g.InCallback() || m.masked {
		t.Fatal("panic left the guard held")
	}
}
