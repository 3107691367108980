//go:build !baremetal

// Package sim is a deterministic single-core board for host builds and
// tests. It models a global interrupt mask, NVIC-style pending bits with a
// single priority level, level-triggered peripheral sources and timer
// counters driven by simulated clock cycles.
//
// A Board must be driven from one goroutine, the way a single core would
// run it. Handlers run synchronously from whichever call unmasks or pends a
// vector.
package sim

import (
	"math/bits"
	"time"

	"github.com/golang/glog"

	"periphcore-go/hal"
)

// Ensure the board satisfies the contracts at compile time.
var (
	_ hal.Board      = (*Board)(nil)
	_ hal.Mask       = (*cpu)(nil)
	_ hal.Line       = (*Line)(nil)
	_ hal.SerialPort = (*Port)(nil)
	_ hal.Timer      = (*Timer)(nil)
)

// Board is a simulated microcontroller.
type Board struct {
	cfg    Config
	cpu    cpu
	ports  []*Port
	timers []*Timer
	lines  []*Line
	seq    uint64
	cycles uint64 // timer-clock cycles elapsed
}

// New builds a board from cfg.
func New(cfg Config) (*Board, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Board{cfg: cfg}
	b.cpu.b = b
	for _, pc := range cfg.Ports {
		p := newPort(pc)
		p.line = b.newLine(pc.Name, pc.IRQ, p.asserted)
		p.b = b
		b.ports = append(b.ports, p)
	}
	for _, tc := range cfg.Timers {
		t := &Timer{name: tc.Name, div: 1}
		t.line = b.newLine(tc.Name, tc.IRQ, t.asserted)
		t.b = b
		b.timers = append(b.timers, t)
	}
	return b, nil
}

// NewDefault builds a board from DefaultConfig.
func NewDefault() *Board {
	b, err := New(DefaultConfig())
	if err != nil {
		panic("sim: default config invalid: " + err.Error())
	}
	return b
}

func (b *Board) newLine(name string, irq int, src func() bool) *Line {
	l := &Line{b: b, name: name, irq: irq, source: src}
	b.lines = append(b.lines, l)
	return l
}

func (b *Board) Config() Config { return b.cfg }

func (b *Board) Mask() hal.Mask { return &b.cpu }

func (b *Board) SerialPort(id int) (hal.SerialPort, hal.Line, bool) {
	p := b.Port(id)
	if p == nil {
		return nil, nil, false
	}
	return p, p.line, true
}

func (b *Board) Timer(id int) (hal.Timer, hal.Line, bool) {
	t := b.Tmr(id)
	if t == nil {
		return nil, nil, false
	}
	return t, t.line, true
}

// Port returns the simulated USART at id, or nil.
func (b *Board) Port(id int) *Port {
	if id < 0 || id >= len(b.ports) {
		return nil
	}
	return b.ports[id]
}

// Tmr returns the simulated timer at id, or nil.
func (b *Board) Tmr(id int) *Timer {
	if id < 0 || id >= len(b.timers) {
		return nil
	}
	return b.timers[id]
}

// Masked reports whether the global mask is currently disabled.
func (b *Board) Masked() bool { return b.cpu.masked }

// Now returns simulated time since the board was created.
func (b *Board) Now() time.Duration {
	hi, lo := bits.Mul64(b.cycles, uint64(time.Second))
	ns, _ := bits.Div64(hi, lo, uint64(b.cfg.TimerClockHz))
	return time.Duration(ns)
}

// Advance runs the timer clock for d of simulated time.
func (b *Board) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	hi, lo := bits.Mul64(uint64(d), uint64(b.cfg.TimerClockHz))
	cycles, _ := bits.Div64(hi, lo, uint64(time.Second))
	b.Step(cycles)
}

// Step runs the timer clock for n cycles, servicing every update event in
// order as it occurs.
func (b *Board) Step(n uint64) {
	for n > 0 {
		step := n
		for _, t := range b.timers {
			if c, ok := t.cyclesToUpdate(); ok && c < step {
				step = c
			}
		}
		var fired []*Timer
		for _, t := range b.timers {
			if t.advance(step) {
				fired = append(fired, t)
			}
		}
		b.cycles += step
		n -= step
		for _, t := range fired {
			t.line.sync()
		}
	}
}

// ---- CPU / global mask ----

type cpu struct {
	b      *Board
	masked bool
	depth  int // nested handler depth
}

const (
	stateEnabled hal.MaskState = 0
	stateMasked  hal.MaskState = 1
)

func (c *cpu) Disable() hal.MaskState {
	prev := stateEnabled
	if c.masked {
		prev = stateMasked
	}
	c.masked = true
	return prev
}

func (c *cpu) Restore(s hal.MaskState) {
	c.masked = s == stateMasked
	c.service()
}

func (c *cpu) In() bool { return c.depth > 0 }

// service delivers pending, enabled vectors in pend order while the mask is
// clear. Handlers never preempt each other.
func (c *cpu) service() {
	if c.masked || c.depth > 0 {
		return
	}
	for {
		var next *Line
		for _, l := range c.b.lines {
			if l.pending && l.enabled && l.isr != nil && (next == nil || l.pendSeq < next.pendSeq) {
				next = l
			}
		}
		if next == nil {
			return
		}
		next.pending = false
		next.fired++
		glog.V(2).Infof("sim: vector %s (irq %d) fired", next.name, next.irq)
		c.depth++
		c.runHandler(next.isr)
		c.depth--
		// Level-triggered: a source still asserted re-pends the vector.
		if next.source != nil && next.source() {
			next.pend()
		}
		if c.masked {
			return
		}
	}
}

func (c *cpu) runHandler(isr func()) {
	// A handler must leave the mask as it found it.
	saved := c.masked
	isr()
	c.masked = saved
}

// ---- Interrupt lines ----

// Line is a simulated NVIC vector.
type Line struct {
	b        *Board
	name     string
	irq      int
	isr      func()
	priority uint8
	enabled  bool
	pending  bool
	pendSeq  uint64
	fired    uint32
	source   func() bool
}

func (l *Line) Attach(isr func()) { l.isr = isr }
func (l *Line) SetPriority(p uint8) { l.priority = p }

func (l *Line) Enable() {
	l.enabled = true
	l.b.cpu.service()
}

func (l *Line) Disable() { l.enabled = false }

// Pend sets the NVIC pending bit, as a spurious or software-triggered
// interrupt would, and services it if possible.
func (l *Line) Pend() {
	l.pend()
	l.b.cpu.service()
}

func (l *Line) pend() {
	if l.pending {
		return
	}
	l.b.seq++
	l.pending = true
	l.pendSeq = l.b.seq
}

// sync latches the pending bit if the peripheral source is asserted.
func (l *Line) sync() {
	if l.source != nil && l.source() {
		l.pend()
	}
	l.b.cpu.service()
}

func (l *Line) Name() string { return l.name }
func (l *Line) IRQ() int { return l.irq }
func (l *Line) Enabled() bool { return l.enabled }
func (l *Line) Pending() bool { return l.pending }
func (l *Line) Priority() uint8 { return l.priority }
func (l *Line) Attached() bool { return l.isr != nil }
func (l *Line) Fired() uint32 { return l.fired }
