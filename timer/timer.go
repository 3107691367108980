// Package timer manages periodic hardware timer instances and dispatches a
// registered callback from the update interrupt.
package timer

import (
	"periphcore-go/errcode"
	"periphcore-go/hal"
	"periphcore-go/irq"
	"periphcore-go/x/mathx"
)

// NumInstances is the fixed size of the instance table.
const NumInstances = 3

// MaxReload is the largest count the 16-bit reload register holds.
const MaxReload = 65535

// DefaultID is the instance DefaultInit configures.
const DefaultID = 1

// BaseUnit is the logical unit a period is expressed in.
type BaseUnit uint8

const (
	Microsecond BaseUnit = iota
	Millisecond
	numBaseUnits
)

func (u BaseUnit) String() string {
	switch u {
	case Microsecond:
		return "us"
	case Millisecond:
		return "ms"
	}
	return "invalid"
}

// prescalers holds the clock divisor per base unit for an 84 MHz timer
// clock: 1 MHz ticks for microseconds, 10 kHz ticks for milliseconds.
var prescalers = [numBaseUnits]uint32{
	Microsecond: 84,
	Millisecond: 8400,
}

// ticksPerUnit converts one period unit into hardware ticks.
var ticksPerUnit = [numBaseUnits]uint32{
	Microsecond: 1,
	Millisecond: 10,
}

// Reload returns the reload count for period in base, clamped to MaxReload.
func Reload(base BaseUnit, period uint32) (uint16, error) {
	if base >= numBaseUnits {
		return 0, errcode.InvalidBaseUnit
	}
	return uint16(mathx.MulSat(period, ticksPerUnit[base], MaxReload)), nil
}

// Prescaler returns the clock divisor used for base.
func Prescaler(base BaseUnit) (uint32, error) {
	if base >= numBaseUnits {
		return 0, errcode.InvalidBaseUnit
	}
	return prescalers[base], nil
}

// Callback runs from interrupt context with all interrupts masked. It must
// not block and must not call back into the timer or serial managers;
// such calls fail with errcode.Reentrant.
type Callback func()

// Config selects an instance and its base unit.
type Config struct {
	ID   int
	Base BaseUnit
}

// State is an instance's lifecycle.
type State uint8

const (
	Unconfigured State = iota
	Configured
	Running
	Stopped // transient, inside Write
	ClosedState
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Configured:
		return "configured"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case ClosedState:
		return "closed"
	}
	return "unknown"
}

type instance struct {
	cfg    Config
	tmr    hal.Timer
	line   hal.Line
	cb     Callback
	period uint32
	reload uint16
	state  State
	fired  uint32
}

func (in *instance) open() bool { return in.state == Running || in.state == Stopped }

// Manager owns the timer instance table for one board.
type Manager struct {
	board hal.Board
	guard *irq.Guard
	tmr   [NumInstances]instance
}

// New returns a manager with every instance Unconfigured.
func New(b hal.Board, g *irq.Guard) *Manager {
	return &Manager{board: b, guard: g}
}

func (m *Manager) lookup(id int) (*instance, error) {
	if id < 0 || id >= NumInstances {
		return nil, errcode.InvalidIndex
	}
	return &m.tmr[id], nil
}

// DefaultInit configures instance DefaultID with a millisecond base.
func (m *Manager) DefaultInit() error {
	return m.Init(Config{ID: DefaultID, Base: Millisecond})
}

// Init stores cfg in its slot. The slot must be Unconfigured.
func (m *Manager) Init(cfg Config) error {
	in, err := m.lookup(cfg.ID)
	if err != nil {
		return err
	}
	if cfg.Base >= numBaseUnits {
		return errcode.InvalidBaseUnit
	}
	return m.withGuard(func() error {
		if in.state != Unconfigured {
			return errcode.AlreadyConfigured
		}
		*in = instance{cfg: cfg, state: Configured}
		return nil
	})
}

// Release returns a Configured or Closed slot to Unconfigured so Init can
// be called again.
func (m *Manager) Release(id int) error {
	in, err := m.lookup(id)
	if err != nil {
		return err
	}
	return m.withGuard(func() error {
		if in.open() {
			return errcode.Busy
		}
		*in = instance{}
		return nil
	})
}

// Open programs the instance for period (in its base unit), registers cb
// and starts the counter. cb runs on every update interrupt until Close.
func (m *Manager) Open(id int, cb Callback, period uint32) error {
	in, err := m.lookup(id)
	if err != nil {
		return err
	}
	if in.state == Unconfigured {
		return errcode.NotConfigured
	}
	if cb == nil {
		return errcode.InvalidCallback
	}
	if in.open() {
		return errcode.AlreadyOpen
	}
	if m.guard.InCallback() {
		return errcode.Reentrant
	}
	div, err := Prescaler(in.cfg.Base)
	if err != nil {
		return err
	}
	reload, _ := Reload(in.cfg.Base, period)
	tmr, line, ok := m.board.Timer(id)
	if !ok {
		return errcode.InvalidIndex
	}

	in.tmr, in.line = tmr, line
	in.cb = cb
	in.period = period
	in.reload = reload

	tmr.SetPrescaler(div)
	tmr.SetReload(reload)
	// Close leaves the count where it stopped; start the first period at 0.
	tmr.ResetCount()
	tmr.ClearUpdate()
	tmr.EnableUpdateInterrupt()
	line.Attach(func() { m.serve(in) })
	line.SetPriority(hal.PriorityHighest)
	line.Enable()
	in.state = Running
	tmr.EnableCounter()
	return nil
}

// Write reprograms a Running instance with newPeriod. The update interrupt
// is masked while the reload changes and any update latched under the old
// reload is discarded, so the next callback after Write returns is a full
// newPeriod away.
func (m *Manager) Write(id int, newPeriod uint32) error {
	in, err := m.lookup(id)
	if err != nil {
		return err
	}
	return m.withGuard(func() error {
		if in.state != Running {
			return errcode.NotOpen
		}
		in.tmr.DisableUpdateInterrupt()
		in.state = Stopped

		reload, _ := Reload(in.cfg.Base, newPeriod)
		in.tmr.SetReload(reload)
		in.tmr.ResetCount()
		in.tmr.ClearUpdate()
		in.period = newPeriod
		in.reload = reload

		in.tmr.EnableUpdateInterrupt()
		in.tmr.EnableCounter()
		in.state = Running
		return nil
	})
}

// Close stops the counter, masks the update interrupt and drops the
// callback. It fails with errcode.NotOpen, changing nothing, when the
// instance is not Running.
func (m *Manager) Close(id int) error {
	in, err := m.lookup(id)
	if err != nil {
		return err
	}
	return m.withGuard(func() error {
		if !in.open() {
			return errcode.NotOpen
		}
		in.tmr.DisableCounter()
		in.tmr.DisableUpdateInterrupt()
		in.cb = nil
		in.state = ClosedState
		return nil
	})
}

// Status is the diagnostic view returned by Read.
type Status struct {
	Open   bool
	Period uint32
	Reload uint16
	Base   BaseUnit
	State  State
	Fired  uint32
}

// Read reports the instance's open flag and configured period.
func (m *Manager) Read(id int) (Status, error) {
	in, err := m.lookup(id)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Open:   in.open(),
		Period: in.period,
		Reload: in.reload,
		Base:   in.cfg.Base,
		State:  in.state,
		Fired:  in.fired,
	}, nil
}

// serve is the update interrupt handler for in.
func (m *Manager) serve(in *instance) {
	if in.tmr == nil || !in.tmr.UpdatePending() {
		return
	}
	in.tmr.ClearUpdate()
	if in.cb == nil || in.state != Running {
		return
	}
	in.fired++
	m.guard.Dispatch(in.cb)
}

func (m *Manager) withGuard(fn func() error) error {
	s, err := m.guard.Enter()
	if err != nil {
		return err
	}
	defer s.Exit()
	return fn()
}
