// Package serial manages interrupt-driven serial channels.
//
// Each channel owns an RX and a TX ring. The receive interrupt handler is the
// only producer of the RX ring; normal context drains it with Getc. Transmit
// is synchronous: Putc spins on the hardware ready flag.
package serial

import (
	"sync/atomic"

	"periphcore-go/errcode"
	"periphcore-go/hal"
	"periphcore-go/irq"
	"periphcore-go/x/ring"
)

// NumChannels is the fixed size of the channel table.
const NumChannels = 3

// State is a channel's lifecycle.
type State uint8

const (
	Closed    State = iota // no port bound
	Bound                  // port bound and buffers reset, not receiving
	Receiving              // receive interrupt armed
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Bound:
		return "bound"
	case Receiving:
		return "receiving"
	}
	return "unknown"
}

type channel struct {
	id    int
	port  hal.SerialPort // non-nil iff state != Closed
	line  hal.Line
	state atomic.Uint32

	rx ring.Ring
	tx ring.Ring

	rxDrops atomic.Uint32
	rxBytes atomic.Uint32
	txBytes atomic.Uint32
}

func (c *channel) st() State { return State(c.state.Load()) }

// Manager owns the channel table for one board.
type Manager struct {
	board hal.Board
	guard *irq.Guard
	ch    [NumChannels]channel
}

// New returns a manager with every channel Closed. guard must be the
// board-wide guard shared with every other subsystem on the same mask.
func New(b hal.Board, g *irq.Guard) *Manager {
	m := &Manager{board: b, guard: g}
	for i := range m.ch {
		m.ch[i].id = i
	}
	return m
}

func (m *Manager) lookup(id int) (*channel, error) {
	if id < 0 || id >= NumChannels {
		return nil, errcode.InvalidIndex
	}
	return &m.ch[id], nil
}

func (m *Manager) bound(id int) (*channel, error) {
	c, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	if c.st() == Closed {
		return nil, errcode.NotConfigured
	}
	return c, nil
}

// DefaultInit is Init with the board's default port for id.
func (m *Manager) DefaultInit(id int) error { return m.Init(id) }

// Init binds the port for id and resets both rings. The channel ends up
// Bound; call Start to begin receiving. An interrupt enabled by an earlier
// Start stays enabled.
func (m *Manager) Init(id int) error {
	c, err := m.lookup(id)
	if err != nil {
		return err
	}
	port, line, ok := m.board.SerialPort(id)
	if !ok {
		return errcode.InvalidIndex
	}
	return m.guard.Do(func() {
		c.port = port
		c.line = line
		c.rx.Reset()
		c.tx.Reset()
		c.rxDrops.Store(0)
		line.Attach(func() { m.serve(c) })
		c.state.Store(uint32(Bound))
	})
}

// Start enables the receive interrupt condition and arms the vector at the
// highest priority.
func (m *Manager) Start(id int) error {
	c, err := m.bound(id)
	if err != nil {
		return err
	}
	c.port.EnableRxInterrupt()
	c.line.SetPriority(hal.PriorityHighest)
	c.state.Store(uint32(Receiving))
	c.line.Enable()
	return nil
}

// Close clears both rings and unbinds the port. It leaves the interrupt
// line enabled; the handler masks the line the next time it fires without a
// bound port. Closing a Closed channel succeeds.
func (m *Manager) Close(id int) error {
	c, err := m.lookup(id)
	if err != nil {
		return err
	}
	return m.guard.Do(func() {
		c.rx.Reset()
		c.tx.Reset()
		c.port = nil
		c.state.Store(uint32(Closed))
	})
}

// Putc blocks until the transmitter is ready, then writes b. There is no
// timeout: a transmitter that never reports ready blocks the caller forever.
func (m *Manager) Putc(id int, b byte) error {
	c, err := m.bound(id)
	if err != nil {
		return err
	}
	if m.guard.InCallback() {
		return errcode.Reentrant
	}
	for !c.port.TxReady() {
	}
	c.tx.Put(b)
	c.port.WriteData(b)
	c.tx.Get() // transmitted
	c.txBytes.Add(1)
	return nil
}

// Getc returns the oldest received byte, or 0 when nothing is buffered.
// A received 0x00 and "no data" look the same; use Buffered to tell them
// apart.
func (m *Manager) Getc(id int) (byte, error) {
	c, err := m.bound(id)
	if err != nil {
		return 0, err
	}
	if c.rx.Empty() {
		return 0, nil
	}
	var b byte
	// The handler advances get when it overwrites, so read and advance
	// together.
	err = m.guard.Do(func() { b, _ = c.rx.Get() })
	return b, err
}

// ReadBuf is Getc.
func (m *Manager) ReadBuf(id int) (byte, error) { return m.Getc(id) }

// Buffered reports the number of unread received bytes.
func (m *Manager) Buffered(id int) (int, error) {
	c, err := m.bound(id)
	if err != nil {
		return 0, err
	}
	return c.rx.Len(), nil
}

// serve is the receive interrupt handler for c.
func (m *Manager) serve(c *channel) {
	port := c.port
	if port == nil {
		// Stale vector after Close.
		c.line.Disable()
		return
	}
	if !port.RxNotEmpty() {
		return
	}
	b := port.ReadData()
	if c.rx.Put(b) {
		c.rxDrops.Add(1)
	}
	c.rxBytes.Add(1)
}

// Stats is a diagnostic snapshot of one channel.
type Stats struct {
	State   State
	RxLen   int
	RxDrops uint32
	RxBytes uint32
	TxBytes uint32
	RxPut   uint32
	RxGet   uint32
	TxPut   uint32
	TxGet   uint32
}

// Stats returns counters and ring positions for id without mutating it.
func (m *Manager) Stats(id int) (Stats, error) {
	c, err := m.lookup(id)
	if err != nil {
		return Stats{}, err
	}
	s := Stats{
		State:   c.st(),
		RxLen:   c.rx.Len(),
		RxDrops: c.rxDrops.Load(),
		RxBytes: c.rxBytes.Load(),
		TxBytes: c.txBytes.Load(),
	}
	s.RxPut, s.RxGet = c.rx.Indices()
	s.TxPut, s.TxGet = c.tx.Indices()
	return s, nil
}
