package serial

import (
	"io"

	"tinygo.org/x/drivers"
)

var (
	_ drivers.UART = (*Port)(nil)
	_ io.Writer    = Writer{}
)

// Port is a byte-stream view of one channel, usable wherever a TinyGo
// driver expects a drivers.UART.
type Port struct {
	m  *Manager
	id int
}

// Port returns the stream view for id. The channel need not be bound yet;
// operations fail with not_configured until it is.
func (m *Manager) Port(id int) (*Port, error) {
	if _, err := m.lookup(id); err != nil {
		return nil, err
	}
	return &Port{m: m, id: id}, nil
}

// Read drains up to len(p) buffered bytes without blocking. Unlike Getc it
// only returns bytes that were actually received.
func (p *Port) Read(b []byte) (int, error) {
	c, err := p.m.bound(p.id)
	if err != nil {
		return 0, err
	}
	n := 0
	err = p.m.guard.Do(func() { n = c.rx.ReadInto(b) })
	return n, err
}

// Write transmits every byte of b through Putc.
func (p *Port) Write(b []byte) (int, error) { return p.m.Writer(p.id).Write(b) }

// Buffered reports unread received bytes, 0 when the channel is not bound.
func (p *Port) Buffered() int {
	n, _ := p.m.Buffered(p.id)
	return n
}

// Writer is an io.Writer that sends through Putc on one channel. Use it to
// route console output (print, fmt.Fprintf) to a serial port.
type Writer struct {
	m  *Manager
	id int
}

// Writer returns a Writer for id.
func (m *Manager) Writer(id int) Writer { return Writer{m: m, id: id} }

func (w Writer) Write(b []byte) (int, error) {
	for i, c := range b {
		if err := w.m.Putc(w.id, c); err != nil {
			return i, err
		}
	}
	return len(b), nil
}
