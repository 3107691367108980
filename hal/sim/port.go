//go:build !baremetal

package sim

import (
	"bytes"

	"github.com/jangala-dev/tinygo-uartx/uartx"
)

// Port is a simulated USART. Incoming bytes queue in a host uartx.UART,
// which stands in for the receive FIFO behind the data register.
type Port struct {
	b    *Board
	line *Line
	name string

	rx      *uartx.UART
	rxie    bool
	rxReads uint32

	tx        bytes.Buffer
	txLatency int
	txBusy    int
	txPolls   uint32
}

func newPort(pc PortConfig) *Port {
	return &Port{name: pc.Name, rx: new(uartx.UART), txLatency: pc.TxLatency}
}

func (p *Port) asserted() bool { return p.rxie && p.rx.Buffered() > 0 }

func (p *Port) EnableRxInterrupt() {
	p.rxie = true
	p.line.sync()
}

func (p *Port) RxNotEmpty() bool { return p.rx.Buffered() > 0 }

// ReadData pops the oldest received byte. Reading an empty data register
// returns zero, like stale hardware contents would.
func (p *Port) ReadData() byte {
	p.rxReads++
	c, err := p.rx.ReadByte()
	if err != nil {
		return 0
	}
	return c
}

func (p *Port) TxReady() bool {
	p.txPolls++
	if p.txBusy > 0 {
		p.txBusy--
		return false
	}
	return true
}

func (p *Port) WriteData(c byte) {
	p.tx.WriteByte(c)
	p.txBusy = p.txLatency
}

// Inject delivers bytes on the wire one at a time. Each byte raises the
// receive interrupt as soon as it lands, if the vector can be serviced.
func (p *Port) Inject(data ...byte) {
	for _, c := range data {
		p.rx.Receive(c)
		p.line.sync()
	}
}

// Transmitted returns a copy of every byte written to the data register.
func (p *Port) Transmitted() []byte { return append([]byte(nil), p.tx.Bytes()...) }

// ResetTransmitted discards the captured TX history.
func (p *Port) ResetTransmitted() { p.tx.Reset() }

// SetTxLatency changes how many TxReady polls report busy after each write.
func (p *Port) SetTxLatency(n int) { p.txLatency = n }

func (p *Port) Name() string { return p.name }
func (p *Port) Line() *Line { return p.line }
func (p *Port) RxInterruptEnabled() bool { return p.rxie }
func (p *Port) Pending() int { return p.rx.Buffered() }
func (p *Port) DataReads() uint32 { return p.rxReads }
func (p *Port) TxPolls() uint32 { return p.txPolls }
