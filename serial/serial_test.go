package serial

import (
	"bytes"
	"fmt"
	"testing"

	"periphcore-go/errcode"
	"periphcore-go/hal/sim"
	"periphcore-go/irq"
	"periphcore-go/x/ring"
)

func newTestManager(t *testing.T) (*Manager, *sim.Board) {
	t.Helper()
	b := sim.NewDefault()
	return New(b, irq.New(b.Mask())), b
}

func startChannel(t *testing.T, m *Manager, id int) {
	t.Helper()
	if err := m.Init(id); err != nil {
		t.Fatalf("Init(%d): %v", id, err)
	}
	if err := m.Start(id); err != nil {
		t.Fatalf("Start(%d): %v", id, err)
	}
}

func TestInvalidIndex(t *testing.T) {
	m, _ := newTestManager(t)
	for _, id := range []int{-1, NumChannels, 99} {
		if err := m.Init(id); err != errcode.InvalidIndex {
			t.Fatalf("Init(%d) = %v", id, err)
		}
		if err := m.Start(id); err != errcode.InvalidIndex {
			t.Fatalf("Start(%d) = %v", id, err)
		}
		if err := m.Close(id); err != errcode.InvalidIndex {
			t.Fatalf("Close(%d) = %v", id, err)
		}
		if _, err := m.Getc(id); err != errcode.InvalidIndex {
			t.Fatalf("Getc(%d) = %v", id, err)
		}
		if err := m.Putc(id, 'a'); err != errcode.InvalidIndex {
			t.Fatalf("Putc(%d) = %v", id, err)
		}
	}
}

func TestStartRequiresInit(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Start(0); err != errcode.NotConfigured {
		t.Fatalf("Start before Init = %v", err)
	}
	if err := m.Putc(0, 'x'); err != errcode.NotConfigured {
		t.Fatalf("Putc before Init = %v", err)
	}
}

func TestStartArmsVectorAtHighestPriority(t *testing.T) {
	m, b := newTestManager(t)
	startChannel(t, m, 1)
	p := b.Port(1)
	if !p.RxInterruptEnabled() {
		t.Fatal("RX interrupt condition not enabled")
	}
	l := p.Line()
	if !l.Enabled() || l.Priority() != 0 || !l.Attached() {
		t.Fatalf("line enabled=%v prio=%d attached=%v", l.Enabled(), l.Priority(), l.Attached())
	}
	st, _ := m.Stats(1)
	if st.State != Receiving {
		t.Fatalf("state = %v", st.State)
	}
}

func TestReceiveFIFO(t *testing.T) {
	m, b := newTestManager(t)
	startChannel(t, m, 1)

	b.Port(1).Inject('A', 'B', 'C')
	for _, want := range []byte("ABC") {
		got, err := m.Getc(1)
		if err != nil || got != want {
			t.Fatalf("Getc = (%q,%v), want %q", got, err, want)
		}
	}
	got, err := m.Getc(1)
	if err != nil || got != 0 {
		t.Fatalf("Getc on empty = (%q,%v), want sentinel 0", got, err)
	}
}

func TestFIFOInterleavedWithinCapacity(t *testing.T) {
	m, b := newTestManager(t)
	startChannel(t, m, 0)
	p := b.Port(0)

	// Hold 60 bytes, then move 13 in and 13 out per round: occupancy peaks at
	// 73 and both indices wrap many times.
	var want, next byte
	for i := 0; i < 60; i++ {
		p.Inject(next)
		next++
	}
	for round := 0; round < 50; round++ {
		for i := 0; i < 13; i++ {
			p.Inject(next)
			next++
		}
		if n, _ := m.Buffered(0); n > ring.Size-1 {
			t.Fatalf("round %d: occupancy %d", round, n)
		}
		for i := 0; i < 13; i++ {
			got, _ := m.ReadBuf(0)
			if got != want {
				t.Fatalf("round %d: got %d want %d", round, got, want)
			}
			want++
		}
	}
	st, _ := m.Stats(0)
	if st.RxDrops != 0 {
		t.Fatalf("unexpected drops: %d", st.RxDrops)
	}
}

func TestFullBufferOverwritesOldest(t *testing.T) {
	m, b := newTestManager(t)
	startChannel(t, m, 1)

	in := make([]byte, 85)
	for i := range in {
		in[i] = byte('0' + i%64)
	}
	b.Port(1).Inject(in...)

	n, _ := m.Buffered(1)
	if n != ring.Size-1 {
		t.Fatalf("occupancy = %d, want %d", n, ring.Size-1)
	}
	st, _ := m.Stats(1)
	if st.RxDrops != 6 || st.RxBytes != 85 {
		t.Fatalf("drops=%d bytes=%d", st.RxDrops, st.RxBytes)
	}
	for i := 6; i < 85; i++ {
		got, _ := m.Getc(1)
		if got != in[i] {
			t.Fatalf("byte %d: got %q want %q", i, got, in[i])
		}
	}
	if n, _ := m.Buffered(1); n != 0 {
		t.Fatalf("left %d bytes", n)
	}
}

func TestBytesHeldWhileMaskedArriveInOrder(t *testing.T) {
	m, b := newTestManager(t)
	startChannel(t, m, 2)
	mask := b.Mask()

	st := mask.Disable()
	b.Port(2).Inject('h', 'i')
	if n, _ := m.Buffered(2); n != 0 {
		t.Fatal("handler ran while masked")
	}
	mask.Restore(st)

	var out []byte
	for {
		n, _ := m.Buffered(2)
		if n == 0 {
			break
		}
		c, _ := m.Getc(2)
		out = append(out, c)
	}
	if string(out) != "hi" {
		t.Fatalf("got %q", out)
	}
}

func TestPutcBusyWaitsThenTransmits(t *testing.T) {
	m, b := newTestManager(t)
	if err := m.Init(1); err != nil {
		t.Fatal(err)
	}
	p := b.Port(1)
	p.SetTxLatency(4)

	for _, c := range []byte("ok") {
		if err := m.Putc(1, c); err != nil {
			t.Fatalf("Putc: %v", err)
		}
	}
	if string(p.Transmitted()) != "ok" {
		t.Fatalf("transmitted %q", p.Transmitted())
	}
	// second byte waited out the latency of the first.
	if p.TxPolls() != 1+5 {
		t.Fatalf("TxReady polled %d times", p.TxPolls())
	}
	s, _ := m.Stats(1)
	if s.TxBytes != 2 || s.TxPut != 2 || s.TxGet != 2 {
		t.Fatalf("tx stats %+v", s)
	}
}

func TestCloseClearsAndUnbinds(t *testing.T) {
	m, b := newTestManager(t)
	startChannel(t, m, 1)
	b.Port(1).Inject('z')

	if err := m.Close(1); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := m.Getc(1); err != errcode.NotConfigured {
		t.Fatalf("Getc after Close = %v", err)
	}
	s, _ := m.Stats(1)
	if s.State != Closed || s.RxLen != 0 || s.RxPut != 0 || s.RxGet != 0 {
		t.Fatalf("stats after Close %+v", s)
	}
	if err := m.Close(1); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	// Close leaves the vector armed.
	l := b.Port(1).Line()
	if !l.Enabled() {
		t.Fatal("Close disabled the interrupt line")
	}
	// A byte arriving now finds no bound port; the handler masks its line.
	b.Port(1).Inject('q')
	if l.Enabled() {
		t.Fatal("stale vector left enabled")
	}
}

func TestReinitAfterCloseReusesSlot(t *testing.T) {
	m, b := newTestManager(t)
	startChannel(t, m, 0)
	b.Port(0).Inject('a')
	if err := m.Close(0); err != nil {
		t.Fatal(err)
	}
	// Interrupt stays enabled in hardware across init/close cycles.
	if err := m.Init(0); err != nil {
		t.Fatal(err)
	}
	b.Port(0).Inject('b')
	got, _ := m.Getc(0)
	if got != 'b' {
		t.Fatalf("Getc = %q, want 'b'", got)
	}
}

func TestPortImplementsStream(t *testing.T) {
	m, b := newTestManager(t)
	startChannel(t, m, 1)
	p, err := m.Port(1)
	if err != nil {
		t.Fatal(err)
	}
	b.Port(1).Inject(0x00, 0x01, 0x02)
	if p.Buffered() != 3 {
		t.Fatalf("Buffered = %d", p.Buffered())
	}
	buf := make([]byte, 8)
	n, err := p.Read(buf)
	if err != nil || !bytes.Equal(buf[:n], []byte{0, 1, 2}) {
		t.Fatalf("Read = %v %v", buf[:n], err)
	}
	if _, err := fmt.Fprintf(p, "n=%d\r\n", 7); err != nil {
		t.Fatal(err)
	}
	if got := string(b.Port(1).Transmitted()); got != "n=7\r\n" {
		t.Fatalf("transmitted %q", got)
	}
	if _, err := m.Port(NumChannels); err != errcode.InvalidIndex {
		t.Fatalf("Port out of range = %v", err)
	}
}

func TestWriterStopsOnError(t *testing.T) {
	m, _ := newTestManager(t)
	n, err := m.Writer(2).Write([]byte("abc"))
	if n != 0 || err != errcode.NotConfigured {
		t.Fatalf("Write on unbound = (%d,%v)", n, err)
	}
}

func TestDefaultInitBindsChannel(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.DefaultInit(2); err != nil {
		t.Fatalf("DefaultInit: %v", err)
	}
	s, _ := m.Stats(2)
	if s.State != Bound {
		t.Fatalf("state = %v, want Bound", s.State)
	}
	if err := m.DefaultInit(NumChannels); err != errcode.InvalidIndex {
		t.Fatalf("DefaultInit out of range = %v", err)
	}
}
