package main

import (
	"sync/atomic"

	"periphcore-go/irq"
	"periphcore-go/serial"
	"periphcore-go/timer"
	"periphcore-go/x/conv"
)

const (
	consoleID   = 1
	heartbeatMs = 500
)

var beats atomic.Uint32

func main() {
	println("[main] boot …")
	b := newBoard()
	g := irq.New(b.Mask())

	ser := serial.New(b, g)
	if err := ser.Init(consoleID); err != nil {
		println("[main] serial init failed:", err.Error())
		return
	}
	if err := ser.Start(consoleID); err != nil {
		println("[main] serial start failed:", err.Error())
		return
	}
	con, _ := ser.Port(consoleID)

	tm := timer.New(b, g)
	if err := tm.DefaultInit(); err != nil {
		println("[main] timer init failed:", err.Error())
		return
	}
	// ISR context: only touch the counter.
	if err := tm.Open(timer.DefaultID, func() { beats.Add(1) }, heartbeatMs); err != nil {
		println("[main] timer open failed:", err.Error())
		return
	}
	println("[main] console on channel", consoleID, "heartbeat", heartbeatMs, "ms")

	var (
		seen uint32
		buf  [16]byte
		line = make([]byte, 0, 64)
	)
	for {
		idle()

		if n := beats.Load(); n != seen {
			seen = n
			st, _ := ser.Stats(consoleID)
			line = append(line[:0], "[main] heartbeat "...)
			line = conv.AppendUint(line, uint64(n))
			line = append(line, " rx="...)
			line = conv.AppendUint(line, uint64(st.RxBytes))
			line = append(line, " drops="...)
			line = conv.AppendUint(line, uint64(st.RxDrops))
			line = append(line, " cb="...)
			line = conv.AppendUint(line, uint64(g.Dispatches()))
			line = append(line, " put=0x"...)
			line = conv.AppendHex(line, uint64(st.RxPut), 2)
			line = append(line, " get=0x"...)
			line = conv.AppendHex(line, uint64(st.RxGet), 2)
			line = append(line, "\r\n"...)
			con.Write(line)
		}

		// Echo.
		if n, err := con.Read(buf[:]); err == nil && n > 0 {
			con.Write(buf[:n])
		}
	}
}
