//go:build !baremetal

package main

import (
	"flag"
	"os"
	"time"

	"periphcore-go/hal"
	"periphcore-go/hal/sim"
)

var (
	boardFile = flag.String("board", "", "YAML board description (default: built-in stm32f4 layout)")
	tick      = flag.Duration("tick", time.Millisecond, "simulated time advanced per loop")
)

var (
	host  *sim.Board
	stdin = make(chan []byte, 4)
)

func newBoard() hal.Board {
	flag.Parse()
	cfg := sim.DefaultConfig()
	if *boardFile != "" {
		f, err := os.Open(*boardFile)
		if err != nil {
			println("[board] open:", err.Error())
			os.Exit(1)
		}
		cfg, err = sim.LoadConfig(f)
		f.Close()
		if err != nil {
			println("[board] config:", err.Error())
			os.Exit(1)
		}
	}
	b, err := sim.New(cfg)
	if err != nil {
		println("[board] build:", err.Error())
		os.Exit(1)
	}
	host = b
	go readStdin()
	return b
}

// readStdin forwards terminal input; bytes are injected into the console
// port from the main loop so the board is only touched from one goroutine.
func readStdin() {
	for {
		buf := make([]byte, 64)
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			stdin <- buf[:n]
		}
		if err != nil {
			return
		}
	}
}

// idle advances simulated time in step with the wall clock and bridges the
// console port to stdin/stdout.
func idle() {
	time.Sleep(*tick)
	host.Advance(*tick)
	p := host.Port(consoleID)
	if p == nil {
		return
	}
	select {
	case in := <-stdin:
		p.Inject(in...)
	default:
	}
	if out := p.Transmitted(); len(out) > 0 {
		os.Stdout.Write(out)
		p.ResetTransmitted()
	}
}
