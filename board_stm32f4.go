//go:build stm32f4

package main

import (
	"time"

	"periphcore-go/hal"
	"periphcore-go/hal/stm32f4"
)

const consoleBaud = 115200

func newBoard() hal.Board {
	// Allow the host terminal to attach before we print.
	time.Sleep(2 * time.Second)
	b := stm32f4.New()
	if !b.ConfigureSerial(consoleID, consoleBaud) {
		println("[board] console configure failed")
	}
	return b
}

func idle() { time.Sleep(time.Millisecond) }
