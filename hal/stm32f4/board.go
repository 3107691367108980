//go:build stm32f4

// Package stm32f4 binds the HAL contracts to STM32F4 USART and general
// purpose timer registers.
//
// USART2 and TIM3 are left alone: TinyGo's machine package and runtime own
// those vectors on F4 boards.
package stm32f4

import (
	"device/stm32"
	"machine"
	"runtime/interrupt"

	"periphcore-go/hal"
)

// Ensure the provider satisfies the contracts at compile time.
var (
	_ hal.Board      = (*Board)(nil)
	_ hal.Mask       = mask{}
	_ hal.Line       = (*line)(nil)
	_ hal.SerialPort = (*usart)(nil)
	_ hal.Timer      = (*tim)(nil)
)

// APB clocks with the default 168 MHz system clock.
const (
	apb1Hz = 42_000_000
	apb2Hz = 84_000_000
)

// -----------------------------------------------------------------------------
// Global mask
// -----------------------------------------------------------------------------

type mask struct{}

func (mask) Disable() hal.MaskState { return hal.MaskState(interrupt.Disable()) }
func (mask) Restore(s hal.MaskState) { interrupt.Restore(interrupt.State(s)) }
func (mask) In() bool { return interrupt.In() }

// -----------------------------------------------------------------------------
// Vectors
// -----------------------------------------------------------------------------

// Vectors are fixed at compile time; each forwards to whatever handler the
// managers attach.
type line struct {
	irq interrupt.Interrupt
	isr func()
}

func (l *line) fire() {
	if isr := l.isr; isr != nil {
		isr()
		return
	}
	// Nothing attached: mask the vector so a level source cannot storm.
	l.irq.Disable()
}

func (l *line) Attach(isr func()) {
	st := interrupt.Disable()
	l.isr = isr
	interrupt.Restore(st)
}

func (l *line) SetPriority(p uint8) { l.irq.SetPriority(p) }
func (l *line) Enable() { l.irq.Enable() }
func (l *line) Disable() { l.irq.Disable() }

var (
	usartLines [3]line
	timLines   [3]line
)

func init() {
	usartLines[0].irq = interrupt.New(stm32.IRQ_USART1, func(interrupt.Interrupt) { usartLines[0].fire() })
	usartLines[1].irq = interrupt.New(stm32.IRQ_USART3, func(interrupt.Interrupt) { usartLines[1].fire() })
	usartLines[2].irq = interrupt.New(stm32.IRQ_USART6, func(interrupt.Interrupt) { usartLines[2].fire() })

	timLines[0].irq = interrupt.New(stm32.IRQ_TIM2, func(interrupt.Interrupt) { timLines[0].fire() })
	timLines[1].irq = interrupt.New(stm32.IRQ_TIM4, func(interrupt.Interrupt) { timLines[1].fire() })
	timLines[2].irq = interrupt.New(stm32.IRQ_TIM5, func(interrupt.Interrupt) { timLines[2].fire() })
}

// -----------------------------------------------------------------------------
// USART
// -----------------------------------------------------------------------------

type usart struct {
	bus    *stm32.USART_Type
	pclk   uint32
	clkEn  func()
	tx, rx machine.Pin
	af     uint8
}

func (u *usart) EnableRxInterrupt() { u.bus.CR1.SetBits(stm32.USART_CR1_RXNEIE) }
func (u *usart) RxNotEmpty() bool { return u.bus.SR.HasBits(stm32.USART_SR_RXNE) }
func (u *usart) ReadData() byte { return byte(u.bus.DR.Get() & 0xFF) }
func (u *usart) TxReady() bool { return u.bus.SR.HasBits(stm32.USART_SR_TXE) }
func (u *usart) WriteData(b byte) { u.bus.DR.Set(uint32(b)) }

// configure enables the peripheral clock, routes the TX/RX pins to the
// USART, sets the baud rate and turns on the transmitter and receiver.
func (u *usart) configure(baud uint32) {
	u.clkEn()
	u.tx.ConfigureAltFunc(machine.PinConfig{Mode: machine.PinModeUARTTX}, u.af)
	u.rx.ConfigureAltFunc(machine.PinConfig{Mode: machine.PinModeUARTRX}, u.af)
	u.bus.CR1.ClearBits(stm32.USART_CR1_UE)
	u.bus.BRR.Set((u.pclk + baud/2) / baud)
	u.bus.CR1.SetBits(stm32.USART_CR1_TE | stm32.USART_CR1_RE | stm32.USART_CR1_UE)
}

// -----------------------------------------------------------------------------
// Timers
// -----------------------------------------------------------------------------

type tim struct {
	bus *stm32.TIM_Type
}

func (t *tim) SetPrescaler(div uint32) {
	if div == 0 {
		div = 1
	}
	t.bus.PSC.Set(div - 1)
}

func (t *tim) SetReload(n uint16) { t.bus.ARR.Set(uint32(n)) }
func (t *tim) ResetCount() { t.bus.EGR.SetBits(stm32.TIM_EGR_UG) }
func (t *tim) EnableUpdateInterrupt() { t.bus.DIER.SetBits(stm32.TIM_DIER_UIE) }
func (t *tim) DisableUpdateInterrupt() { t.bus.DIER.ClearBits(stm32.TIM_DIER_UIE) }
func (t *tim) UpdatePending() bool { return t.bus.SR.HasBits(stm32.TIM_SR_UIF) }
func (t *tim) ClearUpdate() { t.bus.SR.ClearBits(stm32.TIM_SR_UIF) }
func (t *tim) EnableCounter() { t.bus.CR1.SetBits(stm32.TIM_CR1_CEN) }
func (t *tim) DisableCounter() { t.bus.CR1.ClearBits(stm32.TIM_CR1_CEN) }

// -----------------------------------------------------------------------------
// Board
// -----------------------------------------------------------------------------

// Board is the static id->peripheral table.
type Board struct {
	ports  [3]usart
	timers [3]tim
}

// New enables the timer clocks and returns the board. Serial ports are
// clocked by ConfigureSerial.
func New() *Board {
	stm32.RCC.APB1ENR.SetBits(stm32.RCC_APB1ENR_TIM2EN | stm32.RCC_APB1ENR_TIM4EN | stm32.RCC_APB1ENR_TIM5EN)
	return &Board{
		ports: [3]usart{
			{
				bus:   stm32.USART1,
				pclk:  apb2Hz,
				clkEn: func() { stm32.RCC.APB2ENR.SetBits(stm32.RCC_APB2ENR_USART1EN) },
				tx:    machine.PA9,
				rx:    machine.PA10,
				af:    stm32.AF7_USART1_2_3,
			},
			{
				bus:   stm32.USART3,
				pclk:  apb1Hz,
				clkEn: func() { stm32.RCC.APB1ENR.SetBits(stm32.RCC_APB1ENR_USART3EN) },
				tx:    machine.PD8,
				rx:    machine.PD9,
				af:    stm32.AF7_USART1_2_3,
			},
			{
				bus:   stm32.USART6,
				pclk:  apb2Hz,
				clkEn: func() { stm32.RCC.APB2ENR.SetBits(stm32.RCC_APB2ENR_USART6EN) },
				tx:    machine.PC6,
				rx:    machine.PC7,
				af:    stm32.AF8_USART4_5_6,
			},
		},
		timers: [3]tim{
			{bus: stm32.TIM2},
			{bus: stm32.TIM4},
			{bus: stm32.TIM5},
		},
	}
}

// ConfigureSerial clocks port id, muxes its pins (USART1 PA9/PA10, USART3
// PD8/PD9, USART6 PC6/PC7) and programs its baud rate.
func (b *Board) ConfigureSerial(id int, baud uint32) bool {
	if id < 0 || id >= len(b.ports) || baud == 0 {
		return false
	}
	b.ports[id].configure(baud)
	return true
}

func (b *Board) Mask() hal.Mask { return mask{} }

func (b *Board) SerialPort(id int) (hal.SerialPort, hal.Line, bool) {
	if id < 0 || id >= len(b.ports) {
		return nil, nil, false
	}
	return &b.ports[id], &usartLines[id], true
}

func (b *Board) Timer(id int) (hal.Timer, hal.Line, bool) {
	if id < 0 || id >= len(b.timers) {
		return nil, nil, false
	}
	return &b.timers[id], &timLines[id], true
}
