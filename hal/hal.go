// Package hal declares the hardware primitives the serial and timer managers
// drive. Implementations own all register access and flag bit masks; the
// managers only call the named operations below.
package hal

// PriorityHighest is the NVIC level every vector in this layer is armed at.
// With a single level no handler preempts another.
const PriorityHighest uint8 = 0

// ---- Global interrupt mask ----

// MaskState is the opaque mask state returned by Disable.
type MaskState uintptr

// Mask is the processor-wide interrupt enable switch.
type Mask interface {
	// Disable masks all interrupts and returns the previous state.
	Disable() MaskState
	// Restore reinstates a state returned by Disable.
	Restore(MaskState)
	// In reports whether the caller is running in interrupt context.
	In() bool
}

// ---- Interrupt vectors ----

// Line is one interrupt vector (NVIC line).
type Line interface {
	// Attach installs the handler run when the vector fires.
	Attach(isr func())
	SetPriority(p uint8)
	Enable()
	Disable()
}

// ---- Serial ports ----

// SerialPort is the opaque capability for one USART instance.
type SerialPort interface {
	EnableRxInterrupt()
	// RxNotEmpty reports the "receive data available" status flag.
	RxNotEmpty() bool
	// ReadData reads the data register once. Reading clears RxNotEmpty.
	ReadData() byte
	// TxReady reports the "transmit data register empty" status flag.
	TxReady() bool
	WriteData(b byte)
}

// ---- Timers ----

// Timer is the opaque capability for one general-purpose timer.
type Timer interface {
	// SetPrescaler programs the clock divisor (divisor, not register value).
	SetPrescaler(div uint32)
	// SetReload programs the autoreload count.
	SetReload(n uint16)
	// ResetCount restarts the counter from zero with the current reload.
	ResetCount()
	EnableUpdateInterrupt()
	DisableUpdateInterrupt()
	UpdatePending() bool
	ClearUpdate()
	EnableCounter()
	DisableCounter()
}

// ---- Board ----

// Board supplies the static id->handle tables and the global mask.
// Lookups for ids the board does not populate return ok=false.
type Board interface {
	Mask() Mask
	SerialPort(id int) (port SerialPort, line Line, ok bool)
	Timer(id int) (tmr Timer, line Line, ok bool)
}
