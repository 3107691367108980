//go:build !baremetal

package sim

// counterWrap is the 16-bit counter modulus.
const counterWrap = 0x10000

// Timer is a simulated 16-bit up-counting timer. The counter raises the
// update flag when it reaches the reload value and restarts from zero.
// Reload writes take effect immediately (no preload), so shrinking the
// reload below the current count makes the counter run through 0xFFFF
// before the next update.
type Timer struct {
	b    *Board
	line *Line
	name string

	div    uint32 // prescaler divisor, >= 1
	reload uint16
	count  uint32
	frac   uint32 // clock cycles into the current tick

	uie, uif, cen bool
	updates       uint32
}

func (t *Timer) asserted() bool { return t.uie && t.uif }

func (t *Timer) SetPrescaler(div uint32) {
	if div == 0 {
		div = 1
	}
	t.div = div
}

func (t *Timer) SetReload(n uint16) { t.reload = n }

// ResetCount models an update generation event: the counter and prescaler
// restart and the update flag is set.
func (t *Timer) ResetCount() {
	t.count = 0
	t.frac = 0
	t.uif = true
	t.line.sync()
}

func (t *Timer) EnableUpdateInterrupt() {
	t.uie = true
	t.line.sync()
}

func (t *Timer) DisableUpdateInterrupt() { t.uie = false }
func (t *Timer) UpdatePending() bool { return t.uif }
func (t *Timer) ClearUpdate() { t.uif = false }
func (t *Timer) EnableCounter() { t.cen = true }
func (t *Timer) DisableCounter() { t.cen = false }

func (t *Timer) ticksToUpdate() uint32 {
	if t.count < uint32(t.reload) {
		return uint32(t.reload) - t.count
	}
	return counterWrap - t.count + uint32(t.reload)
}

// cyclesToUpdate reports clock cycles until the next update event.
func (t *Timer) cyclesToUpdate() (uint64, bool) {
	if !t.cen || t.reload == 0 {
		return 0, false
	}
	return uint64(t.ticksToUpdate())*uint64(t.div) - uint64(t.frac), true
}

// advance runs the counter for n clock cycles, which never exceeds
// cyclesToUpdate. It reports whether an update event occurred.
func (t *Timer) advance(n uint64) bool {
	if !t.cen {
		return false
	}
	total := uint64(t.frac) + n
	ticks := uint32(total / uint64(t.div))
	t.frac = uint32(total % uint64(t.div))
	if ticks == 0 {
		return false
	}
	if t.reload != 0 && ticks >= t.ticksToUpdate() {
		t.count = 0
		t.uif = true
		t.updates++
		return true
	}
	t.count = (t.count + ticks) % counterWrap
	return false
}

// Regs is a snapshot of a timer's programmed state.
type Regs struct {
	Prescaler uint32
	Reload    uint16
	Count     uint32
	UIE       bool
	UIF       bool
	CEN       bool
	Updates   uint32
}

func (t *Timer) Regs() Regs {
	return Regs{
		Prescaler: t.div,
		Reload:    t.reload,
		Count:     t.count,
		UIE:       t.uie,
		UIF:       t.uif,
		CEN:       t.cen,
		Updates:   t.updates,
	}
}

func (t *Timer) Name() string { return t.name }
func (t *Timer) Line() *Line { return t.line }
