package apu

// triangleTable is the 32-step output sequence.
var triangleTable = [32]uint8{
	15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0,
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
}

// TriangleChannel represents the triangle wave channel.
type TriangleChannel struct {
	step   uint8 // Position in triangleTable (0-31)
	timer  uint16
	period uint16 // 11 bits; the sequencer advances every period+1 CPU cycles

	length lengthCounter

	// Linear counter
	control      bool  // Halts length and keeps reloading the linear counter
	linearPeriod uint8 // Reload value (7 bits)
	linear       uint8
	linearReload bool
}

// NewTriangleChannel creates a new triangle channel.
func NewTriangleChannel() *TriangleChannel {
	return &TriangleChannel{}
}

// writeLinear writes $4008: CRRR RRRR.
func (t *TriangleChannel) writeLinear(value uint8) {
	t.control = value&0x80 != 0
	t.length.halt = t.control
	t.linearPeriod = value & 0x7F
}

// writeTimerLow writes $400A.
func (t *TriangleChannel) writeTimerLow(value uint8) {
	t.period = t.period&0x0700 | uint16(value)
}

// writeTimerHigh writes $400B: LLLL LHHH.
func (t *TriangleChannel) writeTimerHigh(value uint8) {
	t.period = t.period&0x00FF | uint16(value&0x07)<<8
	t.length.load(value >> 3)
	t.linearReload = true
}

// clock advances the timer by one CPU cycle.
func (t *TriangleChannel) clock() {
	if t.timer > 0 {
		t.timer--
		return
	}
	t.timer = t.period

	// Ultrasonic periods are silenced by holding the sequencer
	if t.length.active() && t.linear > 0 && t.period >= 2 {
		t.step = (t.step + 1) & 31
	}
}

// clockLinear is called on every quarter frame.
func (t *TriangleChannel) clockLinear() {
	if t.linearReload {
		t.linear = t.linearPeriod
	} else if t.linear > 0 {
		t.linear--
	}
	if !t.control {
		t.linearReload = false
	}
}

// amplitude returns the current output level (0-15).
func (t *TriangleChannel) amplitude() uint8 {
	if !t.length.active() || t.linear == 0 {
		return 0
	}
	return triangleTable[t.step]
}

// Reset returns the channel to its power-on state.
func (t *TriangleChannel) Reset() {
	*t = TriangleChannel{}
}
