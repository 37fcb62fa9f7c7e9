package apu

// lengthTable maps the 5-bit length index written to $4003/$4007/$400B/$400F
// to a length counter value.
var lengthTable = [32]uint8{
	10, 254, 20, 2, 40, 4, 80, 6, 160, 8, 60, 10, 14, 12, 26, 14,
	12, 16, 24, 18, 48, 20, 96, 22, 192, 24, 72, 26, 16, 28, 32, 30,
}

// envelope generates the volume of a pulse or noise channel.
type envelope struct {
	start    bool  // Restart on next quarter frame
	loop     bool  // Restart decay at 0 (shares the length halt bit)
	constant bool  // Output period directly
	period   uint8 // Divider period / constant volume
	divider  uint8
	decay    uint8 // 15 -> 0
}

// write loads the low 6 bits of a channel's control register.
func (e *envelope) write(value uint8) {
	e.loop = value&0x20 != 0
	e.constant = value&0x10 != 0
	e.period = value & 0x0F
}

// clock is called on every quarter frame.
func (e *envelope) clock() {
	if e.start {
		e.start = false
		e.decay = 15
		e.divider = e.period
		return
	}

	if e.divider > 0 {
		e.divider--
		return
	}
	e.divider = e.period
	if e.decay > 0 {
		e.decay--
	} else if e.loop {
		e.decay = 15
	}
}

// volume returns the current output volume (0-15).
func (e *envelope) volume() uint8 {
	if e.constant {
		return e.period
	}
	return e.decay
}

// lengthCounter silences a channel after a programmed number of half frames.
type lengthCounter struct {
	enabled bool // $4015 enable bit
	halt    bool
	value   uint8
}

// load reloads the counter from the length table, if the channel is enabled.
func (l *lengthCounter) load(index uint8) {
	if l.enabled {
		l.value = lengthTable[index&0x1F]
	}
}

func (l *lengthCounter) setEnabled(on bool) {
	l.enabled = on
	if !on {
		l.value = 0
	}
}

// clock is called on every half frame.
func (l *lengthCounter) clock() {
	if !l.halt && l.value > 0 {
		l.value--
	}
}

func (l *lengthCounter) active() bool {
	return l.value > 0
}
