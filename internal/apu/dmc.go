package apu

// dmcRates is the NTSC output rate table in CPU cycles per bit.
var dmcRates = [16]uint16{
	428, 380, 340, 320, 286, 254, 226, 214, 190, 160, 142, 128, 106, 84, 72, 54,
}

// DMCChannel represents the delta modulation channel.
type DMCChannel struct {
	reader DMCReader

	irqEnabled bool
	loop       bool
	rate       uint16 // CPU cycles per output bit
	timer      uint16
	level      uint8 // 7-bit output level

	// Sample
	sampleAddr   uint16 // $C000 + A*64
	sampleLength uint16 // L*16 + 1
	addr         uint16 // Next fetch address
	remaining    uint16 // Bytes left to fetch

	// Sample buffer
	buffer      uint8
	bufferEmpty bool

	// Output unit
	shift    uint8
	bitsLeft uint8
	silence  bool

	irq bool
}

// NewDMCChannel creates a DMC channel fetching sample bytes from reader.
func NewDMCChannel(reader DMCReader) *DMCChannel {
	d := &DMCChannel{reader: reader}
	d.Reset()
	return d
}

// writeControl writes $4010: IL-- RRRR.
func (d *DMCChannel) writeControl(value uint8) {
	d.irqEnabled = value&0x80 != 0
	d.loop = value&0x40 != 0
	d.rate = dmcRates[value&0x0F]
	if !d.irqEnabled {
		d.irq = false
	}
}

// writeLoad writes $4011: -DDD DDDD.
func (d *DMCChannel) writeLoad(value uint8) {
	d.level = value & 0x7F
}

// writeAddress writes $4012.
func (d *DMCChannel) writeAddress(value uint8) {
	d.sampleAddr = 0xC000 | uint16(value)<<6
}

// writeLength writes $4013.
func (d *DMCChannel) writeLength(value uint8) {
	d.sampleLength = uint16(value)<<4 | 1
}

// setEnabled handles the DMC bit of $4015.
func (d *DMCChannel) setEnabled(on bool) {
	d.irq = false
	if !on {
		d.remaining = 0
		return
	}
	if d.remaining == 0 {
		d.restart()
	}
	d.fill()
}

func (d *DMCChannel) restart() {
	d.addr = d.sampleAddr
	d.remaining = d.sampleLength
}

// fill fetches the next sample byte into the empty sample buffer.
func (d *DMCChannel) fill() {
	if !d.bufferEmpty || d.remaining == 0 {
		return
	}

	if d.reader != nil {
		d.buffer = d.reader.ReadDMC(d.addr)
	} else {
		d.buffer = 0
	}
	d.bufferEmpty = false

	if d.addr == 0xFFFF {
		d.addr = 0x8000
	} else {
		d.addr++
	}

	d.remaining--
	if d.remaining == 0 {
		if d.loop {
			d.restart()
		} else if d.irqEnabled {
			d.irq = true
		}
	}
}

// clock advances the timer by one CPU cycle.
func (d *DMCChannel) clock() {
	if d.timer > 0 {
		d.timer--
		return
	}
	d.timer = d.rate - 1
	d.clockOutput()
}

// clockOutput processes one bit of the output unit.
func (d *DMCChannel) clockOutput() {
	if !d.silence {
		if d.shift&1 != 0 {
			if d.level <= 125 {
				d.level += 2
			}
		} else if d.level >= 2 {
			d.level -= 2
		}
	}
	d.shift >>= 1

	if d.bitsLeft > 0 {
		d.bitsLeft--
	}
	if d.bitsLeft == 0 {
		// New output cycle
		d.bitsLeft = 8
		if d.bufferEmpty {
			d.silence = true
		} else {
			d.silence = false
			d.shift = d.buffer
			d.bufferEmpty = true
			d.fill()
		}
	}
}

// amplitude returns the current output level (0-127).
func (d *DMCChannel) amplitude() uint8 {
	return d.level
}

// Reset returns the channel to its power-on state.
func (d *DMCChannel) Reset() {
	*d = DMCChannel{
		reader:       d.reader,
		rate:         dmcRates[0],
		sampleAddr:   0xC000,
		sampleLength: 1,
		bufferEmpty:  true,
		bitsLeft:     8,
		silence:      true,
	}
}
