package apu

// noisePeriods is the NTSC timer period table in CPU cycles.
var noisePeriods = [16]uint16{
	4, 8, 16, 32, 64, 96, 128, 160, 202, 254, 380, 508, 762, 1016, 2034, 4068,
}

// NoiseChannel represents the noise channel.
type NoiseChannel struct {
	mode   bool   // Short mode: feedback from bit 6 instead of bit 1
	period uint16 // CPU cycles per shift
	timer  uint16
	shift  uint16 // 15-bit LFSR

	env    envelope
	length lengthCounter
}

// NewNoiseChannel creates a new noise channel.
func NewNoiseChannel() *NoiseChannel {
	return &NoiseChannel{shift: 1, period: noisePeriods[0]}
}

// writeControl writes $400C: --LC VVVV.
func (n *NoiseChannel) writeControl(value uint8) {
	n.length.halt = value&0x20 != 0
	n.env.write(value)
}

// writePeriod writes $400E: M--- PPPP.
func (n *NoiseChannel) writePeriod(value uint8) {
	n.mode = value&0x80 != 0
	n.period = noisePeriods[value&0x0F]
}

// writeLength writes $400F: LLLL L---.
func (n *NoiseChannel) writeLength(value uint8) {
	n.length.load(value >> 3)
	n.env.start = true
}

// clock advances the timer by one CPU cycle.
func (n *NoiseChannel) clock() {
	if n.timer > 0 {
		n.timer--
		return
	}
	n.timer = n.period - 1
	n.step()
}

// step shifts the LFSR once.
func (n *NoiseChannel) step() {
	tap := uint16(1)
	if n.mode {
		tap = 6
	}
	feedback := (n.shift ^ n.shift>>tap) & 1
	n.shift = n.shift>>1 | feedback<<14
}

// amplitude returns the current output level (0-15).
func (n *NoiseChannel) amplitude() uint8 {
	if !n.length.active() || n.shift&1 != 0 {
		return 0
	}
	return n.env.volume()
}

// Reset returns the channel to its power-on state.
func (n *NoiseChannel) Reset() {
	*n = *NewNoiseChannel()
}
