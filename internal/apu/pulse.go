package apu

// dutyTable holds the 8-step waveforms for the four duty settings.
var dutyTable = [4][8]uint8{
	{0, 1, 0, 0, 0, 0, 0, 0}, // 12.5%
	{0, 1, 1, 0, 0, 0, 0, 0}, // 25%
	{0, 1, 1, 1, 1, 0, 0, 0}, // 50%
	{1, 0, 0, 1, 1, 1, 1, 1}, // 75% (25% negated)
}

// PulseChannel represents a square wave channel.
type PulseChannel struct {
	channel Channel // Pulse1 sweeps with ones' complement negation

	duty  uint8 // Duty index (0-3)
	step  uint8 // Position in duty sequence (0-7)
	timer uint16
	// Timer period (11 bits); the waveform advances every 2*(period+1) CPU cycles.
	period uint16

	env    envelope
	length lengthCounter

	// Sweep unit
	sweepEnabled bool
	sweepPeriod  uint8
	sweepNegate  bool
	sweepShift   uint8
	sweepDivider uint8
	sweepReload  bool
}

// NewPulseChannel creates pulse channel ch. Pulse1 and Pulse2 differ only in sweep negation.
func NewPulseChannel(ch Channel) *PulseChannel {
	return &PulseChannel{channel: ch}
}

// writeControl writes $4000/$4004: DDLC VVVV.
func (p *PulseChannel) writeControl(value uint8) {
	p.duty = value >> 6
	p.length.halt = value&0x20 != 0
	p.env.write(value)
}

// writeSweep writes $4001/$4005: EPPP NSSS.
func (p *PulseChannel) writeSweep(value uint8) {
	p.sweepEnabled = value&0x80 != 0
	p.sweepPeriod = (value >> 4) & 0x07
	p.sweepNegate = value&0x08 != 0
	p.sweepShift = value & 0x07
	p.sweepReload = true
}

// writeTimerLow writes $4002/$4006.
func (p *PulseChannel) writeTimerLow(value uint8) {
	p.period = p.period&0x0700 | uint16(value)
}

// writeTimerHigh writes $4003/$4007: LLLL LHHH.
// Restarts the envelope and the duty sequence.
func (p *PulseChannel) writeTimerHigh(value uint8) {
	p.period = p.period&0x00FF | uint16(value&0x07)<<8
	p.length.load(value >> 3)
	p.env.start = true
	p.step = 0
}

// clock advances the timer by one CPU cycle.
func (p *PulseChannel) clock() {
	if p.timer == 0 {
		p.timer = 2*p.period + 1
		p.step = (p.step + 1) & 7
		return
	}
	p.timer--
}

// sweepTarget computes the period the sweep unit would switch to.
func (p *PulseChannel) sweepTarget() int {
	change := int(p.period >> p.sweepShift)
	if !p.sweepNegate {
		return int(p.period) + change
	}
	if p.channel == Pulse1 {
		return int(p.period) - change - 1
	}
	return int(p.period) - change
}

// muted reports whether the sweep unit silences the channel.
// This applies even when the sweep is disabled.
func (p *PulseChannel) muted() bool {
	return p.period < 8 || (!p.sweepNegate && p.sweepTarget() > 0x7FF)
}

// clockSweep is called on every half frame.
func (p *PulseChannel) clockSweep() {
	if p.sweepDivider == 0 && p.sweepEnabled && p.sweepShift > 0 && !p.muted() {
		target := p.sweepTarget()
		if target < 0 {
			target = 0
		}
		p.period = uint16(target) //nolint:gosec // target <= 0x7FF when not muted
	}

	if p.sweepDivider == 0 || p.sweepReload {
		p.sweepDivider = p.sweepPeriod
		p.sweepReload = false
	} else {
		p.sweepDivider--
	}
}

// amplitude returns the current output level (0-15).
func (p *PulseChannel) amplitude() uint8 {
	if !p.length.active() || p.muted() || dutyTable[p.duty][p.step] == 0 {
		return 0
	}
	return p.env.volume()
}

// Reset returns the channel to its power-on state.
func (p *PulseChannel) Reset() {
	*p = PulseChannel{channel: p.channel}
}
