// Package apu implements the NES (2A03) Audio Processing Unit.
//
// The APU generates sound through 5 independent channels mixed into a mono signal:
//   - Pulse 1 and Pulse 2: square waves with envelope and frequency sweep
//   - Triangle: 32-step triangle wave gated by a linear counter
//   - Noise: pseudo-random bit stream from a 15-bit shift register
//   - DMC: 1-bit delta-modulated samples fetched over the CPU bus
//
// The APU runs in lock-step with the CPU at 1.789773 MHz (NTSC). Instead of
// producing samples directly it reports every change of the mixed amplitude to
// a DeltaSink, timestamped in CPU cycles since the start of the current frame.
// A band-limited buffer turns those changes into output samples.
package apu

// DeltaSink receives changes of the mixed amplitude.
type DeltaSink interface {
	// AddDelta records an amplitude change at CPU cycle t of the current frame.
	AddDelta(t int64, delta int32)
}

// DMCReader fetches sample bytes for the DMC channel.
// It is called synchronously and must not call back into the APU.
type DMCReader interface {
	ReadDMC(addr uint16) uint8
}

// DMCReaderFunc adapts a plain function to the DMCReader interface.
type DMCReaderFunc func(addr uint16) uint8

// ReadDMC calls f(addr).
func (f DMCReaderFunc) ReadDMC(addr uint16) uint8 {
	return f(addr)
}

// Register addresses.
const (
	RegPulse1Control  = 0x4000
	RegPulse1Sweep    = 0x4001
	RegPulse1TimerLo  = 0x4002
	RegPulse1TimerHi  = 0x4003
	RegPulse2Control  = 0x4004
	RegPulse2Sweep    = 0x4005
	RegPulse2TimerLo  = 0x4006
	RegPulse2TimerHi  = 0x4007
	RegTriangleLinear = 0x4008
	RegTriangleTimeLo = 0x400A
	RegTriangleTimeHi = 0x400B
	RegNoiseControl   = 0x400C
	RegNoisePeriod    = 0x400E
	RegNoiseLength    = 0x400F
	RegDMCControl     = 0x4010
	RegDMCLoad        = 0x4011
	RegDMCAddress     = 0x4012
	RegDMCLength      = 0x4013
	RegStatus         = 0x4015
	RegFrameCounter   = 0x4017
)

// Status register bits.
const (
	statusPulse1   = 0x01
	statusPulse2   = 0x02
	statusTriangle = 0x04
	statusNoise    = 0x08
	statusDMC      = 0x10
	statusFrameIRQ = 0x40
	statusDMCIRQ   = 0x80
)

// APU represents the NES Audio Processing Unit.
type APU struct {
	// Sound channels
	pulse1   *PulseChannel    // Pulse with ones' complement sweep
	pulse2   *PulseChannel    // Pulse with two's complement sweep
	triangle *TriangleChannel // Triangle with linear counter
	noise    *NoiseChannel    // Noise
	dmc      *DMCChannel      // Delta modulation sample playback

	// Frame sequencer (240 Hz quarter frames)
	sequencer frameSequencer

	mixer mixer

	// Output
	out     DeltaSink
	time    int64 // CPU cycles since the start of the current frame
	lastAmp int32 // Mixed amplitude last reported to out
}

// New creates a new APU. The reader supplies DMC sample bytes and may be nil,
// in which case the DMC reads zeros.
func New(reader DMCReader) *APU {
	a := &APU{
		pulse1:   NewPulseChannel(Pulse1),
		pulse2:   NewPulseChannel(Pulse2),
		triangle: NewTriangleChannel(),
		noise:    NewNoiseChannel(),
		dmc:      NewDMCChannel(reader),
	}
	a.mixer.setGain(1)
	return a
}

// SetOutput sets the sink that receives amplitude changes.
func (a *APU) SetOutput(out DeltaSink) {
	a.out = out
}

// SetDMCReader replaces the DMC sample source.
func (a *APU) SetDMCReader(reader DMCReader) {
	a.dmc.reader = reader
}

// SetGain sets the output gain (0.0 to 1.0). A change becomes audible on the
// next clocked cycle.
func (a *APU) SetGain(gain float32) {
	a.mixer.setGain(gain)
}

// SetChannelMask sets which channels are excluded from the mix.
func (a *APU) SetChannelMask(mask ChannelMask) {
	a.mixer.mask = mask
}

// ValidAddress reports whether addr is a register handled by Write.
func ValidAddress(addr uint16) bool {
	switch {
	case addr >= RegPulse1Control && addr <= RegDMCLength:
		return true
	case addr == RegStatus, addr == RegFrameCounter:
		return true
	}
	return false
}

// Write runs the APU up to elapsed, then writes value to the register at addr.
// elapsed is measured in CPU cycles since the start of the current frame; a
// time earlier than the APU's current position applies no advancement.
// Addresses outside the register map are ignored. Returns value.
func (a *APU) Write(elapsed int64, addr uint16, value uint8) uint8 {
	a.runUntil(elapsed)

	switch addr {
	// Pulse 1
	case RegPulse1Control:
		a.pulse1.writeControl(value)
	case RegPulse1Sweep:
		a.pulse1.writeSweep(value)
	case RegPulse1TimerLo:
		a.pulse1.writeTimerLow(value)
	case RegPulse1TimerHi:
		a.pulse1.writeTimerHigh(value)

	// Pulse 2
	case RegPulse2Control:
		a.pulse2.writeControl(value)
	case RegPulse2Sweep:
		a.pulse2.writeSweep(value)
	case RegPulse2TimerLo:
		a.pulse2.writeTimerLow(value)
	case RegPulse2TimerHi:
		a.pulse2.writeTimerHigh(value)

	// Triangle
	case RegTriangleLinear:
		a.triangle.writeLinear(value)
	case RegTriangleTimeLo:
		a.triangle.writeTimerLow(value)
	case RegTriangleTimeHi:
		a.triangle.writeTimerHigh(value)

	// Noise
	case RegNoiseControl:
		a.noise.writeControl(value)
	case RegNoisePeriod:
		a.noise.writePeriod(value)
	case RegNoiseLength:
		a.noise.writeLength(value)

	// DMC
	case RegDMCControl:
		a.dmc.writeControl(value)
	case RegDMCLoad:
		a.dmc.writeLoad(value)
	case RegDMCAddress:
		a.dmc.writeAddress(value)
	case RegDMCLength:
		a.dmc.writeLength(value)

	// Control
	case RegStatus:
		a.writeStatus(value)
	case RegFrameCounter:
		a.clockFrame(a.sequencer.write(value))
	}

	return value
}

// Read runs the APU up to elapsed and returns the status register ($4015).
// Reading clears the frame interrupt flag.
func (a *APU) Read(elapsed int64) uint8 {
	a.runUntil(elapsed)

	var status uint8
	if a.pulse1.length.active() {
		status |= statusPulse1
	}
	if a.pulse2.length.active() {
		status |= statusPulse2
	}
	if a.triangle.length.active() {
		status |= statusTriangle
	}
	if a.noise.length.active() {
		status |= statusNoise
	}
	if a.dmc.remaining > 0 {
		status |= statusDMC
	}
	if a.sequencer.irq {
		status |= statusFrameIRQ
	}
	if a.dmc.irq {
		status |= statusDMCIRQ
	}

	a.sequencer.irq = false
	return status
}

// IRQ reports whether the APU is asserting the CPU interrupt line.
func (a *APU) IRQ() bool {
	return a.sequencer.irq || a.dmc.irq
}

// EndFrame runs the APU up to length and starts a new frame, so that later
// times are relative to the end of this one.
func (a *APU) EndFrame(length int64) {
	a.runUntil(length)
	a.time -= length
	if a.time < 0 {
		a.time = 0
	}
}

// Time returns the current position in CPU cycles since the start of the frame.
func (a *APU) Time() int64 {
	return a.time
}

// Reset restores the power-on state of all channels and the frame sequencer.
// Gain, channel mask, output and DMC reader are kept.
func (a *APU) Reset() {
	a.pulse1.Reset()
	a.pulse2.Reset()
	a.triangle.Reset()
	a.noise.Reset()
	a.dmc.Reset()
	a.sequencer.reset()
	a.time = 0
	a.lastAmp = 0
}

// writeStatus writes $4015 (channel enables).
func (a *APU) writeStatus(value uint8) {
	a.pulse1.length.setEnabled(value&statusPulse1 != 0)
	a.pulse2.length.setEnabled(value&statusPulse2 != 0)
	a.triangle.length.setEnabled(value&statusTriangle != 0)
	a.noise.length.setEnabled(value&statusNoise != 0)
	a.dmc.setEnabled(value&statusDMC != 0)
}

// runUntil clocks the APU one CPU cycle at a time up to end.
func (a *APU) runUntil(end int64) {
	for a.time < end {
		a.clock()
		a.time++
	}
}

// clock advances every unit by one CPU cycle and reports the new amplitude.
func (a *APU) clock() {
	a.clockFrame(a.sequencer.clock())

	a.pulse1.clock()
	a.pulse2.clock()
	a.triangle.clock()
	a.noise.clock()
	a.dmc.clock()

	amp := a.mixer.mix(
		a.pulse1.amplitude(),
		a.pulse2.amplitude(),
		a.triangle.amplitude(),
		a.noise.amplitude(),
		a.dmc.amplitude(),
	)
	if amp != a.lastAmp {
		if a.out != nil {
			a.out.AddDelta(a.time, amp-a.lastAmp)
		}
		a.lastAmp = amp
	}
}

// clockFrame applies frame sequencer events to the channels.
func (a *APU) clockFrame(ev frameEvent) {
	// Envelopes and triangle linear counter (240 Hz)
	if ev&quarterFrame != 0 {
		a.pulse1.env.clock()
		a.pulse2.env.clock()
		a.triangle.clockLinear()
		a.noise.env.clock()
	}

	// Length counters and sweep units (120 Hz)
	if ev&halfFrame != 0 {
		a.pulse1.length.clock()
		a.pulse2.length.clock()
		a.triangle.length.clock()
		a.noise.length.clock()
		a.pulse1.clockSweep()
		a.pulse2.clockSweep()
	}
}
