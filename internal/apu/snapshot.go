package apu

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// SnapshotSize is the size of an encoded APU snapshot in bytes.
const SnapshotSize = 128

// SnapshotVersion is the layout version written by Save.
const SnapshotVersion = 1

var snapshotMagic = [4]byte{'N', 'A', 'P', 'U'}

// Snapshot errors.
var (
	ErrSnapshotVersion = errors.New("unsupported snapshot version")
	ErrSnapshotCorrupt = errors.New("corrupt snapshot")
)

// Snapshot is an opaque, fixed-size copy of the APU's internal state.
// It can be stored and copied as plain bytes.
type Snapshot [SnapshotSize]byte

// Version returns the layout version recorded in s.
func (s *Snapshot) Version() uint8 {
	return s[len(snapshotMagic)]
}

type envelopeState struct {
	Start, Loop, Constant  bool
	Period, Divider, Decay uint8
}

type lengthState struct {
	Enabled, Halt bool
	Value         uint8
}

type pulseState struct {
	Duty, Step    uint8
	Timer, Period uint16
	Envelope      envelopeState
	Length        lengthState
	SweepEnabled  bool
	SweepPeriod   uint8
	SweepNegate   bool
	SweepShift    uint8
	SweepDivider  uint8
	SweepReload   bool
}

type triangleState struct {
	Step          uint8
	Timer, Period uint16
	Length        lengthState
	Control       bool
	LinearPeriod  uint8
	Linear        uint8
	LinearReload  bool
}

type noiseState struct {
	Mode                 bool
	Period, Timer, Shift uint16
	Envelope             envelopeState
	Length               lengthState
}

type dmcState struct {
	IRQEnabled, Loop      bool
	Rate, Timer           uint16
	Level                 uint8
	SampleAddr, SampleLen uint16
	Addr, Remaining       uint16
	Buffer                uint8
	BufferEmpty           bool
	Shift, BitsLeft       uint8
	Silence, IRQ          bool
}

type sequencerState struct {
	FiveStep, IRQInhibit bool
	Step                 uint8
	Cycle                uint16
	IRQ                  bool
}

// snapshotState is the little-endian payload following the header.
type snapshotState struct {
	Pulse1, Pulse2 pulseState
	Triangle       triangleState
	Noise          noiseState
	DMC            dmcState
	Sequencer      sequencerState
	Time           int64
}

const snapshotHeaderSize = len(snapshotMagic) + 1

// Save captures the state of every channel, the frame sequencer and the
// position within the current frame. Gain, channel mask and output are not
// part of the snapshot.
func (a *APU) Save() Snapshot {
	st := snapshotState{
		Pulse1:    a.pulse1.state(),
		Pulse2:    a.pulse2.state(),
		Triangle:  a.triangle.state(),
		Noise:     a.noise.state(),
		DMC:       a.dmc.state(),
		Sequencer: a.sequencer.state(),
		Time:      a.time,
	}

	var s Snapshot
	copy(s[:], snapshotMagic[:])
	s[len(snapshotMagic)] = SnapshotVersion
	if _, err := binary.Encode(s[snapshotHeaderSize:], binary.LittleEndian, &st); err != nil {
		// The payload is fixed-size and always fits.
		panic(fmt.Sprintf("apu: encoding snapshot: %v", err))
	}
	return s
}

// Load restores the state captured by Save. The snapshot is validated before
// anything is changed; on error the APU is left untouched.
//
// The mixed amplitude restarts from silence, so the caller should clear any
// buffered output along with the load.
func (a *APU) Load(s Snapshot) error {
	if [4]byte(s[:len(snapshotMagic)]) != snapshotMagic {
		return fmt.Errorf("%w: bad magic", ErrSnapshotCorrupt)
	}
	if v := s.Version(); v != SnapshotVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrSnapshotVersion, v, SnapshotVersion)
	}

	var st snapshotState
	if _, err := binary.Decode(s[snapshotHeaderSize:], binary.LittleEndian, &st); err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	if err := st.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}

	a.pulse1.restore(st.Pulse1)
	a.pulse2.restore(st.Pulse2)
	a.triangle.restore(st.Triangle)
	a.noise.restore(st.Noise)
	a.dmc.restore(st.DMC)
	a.sequencer.restore(st.Sequencer)
	a.time = st.Time
	a.lastAmp = 0
	return nil
}

func (st *snapshotState) validate() error {
	for _, p := range []pulseState{st.Pulse1, st.Pulse2} {
		if p.Duty > 3 || p.Step > 7 || p.Period > 0x7FF || p.SweepPeriod > 7 || p.SweepShift > 7 {
			return errors.New("pulse out of range")
		}
	}
	if st.Triangle.Step > 31 || st.Triangle.Period > 0x7FF || st.Triangle.LinearPeriod > 0x7F {
		return errors.New("triangle out of range")
	}
	if st.Noise.Shift > 0x7FFF || st.Noise.Period == 0 {
		return errors.New("noise out of range")
	}
	if st.DMC.Level > 0x7F || st.DMC.Rate == 0 || st.DMC.BitsLeft > 8 {
		return errors.New("dmc out of range")
	}

	steps := len(fourStepSequence)
	period := uint16(fourStepPeriod)
	if st.Sequencer.FiveStep {
		steps = len(fiveStepSequence)
		period = fiveStepPeriod
	}
	if int(st.Sequencer.Step) > steps || st.Sequencer.Cycle >= period {
		return errors.New("frame sequencer out of range")
	}
	if st.Time < 0 {
		return errors.New("negative time")
	}
	return nil
}

func (e *envelope) state() envelopeState {
	return envelopeState{e.start, e.loop, e.constant, e.period, e.divider, e.decay}
}

func (e *envelope) restore(st envelopeState) {
	*e = envelope{st.Start, st.Loop, st.Constant, st.Period, st.Divider, st.Decay}
}

func (l *lengthCounter) state() lengthState {
	return lengthState{l.enabled, l.halt, l.value}
}

func (l *lengthCounter) restore(st lengthState) {
	*l = lengthCounter{st.Enabled, st.Halt, st.Value}
}

func (p *PulseChannel) state() pulseState {
	return pulseState{
		Duty:         p.duty,
		Step:         p.step,
		Timer:        p.timer,
		Period:       p.period,
		Envelope:     p.env.state(),
		Length:       p.length.state(),
		SweepEnabled: p.sweepEnabled,
		SweepPeriod:  p.sweepPeriod,
		SweepNegate:  p.sweepNegate,
		SweepShift:   p.sweepShift,
		SweepDivider: p.sweepDivider,
		SweepReload:  p.sweepReload,
	}
}

func (p *PulseChannel) restore(st pulseState) {
	p.duty = st.Duty
	p.step = st.Step
	p.timer = st.Timer
	p.period = st.Period
	p.env.restore(st.Envelope)
	p.length.restore(st.Length)
	p.sweepEnabled = st.SweepEnabled
	p.sweepPeriod = st.SweepPeriod
	p.sweepNegate = st.SweepNegate
	p.sweepShift = st.SweepShift
	p.sweepDivider = st.SweepDivider
	p.sweepReload = st.SweepReload
}

func (t *TriangleChannel) state() triangleState {
	return triangleState{
		Step:         t.step,
		Timer:        t.timer,
		Period:       t.period,
		Length:       t.length.state(),
		Control:      t.control,
		LinearPeriod: t.linearPeriod,
		Linear:       t.linear,
		LinearReload: t.linearReload,
	}
}

func (t *TriangleChannel) restore(st triangleState) {
	t.step = st.Step
	t.timer = st.Timer
	t.period = st.Period
	t.length.restore(st.Length)
	t.control = st.Control
	t.linearPeriod = st.LinearPeriod
	t.linear = st.Linear
	t.linearReload = st.LinearReload
}

func (n *NoiseChannel) state() noiseState {
	return noiseState{
		Mode:     n.mode,
		Period:   n.period,
		Timer:    n.timer,
		Shift:    n.shift,
		Envelope: n.env.state(),
		Length:   n.length.state(),
	}
}

func (n *NoiseChannel) restore(st noiseState) {
	n.mode = st.Mode
	n.period = st.Period
	n.timer = st.Timer
	n.shift = st.Shift
	n.env.restore(st.Envelope)
	n.length.restore(st.Length)
}

func (d *DMCChannel) state() dmcState {
	return dmcState{
		IRQEnabled:  d.irqEnabled,
		Loop:        d.loop,
		Rate:        d.rate,
		Timer:       d.timer,
		Level:       d.level,
		SampleAddr:  d.sampleAddr,
		SampleLen:   d.sampleLength,
		Addr:        d.addr,
		Remaining:   d.remaining,
		Buffer:      d.buffer,
		BufferEmpty: d.bufferEmpty,
		Shift:       d.shift,
		BitsLeft:    d.bitsLeft,
		Silence:     d.silence,
		IRQ:         d.irq,
	}
}

func (d *DMCChannel) restore(st dmcState) {
	d.irqEnabled = st.IRQEnabled
	d.loop = st.Loop
	d.rate = st.Rate
	d.timer = st.Timer
	d.level = st.Level
	d.sampleAddr = st.SampleAddr
	d.sampleLength = st.SampleLen
	d.addr = st.Addr
	d.remaining = st.Remaining
	d.buffer = st.Buffer
	d.bufferEmpty = st.BufferEmpty
	d.shift = st.Shift
	d.bitsLeft = st.BitsLeft
	d.silence = st.Silence
	d.irq = st.IRQ
}

func (s *frameSequencer) state() sequencerState {
	return sequencerState{s.fiveStep, s.irqInhibit, s.step, s.cycle, s.irq}
}

func (s *frameSequencer) restore(st sequencerState) {
	*s = frameSequencer{st.FiveStep, st.IRQInhibit, st.Step, st.Cycle, st.IRQ}
}
