package apu

// frameEvent is a set of frame sequencer outputs.
type frameEvent uint8

const (
	quarterFrame   frameEvent = 1 << iota // Envelopes and triangle linear counter
	halfFrame                             // Length counters and sweeps
	frameInterrupt                        // Frame IRQ (4-step mode only)
)

type frameStep struct {
	cycle uint16
	event frameEvent
}

// NTSC step timings in CPU cycles from the start of the sequence.
var (
	fourStepSequence = []frameStep{
		{7457, quarterFrame},
		{14913, quarterFrame | halfFrame},
		{22371, quarterFrame},
		{29829, quarterFrame | halfFrame | frameInterrupt},
	}
	fiveStepSequence = []frameStep{
		{7457, quarterFrame},
		{14913, quarterFrame | halfFrame},
		{22371, quarterFrame},
		{29829, 0},
		{37281, quarterFrame | halfFrame},
	}
)

const (
	fourStepPeriod = 29830
	fiveStepPeriod = 37282
)

// frameSequencer drives the low-frequency units of all channels.
//
// Timing:
//   - 4-step mode: quarter frames at 240 Hz, half frames at 120 Hz, IRQ at 60 Hz
//   - 5-step mode: four quarter frames per 192 Hz sequence and no IRQ
type frameSequencer struct {
	fiveStep   bool
	irqInhibit bool
	step       uint8  // Next step to fire
	cycle      uint16 // CPU cycles since sequence start
	irq        bool   // Frame interrupt flag
}

func (s *frameSequencer) sequence() ([]frameStep, uint16) {
	if s.fiveStep {
		return fiveStepSequence, fiveStepPeriod
	}
	return fourStepSequence, fourStepPeriod
}

// clock advances the sequencer by one CPU cycle and returns the events
// that fire on this cycle.
func (s *frameSequencer) clock() frameEvent {
	steps, period := s.sequence()

	var ev frameEvent
	if int(s.step) < len(steps) && s.cycle == steps[s.step].cycle {
		ev = steps[s.step].event
		s.step++
	}

	s.cycle++
	if s.cycle >= period {
		s.cycle = 0
		s.step = 0
	}

	if ev&frameInterrupt != 0 && !s.irqInhibit {
		s.irq = true
	}
	return ev &^ frameInterrupt
}

// write handles $4017: MI-- ----.
// Returns the events to apply immediately.
func (s *frameSequencer) write(value uint8) frameEvent {
	s.fiveStep = value&0x80 != 0
	s.irqInhibit = value&0x40 != 0
	if s.irqInhibit {
		s.irq = false
	}
	s.step = 0
	s.cycle = 0

	if s.fiveStep {
		return quarterFrame | halfFrame
	}
	return 0
}

func (s *frameSequencer) reset() {
	*s = frameSequencer{}
}
