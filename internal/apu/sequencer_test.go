package apu

import (
	"testing"
)

// runSequencer clocks s for n cycles and returns the cycles (1-based) on
// which each event fired.
func runSequencer(s *frameSequencer, n int) (quarters, halves []int) {
	for c := 1; c <= n; c++ {
		ev := s.clock()
		if ev&quarterFrame != 0 {
			quarters = append(quarters, c)
		}
		if ev&halfFrame != 0 {
			halves = append(halves, c)
		}
	}
	return quarters, halves
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFrameSequencer_FourStep(t *testing.T) {
	var s frameSequencer
	quarters, halves := runSequencer(&s, 2*fourStepPeriod)

	wantQuarters := []int{7458, 14914, 22372, 29830, 37288, 44744, 52202, 59660}
	wantHalves := []int{14914, 29830, 44744, 59660}

	if !equalInts(quarters, wantQuarters) {
		t.Errorf("Quarter frames: got %v, want %v", quarters, wantQuarters)
	}
	if !equalInts(halves, wantHalves) {
		t.Errorf("Half frames: got %v, want %v", halves, wantHalves)
	}
	if !s.irq {
		t.Error("4-step sequence should raise the frame IRQ")
	}
}

func TestFrameSequencer_FiveStep(t *testing.T) {
	var s frameSequencer
	if ev := s.write(0x80); ev != quarterFrame|halfFrame {
		t.Errorf("5-step write: got events %03b, want immediate quarter and half frame", ev)
	}

	quarters, halves := runSequencer(&s, fiveStepPeriod)

	wantQuarters := []int{7458, 14914, 22372, 37282}
	wantHalves := []int{14914, 37282}

	if !equalInts(quarters, wantQuarters) {
		t.Errorf("Quarter frames: got %v, want %v", quarters, wantQuarters)
	}
	if !equalInts(halves, wantHalves) {
		t.Errorf("Half frames: got %v, want %v", halves, wantHalves)
	}
	if s.irq {
		t.Error("5-step sequence should never raise the frame IRQ")
	}
}

func TestFrameSequencer_WriteResetsPhase(t *testing.T) {
	var s frameSequencer
	runSequencer(&s, 5000)

	if ev := s.write(0x00); ev != 0 {
		t.Errorf("4-step write: got events %03b, want none", ev)
	}
	if s.cycle != 0 || s.step != 0 {
		t.Fatalf("After write: cycle %d step %d, want 0 0", s.cycle, s.step)
	}

	quarters, _ := runSequencer(&s, 7458)
	if len(quarters) != 1 || quarters[0] != 7458 {
		t.Errorf("First quarter frame after write: got %v, want [7458]", quarters)
	}
}

func TestFrameSequencer_CycleStaysInPeriod(t *testing.T) {
	var s frameSequencer
	for c := 0; c < 10*fourStepPeriod+123; c++ {
		s.clock()
		if s.cycle >= fourStepPeriod {
			t.Fatalf("Cycle %d: sequencer cycle %d out of period", c, s.cycle)
		}
	}
}
