package apu

import (
	"testing"
)

func newTestTriangle(control uint8, period uint16) *TriangleChannel {
	tr := NewTriangleChannel()
	tr.length.setEnabled(true)
	tr.writeLinear(control)
	tr.writeTimerLow(uint8(period))
	tr.writeTimerHigh(0x08 | uint8(period>>8)&0x07)
	return tr
}

func TestTriangle_GatedByLinearCounter(t *testing.T) {
	tr := newTestTriangle(0x7F, 10)

	// Linear counter is loaded on the next quarter frame
	for c := 0; c < 100; c++ {
		tr.clock()
	}
	if tr.step != 0 {
		t.Errorf("Step with linear counter 0: got %d, want 0", tr.step)
	}
	if got := tr.amplitude(); got != 0 {
		t.Errorf("Amplitude with linear counter 0: got %d, want 0", got)
	}

	tr.clockLinear()
	if tr.linear != 127 {
		t.Fatalf("Linear counter after reload: got %d, want 127", tr.linear)
	}
	if got := tr.amplitude(); got != 15 {
		t.Errorf("Amplitude at step 0: got %d, want 15", got)
	}

	tr.timer = 0
	tr.clock()
	if got := tr.amplitude(); got != 14 {
		t.Errorf("Amplitude at step 1: got %d, want 14", got)
	}
}

func TestTriangle_Sequence(t *testing.T) {
	const period = 10
	tr := newTestTriangle(0x80|0x7F, period)
	tr.clockLinear()

	var got []uint8
	for i := 0; i < 33; i++ {
		got = append(got, tr.amplitude())
		for c := 0; c < period+1; c++ {
			tr.clock()
		}
	}

	for i, level := range got {
		want := triangleTable[i%32]
		if level != want {
			t.Errorf("Step %d: got %d, want %d", i, level, want)
		}
	}
}

func TestTriangle_UltrasonicHolds(t *testing.T) {
	tr := newTestTriangle(0xFF, 1)
	tr.clockLinear()

	for c := 0; c < 50; c++ {
		tr.clock()
	}
	if tr.step != 0 {
		t.Errorf("Step with period 1: got %d, want 0", tr.step)
	}
}

func TestTriangle_LinearCounter(t *testing.T) {
	tests := []struct {
		name    string
		control uint8
		clocks  int
		want    uint8
	}{
		{"reload", 0x05, 1, 5},
		{"count down", 0x05, 3, 3},
		{"expire", 0x05, 6, 0},
		{"stay at 0", 0x05, 10, 0},
		{"control keeps reloading", 0x85, 10, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTriangle(tt.control, 100)
			for i := 0; i < tt.clocks; i++ {
				tr.clockLinear()
			}
			if tr.linear != tt.want {
				t.Errorf("Linear counter: got %d, want %d", tr.linear, tt.want)
			}
		})
	}
}

func TestTriangle_ControlHaltsLength(t *testing.T) {
	tr := newTestTriangle(0x80, 100)
	if !tr.length.halt {
		t.Error("Control flag should halt the length counter")
	}

	tr.writeLinear(0x00)
	if tr.length.halt {
		t.Error("Clearing the control flag should release the length counter")
	}
}
