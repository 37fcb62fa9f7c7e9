package apu

import (
	"testing"
)

func TestNoise_LFSRPeriod(t *testing.T) {
	tests := []struct {
		name   string
		mode   bool
		period int
	}{
		{"long mode", false, 32767},
		{"short mode", true, 93},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNoiseChannel()
			n.mode = tt.mode

			for i := 1; i <= tt.period; i++ {
				n.step()
				if n.shift == 1 && i < tt.period {
					t.Fatalf("Sequence repeated after %d steps, want %d", i, tt.period)
				}
			}
			if n.shift != 1 {
				t.Errorf("Shift register after %d steps: got 0x%04X, want 0x0001", tt.period, n.shift)
			}
		})
	}
}

func TestNoise_FirstOutputBits(t *testing.T) {
	n := NewNoiseChannel()

	// From seed 1 in long mode bit 0 is set only on steps 0 and 15.
	for i := 0; i < 20; i++ {
		want := i == 0 || i == 15
		if got := n.shift&1 != 0; got != want {
			t.Errorf("Step %d bit 0: got %v, want %v", i, got, want)
		}
		n.step()
	}
}

func TestNoise_PeriodTable(t *testing.T) {
	tests := []struct {
		index  uint8
		cycles uint16
	}{
		{0x00, 4},
		{0x08, 202},
		{0x0F, 4068},
	}

	for _, tt := range tests {
		n := NewNoiseChannel()
		n.writePeriod(tt.index)
		if n.period != tt.cycles {
			t.Errorf("Period index %d: got %d, want %d", tt.index, n.period, tt.cycles)
		}

		// Shifts on the first clock, then once every period cycles
		ref := NewNoiseChannel()
		ref.step()
		for c := uint16(0); c < tt.cycles; c++ {
			n.clock()
		}
		if n.shift != ref.shift {
			t.Errorf("Period index %d: shifted more than once in %d cycles", tt.index, tt.cycles)
		}

		n.clock()
		ref.step()
		if n.shift != ref.shift {
			t.Errorf("Period index %d: no shift after %d cycles", tt.index, tt.cycles)
		}
	}
}

func TestNoise_Amplitude(t *testing.T) {
	n := NewNoiseChannel()
	n.length.setEnabled(true)
	n.writeControl(0x3A) // Halt, constant volume 10
	n.writeLength(0x08)

	// Seed has bit 0 set: silent
	if got := n.amplitude(); got != 0 {
		t.Errorf("Amplitude with bit 0 set: got %d, want 0", got)
	}

	n.step()
	if got := n.amplitude(); got != 10 {
		t.Errorf("Amplitude with bit 0 clear: got %d, want 10", got)
	}

	n.length.setEnabled(false)
	if got := n.amplitude(); got != 0 {
		t.Errorf("Amplitude with length 0: got %d, want 0", got)
	}
}
