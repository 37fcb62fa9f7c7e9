package memory

import (
	"errors"
	"testing"

	"github.com/richardwooding/nesapu/internal/apu"
)

// apuWrite records one register access.
type apuWrite struct {
	elapsed int64
	addr    uint16
	value   uint8
}

type fakeAPU struct {
	writes []apuWrite
	reads  []int64
	status uint8
}

func (f *fakeAPU) Write(elapsed int64, addr uint16, value uint8) uint8 {
	f.writes = append(f.writes, apuWrite{elapsed, addr, value})
	return 0
}

func (f *fakeAPU) Read(elapsed int64) uint8 {
	f.reads = append(f.reads, elapsed)
	return f.status
}

func TestRAMAccess(t *testing.T) {
	bus := NewBus()

	tests := []struct {
		addr  uint16
		value uint8
	}{
		{0x0000, 0x11},
		{0x07FF, 0x22},
		{0x8000, 0x33},
		{0xC123, 0x44},
		{0xFFFF, 0x55},
	}

	for _, tt := range tests {
		bus.Write(tt.addr, tt.value)
		if got := bus.Read(tt.addr); got != tt.value {
			t.Errorf("Read(0x%04X) = %02X, want %02X", tt.addr, got, tt.value)
		}
	}
}

func TestAPURegisterRouting(t *testing.T) {
	bus := NewBus()
	fake := &fakeAPU{status: 0x41}
	bus.SetAPU(fake)
	bus.SetCycle(1234)

	bus.Write(apu.RegPulse1Control, 0xBF)
	bus.Write(apu.RegFrameCounter, 0x40)
	bus.Write(0x4014, 0x02) // OAM DMA is not an APU register

	if len(fake.writes) != 2 {
		t.Fatalf("APU writes: got %d, want 2", len(fake.writes))
	}
	want := apuWrite{1234, apu.RegPulse1Control, 0xBF}
	if fake.writes[0] != want {
		t.Errorf("First write: got %+v, want %+v", fake.writes[0], want)
	}
	if bus.ram[apu.RegPulse1Control] != 0 {
		t.Error("APU register writes should not reach RAM")
	}
	if bus.Read(0x4014) != 0x02 {
		t.Error("Non-APU I/O address should be stored in RAM")
	}

	if got := bus.Read(apu.RegStatus); got != 0x41 {
		t.Errorf("Read(0x4015) = %02X, want 41", got)
	}
	if len(fake.reads) != 1 || fake.reads[0] != 1234 {
		t.Errorf("Status reads: got %v, want [1234]", fake.reads)
	}
}

func TestWithoutAPU(t *testing.T) {
	bus := NewBus()

	bus.Write(apu.RegStatus, 0x1F)
	if got := bus.Read(apu.RegStatus); got != 0 {
		t.Errorf("Read(0x4015) without APU = %02X, want 00", got)
	}
}

func TestLoad(t *testing.T) {
	bus := NewBus()

	if err := bus.Load(0xC000, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	for i, want := range []uint8{1, 2, 3} {
		if got := bus.ReadDMC(0xC000 + uint16(i)); got != want {
			t.Errorf("ReadDMC(0x%04X) = %d, want %d", 0xC000+i, got, want)
		}
	}

	if err := bus.Load(0xFFFE, []byte{1, 2}); err != nil {
		t.Errorf("Load ending at 0xFFFF: %v", err)
	}
	if err := bus.Load(0xFFFF, []byte{1, 2}); !errors.Is(err, ErrLoadOutOfRange) {
		t.Errorf("Load past end: got %v, want %v", err, ErrLoadOutOfRange)
	}
}

func TestReset(t *testing.T) {
	bus := NewBus()
	fake := &fakeAPU{}
	bus.SetAPU(fake)
	bus.SetCycle(99)
	bus.Write(0x8000, 0xAA)

	bus.Reset()

	if bus.Read(0x8000) != 0 {
		t.Error("RAM should be cleared after Reset")
	}
	if bus.Cycle() != 0 {
		t.Errorf("Cycle after Reset: got %d, want 0", bus.Cycle())
	}
	bus.Write(apu.RegStatus, 0x01)
	if len(fake.writes) != 1 {
		t.Error("APU should stay attached after Reset")
	}
}

func TestDMCReaderInterface(t *testing.T) {
	var _ apu.DMCReader = NewBus()
}
