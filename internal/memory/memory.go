// Package memory implements the CPU-side address space seen by the APU.
//
// Register writes and status reads in $4000-$4017 are routed to the APU at
// the current cycle. Everything else is plain RAM, which also backs the
// DMC sample fetches.
package memory

import (
	"errors"
	"fmt"

	"github.com/richardwooding/nesapu/internal/apu"
)

// APU is the register interface the bus routes to.
type APU interface {
	Write(elapsed int64, addr uint16, value uint8) uint8
	Read(elapsed int64) uint8
}

// ErrLoadOutOfRange is returned when data would run past the end of memory.
var ErrLoadOutOfRange = errors.New("data does not fit in address space")

// Bus represents the 64KB address space.
type Bus struct {
	ram [0x10000]uint8

	apu   APU
	cycle int64 // Cycles elapsed in the current frame
}

// NewBus creates a new memory bus with all memory cleared.
func NewBus() *Bus {
	return &Bus{}
}

// SetAPU attaches the APU.
func (b *Bus) SetAPU(a APU) {
	b.apu = a
}

// SetCycle sets the frame cycle used to timestamp APU accesses.
func (b *Bus) SetCycle(cycle int64) {
	b.cycle = cycle
}

// Cycle returns the frame cycle used to timestamp APU accesses.
func (b *Bus) Cycle() int64 {
	return b.cycle
}

// Read reads a byte from the memory bus.
func (b *Bus) Read(addr uint16) uint8 {
	if addr == apu.RegStatus && b.apu != nil {
		return b.apu.Read(b.cycle)
	}
	return b.ram[addr]
}

// Write writes a byte to the memory bus. APU registers are not stored.
func (b *Bus) Write(addr uint16, value uint8) {
	if apu.ValidAddress(addr) {
		if b.apu != nil {
			b.apu.Write(b.cycle, addr, value)
		}
		return
	}
	b.ram[addr] = value
}

// ReadDMC returns a sample byte for the DMC channel.
func (b *Bus) ReadDMC(addr uint16) uint8 {
	return b.ram[addr]
}

// Load copies data into memory starting at addr.
func (b *Bus) Load(addr uint16, data []byte) error {
	if int(addr)+len(data) > len(b.ram) {
		return fmt.Errorf("%w: %d bytes at $%04X", ErrLoadOutOfRange, len(data), addr)
	}
	copy(b.ram[addr:], data)
	return nil
}

// Reset clears all RAM while keeping the APU attached.
func (b *Bus) Reset() {
	clear(b.ram[:])
	b.cycle = 0
}
