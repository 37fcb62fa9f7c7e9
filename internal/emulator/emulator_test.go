package emulator

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/richardwooding/nesapu/internal/memory"
	"github.com/richardwooding/nesapu/internal/sound"
	"github.com/richardwooding/nesapu/internal/vgm"
)

const ntscClock = 1789773

// countSink counts the samples it receives.
type countSink struct {
	blocks  int
	samples int
}

func (c *countSink) Write(samples []int16) error {
	c.blocks++
	c.samples += len(samples)
	return nil
}

// buildVGM assembles a version 1.61 file. loop is an offset into cmds, or
// -1 for none.
func buildVGM(t *testing.T, clock uint32, cmds []byte, loop int) *vgm.File {
	t.Helper()
	const headerSize = 0x100
	data := make([]byte, headerSize)
	copy(data, "Vgm ")
	le := binary.LittleEndian
	le.PutUint32(data[0x08:], 0x161)
	le.PutUint32(data[0x34:], headerSize-0x34)
	le.PutUint32(data[0x84:], clock)
	if loop >= 0 {
		le.PutUint32(data[0x1C:], uint32(headerSize+loop-0x1C))
	}
	data = append(data, cmds...)
	le.PutUint32(data[0x04:], uint32(len(data)-0x04))

	f, err := vgm.Parse(data)
	if err != nil {
		t.Fatalf("vgm.Parse: %v", err)
	}
	return f
}

func newTestPlayer(t *testing.T, f *vgm.File, opts ...Option) *Player {
	t.Helper()
	p, err := New(f, sound.DefaultConfig(), append([]Option{WithSink(&countSink{})}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

// squareWave starts pulse 1 and waits one NTSC frame.
var squareWave = []byte{
	0xB4, 0x15, 0x01,
	0xB4, 0x00, 0xBF,
	0xB4, 0x02, 0xFD,
	0xB4, 0x03, 0x08,
	0x62,
	0x66,
}

func TestStepFrame_WritesReachAPU(t *testing.T) {
	p := newTestPlayer(t, buildVGM(t, ntscClock, squareWave, -1))

	if err := p.StepFrame(); err != nil {
		t.Fatalf("StepFrame: %v", err)
	}

	if status := p.Sound.Read(0); status&0x01 == 0 {
		t.Errorf("Status: got 0x%02X, want pulse 1 active", status)
	}
	if !p.Done() {
		t.Error("Player should be done after one frame")
	}
	if p.Frames() != 1 {
		t.Errorf("Frames: got %d, want 1", p.Frames())
	}
	if want := 735 * time.Second / vgm.SampleRate; p.Elapsed() != want {
		t.Errorf("Elapsed: got %v, want %v", p.Elapsed(), want)
	}
}

func TestStepFrame_WaitSpansFrames(t *testing.T) {
	// One second wait
	p := newTestPlayer(t, buildVGM(t, ntscClock, []byte{0x61, 0x44, 0xAC, 0x66}, -1))

	if err := p.RunUntilDone(0, 0); err != nil {
		t.Fatalf("RunUntilDone: %v", err)
	}
	if p.Frames() != FrameRate {
		t.Errorf("Frames: got %d, want %d", p.Frames(), FrameRate)
	}
	if p.Elapsed() != time.Second {
		t.Errorf("Elapsed: got %v, want 1s", p.Elapsed())
	}
}

func TestStepFrame_SamplesReachSink(t *testing.T) {
	sink := &countSink{}
	f := buildVGM(t, ntscClock, []byte{0x61, 0x44, 0xAC, 0x66}, -1)
	p, err := New(f, sound.DefaultConfig(), WithSink(sink))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := p.RunUntilDone(0, 0); err != nil {
		t.Fatalf("RunUntilDone: %v", err)
	}

	// One second at 96 kHz fills 23 blocks
	if sink.blocks != 23 {
		t.Errorf("Blocks: got %d, want 23", sink.blocks)
	}
	if sink.samples != 23*sound.DefaultBlockSize {
		t.Errorf("Samples: got %d, want %d", sink.samples, 23*sound.DefaultBlockSize)
	}
}

func TestLoops(t *testing.T) {
	// The loop point is the wait
	f := buildVGM(t, ntscClock, squareWave, 12)

	tests := []struct {
		loops      int
		wantFrames uint64
	}{
		{0, 1},
		{2, 3},
	}

	for _, tt := range tests {
		p := newTestPlayer(t, f, WithLoops(tt.loops))
		if err := p.RunUntilDone(100, 0); err != nil {
			t.Fatalf("loops=%d: RunUntilDone: %v", tt.loops, err)
		}
		if p.Frames() != tt.wantFrames {
			t.Errorf("loops=%d: got %d frames, want %d", tt.loops, p.Frames(), tt.wantFrames)
		}
	}
}

func TestRunUntilDone_FrameLimit(t *testing.T) {
	p := newTestPlayer(t, buildVGM(t, ntscClock, squareWave, 12), WithLoops(-1))

	err := p.RunUntilDone(5, 0)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("RunUntilDone: got %v, want %v", err, ErrTimeout)
	}
	if p.Frames() != 5 {
		t.Errorf("Frames: got %d, want 5", p.Frames())
	}
}

func TestDataBlock(t *testing.T) {
	cmds := []byte{
		0x67, 0x66, 0xC2, 6, 0, 0, 0, 0x00, 0xC0, 0x11, 0x22, 0x33, 0x44,
		0x62,
		0x66,
	}
	p := newTestPlayer(t, buildVGM(t, ntscClock, cmds, -1))

	if err := p.StepFrame(); err != nil {
		t.Fatalf("StepFrame: %v", err)
	}
	for i, want := range []uint8{0x11, 0x22, 0x33, 0x44} {
		if got := p.Bus.ReadDMC(0xC000 + uint16(i)); got != want {
			t.Errorf("ReadDMC(0x%04X): got 0x%02X, want 0x%02X", 0xC000+i, got, want)
		}
	}
}

func TestDataBlock_OutOfRange(t *testing.T) {
	cmds := []byte{0x67, 0x66, 0xC2, 4, 0, 0, 0, 0xFF, 0xFF, 0x11, 0x22, 0x66}
	p := newTestPlayer(t, buildVGM(t, ntscClock, cmds, -1))

	if err := p.StepFrame(); !errors.Is(err, memory.ErrLoadOutOfRange) {
		t.Errorf("StepFrame: got %v, want %v", err, memory.ErrLoadOutOfRange)
	}
}

func TestCommandError(t *testing.T) {
	p := newTestPlayer(t, buildVGM(t, ntscClock, []byte{0x96}, -1))

	if err := p.StepFrame(); !errors.Is(err, vgm.ErrUnsupportedCommand) {
		t.Errorf("StepFrame: got %v, want %v", err, vgm.ErrUnsupportedCommand)
	}
}

func TestClockFromFile(t *testing.T) {
	const palClock = 1662607
	p := newTestPlayer(t, buildVGM(t, palClock, squareWave, -1))

	if got := p.Sound.Config().ClockRate; got != palClock {
		t.Errorf("ClockRate: got %d, want %d", got, palClock)
	}
}

func TestRestart(t *testing.T) {
	p := newTestPlayer(t, buildVGM(t, ntscClock, squareWave, -1))
	p.Sound.SetVolume(0.8)

	if err := p.RunUntilDone(0, 0); err != nil {
		t.Fatalf("RunUntilDone: %v", err)
	}

	p.Restart()
	if p.Done() || p.Frames() != 0 || p.Elapsed() != 0 {
		t.Errorf("After Restart: done=%v frames=%d elapsed=%v", p.Done(), p.Frames(), p.Elapsed())
	}
	if p.Sound.Read(0) != 0 {
		t.Error("APU should be silent after Restart")
	}
	if p.Sound.Volume() != 0.8 {
		t.Errorf("Volume after Restart: got %v, want 0.8", p.Sound.Volume())
	}

	if err := p.RunUntilDone(0, 0); err != nil {
		t.Fatalf("RunUntilDone after Restart: %v", err)
	}
	if p.Frames() != 1 {
		t.Errorf("Frames after replay: got %d, want 1", p.Frames())
	}
}
