package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/richardwooding/nesapu/internal/apu"
	"github.com/richardwooding/nesapu/internal/emulator"
	"github.com/richardwooding/nesapu/internal/input"
	"github.com/richardwooding/nesapu/internal/sound"
	"github.com/richardwooding/nesapu/internal/vgm"
	"github.com/sirupsen/logrus"
)

func TestAudioFlags_Config(t *testing.T) {
	tests := []struct {
		name    string
		flags   AudioFlags
		wantErr error
	}{
		{"defaults", AudioFlags{SampleRate: 96000, BassFrequency: 16, Volume: 0.5}, nil},
		{"48 kHz", AudioFlags{SampleRate: 48000, Volume: 1}, nil},
		{"volume too high", AudioFlags{SampleRate: 96000, Volume: 1.5}, ErrInvalidVolume},
		{"zero rate", AudioFlags{SampleRate: 0, Volume: 0.5}, sound.ErrInvalidConfig},
		{"negative bass", AudioFlags{SampleRate: 96000, BassFrequency: -1}, sound.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := tt.flags.config()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("config: got %v, want %v", err, tt.wantErr)
			}
			if err == nil && cfg.SampleRate != tt.flags.SampleRate {
				t.Errorf("SampleRate: got %d, want %d", cfg.SampleRate, tt.flags.SampleRate)
			}
		})
	}
}

func TestRenderCmd_Options(t *testing.T) {
	cmd := &RenderCmd{
		Loops:      2,
		MaxFrames:  600,
		Timeout:    5,
		AudioFlags: AudioFlags{SampleRate: 48000, BassFrequency: 16, Volume: 0.5},
	}

	opts, err := cmd.options(logrus.New())
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Loops != 2 || opts.MaxFrames != 600 {
		t.Errorf("Limits: got loops %d frames %d, want 2 and 600", opts.Loops, opts.MaxFrames)
	}
	if opts.Timeout != 5*time.Second {
		t.Errorf("Timeout: got %v, want %v", opts.Timeout, 5*time.Second)
	}
	if opts.Config.SampleRate != 48000 || opts.Config.BlockSize != sound.DefaultBlockSize {
		t.Errorf("Config: got %+v", opts.Config)
	}
	if opts.Log == nil {
		t.Error("Log should be set")
	}

	cmd.Volume = 2
	if _, err := cmd.options(logrus.New()); !errors.Is(err, ErrInvalidVolume) {
		t.Errorf("options: got %v, want %v", err, ErrInvalidVolume)
	}
}

func TestNewLogger(t *testing.T) {
	log, err := newLogger("debug")
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("Level: got %v, want %v", log.GetLevel(), logrus.DebugLevel)
	}

	if _, err := newLogger("loud"); err == nil {
		t.Error("newLogger should reject unknown levels")
	}
}

func TestTerminalKeys(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"m", []string{"M"}},
		{"M", []string{"M"}},
		{"12", []string{"1", "2"}},
		{"\x1b[A\x1b[B", []string{"Up", "Down"}},
		{"=-+", []string{"+", "-", "+"}},
		{"\x03", []string{"Q"}},
		{"\x1b[C r", []string{"R"}},
	}

	for _, tt := range tests {
		got := terminalKeys([]byte(tt.in))
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("terminalKeys(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

// newTestPlayer creates a player for a short square wave log.
func newTestPlayer(t *testing.T) *emulator.Player {
	t.Helper()
	data := make([]byte, 0x100)
	copy(data, "Vgm ")
	data[0x08], data[0x09] = 0x61, 0x01
	data[0x34] = 0x100 - 0x34
	data[0x84], data[0x85], data[0x86] = 0x4D, 0x4F, 0x1B // 1789773
	data = append(data,
		0xB4, 0x15, 0x01,
		0xB4, 0x00, 0xBF,
		0xB4, 0x02, 0xFD,
		0xB4, 0x03, 0x08,
		0x62, 0x66,
	)
	f, err := vgm.Parse(data)
	if err != nil {
		t.Fatalf("vgm.Parse: %v", err)
	}

	p, err := emulator.New(f, sound.DefaultConfig())
	if err != nil {
		t.Fatalf("emulator.New: %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

func TestHandleAction(t *testing.T) {
	p := newTestPlayer(t)

	if status, err := handleAction(p, input.ToggleChannel3); err != nil || status != "triangle muted" {
		t.Errorf("ToggleChannel3: got %q, %v", status, err)
	}
	if status, err := handleAction(p, input.None); err != nil || status != "" {
		t.Errorf("None: got %q, %v", status, err)
	}
	if _, err := handleAction(p, input.Quit); !errors.Is(err, errQuit) {
		t.Errorf("Quit: got %v, want %v", err, errQuit)
	}

	if err := p.StepFrame(); err != nil {
		t.Fatalf("StepFrame: %v", err)
	}
	if status, err := handleAction(p, input.Restart); err != nil || status != "Restarted" {
		t.Errorf("Restart: got %q, %v", status, err)
	}
	if p.Frames() != 0 {
		t.Errorf("Frames after restart: got %d, want 0", p.Frames())
	}
}

func TestStatusText(t *testing.T) {
	p := newTestPlayer(t)
	if _, err := p.Sound.ToggleChannelMute(apu.Noise); err != nil {
		t.Fatalf("ToggleChannelMute: %v", err)
	}

	text := statusText(p, "song.vgm", "Vol: 0.50")
	for _, want := range []string{"song.vgm", "Playing", "Vol: 0.50", "4 noise    --", "1 pulse1   on"} {
		if !strings.Contains(text, want) {
			t.Errorf("Status text missing %q:\n%s", want, text)
		}
	}
}

func TestDrain_FlushesTail(t *testing.T) {
	p := newTestPlayer(t)
	if err := p.StepFrame(); err != nil {
		t.Fatalf("StepFrame: %v", err)
	}
	left := p.Sound.SamplesAvailable()
	if left == 0 {
		t.Fatal("Expected samples left in the resampler")
	}

	// Nothing reads the queue, so the wait times out
	if drain(p, 30*time.Millisecond) {
		t.Error("drain should time out without a reader")
	}
	if got := p.Sound.Queue().Len(); got != left {
		t.Errorf("Queued samples: got %d, want %d", got, left)
	}
	if p.Sound.SamplesAvailable() != 0 {
		t.Errorf("SamplesAvailable after drain: got %d, want 0", p.Sound.SamplesAvailable())
	}
}

func TestDrain_WaitsForReader(t *testing.T) {
	p := newTestPlayer(t)
	if err := p.StepFrame(); err != nil {
		t.Fatalf("StepFrame: %v", err)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		stream := p.Sound.Stream(1)
		buf := make([]byte, 512)
		for {
			select {
			case <-stop:
				return
			default:
			}
			_, _ = stream.Read(buf)
			time.Sleep(time.Millisecond)
		}
	}()

	if !drain(p, 5*time.Second) {
		t.Fatal("drain should finish once the reader empties the queue")
	}
	if got := p.Sound.Queue().Len(); got != 0 {
		t.Errorf("Queued samples: got %d, want 0", got)
	}
}
