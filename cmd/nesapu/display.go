package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/richardwooding/nesapu/internal/apu"
	"github.com/richardwooding/nesapu/internal/emulator"
	"github.com/richardwooding/nesapu/internal/input"
	"github.com/richardwooding/nesapu/internal/vgm"
	"github.com/sirupsen/logrus"
)

const (
	screenWidth  = 320
	screenHeight = 160

	// Frames run per tick at most, to catch up after a stall.
	maxFramesPerTick = 3

	// Queued samples the display keeps ahead of the audio device.
	targetQueued = 2 * 4096
)

// keyNames maps window keys to hotkey names.
var keyNames = map[ebiten.Key]string{
	ebiten.KeyArrowUp:   "Up",
	ebiten.KeyArrowDown: "Down",
	ebiten.KeyEqual:     "+",
	ebiten.KeyMinus:     "-",
	ebiten.KeyM:         "M",
	ebiten.KeyDigit1:    "1",
	ebiten.KeyDigit2:    "2",
	ebiten.KeyDigit3:    "3",
	ebiten.KeyDigit4:    "4",
	ebiten.KeyDigit5:    "5",
	ebiten.KeyR:         "R",
	ebiten.KeyQ:         "Q",
	ebiten.KeyEscape:    "Escape",
}

// RunCmd plays a VGM file in a window.
type RunCmd struct {
	File  string `arg:"" type:"existingfile" help:"Path to VGM or VGZ file."`
	Loops int    `help:"Times to replay the loop section, -1 forever." default:"-1"`
	Scale int    `help:"Window scale factor (1-10)." default:"2"`

	AudioFlags `embed:""`
}

// Run executes the run command.
func (c *RunCmd) Run(log logrus.FieldLogger) error {
	if c.Scale < 1 || c.Scale > 10 {
		return fmt.Errorf("%w: got %d", ErrInvalidScale, c.Scale)
	}
	cfg, err := c.config()
	if err != nil {
		return err
	}

	f, err := vgm.Open(c.File)
	if err != nil {
		return fmt.Errorf("failed to load VGM file: %w", err)
	}

	p, err := emulator.New(f, cfg, emulator.WithLoops(c.Loops), emulator.WithLogger(log))
	if err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}
	defer p.Close()
	p.Sound.SetVolume(c.Volume)

	display, err := NewDisplay(p, filepath.Base(c.File), log)
	if err != nil {
		return err
	}
	defer display.Close()

	ebiten.SetWindowTitle("nesapu - " + filepath.Base(c.File))
	ebiten.SetWindowSize(screenWidth*c.Scale, screenHeight*c.Scale)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(emulator.FrameRate)

	if err := ebiten.RunGame(display); err != nil && !errors.Is(err, ebiten.Termination) {
		return fmt.Errorf("player error: %w", err)
	}
	return nil
}

// Display implements the Ebiten game interface for the player.
type Display struct {
	player  *emulator.Player
	name    string
	hotkeys *input.Hotkeys
	audio   *audio.Player
	status  string
	keys    []ebiten.Key // Reused by Update

	log logrus.FieldLogger
}

// NewDisplay creates a display and starts audio playback.
func NewDisplay(p *emulator.Player, name string, log logrus.FieldLogger) (*Display, error) {
	ctx := audio.NewContext(p.Sound.Config().SampleRate)
	ap, err := ctx.NewPlayer(p.Sound.Stream(2))
	if err != nil {
		return nil, fmt.Errorf("failed to create audio player: %w", err)
	}
	ap.SetBufferSize(50 * time.Millisecond)
	ap.Play()

	return &Display{
		player:  p,
		name:    name,
		hotkeys: input.New(nil),
		audio:   ap,
		status:  p.Sound.DescribeVolume(),
		log:     log,
	}, nil
}

// Update handles hotkeys and runs frames while the output queue is low.
// This is called 60 times per second by Ebiten.
func (d *Display) Update() error {
	d.keys = inpututil.AppendPressedKeys(d.keys[:0])
	names := make([]string, 0, len(d.keys))
	for _, k := range d.keys {
		if name, ok := keyNames[k]; ok {
			names = append(names, name)
		}
	}

	for _, a := range d.hotkeys.Update(names) {
		status, err := handleAction(d.player, a)
		if errors.Is(err, errQuit) {
			return ebiten.Termination
		}
		if err != nil {
			return err
		}
		d.status = status
		d.log.WithField("action", a).Debug("Hotkey")
	}

	q := d.player.Sound.Queue()
	for i := 0; i < maxFramesPerTick && q.Len() < targetQueued; i++ {
		if d.player.Done() {
			break
		}
		if err := d.player.StepFrame(); err != nil {
			return err
		}
	}
	return nil
}

// Draw draws the status overlay.
func (d *Display) Draw(screen *ebiten.Image) {
	ebitenutil.DebugPrint(screen, statusText(d.player, d.name, d.status))
}

// Layout returns the screen size.
func (d *Display) Layout(_, _ int) (int, int) {
	return screenWidth, screenHeight
}

// Close stops audio playback.
func (d *Display) Close() {
	_ = d.audio.Close()
}

// statusText describes the playback state.
func statusText(p *emulator.Player, name, status string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", name)
	if t := p.File.Tags; t != nil && t.Track != "" {
		fmt.Fprintf(&b, "%s - %s\n", t.Track, t.Game)
	}

	state := "Playing"
	if p.Done() {
		state = "Finished"
	}
	fmt.Fprintf(&b, "%s %v\n\n", state, p.Elapsed().Truncate(time.Second))

	fmt.Fprintf(&b, "%s", p.Sound.DescribeVolume())
	if p.Sound.Muted() {
		b.WriteString(" (muted)")
	}
	b.WriteString("\n")
	for c := apu.Pulse1; c < apu.NumChannels; c++ {
		mark := "on"
		if p.Sound.ChannelMuted(c) {
			mark = "--"
		}
		fmt.Fprintf(&b, "%d %-8s %s\n", c+1, c, mark)
	}

	fmt.Fprintf(&b, "\n%s\n%s", status, keyHelp)
	return b.String()
}
