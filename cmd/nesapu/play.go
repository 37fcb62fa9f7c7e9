package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/richardwooding/nesapu/internal/emulator"
	"github.com/richardwooding/nesapu/internal/input"
	"github.com/richardwooding/nesapu/internal/vgm"
	"github.com/sirupsen/logrus"
)

const keyHelp = "Up/Down volume, M mute, 1-5 channels, R restart, Q quit"

// PlayCmd plays a VGM file through the default audio device.
type PlayCmd struct {
	File  string `arg:"" type:"existingfile" help:"Path to VGM or VGZ file."`
	Loops int    `help:"Times to replay the loop section, -1 forever." default:"0"`

	AudioFlags `embed:""`
}

// Run executes the play command.
func (c *PlayCmd) Run(log logrus.FieldLogger) error {
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

	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}
	<-ready

	stream := p.Sound.Stream(1)
	player := otoCtx.NewPlayer(stream)
	player.Play()
	defer player.Close()

	tty, err := OpenTerminal()
	if err != nil {
		return err
	}
	var keys <-chan string
	if tty != nil {
		defer tty.Restore()
		keys = tty.Keys()
		tty.Status(keyHelp)
	}

	if err := c.loop(p, tty, keys); err != nil {
		return err
	}

	if p.Done() && !drain(p, drainTimeout) {
		log.Warn("Audio device did not drain the output queue")
	}
	log.WithField("underruns", stream.Underruns()).Info("Playback stopped")
	return nil
}

var errQuit = errors.New("quit")

// drainTimeout bounds the wait for the device to play the end of a track.
const drainTimeout = 2 * time.Second

// drain sends the samples left in the resampler to the output queue and
// waits until the device has read them. It gives up after timeout, closing
// the queue if the flush itself is blocked, and reports whether the queue
// emptied.
func drain(p *emulator.Player, timeout time.Duration) bool {
	deadline := time.After(timeout)

	flushed := make(chan error, 1)
	go func() { flushed <- p.Sound.Flush() }()
	select {
	case <-flushed:
	case <-deadline:
		p.Sound.Close()
		<-flushed
		return false
	}

	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for p.Sound.Queue().Len() > 0 {
		select {
		case <-tick.C:
		case <-deadline:
			return false
		}
	}
	return true
}

// loop runs frames until playback ends or Q is pressed. RunFrame blocks on
// the full output queue, which paces emulation to the audio device.
func (c *PlayCmd) loop(p *emulator.Player, tty *Terminal, keys <-chan string) error {
	hotkeys := input.New(nil)
	for !p.Done() {
		select {
		case key, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			status, err := handleAction(p, hotkeys.Lookup(key))
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				return err
			}
			if status != "" && tty != nil {
				tty.Status(status)
			}
		default:
		}

		if err := p.StepFrame(); err != nil {
			return err
		}
	}
	return nil
}

// handleAction applies a hotkey action to the player and returns a status
// line.
func handleAction(p *emulator.Player, a input.Action) (string, error) {
	switch a {
	case input.None:
		return "", nil
	case input.Quit:
		return "", errQuit
	case input.Restart:
		p.Restart()
		return "Restarted", nil
	}
	return input.Apply(p.Sound, a)
}
