// Package emulator plays VGM register logs through the APU.
//
// A Player feeds the commands of a vgm.File to the memory bus at their
// CPU cycle within each 60 Hz frame, then ends the frame on the sound
// subsystem so finished samples reach its sink.
package emulator

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/richardwooding/nesapu/internal/memory"
	"github.com/richardwooding/nesapu/internal/sound"
	"github.com/richardwooding/nesapu/internal/vgm"
	"github.com/sirupsen/logrus"
)

// FrameRate is the number of frames run per emulated second.
const FrameRate = 60

// ErrTimeout indicates playback did not finish in time.
var ErrTimeout = errors.New("timeout waiting for playback to finish")

// Option configures a Player.
type Option func(*Player)

// WithLoops sets how many times the loop section is replayed. A negative
// count loops forever.
func WithLoops(n int) Option {
	return func(p *Player) {
		p.loops = n
	}
}

// WithLogger sets the logger used by the player and its sound subsystem.
func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Player) {
		p.log = log
	}
}

// WithSink sends samples to sink instead of the sound output queue.
func WithSink(sink sound.Sink) Option {
	return func(p *Player) {
		p.sink = sink
	}
}

// Player represents one VGM playback.
type Player struct {
	File  *vgm.File
	Bus   *memory.Bus
	Sound *sound.Sound

	cmds  *vgm.Reader
	clock int64
	loops int
	sink  sound.Sink

	frameAcc int64 // Fractional frame cycles, in 1/FrameRate units
	wait     int64 // Cycles left of the current wait
	waitAcc  int64 // Fractional wait cycles, in 1/vgm.SampleRate units

	frames  uint64
	samples uint64 // VGM samples consumed

	log logrus.FieldLogger
}

// New creates a player for f. The APU clock of cfg is replaced with the one
// the file was recorded with.
func New(f *vgm.File, cfg sound.Config, opts ...Option) (*Player, error) {
	p := &Player{File: f}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		p.log = discard
	}

	cfg.ClockRate = int(f.Header.NESAPUClock)
	p.clock = int64(cfg.ClockRate)

	p.Bus = memory.NewBus()

	soundOpts := []sound.Option{
		sound.WithDMCReader(p.Bus),
		sound.WithLogger(p.log),
	}
	if p.sink != nil {
		soundOpts = append(soundOpts, sound.WithSink(p.sink))
	}
	s, err := sound.New(cfg, soundOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sound: %w", err)
	}
	p.Sound = s
	p.Bus.SetAPU(s)

	p.cmds = f.Commands(p.loops)
	p.log = p.log.WithField("component", "player")

	p.log.WithFields(logrus.Fields{
		"version": f.Header.VersionString(),
		"clock":   cfg.ClockRate,
		"loops":   p.loops,
	}).Info("Player created")

	return p, nil
}

// StepFrame runs one frame of commands and renders its samples.
func (p *Player) StepFrame() error {
	p.frameAcc += p.clock
	length := p.frameAcc / FrameRate
	p.frameAcc %= FrameRate

	var t int64
	for {
		if p.wait > 0 {
			if t+p.wait > length {
				p.wait -= length - t
				break
			}
			t += p.wait
			p.wait = 0
		}
		if p.cmds.Done() {
			break
		}

		loops := p.cmds.Loops()
		cmd, err := p.cmds.Next()
		if err != nil {
			return fmt.Errorf("failed to read command: %w", err)
		}
		if p.cmds.Loops() != loops {
			p.log.WithField("loop", p.cmds.Loops()).Debug("Returned to loop point")
		}

		switch cmd.Kind {
		case vgm.KindWrite:
			p.Bus.SetCycle(t)
			p.Bus.Write(cmd.Addr, cmd.Value)
		case vgm.KindData:
			if err := p.Bus.Load(cmd.Addr, cmd.Data); err != nil {
				return fmt.Errorf("failed to load data block: %w", err)
			}
		case vgm.KindWait:
			p.wait = p.waitCycles(cmd.Samples)
			p.samples += uint64(cmd.Samples)
		case vgm.KindEnd:
			p.log.WithField("frames", p.frames).Info("Playback finished")
		}
	}

	if err := p.Sound.RunFrame(length); err != nil {
		return fmt.Errorf("failed to run frame: %w", err)
	}
	p.frames++
	return nil
}

// waitCycles converts VGM samples to CPU cycles, carrying the remainder.
func (p *Player) waitCycles(samples int) int64 {
	n := int64(samples)*p.clock + p.waitAcc
	p.waitAcc = n % vgm.SampleRate
	return n / vgm.SampleRate
}

// Done reports whether every command has been played.
func (p *Player) Done() bool {
	return p.cmds.Done() && p.wait == 0
}

// Frames returns the number of frames run.
func (p *Player) Frames() uint64 {
	return p.frames
}

// Elapsed returns the playback position in VGM time.
func (p *Player) Elapsed() time.Duration {
	return time.Duration(p.samples) * time.Second / vgm.SampleRate
}

// RunUntilDone steps frames until playback finishes. It gives up after
// maxFrames frames or when timeout of wall time has passed; zero disables
// either limit.
func (p *Player) RunUntilDone(maxFrames uint64, timeout time.Duration) error {
	start := time.Now()
	for !p.Done() {
		if maxFrames > 0 && p.frames >= maxFrames {
			return fmt.Errorf("%w: frame limit %d reached", ErrTimeout, maxFrames)
		}
		if timeout > 0 && time.Since(start) > timeout {
			return fmt.Errorf("%w: after %v", ErrTimeout, timeout)
		}
		if err := p.StepFrame(); err != nil {
			return err
		}
	}
	return nil
}

// Restart rewinds playback and resets the bus and APU. Volume settings are
// kept.
func (p *Player) Restart() {
	p.Bus.Reset()
	p.Sound.Reset()
	p.cmds.Rewind(p.loops)
	p.frameAcc, p.wait, p.waitAcc = 0, 0, 0
	p.frames, p.samples = 0, 0
	p.log.Info("Playback restarted")
}

// Close releases the sound output.
func (p *Player) Close() {
	p.Sound.Close()
}
