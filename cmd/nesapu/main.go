// Package main provides the nesapu CLI application.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"github.com/richardwooding/nesapu/internal/render"
	"github.com/richardwooding/nesapu/internal/sound"
	"github.com/richardwooding/nesapu/internal/vgm"
	"github.com/sirupsen/logrus"
)

var (
	// ErrRenderFailed indicates a render did not complete.
	ErrRenderFailed = errors.New("render failed")

	// ErrInvalidScale indicates the scale factor is out of valid range.
	ErrInvalidScale = errors.New("scale must be between 1 and 10")

	// ErrInvalidVolume indicates the volume is out of valid range.
	ErrInvalidVolume = errors.New("volume must be between 0 and 1")
)

// CLI represents the command-line interface structure.
type CLI struct {
	Config   kong.ConfigFlag `help:"Load flag defaults from a JSON file."`
	LogLevel string          `help:"Log level (debug, info, warn, error)." default:"warn" env:"NESAPU_LOG_LEVEL"`

	Info   InfoCmd   `cmd:"" help:"Display VGM file information."`
	Play   PlayCmd   `cmd:"" help:"Play a VGM file in the terminal."`
	Run    RunCmd    `cmd:"" help:"Play a VGM file in a window."`
	Render RenderCmd `cmd:"" help:"Render a VGM file to WAV."`
}

// AudioFlags are the sound settings shared by the playback commands.
type AudioFlags struct {
	SampleRate    int     `help:"Output sample rate in Hz." default:"96000" env:"NESAPU_SAMPLE_RATE"`
	BassFrequency int     `help:"High-pass cutoff in Hz, 0 disables." default:"16" env:"NESAPU_BASS_FREQUENCY"`
	Volume        float32 `help:"Initial volume (0-1)." default:"0.5" env:"NESAPU_VOLUME"`
}

// config returns the sound configuration for the flags.
func (a *AudioFlags) config() (sound.Config, error) {
	if a.Volume < 0 || a.Volume > 1 {
		return sound.Config{}, fmt.Errorf("%w: got %v", ErrInvalidVolume, a.Volume)
	}
	cfg := sound.DefaultConfig()
	cfg.SampleRate = a.SampleRate
	cfg.BassFrequency = a.BassFrequency
	if err := cfg.Validate(); err != nil {
		return sound.Config{}, err
	}
	return cfg, nil
}

// InfoCmd displays VGM header information.
type InfoCmd struct {
	File string `arg:"" type:"existingfile" help:"Path to VGM or VGZ file."`
	JSON bool   `help:"Print as JSON."`
}

// Run executes the info command.
func (c *InfoCmd) Run() error {
	f, err := vgm.Open(c.File)
	if err != nil {
		return fmt.Errorf("failed to load VGM file: %w", err)
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Header *vgm.Header  `json:"header"`
			Tags   *vgm.Tags    `json:"tags,omitempty"`
			Audio  sound.Config `json:"audio"`
		}{f.Header, f.Tags, sound.DefaultConfig()})
	}

	h := f.Header
	fmt.Printf("VGM Information:\n")
	fmt.Printf("  Version:        %s\n", h.VersionString())
	fmt.Printf("  NES APU Clock:  %d Hz\n", h.NESAPUClock)
	fmt.Printf("  FDS:            %v\n", h.FDS)
	fmt.Printf("  Length:         %v\n", time.Duration(h.Duration()*float64(time.Second)).Round(time.Millisecond))
	if h.LoopOffset != 0 {
		fmt.Printf("  Loop:           %v from 0x%X\n",
			time.Duration(h.LoopSamples)*time.Second/vgm.SampleRate, h.LoopOffset)
	}
	if h.Rate != 0 {
		fmt.Printf("  Rate:           %d Hz\n", h.Rate)
	}
	if t := f.Tags; t != nil {
		fmt.Printf("  Track:          %s\n", t.Track)
		fmt.Printf("  Game:           %s\n", t.Game)
		fmt.Printf("  System:         %s\n", t.System)
		fmt.Printf("  Author:         %s\n", t.Author)
		fmt.Printf("  Date:           %s\n", t.Date)
	}

	return nil
}

// RenderCmd renders a VGM file to WAV.
type RenderCmd struct {
	File      string `arg:"" type:"existingfile" help:"Path to VGM or VGZ file."`
	Output    string `short:"o" type:"path" help:"Output WAV file (default: input with .wav extension)."`
	Loops     int    `help:"Times to replay the loop section." default:"0"`
	MaxFrames uint64 `help:"Stop after this many frames, 0 for no limit." default:"0"`
	Timeout   int    `default:"60" help:"Timeout in seconds, 0 for no limit."`

	AudioFlags `embed:""`
}

// options returns the render options for the flags.
func (c *RenderCmd) options(log logrus.FieldLogger) (render.Options, error) {
	cfg, err := c.config()
	if err != nil {
		return render.Options{}, err
	}

	opts := render.DefaultOptions()
	opts.Config = cfg
	opts.Loops = c.Loops
	opts.MaxFrames = c.MaxFrames
	opts.Timeout = time.Duration(c.Timeout) * time.Second
	opts.Log = log
	return opts, nil
}

// Run executes the render command.
func (c *RenderCmd) Run(log logrus.FieldLogger) error {
	opts, err := c.options(log)
	if err != nil {
		return err
	}

	out := c.Output
	if out == "" {
		out = outputPath(c.File)
	}

	fmt.Printf("Rendering %s to %s\n", c.File, out)
	result := render.Run(c.File, out, opts)
	fmt.Printf("Result: %s\n", result.String())

	if !result.IsSuccess() {
		return fmt.Errorf("%w: %w", ErrRenderFailed, result.Error)
	}
	return nil
}

// outputPath replaces the extension of a VGM path with .wav.
func outputPath(in string) string {
	return in[:len(in)-len(filepath.Ext(in))] + ".wav"
}

// newLogger creates the process logger writing to stderr.
func newLogger(level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(lvl)
	return log, nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("nesapu"),
		kong.Description("An NES APU sound emulator and VGM player written in Go."),
		kong.Configuration(kong.JSON, "~/.config/nesapu.json", ".nesapu.json"),
		kong.UsageOnError(),
	)

	log, err := newLogger(cli.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	ctx.BindTo(log, (*logrus.FieldLogger)(nil))

	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
