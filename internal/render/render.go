// Package render renders VGM files to WAV without an audio device.
package render

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/richardwooding/nesapu/internal/emulator"
	"github.com/richardwooding/nesapu/internal/sound"
	"github.com/richardwooding/nesapu/internal/vgm"
	"github.com/sirupsen/logrus"
)

const (
	bitDepth  = 16
	pcmFormat = 1
)

// Options controls a render.
type Options struct {
	Config    sound.Config
	Loops     int           // Loop replays, must not be negative
	MaxFrames uint64        // Frame limit, 0 for none
	Timeout   time.Duration // Wall time limit, 0 for none
	Log       logrus.FieldLogger
}

// DefaultOptions returns options for a single pass with a one minute timeout.
func DefaultOptions() Options {
	return Options{
		Config:  sound.DefaultConfig(),
		Timeout: time.Minute,
	}
}

// ErrInfiniteLoop is returned when asked to render endless loops.
var ErrInfiniteLoop = errors.New("cannot render infinite loops")

// Result represents the result of a render.
type Result struct {
	Frames   uint64
	Samples  int
	Peak     int16 // Largest absolute sample value
	Duration time.Duration
	Timeout  bool
	Error    error
}

// Run renders the VGM file at vgmPath into a WAV file at wavPath.
func Run(vgmPath, wavPath string, opts Options) *Result {
	f, err := vgm.Open(vgmPath)
	if err != nil {
		return &Result{Error: err}
	}

	out, err := os.Create(wavPath) // #nosec G304 -- wavPath is provided by the user via CLI argument
	if err != nil {
		return &Result{Error: fmt.Errorf("failed to create WAV file: %w", err)}
	}

	result := Render(f, out, opts)
	if err := out.Close(); err != nil && result.Error == nil {
		result.Error = fmt.Errorf("failed to close WAV file: %w", err)
	}
	return result
}

// Render plays f to the end and writes it to w as 16-bit mono WAV.
func Render(f *vgm.File, w io.WriteSeeker, opts Options) *Result {
	result := &Result{}
	if opts.Loops < 0 {
		result.Error = fmt.Errorf("%w: loops %d", ErrInfiniteLoop, opts.Loops)
		return result
	}

	sink := newWAVSink(w, opts.Config.SampleRate)

	playerOpts := []emulator.Option{
		emulator.WithSink(sink),
		emulator.WithLoops(opts.Loops),
	}
	if opts.Log != nil {
		playerOpts = append(playerOpts, emulator.WithLogger(opts.Log))
	}
	p, err := emulator.New(f, opts.Config, playerOpts...)
	if err != nil {
		result.Error = fmt.Errorf("failed to create player: %w", err)
		return result
	}
	defer p.Close()

	err = p.RunUntilDone(opts.MaxFrames, opts.Timeout)
	if err == nil {
		err = p.Sound.Flush()
	}
	if cerr := sink.close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to finish WAV file: %w", cerr)
	}

	result.Frames = p.Frames()
	result.Samples = sink.samples
	result.Peak = sink.peak
	result.Duration = time.Duration(sink.samples) * time.Second / time.Duration(opts.Config.SampleRate)
	if err != nil {
		result.Timeout = errors.Is(err, emulator.ErrTimeout)
		result.Error = err
	}
	return result
}

// String returns a human-readable representation of the result.
func (r *Result) String() string {
	if r.Error != nil && !r.Timeout {
		return fmt.Sprintf("ERROR: %v", r.Error)
	}
	if r.Timeout {
		return fmt.Sprintf("TIMEOUT after %d frames", r.Frames)
	}
	return fmt.Sprintf("OK: %d frames, %d samples (%v), peak %d",
		r.Frames, r.Samples, r.Duration.Round(time.Millisecond), r.Peak)
}

// IsSuccess returns true if the whole file was rendered.
func (r *Result) IsSuccess() bool {
	return r.Error == nil
}

// wavSink encodes sample blocks into a WAV stream.
type wavSink struct {
	enc *wav.Encoder
	buf *audio.IntBuffer

	samples int
	peak    int16
}

func newWAVSink(w io.WriteSeeker, sampleRate int) *wavSink {
	return &wavSink{
		enc: wav.NewEncoder(w, sampleRate, bitDepth, 1, pcmFormat),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			SourceBitDepth: bitDepth,
		},
	}
}

func (s *wavSink) Write(samples []int16) error {
	data := s.buf.Data[:0]
	for _, v := range samples {
		data = append(data, int(v))
		if v == -32768 {
			s.peak = 32767
		} else if v < 0 {
			s.peak = max(s.peak, -v)
		} else {
			s.peak = max(s.peak, v)
		}
	}
	s.buf.Data = data
	s.samples += len(samples)

	if err := s.enc.Write(s.buf); err != nil {
		return fmt.Errorf("failed to encode samples: %w", err)
	}
	return nil
}

func (s *wavSink) close() error {
	return s.enc.Close()
}
