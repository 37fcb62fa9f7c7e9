// Package sound drives the APU and its audio output.
//
// A Sound owns one APU, the band-limited resampler and the output queue:
//   - register writes from the CPU side go through Write and Read
//   - RunFrame ends each emulated frame and pushes finished sample blocks
//     to the sink, blocking while the output queue is full
//   - the audio device drains the queue through Stream
//
// Everything except the queue belongs to the emulation goroutine.
package sound

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/richardwooding/nesapu/internal/apu"
	"github.com/richardwooding/nesapu/internal/blip"
	"github.com/richardwooding/nesapu/internal/soundqueue"
	"github.com/sirupsen/logrus"
)

// Sink receives finished blocks of samples. The slice is only valid for the
// duration of the call.
type Sink interface {
	Write(samples []int16) error
}

// Option configures a Sound.
type Option func(*Sound)

// WithDMCReader sets the source of DMC sample bytes.
func WithDMCReader(r apu.DMCReader) Option {
	return func(s *Sound) {
		s.reader = r
	}
}

// WithSink sends sample blocks to sink instead of the built-in output queue.
func WithSink(sink Sink) Option {
	return func(s *Sound) {
		s.sink = sink
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Sound) {
		s.log = log
	}
}

// Sound is the APU together with its resampler and output queue.
type Sound struct {
	cfg Config

	apu    *apu.APU
	buf    *blip.Buffer
	reader apu.DMCReader

	sink  Sink                             // Custom sink, nil for the queue
	queue atomic.Pointer[soundqueue.Queue] // Swapped by ResetState
	block []int16

	vol    volume
	blocks uint64 // Blocks pushed to the sink

	log logrus.FieldLogger
}

// New creates the sound subsystem. The configuration is validated before
// anything is allocated.
func New(cfg Config, opts ...Option) (*Sound, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Sound{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		s.log = discard
	}
	s.log = s.log.WithField("component", "sound")

	buf, err := blip.New(cfg.SampleRate, cfg.ClockRate, cfg.BufferMillis)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	buf.SetBassFrequency(cfg.BassFrequency)
	s.buf = buf

	s.apu = apu.New(s.reader)
	s.apu.SetOutput(buf)

	if s.sink == nil {
		q, err := soundqueue.New(cfg.QueueCapacity)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		s.queue.Store(q)
	}
	s.block = make([]int16, cfg.BlockSize)

	s.vol = defaultVolume()
	s.applyVolume()

	s.log.WithFields(logrus.Fields{
		"sample_rate": cfg.SampleRate,
		"clock_rate":  cfg.ClockRate,
		"block_size":  cfg.BlockSize,
	}).Info("Sound initialized")

	return s, nil
}

// Config returns the configuration the Sound was created with.
func (s *Sound) Config() Config {
	return s.cfg
}

// APU returns the underlying APU.
func (s *Sound) APU() *apu.APU {
	return s.apu
}

// Write writes an APU register at elapsed CPU cycles into the current frame.
func (s *Sound) Write(elapsed int64, addr uint16, value uint8) uint8 {
	return s.apu.Write(elapsed, addr, value)
}

// Read reads the APU status register at elapsed CPU cycles into the frame.
func (s *Sound) Read(elapsed int64) uint8 {
	return s.apu.Read(elapsed)
}

// IRQ reports whether the APU is asserting an interrupt.
func (s *Sound) IRQ() bool {
	return s.apu.IRQ()
}

// RunFrame ends the current frame after length CPU cycles and sends every
// complete block of samples to the sink. With the built-in queue this blocks
// while the queue is full.
func (s *Sound) RunFrame(length int64) error {
	s.apu.EndFrame(length)
	s.buf.EndFrame(length)

	sink := s.currentSink()
	for s.buf.SamplesAvailable() >= len(s.block) {
		n := s.buf.ReadSamples(s.block)
		if err := sink.Write(s.block[:n]); err != nil {
			return fmt.Errorf("failed to write samples: %w", err)
		}
		s.blocks++
		s.log.WithField("block", s.blocks).Debug("Pushed sample block")
	}
	return nil
}

// Flush sends the samples left over from RunFrame to the sink as one
// partial block.
func (s *Sound) Flush() error {
	n := s.buf.ReadSamples(s.block)
	if n == 0 {
		return nil
	}
	if err := s.currentSink().Write(s.block[:n]); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	s.blocks++
	return nil
}

func (s *Sound) currentSink() Sink {
	if s.sink != nil {
		return s.sink
	}
	return s.queue.Load()
}

// SamplesAvailable returns the number of resampled samples not yet pushed.
func (s *Sound) SamplesAvailable() int {
	return s.buf.SamplesAvailable()
}

// SaveState returns a snapshot of the APU.
func (s *Sound) SaveState() apu.Snapshot {
	return s.apu.Save()
}

// LoadState restores an APU snapshot. Samples of the interrupted frame are
// discarded. A rejected snapshot leaves everything unchanged.
func (s *Sound) LoadState(snap apu.Snapshot) error {
	if err := s.apu.Load(snap); err != nil {
		s.log.WithError(err).Warn("Rejected APU snapshot")
		return fmt.Errorf("failed to load APU state: %w", err)
	}
	s.buf.Clear()
	return nil
}

// Reset returns the APU and resampler to power-on state. Volume settings
// are kept.
func (s *Sound) Reset() {
	s.apu.Reset()
	s.buf.Clear()
	s.log.Info("Sound reset")
}

// ResetState resets like Reset, restores default volume settings and
// replaces the output queue. A writer blocked on the old queue is released.
func (s *Sound) ResetState() {
	s.vol = defaultVolume()
	s.applyVolume()

	s.apu.Reset()
	s.buf.Clear()

	if old := s.queue.Load(); old != nil {
		q, err := soundqueue.New(s.cfg.QueueCapacity)
		if err != nil {
			// Capacity was validated by New.
			panic(err)
		}
		s.queue.Store(q)
		old.Close()
	}

	s.log.Info("Sound state reset")
}

// Queue returns the current output queue, or nil when a custom sink is used.
func (s *Sound) Queue() *soundqueue.Queue {
	return s.queue.Load()
}

// Stream returns a non-blocking PCM reader for an audio device. It follows
// queue replacements made by ResetState and plays silence with a custom sink.
func (s *Sound) Stream(channels int) *soundqueue.Stream {
	return soundqueue.NewStream(queueSource{s}, channels)
}

// queueSource reads from whichever queue is current.
type queueSource struct {
	s *Sound
}

func (src queueSource) Read(out []int16) int {
	q := src.s.queue.Load()
	if q == nil {
		return 0
	}
	return q.Read(out)
}

// Close releases the output queue and wakes a blocked writer.
func (s *Sound) Close() {
	if q := s.queue.Load(); q != nil {
		q.Close()
	}
}
