package sound

import (
	"errors"
	"fmt"

	"github.com/richardwooding/nesapu/internal/blip"
	"github.com/richardwooding/nesapu/internal/soundqueue"
)

// NTSC defaults.
const (
	DefaultSampleRate    = 96000
	DefaultClockRate     = 1789773
	DefaultBufferMillis  = 250
	DefaultBlockSize     = 4096
	DefaultQueueCapacity = 4 * DefaultBlockSize
	DefaultBassFrequency = 16

	// DefaultVolume is the gain applied at start-up and by ResetState.
	DefaultVolume = 0.5
)

// ErrInvalidConfig is returned when a Config cannot produce audio.
var ErrInvalidConfig = errors.New("invalid sound configuration")

// Config holds the audio pipeline settings.
type Config struct {
	SampleRate    int `json:"sample_rate"`    // Output rate in Hz
	ClockRate     int `json:"clock_rate"`     // CPU clock in Hz
	BufferMillis  int `json:"buffer_millis"`  // Resampler capacity
	BlockSize     int `json:"block_size"`     // Samples per block pushed to the sink
	QueueCapacity int `json:"queue_capacity"` // Output queue size in samples
	BassFrequency int `json:"bass_frequency"` // High-pass cutoff in Hz, 0 disables
}

// DefaultConfig returns the NTSC configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:    DefaultSampleRate,
		ClockRate:     DefaultClockRate,
		BufferMillis:  DefaultBufferMillis,
		BlockSize:     DefaultBlockSize,
		QueueCapacity: DefaultQueueCapacity,
		BassFrequency: DefaultBassFrequency,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	buf, err := blip.New(c.SampleRate, c.ClockRate, c.BufferMillis)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.BlockSize <= 0 || c.BlockSize > buf.Capacity() {
		return fmt.Errorf("%w: block size %d must be between 1 and %d", ErrInvalidConfig, c.BlockSize, buf.Capacity())
	}
	if c.QueueCapacity < c.BlockSize {
		return fmt.Errorf("%w: %w: %d samples is less than one block", ErrInvalidConfig, soundqueue.ErrInvalidCapacity, c.QueueCapacity)
	}
	if c.BassFrequency < 0 {
		return fmt.Errorf("%w: negative bass frequency %d", ErrInvalidConfig, c.BassFrequency)
	}
	return nil
}
