// Package blip implements a band-limited step buffer.
//
// Sound chips change their output in discrete steps at a high clock rate.
// Sampling those steps directly at the output rate aliases; instead every
// amplitude change is added to the buffer as a band-limited step:
//   - AddDelta spreads the change over a short windowed-sinc kernel
//     positioned with sub-sample accuracy
//   - EndFrame makes the samples of one emulated frame readable
//   - ReadSamples integrates the deltas into 16-bit PCM and removes DC
//
// Time is given in source clocks relative to the start of the current frame.
package blip

import (
	"errors"
	"fmt"
	"math"
)

const (
	fracBits    = 20 // Fixed-point fraction of a sample position
	phaseBits   = 5  // Sub-sample kernel resolution
	phaseCount  = 1 << phaseBits
	kernelWidth = 16 // Taps per kernel phase
	unitBits    = 15 // Kernel taps sum to 1 << unitBits

	maxSamples = 1 << 22
)

// Configuration errors.
var (
	ErrInvalidRate   = errors.New("invalid sample or clock rate")
	ErrInvalidLength = errors.New("invalid buffer length")
)

// ErrOverflow is the panic value when more samples are produced than the
// buffer can hold. It indicates the buffer is too small for the frame length
// or is not being read.
var ErrOverflow = errors.New("blip buffer overflow")

// kernel holds the band-limited impulse for each sub-sample phase.
var kernel [phaseCount][kernelWidth]int32

func init() {
	const half = kernelWidth / 2
	for p := 0; p < phaseCount; p++ {
		frac := float64(p) / phaseCount

		var taps [kernelWidth]float64
		var sum float64
		for i := range taps {
			x := float64(i-half+1) - frac
			taps[i] = sinc(0.9*x) * blackman(x/half)
			sum += taps[i]
		}

		// Scale to the unit and put the rounding error on the largest tap,
		// so every phase sums exactly to the unit.
		var total int32
		peak := 0
		for i, v := range taps {
			kernel[p][i] = int32(math.Round(v / sum * (1 << unitBits)))
			total += kernel[p][i]
			if kernel[p][i] > kernel[p][peak] {
				peak = i
			}
		}
		kernel[p][peak] += (1 << unitBits) - total
	}
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

// blackman is the Blackman window over [-1, 1].
func blackman(x float64) float64 {
	if x <= -1 || x >= 1 {
		return 0
	}
	return 0.42 + 0.5*math.Cos(math.Pi*x) + 0.08*math.Cos(2*math.Pi*x)
}

// Buffer converts clocked amplitude deltas into output samples.
type Buffer struct {
	sampleRate int
	clockRate  int
	factor     int64 // Output samples per clock (fixed-point)

	samples  []int64 // Pending deltas, scaled by the kernel unit
	capacity int     // Readable samples the buffer can hold
	offset   int64   // Start of the current frame (fixed-point samples)

	// Reader state
	integrator int64
	bassShift  uint // 0 disables the high-pass
}

// New creates a buffer converting from clockRate to sampleRate that holds
// bufferMillis milliseconds of output.
func New(sampleRate, clockRate, bufferMillis int) (*Buffer, error) {
	if sampleRate <= 0 || clockRate <= 0 || sampleRate >= clockRate {
		return nil, fmt.Errorf("%w: %d Hz from %d Hz", ErrInvalidRate, sampleRate, clockRate)
	}
	if bufferMillis <= 0 {
		return nil, fmt.Errorf("%w: %d ms", ErrInvalidLength, bufferMillis)
	}
	capacity := int(int64(sampleRate) * int64(bufferMillis) / 1000)
	if capacity <= 0 || capacity > maxSamples {
		return nil, fmt.Errorf("%w: %d ms at %d Hz", ErrInvalidLength, bufferMillis, sampleRate)
	}

	factor := (int64(sampleRate)<<fracBits + int64(clockRate)/2) / int64(clockRate)

	return &Buffer{
		sampleRate: sampleRate,
		clockRate:  clockRate,
		factor:     factor,
		samples:    make([]int64, capacity+kernelWidth+1),
		capacity:   capacity,
	}, nil
}

// AddDelta adds an amplitude change of delta at clock t of the current frame.
func (b *Buffer) AddDelta(t int64, delta int32) {
	if delta == 0 {
		return
	}

	pos := b.offset + t*b.factor
	idx := pos >> fracBits
	phase := (pos >> (fracBits - phaseBits)) & (phaseCount - 1)
	if t < 0 || idx+kernelWidth > int64(len(b.samples)) {
		panic(ErrOverflow)
	}

	out := b.samples[idx : idx+kernelWidth]
	for i, k := range &kernel[phase] {
		out[i] += int64(k) * int64(delta)
	}
}

// EndFrame ends the current frame after t clocks. The samples it covers
// become readable and later times are relative to the new frame.
func (b *Buffer) EndFrame(t int64) {
	b.offset += t * b.factor
	if b.SamplesAvailable() > b.capacity {
		panic(ErrOverflow)
	}
}

// SamplesAvailable returns the number of samples ready to read.
func (b *Buffer) SamplesAvailable() int {
	return int(b.offset >> fracBits)
}

// ReadSamples reads up to len(out) samples and removes them from the buffer.
// Returns the number of samples read.
func (b *Buffer) ReadSamples(out []int16) int {
	n := min(len(out), b.SamplesAvailable())
	if n == 0 {
		return 0
	}

	accum := b.integrator
	for i := 0; i < n; i++ {
		accum += b.samples[i]

		s := accum >> unitBits
		switch {
		case s > math.MaxInt16:
			s = math.MaxInt16
		case s < math.MinInt16:
			s = math.MinInt16
		}
		out[i] = int16(s)

		if b.bassShift > 0 {
			accum -= accum >> b.bassShift
		}
	}
	b.integrator = accum

	b.remove(n)
	return n
}

// remove drops n read samples, keeping pending kernel tails.
func (b *Buffer) remove(n int) {
	remain := b.SamplesAvailable() + kernelWidth - n
	copy(b.samples, b.samples[n:n+remain])
	clear(b.samples[remain:])
	b.offset -= int64(n) << fracBits
}

// SetBassFrequency sets the cutoff of the DC-removing high-pass filter.
// Zero disables the filter.
func (b *Buffer) SetBassFrequency(hz int) {
	if hz <= 0 {
		b.bassShift = 0
		return
	}

	shift := uint(13)
	f := (int64(hz) << 16) / int64(b.sampleRate)
	for f >>= 1; f > 0 && shift > 1; f >>= 1 {
		shift--
	}
	b.bassShift = shift
}

// Clear discards all buffered samples and restarts at a frame boundary.
func (b *Buffer) Clear() {
	clear(b.samples)
	b.offset = 0
	b.integrator = 0
}

// Capacity returns the number of samples the buffer can hold.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// SampleRate returns the output sample rate in Hz.
func (b *Buffer) SampleRate() int {
	return b.sampleRate
}

// ClockRate returns the source clock rate in Hz.
func (b *Buffer) ClockRate() int {
	return b.clockRate
}
