package soundqueue

import (
	"encoding/binary"
	"sync/atomic"
)

// Source is the device side of a sample queue.
type Source interface {
	Read(out []int16) int
}

// Stream adapts a Source to io.Reader for audio players, producing interleaved
// 16-bit little-endian PCM. Reads never block: samples missing from the source
// are replaced by silence.
type Stream struct {
	src      Source
	channels int
	scratch  []int16

	underruns atomic.Int64
}

// NewStream creates a stream duplicating each mono sample to channels outputs.
func NewStream(src Source, channels int) *Stream {
	if channels < 1 {
		channels = 1
	}
	return &Stream{src: src, channels: channels}
}

// Read fills p with whole frames of PCM.
func (s *Stream) Read(p []byte) (int, error) {
	frameSize := 2 * s.channels
	frames := len(p) / frameSize
	if frames == 0 {
		return 0, nil
	}

	if cap(s.scratch) < frames {
		s.scratch = make([]int16, frames)
	}
	samples := s.scratch[:frames]

	n := s.src.Read(samples)
	if n < frames {
		clear(samples[n:])
		s.underruns.Add(1)
	}

	for i, v := range samples {
		off := i * frameSize
		for c := 0; c < s.channels; c++ {
			binary.LittleEndian.PutUint16(p[off+2*c:], uint16(v)) //nolint:gosec // two's complement PCM
		}
	}
	return frames * frameSize, nil
}

// Underruns returns how many reads were padded with silence.
func (s *Stream) Underruns() int64 {
	return s.underruns.Load()
}
