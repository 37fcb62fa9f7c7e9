package sound

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/richardwooding/nesapu/internal/apu"
)

// volume is the user-facing output level.
type volume struct {
	gain     float32 // 0.0 to 1.0, kept while muted
	muted    bool
	channels apu.ChannelMask // Muted channels
}

func defaultVolume() volume {
	return volume{gain: DefaultVolume}
}

func (s *Sound) applyVolume() {
	if s.vol.muted {
		s.apu.SetGain(0)
	} else {
		s.apu.SetGain(s.vol.gain)
	}
	s.apu.SetChannelMask(s.vol.channels)
}

// SetVolume sets the gain, clamped to [0, 1]. While muted the new gain is
// remembered and becomes audible on unmute.
func (s *Sound) SetVolume(v float32) {
	s.vol.gain = min(max(v, 0), 1)
	s.applyVolume()
}

// AdjustVolume changes the gain by delta.
func (s *Sound) AdjustVolume(delta float32) {
	s.SetVolume(s.vol.gain + delta)
}

// ToggleMute mutes or unmutes all output and returns the new mute state.
func (s *Sound) ToggleMute() bool {
	s.vol.muted = !s.vol.muted
	s.applyVolume()
	return s.vol.muted
}

// ToggleChannelMute mutes or unmutes one channel and returns its new state.
func (s *Sound) ToggleChannelMute(c apu.Channel) (bool, error) {
	if !c.Valid() {
		return false, fmt.Errorf("%w: %d", apu.ErrInvalidChannel, int(c))
	}
	s.vol.channels = s.vol.channels.Toggle(c)
	s.applyVolume()
	return s.vol.channels.Has(c), nil
}

// Volume returns the gain setting.
func (s *Sound) Volume() float32 {
	return s.vol.gain
}

// Muted reports whether all output is muted.
func (s *Sound) Muted() bool {
	return s.vol.muted
}

// ChannelMuted reports whether channel c is muted.
func (s *Sound) ChannelMuted(c apu.Channel) bool {
	return s.vol.channels.Has(c)
}

// DescribeVolume returns the gain as "Vol: 0.50", truncated to two decimals.
func (s *Sound) DescribeVolume() string {
	v := strconv.FormatFloat(float64(s.vol.gain), 'f', 6, 32)
	if dot := strings.IndexByte(v, '.'); dot >= 0 && dot+3 < len(v) {
		v = v[:dot+3]
	}
	return "Vol: " + v
}
