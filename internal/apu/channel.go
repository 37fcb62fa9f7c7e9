package apu

import (
	"errors"
	"fmt"
)

// ErrInvalidChannel is returned for a channel index outside the five APU channels.
var ErrInvalidChannel = errors.New("invalid channel")

// Channel identifies one of the five APU channels.
type Channel int

// APU channels, in register order.
const (
	Pulse1 Channel = iota
	Pulse2
	Triangle
	Noise
	DMC

	NumChannels = 5
)

var channelNames = [NumChannels]string{"pulse1", "pulse2", "triangle", "noise", "dmc"}

// Valid reports whether c names an APU channel.
func (c Channel) Valid() bool {
	return c >= 0 && c < NumChannels
}

func (c Channel) String() string {
	if !c.Valid() {
		return fmt.Sprintf("channel(%d)", int(c))
	}
	return channelNames[c]
}

// ParseChannel converts a 1-based channel number (1 = pulse 1 ... 5 = DMC).
func ParseChannel(n int) (Channel, error) {
	c := Channel(n - 1)
	if !c.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidChannel, n)
	}
	return c, nil
}

// ChannelMask is a set of channels, one bit per Channel.
type ChannelMask uint8

// Has reports whether c is in the mask.
func (m ChannelMask) Has(c Channel) bool {
	return c.Valid() && m&(1<<uint(c)) != 0
}

// Toggle returns the mask with c flipped.
func (m ChannelMask) Toggle(c Channel) ChannelMask {
	if !c.Valid() {
		return m
	}
	return m ^ 1<<uint(c)
}
