package apu

// Non-linear DAC lookup tables.
var (
	pulseTable [31]float32
	tndTable   [203]float32
)

func init() {
	for i := 1; i < len(pulseTable); i++ {
		pulseTable[i] = 95.52 / (8128.0/float32(i) + 100)
	}
	for i := 1; i < len(tndTable); i++ {
		tndTable[i] = 163.67 / (24329.0/float32(i) + 100)
	}
}

// mixer combines channel levels into a signed 16-bit scaled amplitude.
type mixer struct {
	gain float32
	mask ChannelMask // Muted channels
}

func (m *mixer) setGain(gain float32) {
	switch {
	case gain < 0:
		gain = 0
	case gain > 1:
		gain = 1
	}
	m.gain = gain
}

// mix returns the output amplitude for the given channel levels.
func (m *mixer) mix(p1, p2, t, n, d uint8) int32 {
	if m.mask != 0 {
		if m.mask.Has(Pulse1) {
			p1 = 0
		}
		if m.mask.Has(Pulse2) {
			p2 = 0
		}
		if m.mask.Has(Triangle) {
			t = 0
		}
		if m.mask.Has(Noise) {
			n = 0
		}
		if m.mask.Has(DMC) {
			d = 0
		}
	}

	out := pulseTable[p1+p2] + tndTable[3*int(t)+2*int(n)+int(d)]
	return int32(out * m.gain * 32767)
}
