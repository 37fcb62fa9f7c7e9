package vgm

import (
	"encoding/binary"
	"fmt"
)

// Kind identifies a decoded command.
type Kind int

// Command kinds returned by Reader.Next.
const (
	KindEnd Kind = iota
	KindWait
	KindWrite
	KindData
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindEnd:
		return "end"
	case KindWait:
		return "wait"
	case KindWrite:
		return "write"
	case KindData:
		return "data"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Command is one decoded NES APU command.
type Command struct {
	Kind Kind

	Samples int    // KindWait: 44.1 kHz samples to wait
	Addr    uint16 // KindWrite: CPU register address; KindData: RAM load address
	Value   uint8  // KindWrite
	Data    []byte // KindData: bytes to load at Addr, aliases the file
}

// VGM command bytes.
const (
	cmdWait       = 0x61
	cmdWaitNTSC   = 0x62
	cmdWaitPAL    = 0x63
	cmdEnd        = 0x66
	cmdDataBlock  = 0x67
	cmdPCMWrite   = 0x68
	cmdNESAPU     = 0xB4
	cmdWaitShort  = 0x70 // 0x7n waits n+1 samples
	cmdYM2612Wait = 0x80 // 0x8n writes the YM2612 DAC and waits n samples

	waitNTSC = 735
	waitPAL  = 882

	dataBlockNESRAM = 0xC2
	nesRegisterBase = 0x4000
	nesRegisterSpan = 0x20
)

// operandSizes holds the operand length of fixed-size commands of other
// chips. Zero entries are handled by Next or unsupported.
var operandSizes = func() [256]int8 {
	var s [256]int8
	for c := range s {
		switch {
		case c >= 0x30 && c <= 0x3F, c == 0x4F, c == 0x50:
			s[c] = 1
		case c >= 0x40 && c <= 0x4E, c >= 0x51 && c <= 0x5F, c >= 0xA0 && c <= 0xBF:
			s[c] = 2
		case c >= 0xC0 && c <= 0xDF:
			s[c] = 3
		case c >= 0xE0:
			s[c] = 4
		}
	}
	s[0x90], s[0x91], s[0x92], s[0x93], s[0x94], s[0x95] = 4, 4, 5, 10, 1, 4
	s[cmdPCMWrite] = 11
	return s
}()

// Reader decodes the command stream of a File.
type Reader struct {
	file  *File
	pos   int
	loops int // Remaining loop replays, negative forever
	done  bool

	loopCount int  // Times the loop point has been taken
	progress  bool // A command was returned since the last loop jump
}

func newReader(f *File, loops int) *Reader {
	return &Reader{
		file:  f,
		pos:   int(f.Header.DataOffset),
		loops: loops,
	}
}

// Next returns the next NES APU command. Once the stream has ended it keeps
// returning a KindEnd command.
func (r *Reader) Next() (Command, error) {
	cmd, err := r.next()
	if err == nil && cmd.Kind != KindEnd {
		r.progress = true
	}
	return cmd, err
}

func (r *Reader) next() (Command, error) {
	data := r.file.data
	for !r.done {
		if r.pos >= len(data) {
			if r.loop() {
				continue
			}
			break
		}

		op := data[r.pos]
		switch {
		case op == cmdEnd:
			if r.loop() {
				continue
			}
			r.done = true

		case op == cmdWait:
			b, err := r.operands(2)
			if err != nil {
				return Command{}, err
			}
			return Command{Kind: KindWait, Samples: int(binary.LittleEndian.Uint16(b))}, nil

		case op == cmdWaitNTSC:
			r.pos++
			return Command{Kind: KindWait, Samples: waitNTSC}, nil

		case op == cmdWaitPAL:
			r.pos++
			return Command{Kind: KindWait, Samples: waitPAL}, nil

		case op&0xF0 == cmdWaitShort:
			r.pos++
			return Command{Kind: KindWait, Samples: int(op&0x0F) + 1}, nil

		case op&0xF0 == cmdYM2612Wait:
			r.pos++
			if n := int(op & 0x0F); n > 0 {
				return Command{Kind: KindWait, Samples: n}, nil
			}

		case op == cmdNESAPU:
			b, err := r.operands(2)
			if err != nil {
				return Command{}, err
			}
			// Bit 7 selects a second chip; 0x20 and up are FDS registers.
			if b[0] < nesRegisterSpan {
				return Command{Kind: KindWrite, Addr: nesRegisterBase + uint16(b[0]), Value: b[1]}, nil
			}

		case op == cmdDataBlock:
			cmd, ok, err := r.dataBlock()
			if err != nil {
				return Command{}, err
			}
			if ok {
				return cmd, nil
			}

		default:
			n := int(operandSizes[op])
			if n == 0 {
				return Command{}, fmt.Errorf("%w: 0x%02X at 0x%X", ErrUnsupportedCommand, op, r.pos)
			}
			if _, err := r.operands(n); err != nil {
				return Command{}, err
			}
		}
	}

	r.done = true
	return Command{Kind: KindEnd}, nil
}

// operands consumes the command byte and n operand bytes.
func (r *Reader) operands(n int) ([]byte, error) {
	start := r.pos + 1
	end := start + n
	if end > len(r.file.data) {
		return nil, fmt.Errorf("%w: command 0x%02X at 0x%X", ErrTruncated, r.file.data[r.pos], r.pos)
	}
	r.pos = end
	return r.file.data[start:end], nil
}

// dataBlock consumes 0x67 0x66 tt ssssssss and its payload. Only NES APU RAM
// blocks are returned.
func (r *Reader) dataBlock() (Command, bool, error) {
	hdr, err := r.operands(6)
	if err != nil {
		return Command{}, false, err
	}
	kind := hdr[1]
	size := int(binary.LittleEndian.Uint32(hdr[2:]) & 0x7FFFFFFF)
	if size > len(r.file.data)-r.pos {
		return Command{}, false, fmt.Errorf("%w: %d byte data block", ErrTruncated, size)
	}
	payload := r.file.data[r.pos : r.pos+size]
	r.pos += size

	if kind != dataBlockNESRAM || len(payload) < 2 {
		return Command{}, false, nil
	}
	return Command{
		Kind: KindData,
		Addr: binary.LittleEndian.Uint16(payload),
		Data: payload[2:],
	}, true, nil
}

// loop jumps back to the loop point if any replays remain. A loop section
// without NES APU commands is not replayed.
func (r *Reader) loop() bool {
	off := int(r.file.Header.LoopOffset)
	if r.loops == 0 || off == 0 || off >= len(r.file.data) {
		return false
	}
	if r.loopCount > 0 && !r.progress {
		return false
	}
	r.progress = false
	if r.loops > 0 {
		r.loops--
	}
	r.loopCount++
	r.pos = off
	return true
}

// Done reports whether the stream has ended.
func (r *Reader) Done() bool {
	return r.done
}

// Loops returns how many times playback has returned to the loop point.
func (r *Reader) Loops() int {
	return r.loopCount
}

// Rewind restarts the stream with a new loop count.
func (r *Reader) Rewind(loops int) {
	r.pos = int(r.file.Header.DataOffset)
	r.loops = loops
	r.loopCount = 0
	r.progress = false
	r.done = false
}
