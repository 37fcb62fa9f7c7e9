// Package vgm parses VGM register logs and replays their NES APU commands.
//
// A VGM file is a header followed by a command stream of chip register
// writes separated by waits measured in 44.1 kHz samples. Only the NES APU
// is played; commands for other chips are skipped.
package vgm

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// SampleRate is the rate VGM wait commands are measured in.
const SampleRate = 44100

const (
	ident         = "Vgm "
	minHeaderSize = 0x40
	maxFileSize   = 64 * 1024 * 1024

	fdsFlag = 1 << 31
)

// Header field offsets.
const (
	offEOF         = 0x04
	offVersion     = 0x08
	offGD3         = 0x14
	offTotal       = 0x18
	offLoop        = 0x1C
	offLoopSamples = 0x20
	offRate        = 0x24
	offData        = 0x34
	offNESAPUClock = 0x84
)

var (
	// ErrInvalidIdent indicates the data is not a VGM file.
	ErrInvalidIdent = errors.New("invalid VGM ident")

	// ErrNoNESAPU indicates the file does not use the NES APU.
	ErrNoNESAPU = errors.New("VGM file has no NES APU")

	// ErrTruncated indicates the file ends inside a header or command.
	ErrTruncated = errors.New("VGM data truncated")

	// ErrUnsupportedCommand indicates a command byte with unknown length.
	ErrUnsupportedCommand = errors.New("unsupported VGM command")

	// ErrFileTooLarge indicates the decompressed file exceeds the size limit.
	ErrFileTooLarge = errors.New("VGM file too large")
)

// Header represents the VGM file header. Offsets are absolute file
// positions; zero means the field is absent.
type Header struct {
	Version      uint32 // BCD, 0x161 is 1.61
	EOFOffset    uint32
	GD3Offset    uint32
	TotalSamples uint32 // Length in 44.1 kHz samples, loops excluded
	LoopOffset   uint32
	LoopSamples  uint32
	Rate         uint32 // Recording rate in Hz, 0 if unknown
	DataOffset   uint32 // Start of the command stream

	NESAPUClock uint32 // Hz
	FDS         bool   // Famicom Disk System sound present
}

// VersionString returns the version as "1.61".
func (h *Header) VersionString() string {
	return fmt.Sprintf("%x.%02x", h.Version>>8, h.Version&0xFF)
}

// Duration returns the length in seconds, loops excluded.
func (h *Header) Duration() float64 {
	return float64(h.TotalSamples) / SampleRate
}

// ParseHeader parses the header at the start of data.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < minHeaderSize {
		return nil, fmt.Errorf("%w: header needs %d bytes, got %d", ErrTruncated, minHeaderSize, len(data))
	}
	if string(data[:4]) != ident {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdent, data[:4])
	}

	le := binary.LittleEndian
	h := &Header{
		Version:      le.Uint32(data[offVersion:]),
		EOFOffset:    relative(data, offEOF),
		GD3Offset:    relative(data, offGD3),
		TotalSamples: le.Uint32(data[offTotal:]),
		LoopOffset:   relative(data, offLoop),
		LoopSamples:  le.Uint32(data[offLoopSamples:]),
		Rate:         le.Uint32(data[offRate:]),
		DataOffset:   minHeaderSize,
	}

	// Before 1.50 the stream always starts at 0x40.
	if h.Version >= 0x150 {
		if off := relative(data, offData); off != 0 {
			h.DataOffset = off
		}
	}
	if int(h.DataOffset) > len(data) {
		return nil, fmt.Errorf("%w: data offset 0x%X past end of file", ErrTruncated, h.DataOffset)
	}

	// Fields that overlap the command stream read as zero.
	if offNESAPUClock+4 <= h.DataOffset && offNESAPUClock+4 <= uint32(len(data)) {
		clock := le.Uint32(data[offNESAPUClock:])
		h.FDS = clock&fdsFlag != 0
		h.NESAPUClock = clock &^ fdsFlag
	}

	return h, nil
}

// relative reads a header offset stored relative to its own position.
func relative(data []byte, pos uint32) uint32 {
	v := binary.LittleEndian.Uint32(data[pos:])
	if v == 0 {
		return 0
	}
	return pos + v
}

// File is a parsed VGM file.
type File struct {
	Header *Header
	Tags   *Tags // nil when the file has no GD3 block

	data []byte
}

// Parse parses VGM data, decompressing gzip (.vgz) data first.
func Parse(data []byte) (*File, error) {
	if len(data) >= 2 && data[0] == 0x1F && data[1] == 0x8B {
		var err error
		data, err = gunzip(data)
		if err != nil {
			return nil, err
		}
	}

	header, err := ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	if header.NESAPUClock == 0 {
		return nil, fmt.Errorf("%w: version %s", ErrNoNESAPU, header.VersionString())
	}

	// Trust the EOF offset only when it shortens the data.
	if header.EOFOffset > header.DataOffset && int(header.EOFOffset) < len(data) {
		data = data[:header.EOFOffset]
	}

	f := &File{Header: header, data: data}
	if header.GD3Offset != 0 {
		tags, err := parseGD3(data, header.GD3Offset)
		if err != nil {
			return nil, fmt.Errorf("failed to parse GD3 tags: %w", err)
		}
		f.Tags = tags
	}
	return f, nil
}

// Open reads and parses a VGM or VGZ file.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is supplied by the user
	if err != nil {
		return nil, fmt.Errorf("failed to read VGM file: %w", err)
	}
	return Parse(data)
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	if len(out) > maxFileSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, maxFileSize)
	}
	return out, nil
}

// Commands returns a reader over the command stream. The loop section is
// replayed loops more times; a negative count loops forever.
func (f *File) Commands(loops int) *Reader {
	return newReader(f, loops)
}
