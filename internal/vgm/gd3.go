package vgm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
)

// ErrInvalidGD3 indicates a malformed GD3 tag block.
var ErrInvalidGD3 = errors.New("invalid GD3 block")

// Tags holds the English GD3 metadata.
type Tags struct {
	Track     string
	Game      string
	System    string
	Author    string
	Date      string
	Converter string
	Notes     string
}

// GD3 string order. English and Japanese names alternate for the first
// four entries.
const (
	gd3TrackEN = iota
	gd3TrackJP
	gd3GameEN
	gd3GameJP
	gd3SystemEN
	gd3SystemJP
	gd3AuthorEN
	gd3AuthorJP
	gd3Date
	gd3Converter
	gd3Notes
	gd3Count
)

func parseGD3(data []byte, off uint32) (*Tags, error) {
	const headerSize = 12
	if int(off)+headerSize > len(data) {
		return nil, fmt.Errorf("%w: header past end of file", ErrTruncated)
	}
	block := data[off:]
	if string(block[:4]) != "Gd3 " {
		return nil, fmt.Errorf("%w: bad ident %q", ErrInvalidGD3, block[:4])
	}
	size := binary.LittleEndian.Uint32(block[8:])
	if uint64(size) > uint64(len(block)-headerSize) {
		return nil, fmt.Errorf("%w: %d byte tag block", ErrTruncated, size)
	}
	body := block[headerSize : headerSize+int(size)]

	var fields [gd3Count]string
	for i := range fields {
		s, rest, ok := cutUTF16(body)
		if !ok {
			break
		}
		fields[i] = s
		body = rest
	}

	return &Tags{
		Track:     fields[gd3TrackEN],
		Game:      fields[gd3GameEN],
		System:    fields[gd3SystemEN],
		Author:    fields[gd3AuthorEN],
		Date:      fields[gd3Date],
		Converter: fields[gd3Converter],
		Notes:     fields[gd3Notes],
	}, nil
}

// cutUTF16 splits off one NUL-terminated UTF-16LE string.
func cutUTF16(b []byte) (string, []byte, bool) {
	var units []uint16
	for i := 0; i+1 < len(b); i += 2 {
		u := binary.LittleEndian.Uint16(b[i:])
		if u == 0 {
			return string(utf16.Decode(units)), b[i+2:], true
		}
		units = append(units, u)
	}
	return "", nil, false
}
