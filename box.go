// Package segtime reads and rewrites the timing boxes of fragmented MP4
// (ISO Base Media File Format) segments.
package segtime

import (
	"encoding/binary"
	"errors"
)

var be = binary.BigEndian

var (
	// ErrTruncatedBox is returned when a field read runs past the end of a box
	// that was otherwise well-formed.
	ErrTruncatedBox = errors.New("truncated box")

	// ErrUnrewritable is returned when a fragment lacks a required box or uses
	// a layout the rewriters do not support.
	ErrUnrewritable = errors.New("fragment cannot be rewritten")

	// ErrTimingUnavailable is returned when a segment carries no timescale or
	// no base media decode time.
	ErrTimingUnavailable = errors.New("segment timing unavailable")
)

// BoxType is the big-endian encoding of a 4-character box tag.
type BoxType uint32

// Box types the engine recognizes.
const (
	TypeFtyp BoxType = 0x66747970
	TypeMdat BoxType = 0x6d646174
	TypeMfhd BoxType = 0x6d666864
	TypeMoof BoxType = 0x6d6f6f66
	TypeMoov BoxType = 0x6d6f6f76
	TypeMvhd BoxType = 0x6d766864
	TypeSaio BoxType = 0x7361696f
	TypeSaiz BoxType = 0x7361697a
	TypeSidx BoxType = 0x73696478
	TypeStyp BoxType = 0x73747970
	TypeTfdt BoxType = 0x74666474
	TypeTfhd BoxType = 0x74666864
	TypeTraf BoxType = 0x74726166
	TypeTrun BoxType = 0x7472756e
)

func (t BoxType) String() string {
	var b [4]byte
	be.PutUint32(b[:], uint32(t))
	return string(b[:])
}

// IsContainerBox reports whether boxes of type t hold nothing but other boxes.
func IsContainerBox(t BoxType) bool {
	switch t {
	case TypeMoof, TypeMoov, TypeTraf:
		return true
	}
	return false
}

const boxHeaderSize = 8

// Box is a view of one box inside a caller-owned buffer. It never copies.
type Box struct {
	Offset int // position of the size field in buf
	Size   int // total size including the 8-byte header
	Type   BoxType

	buf []byte
}

// End returns the offset just past the box.
func (b Box) End() int { return b.Offset + b.Size }

// Raw returns the whole box including its header.
// Note that, the returned slice points into the original buffer.
func (b Box) Raw() []byte { return b.buf[b.Offset:b.End()] }

// Payload returns the bytes after the 8-byte header.
func (b Box) Payload() []byte { return b.buf[b.Offset+boxHeaderSize : b.End()] }

// Skip returns how far a flat scan advances past this box: containers are
// entered, everything else is stepped over whole.
func (b Box) Skip() int {
	if IsContainerBox(b.Type) {
		return boxHeaderSize
	}
	return b.Size
}

// Cursor returns a field reader positioned just past the header.
func (b Box) Cursor() Cursor {
	return Cursor{box: b, pos: boxHeaderSize}
}

// HasNextBox reports whether a well-formed box header starts at offset:
// 8 bytes available, a size of at least 8 that fits the buffer, and a tag of
// four lowercase ASCII letters.
func HasNextBox(buf []byte, offset int) bool {
	if offset < 0 || len(buf)-offset < boxHeaderSize {
		return false
	}
	size := be.Uint32(buf[offset:])
	if size < boxHeaderSize {
		return false
	}
	for _, c := range buf[offset+4 : offset+8] {
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return uint64(len(buf)-offset) >= uint64(size)
}

// NextBox returns the box starting at offset. ok is false when HasNextBox is.
func NextBox(buf []byte, offset int) (box Box, ok bool) {
	if !HasNextBox(buf, offset) {
		return Box{}, false
	}
	return Box{
		Offset: offset,
		Size:   int(be.Uint32(buf[offset:])),
		Type:   BoxType(be.Uint32(buf[offset+4:])),
		buf:    buf,
	}, true
}

// FindBox scans from offset for the first box of type t, descending into
// containers. To search only inside a parent pass buf[:parent.End()].
func FindBox(buf []byte, offset int, t BoxType) (Box, bool) {
	sc := NewScanner(buf, offset)
	for sc.Next() {
		if b := sc.Box(); b.Type == t {
			return b, true
		}
	}
	return Box{}, false
}

// findChild looks for a box of type t among the descendants of parent.
func findChild(buf []byte, parent Box, t BoxType) (Box, bool) {
	return FindBox(buf[:parent.End()], parent.Offset+boxHeaderSize, t)
}

// Scanner walks box headers in a buffer. Containers are entered, other boxes
// are skipped whole. A Scanner is a plain value: copy it to restart from the
// same position.
type Scanner struct {
	buf []byte
	pos int // next header position
	box Box
}

// NewScanner creates a Scanner that starts at offset.
func NewScanner(buf []byte, offset int) Scanner {
	return Scanner{buf: buf, pos: offset}
}

// Next advances to the next box. Returns false when no well-formed box
// header remains, whether the buffer ended cleanly or not.
func (s *Scanner) Next() bool {
	b, ok := NextBox(s.buf, s.pos)
	if !ok {
		return false
	}
	s.box = b
	s.pos += b.Skip()
	return true
}

// Box returns the current box. Only valid after Next returns true.
func (s *Scanner) Box() Box { return s.box }

// Offset returns the position the next call to Next will read from.
func (s *Scanner) Offset() int { return s.pos }
