package segtime

import "fmt"

// Cursor reads fields sequentially from one box. Every read is checked
// against the box size.
type Cursor struct {
	box Box
	pos int // relative to box.Offset
}

// Pos returns the read position relative to the start of the box.
func (c *Cursor) Pos() int { return c.pos }

// Remaining returns the number of bytes left before the end of the box.
func (c *Cursor) Remaining() int {
	return max(c.box.Size-c.pos, 0)
}

// Skip advances the read position by n bytes. It does not check bounds;
// the next read does.
func (c *Cursor) Skip(n int) {
	c.pos += n
}

func (c *Cursor) need(n int) error {
	if c.pos < 0 || c.pos+n > c.box.Size {
		return fmt.Errorf("%s at offset %d: need %d bytes at %d of %d: %w",
			c.box.Type, c.box.Offset, n, c.pos, c.box.Size, ErrTruncatedBox)
	}
	return nil
}

// ReadUint32 reads a big-endian uint32.
func (c *Cursor) ReadUint32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := be.Uint32(c.box.buf[c.box.Offset+c.pos:])
	c.pos += 4
	return v, nil
}

// ReadInt32 reads a big-endian two's complement int32.
func (c *Cursor) ReadInt32() (int32, error) {
	v, err := c.ReadUint32()
	return int32(v), err
}

// ReadUint64 reads two big-endian 32-bit halves as high<<32 | low.
func (c *Cursor) ReadUint64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	p := c.box.Offset + c.pos
	hi := uint64(be.Uint32(c.box.buf[p:]))
	lo := uint64(be.Uint32(c.box.buf[p+4:]))
	c.pos += 8
	return hi<<32 | lo, nil
}
