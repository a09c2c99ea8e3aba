package segtime

// Writer builds boxes sequentially in big-endian order. It is meant to be
// scoped to a single rewrite and never shared.
type Writer struct {
	buf   []byte
	stack []int // start offsets of open boxes
}

// NewWriter creates a Writer that appends to buf[:0], reusing its capacity.
func NewWriter(buf []byte) Writer {
	return Writer{buf: buf[:0]}
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte { return w.buf }

// WriteUint32 appends v in big-endian order.
func (w *Writer) WriteUint32(v uint32) {
	w.buf = be.AppendUint32(w.buf, v)
}

// WriteInt32 appends v as a big-endian two's complement value.
func (w *Writer) WriteInt32(v int32) {
	w.buf = be.AppendUint32(w.buf, uint32(v))
}

// WriteUint64 appends v in big-endian order.
func (w *Writer) WriteUint64(v uint64) {
	w.buf = be.AppendUint64(w.buf, v)
}

// WriteBoxHeader appends a size and type header for a box whose total size
// is already known.
func (w *Writer) WriteBoxHeader(size uint32, t BoxType) {
	w.WriteUint32(size)
	w.WriteUint32(uint32(t))
}

// WriteFullBoxHeader appends a header followed by the version and flags word.
func (w *Writer) WriteFullBoxHeader(size uint32, t BoxType, version uint8, flags uint32) {
	w.WriteBoxHeader(size, t)
	w.WriteUint32(uint32(version)<<24 | flags&0x00ffffff)
}

// CopyBox appends the raw bytes of b, header included.
func (w *Writer) CopyBox(b Box) {
	w.buf = append(w.buf, b.Raw()...)
}

// StartBox opens a box whose size is patched in by the matching EndBox.
// Boxes may nest to any depth.
func (w *Writer) StartBox(t BoxType) {
	w.stack = append(w.stack, len(w.buf))
	w.WriteBoxHeader(0, t)
}

// Depth returns the number of boxes opened with StartBox and not yet closed.
func (w *Writer) Depth() int { return len(w.stack) }

// EndBox closes the most recently opened box and writes its size. It reports
// false, writing nothing, when no box is open.
func (w *Writer) EndBox() bool {
	if len(w.stack) == 0 {
		return false
	}
	start := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
	be.PutUint32(w.buf[start:], uint32(len(w.buf)-start))
	return true
}
