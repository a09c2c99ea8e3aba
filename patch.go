package segtime

import (
	"fmt"
	"math"
)

// shiftDecodeTime adds floor(deltaSeconds*timescale) ticks to base, clamping
// at zero.
func shiftDecodeTime(base uint64, deltaSeconds float64, timescale uint32) (uint64, error) {
	ticks := math.Floor(deltaSeconds * float64(timescale))
	switch {
	case math.IsNaN(ticks) || ticks >= math.MaxInt64:
		return 0, fmt.Errorf("shift of %v seconds at timescale %d: %w", deltaSeconds, timescale, ErrUnrewritable)
	case ticks < math.MinInt64:
		return 0, nil
	}
	d := int64(ticks)
	if d < 0 {
		back := uint64(-d)
		if back >= base {
			return 0, nil
		}
		return base - back, nil
	}
	if base > math.MaxUint64-uint64(d) {
		return 0, fmt.Errorf("decode time %d + %d overflows: %w", base, d, ErrUnrewritable)
	}
	return base + uint64(d), nil
}

// RewriteFirstDecodeTime shifts the base media decode time of a
// sidx+moof+mdat segment by deltaSeconds, leaving sample durations and
// offsets untouched. The shifted time is clamped at zero.
//
// The segment must start with sidx (which supplies the timescale), followed
// directly by a single-track moof and its mdat. Every box is copied verbatim
// except tfdt. A version 0 tfdt is replaced by a version 0 tfdt, and a shifted
// time that does not fit in 32 bits is an error. A version 1 tfdt stays
// version 1 so that moof and traf keep their sizes and the trun data offset
// stays valid.
func RewriteFirstDecodeTime(media []byte, deltaSeconds float64) ([]byte, error) {
	sidx, ok := NextBox(media, 0)
	if !ok || sidx.Type != TypeSidx {
		return nil, fmt.Errorf("no sidx at offset 0: %w", ErrUnrewritable)
	}
	timescale, err := ReadSidxTimescale(sidx)
	if err != nil {
		return nil, fmt.Errorf("reading sidx: %w", err)
	}
	moof, ok := NextBox(media, sidx.End())
	if !ok || moof.Type != TypeMoof {
		return nil, fmt.Errorf("no moof at offset %d: %w", sidx.End(), ErrUnrewritable)
	}
	f, err := locateFragment(media, moof)
	if err != nil {
		return nil, err
	}
	mdat, ok := NextBox(media, moof.End())
	if !ok || mdat.Type != TypeMdat {
		return nil, fmt.Errorf("no mdat at offset %d: %w", moof.End(), ErrUnrewritable)
	}

	base, version, err := ReadTfdt(f.tfdt)
	if err != nil {
		return nil, fmt.Errorf("reading tfdt: %w", err)
	}
	decodeTime, err := shiftDecodeTime(base, deltaSeconds, timescale)
	if err != nil {
		return nil, err
	}

	tfdtSize := 16
	if version != 0 {
		tfdtSize = 20
	} else if decodeTime > math.MaxUint32 {
		return nil, fmt.Errorf("decode time %d does not fit a version 0 tfdt: %w", decodeTime, ErrUnrewritable)
	}
	if tfdtSize != f.tfdt.Size {
		return nil, fmt.Errorf("tfdt of %d bytes, version %d: %w", f.tfdt.Size, version, ErrUnrewritable)
	}

	outSize := sidx.Size + moof.Size + mdat.Size
	w := NewWriter(make([]byte, 0, outSize))
	w.CopyBox(sidx)
	w.WriteBoxHeader(uint32(moof.Size), TypeMoof)
	w.CopyBox(f.mfhd)
	w.WriteBoxHeader(uint32(f.traf.Size), TypeTraf)
	w.CopyBox(f.tfhd)
	// A version 1 tfdt is not narrowed to version 0: the shorter box would
	// change the moof and traf sizes and invalidate the trun data offset.
	if version != 0 {
		w.WriteFullBoxHeader(uint32(tfdtSize), TypeTfdt, 1, 0)
		w.WriteUint64(decodeTime)
	} else {
		w.WriteFullBoxHeader(uint32(tfdtSize), TypeTfdt, 0, 0)
		w.WriteUint32(uint32(decodeTime))
	}
	w.CopyBox(f.trun)
	if f.hasSaio {
		w.CopyBox(f.saio)
	}
	if f.hasSaiz {
		w.CopyBox(f.saiz)
	}
	w.CopyBox(mdat)

	if w.Len() != outSize {
		return nil, fmt.Errorf("moof holds boxes besides mfhd, traf, tfhd, tfdt, trun, saio, saiz: %w", ErrUnrewritable)
	}
	return w.Bytes(), nil
}
