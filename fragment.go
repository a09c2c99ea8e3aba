package segtime

import "fmt"

// Tfhd flags (Track Fragment Header Box).
const (
	TfhdBaseDataOffsetPresent         = 0x000001
	TfhdSampleDescriptionIndexPresent = 0x000002
	TfhdDefaultSampleDurationPresent  = 0x000008
	TfhdDefaultSampleSizePresent      = 0x000010
	TfhdDefaultSampleFlagsPresent     = 0x000020
	TfhdDurationIsEmpty               = 0x010000
	TfhdDefaultBaseIsMoof             = 0x020000
)

// Trun flags.
const (
	TrunDataOffsetPresent                  = 0x000001
	TrunFirstSampleFlagsPresent            = 0x000004
	TrunSampleDurationPresent              = 0x000100
	TrunSampleSizePresent                  = 0x000200
	TrunSampleFlagsPresent                 = 0x000400
	TrunSampleCompositionTimeOffsetPresent = 0x000800
)

// MaxTrunSamples bounds the sample count of a trun that carries no
// per-sample fields, where the box size cannot vouch for the count.
const MaxTrunSamples = 1 << 20

// Tfhd represents the track fragment header box.
type Tfhd struct {
	Flags                  uint32 // version and flags word as stored
	TrackID                uint32
	BaseDataOffset         uint64
	SampleDescriptionIndex uint32
	DefaultSampleDuration  uint32
	DefaultSampleSize      uint32
	DefaultSampleFlags     uint32
}

// HasSampleDescriptionIndex reports whether the index field was present.
func (t *Tfhd) HasSampleDescriptionIndex() bool {
	return t.Flags&TfhdSampleDescriptionIndexPresent != 0
}

// TrunEntry is one sample of a track run with tfhd defaults already applied.
type TrunEntry struct {
	Duration              uint32
	Size                  uint32
	Flags                 uint32
	CompositionTimeOffset int32
}

// Trun represents the track run box.
type Trun struct {
	Flags            uint32 // version and flags word as stored
	DataOffset       int32
	FirstSampleFlags uint32
	Entries          []TrunEntry
}

// ReadTfhd decodes a tfhd box.
func ReadTfhd(b Box) (Tfhd, error) {
	var (
		t   Tfhd
		err error
	)
	c := b.Cursor()
	if t.Flags, err = c.ReadUint32(); err != nil {
		return Tfhd{}, err
	}
	if t.TrackID, err = c.ReadUint32(); err != nil {
		return Tfhd{}, err
	}
	if t.Flags&TfhdBaseDataOffsetPresent != 0 {
		if t.BaseDataOffset, err = c.ReadUint64(); err != nil {
			return Tfhd{}, err
		}
	}
	fields := []struct {
		flag uint32
		dst  *uint32
	}{
		{TfhdSampleDescriptionIndexPresent, &t.SampleDescriptionIndex},
		{TfhdDefaultSampleDurationPresent, &t.DefaultSampleDuration},
		{TfhdDefaultSampleSizePresent, &t.DefaultSampleSize},
		{TfhdDefaultSampleFlagsPresent, &t.DefaultSampleFlags},
	}
	for _, f := range fields {
		if t.Flags&f.flag == 0 {
			continue
		}
		if *f.dst, err = c.ReadUint32(); err != nil {
			return Tfhd{}, err
		}
	}
	return t, nil
}

// trunStride returns the number of bytes each sample occupies in the table.
func trunStride(flags uint32) int {
	n := 0
	for _, f := range []uint32{
		TrunSampleDurationPresent,
		TrunSampleSizePresent,
		TrunSampleFlagsPresent,
		TrunSampleCompositionTimeOffsetPresent,
	} {
		if flags&f != 0 {
			n += 4
		}
	}
	return n
}

// ReadTrun decodes a trun box in decode order, filling absent fields from
// the tfhd defaults. When first-sample flags are present, sample 0 carries no
// flags field of its own.
func ReadTrun(b Box, tfhd Tfhd) (Trun, error) {
	var (
		t   Trun
		err error
	)
	c := b.Cursor()
	if t.Flags, err = c.ReadUint32(); err != nil {
		return Trun{}, err
	}
	count, err := c.ReadUint32()
	if err != nil {
		return Trun{}, err
	}
	if t.Flags&TrunDataOffsetPresent != 0 {
		if t.DataOffset, err = c.ReadInt32(); err != nil {
			return Trun{}, err
		}
	}
	firstFlags := t.Flags&TrunFirstSampleFlagsPresent != 0
	if firstFlags {
		if t.FirstSampleFlags, err = c.ReadUint32(); err != nil {
			return Trun{}, err
		}
	}

	stride := trunStride(t.Flags)
	if stride == 0 {
		if count > MaxTrunSamples {
			return Trun{}, fmt.Errorf("trun: %d samples without per-sample fields: %w", count, ErrUnrewritable)
		}
	} else {
		need := uint64(count) * uint64(stride)
		if firstFlags && t.Flags&TrunSampleFlagsPresent != 0 && count > 0 {
			need -= 4
		}
		if need > uint64(c.Remaining()) {
			return Trun{}, fmt.Errorf("trun: %d samples need %d bytes, have %d: %w",
				count, need, c.Remaining(), ErrTruncatedBox)
		}
	}

	t.Entries = make([]TrunEntry, count)
	for i := range t.Entries {
		e := TrunEntry{
			Duration: tfhd.DefaultSampleDuration,
			Size:     tfhd.DefaultSampleSize,
			Flags:    tfhd.DefaultSampleFlags,
		}
		if t.Flags&TrunSampleDurationPresent != 0 {
			if e.Duration, err = c.ReadUint32(); err != nil {
				return Trun{}, err
			}
		}
		if t.Flags&TrunSampleSizePresent != 0 {
			if e.Size, err = c.ReadUint32(); err != nil {
				return Trun{}, err
			}
		}
		if firstFlags && i == 0 {
			e.Flags = t.FirstSampleFlags
		} else if t.Flags&TrunSampleFlagsPresent != 0 {
			if e.Flags, err = c.ReadUint32(); err != nil {
				return Trun{}, err
			}
		}
		if t.Flags&TrunSampleCompositionTimeOffsetPresent != 0 {
			if e.CompositionTimeOffset, err = c.ReadInt32(); err != nil {
				return Trun{}, err
			}
		}
		t.Entries[i] = e
	}
	return t, nil
}

// ReadTfdt returns the base media decode time of a tfdt box and its version.
func ReadTfdt(b Box) (baseMediaDecodeTime uint64, version uint8, err error) {
	c := b.Cursor()
	vf, err := c.ReadUint32()
	if err != nil {
		return 0, 0, err
	}
	version = uint8(vf >> 24)
	if version != 0 {
		baseMediaDecodeTime, err = c.ReadUint64()
	} else {
		var v uint32
		v, err = c.ReadUint32()
		baseMediaDecodeTime = uint64(v)
	}
	return baseMediaDecodeTime, version, err
}

// ReadSidxTimescale returns the timescale of a sidx box (box offset 16).
func ReadSidxTimescale(b Box) (uint32, error) {
	c := b.Cursor()
	c.Skip(8) // version+flags, reference_ID
	return c.ReadUint32()
}

// ReadMvhdTimescale returns the timescale of an mvhd box (box offset 20 for
// version 0, 28 for version 1 where creation and modification times are
// 64-bit).
func ReadMvhdTimescale(b Box) (uint32, error) {
	c := b.Cursor()
	vf, err := c.ReadUint32()
	if err != nil {
		return 0, err
	}
	if vf>>24 != 0 {
		c.Skip(16)
	} else {
		c.Skip(8)
	}
	return c.ReadUint32()
}

// ReadMfhd returns the sequence number of an mfhd box.
func ReadMfhd(b Box) (sequenceNumber uint32, err error) {
	c := b.Cursor()
	c.Skip(4)
	return c.ReadUint32()
}
