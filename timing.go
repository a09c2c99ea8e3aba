package segtime

import "fmt"

// SegmentTiming holds the timing fields found in a flat scan of a segment.
type SegmentTiming struct {
	Timescale           uint32
	BaseMediaDecodeTime uint64

	HasTimescale    bool
	HasDecodeTime   bool
	TimescaleSource BoxType // sidx or mvhd
}

// Seconds returns the base media decode time in seconds.
func (t SegmentTiming) Seconds() (float64, error) {
	if !t.HasTimescale || !t.HasDecodeTime || t.Timescale == 0 {
		return 0, ErrTimingUnavailable
	}
	return float64(t.BaseMediaDecodeTime) / float64(t.Timescale), nil
}

// ReadSegmentTiming scans buf from offset 0 for sidx, mvhd and tfdt boxes.
// buf must start on a box boundary. moov, moof and traf are entered; other
// boxes are skipped. When a box type repeats, the last one wins.
func ReadSegmentTiming(buf []byte) (SegmentTiming, error) {
	var t SegmentTiming
	sc := NewScanner(buf, 0)
	for sc.Next() {
		b := sc.Box()
		switch b.Type {
		case TypeSidx, TypeMvhd:
			read := ReadSidxTimescale
			if b.Type == TypeMvhd {
				read = ReadMvhdTimescale
			}
			ts, err := read(b)
			if err != nil {
				return SegmentTiming{}, fmt.Errorf("reading timescale: %w", err)
			}
			t.Timescale = ts
			t.HasTimescale = true
			t.TimescaleSource = b.Type
		case TypeTfdt:
			bmdt, _, err := ReadTfdt(b)
			if err != nil {
				return SegmentTiming{}, fmt.Errorf("reading decode time: %w", err)
			}
			t.BaseMediaDecodeTime = bmdt
			t.HasDecodeTime = true
		}
	}
	return t, nil
}

// FirstDecodeTime returns the decode time of the first sample of a live
// segment in seconds. It returns ErrTimingUnavailable when the segment has
// no timescale or no tfdt; that is an ordinary outcome for segments without
// those boxes.
func FirstDecodeTime(buf []byte) (float64, error) {
	t, err := ReadSegmentTiming(buf)
	if err != nil {
		return 0, err
	}
	return t.Seconds()
}
