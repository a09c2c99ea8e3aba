package segtime

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// fragmentBoxes holds the boxes of a single-track movie fragment.
type fragmentBoxes struct {
	moof, mfhd, traf Box
	tfhd, trun, tfdt Box
	saio, saiz       Box
	hasSaio, hasSaiz bool
}

func requireChild(buf []byte, parent Box, t BoxType) (Box, error) {
	b, ok := findChild(buf, parent, t)
	if !ok {
		return Box{}, fmt.Errorf("no %s in %s at offset %d: %w", t, parent.Type, parent.Offset, ErrUnrewritable)
	}
	return b, nil
}

// locateFragment finds mfhd and traf in moof, then tfhd, trun and tfdt
// (required) and saio, saiz (optional) in traf.
func locateFragment(buf []byte, moof Box) (fragmentBoxes, error) {
	f := fragmentBoxes{moof: moof}
	var err error
	if f.mfhd, err = requireChild(buf, moof, TypeMfhd); err != nil {
		return f, err
	}
	if f.traf, err = requireChild(buf, moof, TypeTraf); err != nil {
		return f, err
	}
	for _, r := range []struct {
		t   BoxType
		dst *Box
	}{
		{TypeTfhd, &f.tfhd},
		{TypeTrun, &f.trun},
		{TypeTfdt, &f.tfdt},
	} {
		if *r.dst, err = requireChild(buf, f.traf, r.t); err != nil {
			return f, err
		}
	}
	f.saio, f.hasSaio = findChild(buf, f.traf, TypeSaio)
	f.saiz, f.hasSaiz = findChild(buf, f.traf, TypeSaiz)
	return f, nil
}

// saioBoxSize is the only saio layout supported: version 0, flags 0, a
// single 32-bit offset.
const saioBoxSize = 20

func readSaioOffset(b Box) (uint32, error) {
	c := b.Cursor()
	flags, err := c.ReadUint32()
	if err != nil {
		return 0, err
	}
	count, err := c.ReadUint32()
	if err != nil {
		return 0, err
	}
	if flags != 0 || count != 1 || b.Size != saioBoxSize {
		return 0, fmt.Errorf("saio with flags 0x%08x, %d entries, size %d: %w", flags, count, b.Size, ErrUnrewritable)
	}
	return c.ReadUint32()
}

// sample is a trun entry placed on the original presentation timeline. Its
// decode index is its position in the slice.
type sample struct {
	TrunEntry
	presentationTime int64 // decode time before the sample plus its composition offset
}

// presentationOrder returns decode indices sorted by presentation time.
// Samples with equal presentation times keep their decode order.
func presentationOrder(samples []sample) []int {
	idx := make([]int, len(samples))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(samples[a].presentationTime, samples[b].presentationTime)
	})
	return idx
}

// tickAt returns round(d*r/n) with halves rounded up. Consecutive differences
// of tickAt over r = 0..n sum to exactly d.
func tickAt(d uint32, r, n int) int64 {
	num := 2*uint64(d)*uint64(r) + uint64(n)
	return int64(num / (2 * uint64(n)))
}

// Output layout sizes.
const (
	tfhdBoxSize     = 16 // header, version+flags, track_ID
	trunHeaderSize  = 20 // header, version+flags, sample_count, data_offset
	trunEntrySize   = 16 // duration, size, flags, composition offset
	rewrittenTrunVF = 1<<24 | TrunDataOffsetPresent | TrunSampleDurationPresent |
		TrunSampleSizePresent | TrunSampleFlagsPresent | TrunSampleCompositionTimeOffsetPresent
)

// RewriteTimestamps rebuilds the moof of a single-track fragment so that its
// samples tile segDuration ticks evenly in presentation order.
//
// Durations are redistributed over presentation ranks: the sample at rank r
// starts at round(segDuration*r/n) and lasts until the start of rank r+1, so
// the durations sum to exactly segDuration. Composition offsets are then
// recomputed against the new decode timeline, biased by the composition
// offset of the first sample in decode order. That sample must be a key frame
// that is not reordered; a fragment whose first decoded sample is not also
// the first presented one is rejected.
//
// The returned buffer holds the new moof only. Sample data is untouched: the
// caller keeps the original mdat after it (see SpliceFragment). The trun data
// offset and saio offset are shifted by the change in moof size.
//
// Errors wrap ErrUnrewritable for missing boxes and unsupported layouts, and
// ErrTruncatedBox for fields that run past their box.
func RewriteTimestamps(media []byte, segDuration uint32) ([]byte, error) {
	moof, ok := FindBox(media, 0, TypeMoof)
	if !ok {
		return nil, fmt.Errorf("no moof: %w", ErrUnrewritable)
	}
	f, err := locateFragment(media, moof)
	if err != nil {
		return nil, err
	}

	var saioOffset uint32
	if f.hasSaio {
		if saioOffset, err = readSaioOffset(f.saio); err != nil {
			return nil, err
		}
	}
	tfhd, err := ReadTfhd(f.tfhd)
	if err != nil {
		return nil, fmt.Errorf("reading tfhd: %w", err)
	}
	trun, err := ReadTrun(f.trun, tfhd)
	if err != nil {
		return nil, fmt.Errorf("reading trun: %w", err)
	}
	n := len(trun.Entries)
	if n == 0 {
		return nil, fmt.Errorf("trun has no samples: %w", ErrUnrewritable)
	}

	samples := make([]sample, n)
	var dts int64
	for i, e := range trun.Entries {
		samples[i] = sample{TrunEntry: e, presentationTime: dts + int64(e.CompositionTimeOffset)}
		dts += int64(e.Duration)
	}
	ctsBias := int64(trun.Entries[0].CompositionTimeOffset)

	reordered := presentationOrder(samples)
	if reordered[0] != 0 {
		return nil, fmt.Errorf("sample %d is presented before the first decoded sample: %w", reordered[0], ErrUnrewritable)
	}
	forward := make([]int, n)
	for r, i := range reordered {
		forward[i] = r
	}

	out := make([]TrunEntry, n)
	var dtsSum int64
	for i, s := range samples {
		r := forward[i]
		pts := tickAt(segDuration, r, n)
		dur := tickAt(segDuration, r+1, n) - pts
		cto := pts - dtsSum + ctsBias
		if cto < math.MinInt32 || cto > math.MaxInt32 {
			return nil, fmt.Errorf("sample %d: composition offset %d out of range: %w", i, cto, ErrUnrewritable)
		}
		out[i] = TrunEntry{Duration: uint32(dur), Size: s.Size, Flags: s.Flags, CompositionTimeOffset: int32(cto)}
		dtsSum += dur
	}

	tfhdSize := tfhdBoxSize
	if tfhd.HasSampleDescriptionIndex() {
		tfhdSize += 4
	}
	trunSize := trunHeaderSize + trunEntrySize*n
	outSize := 8 + f.mfhd.Size + 8 + tfhdSize + f.tfdt.Size + trunSize
	if f.hasSaio {
		outSize += f.saio.Size
	}
	if f.hasSaiz {
		outSize += f.saiz.Size
	}
	if uint64(outSize) > math.MaxUint32 {
		return nil, fmt.Errorf("rewritten moof of %d bytes: %w", outSize, ErrUnrewritable)
	}
	sizeDelta := int64(outSize) - int64(moof.Size)

	dataOffset := int64(tfhd.BaseDataOffset) + int64(trun.DataOffset) + sizeDelta
	if dataOffset < math.MinInt32 || dataOffset > math.MaxInt32 {
		return nil, fmt.Errorf("data offset %d out of range: %w", dataOffset, ErrUnrewritable)
	}
	newSaioOffset := int64(saioOffset) + sizeDelta
	if f.hasSaio && (newSaioOffset < 0 || newSaioOffset > math.MaxUint32) {
		return nil, fmt.Errorf("saio offset %d out of range: %w", newSaioOffset, ErrUnrewritable)
	}

	w := NewWriter(make([]byte, 0, outSize))
	w.StartBox(TypeMoof)
	w.CopyBox(f.mfhd)
	w.StartBox(TypeTraf)

	tfhdFlags := uint32(TfhdDefaultBaseIsMoof)
	if tfhd.HasSampleDescriptionIndex() {
		tfhdFlags |= TfhdSampleDescriptionIndexPresent
	}
	w.WriteFullBoxHeader(uint32(tfhdSize), TypeTfhd, 0, tfhdFlags)
	w.WriteUint32(tfhd.TrackID)
	if tfhd.HasSampleDescriptionIndex() {
		w.WriteUint32(tfhd.SampleDescriptionIndex)
	}

	w.CopyBox(f.tfdt)

	w.WriteBoxHeader(uint32(trunSize), TypeTrun)
	w.WriteUint32(rewrittenTrunVF)
	w.WriteUint32(uint32(n))
	w.WriteInt32(int32(dataOffset))
	for _, e := range out {
		w.WriteUint32(e.Duration)
		w.WriteUint32(e.Size)
		w.WriteUint32(e.Flags)
		w.WriteInt32(e.CompositionTimeOffset)
	}

	if f.hasSaio {
		w.WriteFullBoxHeader(saioBoxSize, TypeSaio, 0, 0)
		w.WriteUint32(1)
		w.WriteUint32(uint32(newSaioOffset))
	}
	if f.hasSaiz {
		w.CopyBox(f.saiz)
	}
	w.EndBox() // traf
	w.EndBox() // moof

	if w.Len() != outSize {
		return nil, fmt.Errorf("rewritten moof is %d bytes, expected %d", w.Len(), outSize)
	}
	return w.Bytes(), nil
}
