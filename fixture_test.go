package segtime_test

import (
	"encoding/binary"

	"github.com/tetsuo/segtime"
)

// fragment describes a single-track sidx+moof+mdat segment for tests.
type fragment struct {
	sidxTimescale uint32 // 0 omits the sidx
	sequence      uint32
	trackID       uint32
	sampleDescIdx uint32 // 0 omits the field
	tfdtVersion   uint8
	decodeTime    uint64
	samples       []segtime.TrunEntry
	saioOffset    uint32
	withSaio      bool
	withSaiz      bool
	payload       []byte
}

func box(w *segtime.Writer, t segtime.BoxType, fields ...uint32) {
	w.WriteBoxHeader(uint32(8+4*len(fields)), t)
	for _, f := range fields {
		w.WriteUint32(f)
	}
}

// build encodes f. The trun data offset points at the first mdat payload
// byte, relative to the moof.
func (f fragment) build() []byte {
	w := segtime.NewWriter(nil)
	if f.sidxTimescale != 0 {
		// version 0: reference_ID, timescale, earliest_pts, first_offset,
		// reserved + reference_count 0
		box(&w, segtime.TypeSidx, 0, 1, f.sidxTimescale, 0, 0, 0)
	}
	moofStart := w.Len()
	w.StartBox(segtime.TypeMoof)
	box(&w, segtime.TypeMfhd, 0, f.sequence)
	w.StartBox(segtime.TypeTraf)

	tfhdFlags := uint32(segtime.TfhdDefaultBaseIsMoof)
	tfhdFields := []uint32{f.trackID}
	if f.sampleDescIdx != 0 {
		tfhdFlags |= segtime.TfhdSampleDescriptionIndexPresent
		tfhdFields = append(tfhdFields, f.sampleDescIdx)
	}
	box(&w, segtime.TypeTfhd, append([]uint32{tfhdFlags}, tfhdFields...)...)

	if f.tfdtVersion == 1 {
		box(&w, segtime.TypeTfdt, 1<<24, uint32(f.decodeTime>>32), uint32(f.decodeTime))
	} else {
		box(&w, segtime.TypeTfdt, 0, uint32(f.decodeTime))
	}

	trun := []uint32{0x000f01, uint32(len(f.samples)), 0}
	for _, s := range f.samples {
		trun = append(trun, s.Duration, s.Size, s.Flags, uint32(s.CompositionTimeOffset))
	}
	trunStart := w.Len()
	box(&w, segtime.TypeTrun, trun...)

	if f.withSaio {
		box(&w, segtime.TypeSaio, 0, 1, f.saioOffset)
	}
	if f.withSaiz {
		box(&w, segtime.TypeSaiz, 0, uint32(len(f.samples)))
	}
	w.EndBox()
	w.EndBox()

	buf := w.Bytes()
	moofSize := len(buf) - moofStart
	binary.BigEndian.PutUint32(buf[trunStart+16:], uint32(moofSize+8))

	out := append([]byte(nil), buf...)
	out = binary.BigEndian.AppendUint32(out, uint32(8+len(f.payload)))
	out = binary.BigEndian.AppendUint32(out, uint32(segtime.TypeMdat))
	return append(out, f.payload...)
}

func entries(durations []uint32, ctos []int32) []segtime.TrunEntry {
	out := make([]segtime.TrunEntry, len(durations))
	for i, d := range durations {
		out[i] = segtime.TrunEntry{Duration: d, Size: uint32(100 + i), Flags: 0x01010000}
		if ctos != nil {
			out[i].CompositionTimeOffset = ctos[i]
		}
	}
	if len(out) > 0 {
		out[0].Flags = 0x02000000
	}
	return out
}
