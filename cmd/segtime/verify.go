package main

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Eyevinn/mp4ff/mp4"
)

// verifyReport summarizes a segment as decoded by mp4ff.
type verifyReport struct {
	Boxes      []string
	Samples    int
	Duration   uint64 // sum of trun sample durations
	DecodeTime uint64 // tfdt of the last moof
}

// verifySegment decodes buf box by box with mp4ff, independently of this
// module's own parser, and checks that every moof has tfhd, tfdt and trun.
func verifySegment(buf []byte) (verifyReport, error) {
	var rep verifyReport
	r := bytes.NewReader(buf)
	var pos uint64
	for pos < uint64(len(buf)) {
		box, err := mp4.DecodeBox(pos, r)
		if err != nil {
			return rep, fmt.Errorf("decoding box at %d: %w", pos, err)
		}
		rep.Boxes = append(rep.Boxes, box.Type())
		if moof, ok := box.(*mp4.MoofBox); ok {
			traf := moof.Traf
			if traf == nil || traf.Tfhd == nil || traf.Tfdt == nil || traf.Trun == nil {
				return rep, errors.New("moof without tfhd, tfdt or trun")
			}
			rep.DecodeTime = traf.Tfdt.BaseMediaDecodeTime()
			for _, s := range traf.Trun.Samples {
				rep.Duration += uint64(s.Dur)
			}
			rep.Samples += len(traf.Trun.Samples)
		}
		if box.Size() == 0 {
			return rep, fmt.Errorf("zero-sized %s box at %d", box.Type(), pos)
		}
		pos += box.Size()
	}
	return rep, nil
}
