package segtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetsuo/segtime"
)

func header(size uint32, tag string) []byte {
	b := []byte{byte(size >> 24), byte(size >> 16), byte(size >> 8), byte(size)}
	return append(b, tag...)
}

func TestHasNextBox(t *testing.T) {
	tests := []struct {
		name   string
		buf    []byte
		offset int
		want   bool
	}{
		{"minimal box", header(8, "free"), 0, true},
		{"payload fits", append(header(12, "free"), 0, 0, 0, 0), 0, true},
		{"short header", header(8, "free")[:7], 0, false},
		{"size below header", header(7, "free"), 0, false},
		{"size past buffer", header(9, "free"), 0, false},
		{"uppercase tag", header(8, "Free"), 0, false},
		{"digit in tag", header(8, "fre1"), 0, false},
		{"offset at end", header(8, "free"), 8, false},
		{"negative offset", header(8, "free"), -1, false},
		{"second box", append(header(8, "free"), header(8, "skip")...), 8, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, segtime.HasNextBox(tt.buf, tt.offset))
		})
	}
}

func TestNextBox(t *testing.T) {
	buf := append(header(12, "ftyp"), 1, 2, 3, 4)
	b, ok := segtime.NextBox(buf, 0)
	require.True(t, ok)
	assert.Equal(t, segtime.TypeFtyp, b.Type)
	assert.Equal(t, "ftyp", b.Type.String())
	assert.Equal(t, 0, b.Offset)
	assert.Equal(t, 12, b.Size)
	assert.Equal(t, 12, b.End())
	assert.Equal(t, []byte{1, 2, 3, 4}, b.Payload())
	assert.Equal(t, buf, b.Raw())

	_, ok = segtime.NextBox(buf[:10], 0)
	assert.False(t, ok)
}

func TestScannerEntersContainers(t *testing.T) {
	seg := fragment{
		sidxTimescale: 90000,
		trackID:       1,
		samples:       entries([]uint32{3000}, nil),
		payload:       []byte{0xde, 0xad},
	}.build()

	var types []string
	sc := segtime.NewScanner(seg, 0)
	for sc.Next() {
		types = append(types, sc.Box().Type.String())
	}
	assert.Equal(t, []string{"sidx", "moof", "mfhd", "traf", "tfhd", "tfdt", "trun", "mdat"}, types)
	assert.Equal(t, len(seg), sc.Offset())
}

func TestScannerStopsOnGarbage(t *testing.T) {
	buf := append(header(8, "free"), 0xff, 0xff, 0xff, 0xff, 'm', 'd', 'a', 't')
	sc := segtime.NewScanner(buf, 0)
	require.True(t, sc.Next())
	assert.False(t, sc.Next())
	assert.Equal(t, 8, sc.Offset())
}

func TestFindBox(t *testing.T) {
	seg := fragment{
		sidxTimescale: 1000,
		trackID:       7,
		samples:       entries([]uint32{10, 10}, nil),
	}.build()

	trun, ok := segtime.FindBox(seg, 0, segtime.TypeTrun)
	require.True(t, ok)
	assert.Equal(t, segtime.TypeTrun, trun.Type)

	_, ok = segtime.FindBox(seg, 0, segtime.TypeSaio)
	assert.False(t, ok)

	// A search bounded by a parent does not see later siblings.
	moof, ok := segtime.FindBox(seg, 0, segtime.TypeMoof)
	require.True(t, ok)
	_, ok = segtime.FindBox(seg[:moof.End()], moof.Offset+8, segtime.TypeMdat)
	assert.False(t, ok)
	_, ok = segtime.FindBox(seg, moof.Offset+8, segtime.TypeMdat)
	assert.True(t, ok)
}

func TestFindBoxSkipsLeafPayload(t *testing.T) {
	// A trun tag inside an mdat payload is not a box.
	mdat := append(header(16, "mdat"), header(8, "trun")...)
	_, ok := segtime.FindBox(mdat, 0, segtime.TypeTrun)
	assert.False(t, ok)
}

func TestIsContainerBox(t *testing.T) {
	for _, typ := range []segtime.BoxType{segtime.TypeMoof, segtime.TypeMoov, segtime.TypeTraf} {
		assert.True(t, segtime.IsContainerBox(typ), typ.String())
	}
	for _, typ := range []segtime.BoxType{segtime.TypeMdat, segtime.TypeTrun, segtime.TypeSidx} {
		assert.False(t, segtime.IsContainerBox(typ), typ.String())
	}
}
