package segtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetsuo/segtime"
)

func fullBox(tag string, fields ...uint32) []byte {
	w := segtime.NewWriter(nil)
	w.WriteBoxHeader(uint32(8+4*len(fields)), segtime.BoxType(uint32(tag[0])<<24|uint32(tag[1])<<16|uint32(tag[2])<<8|uint32(tag[3])))
	for _, f := range fields {
		w.WriteUint32(f)
	}
	return w.Bytes()
}

func mustBox(t *testing.T, buf []byte) segtime.Box {
	t.Helper()
	b, ok := segtime.NextBox(buf, 0)
	require.True(t, ok)
	return b
}

func TestReadTfhd(t *testing.T) {
	buf := fullBox("tfhd",
		segtime.TfhdBaseDataOffsetPresent|segtime.TfhdSampleDescriptionIndexPresent|
			segtime.TfhdDefaultSampleDurationPresent|segtime.TfhdDefaultSampleSizePresent|
			segtime.TfhdDefaultSampleFlagsPresent,
		3,          // track_ID
		0, 1000,    // base_data_offset
		2,          // sample_description_index
		1024,       // default duration
		512,        // default size
		0x01010000, // default flags
	)
	tfhd, err := segtime.ReadTfhd(mustBox(t, buf))
	require.NoError(t, err)
	assert.Equal(t, uint32(3), tfhd.TrackID)
	assert.Equal(t, uint64(1000), tfhd.BaseDataOffset)
	assert.True(t, tfhd.HasSampleDescriptionIndex())
	assert.Equal(t, uint32(2), tfhd.SampleDescriptionIndex)
	assert.Equal(t, uint32(1024), tfhd.DefaultSampleDuration)
	assert.Equal(t, uint32(512), tfhd.DefaultSampleSize)
	assert.Equal(t, uint32(0x01010000), tfhd.DefaultSampleFlags)
}

func TestReadTfhdTruncated(t *testing.T) {
	buf := fullBox("tfhd", segtime.TfhdDefaultSampleDurationPresent, 1)
	_, err := segtime.ReadTfhd(mustBox(t, buf))
	assert.ErrorIs(t, err, segtime.ErrTruncatedBox)
}

func TestReadTrunAppliesDefaults(t *testing.T) {
	tfhd := segtime.Tfhd{DefaultSampleDuration: 1024, DefaultSampleSize: 300, DefaultSampleFlags: 0x01010000}
	buf := fullBox("trun",
		segtime.TrunDataOffsetPresent|segtime.TrunFirstSampleFlagsPresent|segtime.TrunSampleSizePresent,
		3,          // sample_count
		0xffffff00, // data_offset -256
		0x02000000, // first_sample_flags
		10, 20, 30,
	)
	trun, err := segtime.ReadTrun(mustBox(t, buf), tfhd)
	require.NoError(t, err)
	assert.Equal(t, int32(-256), trun.DataOffset)
	assert.Equal(t, []segtime.TrunEntry{
		{Duration: 1024, Size: 10, Flags: 0x02000000},
		{Duration: 1024, Size: 20, Flags: 0x01010000},
		{Duration: 1024, Size: 30, Flags: 0x01010000},
	}, trun.Entries)
}

func TestReadTrunFirstSampleFlagsReplacePerSampleFlags(t *testing.T) {
	buf := fullBox("trun",
		segtime.TrunFirstSampleFlagsPresent|segtime.TrunSampleFlagsPresent|segtime.TrunSampleCompositionTimeOffsetPresent,
		2,
		0x02000000,
		0xfffffc18,         // sample 0: cto -1000, no flags field
		0x01010000, 0x7d0, // sample 1: flags, cto 2000
	)
	trun, err := segtime.ReadTrun(mustBox(t, buf), segtime.Tfhd{})
	require.NoError(t, err)
	require.Len(t, trun.Entries, 2)
	assert.Equal(t, segtime.TrunEntry{Flags: 0x02000000, CompositionTimeOffset: -1000}, trun.Entries[0])
	assert.Equal(t, segtime.TrunEntry{Flags: 0x01010000, CompositionTimeOffset: 2000}, trun.Entries[1])
}

func TestReadTrunRejectsBogusCounts(t *testing.T) {
	t.Run("count exceeds box", func(t *testing.T) {
		buf := fullBox("trun", segtime.TrunSampleDurationPresent, 1000, 1, 2)
		_, err := segtime.ReadTrun(mustBox(t, buf), segtime.Tfhd{})
		assert.ErrorIs(t, err, segtime.ErrTruncatedBox)
	})
	t.Run("no per-sample fields", func(t *testing.T) {
		buf := fullBox("trun", 0, segtime.MaxTrunSamples+1)
		_, err := segtime.ReadTrun(mustBox(t, buf), segtime.Tfhd{})
		assert.ErrorIs(t, err, segtime.ErrUnrewritable)
	})
	t.Run("no per-sample fields within limit", func(t *testing.T) {
		buf := fullBox("trun", 0, 4)
		trun, err := segtime.ReadTrun(mustBox(t, buf), segtime.Tfhd{DefaultSampleDuration: 5})
		require.NoError(t, err)
		assert.Len(t, trun.Entries, 4)
		assert.Equal(t, uint32(5), trun.Entries[3].Duration)
	})
}

func TestReadTfdt(t *testing.T) {
	v, version, err := segtime.ReadTfdt(mustBox(t, fullBox("tfdt", 0, 900000)))
	require.NoError(t, err)
	assert.Equal(t, uint64(900000), v)
	assert.Equal(t, uint8(0), version)

	v, version, err = segtime.ReadTfdt(mustBox(t, fullBox("tfdt", 1<<24, 2, 5)))
	require.NoError(t, err)
	assert.Equal(t, uint64(2<<32|5), v)
	assert.Equal(t, uint8(1), version)

	_, _, err = segtime.ReadTfdt(mustBox(t, fullBox("tfdt", 1<<24, 2)))
	assert.ErrorIs(t, err, segtime.ErrTruncatedBox)
}

func TestReadTimescales(t *testing.T) {
	ts, err := segtime.ReadSidxTimescale(mustBox(t, fullBox("sidx", 0, 1, 48000, 0, 0, 0)))
	require.NoError(t, err)
	assert.Equal(t, uint32(48000), ts)

	_, err = segtime.ReadSidxTimescale(mustBox(t, fullBox("sidx", 0, 1)))
	assert.ErrorIs(t, err, segtime.ErrTruncatedBox)

	// version 0: creation, modification, timescale
	ts, err = segtime.ReadMvhdTimescale(mustBox(t, fullBox("mvhd", 0, 1, 2, 1000, 0)))
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), ts)

	// version 1: 64-bit creation and modification times
	ts, err = segtime.ReadMvhdTimescale(mustBox(t, fullBox("mvhd", 1<<24, 0, 1, 0, 2, 600, 0, 0)))
	require.NoError(t, err)
	assert.Equal(t, uint32(600), ts)
}
