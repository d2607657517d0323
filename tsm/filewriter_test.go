package tsm

import (
	"bytes"
	"testing"

	"github.com/lastincisor/tskv/internal/seriesbloom"
	"github.com/stretchr/testify/require"
)

type bytesReaderAt struct{ b []byte }

func (r bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, r.b[off:])
	return n, nil
}

func TestFileWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFileWriter(&buf)

	c := NewChunk("cpu", 7, []byte("host=a"))
	g := buildGroup(t, c.NextGroupID(), []int64{0, 10, 20})
	fieldPage, err := BuildPage(intCol(), []Value{{I: 1}, {Null: true}, {I: 3}})
	require.NoError(t, err)
	require.NoError(t, g.Push(fieldPage, uint64(len(g.Pages[0].Bytes))))

	require.NoError(t, fw.WriteColumnGroup(g))
	require.NoError(t, c.Push(g))

	chunkSpec, err := fw.WriteChunk(c)
	require.NoError(t, err)

	cgSpec, err := fw.WriteChunkGroup("cpu", []ChunkWriteSpec{chunkSpec}, []ColumnDesc{timeCol(), intCol()})
	require.NoError(t, err)

	meta := NewChunkGroupMeta()
	meta.Tables["cpu"] = cgSpec
	cgmOffset, cgmSize, err := fw.WriteChunkGroupMeta(meta)
	require.NoError(t, err)

	bloom := seriesbloom.New(1024, 4)
	bloom.Add(c.SeriesID)

	footer := &Footer{
		Version:   FooterVersion,
		TimeRange: c.TimeRange,
		Table:     TableMeta{ChunkGroupOffset: cgmOffset, ChunkGroupSize: cgmSize},
		Series:    SeriesMeta{Bloom: bloom, ChunkOffset: chunkSpec.ChunkOffset, ChunkSize: chunkSpec.ChunkSize},
	}
	require.NoError(t, fw.WriteFooter(footer))

	raw := buf.Bytes()
	fr, err := OpenFileReader(bytesReaderAt{raw}, int64(len(raw)))
	require.NoError(t, err)
	require.NoError(t, fr.VerifyChecksum())
	require.True(t, fr.Footer.Series.MaybeSeriesExist(7))

	specs, err := fr.ChunkGroup("cpu")
	require.NoError(t, err)
	require.Len(t, specs, 1)

	schema := fr.Meta.Tables["cpu"].Schema
	gotChunk, err := fr.Chunk(specs[0], schema)
	require.NoError(t, err)
	require.EqualValues(t, 7, gotChunk.SeriesID)

	groups := gotChunk.ColumnGroups()
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Pages, 2)

	decoded, err := groups[0].Pages[1].DecodeColumn(Integer)
	require.NoError(t, err)
	require.Equal(t, []Value{{I: 1}, {Null: true}, {I: 3}}, decoded)
}

func TestVerifyChecksumDetectsCorruption(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFileWriter(&buf)

	c := NewChunk("cpu", 7, []byte("host=a"))
	g := buildGroup(t, c.NextGroupID(), []int64{0, 10})
	require.NoError(t, fw.WriteColumnGroup(g))
	require.NoError(t, c.Push(g))

	chunkSpec, err := fw.WriteChunk(c)
	require.NoError(t, err)
	cgSpec, err := fw.WriteChunkGroup("cpu", []ChunkWriteSpec{chunkSpec}, []ColumnDesc{timeCol()})
	require.NoError(t, err)

	meta := NewChunkGroupMeta()
	meta.Tables["cpu"] = cgSpec
	cgmOffset, cgmSize, err := fw.WriteChunkGroupMeta(meta)
	require.NoError(t, err)

	require.NoError(t, fw.WriteFooter(&Footer{
		Version:   FooterVersion,
		TimeRange: c.TimeRange,
		Table:     TableMeta{ChunkGroupOffset: cgmOffset, ChunkGroupSize: cgmSize},
		Series:    SeriesMeta{ChunkOffset: chunkSpec.ChunkOffset, ChunkSize: chunkSpec.ChunkSize},
	}))

	raw := buf.Bytes()
	raw[20] ^= 0xFF // flip a byte inside the page section

	fr, err := OpenFileReader(bytesReaderAt{raw}, int64(len(raw)))
	require.NoError(t, err)

	err = fr.VerifyChecksum()
	var hashErr *FileHashCheckFailed
	require.ErrorAs(t, err, &hashErr)
	require.NotEqual(t, hashErr.CRC, hashErr.CRCCalculated)
}
