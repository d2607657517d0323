package tsm

import (
	"testing"

	"github.com/lastincisor/tskv/internal/seriesbloom"
	"github.com/stretchr/testify/require"
)

func TestFooterRoundTrip(t *testing.T) {
	bloom := seriesbloom.New(4096, 4)
	bloom.Add(7)
	bloom.Add(99)

	f := &Footer{
		Version:   FooterVersion,
		TimeRange: TimeRange{Min: 100, Max: 200},
		Table:     TableMeta{ChunkGroupOffset: 10, ChunkGroupSize: 20},
		Series:    SeriesMeta{Bloom: bloom, ChunkOffset: 30, ChunkSize: 40},
		FileCRC:   0xDEADBEEF,
	}

	data, err := f.Serialize()
	require.NoError(t, err)

	got, err := DeserializeFooter(data)
	require.NoError(t, err)
	require.Equal(t, f.Version, got.Version)
	require.Equal(t, f.TimeRange, got.TimeRange)
	require.Equal(t, f.Table, got.Table)
	require.Equal(t, f.Series.ChunkOffset, got.Series.ChunkOffset)
	require.Equal(t, f.Series.ChunkSize, got.Series.ChunkSize)
	require.Equal(t, f.FileCRC, got.FileCRC)

	require.True(t, got.Series.MaybeSeriesExist(7))
	require.True(t, got.Series.MaybeSeriesExist(99))
}

func TestFooterDeserializeTruncated(t *testing.T) {
	_, err := DeserializeFooter([]byte{1, 2, 3})
	var de *DeserializeError
	require.ErrorAs(t, err, &de)
}
