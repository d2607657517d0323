package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lastincisor/tskv/coordinator"
	"github.com/lastincisor/tskv/tsm"
)

func testPayload() *PointsPayload {
	timeDesc := tsm.ColumnDesc{
		ID: 1, Name: "time",
		Type: tsm.ColumnType{Kind: tsm.ColumnKindTime, Unit: tsm.TimeUnitMillisecond},
	}
	valueDesc := tsm.ColumnDesc{
		ID: 2, Name: "usage",
		Type: tsm.ColumnType{Kind: tsm.ColumnKindField, Physical: tsm.Float},
	}
	return &PointsPayload{
		Table:     "cpu",
		SeriesKey: []byte("host=a,region=eu"),
		Columns: []ColumnValues{
			{Desc: valueDesc, Values: []tsm.Value{{F: 0.5}, {Null: true}, {F: 0.7}}},
			{Desc: timeDesc, Values: []tsm.Value{{I: 100}, {I: 200}, {I: 300}}},
		},
	}
}

func TestPointsPayloadRoundTrip(t *testing.T) {
	in := testPayload()
	data, err := in.Marshal()
	require.NoError(t, err)

	out, err := UnmarshalPointsPayload(data)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestPointsPayloadTruncated(t *testing.T) {
	data, err := testPayload().Marshal()
	require.NoError(t, err)

	_, err = UnmarshalPointsPayload(data[:len(data)-3])
	require.Error(t, err)
	require.Contains(t, err.Error(), "truncated")
}

func TestWriteReplicaProducesReadableFile(t *testing.T) {
	dir := t.TempDir()
	eng := New(dir, 1024, nil)

	payload := testPayload()
	data, err := payload.Marshal()
	require.NoError(t, err)

	req := &coordinator.WriteReplicaRequest{
		ReplicaID: 10,
		Tenant:    "t",
		DBName:    "d",
		Precision: coordinator.PrecisionMillisecond,
		Data:      data,
	}
	require.NoError(t, eng.WriteReplica(context.Background(), req))

	files, err := filepath.Glob(filepath.Join(dir, "data", "t", "d", "10", "*.tsm"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()
	st, err := f.Stat()
	require.NoError(t, err)

	fr, err := tsm.OpenFileReader(f, st.Size())
	require.NoError(t, err)
	require.NoError(t, fr.VerifyChecksum())

	seriesID := SeriesID(payload.SeriesKey)
	require.True(t, fr.Footer.Series.MaybeSeriesExist(seriesID))
	require.Equal(t, tsm.TimeRange{Min: 100, Max: 300}, fr.Footer.TimeRange)

	specs, err := fr.ChunkGroup("cpu")
	require.NoError(t, err)
	require.Len(t, specs, 1)
	require.Equal(t, seriesID, specs[0].SeriesID)

	schema := fr.Meta.Tables["cpu"].Schema
	chunk, err := fr.Chunk(specs[0], schema)
	require.NoError(t, err)
	require.Equal(t, payload.SeriesKey, chunk.SeriesKey)

	groups := chunk.ColumnGroups()
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Pages, 2)

	// Time column is reordered to the front of the group.
	times, err := groups[0].Pages[0].DecodeColumn(tsm.Time)
	require.NoError(t, err)
	require.Equal(t, []tsm.Value{{I: 100}, {I: 200}, {I: 300}}, times)

	values, err := groups[0].Pages[1].DecodeColumn(tsm.Float)
	require.NoError(t, err)
	require.Equal(t, []tsm.Value{{F: 0.5}, {Null: true}, {F: 0.7}}, values)
}

func TestWriteReplicaDuplicateApplyTolerated(t *testing.T) {
	dir := t.TempDir()
	eng := New(dir, 1024, nil)

	data, err := testPayload().Marshal()
	require.NoError(t, err)
	req := &coordinator.WriteReplicaRequest{ReplicaID: 10, Tenant: "t", DBName: "d", Data: data}

	require.NoError(t, eng.WriteReplica(context.Background(), req))
	require.NoError(t, eng.WriteReplica(context.Background(), req))

	files, err := filepath.Glob(filepath.Join(dir, "data", "t", "d", "10", "*.tsm"))
	require.NoError(t, err)
	require.Len(t, files, 2)
}

func TestWriteReplicaRejectsEmptyPayload(t *testing.T) {
	eng := New(t.TempDir(), 1024, nil)
	empty := &PointsPayload{Table: "cpu", SeriesKey: []byte("host=a")}
	data, err := empty.Marshal()
	require.NoError(t, err)

	err = eng.WriteReplica(context.Background(), &coordinator.WriteReplicaRequest{Data: data})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no columns")
}
