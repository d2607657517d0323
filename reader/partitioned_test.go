package reader

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lastincisor/tskv/tsm"
)

func TestFusedStreamsSkipEmptyBatches(t *testing.T) {
	s := &sliceStream{
		schema: timeSchema(),
		batches: []*RecordBatch{
			timeBatch(0, 0),
			timeBatch(0, 3),
			timeBatch(10, 0),
		},
	}
	fused := newFusedStreams([]BatchStream{s})
	require.Equal(t, 1, fused.Partitions())

	batch, err := fused.Next(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 3, batch.NumRows())

	_, err = fused.Next(context.Background(), 0)
	require.Equal(t, io.EOF, err)

	// A drained partition stays drained.
	_, err = fused.Next(context.Background(), 0)
	require.Equal(t, io.EOF, err)
}

func TestColumnCursorStream(t *testing.T) {
	streams := []BatchStream{
		&sliceStream{schema: timeSchema(), batches: []*RecordBatch{timeBatch(100, 4)}},
		&sliceStream{schema: timeSchema(), batches: []*RecordBatch{timeBatch(200, 2)}},
	}
	ccs, err := NewColumnCursorStream(streams, "time")
	require.NoError(t, err)
	require.Equal(t, 2, ccs.Partitions())

	cursor, batch, err := ccs.Next(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, batch.NumRows())
	require.Equal(t, 2, cursor.Len())
	require.Equal(t, int64(200), cursor.Current())
	cursor.Advance()
	require.Equal(t, int64(201), cursor.Current())
	cursor.Advance()
	require.True(t, cursor.Done())
}

func TestColumnCursorStreamMissingColumn(t *testing.T) {
	streams := []BatchStream{
		&sliceStream{schema: timeSchema(), batches: nil},
	}
	_, err := NewColumnCursorStream(streams, "no_such_column")
	require.ErrorIs(t, err, &SchemaError{})
}

func TestChunkStream(t *testing.T) {
	timeDesc := timeSchema()[0]
	fieldDesc := tsm.ColumnDesc{
		ID: 2, Name: "usage",
		Type: tsm.ColumnType{Kind: tsm.ColumnKindField, Physical: tsm.Integer},
	}

	chunk := tsm.NewChunk("cpu", 7, []byte("host=a"))
	group := tsm.NewColumnGroup(chunk.NextGroupID(), 0)

	timePage, err := tsm.BuildPage(timeDesc, []tsm.Value{{I: 1}, {I: 2}})
	require.NoError(t, err)
	require.NoError(t, group.Push(timePage, 0))

	fieldPage, err := tsm.BuildPage(fieldDesc, []tsm.Value{{I: 10}, {Null: true}})
	require.NoError(t, err)
	require.NoError(t, group.Push(fieldPage, uint64(len(timePage.Bytes))))

	require.NoError(t, chunk.Push(group))

	stream := NewChunkStream(chunk)
	batch, err := stream.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, batch.NumRows())
	require.Equal(t, []tsm.Value{{I: 1}, {I: 2}}, batch.Columns[0])
	require.Equal(t, []tsm.Value{{I: 10}, {Null: true}}, batch.Columns[1])

	_, err = stream.Next(context.Background())
	require.Equal(t, io.EOF, err)
}
