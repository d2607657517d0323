// Package reader implements the sorted-read side of the engine: batch
// streams over decoded columns, partitioned streams with per-partition
// polling, typed cursors over the time column, and the parallel merge
// adapter that fans child readers into one bounded output stream.
package reader

import (
	"context"

	"github.com/lastincisor/tskv/tsm"
)

// RecordBatch is a row-aligned set of decoded columns: Columns[i] holds
// one value per row for Schema[i].
type RecordBatch struct {
	Schema  []tsm.ColumnDesc
	Columns [][]tsm.Value
}

// NumRows returns the batch's row count.
func (b *RecordBatch) NumRows() int {
	if len(b.Columns) == 0 {
		return 0
	}
	return len(b.Columns[0])
}

// truncate returns a batch holding only the first n rows. n must not
// exceed the batch's row count.
func (b *RecordBatch) truncate(n int) *RecordBatch {
	cols := make([][]tsm.Value, len(b.Columns))
	for i, c := range b.Columns {
		cols[i] = c[:n]
	}
	return &RecordBatch{Schema: b.Schema, Columns: cols}
}

// BatchStream yields record batches until io.EOF.
type BatchStream interface {
	Schema() []tsm.ColumnDesc
	Next(ctx context.Context) (*RecordBatch, error)
}

// BatchReader is a node of a read plan: Process opens its output
// stream, Children exposes its inputs, and String renders it for plan
// display.
type BatchReader interface {
	Process() (BatchStream, error)
	Children() []BatchReader
	String() string
}

// limitRecordBatch decrements remain by the batch's rows, truncating
// the batch when it crosses zero. A nil remain means no limit. The
// second return is false once the limit is exhausted and the stream
// should end.
func limitRecordBatch(remain *int, batch *RecordBatch) (*RecordBatch, bool) {
	if remain == nil {
		return batch, true
	}
	if *remain == 0 {
		return nil, false
	}
	n := batch.NumRows()
	if n <= *remain {
		*remain -= n
		return batch, true
	}
	batch = batch.truncate(*remain)
	*remain = 0
	return batch, true
}
