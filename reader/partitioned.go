package reader

import (
	"context"
	"fmt"
	"io"

	"github.com/lastincisor/tskv/tsm"
)

// PartitionedStream is a stream with multiple partitions that may be
// polled separately but never concurrently. Sort-preserving merges use
// it to decouple cursor merging from the cursor source.
type PartitionedStream interface {
	// Partitions returns the number of partitions.
	Partitions() int
	// Next returns the next batch from partition idx, or io.EOF when
	// that partition is exhausted. Callers must not poll distinct
	// partitions concurrently.
	Next(ctx context.Context, idx int) (*RecordBatch, error)
}

// fusedStreams adapts a set of batch streams into partitions, skipping
// empty batches and latching each stream's EOF so a drained partition
// stays drained.
type fusedStreams struct {
	streams []BatchStream
	done    []bool
}

func newFusedStreams(streams []BatchStream) *fusedStreams {
	return &fusedStreams{streams: streams, done: make([]bool, len(streams))}
}

func (f *fusedStreams) Partitions() int { return len(f.streams) }

func (f *fusedStreams) Next(ctx context.Context, idx int) (*RecordBatch, error) {
	if f.done[idx] {
		return nil, io.EOF
	}
	for {
		batch, err := f.streams[idx].Next(ctx)
		if err != nil {
			f.done[idx] = true
			return nil, err
		}
		if batch.NumRows() == 0 {
			continue
		}
		return batch, nil
	}
}

// TimeCursor walks one batch's time column in row order.
type TimeCursor struct {
	values []int64
	offset int
}

// Done reports whether the cursor is exhausted.
func (c *TimeCursor) Done() bool { return c.offset >= len(c.values) }

// Current returns the timestamp under the cursor.
func (c *TimeCursor) Current() int64 { return c.values[c.offset] }

// Advance moves past the current row and returns its index.
func (c *TimeCursor) Advance() int {
	idx := c.offset
	c.offset++
	return idx
}

// Len returns the number of rows the cursor covers.
func (c *TimeCursor) Len() int { return len(c.values) }

// ColumnCursorStream adapts partitioned batch streams by extracting a
// cursor over the named sort column from every batch. The column is
// resolved per stream at construction; a stream missing it fails with
// *SchemaError before any polling happens.
type ColumnCursorStream struct {
	streams   *fusedStreams
	columnIdx []int
	column    string
}

func NewColumnCursorStream(streams []BatchStream, columnName string) (*ColumnCursorStream, error) {
	idxs := make([]int, len(streams))
	for i, s := range streams {
		idx := -1
		for c, desc := range s.Schema() {
			if desc.Name == columnName {
				idx = c
				break
			}
		}
		if idx < 0 {
			return nil, &SchemaError{Reason: fmt.Sprintf("unable to get field named %q", columnName)}
		}
		idxs[i] = idx
	}
	return &ColumnCursorStream{
		streams:   newFusedStreams(streams),
		columnIdx: idxs,
		column:    columnName,
	}, nil
}

func (s *ColumnCursorStream) Partitions() int { return s.streams.Partitions() }

// Next returns a cursor over the sort column of partition idx's next
// batch, paired with the batch itself.
func (s *ColumnCursorStream) Next(ctx context.Context, idx int) (*TimeCursor, *RecordBatch, error) {
	batch, err := s.streams.Next(ctx, idx)
	if err != nil {
		return nil, nil, err
	}
	cursor, err := s.convertBatch(batch, idx)
	if err != nil {
		return nil, nil, err
	}
	return cursor, batch, nil
}

func (s *ColumnCursorStream) convertBatch(batch *RecordBatch, idx int) (*TimeCursor, error) {
	col := s.columnIdx[idx]
	if col >= len(batch.Columns) {
		return nil, &SchemaError{Reason: fmt.Sprintf("batch narrower than schema at column %q", s.column)}
	}
	values := make([]int64, len(batch.Columns[col]))
	for i, v := range batch.Columns[col] {
		if v.Null {
			return nil, &SchemaError{Reason: fmt.Sprintf("null value in sort column %q", s.column)}
		}
		values[i] = v.I
	}
	return &TimeCursor{values: values}, nil
}

var _ PartitionedStream = (*fusedStreams)(nil)

// chunkStream yields the decoded column groups of one chunk as record
// batches, one batch per group, in append (time) order.
type chunkStream struct {
	schema []tsm.ColumnDesc
	groups []*tsm.ColumnGroup
	next   int
}

// NewChunkStream opens a batch stream over a decoded chunk.
func NewChunkStream(c *tsm.Chunk) BatchStream {
	return &chunkStream{schema: c.Schema(), groups: c.ColumnGroups()}
}

func (s *chunkStream) Schema() []tsm.ColumnDesc { return s.schema }

func (s *chunkStream) Next(ctx context.Context) (*RecordBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.groups) {
		return nil, io.EOF
	}
	g := s.groups[s.next]
	s.next++

	cols := make([][]tsm.Value, len(g.Pages))
	for i, page := range g.Pages {
		pt := page.Meta.Column.Type.Physical
		if page.Meta.Column.Type.Kind == tsm.ColumnKindTime {
			pt = tsm.Time
		}
		values, err := page.DecodeColumn(pt)
		if err != nil {
			return nil, err
		}
		cols[i] = values
	}
	return &RecordBatch{Schema: s.schema, Columns: cols}, nil
}
