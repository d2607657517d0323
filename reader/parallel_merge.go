package reader

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/lastincisor/tskv/tsm"
)

// mergeBuffer bounds how many batches the children may run ahead of the
// consumer.
const mergeBuffer = 16

// ParallelMergeAdapter drives N child readers concurrently and merges
// their outputs into one stream, applying an optional global row limit
// that decrements monotonically across all outputs.
type ParallelMergeAdapter struct {
	schema []tsm.ColumnDesc
	inputs []BatchReader
	limit  int // 0 means unlimited
}

var _ BatchReader = (*ParallelMergeAdapter)(nil)

func NewParallelMergeAdapter(schema []tsm.ColumnDesc, inputs []BatchReader, limit int) (*ParallelMergeAdapter, error) {
	if len(inputs) == 0 {
		return nil, &CommonError{Reason: "no inputs provided for ParallelMergeAdapter"}
	}
	return &ParallelMergeAdapter{schema: schema, inputs: inputs, limit: limit}, nil
}

// Process opens every child stream and starts one pump goroutine per
// child. The merged stream ends when all children drain, when a child
// errors (the error surfaces exactly once), or when the row limit is
// reached.
func (a *ParallelMergeAdapter) Process() (BatchStream, error) {
	streams := make([]BatchStream, len(a.inputs))
	for i, input := range a.inputs {
		s, err := input.Process()
		if err != nil {
			return nil, err
		}
		streams[i] = s
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan *RecordBatch, mergeBuffer)

	for _, s := range streams {
		s := s
		g.Go(func() error {
			for {
				batch, err := s.Next(gctx)
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return err
				}
				select {
				case batches <- batch:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		})
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Wait()
		close(batches)
	}()

	var remain *int
	if a.limit > 0 {
		limit := a.limit
		remain = &limit
	}
	return &parallelMergeStream{
		schema:  a.schema,
		batches: batches,
		errCh:   errCh,
		cancel:  cancel,
		remain:  remain,
	}, nil
}

func (a *ParallelMergeAdapter) Children() []BatchReader { return a.inputs }

func (a *ParallelMergeAdapter) String() string {
	return fmt.Sprintf("ParallelMergeAdapter: limit=%d", a.limit)
}

type parallelMergeStream struct {
	schema  []tsm.ColumnDesc
	batches chan *RecordBatch
	errCh   chan error
	cancel  context.CancelFunc
	remain  *int
	ended   bool
}

func (s *parallelMergeStream) Schema() []tsm.ColumnDesc { return s.schema }

func (s *parallelMergeStream) Next(ctx context.Context) (*RecordBatch, error) {
	if s.ended {
		return nil, io.EOF
	}
	select {
	case <-ctx.Done():
		s.end()
		return nil, ctx.Err()
	case batch, ok := <-s.batches:
		if !ok {
			s.ended = true
			s.cancel()
			if err := <-s.errCh; err != nil && err != context.Canceled {
				return nil, err
			}
			return nil, io.EOF
		}
		limited, more := limitRecordBatch(s.remain, batch)
		if !more {
			s.end()
			return nil, io.EOF
		}
		if s.remain != nil && *s.remain == 0 {
			// This batch consumed the rest of the limit; stop the
			// children now rather than on the next poll.
			s.end()
		}
		return limited, nil
	}
}

// end marks the stream finished, cancels the child pumps, and drops any
// batches still in flight. Subsequent Next calls return io.EOF without
// touching the channel again, so the drain goroutine owns it.
func (s *parallelMergeStream) end() {
	s.ended = true
	s.cancel()
	go func() {
		for range s.batches {
		}
		<-s.errCh
	}()
}
