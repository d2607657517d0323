// Package engine is the local storage engine: it applies committed
// replica writes by encoding their rows into pages, column groups, and
// chunks inside a new TSM file under the configured storage root.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/lastincisor/tskv/coordinator"
	"github.com/lastincisor/tskv/internal/seriesbloom"
	"github.com/lastincisor/tskv/tsm"
)

// Engine writes one TSM file per applied replica write. Consensus
// entries are at-least-once; a replayed entry produces a second file
// with identical content under a new name. Nothing here merges or
// removes such duplicates.
type Engine struct {
	path      string
	bloomBits uint
	logger    log.Logger

	mu sync.Mutex // serializes file creation per engine
}

var _ coordinator.StorageEngine = (*Engine)(nil)

func New(path string, bloomBits uint, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Engine{path: path, bloomBits: bloomBits, logger: logger}
}

// SeriesID derives the stable series id from a series key.
func SeriesID(seriesKey []byte) uint32 {
	return uint32(xxhash.Sum64(seriesKey))
}

// WriteReplica applies one committed write: decode the payload, page
// its columns, and persist a single-chunk TSM file.
func (e *Engine) WriteReplica(ctx context.Context, req *coordinator.WriteReplicaRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := UnmarshalPointsPayload(req.Data)
	if err != nil {
		return err
	}
	if len(payload.Columns) == 0 {
		return fmt.Errorf("engine: write payload for table %q has no columns", payload.Table)
	}

	seriesID := SeriesID(payload.SeriesKey)
	chunk := tsm.NewChunk(payload.Table, seriesID, payload.SeriesKey)

	group := tsm.NewColumnGroup(chunk.NextGroupID(), 0)
	var offset uint64
	schema := make([]tsm.ColumnDesc, 0, len(payload.Columns))
	for _, col := range orderTimeFirst(payload.Columns) {
		page, err := tsm.BuildPage(col.Desc, col.Values)
		if err != nil {
			return err
		}
		if err := group.Push(page, offset); err != nil {
			return err
		}
		offset += uint64(len(page.Bytes))
		schema = append(schema, col.Desc)
	}

	begin := time.Now()
	name, err := e.writeFile(req, payload.Table, chunk, group, schema, seriesID)
	if err != nil {
		return err
	}

	level.Info(e.logger).Log(
		"msg", "tsm file written",
		"tenant", req.Tenant, "db", req.DBName, "replica", req.ReplicaID,
		"table", payload.Table, "series", seriesID,
		"file", name, "elapsed", time.Since(begin),
	)
	return nil
}

func (e *Engine) writeFile(req *coordinator.WriteReplicaRequest, table string, chunk *tsm.Chunk, group *tsm.ColumnGroup, schema []tsm.ColumnDesc, seriesID uint32) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	dir := filepath.Join(e.path, "data", req.Tenant, req.DBName, fmt.Sprintf("%d", req.ReplicaID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("engine: storage dir: %w", err)
	}
	name := filepath.Join(dir, uuid.NewString()+".tsm")

	f, err := os.Create(name)
	if err != nil {
		return "", fmt.Errorf("engine: create tsm file: %w", err)
	}
	defer f.Close()

	fw := tsm.NewFileWriter(f)
	if err := fw.WriteColumnGroup(group); err != nil {
		return "", err
	}
	if err := chunk.Push(group); err != nil {
		return "", err
	}

	chunkSpec, err := fw.WriteChunk(chunk)
	if err != nil {
		return "", err
	}
	groupSpec, err := fw.WriteChunkGroup(table, []tsm.ChunkWriteSpec{chunkSpec}, schema)
	if err != nil {
		return "", err
	}

	meta := tsm.NewChunkGroupMeta()
	meta.Tables[table] = groupSpec
	metaOffset, metaSize, err := fw.WriteChunkGroupMeta(meta)
	if err != nil {
		return "", err
	}

	bloom := seriesbloom.New(e.bloomBits, 0)
	bloom.Add(seriesID)

	footer := &tsm.Footer{
		Version:   tsm.FooterVersion,
		TimeRange: chunk.TimeRange,
		Table:     tsm.TableMeta{ChunkGroupOffset: metaOffset, ChunkGroupSize: metaSize},
		Series: tsm.SeriesMeta{
			Bloom:       bloom,
			ChunkOffset: chunkSpec.ChunkOffset,
			ChunkSize:   chunkSpec.ChunkSize,
		},
	}
	if err := fw.WriteFooter(footer); err != nil {
		return "", err
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("engine: sync tsm file: %w", err)
	}
	return name, nil
}

// orderTimeFirst moves the time column to the front so the group's time
// range is anchored before field pages arrive. Relative field order is
// preserved.
func orderTimeFirst(cols []ColumnValues) []ColumnValues {
	out := make([]ColumnValues, 0, len(cols))
	for _, c := range cols {
		if c.Desc.Type.Kind == tsm.ColumnKindTime {
			out = append(out, c)
		}
	}
	for _, c := range cols {
		if c.Desc.Type.Kind != tsm.ColumnKindTime {
			out = append(out, c)
		}
	}
	return out
}
