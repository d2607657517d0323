package tsm

// ChunkWriteSpec locates one series' chunk bytes within a table's chunk
// group record.
type ChunkWriteSpec struct {
	SeriesID    uint32
	ChunkOffset uint64
	ChunkSize   uint64
	TimeRange   TimeRange
}

// ChunkGroup is the ordered list of chunk locations for one table
// within one file.
type ChunkGroup struct {
	TableName string
	Chunks    []ChunkWriteSpec
}

// Push appends a chunk's location. The group keeps no time range or
// other aggregate of its own.
func (cg *ChunkGroup) Push(spec ChunkWriteSpec) {
	cg.Chunks = append(cg.Chunks, spec)
}

// ChunkGroupWriteSpec locates one table's ChunkGroup record within the
// file, plus the table's schema, the union of its chunks' time ranges,
// and the number of chunks it lists.
type ChunkGroupWriteSpec struct {
	Schema    []ColumnDesc
	Offset    uint64
	Size      uint64
	TimeRange TimeRange
	Count     uint64
}

// ChunkGroupMeta maps every table present in a file to its
// ChunkGroupWriteSpec.
type ChunkGroupMeta struct {
	Tables map[string]*ChunkGroupWriteSpec
}

func NewChunkGroupMeta() *ChunkGroupMeta {
	return &ChunkGroupMeta{Tables: make(map[string]*ChunkGroupWriteSpec)}
}
