package tsm

import "io"

// FileWriter assembles a TSM file section by section, in the bit-exact
// order pages | chunks | chunk groups | chunk group meta | footer |
// trailing footer length (little-endian u64), tracking byte offsets as
// it goes via the embedded CRC/size-tracking writer.
type FileWriter struct {
	w *writeSizer
}

func NewFileWriter(w io.Writer) *FileWriter {
	return &FileWriter{w: newWriteSizer(w)}
}

// Offset returns the number of bytes written so far; callers use it to
// anchor the ColumnGroup/Chunk/ChunkGroup records they build next.
func (fw *FileWriter) Offset() uint64 { return fw.w.Size() }

// WriteColumnGroup writes every page of cg in order, each preceded by
// its own little-endian u64 envelope length (so a reader can split the
// group's page run back into individual pages without decoding each
// one), and assigns PagesOffset from the writer's current position.
func (fw *FileWriter) WriteColumnGroup(cg *ColumnGroup) error {
	cg.PagesOffset = fw.Offset()
	cg.Size = 0
	lenPrefix := make([]byte, 8)
	for _, p := range cg.Pages {
		putUint64(lenPrefix, uint64(len(p.Bytes)))
		if _, err := fw.w.Write(lenPrefix); err != nil {
			return &SerializeError{Reason: err.Error()}
		}
		if _, err := fw.w.Write(p.Bytes); err != nil {
			return &SerializeError{Reason: err.Error()}
		}
		cg.Size += 8 + uint64(len(p.Bytes))
	}
	return nil
}

// WriteChunk serializes a chunk record (series id, series key, time
// range, and each column group's location) and returns the
// ChunkWriteSpec locating it.
func (fw *FileWriter) WriteChunk(c *Chunk) (ChunkWriteSpec, error) {
	offset := fw.Offset()
	groups := c.ColumnGroups()

	size := 4 + 4 + len(c.SeriesKey) + 8 + 8 + 4
	for range groups {
		size += 4 + 8 + 8 + 8 + 8
	}
	buf := make([]byte, size)
	off := 0
	off += putUint32(buf[off:], c.SeriesID)
	off += putPrefixedBytes(buf[off:], c.SeriesKey)
	off += putUint64(buf[off:], uint64(c.TimeRange.Min))
	off += putUint64(buf[off:], uint64(c.TimeRange.Max))
	off += putUint32(buf[off:], uint32(len(groups)))
	for _, g := range groups {
		off += putUint32(buf[off:], g.ID)
		off += putUint64(buf[off:], g.PagesOffset)
		off += putUint64(buf[off:], g.Size)
		off += putUint64(buf[off:], uint64(g.TimeRange.Min))
		off += putUint64(buf[off:], uint64(g.TimeRange.Max))
	}

	if _, err := fw.w.Write(buf); err != nil {
		return ChunkWriteSpec{}, &SerializeError{Reason: err.Error()}
	}

	return ChunkWriteSpec{
		SeriesID:    c.SeriesID,
		ChunkOffset: offset,
		ChunkSize:   uint64(len(buf)),
		TimeRange:   c.TimeRange,
	}, nil
}

// WriteChunkGroup serializes one table's chunk location list and
// returns the ChunkGroupWriteSpec locating it.
func (fw *FileWriter) WriteChunkGroup(tableName string, specs []ChunkWriteSpec, schema []ColumnDesc) (*ChunkGroupWriteSpec, error) {
	offset := fw.Offset()

	size := 4 + len(specs)*(4+8+8+8+8)
	buf := make([]byte, size)
	off := 0
	off += putUint32(buf[off:], uint32(len(specs)))
	var tr TimeRange
	var count uint64
	for i, s := range specs {
		off += putUint32(buf[off:], s.SeriesID)
		off += putUint64(buf[off:], s.ChunkOffset)
		off += putUint64(buf[off:], s.ChunkSize)
		off += putUint64(buf[off:], uint64(s.TimeRange.Min))
		off += putUint64(buf[off:], uint64(s.TimeRange.Max))
		if i == 0 {
			tr = s.TimeRange
		} else {
			tr = tr.Merge(s.TimeRange)
		}
		count++
	}

	if _, err := fw.w.Write(buf); err != nil {
		return nil, &SerializeError{Reason: err.Error()}
	}

	return &ChunkGroupWriteSpec{
		Schema:    schema,
		Offset:    offset,
		Size:      uint64(len(buf)),
		TimeRange: tr,
		Count:     count,
	}, nil
}

// WriteChunkGroupMeta serializes the table→ChunkGroupWriteSpec map and
// returns its file location.
func (fw *FileWriter) WriteChunkGroupMeta(meta *ChunkGroupMeta) (offset, size uint64, err error) {
	offset = fw.Offset()

	total := 4
	type entry struct {
		name string
		spec *ChunkGroupWriteSpec
	}
	entries := make([]entry, 0, len(meta.Tables))
	for name, spec := range meta.Tables {
		entries = append(entries, entry{name, spec})
		total += 4 + len(name) + 8 + 8 + 8 + 8 + 8 + 4
		for _, col := range spec.Schema {
			total += 4 + 4 + len(col.Name) + 1 + 1 + 1
		}
	}

	buf := make([]byte, total)
	off := 0
	off += putUint32(buf[off:], uint32(len(entries)))
	for _, e := range entries {
		off += putPrefixedString(buf[off:], e.name)
		off += putUint64(buf[off:], e.spec.Offset)
		off += putUint64(buf[off:], e.spec.Size)
		off += putUint64(buf[off:], uint64(e.spec.TimeRange.Min))
		off += putUint64(buf[off:], uint64(e.spec.TimeRange.Max))
		off += putUint64(buf[off:], e.spec.Count)
		off += putUint32(buf[off:], uint32(len(e.spec.Schema)))
		for _, col := range e.spec.Schema {
			off += putUint32(buf[off:], col.ID)
			off += putPrefixedString(buf[off:], col.Name)
			buf[off] = byte(col.Type.Kind)
			off++
			buf[off] = byte(col.Type.Physical)
			off++
			buf[off] = byte(col.Type.Unit)
			off++
		}
	}

	if _, err := fw.w.Write(buf); err != nil {
		return 0, 0, &SerializeError{Reason: err.Error()}
	}
	return offset, uint64(len(buf)), nil
}

// WriteFooter stamps f.FileCRC with the checksum of every byte written
// so far, then writes the footer record followed by the trailing
// little-endian u64 footer length, the value a reader seeks back from
// the end of the file to locate the footer.
func (fw *FileWriter) WriteFooter(f *Footer) error {
	f.FileCRC = fw.w.Checksum()
	data, err := f.Serialize()
	if err != nil {
		return err
	}
	if _, err := fw.w.Write(data); err != nil {
		return &SerializeError{Reason: err.Error()}
	}
	trailer := make([]byte, 8)
	putUint64(trailer, uint64(len(data)))
	if _, err := fw.w.Write(trailer); err != nil {
		return &SerializeError{Reason: err.Error()}
	}
	return nil
}
