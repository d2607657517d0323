package tsm

import (
	"errors"
	"hash/crc32"
	"io"
)

// FileReader opens a finalized TSM file and locates its footer and
// chunk-group metadata, reading the trailing length word first to find
// the footer from the end of the file.
type FileReader struct {
	ra      io.ReaderAt
	size    int64
	dataLen int64 // bytes preceding the footer record
	Footer  *Footer
	Meta    *ChunkGroupMeta
}

// OpenFileReader reads the trailing footer-length word, then the
// footer itself, then the chunk-group meta record it points to.
func OpenFileReader(ra io.ReaderAt, size int64) (*FileReader, error) {
	if size < 8 {
		return nil, ErrFooterNotFound
	}

	trailer := make([]byte, 8)
	if _, err := ra.ReadAt(trailer, size-8); err != nil {
		return nil, ErrFooterNotFound
	}
	footerLen, _, err := getUint64(trailer, 0)
	if err != nil || int64(footerLen)+8 > size {
		return nil, ErrFooterNotFound
	}

	footerBytes := make([]byte, footerLen)
	if _, err := ra.ReadAt(footerBytes, size-8-int64(footerLen)); err != nil {
		return nil, ErrFooterNotFound
	}
	footer, err := DeserializeFooter(footerBytes)
	if err != nil {
		return nil, err
	}

	metaBytes := make([]byte, footer.Table.ChunkGroupSize)
	if _, err := ra.ReadAt(metaBytes, int64(footer.Table.ChunkGroupOffset)); err != nil {
		return nil, &DeserializeError{Reason: "chunk group meta read: " + err.Error()}
	}
	meta, err := deserializeChunkGroupMeta(metaBytes)
	if err != nil {
		return nil, err
	}

	return &FileReader{
		ra:      ra,
		size:    size,
		dataLen: size - 8 - int64(footerLen),
		Footer:  footer,
		Meta:    meta,
	}, nil
}

// VerifyChecksum recomputes the CRC32 over every byte preceding the
// footer record and compares it to the footer's recorded file CRC,
// returning *FileHashCheckFailed on mismatch. Callers run it when a
// file's integrity is in question, e.g. after a download.
func (fr *FileReader) VerifyChecksum() error {
	crc := crc32.NewIEEE()
	buf := make([]byte, 64*1024)
	var pos int64
	for pos < fr.dataLen {
		n := int64(len(buf))
		if fr.dataLen-pos < n {
			n = fr.dataLen - pos
		}
		if _, err := fr.ra.ReadAt(buf[:n], pos); err != nil {
			return &DeserializeError{Reason: "checksum read: " + err.Error()}
		}
		_, _ = crc.Write(buf[:n])
		pos += n
	}
	if calculated := crc.Sum32(); calculated != fr.Footer.FileCRC {
		return &FileHashCheckFailed{CRC: fr.Footer.FileCRC, CRCCalculated: calculated}
	}
	return nil
}

func deserializeChunkGroupMeta(data []byte) (*ChunkGroupMeta, error) {
	count, off, err := getUint32(data, 0)
	if err != nil {
		return nil, &DeserializeError{Reason: "truncated chunk group meta count"}
	}
	meta := NewChunkGroupMeta()
	for i := uint32(0); i < count; i++ {
		nameLen, o, err := getUint32(data, off)
		if err != nil {
			return nil, &DeserializeError{Reason: "truncated table name length"}
		}
		off = o
		if off+int(nameLen) > len(data) {
			return nil, &DeserializeError{Reason: "truncated table name"}
		}
		name := string(data[off : off+int(nameLen)])
		off += int(nameLen)

		spec := &ChunkGroupWriteSpec{}
		var offset, size, minTS, maxTS, count64 uint64
		offset, off, err = getUint64(data, off)
		if err != nil {
			return nil, &DeserializeError{Reason: "truncated offset"}
		}
		size, off, err = getUint64(data, off)
		if err != nil {
			return nil, &DeserializeError{Reason: "truncated size"}
		}
		minTS, off, err = getUint64(data, off)
		if err != nil {
			return nil, &DeserializeError{Reason: "truncated time_range.min"}
		}
		maxTS, off, err = getUint64(data, off)
		if err != nil {
			return nil, &DeserializeError{Reason: "truncated time_range.max"}
		}
		count64, off, err = getUint64(data, off)
		if err != nil {
			return nil, &DeserializeError{Reason: "truncated count"}
		}
		spec.Offset, spec.Size, spec.Count = offset, size, count64
		spec.TimeRange = TimeRange{Min: int64(minTS), Max: int64(maxTS)}

		colCount, o, err := getUint32(data, off)
		if err != nil {
			return nil, &DeserializeError{Reason: "truncated column count"}
		}
		off = o
		spec.Schema = make([]ColumnDesc, colCount)
		for c := uint32(0); c < colCount; c++ {
			id, o, err := getUint32(data, off)
			if err != nil {
				return nil, &DeserializeError{Reason: "truncated column id"}
			}
			off = o
			nl, o, err := getUint32(data, off)
			if err != nil {
				return nil, &DeserializeError{Reason: "truncated column name length"}
			}
			off = o
			if off+int(nl)+3 > len(data) {
				return nil, &DeserializeError{Reason: "truncated column descriptor"}
			}
			colName := string(data[off : off+int(nl)])
			off += int(nl)
			kind := ColumnKind(data[off])
			off++
			physical := PhysicalType(data[off])
			off++
			unit := TimeUnit(data[off])
			off++
			spec.Schema[c] = ColumnDesc{
				ID:   id,
				Name: colName,
				Type: ColumnType{Kind: kind, Physical: physical, Unit: unit},
			}
		}

		meta.Tables[name] = spec
	}
	return meta, nil
}

// ChunkGroup reads and parses the raw chunk-location list for a table.
func (fr *FileReader) ChunkGroup(tableName string) ([]ChunkWriteSpec, error) {
	spec, ok := fr.Meta.Tables[tableName]
	if !ok {
		return nil, errors.New("tsm: unknown table: " + tableName)
	}
	data := make([]byte, spec.Size)
	if _, err := fr.ra.ReadAt(data, int64(spec.Offset)); err != nil {
		return nil, &DeserializeError{Reason: "chunk group read: " + err.Error()}
	}

	count, off, err := getUint32(data, 0)
	if err != nil {
		return nil, &DeserializeError{Reason: "truncated chunk group count"}
	}
	out := make([]ChunkWriteSpec, count)
	for i := uint32(0); i < count; i++ {
		var seriesID uint32
		var chunkOffset, chunkSize, minTS, maxTS uint64
		seriesID, off, err = getUint32(data, off)
		if err != nil {
			return nil, &DeserializeError{Reason: "truncated series id"}
		}
		chunkOffset, off, err = getUint64(data, off)
		if err != nil {
			return nil, &DeserializeError{Reason: "truncated chunk offset"}
		}
		chunkSize, off, err = getUint64(data, off)
		if err != nil {
			return nil, &DeserializeError{Reason: "truncated chunk size"}
		}
		minTS, off, err = getUint64(data, off)
		if err != nil {
			return nil, &DeserializeError{Reason: "truncated chunk time_range.min"}
		}
		maxTS, off, err = getUint64(data, off)
		if err != nil {
			return nil, &DeserializeError{Reason: "truncated chunk time_range.max"}
		}
		out[i] = ChunkWriteSpec{
			SeriesID:    seriesID,
			ChunkOffset: chunkOffset,
			ChunkSize:   chunkSize,
			TimeRange:   TimeRange{Min: int64(minTS), Max: int64(maxTS)},
		}
	}
	return out, nil
}

// Chunk reads and parses a single chunk record located by spec,
// splitting each column group's page run into pages and labelling them
// with schema's descriptors (in the same order the writer emitted
// them). Page values are not decoded here; Page.DecodeColumn does that.
func (fr *FileReader) Chunk(spec ChunkWriteSpec, schema []ColumnDesc) (*Chunk, error) {
	data := make([]byte, spec.ChunkSize)
	if _, err := fr.ra.ReadAt(data, int64(spec.ChunkOffset)); err != nil {
		return nil, &DeserializeError{Reason: "chunk read: " + err.Error()}
	}

	seriesID, off, err := getUint32(data, 0)
	if err != nil {
		return nil, &DeserializeError{Reason: "truncated series id"}
	}
	keyLen, off, err := getUint32(data, off)
	if err != nil {
		return nil, &DeserializeError{Reason: "truncated series key length"}
	}
	if off+int(keyLen) > len(data) {
		return nil, &DeserializeError{Reason: "truncated series key"}
	}
	seriesKey := append([]byte(nil), data[off:off+int(keyLen)]...)
	off += int(keyLen)

	minTS, off, err := getUint64(data, off)
	if err != nil {
		return nil, &DeserializeError{Reason: "truncated chunk time_range.min"}
	}
	maxTS, off, err := getUint64(data, off)
	if err != nil {
		return nil, &DeserializeError{Reason: "truncated chunk time_range.max"}
	}
	groupCount, off, err := getUint32(data, off)
	if err != nil {
		return nil, &DeserializeError{Reason: "truncated group count"}
	}

	chunk := NewChunk("", seriesID, seriesKey)
	chunk.TimeRange = TimeRange{Min: int64(minTS), Max: int64(maxTS)}

	for i := uint32(0); i < groupCount; i++ {
		var id uint32
		var pagesOffset, pagesSize, gMin, gMax uint64
		id, off, err = getUint32(data, off)
		if err != nil {
			return nil, &DeserializeError{Reason: "truncated column group id"}
		}
		pagesOffset, off, err = getUint64(data, off)
		if err != nil {
			return nil, &DeserializeError{Reason: "truncated pages offset"}
		}
		pagesSize, off, err = getUint64(data, off)
		if err != nil {
			return nil, &DeserializeError{Reason: "truncated pages size"}
		}
		gMin, off, err = getUint64(data, off)
		if err != nil {
			return nil, &DeserializeError{Reason: "truncated group time_range.min"}
		}
		gMax, off, err = getUint64(data, off)
		if err != nil {
			return nil, &DeserializeError{Reason: "truncated group time_range.max"}
		}

		cg, err := fr.readColumnGroup(id, pagesOffset, pagesSize, schema)
		if err != nil {
			return nil, err
		}
		cg.TimeRange = TimeRange{Min: int64(gMin), Max: int64(gMax)}
		if err := chunk.Push(cg); err != nil {
			return nil, err
		}
	}

	if chunk.nextGroupID < groupCount {
		chunk.nextGroupID = groupCount
	}
	return chunk, nil
}

func (fr *FileReader) readColumnGroup(id uint32, offset, size uint64, schema []ColumnDesc) (*ColumnGroup, error) {
	buf := make([]byte, size)
	if _, err := fr.ra.ReadAt(buf, int64(offset)); err != nil {
		return nil, &DeserializeError{Reason: "column group pages read: " + err.Error()}
	}

	cg := NewColumnGroup(id, offset)
	pos := uint64(0)
	// Push tracks contiguity over the page envelopes themselves; the
	// 8-byte length prefixes are run framing, not page bytes, so the
	// offsets fed back here skip them.
	logical := offset
	for range schema {
		if pos+8 > uint64(len(buf)) {
			return nil, &DeserializeError{Reason: "column group pages shorter than schema implies"}
		}
		pageLen, _, err := getUint64(buf, int(pos))
		if err != nil {
			return nil, &DeserializeError{Reason: "truncated page length prefix"}
		}
		pos += 8
		if pos+pageLen > uint64(len(buf)) {
			return nil, &DeserializeError{Reason: "page envelope shorter than declared length"}
		}
		page := &Page{Bytes: buf[pos : pos+pageLen]}
		if err := cg.Push(page, logical); err != nil {
			return nil, err
		}
		logical += pageLen
		pos += pageLen
	}
	// Schema order determines which column each parsed page belongs to;
	// fill in the descriptors cg.Push's Time-detection skipped deriving.
	for i, col := range schema {
		cg.Pages[i].Meta.Column = col
	}
	return cg, nil
}
