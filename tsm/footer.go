package tsm

import (
	"github.com/lastincisor/tskv/internal/seriesbloom"
)

const FooterVersion uint8 = 1

// TableMeta locates a file's ChunkGroupMeta record.
type TableMeta struct {
	ChunkGroupOffset uint64
	ChunkGroupSize   uint64
}

// SeriesMeta locates a file's chunk records and carries the series
// bloom filter used to short-circuit lookups for series absent from
// this file.
type SeriesMeta struct {
	Bloom       *seriesbloom.Filter
	ChunkOffset uint64
	ChunkSize   uint64
}

// MaybeSeriesExist reports whether series id may be present in this
// file. False means definitely absent; true may be a false positive.
func (s *SeriesMeta) MaybeSeriesExist(id uint32) bool {
	if s.Bloom == nil {
		return true
	}
	return s.Bloom.MayContain(id)
}

// Footer is the fixed-layout-prefix-plus-bloom-filter file trailer:
// version, overall time range, the table/series location metadata, and
// the CRC32 of every file byte preceding the footer record.
type Footer struct {
	Version   uint8
	TimeRange TimeRange
	Table     TableMeta
	Series    SeriesMeta
	FileCRC   uint32
}

// Serialize produces the footer's stable binary encoding: fixed-width
// fields in declaration order, followed by the variable-length bloom
// filter bytes. The encoding is little-endian throughout, matching the
// rest of this package's record framing (pages remain the sole
// big-endian exception).
func (f *Footer) Serialize() ([]byte, error) {
	var bloomBytes []byte
	var err error
	if f.Series.Bloom != nil {
		bloomBytes, err = f.Series.Bloom.MarshalBinary()
		if err != nil {
			return nil, &SerializeError{Reason: err.Error()}
		}
	}

	size := 1 + 8 + 8 + 8 + 8 + 8 + 8 + 4 + 4 + len(bloomBytes)
	out := make([]byte, size)
	off := 0
	off += putByteAt(out, off, f.Version)
	off += putUint64(out[off:], uint64(f.TimeRange.Min))
	off += putUint64(out[off:], uint64(f.TimeRange.Max))
	off += putUint64(out[off:], f.Table.ChunkGroupOffset)
	off += putUint64(out[off:], f.Table.ChunkGroupSize)
	off += putUint64(out[off:], f.Series.ChunkOffset)
	off += putUint64(out[off:], f.Series.ChunkSize)
	off += putUint32(out[off:], f.FileCRC)
	off += putUint32(out[off:], uint32(len(bloomBytes)))
	copy(out[off:], bloomBytes)

	return out, nil
}

// DeserializeFooter parses the bytes produced by Footer.Serialize.
func DeserializeFooter(data []byte) (*Footer, error) {
	if len(data) < 1+8*6+4+4 {
		return nil, &DeserializeError{Reason: "footer shorter than fixed prefix"}
	}
	f := &Footer{}
	off := 0
	f.Version = data[off]
	off++

	minTS, off2, err := getUint64(data, off)
	if err != nil {
		return nil, &DeserializeError{Reason: "truncated time_range.min"}
	}
	off = off2
	maxTS, off2, err := getUint64(data, off)
	if err != nil {
		return nil, &DeserializeError{Reason: "truncated time_range.max"}
	}
	off = off2
	f.TimeRange = TimeRange{Min: int64(minTS), Max: int64(maxTS)}

	cgOffset, off2, err := getUint64(data, off)
	if err != nil {
		return nil, &DeserializeError{Reason: "truncated chunk_group_offset"}
	}
	off = off2
	cgSize, off2, err := getUint64(data, off)
	if err != nil {
		return nil, &DeserializeError{Reason: "truncated chunk_group_size"}
	}
	off = off2
	f.Table = TableMeta{ChunkGroupOffset: cgOffset, ChunkGroupSize: cgSize}

	chunkOffset, off2, err := getUint64(data, off)
	if err != nil {
		return nil, &DeserializeError{Reason: "truncated chunk_offset"}
	}
	off = off2
	chunkSize, off2, err := getUint64(data, off)
	if err != nil {
		return nil, &DeserializeError{Reason: "truncated chunk_size"}
	}
	off = off2

	fileCRC, off2, err := getUint32(data, off)
	if err != nil {
		return nil, &DeserializeError{Reason: "truncated file_crc"}
	}
	off = off2
	f.FileCRC = fileCRC

	bloomLen, off2, err := getUint32(data, off)
	if err != nil {
		return nil, &DeserializeError{Reason: "truncated bloom_len"}
	}
	off = off2
	if off+int(bloomLen) > len(data) {
		return nil, &DeserializeError{Reason: "bloom filter bytes truncated"}
	}

	var bloom *seriesbloom.Filter
	if bloomLen > 0 {
		bloom, err = seriesbloom.UnmarshalBinary(data[off : off+int(bloomLen)])
		if err != nil {
			return nil, &DeserializeError{Reason: "bad bloom filter encoding: " + err.Error()}
		}
	}

	f.Series = SeriesMeta{Bloom: bloom, ChunkOffset: chunkOffset, ChunkSize: chunkSize}
	return f, nil
}

func putByteAt(buf []byte, off int, b byte) int {
	buf[off] = b
	return 1
}
