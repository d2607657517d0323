package tsm

import (
	"errors"
	"hash/crc32"

	"github.com/lastincisor/tskv/internal/bitset"
	"github.com/lastincisor/tskv/internal/codec"
)

// pageHeaderLen is the fixed prefix before the bitmap bytes: bitset_len
// (u32) + data_len (u64) + crc32 (u32), all big-endian.
const pageHeaderLen = 4 + 8 + 4

// Value is a single optional column value. Exactly one of the typed
// fields is meaningful, selected by the owning page's physical type;
// Null means the value is absent.
type Value struct {
	Null  bool
	I     int64
	U     uint64
	F     float64
	B     bool
	Bytes []byte
}

// PageMeta carries a page's decoded row count, column descriptor, and
// value statistics.
type PageMeta struct {
	NumValues  uint64
	Column     ColumnDesc
	Statistics Statistics
}

// Page is one column's encoded bytes within one column group: a null
// bitmap, a CRC32 envelope, and the codec-encoded dense value sequence.
type Page struct {
	Meta  PageMeta
	Bytes []byte // full envelope: header + bitmap + payload
}

// BuildPage encodes values (in column-descriptor order, Null entries
// mark absent values) into a page envelope for the given column.
func BuildPage(column ColumnDesc, values []Value) (*Page, error) {
	pt := column.Type.Physical
	if column.Type.Kind == ColumnKindTime {
		pt = Time
	}
	if !pt.Encodable() {
		return nil, ErrUnsupportedDataType
	}

	rowCount := uint(len(values))
	mask := bitset.New(rowCount)
	stats := Statistics{}

	dense, err := packDense(pt, values, mask, &stats)
	if err != nil {
		return nil, err
	}
	stats.NullCount = uint64(rowCount) - uint64(mask.PopCount())

	payload, err := encodeDense(pt, dense)
	if err != nil {
		return nil, err
	}

	bitmapBytes := mask.Marshal()
	out := make([]byte, pageHeaderLen+len(bitmapBytes)+len(payload))
	off := putUint32BE(out, uint32(len(bitmapBytes)))
	off += putUint64BE(out[off:], uint64(rowCount))

	crc := crc32.ChecksumIEEE(payload)
	off += putUint32BE(out[off:], crc)

	off += copy(out[off:], bitmapBytes)
	copy(out[off:], payload)

	return &Page{
		Meta: PageMeta{
			NumValues:  uint64(rowCount),
			Column:     column,
			Statistics: stats,
		},
		Bytes: out,
	}, nil
}

// header parses the fixed-layout prefix of the page envelope.
func (p *Page) header() (bitsetLen uint32, dataLen uint64, storedCRC uint32, err error) {
	bitsetLen, off, err := getUint32BE(p.Bytes, 0)
	if err != nil {
		return 0, 0, 0, &DataBufferShort{Reason: "truncated before bitset_len"}
	}
	dataLen, off, err = getUint64BE(p.Bytes, off)
	if err != nil {
		return 0, 0, 0, &DataBufferShort{Reason: "truncated before data_len"}
	}
	storedCRC, _, err = getUint32BE(p.Bytes, off)
	if err != nil {
		return 0, 0, 0, &DataBufferShort{Reason: "truncated before crc32"}
	}
	return bitsetLen, dataLen, storedCRC, nil
}

// Validate recomputes the CRC32 over the payload and compares it to the
// stored value. It returns the payload and, on mismatch, a
// *PageHashCheckFailed error carrying both checksums; the payload is
// still returned so the caller can inspect it for diagnostics.
func (p *Page) Validate() (payload []byte, err error) {
	bitsetLen, _, storedCRC, err := p.header()
	if err != nil {
		return nil, err
	}
	bodyStart := pageHeaderLen + int(bitsetLen)
	if bodyStart > len(p.Bytes) {
		return nil, &DataBufferShort{Reason: "bitmap longer than remaining bytes"}
	}
	payload = p.Bytes[bodyStart:]
	calculated := crc32.ChecksumIEEE(payload)
	if calculated != storedCRC {
		return payload, &PageHashCheckFailed{CRC: storedCRC, CRCCalculated: calculated}
	}
	return payload, nil
}

// DecodeColumn decodes the page back into one Value per row, validating
// the CRC first.
func (p *Page) DecodeColumn(pt PhysicalType) ([]Value, error) {
	if !pt.Encodable() {
		return nil, ErrUnsupportedDataType
	}
	payload, crcErr := p.Validate()
	if crcErr != nil {
		var chk *PageHashCheckFailed
		if !errors.As(crcErr, &chk) {
			return nil, crcErr
		}
		// A CRC mismatch still allows the caller to attempt a decode
		// for diagnostics; propagate the mismatch after decoding.
	}

	bitsetLen, dataLen, _, herr := p.header()
	if herr != nil {
		return nil, herr
	}
	mask, uerr := bitset.Unmarshal(uint(dataLen), p.Bytes[pageHeaderLen:pageHeaderLen+int(bitsetLen)])
	if uerr != nil {
		return nil, &DataBufferShort{Reason: uerr.Error()}
	}

	present := int(mask.PopCount())
	dense, derr := decodeDense(pt, payload, present)
	if derr != nil {
		return nil, derr
	}

	out := make([]Value, dataLen)
	di := 0
	for i := uint(0); i < uint(dataLen); i++ {
		if !mask.Get(i) {
			out[i] = Value{Null: true}
			continue
		}
		if di >= len(dense) {
			return nil, &DataBufferShort{Reason: "payload exhausted before bitmap consumed"}
		}
		out[i] = dense[di]
		di++
	}
	if crcErr != nil {
		return out, crcErr
	}
	return out, nil
}

// packDense strips Null entries, folding statistics over the present
// values, and returns the dense (non-null) value sequence.
func packDense(pt PhysicalType, values []Value, mask *bitset.Bitset, stats *Statistics) ([]Value, error) {
	dense := make([]Value, 0, len(values))
	for i, v := range values {
		if v.Null {
			continue
		}
		mask.Set(uint(i))
		dense = append(dense, v)
		accumulateStats(pt, v, stats)
	}
	return dense, nil
}

func accumulateStats(pt PhysicalType, v Value, stats *Statistics) {
	if !stats.HasValues {
		stats.HasValues = true
		switch pt {
		case Integer, Time:
			stats.IntMin, stats.IntMax = v.I, v.I
		case Unsigned:
			stats.UintMin, stats.UintMax = v.U, v.U
		case Float:
			stats.FloatMin, stats.FloatMax = v.F, v.F
		case String:
			stats.BytesMin, stats.BytesMax = v.Bytes, v.Bytes
		}
	} else {
		switch pt {
		case Integer, Time:
			if v.I < stats.IntMin {
				stats.IntMin = v.I
			}
			if v.I > stats.IntMax {
				stats.IntMax = v.I
			}
		case Unsigned:
			if v.U < stats.UintMin {
				stats.UintMin = v.U
			}
			if v.U > stats.UintMax {
				stats.UintMax = v.U
			}
		case Float:
			if v.F < stats.FloatMin {
				stats.FloatMin = v.F
			}
			if v.F > stats.FloatMax {
				stats.FloatMax = v.F
			}
		case String:
			if string(v.Bytes) < string(stats.BytesMin) {
				stats.BytesMin = v.Bytes
			}
			if string(v.Bytes) > string(stats.BytesMax) {
				stats.BytesMax = v.Bytes
			}
		}
	}
	if pt == Boolean && v.B {
		stats.BoolTrueCount++
	}
}

func encodeDense(pt PhysicalType, values []Value) ([]byte, error) {
	switch pt {
	case Integer, Time:
		raw := make([]int64, len(values))
		for i, v := range values {
			raw[i] = v.I
		}
		return codec.EncodeInt64(raw)
	case Unsigned:
		raw := make([]uint64, len(values))
		for i, v := range values {
			raw[i] = v.U
		}
		return codec.EncodeUint64(raw)
	case Float:
		raw := make([]float64, len(values))
		for i, v := range values {
			raw[i] = v.F
		}
		return codec.EncodeFloat64(raw)
	case Boolean:
		raw := make([]bool, len(values))
		for i, v := range values {
			raw[i] = v.B
		}
		return codec.EncodeBool(raw)
	case String:
		raw := make([][]byte, len(values))
		for i, v := range values {
			raw[i] = v.Bytes
		}
		return codec.EncodeBytes(raw)
	default:
		return nil, ErrUnsupportedDataType
	}
}

func decodeDense(pt PhysicalType, payload []byte, n int) ([]Value, error) {
	switch pt {
	case Integer, Time:
		raw, err := codec.DecodeInt64(payload)
		if err != nil {
			return nil, err
		}
		out := make([]Value, len(raw))
		for i, v := range raw {
			out[i] = Value{I: v}
		}
		return out, nil
	case Unsigned:
		raw, err := codec.DecodeUint64(payload)
		if err != nil {
			return nil, err
		}
		out := make([]Value, len(raw))
		for i, v := range raw {
			out[i] = Value{U: v}
		}
		return out, nil
	case Float:
		raw, err := codec.DecodeFloat64(payload)
		if err != nil {
			return nil, err
		}
		out := make([]Value, len(raw))
		for i, v := range raw {
			out[i] = Value{F: v}
		}
		return out, nil
	case Boolean:
		raw, err := codec.DecodeBool(payload, n)
		if err != nil {
			return nil, err
		}
		out := make([]Value, len(raw))
		for i, v := range raw {
			out[i] = Value{B: v}
		}
		return out, nil
	case String:
		raw, err := codec.DecodeBytes(payload, n)
		if err != nil {
			return nil, err
		}
		out := make([]Value, len(raw))
		for i, v := range raw {
			out[i] = Value{Bytes: v}
		}
		return out, nil
	default:
		return nil, ErrUnsupportedDataType
	}
}
