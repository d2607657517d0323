package engine

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/lastincisor/tskv/tsm"
)

// ColumnValues is one column of a write payload: its descriptor and one
// value per row (Null entries mark absent values).
type ColumnValues struct {
	Desc   tsm.ColumnDesc
	Values []tsm.Value
}

// PointsPayload is the engine's write payload: one series' rows for one
// table. Payloads are self-contained so a replayed consensus entry
// rebuilds exactly the same pages; the at-least-once delivery contract
// makes duplicate files, not corrupted ones.
type PointsPayload struct {
	Table     string
	SeriesKey []byte
	Columns   []ColumnValues
}

// Marshal encodes the payload with the same little-endian framing the
// TSM record sections use.
func (p *PointsPayload) Marshal() ([]byte, error) {
	size := 4 + len(p.Table) + 4 + len(p.SeriesKey) + 4
	for _, col := range p.Columns {
		size += 4 + 4 + len(col.Desc.Name) + 3 + 4
		for _, v := range col.Values {
			size += 1 + valueSize(col.Desc, v)
		}
	}

	out := make([]byte, 0, size)
	out = appendPrefixed(out, []byte(p.Table))
	out = appendPrefixed(out, p.SeriesKey)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(p.Columns)))
	for _, col := range p.Columns {
		out = binary.LittleEndian.AppendUint32(out, col.Desc.ID)
		out = appendPrefixed(out, []byte(col.Desc.Name))
		out = append(out, byte(col.Desc.Type.Kind), byte(col.Desc.Type.Physical), byte(col.Desc.Type.Unit))
		out = binary.LittleEndian.AppendUint32(out, uint32(len(col.Values)))
		for _, v := range col.Values {
			if v.Null {
				out = append(out, 0)
				continue
			}
			out = append(out, 1)
			switch physicalOf(col.Desc) {
			case tsm.Integer, tsm.Time:
				out = binary.LittleEndian.AppendUint64(out, uint64(v.I))
			case tsm.Unsigned:
				out = binary.LittleEndian.AppendUint64(out, v.U)
			case tsm.Float:
				out = binary.LittleEndian.AppendUint64(out, math.Float64bits(v.F))
			case tsm.Boolean:
				if v.B {
					out = append(out, 1)
				} else {
					out = append(out, 0)
				}
			case tsm.String:
				out = appendPrefixed(out, v.Bytes)
			default:
				return nil, fmt.Errorf("points payload: column %q has unencodable type %s", col.Desc.Name, physicalOf(col.Desc))
			}
		}
	}
	return out, nil
}

// UnmarshalPointsPayload decodes bytes produced by Marshal.
func UnmarshalPointsPayload(data []byte) (*PointsPayload, error) {
	d := &payloadDecoder{buf: data}
	p := &PointsPayload{}
	p.Table = string(d.prefixed("table name"))
	p.SeriesKey = append([]byte(nil), d.prefixed("series key")...)

	colCount := d.uint32("column count")
	if d.err != nil {
		return nil, d.err
	}
	p.Columns = make([]ColumnValues, 0, colCount)
	for c := uint32(0); c < colCount; c++ {
		col := ColumnValues{}
		col.Desc.ID = d.uint32("column id")
		col.Desc.Name = string(d.prefixed("column name"))
		kindByte := d.byte("column kind")
		physByte := d.byte("column physical type")
		unitByte := d.byte("column time unit")
		col.Desc.Type = tsm.ColumnType{
			Kind:     tsm.ColumnKind(kindByte),
			Physical: tsm.PhysicalType(physByte),
			Unit:     tsm.TimeUnit(unitByte),
		}

		rowCount := d.uint32("row count")
		if d.err != nil {
			return nil, d.err
		}
		col.Values = make([]tsm.Value, rowCount)
		for r := uint32(0); r < rowCount; r++ {
			if d.byte("presence flag") == 0 {
				col.Values[r] = tsm.Value{Null: true}
				continue
			}
			switch physicalOf(col.Desc) {
			case tsm.Integer, tsm.Time:
				col.Values[r] = tsm.Value{I: int64(d.uint64("integer value"))}
			case tsm.Unsigned:
				col.Values[r] = tsm.Value{U: d.uint64("unsigned value")}
			case tsm.Float:
				col.Values[r] = tsm.Value{F: math.Float64frombits(d.uint64("float value"))}
			case tsm.Boolean:
				col.Values[r] = tsm.Value{B: d.byte("boolean value") != 0}
			case tsm.String:
				col.Values[r] = tsm.Value{Bytes: append([]byte(nil), d.prefixed("string value")...)}
			default:
				return nil, fmt.Errorf("points payload: column %q has undecodable type %s", col.Desc.Name, physicalOf(col.Desc))
			}
			if d.err != nil {
				return nil, d.err
			}
		}
		p.Columns = append(p.Columns, col)
	}
	if d.err != nil {
		return nil, d.err
	}
	return p, nil
}

// physicalOf resolves a column descriptor to the physical type its
// values are paged as.
func physicalOf(desc tsm.ColumnDesc) tsm.PhysicalType {
	if desc.Type.Kind == tsm.ColumnKindTime {
		return tsm.Time
	}
	return desc.Type.Physical
}

func valueSize(desc tsm.ColumnDesc, v tsm.Value) int {
	if v.Null {
		return 0
	}
	switch physicalOf(desc) {
	case tsm.Boolean:
		return 1
	case tsm.String:
		return 4 + len(v.Bytes)
	default:
		return 8
	}
}

func appendPrefixed(out, b []byte) []byte {
	out = binary.LittleEndian.AppendUint32(out, uint32(len(b)))
	return append(out, b...)
}

// payloadDecoder reads the payload sequentially, latching the first
// error so callers can check once per structural unit.
type payloadDecoder struct {
	buf []byte
	off int
	err error
}

func (d *payloadDecoder) fail(what string) {
	if d.err == nil {
		d.err = fmt.Errorf("points payload: truncated before %s", what)
	}
}

func (d *payloadDecoder) byte(what string) byte {
	if d.err != nil {
		return 0
	}
	if d.off+1 > len(d.buf) {
		d.fail(what)
		return 0
	}
	b := d.buf[d.off]
	d.off++
	return b
}

func (d *payloadDecoder) uint32(what string) uint32 {
	if d.err != nil {
		return 0
	}
	if d.off+4 > len(d.buf) {
		d.fail(what)
		return 0
	}
	v := binary.LittleEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v
}

func (d *payloadDecoder) uint64(what string) uint64 {
	if d.err != nil {
		return 0
	}
	if d.off+8 > len(d.buf) {
		d.fail(what)
		return 0
	}
	v := binary.LittleEndian.Uint64(d.buf[d.off:])
	d.off += 8
	return v
}

func (d *payloadDecoder) prefixed(what string) []byte {
	n := d.uint32(what)
	if d.err != nil {
		return nil
	}
	if d.off+int(n) > len(d.buf) {
		d.fail(what)
		return nil
	}
	b := d.buf[d.off : d.off+int(n)]
	d.off += int(n)
	return b
}
