package tsm

import "fmt"

// TimeUnit is the precision of a Time physical-type column.
type TimeUnit uint8

const (
	TimeUnitSecond TimeUnit = iota
	TimeUnitMillisecond
	TimeUnitMicrosecond
	TimeUnitNanosecond
)

// PhysicalType is the storage type of a field column. Tag columns live
// in the series key and are never paged; Unknown is always rejected.
type PhysicalType uint8

const (
	Unknown PhysicalType = iota
	Integer
	Unsigned
	Float
	Boolean
	String
	Time
	Tag
)

func (t PhysicalType) String() string {
	switch t {
	case Integer:
		return "Integer"
	case Unsigned:
		return "Unsigned"
	case Float:
		return "Float"
	case Boolean:
		return "Boolean"
	case String:
		return "String"
	case Time:
		return "Time"
	case Tag:
		return "Tag"
	default:
		return "Unknown"
	}
}

// Encodable reports whether values of this type may be paged. Tag and
// Unknown are not: tags live in the series key, and Unknown is always
// rejected.
func (t PhysicalType) Encodable() bool {
	switch t {
	case Integer, Unsigned, Float, Boolean, String, Time:
		return true
	default:
		return false
	}
}

// ColumnType distinguishes a column descriptor's role: the series' tag
// set, the mandatory time column, or a typed field column.
type ColumnType struct {
	Kind     ColumnKind
	Physical PhysicalType // valid when Kind == ColumnKindField
	Unit     TimeUnit     // valid when Kind == ColumnKindTime
}

type ColumnKind uint8

const (
	ColumnKindTag ColumnKind = iota
	ColumnKindTime
	ColumnKindField
)

// ColumnDesc describes one column of a series: its stable id, name,
// type, and default value (used when a series predates the column).
type ColumnDesc struct {
	ID      uint32
	Name    string
	Type    ColumnType
	Default []byte
}

// TimeRange is an inclusive span of timestamps in the unit of the
// owning column group's time column.
type TimeRange struct {
	Min int64
	Max int64
}

// Merge returns the commutative span union of r and other.
func (r TimeRange) Merge(other TimeRange) TimeRange {
	out := r
	if other.Min < out.Min {
		out.Min = other.Min
	}
	if other.Max > out.Max {
		out.Max = other.Max
	}
	return out
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%d, %d]", r.Min, r.Max)
}

// Statistics summarizes the present (non-null) values of one page.
// The Min/Max pair matching the owning column's physical type is the
// one filled in; BytesMin/BytesMax are used for String, and Boolean
// pages record BoolTrueCount instead.
type Statistics struct {
	NullCount    uint64
	DistinctHint uint64 // 0 means "not tracked"

	IntMin, IntMax     int64
	UintMin, UintMax   uint64
	FloatMin, FloatMax float64
	BytesMin, BytesMax []byte
	BoolTrueCount      uint64
	HasValues          bool
}
