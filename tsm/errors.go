package tsm

import (
	"errors"
	"fmt"
)

var ErrNoTimePage = errors.New("column group has no time page")
var ErrUnsupportedDataType = errors.New("unsupported physical type for page encoding")
var ErrFooterNotFound = errors.New("footer not found: file too short or trailer corrupt")
var ErrEmptyBloomFilter = errors.New("bloom filter has zero bits")

// PageHashCheckFailed indicates a page's stored CRC32 does not match the
// CRC32 recomputed over its payload bytes.
type PageHashCheckFailed struct {
	CRC           uint32
	CRCCalculated uint32
}

func (e *PageHashCheckFailed) Error() string {
	return fmt.Sprintf("page hash check failed: stored=%#08x calculated=%#08x", e.CRC, e.CRCCalculated)
}

func (e *PageHashCheckFailed) Is(target error) bool {
	_, ok := target.(*PageHashCheckFailed)
	return ok
}

// FileHashCheckFailed indicates a file's footer-recorded CRC32 does not
// match the CRC32 recomputed over the bytes preceding the footer.
type FileHashCheckFailed struct {
	CRC           uint32
	CRCCalculated uint32
}

func (e *FileHashCheckFailed) Error() string {
	return fmt.Sprintf("file hash check failed: stored=%#08x calculated=%#08x", e.CRC, e.CRCCalculated)
}

func (e *FileHashCheckFailed) Is(target error) bool {
	_, ok := target.(*FileHashCheckFailed)
	return ok
}

// DataBufferShort indicates a page's payload was exhausted before its
// null bitmap was fully consumed.
type DataBufferShort struct {
	Reason string
}

func (e *DataBufferShort) Error() string {
	return fmt.Sprintf("data buffer not enough: %s", e.Reason)
}

func (e *DataBufferShort) Is(target error) bool {
	_, ok := target.(*DataBufferShort)
	return ok
}

// TsmColumnGroupError covers chunk/column-group invariant violations: a
// column group pushed out of time order, a duplicate column-group id, or
// a ragged page set.
type TsmColumnGroupError struct {
	Reason string
}

func (e *TsmColumnGroupError) Error() string {
	return fmt.Sprintf("tsm column group error: %s", e.Reason)
}

func (e *TsmColumnGroupError) Is(target error) bool {
	_, ok := target.(*TsmColumnGroupError)
	return ok
}

// SerializeError wraps a failure to serialize a footer, chunk, or
// chunk-group record to its on-disk form.
type SerializeError struct {
	Reason string
}

func (e *SerializeError) Error() string { return fmt.Sprintf("serialize error: %s", e.Reason) }

func (e *SerializeError) Is(target error) bool {
	_, ok := target.(*SerializeError)
	return ok
}

// DeserializeError wraps a failure to parse a footer, chunk, or
// chunk-group record read back from disk.
type DeserializeError struct {
	Reason string
}

func (e *DeserializeError) Error() string { return fmt.Sprintf("deserialize error: %s", e.Reason) }

func (e *DeserializeError) Is(target error) bool {
	_, ok := target.(*DeserializeError)
	return ok
}
