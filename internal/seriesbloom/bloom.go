// Package seriesbloom implements the series-id membership filter carried
// in a TSM file footer's SeriesMeta, wrapping
// github.com/bits-and-blooms/bloom/v3.
package seriesbloom

import (
	"encoding/binary"
	"fmt"

	bb "github.com/bits-and-blooms/bloom/v3"
)

// DefaultBits is used when bloom_filter.bits is unset in configuration.
const DefaultBits = 1 << 20

// DefaultHashFuncs is a reasonable false-positive/size tradeoff for the
// expected series-per-file cardinality of a TSM file.
const DefaultHashFuncs = 4

// Filter is a membership filter over series ids. False positives are
// allowed; false negatives are never produced for an id that was
// inserted.
type Filter struct {
	f    *bb.BloomFilter
	bits uint
}

// New allocates an empty filter sized to hold bits bits, using
// hashFuncs hash functions per insertion.
func New(bits uint, hashFuncs uint) *Filter {
	if bits == 0 {
		bits = DefaultBits
	}
	if hashFuncs == 0 {
		hashFuncs = DefaultHashFuncs
	}
	return &Filter{f: bb.New(bits, hashFuncs), bits: bits}
}

// Add inserts a series id into the filter. The key is the id's
// little-endian byte representation.
func (f *Filter) Add(seriesID uint32) {
	f.f.Add(seriesIDKey(seriesID))
}

// MayContain reports whether seriesID might be present in the filter.
// A false return is a proof of absence; a true return is not a proof
// of presence.
func (f *Filter) MayContain(seriesID uint32) bool {
	return f.f.Test(seriesIDKey(seriesID))
}

func seriesIDKey(seriesID uint32) []byte {
	key := make([]byte, 4)
	binary.LittleEndian.PutUint32(key, seriesID)
	return key
}

// BitCount returns the number of bits backing the filter; it survives
// a footer round trip.
func (f *Filter) BitCount() uint {
	return f.bits
}

// MarshalBinary serializes the filter for embedding into a footer.
func (f *Filter) MarshalBinary() ([]byte, error) {
	return f.f.MarshalJSON()
}

// UnmarshalBinary reconstructs a filter from bytes produced by
// MarshalBinary, recovering BitCount from the deserialized state.
func UnmarshalBinary(data []byte) (*Filter, error) {
	f := &bb.BloomFilter{}
	if err := f.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("seriesbloom: unmarshal: %w", err)
	}
	return &Filter{f: f, bits: f.Cap()}, nil
}
