// Package bitset implements the compact null mask used by TSM pages.
//
// It wraps github.com/bits-and-blooms/bitset and adds the fixed
// on-disk byte encoding the page envelope requires: one bit per row,
// row i stored at byte i/8, bit i%8, least-significant bit first.
package bitset

import (
	"fmt"

	bbs "github.com/bits-and-blooms/bitset"
)

// Bitset is a null mask over len rows: bit i is set iff row i carries a
// present (non-null) value.
type Bitset struct {
	bits *bbs.BitSet
	len  uint
}

// New allocates a Bitset able to hold n rows, all initially clear.
func New(n uint) *Bitset {
	return &Bitset{bits: bbs.New(n), len: n}
}

// Len returns the number of rows the bitset covers.
func (b *Bitset) Len() uint {
	return b.len
}

// Set marks row i present.
func (b *Bitset) Set(i uint) {
	b.bits.Set(i)
}

// Get reports whether row i is present.
func (b *Bitset) Get(i uint) bool {
	return b.bits.Test(i)
}

// Rank returns the number of set bits in [0, i), the offset of row i's
// value (if present) within the dense decoded value sequence.
func (b *Bitset) Rank(i uint) uint {
	if i == 0 {
		return 0
	}
	return b.bits.Rank(i - 1)
}

// PopCount returns the total number of set bits.
func (b *Bitset) PopCount() uint {
	return b.bits.Count()
}

// ByteLen returns the number of bytes the packed encoding occupies.
func ByteLen(n uint) int {
	return int((n + 7) / 8)
}

// Marshal packs the bitset into its on-disk byte representation:
// ByteLen(Len()) bytes, row i at byte i/8 bit i%8 (LSB first).
func (b *Bitset) Marshal() []byte {
	out := make([]byte, ByteLen(b.len))
	for i := uint(0); i < b.len; i++ {
		if b.bits.Test(i) {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out
}

// Unmarshal reconstructs a Bitset of n rows from its packed byte form.
func Unmarshal(n uint, data []byte) (*Bitset, error) {
	if len(data) < ByteLen(n) {
		return nil, fmt.Errorf("bitset: short buffer: need %d bytes, got %d", ByteLen(n), len(data))
	}
	b := New(n)
	for i := uint(0); i < n; i++ {
		if data[i/8]&(1<<(i%8)) != 0 {
			b.bits.Set(i)
		}
	}
	return b, nil
}
