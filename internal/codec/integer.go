package codec

import "encoding/binary"

// EncodeInt64 encodes a dense sequence of i64 values (used for both the
// Integer physical type and the Time physical type, which is i64 under
// an external unit tag).
func EncodeInt64(values []int64) ([]byte, error) {
	raw := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw[i*8:], uint64(v))
	}
	tag := TagPlain
	if len(raw) > 256 {
		tag = TagZSTD
	}
	return compress(tag, raw)
}

// DecodeInt64 decodes a payload produced by EncodeInt64.
func DecodeInt64(data []byte) ([]int64, error) {
	raw, err := decompress(data)
	if err != nil {
		return nil, err
	}
	if len(raw)%8 != 0 {
		return nil, newDecodeError("integer payload not a multiple of 8 bytes")
	}
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]int64, len(raw)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return out, nil
}
