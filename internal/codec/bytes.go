package codec

import "encoding/binary"

// EncodeBytes encodes a dense sequence of variable-length byte strings
// for the String physical type: a u32 length prefix per value followed
// by its bytes, concatenated, then run through the general codec.
func EncodeBytes(values [][]byte) ([]byte, error) {
	size := 0
	for _, v := range values {
		size += 4 + len(v)
	}
	raw := make([]byte, size)
	off := 0
	for _, v := range values {
		binary.LittleEndian.PutUint32(raw[off:], uint32(len(v)))
		off += 4
		copy(raw[off:], v)
		off += len(v)
	}
	tag := TagPlain
	switch {
	case size > 4096:
		tag = TagZSTD
	case size > 256:
		tag = TagLZ4
	}
	return compress(tag, raw)
}

// DecodeBytes decodes a payload produced by EncodeBytes, returning n
// values (n is the dense value count, as in DecodeBool).
func DecodeBytes(data []byte, n int) ([][]byte, error) {
	raw, err := decompress(data)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, n)
	off := 0
	for i := 0; i < n; i++ {
		if off+4 > len(raw) {
			return nil, newDecodeError("string payload truncated before length prefix")
		}
		l := int(binary.LittleEndian.Uint32(raw[off:]))
		off += 4
		if off+l > len(raw) {
			return nil, newDecodeError("string payload truncated before value bytes")
		}
		v := make([]byte, l)
		copy(v, raw[off:off+l])
		out[i] = v
		off += l
	}
	return out, nil
}
