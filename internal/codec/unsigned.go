package codec

import "encoding/binary"

// EncodeUint64 encodes a dense sequence of u64 values for the Unsigned
// physical type.
func EncodeUint64(values []uint64) ([]byte, error) {
	raw := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw[i*8:], v)
	}
	tag := TagPlain
	if len(raw) > 256 {
		tag = TagZSTD
	}
	return compress(tag, raw)
}

// DecodeUint64 decodes a payload produced by EncodeUint64.
func DecodeUint64(data []byte) ([]uint64, error) {
	raw, err := decompress(data)
	if err != nil {
		return nil, err
	}
	if len(raw)%8 != 0 {
		return nil, newDecodeError("unsigned payload not a multiple of 8 bytes")
	}
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]uint64, len(raw)/8)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(raw[i*8:])
	}
	return out, nil
}
