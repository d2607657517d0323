package codec

import (
	"encoding/binary"
	"math"
)

// EncodeFloat64 encodes a dense sequence of f64 values for the Float
// physical type.
func EncodeFloat64(values []float64) ([]byte, error) {
	raw := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(v))
	}
	tag := TagPlain
	if len(raw) > 256 {
		tag = TagZSTD
	}
	return compress(tag, raw)
}

// DecodeFloat64 decodes a payload produced by EncodeFloat64.
func DecodeFloat64(data []byte) ([]float64, error) {
	raw, err := decompress(data)
	if err != nil {
		return nil, err
	}
	if len(raw)%8 != 0 {
		return nil, newDecodeError("float payload not a multiple of 8 bytes")
	}
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]float64, len(raw)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return out, nil
}
