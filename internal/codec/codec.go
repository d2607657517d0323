// Package codec implements the per-physical-type value codecs used to
// encode a TSM page's dense (non-null) value sequence.
//
// Every codec's output begins with a one-byte encoding tag the decoder
// dispatches on. Tag bytes are stable identifiers: pages written by
// older builds must stay decodable, so a tag is never reassigned.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag is the first byte of an encoded payload, selecting the codec
// variant used to produce the rest of the bytes.
type Tag byte

const (
	// TagNull marks a no-op passthrough: the remaining bytes are the raw
	// fixed-width (or length-prefixed) dense values, uncompressed.
	TagNull Tag = 0
	// TagPlain is the "default" general codec: the same layout as
	// TagNull. Kept distinct so a future variant-specific plain encoding
	// (e.g. delta-of-timestamp) can reuse the tag space without
	// colliding with the passthrough.
	TagPlain Tag = 1
	// TagZSTD compresses the plain encoding with zstd.
	TagZSTD Tag = 2
	// TagLZ4 compresses the plain encoding with lz4.
	TagLZ4 Tag = 3
)

// DecodeError is returned when a payload is truncated, carries an
// unrecognized tag, or (for codecs that maintain one) fails its own
// checksum.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec: decode failed: %s", e.Reason)
}

func (e *DecodeError) Is(target error) bool {
	_, ok := target.(*DecodeError)
	return ok
}

func newDecodeError(reason string) error {
	return &DecodeError{Reason: reason}
}

var errUnknownTag = errors.New("codec: unknown encoding tag")

// splitTag reads the leading tag byte off an encoded payload.
func splitTag(data []byte) (Tag, []byte, error) {
	if len(data) < 1 {
		return 0, nil, newDecodeError("payload truncated before encoding tag")
	}
	return Tag(data[0]), data[1:], nil
}

// compress runs raw through the codec named by tag, prefixing the
// result with the tag byte. tag must be one of TagNull, TagPlain,
// TagZSTD, TagLZ4.
func compress(tag Tag, raw []byte) ([]byte, error) {
	switch tag {
	case TagNull, TagPlain:
		out := make([]byte, 1+len(raw))
		out[0] = byte(tag)
		copy(out[1:], raw)
		return out, nil
	case TagZSTD:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, err
		}
		compressed := enc.EncodeAll(raw, make([]byte, 0, len(raw)/2+8))
		_ = enc.Close()
		out := make([]byte, 1+len(compressed))
		out[0] = byte(tag)
		copy(out[1:], compressed)
		return out, nil
	case TagLZ4:
		var buf bytes.Buffer
		buf.WriteByte(byte(tag))
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("codec: unsupported compression tag %d", tag)
	}
}

// decompress reverses compress, returning the plain (uncompressed) dense
// byte sequence that was originally produced for TagNull/TagPlain.
func decompress(data []byte) ([]byte, error) {
	tag, body, err := splitTag(data)
	if err != nil {
		return nil, err
	}
	switch tag {
	case TagNull, TagPlain:
		return body, nil
	case TagZSTD:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		raw, err := dec.DecodeAll(body, nil)
		if err != nil {
			return nil, newDecodeError("zstd: " + err.Error())
		}
		return raw, nil
	case TagLZ4:
		zr := lz4.NewReader(bytes.NewReader(body))
		raw, err := io.ReadAll(zr)
		if err != nil {
			return nil, newDecodeError("lz4: " + err.Error())
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("%w: %w", newDecodeError(fmt.Sprintf("tag 0x%02x", byte(tag))), errUnknownTag)
	}
}
