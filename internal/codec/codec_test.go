package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressDecompressPlain(t *testing.T) {
	raw := []byte("small payload")
	data, err := compress(TagPlain, raw)
	require.NoError(t, err)
	require.Equal(t, TagPlain, Tag(data[0]))

	got, err := decompress(data)
	require.NoError(t, err)
	require.Equal(t, raw, got)
}

func TestCompressDecompressZSTD(t *testing.T) {
	raw := make([]byte, 2048)
	for i := range raw {
		raw[i] = byte(i % 7)
	}
	data, err := compress(TagZSTD, raw)
	require.NoError(t, err)
	got, err := decompress(data)
	require.NoError(t, err)
	require.Equal(t, raw, got)
}

func TestCompressDecompressLZ4(t *testing.T) {
	raw := make([]byte, 2048)
	for i := range raw {
		raw[i] = byte(i % 5)
	}
	data, err := compress(TagLZ4, raw)
	require.NoError(t, err)
	got, err := decompress(data)
	require.NoError(t, err)
	require.Equal(t, raw, got)
}

func TestDecompressUnknownTag(t *testing.T) {
	_, err := decompress([]byte{0xEE, 1, 2})
	require.True(t, errors.Is(err, errUnknownTag))
}

func TestDecompressEmptyPayload(t *testing.T) {
	_, err := decompress(nil)
	var de *DecodeError
	require.True(t, errors.As(err, &de))
}
