package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytesRoundTrip(t *testing.T) {
	vals := [][]byte{
		[]byte(""),
		[]byte("a"),
		[]byte("hello, tsm"),
		{},
	}
	data, err := EncodeBytes(vals)
	require.NoError(t, err)
	got, err := DecodeBytes(data, len(vals))
	require.NoError(t, err)
	require.Equal(t, vals, got)
}

func TestBytesRoundTripLarge(t *testing.T) {
	vals := make([][]byte, 200)
	for i := range vals {
		vals[i] = []byte("series-tag-value-payload-stretching-past-the-threshold")
	}
	data, err := EncodeBytes(vals)
	require.NoError(t, err)
	require.Equal(t, TagZSTD, Tag(data[0]))

	got, err := DecodeBytes(data, len(vals))
	require.NoError(t, err)
	require.Equal(t, vals, got)
}

func TestBytesDecodeTruncatedLengthPrefix(t *testing.T) {
	data, err := compress(TagPlain, []byte{1, 0})
	require.NoError(t, err)
	_, err = DecodeBytes(data, 1)
	require.Error(t, err)
}

func TestBytesDecodeTruncatedValue(t *testing.T) {
	raw := []byte{10, 0, 0, 0, 'a', 'b'}
	data, err := compress(TagPlain, raw)
	require.NoError(t, err)
	_, err = DecodeBytes(data, 1)
	require.Error(t, err)
}
