package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInt64RoundTrip(t *testing.T) {
	cases := [][]int64{
		nil,
		{0},
		{1, -1, 2, -2},
		{1 << 40, -(1 << 40)},
	}
	for _, vals := range cases {
		data, err := EncodeInt64(vals)
		require.NoError(t, err)
		got, err := DecodeInt64(data)
		require.NoError(t, err)
		require.Equal(t, vals, got)
	}
}

func TestInt64RoundTripLarge(t *testing.T) {
	vals := make([]int64, 1000)
	for i := range vals {
		vals[i] = int64(i) * 3
	}
	data, err := EncodeInt64(vals)
	require.NoError(t, err)
	require.Equal(t, TagZSTD, Tag(data[0]))

	got, err := DecodeInt64(data)
	require.NoError(t, err)
	require.Equal(t, vals, got)
}

func TestInt64DecodeTruncated(t *testing.T) {
	_, err := DecodeInt64([]byte{byte(TagPlain), 1, 2, 3})
	require.Error(t, err)
}
