package seriesbloom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoFalseNegatives(t *testing.T) {
	f := New(4096, 4)
	ids := []uint32{1, 2, 3, 42, 1000, 1<<32 - 1}
	for _, id := range ids {
		f.Add(id)
	}
	for _, id := range ids {
		require.True(t, f.MayContain(id), "id %d must be reported present", id)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	f := New(1024, 4)
	f.Add(7)
	f.Add(99)

	data, err := f.MarshalBinary()
	require.NoError(t, err)

	got, err := UnmarshalBinary(data)
	require.NoError(t, err)
	require.True(t, got.MayContain(7))
	require.True(t, got.MayContain(99))
	require.Equal(t, f.BitCount(), got.BitCount())
}

func TestDefaultSizing(t *testing.T) {
	f := New(0, 0)
	require.Equal(t, uint(DefaultBits), f.BitCount())
}
