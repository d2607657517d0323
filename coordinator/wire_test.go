package coordinator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReplicaRequestRoundTrip(t *testing.T) {
	in := &WriteReplicaRequest{
		ReplicaID: 42,
		Tenant:    "cnosdb",
		DBName:    "public",
		Precision: PrecisionMicrosecond,
		Data:      []byte{0x00, 0x01, 0xFF},
	}
	out, err := UnmarshalWriteReplicaRequest(in.Marshal())
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestUnmarshalWriteReplicaRequestTruncated(t *testing.T) {
	data := (&WriteReplicaRequest{Tenant: "t", Data: []byte{1, 2, 3}}).Marshal()
	_, err := UnmarshalWriteReplicaRequest(data[:len(data)-2])
	require.ErrorIs(t, err, &CommonError{})
}

func TestStatusResponseToError(t *testing.T) {
	require.NoError(t, statusResponseToError(&StatusResponse{Code: StatusSuccess}))

	err := statusResponseToError(&StatusResponse{Code: StatusFailed, Data: "boom"})
	require.ErrorIs(t, err, &CommonError{})
	require.EqualError(t, err, "boom")
}
