package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVnodeLookup(t *testing.T) {
	c := NewMemCatalog()
	c.AddVnode(VnodeAllInfo{
		VnodeID: 7, NodeID: 3, TenantName: "t", DBName: "d", BucketID: 1, ReplicaID: 10,
	})

	info, err := c.VnodeAllInfo(context.Background(), "t", 7)
	require.NoError(t, err)
	require.Equal(t, uint64(3), info.NodeID)
	require.Equal(t, "d", info.DBName)

	_, err = c.VnodeAllInfo(context.Background(), "t", 8)
	require.ErrorIs(t, err, &VnodeNotFound{})

	_, err = c.VnodeAllInfo(context.Background(), "missing", 7)
	require.ErrorIs(t, err, &TenantNotFound{})
}

func TestChangeReplicaSetLeader(t *testing.T) {
	c := NewMemCatalog()
	c.AddVnode(VnodeAllInfo{VnodeID: 7, NodeID: 3, TenantName: "t", DBName: "d", ReplicaID: 10})
	c.AddVnode(VnodeAllInfo{VnodeID: 8, NodeID: 4, TenantName: "t", DBName: "d", ReplicaID: 10})

	leader, ok := c.ReplicaSetLeader("t", 10)
	require.True(t, ok)
	require.Equal(t, uint32(7), leader)

	meta, err := c.TenantMeta(context.Background(), "t")
	require.NoError(t, err)
	require.NoError(t, meta.ChangeReplicaSetLeader(context.Background(), "d", 1, 10, 4, 8))

	leader, ok = c.ReplicaSetLeader("t", 10)
	require.True(t, ok)
	require.Equal(t, uint32(8), leader)

	err = meta.ChangeReplicaSetLeader(context.Background(), "d", 1, 99, 4, 8)
	require.ErrorIs(t, err, &ReplicaSetNotFound{})
}

func TestNodeAddr(t *testing.T) {
	c := NewMemCatalog()
	c.AddNode(3, "10.0.0.3:8903")

	addr, err := c.NodeAddr(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.3:8903", addr)

	_, err = c.NodeAddr(context.Background(), 9)
	require.ErrorIs(t, err, &NodeNotFound{})
}
