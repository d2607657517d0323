package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lastincisor/tskv/catalog"
)

type fakeRaftNode struct {
	err      error
	proposed [][]byte
}

func (n *fakeRaftNode) Propose(_ context.Context, data []byte) error {
	n.proposed = append(n.proposed, data)
	return n.err
}

type fakeRaftManager struct {
	node *fakeRaftNode
	err  error
}

func (m *fakeRaftManager) NodeOrBuild(_ context.Context, _, _ string, _ *ReplicationSet) (RaftNode, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.node, nil
}

type fakeEngine struct{}

func (fakeEngine) WriteReplica(_ context.Context, _ *WriteReplicaRequest) error { return nil }

type fakeClient struct {
	resp  *StatusResponse
	err   error
	calls []*WriteReplicaRequest
}

func (c *fakeClient) WriteReplicaPoints(_ context.Context, req *WriteReplicaRequest) (*StatusResponse, error) {
	c.calls = append(c.calls, req)
	if c.err != nil {
		return nil, c.err
	}
	return c.resp, nil
}

func (c *fakeClient) Ping(_ context.Context) (*NodeStatus, error) {
	return &NodeStatus{}, nil
}

type fakeProvider struct {
	clients map[uint64]*fakeClient
	dialErr map[uint64]error
}

func (p *fakeProvider) WriteClient(_ context.Context, nodeID uint64) (WriteClient, error) {
	if err := p.dialErr[nodeID]; err != nil {
		return nil, err
	}
	c, ok := p.clients[nodeID]
	if !ok {
		return nil, errors.New("no route to node")
	}
	return c, nil
}

func testReplica() *ReplicationSet {
	return &ReplicationSet{
		ID:           10,
		LeaderNodeID: 3,
		Vnodes: []VnodeInfo{
			{VnodeID: 30, NodeID: 3},
			{VnodeID: 40, NodeID: 4},
			{VnodeID: 50, NodeID: 5},
		},
	}
}

func newTestWriter(nodeID uint64, raft RaftManager, clients ClientProvider, cat catalog.Catalog, engine StorageEngine) *ReplicationSetWriter {
	return NewReplicationSetWriter(nodeID, time.Second, cat, clients, raft, engine, nil, nil, nil)
}

func TestWriteToReplicaLocalLeader(t *testing.T) {
	node := &fakeRaftNode{}
	w := newTestWriter(1, &fakeRaftManager{node: node}, &fakeProvider{}, catalog.NewMemCatalog(), fakeEngine{})

	replica := &ReplicationSet{ID: 10, LeaderNodeID: 1, Vnodes: []VnodeInfo{{VnodeID: 11, NodeID: 1}}}
	err := w.WriteToReplica(context.Background(), "t", "d", PrecisionMillisecond, []byte{0x01, 0x02}, replica)
	require.NoError(t, err)

	require.Len(t, node.proposed, 1)
	req, err := UnmarshalWriteReplicaRequest(node.proposed[0])
	require.NoError(t, err)
	require.Equal(t, uint32(10), req.ReplicaID)
	require.Equal(t, "t", req.Tenant)
	require.Equal(t, "d", req.DBName)
	require.Equal(t, PrecisionMillisecond, req.Precision)
	require.Equal(t, []byte{0x01, 0x02}, req.Data)
}

func TestWriteToReplicaForwardToLeader(t *testing.T) {
	cat := catalog.NewMemCatalog()
	cat.AddVnode(catalog.VnodeAllInfo{
		VnodeID: 7, NodeID: 3, TenantName: "t", DBName: "d", BucketID: 1, ReplicaID: 10,
	})

	node := &fakeRaftNode{err: &ForwardToLeader{ReplicaID: 10, LeaderVnodeID: 7}}
	remote := &fakeClient{resp: &StatusResponse{Code: StatusSuccess}}
	provider := &fakeProvider{clients: map[uint64]*fakeClient{3: remote}}
	w := newTestWriter(1, &fakeRaftManager{node: node}, provider, cat, fakeEngine{})

	replica := &ReplicationSet{ID: 10, LeaderNodeID: 1, Vnodes: []VnodeInfo{{VnodeID: 11, NodeID: 1}, {VnodeID: 7, NodeID: 3}}}
	err := w.WriteToReplica(context.Background(), "t", "d", PrecisionNanosecond, []byte{0xAA}, replica)
	require.NoError(t, err)

	require.Len(t, remote.calls, 1)
	require.Equal(t, []byte{0xAA}, remote.calls[0].Data)

	leader, ok := cat.ReplicaSetLeader("t", 10)
	require.True(t, ok)
	require.Equal(t, uint32(7), leader)
}

func TestWriteToReplicaFailoverAcrossFollowers(t *testing.T) {
	follower5 := &fakeClient{resp: &StatusResponse{Code: StatusSuccess}}
	provider := &fakeProvider{
		clients: map[uint64]*fakeClient{5: follower5},
		dialErr: map[uint64]error{
			3: errors.New("connect refused"),
			4: errors.New("connect refused"),
		},
	}
	w := newTestWriter(1, &fakeRaftManager{}, provider, catalog.NewMemCatalog(), nil)

	payload := []byte{0xDE, 0xAD}
	err := w.WriteToReplica(context.Background(), "t", "d", PrecisionMillisecond, payload, testReplica())
	require.NoError(t, err)

	require.Len(t, follower5.calls, 1)
	require.Equal(t, payload, follower5.calls[0].Data)
}

func TestWriteToReplicaFailoverExhausted(t *testing.T) {
	provider := &fakeProvider{
		dialErr: map[uint64]error{
			3: errors.New("connect refused"),
			4: errors.New("connect refused"),
			5: errors.New("connect refused"),
		},
	}
	w := newTestWriter(1, &fakeRaftManager{}, provider, catalog.NewMemCatalog(), nil)

	err := w.WriteToReplica(context.Background(), "t", "d", PrecisionMillisecond, []byte{1}, testReplica())
	require.ErrorIs(t, err, &FailoverNode{})
}

func TestWriteToReplicaInternalStatusStopsFailover(t *testing.T) {
	leader := &fakeClient{err: &InternalStatusError{Message: "partial write"}}
	follower := &fakeClient{resp: &StatusResponse{Code: StatusSuccess}}
	provider := &fakeProvider{clients: map[uint64]*fakeClient{3: leader, 4: follower, 5: follower}}
	w := newTestWriter(1, &fakeRaftManager{}, provider, catalog.NewMemCatalog(), nil)

	err := w.WriteToReplica(context.Background(), "t", "d", PrecisionMillisecond, []byte{1}, testReplica())
	require.ErrorIs(t, err, &TskvError{})
	require.Empty(t, follower.calls)
}

func TestWriteToReplicaFailedResponseSurfacesMessage(t *testing.T) {
	leader := &fakeClient{resp: &StatusResponse{Code: StatusFailed, Data: "table does not exist"}}
	provider := &fakeProvider{clients: map[uint64]*fakeClient{3: leader}}
	w := newTestWriter(1, &fakeRaftManager{}, provider, catalog.NewMemCatalog(), nil)

	err := w.WriteToReplica(context.Background(), "t", "d", PrecisionMillisecond, []byte{1}, testReplica())
	require.ErrorIs(t, err, &CommonError{})
	require.Contains(t, err.Error(), "table does not exist")
}

func TestWriteToReplicaRaftErrorNotRetried(t *testing.T) {
	node := &fakeRaftNode{err: &RaftWriteError{Message: "log closed"}}
	w := newTestWriter(1, &fakeRaftManager{node: node}, &fakeProvider{}, catalog.NewMemCatalog(), fakeEngine{})

	replica := &ReplicationSet{ID: 10, LeaderNodeID: 1, Vnodes: []VnodeInfo{{VnodeID: 11, NodeID: 1}}}
	err := w.WriteToReplica(context.Background(), "t", "d", PrecisionMillisecond, []byte{1}, replica)
	require.ErrorIs(t, err, &RaftWriteError{})
	require.Len(t, node.proposed, 1)
}
