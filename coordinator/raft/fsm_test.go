package raft

import (
	"context"
	"errors"
	"testing"

	hraft "github.com/hashicorp/raft"
	"github.com/stretchr/testify/require"

	"github.com/lastincisor/tskv/coordinator"
)

type applyRecorder struct {
	err  error
	reqs []*coordinator.WriteReplicaRequest
}

func (r *applyRecorder) WriteReplica(_ context.Context, req *coordinator.WriteReplicaRequest) error {
	r.reqs = append(r.reqs, req)
	return r.err
}

func TestFSMApply(t *testing.T) {
	eng := &applyRecorder{}
	fsm := NewFSM(eng, nil)

	req := &coordinator.WriteReplicaRequest{ReplicaID: 10, Tenant: "t", DBName: "d", Data: []byte{9}}
	resp := fsm.Apply(&hraft.Log{Index: 3, Data: req.Marshal()})
	require.Nil(t, resp)
	require.Len(t, eng.reqs, 1)
	require.Equal(t, req, eng.reqs[0])
}

func TestFSMApplyEngineRejection(t *testing.T) {
	eng := &applyRecorder{err: errors.New("disk full")}
	fsm := NewFSM(eng, nil)

	req := &coordinator.WriteReplicaRequest{ReplicaID: 10, Data: []byte{9}}
	resp := fsm.Apply(&hraft.Log{Index: 4, Data: req.Marshal()})
	applyErr, ok := resp.(error)
	require.True(t, ok)
	require.Contains(t, applyErr.Error(), "disk full")
}

func TestFSMApplyUndecodableEntry(t *testing.T) {
	fsm := NewFSM(&applyRecorder{}, nil)
	resp := fsm.Apply(&hraft.Log{Index: 5, Data: []byte{0xFF, 0xFF}})
	_, ok := resp.(error)
	require.True(t, ok)
}
