// Package raft binds the replication-set writer to a consensus log
// backed by github.com/hashicorp/raft: per-(tenant,db,replica) node
// management, a storage-applying state machine, and the translation of
// consensus errors into the writer's redirection/failure taxonomy.
package raft

import (
	"context"
	"errors"
	"strconv"
	"time"

	hraft "github.com/hashicorp/raft"

	"github.com/lastincisor/tskv/coordinator"
)

// consensusNode is the slice of *hraft.Raft the adapter needs; tests
// substitute a fake.
type consensusNode interface {
	Apply(cmd []byte, timeout time.Duration) hraft.ApplyFuture
	LeaderWithID() (hraft.ServerAddress, hraft.ServerID)
}

// Adapter proposes writes into one consensus group and decodes its
// leader hints. It never retries; retry policy belongs to the writer.
type Adapter struct {
	node      consensusNode
	replicaID uint32
	timeout   time.Duration
}

// NewAdapter wraps an existing consensus node for one replica set.
func NewAdapter(node consensusNode, replicaID uint32, timeout time.Duration) *Adapter {
	return &Adapter{node: node, replicaID: replicaID, timeout: timeout}
}

// Propose appends data to the consensus log and waits for the state
// machine to apply it. A not-leader result with a known leader becomes
// *coordinator.ForwardToLeader; everything else becomes
// *coordinator.RaftWriteError.
func (a *Adapter) Propose(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return &coordinator.RaftWriteError{Message: err.Error()}
	}

	future := a.node.Apply(data, a.timeout)
	if err := future.Error(); err != nil {
		if errors.Is(err, hraft.ErrNotLeader) || errors.Is(err, hraft.ErrLeadershipLost) {
			if _, leaderID := a.node.LeaderWithID(); leaderID != "" {
				if vnodeID, ok := vnodeOfServer(leaderID); ok {
					return &coordinator.ForwardToLeader{
						ReplicaID:     a.replicaID,
						LeaderVnodeID: vnodeID,
					}
				}
			}
		}
		return &coordinator.RaftWriteError{Message: err.Error()}
	}

	// The FSM returns an error value through the apply future when the
	// storage engine rejects the payload.
	if resp := future.Response(); resp != nil {
		if applyErr, ok := resp.(error); ok {
			return &coordinator.RaftWriteError{Message: applyErr.Error()}
		}
	}
	return nil
}

// serverID renders a vnode id as the consensus server identity. Every
// member of a group is addressed by its vnode id, so a leader hint maps
// straight back to a vnode.
func serverID(vnodeID uint32) hraft.ServerID {
	return hraft.ServerID(strconv.FormatUint(uint64(vnodeID), 10))
}

func vnodeOfServer(id hraft.ServerID) (uint32, bool) {
	v, err := strconv.ParseUint(string(id), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}
