package raft

import (
	"context"
	"os"
	"time"

	"github.com/go-kit/log/level"
	hraft "github.com/hashicorp/raft"

	"github.com/lastincisor/tskv/coordinator"
)

const membershipTimeout = 30 * time.Second

var _ coordinator.RaftAdminClient = (*AdminService)(nil)

// AdminService exposes the consensus membership operations over the
// node manager. Each method answers with the same StatusResponse shape
// the write RPC uses.
type AdminService struct {
	manager *NodesManager
	// Replica resolves the current membership of a replica set so
	// open/add operations know which servers belong to the group.
	Replica func(ctx context.Context, tenant, db string, replicaID uint32) (*coordinator.ReplicationSet, error)
}

func NewAdminService(manager *NodesManager, replica func(ctx context.Context, tenant, db string, replicaID uint32) (*coordinator.ReplicationSet, error)) *AdminService {
	return &AdminService{manager: manager, Replica: replica}
}

func failed(err error) (*coordinator.StatusResponse, error) {
	return &coordinator.StatusResponse{Code: coordinator.StatusFailed, Data: err.Error()}, nil
}

func success() (*coordinator.StatusResponse, error) {
	return &coordinator.StatusResponse{Code: coordinator.StatusSuccess}, nil
}

// OpenRaftNode builds (or reuses) the local consensus node for a
// replica set.
func (s *AdminService) OpenRaftNode(ctx context.Context, tenant, db string, vnodeID, replicaID uint32) (*coordinator.StatusResponse, error) {
	replica, err := s.Replica(ctx, tenant, db, replicaID)
	if err != nil {
		return failed(err)
	}
	if _, err := s.manager.NodeOrBuild(ctx, tenant, db, replica); err != nil {
		return failed(err)
	}
	return success()
}

// DropRaftNode shuts the local consensus node down and forgets it,
// keeping its on-disk state.
func (s *AdminService) DropRaftNode(_ context.Context, tenant, db string, _ uint32, replicaID uint32) (*coordinator.StatusResponse, error) {
	key := groupKey(tenant, db, replicaID)
	n, ok := s.manager.nodes.LoadAndDelete(key)
	if !ok {
		return success()
	}
	node := n.(*managedNode)
	if err := node.raft.Shutdown().Error(); err != nil {
		return failed(err)
	}
	if err := node.store.Close(); err != nil {
		return failed(err)
	}
	level.Info(s.manager.logger).Log("msg", "dropped raft node", "group", key)
	return success()
}

// AddFollower joins a vnode to the group as a voter.
func (s *AdminService) AddFollower(ctx context.Context, tenant, db string, vnodeID, replicaID uint32) (*coordinator.StatusResponse, error) {
	node, ok := s.loadNode(tenant, db, replicaID)
	if !ok {
		return failed(&coordinator.RaftWriteError{Message: "raft node not open: " + groupKey(tenant, db, replicaID)})
	}
	replica, err := s.Replica(ctx, tenant, db, replicaID)
	if err != nil {
		return failed(err)
	}
	var addr string
	for _, v := range replica.Vnodes {
		if v.VnodeID == vnodeID {
			addr, err = s.manager.peers(ctx, v.NodeID)
			if err != nil {
				return failed(err)
			}
			break
		}
	}
	if addr == "" {
		return failed(&coordinator.RaftWriteError{Message: "vnode not in replica set"})
	}
	if err := node.raft.AddVoter(serverID(vnodeID), hraft.ServerAddress(addr), 0, membershipTimeout).Error(); err != nil {
		return failed(err)
	}
	return success()
}

// RemoveNode removes a vnode from the group's membership.
func (s *AdminService) RemoveNode(_ context.Context, tenant, db string, vnodeID, replicaID uint32) (*coordinator.StatusResponse, error) {
	node, ok := s.loadNode(tenant, db, replicaID)
	if !ok {
		return failed(&coordinator.RaftWriteError{Message: "raft node not open: " + groupKey(tenant, db, replicaID)})
	}
	if err := node.raft.RemoveServer(serverID(vnodeID), 0, membershipTimeout).Error(); err != nil {
		return failed(err)
	}
	return success()
}

// DestroyGroup drops the local node and deletes its on-disk consensus
// state.
func (s *AdminService) DestroyGroup(ctx context.Context, tenant, db string, replicaID uint32) (*coordinator.StatusResponse, error) {
	key := groupKey(tenant, db, replicaID)
	n, ok := s.manager.nodes.LoadAndDelete(key)
	if ok {
		node := n.(*managedNode)
		if err := node.raft.Shutdown().Error(); err != nil {
			return failed(err)
		}
		if err := node.store.Close(); err != nil {
			return failed(err)
		}
		if err := os.RemoveAll(node.dir); err != nil {
			return failed(err)
		}
	}
	level.Info(s.manager.logger).Log("msg", "destroyed raft group", "group", key)
	return success()
}

func (s *AdminService) loadNode(tenant, db string, replicaID uint32) (*managedNode, bool) {
	n, ok := s.manager.nodes.Load(groupKey(tenant, db, replicaID))
	if !ok {
		return nil, false
	}
	return n.(*managedNode), true
}
