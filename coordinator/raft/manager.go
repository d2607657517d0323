package raft

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	hraft "github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb/v2"

	"github.com/lastincisor/tskv/coordinator"
)

const (
	snapshotsRetained = 2
	transportMaxPool  = 3
	transportTimeout  = 10 * time.Second
	defaultApplyWait  = 10 * time.Second
)

// PeerResolver maps a node id to its raft transport address.
type PeerResolver func(ctx context.Context, nodeID uint64) (string, error)

// NodesManager owns this node's consensus groups, one per
// (tenant, db, replica set). The map is written under a lock on
// insertion only; readers load handles lock-free and share them.
type NodesManager struct {
	nodeID   uint64
	dataDir  string
	bindAddr string
	engine   coordinator.StorageEngine
	peers    PeerResolver
	logger   log.Logger

	buildMu sync.Mutex
	nodes   sync.Map // group key -> *managedNode
}

type managedNode struct {
	adapter *Adapter
	raft    *hraft.Raft
	store   *raftboltdb.BoltStore
	dir     string
}

// NewNodesManager wires a manager rooted at dataDir; consensus state
// for each group lives under dataDir/raft/<tenant>/<db>/<replica>.
func NewNodesManager(nodeID uint64, dataDir, bindAddr string, engine coordinator.StorageEngine, peers PeerResolver, logger log.Logger) *NodesManager {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &NodesManager{
		nodeID:   nodeID,
		dataDir:  dataDir,
		bindAddr: bindAddr,
		engine:   engine,
		peers:    peers,
		logger:   logger,
	}
}

func groupKey(tenant, dbName string, replicaID uint32) string {
	return fmt.Sprintf("%s/%s/%d", tenant, dbName, replicaID)
}

// NodeOrBuild returns the consensus handle for a replica set, building
// and (when fresh) bootstrapping it on first use.
func (m *NodesManager) NodeOrBuild(ctx context.Context, tenant, dbName string, replica *coordinator.ReplicationSet) (coordinator.RaftNode, error) {
	key := groupKey(tenant, dbName, replica.ID)
	if n, ok := m.nodes.Load(key); ok {
		return n.(*managedNode).adapter, nil
	}

	m.buildMu.Lock()
	defer m.buildMu.Unlock()
	if n, ok := m.nodes.Load(key); ok {
		return n.(*managedNode).adapter, nil
	}

	node, err := m.buildNode(ctx, key, replica)
	if err != nil {
		return nil, err
	}
	m.nodes.Store(key, node)
	level.Info(m.logger).Log("msg", "opened raft node", "group", key, "replica", replica.ID)
	return node.adapter, nil
}

func (m *NodesManager) buildNode(ctx context.Context, key string, replica *coordinator.ReplicationSet) (*managedNode, error) {
	localVnode, ok := localVnodeOf(replica, m.nodeID)
	if !ok {
		return nil, &coordinator.RaftWriteError{
			Message: fmt.Sprintf("node %d holds no vnode of replica set %d", m.nodeID, replica.ID),
		}
	}

	dir := filepath.Join(m.dataDir, "raft", key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &coordinator.RaftWriteError{Message: "raft dir: " + err.Error()}
	}

	logOutput := log.NewStdlibAdapter(level.Debug(m.logger))

	store, err := raftboltdb.New(raftboltdb.Options{Path: filepath.Join(dir, "raft.db")})
	if err != nil {
		return nil, &coordinator.RaftWriteError{Message: "raft log store: " + err.Error()}
	}
	snaps, err := hraft.NewFileSnapshotStore(dir, snapshotsRetained, logOutput)
	if err != nil {
		store.Close()
		return nil, &coordinator.RaftWriteError{Message: "raft snapshot store: " + err.Error()}
	}

	advertise, err := net.ResolveTCPAddr("tcp", m.bindAddr)
	if err != nil {
		store.Close()
		return nil, &coordinator.RaftWriteError{Message: "raft bind addr: " + err.Error()}
	}
	transport, err := hraft.NewTCPTransport(m.bindAddr, advertise, transportMaxPool, transportTimeout, logOutput)
	if err != nil {
		store.Close()
		return nil, &coordinator.RaftWriteError{Message: "raft transport: " + err.Error()}
	}

	conf := hraft.DefaultConfig()
	conf.LocalID = serverID(localVnode.VnodeID)
	conf.LogOutput = logOutput

	fsm := NewFSM(m.engine, m.logger)
	r, err := hraft.NewRaft(conf, fsm, store, store, snaps, transport)
	if err != nil {
		store.Close()
		return nil, &coordinator.RaftWriteError{Message: "raft node: " + err.Error()}
	}

	hasState, err := hraft.HasExistingState(store, store, snaps)
	if err != nil {
		return nil, &coordinator.RaftWriteError{Message: "raft state probe: " + err.Error()}
	}
	if !hasState {
		servers, err := m.memberServers(ctx, replica)
		if err != nil {
			return nil, err
		}
		if err := r.BootstrapCluster(hraft.Configuration{Servers: servers}).Error(); err != nil {
			return nil, &coordinator.RaftWriteError{Message: "raft bootstrap: " + err.Error()}
		}
	}

	return &managedNode{
		adapter: NewAdapter(r, replica.ID, defaultApplyWait),
		raft:    r,
		store:   store,
		dir:     dir,
	}, nil
}

// memberServers resolves every vnode of the replica set to a consensus
// server entry.
func (m *NodesManager) memberServers(ctx context.Context, replica *coordinator.ReplicationSet) ([]hraft.Server, error) {
	servers := make([]hraft.Server, 0, len(replica.Vnodes))
	for _, v := range replica.Vnodes {
		addr := m.bindAddr
		if v.NodeID != m.nodeID {
			resolved, err := m.peers(ctx, v.NodeID)
			if err != nil {
				return nil, &coordinator.RaftWriteError{
					Message: fmt.Sprintf("resolve peer %d: %v", v.NodeID, err),
				}
			}
			addr = resolved
		}
		servers = append(servers, hraft.Server{
			ID:      serverID(v.VnodeID),
			Address: hraft.ServerAddress(addr),
		})
	}
	return servers, nil
}

func localVnodeOf(replica *coordinator.ReplicationSet, nodeID uint64) (coordinator.VnodeInfo, bool) {
	for _, v := range replica.Vnodes {
		if v.NodeID == nodeID {
			return v, true
		}
	}
	return coordinator.VnodeInfo{}, false
}
