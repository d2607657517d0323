package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/lastincisor/tskv/catalog"
)

// slowRemoteWrite is the latency above which a remote write is reported
// in the debug log.
const slowRemoteWrite = 200 * time.Millisecond

// RaftNode is the consensus handle the writer proposes through. The
// adapter behind it translates leader redirections into
// *ForwardToLeader; everything else arrives as *RaftWriteError.
type RaftNode interface {
	Propose(ctx context.Context, data []byte) error
}

// RaftManager resolves (or lazily builds) the consensus node for a
// (tenant, db, replica set) tuple.
type RaftManager interface {
	NodeOrBuild(ctx context.Context, tenant, dbName string, replica *ReplicationSet) (RaftNode, error)
}

// StorageEngine is the local storage surface the consensus state
// machine applies committed writes to. Applies must tolerate duplicate
// payloads: a failed-over write may be proposed twice.
type StorageEngine interface {
	WriteReplica(ctx context.Context, req *WriteReplicaRequest) error
}

// Version is stamped by the build; Ping reports it.
var Version = "dev"

// ReplicationSetWriter dispatches a write to its replication set:
// through the local consensus log when this node leads the set, or to
// the remote leader otherwise, falling back across followers when the
// leader is unreachable.
type ReplicationSetWriter struct {
	nodeID       uint64
	writeTimeout time.Duration

	catalog catalog.Catalog
	clients ClientProvider
	raft    RaftManager
	engine  StorageEngine // nil on stateless coordinator-only nodes
	trace   TraceCarrier
	logger  log.Logger
	metrics *Metrics
}

// NewReplicationSetWriter wires a writer. engine may be nil; such a
// node always takes the remote path. trace may be nil for no-op
// propagation.
func NewReplicationSetWriter(
	nodeID uint64,
	writeTimeout time.Duration,
	cat catalog.Catalog,
	clients ClientProvider,
	raft RaftManager,
	engine StorageEngine,
	trace TraceCarrier,
	logger log.Logger,
	metrics *Metrics,
) *ReplicationSetWriter {
	if trace == nil {
		trace = NopTraceCarrier{}
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &ReplicationSetWriter{
		nodeID:       nodeID,
		writeTimeout: writeTimeout,
		catalog:      cat,
		clients:      clients,
		raft:         raft,
		engine:       engine,
		trace:        trace,
		logger:       logger,
		metrics:      metrics,
	}
}

// WriteToReplica is the write path entry point. Leader redirection and
// node failover are each recovered at most once per write; every other
// error propagates unchanged.
func (w *ReplicationSetWriter) WriteToReplica(ctx context.Context, tenant, dbName string, precision Precision, data []byte, replica *ReplicationSet) error {
	if w.nodeID == replica.LeaderNodeID && w.engine != nil {
		start := time.Now()
		err := w.writeToLocalOrForward(ctx, tenant, dbName, precision, data, replica)
		w.metrics.WriteDuration.WithLabelValues("local").Observe(time.Since(start).Seconds())
		level.Debug(w.logger).Log(
			"msg", "write to local node",
			"node", w.nodeID, "replica", replica.ID, "err", err,
		)
		return err
	}

	req := &WriteReplicaRequest{
		ReplicaID: replica.ID,
		Tenant:    tenant,
		DBName:    dbName,
		Precision: precision,
		Data:      data,
	}
	start := time.Now()
	err := w.writeToRemote(ctx, replica.LeaderNodeID, req)
	w.metrics.WriteDuration.WithLabelValues("remote").Observe(time.Since(start).Seconds())
	level.Debug(w.logger).Log(
		"msg", "write to remote leader",
		"leader", replica.LeaderNodeID, "replica", replica.ID, "err", err,
	)

	if errors.Is(err, &FailoverNode{}) {
		return w.failover(ctx, replica, req, err)
	}
	return err
}

// failover retries the remote path against every follower once,
// skipping the unreachable leader. The first success wins; a
// non-failover error stops the walk immediately.
func (w *ReplicationSetWriter) failover(ctx context.Context, replica *ReplicationSet, req *WriteReplicaRequest, lastErr error) error {
	w.metrics.FailoverTotal.Inc()
	for _, vnode := range replica.Vnodes {
		if vnode.NodeID == replica.LeaderNodeID {
			continue
		}
		err := w.writeToRemote(ctx, vnode.NodeID, req)
		level.Debug(w.logger).Log(
			"msg", "failover write to follower",
			"node", vnode.NodeID, "replica", replica.ID, "err", err,
		)
		if err == nil {
			return nil
		}
		if errors.Is(err, &FailoverNode{}) {
			lastErr = err
			continue
		}
		return err
	}
	return lastErr
}

// writeToLocalOrForward proposes the write to the local consensus node,
// handling a single leader redirection by retargeting the indicated
// vnode's node over the remote path.
func (w *ReplicationSetWriter) writeToLocalOrForward(ctx context.Context, tenant, dbName string, precision Precision, data []byte, replica *ReplicationSet) error {
	node, err := w.raft.NodeOrBuild(ctx, tenant, dbName, replica)
	if err != nil {
		return err
	}
	req := &WriteReplicaRequest{
		ReplicaID: replica.ID,
		Tenant:    tenant,
		DBName:    dbName,
		Precision: precision,
		Data:      data,
	}

	err = node.Propose(ctx, req.Marshal())
	var fwd *ForwardToLeader
	if errors.As(err, &fwd) {
		return w.processLeaderChange(ctx, tenant, fwd.LeaderVnodeID, req)
	}
	return err
}

// writeToRemote performs one remote write against nodeID, bounded by
// the configured write timeout. Error classification per the failover
// contract: unreachable or non-internal status recovers via failover;
// an internal status is a storage fault the caller must see.
func (w *ReplicationSetWriter) writeToRemote(ctx context.Context, nodeID uint64, req *WriteReplicaRequest) error {
	client, err := w.clients.WriteClient(ctx, nodeID)
	if err != nil {
		return &FailoverNode{NodeID: nodeID, Reason: err.Error()}
	}

	callCtx := w.trace.Inject(ctx)
	if w.writeTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, w.writeTimeout)
		defer cancel()
	}

	begin := time.Now()
	resp, err := client.WriteReplicaPoints(callCtx, req)
	if err != nil {
		var internal *InternalStatusError
		if errors.As(err, &internal) {
			return &TskvError{Source: err}
		}
		return &FailoverNode{NodeID: nodeID, Reason: err.Error()}
	}

	if elapsed := time.Since(begin); elapsed > slowRemoteWrite {
		w.metrics.RemoteSlowSend.Inc()
		level.Debug(w.logger).Log(
			"msg", "remote write took too long",
			"node", nodeID, "elapsed", elapsed,
		)
	}

	return statusResponseToError(resp)
}

// Ping reports this node's identity; operators call it before anything
// else.
func (w *ReplicationSetWriter) Ping(_ context.Context) (*NodeStatus, error) {
	return &NodeStatus{NodeID: w.nodeID, Version: Version}, nil
}
