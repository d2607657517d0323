package coordinator

import (
	"context"

	"github.com/go-kit/log/level"
)

// processLeaderChange handles a ForwardToLeader redirection: resolve
// the indicated vnode's placement, record the new leader in the
// catalog, and re-issue the write remotely to that node. The catalog
// promotion is best-effort; its failure is logged but does not fail the
// enclosing write.
func (w *ReplicationSetWriter) processLeaderChange(ctx context.Context, tenant string, leaderVnodeID uint32, req *WriteReplicaRequest) error {
	w.metrics.LeaderChanges.Inc()

	info, err := w.catalog.VnodeAllInfo(ctx, tenant, leaderVnodeID)
	if err != nil {
		return err
	}

	meta, err := w.catalog.TenantMeta(ctx, tenant)
	if err != nil {
		return err
	}

	changeErr := meta.ChangeReplicaSetLeader(ctx, info.DBName, info.BucketID, req.ReplicaID, info.NodeID, leaderVnodeID)
	level.Info(w.logger).Log(
		"msg", "change replica set leader",
		"replica", req.ReplicaID, "vnode", leaderVnodeID, "node", info.NodeID, "err", changeErr,
	)

	return w.writeToRemote(ctx, info.NodeID, req)
}
