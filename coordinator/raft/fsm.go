package raft

import (
	"context"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	hraft "github.com/hashicorp/raft"

	"github.com/lastincisor/tskv/coordinator"
)

// FSM applies committed consensus entries to the storage engine. Apply
// returns an error value (not nil) when the engine rejects the payload
// so the proposer sees the failure through the apply future.
//
// The engine owns all durable state; entries are at-least-once and the
// payload design is responsible for idempotency, so snapshots carry no
// engine data. A snapshot only lets the log truncate.
type FSM struct {
	engine coordinator.StorageEngine
	logger log.Logger
}

var _ hraft.FSM = (*FSM)(nil)

func NewFSM(engine coordinator.StorageEngine, logger log.Logger) *FSM {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &FSM{engine: engine, logger: logger}
}

func (f *FSM) Apply(l *hraft.Log) interface{} {
	req, err := coordinator.UnmarshalWriteReplicaRequest(l.Data)
	if err != nil {
		level.Error(f.logger).Log("msg", "undecodable raft entry", "index", l.Index, "err", err)
		return err
	}
	if err := f.engine.WriteReplica(context.Background(), req); err != nil {
		level.Error(f.logger).Log(
			"msg", "storage apply failed",
			"index", l.Index, "replica", req.ReplicaID, "err", err,
		)
		return err
	}
	return nil
}

func (f *FSM) Snapshot() (hraft.FSMSnapshot, error) {
	return emptySnapshot{}, nil
}

func (f *FSM) Restore(rc io.ReadCloser) error {
	// Nothing to restore: snapshots are empty markers. Drain the stream
	// so the snapshot store can finish.
	_, err := io.Copy(io.Discard, rc)
	if cerr := rc.Close(); err == nil {
		err = cerr
	}
	return err
}

type emptySnapshot struct{}

func (emptySnapshot) Persist(sink hraft.SnapshotSink) error { return sink.Close() }

func (emptySnapshot) Release() {}
