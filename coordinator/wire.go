package coordinator

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Precision is the time precision of a write payload's timestamps.
type Precision uint32

const (
	PrecisionSecond Precision = iota
	PrecisionMillisecond
	PrecisionMicrosecond
	PrecisionNanosecond
)

func (p Precision) String() string {
	switch p {
	case PrecisionSecond:
		return "s"
	case PrecisionMillisecond:
		return "ms"
	case PrecisionMicrosecond:
		return "us"
	case PrecisionNanosecond:
		return "ns"
	default:
		return fmt.Sprintf("precision(%d)", uint32(p))
	}
}

// Wire status codes for StatusResponse.Code.
const (
	StatusSuccess int32 = 0
	StatusFailed  int32 = 1
)

// WriteReplicaRequest is one replicated write: the payload bytes plus
// the replica set and namespace they target. The same record is both
// the remote-write RPC body and the entry proposed to the consensus
// log.
type WriteReplicaRequest struct {
	ReplicaID uint32
	Tenant    string
	DBName    string
	Precision Precision
	Data      []byte
}

// Field numbers for the protobuf wire encoding of WriteReplicaRequest.
// Stable identifiers: entries already committed to a consensus log must
// decode across versions, so numbers are never reassigned.
const (
	fieldReplicaID protowire.Number = 1
	fieldTenant    protowire.Number = 2
	fieldDBName    protowire.Number = 3
	fieldPrecision protowire.Number = 4
	fieldData      protowire.Number = 5
)

// Marshal encodes the request in protobuf wire format.
func (r *WriteReplicaRequest) Marshal() []byte {
	var out []byte
	out = protowire.AppendTag(out, fieldReplicaID, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(r.ReplicaID))
	out = protowire.AppendTag(out, fieldTenant, protowire.BytesType)
	out = protowire.AppendString(out, r.Tenant)
	out = protowire.AppendTag(out, fieldDBName, protowire.BytesType)
	out = protowire.AppendString(out, r.DBName)
	out = protowire.AppendTag(out, fieldPrecision, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(r.Precision))
	out = protowire.AppendTag(out, fieldData, protowire.BytesType)
	out = protowire.AppendBytes(out, r.Data)
	return out
}

// UnmarshalWriteReplicaRequest decodes the bytes produced by Marshal.
// Unknown fields are skipped so older nodes can apply entries written
// by newer ones.
func UnmarshalWriteReplicaRequest(data []byte) (*WriteReplicaRequest, error) {
	r := &WriteReplicaRequest{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &CommonError{Reason: "write replica request: bad field tag"}
		}
		data = data[n:]
		switch {
		case num == fieldReplicaID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, &CommonError{Reason: "write replica request: bad replica_id"}
			}
			r.ReplicaID = uint32(v)
			data = data[n:]
		case num == fieldTenant && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, &CommonError{Reason: "write replica request: bad tenant"}
			}
			r.Tenant = v
			data = data[n:]
		case num == fieldDBName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, &CommonError{Reason: "write replica request: bad db_name"}
			}
			r.DBName = v
			data = data[n:]
		case num == fieldPrecision && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, &CommonError{Reason: "write replica request: bad precision"}
			}
			r.Precision = Precision(v)
			data = data[n:]
		case num == fieldData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, &CommonError{Reason: "write replica request: bad data"}
			}
			r.Data = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, &CommonError{Reason: "write replica request: bad field value"}
			}
			data = data[n:]
		}
	}
	return r, nil
}

// StatusResponse is the wire-level outcome of a write or admin RPC:
// Code is SUCCESS or FAILED, and Data carries the error message when
// FAILED.
type StatusResponse struct {
	Code int32
	Data string
}

// statusResponseToError maps a response payload to a Go error: nil on
// SUCCESS, the response's message otherwise.
func statusResponseToError(resp *StatusResponse) error {
	if resp.Code == StatusSuccess {
		return nil
	}
	return &CommonError{Reason: resp.Data}
}

// NodeStatus is the reply to a Ping: the responding node's identity and
// build version.
type NodeStatus struct {
	NodeID  uint64
	Version string
}

// WriteClient is one node's remote write surface. A gRPC-backed
// implementation is out of scope; anything that can carry
// WriteReplicaRequest/StatusResponse satisfies it.
type WriteClient interface {
	WriteReplicaPoints(ctx context.Context, req *WriteReplicaRequest) (*StatusResponse, error)
	Ping(ctx context.Context) (*NodeStatus, error)
}

// ClientProvider resolves a node id to a WriteClient, typically by
// consulting the catalog's address book and dialing (or reusing) a
// connection.
type ClientProvider interface {
	WriteClient(ctx context.Context, nodeID uint64) (WriteClient, error)
}

// RaftAdminClient is the admin surface for consensus-group membership:
// each call targets one (tenant, db, vnode, replica) tuple and returns
// a StatusResponse the way the write RPC does.
type RaftAdminClient interface {
	OpenRaftNode(ctx context.Context, tenant, db string, vnodeID, replicaID uint32) (*StatusResponse, error)
	DropRaftNode(ctx context.Context, tenant, db string, vnodeID, replicaID uint32) (*StatusResponse, error)
	AddFollower(ctx context.Context, tenant, db string, vnodeID, replicaID uint32) (*StatusResponse, error)
	RemoveNode(ctx context.Context, tenant, db string, vnodeID, replicaID uint32) (*StatusResponse, error)
	DestroyGroup(ctx context.Context, tenant, db string, replicaID uint32) (*StatusResponse, error)
}

// TraceCarrier threads a trace context into outbound remote calls.
// Tracing setup is an external collaborator; the default carrier is a
// no-op.
type TraceCarrier interface {
	Inject(ctx context.Context) context.Context
}

// NopTraceCarrier injects nothing.
type NopTraceCarrier struct{}

func (NopTraceCarrier) Inject(ctx context.Context) context.Context { return ctx }

// VnodeInfo is one vnode's placement inside a replication set.
type VnodeInfo struct {
	VnodeID uint32
	NodeID  uint64
}

// ReplicationSet is the set of vnodes a consensus group replicates one
// shard's writes across.
type ReplicationSet struct {
	ID            uint32
	LeaderNodeID  uint64
	LeaderVnodeID uint32
	Vnodes        []VnodeInfo
}
