// Package catalog defines the narrow metadata contract the write path
// consults: vnode placement lookups, tenant resolution, and replica-set
// leader promotion. The full catalog service is an external
// collaborator; this package carries its interface plus an in-memory
// implementation sufficient for a single node and for tests.
package catalog

import (
	"context"
	"fmt"
	"sync"
)

// VnodeAllInfo is everything the leader-change handler needs to know
// about one vnode: where it lives and which shard it belongs to.
type VnodeAllInfo struct {
	VnodeID    uint32
	NodeID     uint64
	TenantName string
	DBName     string
	BucketID   uint32
	ReplicaID  uint32
}

// TenantMeta exposes the per-tenant mutations the write path performs.
type TenantMeta interface {
	// ChangeReplicaSetLeader records that vnodeID (living on nodeID) is
	// now the leader of replicaID within dbName/bucketID.
	ChangeReplicaSetLeader(ctx context.Context, dbName string, bucketID uint32, replicaID uint32, nodeID uint64, vnodeID uint32) error
}

// Catalog is the metadata surface the coordinator depends on.
type Catalog interface {
	// VnodeAllInfo resolves a vnode's placement within a tenant.
	VnodeAllInfo(ctx context.Context, tenant string, vnodeID uint32) (VnodeAllInfo, error)
	// TenantMeta resolves a tenant's mutation handle.
	TenantMeta(ctx context.Context, tenant string) (TenantMeta, error)
	// NodeAddr resolves a node id to its RPC address.
	NodeAddr(ctx context.Context, nodeID uint64) (string, error)
}

// TenantNotFound reports a lookup against a tenant the catalog does not
// know.
type TenantNotFound struct {
	Name string
}

func (e *TenantNotFound) Error() string { return fmt.Sprintf("tenant not found: %s", e.Name) }

func (e *TenantNotFound) Is(target error) bool {
	_, ok := target.(*TenantNotFound)
	return ok
}

// VnodeNotFound reports a lookup against a vnode id the catalog has no
// placement for.
type VnodeNotFound struct {
	VnodeID uint32
}

func (e *VnodeNotFound) Error() string { return fmt.Sprintf("vnode not found: %d", e.VnodeID) }

func (e *VnodeNotFound) Is(target error) bool {
	_, ok := target.(*VnodeNotFound)
	return ok
}

// ReplicaSetNotFound reports a leader promotion against an unknown
// replica set.
type ReplicaSetNotFound struct {
	ReplicaID uint32
}

func (e *ReplicaSetNotFound) Error() string {
	return fmt.Sprintf("replica set not found: %d", e.ReplicaID)
}

func (e *ReplicaSetNotFound) Is(target error) bool {
	_, ok := target.(*ReplicaSetNotFound)
	return ok
}

// NodeNotFound reports an address lookup for an unknown node id.
type NodeNotFound struct {
	NodeID uint64
}

func (e *NodeNotFound) Error() string { return fmt.Sprintf("node not found: %d", e.NodeID) }

func (e *NodeNotFound) Is(target error) bool {
	_, ok := target.(*NodeNotFound)
	return ok
}

// MemCatalog is an in-memory Catalog. Mutations take the write lock;
// lookups take the read lock.
type MemCatalog struct {
	mu      sync.RWMutex
	tenants map[string]*memTenant
	nodes   map[uint64]string
}

type memTenant struct {
	catalog *MemCatalog
	name    string
	vnodes  map[uint32]VnodeAllInfo
	leaders map[uint32]uint32 // replica id -> leader vnode id
}

func NewMemCatalog() *MemCatalog {
	return &MemCatalog{
		tenants: make(map[string]*memTenant),
		nodes:   make(map[uint64]string),
	}
}

// AddTenant registers a tenant; it is a no-op when the tenant already
// exists.
func (c *MemCatalog) AddTenant(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tenants[name]; !ok {
		c.tenants[name] = &memTenant{
			catalog: c,
			name:    name,
			vnodes:  make(map[uint32]VnodeAllInfo),
			leaders: make(map[uint32]uint32),
		}
	}
}

// AddNode registers a node id's RPC address.
func (c *MemCatalog) AddNode(nodeID uint64, addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[nodeID] = addr
}

// AddVnode registers a vnode's placement under its tenant, creating the
// tenant if needed.
func (c *MemCatalog) AddVnode(info VnodeAllInfo) {
	c.AddTenant(info.TenantName)
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tenants[info.TenantName]
	t.vnodes[info.VnodeID] = info
	if _, ok := t.leaders[info.ReplicaID]; !ok {
		t.leaders[info.ReplicaID] = info.VnodeID
	}
}

func (c *MemCatalog) VnodeAllInfo(_ context.Context, tenant string, vnodeID uint32) (VnodeAllInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tenants[tenant]
	if !ok {
		return VnodeAllInfo{}, &TenantNotFound{Name: tenant}
	}
	info, ok := t.vnodes[vnodeID]
	if !ok {
		return VnodeAllInfo{}, &VnodeNotFound{VnodeID: vnodeID}
	}
	return info, nil
}

func (c *MemCatalog) TenantMeta(_ context.Context, tenant string) (TenantMeta, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tenants[tenant]
	if !ok {
		return nil, &TenantNotFound{Name: tenant}
	}
	return t, nil
}

func (c *MemCatalog) NodeAddr(_ context.Context, nodeID uint64) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	addr, ok := c.nodes[nodeID]
	if !ok {
		return "", &NodeNotFound{NodeID: nodeID}
	}
	return addr, nil
}

// ReplicaSetLeader returns the vnode currently recorded as leader for a
// replica set.
func (c *MemCatalog) ReplicaSetLeader(tenant string, replicaID uint32) (uint32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tenants[tenant]
	if !ok {
		return 0, false
	}
	id, ok := t.leaders[replicaID]
	return id, ok
}

func (t *memTenant) ChangeReplicaSetLeader(_ context.Context, _ string, _ uint32, replicaID uint32, _ uint64, vnodeID uint32) error {
	t.catalog.mu.Lock()
	defer t.catalog.mu.Unlock()
	if _, ok := t.leaders[replicaID]; !ok {
		return &ReplicaSetNotFound{ReplicaID: replicaID}
	}
	t.leaders[replicaID] = vnodeID
	return nil
}
