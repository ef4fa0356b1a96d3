package cluster

import (
	"fmt"
	"sync"

	"github.com/hayley-d/collaborative-coding-backend/internal/broadcast"
)

// Node represents a single replica in the cluster: a process hosting a
// subset of documents, reachable for both routing (via the consistent hash
// ring) and broadcast fan-out.
type Node struct {
	ID      string `json:"id"`
	Address string `json:"address"` // host:port
	IsAlive bool   `json:"is_alive"`
}

// Membership tracks which replicas are in the cluster.
// In production you would replace this with a gossip protocol (e.g. SWIM/Serf),
// but static membership is the right starting point.
type Membership struct {
	mu    sync.RWMutex
	nodes map[string]*Node // nodeID → Node
	ring  *Ring
}

// NewMembership creates membership seeded with the provided node list.
func NewMembership(nodes []Node, vnodes int) *Membership {
	m := &Membership{
		nodes: make(map[string]*Node),
		ring:  NewRing(vnodes),
	}
	for i := range nodes {
		n := nodes[i]
		n.IsAlive = true
		m.nodes[n.ID] = &n
		m.ring.AddNode(n.ID)
	}
	return m
}

// Join adds a new node to the cluster.
func (m *Membership) Join(node Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[node.ID]; ok {
		return fmt.Errorf("node %s already in cluster", node.ID)
	}
	node.IsAlive = true
	m.nodes[node.ID] = &node
	m.ring.AddNode(node.ID)
	return nil
}

// Leave removes a node from the cluster (graceful departure).
func (m *Membership) Leave(nodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[nodeID]; !ok {
		return fmt.Errorf("node %s not in cluster", nodeID)
	}
	delete(m.nodes, nodeID)
	m.ring.RemoveNode(nodeID)
	return nil
}

// GetNode returns the Node for a given ID.
func (m *Membership) GetNode(id string) (*Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	return n, ok
}

// All returns a copy of all current nodes.
func (m *Membership) All() []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, *n)
	}
	return out
}

// Ring exposes the consistent-hash ring for key routing.
func (m *Membership) Ring() *Ring {
	return m.ring
}

// ReplicaNodes returns the n replicas the consistent hash ring assigns to
// documentID, in ring order; the first is the replica Owner returns.
func (m *Membership) ReplicaNodes(documentID string, n int) []*Node {
	ids := m.ring.GetNodes(documentID, n)
	m.mu.RLock()
	defer m.mu.RUnlock()

	var nodes []*Node
	for _, id := range ids {
		if node, ok := m.nodes[id]; ok {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// Owner returns the single replica the consistent hash ring assigns
// ownership of documentID to. The reference reverse proxy uses this for
// its per-request routing decision, where ReplicaNodes(documentID, N>1)
// would do unneeded work to produce a list it only ever takes index 0 of.
func (m *Membership) Owner(documentID string) (*Node, bool) {
	id, ok := m.ring.Owner(documentID)
	if !ok {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	node, ok := m.nodes[id]
	return node, ok
}

// Peers satisfies broadcast.PeerLister: every live member is a broadcast
// destination, since the broadcast gateway fans out to the whole cluster
// rather than a quorum subset.
func (m *Membership) Peers() []broadcast.Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	peers := make([]broadcast.Peer, 0, len(m.nodes))
	for _, n := range m.nodes {
		if !n.IsAlive {
			continue
		}
		peers = append(peers, broadcast.Peer{ID: n.ID, Address: n.Address})
	}
	return peers
}
