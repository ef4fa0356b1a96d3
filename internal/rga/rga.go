// Package rga implements the Replicated Growable Array: the causally ordered
// linked structure of nodes, tombstoning, the out-of-order dependency buffer,
// and the local/remote operation semantics that let every replica converge
// to the same visible sequence regardless of delivery order.
//
// The engine holds no lock of its own. Per the concurrency model, a single
// per-document mutex owned by the replica controller serializes every call
// into a Document; the engine is free to assume single-threaded access.
package rga

import (
	"errors"

	"github.com/hayley-d/collaborative-coding-backend/internal/s4vector"
)

// ErrDependencyNotMet signals that an operation's anchor or target is not yet
// present locally. The operation has been queued in the in-memory pending
// buffer for later retry; callers must not log it to the operation log.
var ErrDependencyNotMet = errors.New("rga: dependency not met")

// Kind identifies the flavor of an operation.
type Kind int

const (
	Insert Kind = iota
	Update
	Delete
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "Insert"
	case Update:
		return "Update"
	case Delete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// Node is a single element of the RGA.
type Node struct {
	ID        s4vector.S4Vector
	Value     []byte
	Tombstone bool

	// LeftID and RightID are birth anchors — the causal neighbors named at
	// insertion time. They never change after creation.
	LeftID  *s4vector.S4Vector
	RightID *s4vector.S4Vector

	// NextID is the node's actual in-list successor. It is derived and
	// mutated as later concurrent inserts land between existing nodes.
	NextID *s4vector.S4Vector
}

// Operation is a fully formed remote operation, or a locally produced one
// that has been buffered pending a missing anchor/target.
type Operation struct {
	Kind    Kind
	ID      s4vector.S4Vector
	Value   []byte
	LeftID  *s4vector.S4Vector
	RightID *s4vector.S4Vector
}

// BroadcastDescriptor is the canonical record of an accepted operation: it is
// what gets logged, published to peers, and later merged via RemoteApply.
type BroadcastDescriptor struct {
	Kind    Kind
	ID      s4vector.S4Vector
	Value   []byte
	LeftID  *s4vector.S4Vector
	RightID *s4vector.S4Vector
}

// Document is the RGA state for one collaborative document.
type Document struct {
	head *s4vector.S4Vector
	byID map[s4vector.S4Vector]*Node

	// pending holds operations awaiting a missing left-anchor or target,
	// in the order they were buffered.
	pending []Operation

	ssn uint64
	sid uint64

	seqCounter uint64

	// sweeping guards against re-entrant sweeps: an operation applied while
	// draining pending must not itself trigger a nested sweep.
	sweeping bool
}

// New creates an empty Document bound to the given session and replica (site)
// identifiers. ssn should be bumped by the caller on every document
// activation/restart to guard seq reuse across process restarts (see
// DESIGN.md for the session-lifecycle policy this module assumes).
func New(ssn, sid uint64) *Document {
	d := &Document{
		byID: make(map[s4vector.S4Vector]*Node),
	}
	return d.init(ssn, sid)
}

func (d *Document) init(ssn, sid uint64) *Document {
	d.ssn = ssn
	d.sid = sid
	return d
}

// Head returns the S4Vector of the first node in traversal order, if any.
func (d *Document) Head() (s4vector.S4Vector, bool) {
	if d.head == nil {
		return s4vector.S4Vector{}, false
	}
	return *d.head, true
}

// Len returns the number of nodes by_id owns, tombstoned or not.
func (d *Document) Len() int { return len(d.byID) }

// PendingLen returns the number of operations currently buffered awaiting
// dependencies.
func (d *Document) PendingLen() int { return len(d.pending) }

// NodeByID exposes a node for inspection (used by tests and snapshot load).
func (d *Document) NodeByID(id s4vector.S4Vector) (Node, bool) {
	n, ok := d.byID[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// LocalInsert mints a new S4Vector for value anchored at the optional left
// and right neighbors, links it into the list, and returns the broadcast
// descriptor to log and publish. If left is named but not yet present
// locally, the operation is buffered and ErrDependencyNotMet is returned.
func (d *Document) LocalInsert(value []byte, left, right *s4vector.S4Vector) (BroadcastDescriptor, error) {
	id := s4vector.Generate(left, right, d.ssn, d.sid, &d.seqCounter)

	if left != nil {
		if _, ok := d.byID[*left]; !ok {
			d.pending = append(d.pending, Operation{
				Kind: Insert, ID: id, Value: value, LeftID: left, RightID: right,
			})
			return BroadcastDescriptor{}, ErrDependencyNotMet
		}
	}

	node := &Node{ID: id, Value: value, LeftID: left, RightID: right}
	d.insertIntoList(node)
	d.byID[id] = node

	d.sweepPending()

	return BroadcastDescriptor{Kind: Insert, ID: id, Value: value, LeftID: left, RightID: right}, nil
}

// LocalUpdate mutates the value of id if it exists and is not tombstoned.
// If id is missing, the operation is buffered and ErrDependencyNotMet is
// returned.
func (d *Document) LocalUpdate(id s4vector.S4Vector, value []byte) (BroadcastDescriptor, error) {
	node, ok := d.byID[id]
	if !ok {
		d.pending = append(d.pending, Operation{Kind: Update, ID: id, Value: value})
		return BroadcastDescriptor{}, ErrDependencyNotMet
	}

	if !node.Tombstone {
		node.Value = value
	}

	d.sweepPending()

	return BroadcastDescriptor{Kind: Update, ID: id, Value: node.Value, LeftID: node.LeftID, RightID: node.RightID}, nil
}

// LocalDelete tombstones id. If id is missing, the operation is buffered and
// ErrDependencyNotMet is returned.
func (d *Document) LocalDelete(id s4vector.S4Vector) (BroadcastDescriptor, error) {
	node, ok := d.byID[id]
	if !ok {
		d.pending = append(d.pending, Operation{Kind: Delete, ID: id})
		return BroadcastDescriptor{}, ErrDependencyNotMet
	}

	node.Tombstone = true

	d.sweepPending()

	return BroadcastDescriptor{Kind: Delete, ID: id, LeftID: node.LeftID, RightID: node.RightID}, nil
}

// RemoteApply merges a fully formed remote operation. It is idempotent:
// duplicate inserts are silent no-ops, duplicate updates/deletes are
// idempotent by construction. If the operation's dependency is unmet, it is
// buffered and ErrDependencyNotMet is returned; the caller must not persist
// it to the log yet.
func (d *Document) RemoteApply(op Operation) error {
	switch op.Kind {
	case Insert:
		if _, exists := d.byID[op.ID]; exists {
			return nil // duplicate insert: silent no-op
		}
		if op.LeftID != nil {
			if _, ok := d.byID[*op.LeftID]; !ok {
				d.pending = append(d.pending, op)
				return ErrDependencyNotMet
			}
		}
		node := &Node{ID: op.ID, Value: op.Value, LeftID: op.LeftID, RightID: op.RightID}
		d.insertIntoList(node)
		d.byID[op.ID] = node

	case Update:
		node, ok := d.byID[op.ID]
		if !ok {
			d.pending = append(d.pending, op)
			return ErrDependencyNotMet
		}
		if !node.Tombstone {
			node.Value = op.Value
		}

	case Delete:
		node, ok := d.byID[op.ID]
		if !ok {
			d.pending = append(d.pending, op)
			return ErrDependencyNotMet
		}
		node.Tombstone = true
	}

	d.sweepPending()
	return nil
}

// Read returns the current live sequence: every non-tombstoned value in
// traversal order. Complexity is linear in list length including tombstones.
func (d *Document) Read() [][]byte {
	var out [][]byte
	cur := d.head
	for cur != nil {
		node, ok := d.byID[*cur]
		if !ok {
			break
		}
		if !node.Tombstone {
			out = append(out, node.Value)
		}
		cur = node.NextID
	}
	return out
}

// insertIntoList realizes the landing-slot algorithm: starting from the
// anchor (or virtual head anchor), advance through NextID while the
// successor's id is strictly greater than n's id, then splice n in just
// before the first successor that is not greater. This settles concurrent
// inserts at the same anchor in decreasing S4Vector order (invariant I3),
// deterministically on every replica regardless of delivery order.
func (d *Document) insertIntoList(n *Node) {
	if n.LeftID == nil {
		var prevID *s4vector.S4Vector
		cur := d.head
		for cur != nil {
			curNode := d.byID[*cur]
			if s4vector.Greater(curNode.ID, n.ID) {
				prevID = cur
				cur = curNode.NextID
				continue
			}
			break
		}

		if prevID == nil {
			n.NextID = d.head
			id := n.ID
			d.head = &id
			return
		}

		prevNode := d.byID[*prevID]
		n.NextID = prevNode.NextID
		id := n.ID
		prevNode.NextID = &id
		return
	}

	pos := *n.LeftID
	for {
		posNode, ok := d.byID[pos]
		if !ok || posNode.NextID == nil {
			break
		}
		nextNode := d.byID[*posNode.NextID]
		if nextNode != nil && s4vector.Greater(nextNode.ID, n.ID) {
			pos = *posNode.NextID
			continue
		}
		break
	}

	posNode := d.byID[pos]
	n.NextID = posNode.NextID
	id := n.ID
	posNode.NextID = &id
}

// sweepPending drains the dependency buffer in one forward pass: each entry
// whose left_id (insert) or target id (update/delete) is now present is
// applied and dropped from the buffer; the rest are retained in their
// original relative order. The pass is not re-entrant — an operation that is
// applied here but itself buffers a new dependent operation does not trigger
// another sweep within this call.
func (d *Document) sweepPending() {
	if d.sweeping || len(d.pending) == 0 {
		return
	}
	d.sweeping = true
	defer func() { d.sweeping = false }()

	queued := d.pending
	d.pending = nil

	for _, op := range queued {
		if !d.dependencyMet(op) {
			d.pending = append(d.pending, op)
			continue
		}
		d.applyResolved(op)
	}
}

func (d *Document) dependencyMet(op Operation) bool {
	switch op.Kind {
	case Insert:
		if op.LeftID == nil {
			return true
		}
		_, ok := d.byID[*op.LeftID]
		return ok
	default: // Update, Delete
		_, ok := d.byID[op.ID]
		return ok
	}
}

// applyResolved applies an operation already known to satisfy its
// dependency, without re-invoking sweepPending (the caller is already
// sweeping).
func (d *Document) applyResolved(op Operation) {
	switch op.Kind {
	case Insert:
		if _, exists := d.byID[op.ID]; exists {
			return
		}
		node := &Node{ID: op.ID, Value: op.Value, LeftID: op.LeftID, RightID: op.RightID}
		d.insertIntoList(node)
		d.byID[op.ID] = node
	case Update:
		if node, ok := d.byID[op.ID]; ok && !node.Tombstone {
			node.Value = op.Value
		}
	case Delete:
		if node, ok := d.byID[op.ID]; ok {
			node.Tombstone = true
		}
	}
}
