// Package oplog is the durable operation log and latest-value snapshot
// projection that the replica controller writes to on every accepted
// operation, and replays from on document activation after a restart.
//
// It stands in for the relational store the full system would use in
// production (operations/document_snapshots tables behind a real SQL
// driver): the on-disk shape here is an NDJSON write-ahead log plus one
// atomically-replaced JSON snapshot file holding every document, giving the same
// durability contract — append to the log, then project into the
// snapshot — without pulling in a database driver for a collaborator
// this module does not own.
package oplog

import (
	"github.com/hayley-d/collaborative-coding-backend/internal/rga"
	"github.com/hayley-d/collaborative-coding-backend/internal/s4vector"
)

// Record is one durable entry: a fully resolved operation against a single
// document, indexed by its S4Vector.
type Record struct {
	DocumentID string             `json:"document_id"`
	Kind       rga.Kind           `json:"kind"`
	ID         s4vector.S4Vector  `json:"id"`
	Value      []byte             `json:"value,omitempty"`
	Tombstone  bool               `json:"tombstone"`
	LeftID     *s4vector.S4Vector `json:"left_id,omitempty"`
	RightID    *s4vector.S4Vector `json:"right_id,omitempty"`
}

// FromDescriptor builds the log record for an operation the RGA engine just
// accepted locally or remotely. Tombstone is false for Insert/Update and
// true for Delete; Store.Append keeps an already-tombstoned row tombstoned,
// so the projected row mirrors the node's resulting state — matching the
// document_snapshots upsert this record projects into.
func FromDescriptor(documentID string, d rga.BroadcastDescriptor) Record {
	return Record{
		DocumentID: documentID,
		Kind:       d.Kind,
		ID:         d.ID,
		Value:      d.Value,
		Tombstone:  d.Kind == rga.Delete,
		LeftID:     d.LeftID,
		RightID:    d.RightID,
	}
}

// ToOperation converts a stored record back into an rga.Operation for
// replay during recovery.
func (r Record) ToOperation() rga.Operation {
	return rga.Operation{
		Kind:    r.Kind,
		ID:      r.ID,
		Value:   r.Value,
		LeftID:  r.LeftID,
		RightID: r.RightID,
	}
}
