// Package controller implements the replica controller: the per-document
// orchestration that binds the RGA engine, the operation log, and the
// broadcast gateway together. It is the only thing in this replica allowed
// to call into an rga.Document — every local and remote operation is
// serialized through the document's own mutex before it ever reaches the
// engine, so the engine itself can stay single-threaded.
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hayley-d/collaborative-coding-backend/internal/broadcast"
	"github.com/hayley-d/collaborative-coding-backend/internal/oplog"
	"github.com/hayley-d/collaborative-coding-backend/internal/rga"
	"github.com/hayley-d/collaborative-coding-backend/internal/s4vector"
)

// documentState pairs one document's in-memory RGA with the mutex that
// serializes every local and remote operation against it.
type documentState struct {
	mu  sync.Mutex
	rga *rga.Document
}

// Controller owns every document this replica currently hosts.
type Controller struct {
	mu   sync.RWMutex
	docs map[string]*documentState

	log       *oplog.Store
	publisher broadcast.Publisher
	sid       uint64
	logger    zerolog.Logger

	// now is swappable in tests; defaults to time.Now.
	now func() time.Time
}

// New builds a Controller bound to the given durable log, broadcast
// publisher, and this replica's site ID (used as Sid in every S4Vector this
// replica mints).
func New(store *oplog.Store, publisher broadcast.Publisher, sid uint64, logger zerolog.Logger) *Controller {
	return &Controller{
		docs:      make(map[string]*documentState),
		log:       store,
		publisher: publisher,
		sid:       sid,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateDocument activates a brand-new document: a session number is minted
// from the current wall clock, guaranteeing it won't collide with a session
// number this or any other replica has already used for the same document
// ID, and the document is registered as empty.
func (c *Controller) CreateDocument(documentID string) (ssn uint64) {
	ssn = uint64(c.now().UnixNano())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[documentID] = &documentState{rga: rga.New(ssn, c.sid)}
	return ssn
}

// activate returns the document's state, loading it from the operation log
// on first touch if this replica process hasn't seen it yet. Per the
// durable log's scan-order guarantee, replaying the logged records in
// S4Vector order never stalls on a missing anchor.
func (c *Controller) activate(documentID string) (*documentState, error) {
	c.mu.RLock()
	state, ok := c.docs[documentID]
	c.mu.RUnlock()
	if ok {
		return state, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if state, ok := c.docs[documentID]; ok {
		return state, nil
	}

	records := c.log.LoadDocument(documentID)
	if len(records) == 0 {
		return nil, ErrDocumentNotFound
	}

	// A fresh session number for this activation: the seq counter restarts
	// at zero, so reusing a logged ssn would mint colliding S4Vectors.
	ssn := uint64(c.now().UnixNano())
	doc := rga.New(ssn, c.sid)
	for _, rec := range records {
		// Each logged row is the latest state of one node (an Update or
		// Delete overwrites the Insert's row), so rebuild the node from its
		// anchors and value, then re-apply its tombstone.
		op := rec.ToOperation()
		op.Kind = rga.Insert
		if err := doc.RemoteApply(op); err != nil {
			return nil, fmt.Errorf("replay %s: %w", rec.ID, err)
		}
		if rec.Tombstone {
			if err := doc.RemoteApply(rga.Operation{Kind: rga.Delete, ID: rec.ID}); err != nil {
				return nil, fmt.Errorf("replay %s: %w", rec.ID, err)
			}
		}
	}

	state = &documentState{rga: doc}
	c.docs[documentID] = state
	return state, nil
}

// ErrDocumentNotFound is returned when a document has neither been created
// in this process's lifetime nor has any logged history to recover from.
var ErrDocumentNotFound = fmt.Errorf("controller: document not found")

// Insert performs a local insert: lock, apply to the RGA engine, and on
// success durably log then publish before returning. If the anchor is not
// yet present, the operation is already buffered inside the engine and
// ErrPending is returned — per protocol, a pending operation is never
// logged or broadcast; it surfaces once its anchor arrives.
func (c *Controller) Insert(ctx context.Context, documentID string, value []byte, left, right *s4vector.S4Vector) (s4vector.S4Vector, error) {
	return c.localOp(ctx, documentID, func(doc *rga.Document) (rga.BroadcastDescriptor, error) {
		return doc.LocalInsert(value, left, right)
	})
}

// Update performs a local update, following the same protocol as Insert.
func (c *Controller) Update(ctx context.Context, documentID string, id s4vector.S4Vector, value []byte) (s4vector.S4Vector, error) {
	return c.localOp(ctx, documentID, func(doc *rga.Document) (rga.BroadcastDescriptor, error) {
		return doc.LocalUpdate(id, value)
	})
}

// Delete performs a local delete, following the same protocol as Insert.
func (c *Controller) Delete(ctx context.Context, documentID string, id s4vector.S4Vector) (s4vector.S4Vector, error) {
	return c.localOp(ctx, documentID, func(doc *rga.Document) (rga.BroadcastDescriptor, error) {
		return doc.LocalDelete(id)
	})
}

// ErrPending is returned when a local operation could not be applied yet
// because it names an anchor or target this replica hasn't observed.
var ErrPending = rga.ErrDependencyNotMet

func (c *Controller) localOp(ctx context.Context, documentID string, op func(*rga.Document) (rga.BroadcastDescriptor, error)) (s4vector.S4Vector, error) {
	state, err := c.activate(documentID)
	if err != nil {
		return s4vector.S4Vector{}, err
	}

	state.mu.Lock()
	desc, err := op(state.rga)
	state.mu.Unlock()

	if err != nil {
		// ErrDependencyNotMet: the engine has already buffered the
		// operation. Nothing is logged or published for a pending op.
		return s4vector.S4Vector{}, err
	}

	rec := oplog.FromDescriptor(documentID, desc)
	if _, err := c.log.Append(rec); err != nil {
		return s4vector.S4Vector{}, fmt.Errorf("log append: %w", err)
	}

	// Publish is best-effort: the operation is already durable, and the
	// transport retries delivery on its own. A publish failure is logged
	// and the caller still succeeds; the operation is not re-sent later.
	env := broadcast.Envelope{OriginSid: c.sid, Record: rec}
	if err := c.publisher.Publish(ctx, env); err != nil {
		c.logger.Warn().Err(err).Str("document_id", documentID).Msg("broadcast publish failed")
	}

	return desc.ID, nil
}

// ApplyRemote merges an operation delivered by the broadcast gateway. It is
// idempotent and does not re-publish: the peer that produced the operation
// is responsible for its own broadcast fan-out.
func (c *Controller) ApplyRemote(documentID string, env broadcast.Envelope) error {
	state, err := c.activateOrCreateForRemote(documentID, env.Record.ID.Ssn)
	if err != nil {
		return err
	}

	state.mu.Lock()
	applyErr := state.rga.RemoteApply(env.Record.ToOperation())
	state.mu.Unlock()

	if applyErr != nil && applyErr != rga.ErrDependencyNotMet {
		return applyErr
	}

	// Idempotent: a duplicate delivery of a record already logged is a
	// cheap no-op. A record still pending its anchor is also logged now —
	// the log is a record of everything ever durably observed, buffered
	// or not, so a later restart's recovery scan sees it too.
	if _, err := c.log.Append(env.Record); err != nil {
		return fmt.Errorf("log append: %w", err)
	}
	return nil
}

func (c *Controller) activateOrCreateForRemote(documentID string, ssn uint64) (*documentState, error) {
	state, err := c.activate(documentID)
	if err == nil {
		return state, nil
	}
	if err != ErrDocumentNotFound {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if state, ok := c.docs[documentID]; ok {
		return state, nil
	}
	state = &documentState{rga: rga.New(ssn, c.sid)}
	c.docs[documentID] = state
	return state, nil
}

// Read returns the current live sequence of documentID.
func (c *Controller) Read(documentID string) ([][]byte, error) {
	state, err := c.activate(documentID)
	if err != nil {
		return nil, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.rga.Read(), nil
}
