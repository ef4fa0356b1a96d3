// Package broadcast is the outbound publish / inbound subscribe gateway
// that sits between a replica's controller and its peers. Delivery is
// at-least-once and may reorder — duplicate suppression and out-of-order
// buffering are the RGA engine's job, not this package's.
//
// The out-of-scope production transport (the original system's AWS SNS
// topic) is modeled here as the Publisher/Subscriber interface pair; Bus is
// an in-process fan-out implementation usable standalone or as the local
// delivery leg behind a real broker.
package broadcast

import (
	"context"

	"github.com/hayley-d/collaborative-coding-backend/internal/oplog"
)

// Envelope is the canonical wire shape of a broadcast operation: a record
// plus the replica it originated from, so subscribers can distinguish
// self-originated echoes from genuine remote operations.
type Envelope struct {
	OriginSid uint64       `json:"origin_sid"`
	Record    oplog.Record `json:"record"`
}

// Publisher sends an envelope toward every subscriber of a document's topic.
// Implementations may be best-effort: a publish error does not undo the
// local apply that already happened, per the at-least-once delivery model.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Handler processes an inbound envelope delivered by a Subscriber.
type Handler func(ctx context.Context, env Envelope) error

// Subscriber registers a Handler to be invoked for every envelope a
// transport delivers.
type Subscriber interface {
	Subscribe(handler Handler)
}

// Bus is an in-process Publisher and Subscriber: Publish fans an envelope
// out to every registered handler synchronously. It is the default wiring
// for a single-process deployment or for tests; a production deployment
// swaps in a networked Publisher/Subscriber pair behind the same
// interfaces without touching the controller.
type Bus struct {
	handlers []Handler
}

// New returns an empty, ready-to-use Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers handler to receive every future published envelope.
func (b *Bus) Subscribe(handler Handler) {
	b.handlers = append(b.handlers, handler)
}

// Publish fans env out to every subscribed handler. Handler errors are
// collected but do not stop delivery to the remaining subscribers —
// at-least-once semantics mean a failed delivery is retried by the
// transport, not synthesized here.
func (b *Bus) Publish(ctx context.Context, env Envelope) error {
	var firstErr error
	for _, h := range b.handlers {
		if err := h(ctx, env); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
