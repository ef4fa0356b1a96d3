package broadcast

import (
	"context"
	"errors"
	"testing"

	"github.com/hayley-d/collaborative-coding-backend/internal/oplog"
	"github.com/hayley-d/collaborative-coding-backend/internal/rga"
	"github.com/hayley-d/collaborative-coding-backend/internal/s4vector"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishFansOutToAllSubscribers(t *testing.T) {
	b := New()

	var calls int
	b.Subscribe(func(ctx context.Context, env Envelope) error {
		calls++
		return nil
	})
	b.Subscribe(func(ctx context.Context, env Envelope) error {
		calls++
		return nil
	})

	env := Envelope{OriginSid: 1, Record: oplog.Record{
		DocumentID: "doc-1",
		Kind:       rga.Insert,
		ID:         s4vector.S4Vector{Ssn: 1, Sum: 1, Sid: 1, Seq: 1},
	}}

	err := b.Publish(context.Background(), env)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestBus_PublishContinuesAfterHandlerError(t *testing.T) {
	b := New()

	var secondCalled bool
	b.Subscribe(func(ctx context.Context, env Envelope) error {
		return errors.New("boom")
	})
	b.Subscribe(func(ctx context.Context, env Envelope) error {
		secondCalled = true
		return nil
	})

	err := b.Publish(context.Background(), Envelope{})
	require.Error(t, err)
	require.True(t, secondCalled)
}
