package controller

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hayley-d/collaborative-coding-backend/internal/broadcast"
	"github.com/hayley-d/collaborative-coding-backend/internal/oplog"
	"github.com/hayley-d/collaborative-coding-backend/internal/s4vector"
)

func newTestController(t *testing.T, dataDir string, sid uint64) (*Controller, *oplog.Store) {
	t.Helper()
	store, err := oplog.Open(dataDir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, broadcast.New(), sid, zerolog.Nop()), store
}

func TestInsert_LogsAndPublishes(t *testing.T) {
	c, log := newTestController(t, t.TempDir(), 1)
	ssn := c.CreateDocument("doc-1")
	require.NotZero(t, ssn)

	var published []broadcast.Envelope
	bus := broadcast.New()
	bus.Subscribe(func(ctx context.Context, env broadcast.Envelope) error {
		published = append(published, env)
		return nil
	})
	c.publisher = bus

	id, err := c.Insert(context.Background(), "doc-1", []byte("a"), nil, nil)
	require.NoError(t, err)
	require.NotZero(t, id.Seq)

	require.Len(t, published, 1)
	require.Equal(t, id, published[0].Record.ID)
	require.True(t, log.Has("doc-1", id))
}

func TestInsert_PendingOperationNotLogged(t *testing.T) {
	c, log := newTestController(t, t.TempDir(), 1)
	c.CreateDocument("doc-1")

	missing := s4vector.S4Vector{Ssn: 9, Sum: 9, Sid: 9, Seq: 9}
	_, err := c.Insert(context.Background(), "doc-1", []byte("orphan"), &missing, nil)
	require.ErrorIs(t, err, ErrPending)
	require.False(t, log.Has("doc-1", missing))
}

func TestApplyRemote_IdempotentAndLogged(t *testing.T) {
	c, log := newTestController(t, t.TempDir(), 1)
	local, _ := newTestController(t, t.TempDir(), 2)
	local.CreateDocument("doc-1")

	id, err := local.Insert(context.Background(), "doc-1", []byte("v"), nil, nil)
	require.NoError(t, err)

	env := broadcast.Envelope{OriginSid: 2, Record: oplog.Record{
		DocumentID: "doc-1", Kind: 0, ID: id, Value: []byte("v"),
	}}

	require.NoError(t, c.ApplyRemote("doc-1", env))
	require.NoError(t, c.ApplyRemote("doc-1", env)) // duplicate delivery: still no error
	require.True(t, log.Has("doc-1", id))

	values, err := c.Read("doc-1")
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("v")}, values)
}

func TestActivate_RecoversFromLogAfterRestart(t *testing.T) {
	dir := t.TempDir()

	store, err := oplog.Open(dir)
	require.NoError(t, err)
	c1 := New(store, broadcast.New(), 1, zerolog.Nop())
	c1.CreateDocument("doc-1")
	id, err := c1.Insert(context.Background(), "doc-1", []byte("persisted"), nil, nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := oplog.Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	c2 := New(reopened, broadcast.New(), 1, zerolog.Nop())
	values, err := c2.Read("doc-1")
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("persisted")}, values)
	require.True(t, reopened.Has("doc-1", id))
}

func TestActivate_RecoversDeleteAfterRestart(t *testing.T) {
	dir := t.TempDir()

	store, err := oplog.Open(dir)
	require.NoError(t, err)
	c1 := New(store, broadcast.New(), 1, zerolog.Nop())
	c1.CreateDocument("doc-1")

	idA, err := c1.Insert(context.Background(), "doc-1", []byte("A"), nil, nil)
	require.NoError(t, err)
	_, err = c1.Insert(context.Background(), "doc-1", []byte("B"), &idA, nil)
	require.NoError(t, err)
	_, err = c1.Delete(context.Background(), "doc-1", idA)
	require.NoError(t, err)

	require.True(t, store.Has("doc-1", idA), "the delete must overwrite the insert's row, not no-op")
	require.NoError(t, store.Close())

	reopened, err := oplog.Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	c2 := New(reopened, broadcast.New(), 1, zerolog.Nop())
	values, err := c2.Read("doc-1")
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("B")}, values)
}

func TestApplyRemote_OutOfOrderBuffersAndLogsOnRecovery(t *testing.T) {
	c, log := newTestController(t, t.TempDir(), 1)

	unseen := s4vector.S4Vector{Ssn: 1, Sum: 1, Sid: 2, Seq: 1}
	delEnv := broadcast.Envelope{OriginSid: 2, Record: oplog.Record{
		DocumentID: "doc-1", Kind: 2, ID: unseen,
	}}

	err := c.ApplyRemote("doc-1", delEnv)
	require.NoError(t, err) // pending is not an error at the controller boundary
	require.True(t, log.Has("doc-1", unseen))
}
