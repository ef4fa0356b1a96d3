package oplog

import (
	"testing"

	"github.com/hayley-d/collaborative-coding-backend/internal/rga"
	"github.com/hayley-d/collaborative-coding-backend/internal/s4vector"
	"github.com/stretchr/testify/require"
)

func TestAppend_IdempotentOnDuplicateID(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	rec := Record{DocumentID: "doc-1", Kind: rga.Insert, ID: s4vector.S4Vector{Ssn: 1, Sum: 1, Sid: 1, Seq: 1}, Value: []byte("a")}

	applied, err := s.Append(rec)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = s.Append(rec)
	require.NoError(t, err)
	require.False(t, applied)

	require.Len(t, s.LoadDocument("doc-1"), 1)
}

func TestAppend_DeleteOverwritesInsertAtSameID(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	id := s4vector.S4Vector{Ssn: 1, Sum: 1, Sid: 1, Seq: 1}
	insert := Record{DocumentID: "doc-1", Kind: rga.Insert, ID: id, Value: []byte("a")}
	applied, err := s.Append(insert)
	require.NoError(t, err)
	require.True(t, applied)

	del := Record{DocumentID: "doc-1", Kind: rga.Delete, ID: id, Tombstone: true}
	applied, err = s.Append(del)
	require.NoError(t, err)
	require.True(t, applied, "a Delete at an already-logged ID must overwrite, not no-op")

	records := s.LoadDocument("doc-1")
	require.Len(t, records, 1)
	require.True(t, records[0].Tombstone)
	require.Equal(t, rga.Delete, records[0].Kind)
}

func TestAppend_UpdateOverwritesValueAtSameID(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	id := s4vector.S4Vector{Ssn: 1, Sum: 1, Sid: 1, Seq: 1}
	insert := Record{DocumentID: "doc-1", Kind: rga.Insert, ID: id, Value: []byte("a")}
	_, err = s.Append(insert)
	require.NoError(t, err)

	update := Record{DocumentID: "doc-1", Kind: rga.Update, ID: id, Value: []byte("b")}
	applied, err := s.Append(update)
	require.NoError(t, err)
	require.True(t, applied)

	records := s.LoadDocument("doc-1")
	require.Len(t, records, 1)
	require.Equal(t, []byte("b"), records[0].Value)
}

func TestLoadDocument_OrdersByS4Vector(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	late := Record{DocumentID: "doc-1", Kind: rga.Insert, ID: s4vector.S4Vector{Ssn: 1, Sum: 2, Sid: 1, Seq: 2}}
	early := Record{DocumentID: "doc-1", Kind: rga.Insert, ID: s4vector.S4Vector{Ssn: 1, Sum: 1, Sid: 1, Seq: 1}}

	_, err = s.Append(late)
	require.NoError(t, err)
	_, err = s.Append(early)
	require.NoError(t, err)

	records := s.LoadDocument("doc-1")
	require.Len(t, records, 2)
	require.Equal(t, early.ID, records[0].ID)
	require.Equal(t, late.ID, records[1].ID)
}

func TestSnapshotAndReopen_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)

	rec := Record{DocumentID: "doc-1", Kind: rga.Insert, ID: s4vector.S4Vector{Ssn: 1, Sum: 1, Sid: 1, Seq: 1}, Value: []byte("x")}
	_, err = s.Append(rec)
	require.NoError(t, err)
	require.NoError(t, s.Snapshot())
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	records := reopened.LoadDocument("doc-1")
	require.Len(t, records, 1)
	require.Equal(t, rec.ID, records[0].ID)
}

func TestReopen_ReplaysUnsnapshottedLogEntries(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	rec := Record{DocumentID: "doc-1", Kind: rga.Insert, ID: s4vector.S4Vector{Ssn: 1, Sum: 1, Sid: 1, Seq: 1}}
	_, err = s.Append(rec)
	require.NoError(t, err)
	require.NoError(t, s.Close()) // no Snapshot() call: entry only lives in the log

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	require.True(t, reopened.Has("doc-1", rec.ID))
}
