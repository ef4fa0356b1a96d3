package rga

import (
	"testing"

	"github.com/hayley-d/collaborative-coding-backend/internal/s4vector"
	"github.com/stretchr/testify/require"
)

func TestLocalInsert_SequentialAppend(t *testing.T) {
	doc := New(1, 1)

	first, err := doc.LocalInsert([]byte("h"), nil, nil)
	require.NoError(t, err)

	_, err = doc.LocalInsert([]byte("i"), &first.ID, nil)
	require.NoError(t, err)

	got := doc.Read()
	require.Equal(t, [][]byte{[]byte("h"), []byte("i")}, got)
}

func TestLocalInsert_ConcurrentHeadInsertTieBreaksOnSid(t *testing.T) {
	// Two replicas independently insert at the document head (left=nil).
	// Both land with sum=1; the greater sid must win the head position on
	// every replica that observes both operations, regardless of arrival
	// order.
	a := New(1, 1)
	_, err := a.LocalInsert([]byte("A"), nil, nil)
	require.NoError(t, err)

	// Simulate remote delivery of the other replica's concurrent insert,
	// arriving after the local one.
	remoteID := s4vector.S4Vector{Ssn: 1, Sum: 1, Sid: 2, Seq: 1}
	err = a.RemoteApply(Operation{Kind: Insert, ID: remoteID, Value: []byte("B")})
	require.NoError(t, err)

	got := a.Read()
	require.Equal(t, [][]byte{[]byte("B"), []byte("A")}, got)

	// A second replica that sees the remote op first, then the local one
	// (with sid=1), converges to the identical order.
	b := New(1, 2)
	err = b.RemoteApply(Operation{Kind: Insert, ID: s4vector.S4Vector{Ssn: 1, Sum: 1, Sid: 1, Seq: 1}, Value: []byte("A")})
	require.NoError(t, err)
	err = b.RemoteApply(Operation{Kind: Insert, ID: remoteID, Value: []byte("B")})
	require.NoError(t, err)

	require.Equal(t, a.Read(), b.Read())
}

func TestLocalDelete_TombstonesWithoutRemovingFromIndex(t *testing.T) {
	doc := New(1, 1)
	n, err := doc.LocalInsert([]byte("x"), nil, nil)
	require.NoError(t, err)

	_, err = doc.LocalDelete(n.ID)
	require.NoError(t, err)

	require.Empty(t, doc.Read())

	node, ok := doc.NodeByID(n.ID)
	require.True(t, ok)
	require.True(t, node.Tombstone)
}

func TestRemoteApply_OutOfOrderDeleteBeforeInsertBuffers(t *testing.T) {
	doc := New(1, 1)

	unseenID := s4vector.S4Vector{Ssn: 1, Sum: 1, Sid: 2, Seq: 1}
	err := doc.RemoteApply(Operation{Kind: Delete, ID: unseenID})
	require.ErrorIs(t, err, ErrDependencyNotMet)
	require.Equal(t, 1, doc.PendingLen())
	require.Equal(t, 0, doc.Len())

	err = doc.RemoteApply(Operation{Kind: Insert, ID: unseenID, Value: []byte("late")})
	require.NoError(t, err)

	// The buffered delete should have been swept in automatically.
	require.Equal(t, 0, doc.PendingLen())
	require.Empty(t, doc.Read())

	node, ok := doc.NodeByID(unseenID)
	require.True(t, ok)
	require.True(t, node.Tombstone)
}

func TestRemoteApply_DuplicateInsertIsNoOp(t *testing.T) {
	doc := New(1, 1)
	n, err := doc.LocalInsert([]byte("x"), nil, nil)
	require.NoError(t, err)

	err = doc.RemoteApply(Operation{Kind: Insert, ID: n.ID, Value: []byte("x")})
	require.NoError(t, err)

	require.Equal(t, 1, doc.Len())
	require.Equal(t, [][]byte{[]byte("x")}, doc.Read())
}

func TestLocalInsert_MissingLeftAnchorBuffers(t *testing.T) {
	doc := New(1, 1)
	missing := s4vector.S4Vector{Ssn: 9, Sum: 9, Sid: 9, Seq: 9}

	_, err := doc.LocalInsert([]byte("orphan"), &missing, nil)
	require.ErrorIs(t, err, ErrDependencyNotMet)
	require.Equal(t, 1, doc.PendingLen())
	require.Equal(t, 0, doc.Len())
}

func TestRemoteApply_RightIDDoesNotGateApplication(t *testing.T) {
	// right_id is informational only: an insert naming a right neighbor
	// that has not yet arrived must still apply immediately.
	doc := New(1, 1)
	unseenRight := s4vector.S4Vector{Ssn: 1, Sum: 5, Sid: 5, Seq: 5}
	id := s4vector.S4Vector{Ssn: 1, Sum: 1, Sid: 1, Seq: 1}

	err := doc.RemoteApply(Operation{Kind: Insert, ID: id, Value: []byte("v"), RightID: &unseenRight})
	require.NoError(t, err)
	require.Equal(t, 0, doc.PendingLen())
	require.Equal(t, [][]byte{[]byte("v")}, doc.Read())
}

func TestSweepPending_PreservesOrderOfStillUnresolvedOps(t *testing.T) {
	doc := New(1, 1)

	missing1 := s4vector.S4Vector{Ssn: 1, Sum: 1, Sid: 1, Seq: 1}
	missing2 := s4vector.S4Vector{Ssn: 1, Sum: 2, Sid: 1, Seq: 2}

	_, err := doc.LocalInsert([]byte("a"), &missing1, nil)
	require.ErrorIs(t, err, ErrDependencyNotMet)
	_, err = doc.LocalInsert([]byte("b"), &missing2, nil)
	require.ErrorIs(t, err, ErrDependencyNotMet)

	require.Equal(t, 2, doc.PendingLen())

	err = doc.RemoteApply(Operation{Kind: Insert, ID: missing1, Value: []byte("root1")})
	require.NoError(t, err)

	require.Equal(t, 1, doc.PendingLen())
	require.Equal(t, [][]byte{[]byte("root1"), []byte("a")}, doc.Read())
}
