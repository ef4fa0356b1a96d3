package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOwner_AgreesWithGetNodesSingleResult(t *testing.T) {
	r := NewRing(50)
	r.AddNode("node1")
	r.AddNode("node2")
	r.AddNode("node3")

	for _, doc := range []string{"doc-a", "doc-b", "doc-c", "doc-d"} {
		owner, ok := r.Owner(doc)
		require.True(t, ok)

		nodes := r.GetNodes(doc, 1)
		require.Len(t, nodes, 1)
		require.Equal(t, nodes[0], owner)
	}
}

func TestOwner_EmptyRingReturnsFalse(t *testing.T) {
	r := NewRing(10)
	_, ok := r.Owner("doc-a")
	require.False(t, ok)
}

func TestMembershipOwner_ResolvesToALiveNode(t *testing.T) {
	m := NewMembership([]Node{
		{ID: "node1", Address: ":8080"},
		{ID: "node2", Address: ":8081"},
	}, 20)

	node, ok := m.Owner("doc-1")
	require.True(t, ok)
	require.Contains(t, []string{"node1", "node2"}, node.ID)
}
