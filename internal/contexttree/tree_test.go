package contexttree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleTree() []Context {
	return []Context{
		{
			ID:   "app1",
			Name: "App 1",
			Children: []Context{
				{ID: "sub1", Name: "Sub 1", Children: []Context{{ID: "leaf", Name: "Leaf"}}},
				{ID: "sub2", Name: "Sub 2"},
			},
		},
		{ID: "app2", Name: "App 2", Children: []Context{{ID: "other", Name: "Other"}}},
	}
}

func TestAncestorChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   string
		want []string
	}{
		{"app1", []string{"app1"}},
		{"sub1", []string{"app1", "sub1"}},
		{"leaf", []string{"app1", "sub1", "leaf"}},
		{"sub2", []string{"app1", "sub2"}},
		{"other", []string{"app2", "other"}},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			chain, ok := AncestorChain(sampleTree(), tt.id)
			require.True(t, ok)
			require.Equal(t, tt.want, chain)
		})
	}
}

func TestAncestorChainNotFound(t *testing.T) {
	t.Parallel()

	chain, ok := AncestorChain(sampleTree(), "missing")
	require.False(t, ok)
	require.Nil(t, chain)

	_, ok = AncestorChain(sampleTree(), "")
	require.False(t, ok)
}

func TestAncestorChainPropertiesHoldForEveryNode(t *testing.T) {
	t.Parallel()

	tree := sampleTree()
	index, err := Index(tree)
	require.NoError(t, err)

	for id := range index {
		chain, ok := AncestorChain(tree, id)
		require.True(t, ok)
		require.Equal(t, id, chain[len(chain)-1])
		for _, elem := range chain {
			require.Contains(t, index, elem)
		}
		if len(chain) >= 2 {
			parent := index[chain[len(chain)-2]]
			found := false
			for _, child := range parent.Children {
				if child.ID == id {
					found = true
				}
			}
			require.True(t, found, "%s should be a child of %s", id, parent.ID)
		}
	}
}

func TestApplicableChainPrependsGlobal(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{GlobalID, "app1", "sub1"}, ApplicableChain(sampleTree(), "sub1"))
	require.Equal(t, []string{GlobalID}, ApplicableChain(sampleTree(), "missing"))
	require.Equal(t, []string{GlobalID}, ApplicableChain(sampleTree(), GlobalID))
	require.Equal(t, []string{GlobalID}, ApplicableChain(nil, "sub1"))
}

func TestParent(t *testing.T) {
	t.Parallel()

	parent, ok := Parent(sampleTree(), "leaf")
	require.True(t, ok)
	require.Equal(t, "sub1", parent)

	parent, ok = Parent(sampleTree(), "app2")
	require.True(t, ok)
	require.Equal(t, "", parent)

	_, ok = Parent(sampleTree(), "missing")
	require.False(t, ok)
}

func TestFindReturnsNode(t *testing.T) {
	t.Parallel()

	node, ok := Find(sampleTree(), "sub2")
	require.True(t, ok)
	require.Equal(t, "Sub 2", node.Name)

	_, ok = Find(sampleTree(), "nope")
	require.False(t, ok)
}

func TestIndexRejectsDuplicates(t *testing.T) {
	t.Parallel()

	tree := sampleTree()
	tree[1].Children = append(tree[1].Children, Context{ID: "sub1", Name: "dup"})

	_, err := Index(tree)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate context id")

	_, err = Index([]Context{{ID: GlobalID, Name: "bad"}})
	require.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	tree := sampleTree()
	clone := Clone(tree)
	clone[0].Children[0].Name = "changed"

	require.Equal(t, "Sub 1", tree[0].Children[0].Name)
}
