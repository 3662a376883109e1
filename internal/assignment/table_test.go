package assignment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/variables"
)

func entry(plugin, ctx, id string) Assignment {
	return Assignment{Key: Key{PluginID: plugin, ContextID: ctx, UUID: id}, Variables: variables.Values{"id": id}}
}

func TestTableLookups(t *testing.T) {
	t.Parallel()

	table, err := New([]Assignment{
		entry("p", "app1", "u1"),
		entry("q", "global", "u2"),
		entry("p", "sub1", "u3"),
		entry("p", "app1", "u4"),
	})
	require.NoError(t, err)
	require.Equal(t, 4, table.Len())

	got := table.Lookup("p", "app1")
	require.Len(t, got, 2)
	require.Equal(t, "u1", got[0].UUID)
	require.Equal(t, "u4", got[1].UUID)

	chain := table.OnChain("p", []string{"global", "app1", "sub1"})
	uuids := make([]string, 0, len(chain))
	for _, a := range chain {
		uuids = append(uuids, a.UUID)
	}
	require.Equal(t, []string{"u1", "u4", "u3"}, uuids)

	require.Len(t, table.ForPlugin("p"), 3)
	require.Len(t, table.All(), 4)

	a, ok := table.Get(Key{PluginID: "q", ContextID: "global", UUID: "u2"})
	require.True(t, ok)
	require.Equal(t, "u2", a.Variables["id"])

	_, ok = table.Get(Key{PluginID: "q", ContextID: "app1", UUID: "u2"})
	require.False(t, ok)
}

func TestTableRejectsDuplicateAndIncompleteKeys(t *testing.T) {
	t.Parallel()

	_, err := New([]Assignment{entry("p", "app1", "u1"), entry("p", "app1", "u1")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "more than once")

	_, err = New([]Assignment{entry("p", "", "u1")})
	require.Error(t, err)

	_, err = New([]Assignment{entry("p", "app1", "u1"), entry("p", "app2", "u1")})
	require.NoError(t, err, "same uuid on different contexts is a distinct key")
}

func TestNilTableIsEmpty(t *testing.T) {
	t.Parallel()

	var table *Table
	require.Equal(t, 0, table.Len())
	require.Empty(t, table.Lookup("p", "c"))
	require.Empty(t, table.OnChain("p", []string{"c"}))
	require.Empty(t, table.All())
	_, ok := table.Get(Key{})
	require.False(t, ok)
}
