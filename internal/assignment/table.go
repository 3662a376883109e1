// Package assignment holds the plugin-to-context assignment table.
package assignment

import (
	"fmt"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/variables"
)

// Key identifies one assignment. The same plugin may be assigned to the same
// context several times; the uuid tells those assignments apart.
type Key struct {
	PluginID  string
	ContextID string
	UUID      string
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%s#%s", k.PluginID, k.ContextID, k.UUID)
}

// Assignment binds a plugin to a context with its per-context variable values.
type Assignment struct {
	Key
	Variables variables.Values
}

// Table is an immutable, insertion-ordered assignment table.
type Table struct {
	entries []Assignment
	byKey   map[Key]int
	byPair  map[pair][]int
}

type pair struct {
	plugin  string
	context string
}

// New builds a table, refusing duplicate keys and incomplete keys.
func New(entries []Assignment) (*Table, error) {
	t := &Table{
		entries: make([]Assignment, 0, len(entries)),
		byKey:   make(map[Key]int, len(entries)),
		byPair:  make(map[pair][]int),
	}
	for _, entry := range entries {
		if entry.PluginID == "" || entry.ContextID == "" || entry.UUID == "" {
			return nil, fmt.Errorf("assignment %s has an incomplete key", entry.Key)
		}
		if _, dup := t.byKey[entry.Key]; dup {
			return nil, fmt.Errorf("assignment %s declared more than once", entry.Key)
		}
		idx := len(t.entries)
		t.entries = append(t.entries, entry)
		t.byKey[entry.Key] = idx
		p := pair{entry.PluginID, entry.ContextID}
		t.byPair[p] = append(t.byPair[p], idx)
	}
	return t, nil
}

// Len returns the number of assignments.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Get returns an assignment by key.
func (t *Table) Get(key Key) (Assignment, bool) {
	if t == nil {
		return Assignment{}, false
	}
	idx, ok := t.byKey[key]
	if !ok {
		return Assignment{}, false
	}
	return t.entries[idx], true
}

// Lookup returns the assignments of plugin on context in table order.
func (t *Table) Lookup(pluginID, contextID string) []Assignment {
	if t == nil {
		return nil
	}
	idxs := t.byPair[pair{pluginID, contextID}]
	out := make([]Assignment, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, t.entries[idx])
	}
	return out
}

// OnChain returns the assignments of plugin on any context of chain, in
// chain order and then table order.
func (t *Table) OnChain(pluginID string, chain []string) []Assignment {
	var out []Assignment
	for _, ctx := range chain {
		out = append(out, t.Lookup(pluginID, ctx)...)
	}
	return out
}

// ForPlugin returns every assignment of plugin in table order.
func (t *Table) ForPlugin(pluginID string) []Assignment {
	if t == nil {
		return nil
	}
	var out []Assignment
	for _, entry := range t.entries {
		if entry.PluginID == pluginID {
			out = append(out, entry)
		}
	}
	return out
}

// All returns every assignment in table order.
func (t *Table) All() []Assignment {
	if t == nil {
		return nil
	}
	return append([]Assignment(nil), t.entries...)
}
