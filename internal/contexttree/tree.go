// Package contexttree models the context hierarchy streams are indexed under
// and computes the ancestor chains used for inherited plugin assignment.
package contexttree

import "fmt"

// GlobalID is the sentinel context id for plugins assigned without a context
// restriction. It logically precedes every ancestor chain.
const GlobalID = "global"

// Context is a node in the context tree. Ids are unique across the whole tree.
type Context struct {
	ID          string    `json:"stream_id" yaml:"stream_id" validate:"required,context_id"`
	Name        string    `json:"name" yaml:"name" validate:"required,max=200"`
	Logo        string    `json:"logo,omitempty" yaml:"logo,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Children    []Context `json:"contexts,omitempty" yaml:"contexts,omitempty" validate:"omitempty,dive"`
}

// AncestorChain returns the ids from the root down to id, ending with id
// itself. The search is depth first and returns as soon as id is matched.
// The boolean is false when id does not exist in the tree.
func AncestorChain(roots []Context, id string) ([]string, bool) {
	if id == "" {
		return nil, false
	}
	path := make([]string, 0, 4)
	var walk func(nodes []Context) bool
	walk = func(nodes []Context) bool {
		for i := range nodes {
			node := &nodes[i]
			path = append(path, node.ID)
			if node.ID == id {
				return true
			}
			if walk(node.Children) {
				return true
			}
			path = path[:len(path)-1]
		}
		return false
	}
	if !walk(roots) {
		return nil, false
	}
	return path, true
}

// ApplicableChain returns the chain used to match plugin assignments: the
// global sentinel followed by AncestorChain. Unknown ids yield only the
// sentinel so that unrestricted plugins still apply.
func ApplicableChain(roots []Context, id string) []string {
	chain := []string{GlobalID}
	if id == GlobalID {
		return chain
	}
	ancestors, ok := AncestorChain(roots, id)
	if !ok {
		return chain
	}
	return append(chain, ancestors...)
}

// Parent returns the id of the parent of id. Root contexts report "" with ok
// set to true; unknown ids report ok false.
func Parent(roots []Context, id string) (string, bool) {
	chain, ok := AncestorChain(roots, id)
	if !ok {
		return "", false
	}
	if len(chain) < 2 {
		return "", true
	}
	return chain[len(chain)-2], true
}

// Find returns the node with the given id.
func Find(roots []Context, id string) (*Context, bool) {
	for i := range roots {
		if roots[i].ID == id {
			return &roots[i], true
		}
		if found, ok := Find(roots[i].Children, id); ok {
			return found, true
		}
	}
	return nil, false
}

// Index flattens the tree into an id lookup. It fails on the first
// duplicate id, which would make ancestor matching ambiguous.
func Index(roots []Context) (map[string]*Context, error) {
	index := make(map[string]*Context)
	var walk func(nodes []Context) error
	walk = func(nodes []Context) error {
		for i := range nodes {
			node := &nodes[i]
			if node.ID == GlobalID {
				return fmt.Errorf("context id %q is reserved", GlobalID)
			}
			if _, exists := index[node.ID]; exists {
				return fmt.Errorf("duplicate context id %q", node.ID)
			}
			index[node.ID] = node
			if err := walk(node.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(roots); err != nil {
		return nil, err
	}
	return index, nil
}

// Clone returns a deep copy of the tree.
func Clone(roots []Context) []Context {
	if roots == nil {
		return nil
	}
	out := make([]Context, len(roots))
	for i, node := range roots {
		out[i] = node
		out[i].Children = Clone(node.Children)
	}
	return out
}
