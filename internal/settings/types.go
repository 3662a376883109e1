// Package settings models the persisted OrbisDB configuration object: the
// context tree, installed plugins and their assignments, and dispatch tuning.
package settings

import (
	"time"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/contexttree"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/variables"
)

const (
	// DefaultHookTimeout bounds a single hook invocation.
	DefaultHookTimeout = 10 * time.Second
	// DefaultEnrichParallelism bounds concurrent enrichment hooks in one pass.
	DefaultEnrichParallelism = 4
)

// Settings is the configuration document consumed by the host.
type Settings struct {
	Contexts []contexttree.Context `json:"contexts" yaml:"contexts" validate:"omitempty,dive"`
	Plugins  []PluginSettings      `json:"plugins" yaml:"plugins" validate:"omitempty,dive"`
	Dispatch DispatchSettings      `json:"dispatch,omitempty" yaml:"dispatch,omitempty"`
}

// PluginSettings stores an installed plugin's plugin-level variable values
// and its context assignments.
type PluginSettings struct {
	PluginID  string               `json:"plugin_id" yaml:"plugin_id" validate:"required,plugin_id"`
	Variables variables.Values     `json:"variables,omitempty" yaml:"variables,omitempty"`
	Timeout   Duration             `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Contexts  []AssignmentSettings `json:"contexts,omitempty" yaml:"contexts,omitempty" validate:"omitempty,dive"`
}

// AssignmentSettings is one stored assignment. Path lists several context ids
// at once; each id becomes its own assignment at that tree level.
type AssignmentSettings struct {
	Context   string           `json:"context,omitempty" yaml:"context,omitempty" validate:"omitempty,context_id"`
	Path      []string         `json:"path,omitempty" yaml:"path,omitempty" validate:"omitempty,dive,context_id"`
	UUID      string           `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	Variables variables.Values `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// DispatchSettings tunes the hook dispatcher.
type DispatchSettings struct {
	HookTimeout       Duration `json:"hook_timeout,omitempty" yaml:"hook_timeout,omitempty"`
	EnrichParallelism int      `json:"enrich_parallelism,omitempty" yaml:"enrich_parallelism,omitempty" validate:"omitempty,min=1,max=64"`
}

// EffectiveHookTimeout returns HookTimeout or the default.
func (d DispatchSettings) EffectiveHookTimeout() time.Duration {
	if d.HookTimeout > 0 {
		return time.Duration(d.HookTimeout)
	}
	return DefaultHookTimeout
}

// EffectiveParallelism returns EnrichParallelism or the default.
func (d DispatchSettings) EffectiveParallelism() int {
	if d.EnrichParallelism > 0 {
		return d.EnrichParallelism
	}
	return DefaultEnrichParallelism
}

// Plugin returns the stored settings for a plugin.
func (s *Settings) Plugin(id string) (*PluginSettings, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Plugins {
		if s.Plugins[i].PluginID == id {
			return &s.Plugins[i], true
		}
	}
	return nil, false
}

// ContextIDs returns the distinct ids an assignment targets, Context first.
func (a AssignmentSettings) ContextIDs() []string {
	ids := make([]string, 0, 1+len(a.Path))
	seen := make(map[string]struct{}, 1+len(a.Path))
	for _, id := range append([]string{a.Context}, a.Path...) {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	out := &Settings{
		Contexts: contexttree.Clone(s.Contexts),
		Dispatch: s.Dispatch,
	}
	if s.Plugins != nil {
		out.Plugins = make([]PluginSettings, len(s.Plugins))
		for i, p := range s.Plugins {
			out.Plugins[i] = PluginSettings{
				PluginID:  p.PluginID,
				Variables: cloneValues(p.Variables),
				Timeout:   p.Timeout,
			}
			if p.Contexts != nil {
				out.Plugins[i].Contexts = make([]AssignmentSettings, len(p.Contexts))
				for j, a := range p.Contexts {
					out.Plugins[i].Contexts[j] = AssignmentSettings{
						Context:   a.Context,
						Path:      append([]string(nil), a.Path...),
						UUID:      a.UUID,
						Variables: cloneValues(a.Variables),
					}
				}
			}
		}
	}
	return out
}

func cloneValues(v variables.Values) variables.Values {
	if v == nil {
		return nil
	}
	out := make(variables.Values, len(v))
	for k, val := range v {
		out[k] = cloneValue(val)
	}
	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, val := range typed {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, val := range typed {
			out[i] = cloneValue(val)
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	}
	return v
}
