package settings

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/contexttree"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/variables"
	orbiserrors "github.com/OrbisWeb3/orbisdb-sub001/pkg/errors"
)

// ValidateValues checks values about to be written for a plugin. Keys must be
// declared at the requested level and select values must be declared options.
func ValidateValues(schema []variables.Spec, perContext bool, values variables.Values) error {
	for _, key := range sortedKeys(values) {
		spec, ok := variables.Lookup(schema, key)
		if !ok {
			return orbiserrors.NewValidationError(key, fmt.Sprintf("variable %q is not declared by the plugin", key), nil)
		}
		if spec.PerContext != perContext {
			level := "plugin level"
			if spec.PerContext {
				level = "context level"
			}
			return orbiserrors.NewValidationError(key, fmt.Sprintf("variable %q must be set at %s", key, level), nil)
		}
		if err := variables.CheckOption(spec, values[key]); err != nil {
			return orbiserrors.NewValidationError(key, err.Error(), err)
		}
	}
	return nil
}

// Assign appends an assignment of pluginID to contextIDs and returns its new
// uuid. A plugin entry is created when the plugin has none yet. Several ids
// are stored as a path, each becoming its own assignment on load.
func Assign(s *Settings, schema []variables.Spec, pluginID string, contextIDs []string, values variables.Values) (string, error) {
	if s == nil {
		return "", orbiserrors.NewValidationError("settings", "settings are nil", nil)
	}
	if len(contextIDs) == 0 {
		return "", orbiserrors.NewValidationError("context", "at least one context is required", nil)
	}
	for _, id := range contextIDs {
		if id == contexttree.GlobalID {
			continue
		}
		if _, ok := contexttree.Find(s.Contexts, id); !ok {
			return "", orbiserrors.NewConfigurationError(pluginID, id, "context does not exist")
		}
	}
	if err := ValidateValues(schema, true, values); err != nil {
		return "", err
	}

	entry := AssignmentSettings{UUID: uuid.NewString(), Variables: cloneValues(values)}
	if len(contextIDs) == 1 {
		entry.Context = contextIDs[0]
	} else {
		entry.Path = append([]string(nil), contextIDs...)
	}

	p := ensurePlugin(s, pluginID)
	p.Contexts = append(p.Contexts, entry)
	return entry.UUID, nil
}

// Unassign removes the assignment with the given uuid. It reports whether
// anything was removed.
func Unassign(s *Settings, pluginID, id string) bool {
	p, ok := s.Plugin(pluginID)
	if !ok {
		return false
	}
	for i, a := range p.Contexts {
		if a.UUID == id {
			p.Contexts = append(p.Contexts[:i], p.Contexts[i+1:]...)
			return true
		}
	}
	return false
}

// SetPluginVariables merges plugin-level values into the plugin's entry.
func SetPluginVariables(s *Settings, schema []variables.Spec, pluginID string, values variables.Values) error {
	if s == nil {
		return orbiserrors.NewValidationError("settings", "settings are nil", nil)
	}
	if err := ValidateValues(schema, false, values); err != nil {
		return err
	}
	p := ensurePlugin(s, pluginID)
	if p.Variables == nil {
		p.Variables = variables.Values{}
	}
	for k, v := range values {
		p.Variables[k] = cloneValue(v)
	}
	return nil
}

func ensurePlugin(s *Settings, pluginID string) *PluginSettings {
	if p, ok := s.Plugin(pluginID); ok {
		return p
	}
	s.Plugins = append(s.Plugins, PluginSettings{PluginID: pluginID})
	return &s.Plugins[len(s.Plugins)-1]
}

func sortedKeys(values variables.Values) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
