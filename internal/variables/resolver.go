package variables

import (
	"reflect"
	"sort"
)

// Arguments is the resolved variable set for a single hook invocation.
// The zero value is empty and safe to use.
type Arguments struct {
	values  Values
	private map[string]struct{}
}

// Get returns a resolved value.
func (a Arguments) Get(id string) (any, bool) {
	v, ok := a.values[id]
	return v, ok
}

// String returns a resolved value as a string, or "" when missing or not a string.
func (a Arguments) String(id string) string {
	s, _ := a.values[id].(string)
	return s
}

// Strings returns a resolved array value as strings. A single string is
// returned as a one element slice; non-string elements are skipped.
func (a Arguments) Strings(id string) []string {
	switch v := a.values[id].(type) {
	case []string:
		return append([]string(nil), v...)
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Len reports how many variables resolved.
func (a Arguments) Len() int {
	return len(a.values)
}

// Keys returns the resolved ids in sorted order.
func (a Arguments) Keys() []string {
	keys := make([]string, 0, len(a.values))
	for k := range a.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns a copy of every resolved value, private ones included. It is
// what hooks receive.
func (a Arguments) All() Values {
	out := make(Values, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}

// Public returns a copy without private values. Anything leaving the process
// (API responses, logs) must use Public.
func (a Arguments) Public() Values {
	out := make(Values, len(a.values))
	for k, v := range a.values {
		if _, hidden := a.private[k]; hidden {
			continue
		}
		out[k] = v
	}
	return out
}

// Resolve resolves a single variable of schema. The value comes from
// contextLevel when the variable is per-context and from pluginLevel
// otherwise. A variable whose conditions are not met, or that has no stored
// value, is reported as not applicable.
func Resolve(schema []Spec, spec Spec, pluginLevel, contextLevel Values) (any, bool) {
	return resolve(schema, spec, pluginLevel, contextLevel, map[string]bool{})
}

// ResolveAll resolves every variable in schema.
func ResolveAll(schema []Spec, pluginLevel, contextLevel Values) Arguments {
	args := Arguments{values: Values{}, private: map[string]struct{}{}}
	for _, spec := range schema {
		value, ok := Resolve(schema, spec, pluginLevel, contextLevel)
		if !ok {
			continue
		}
		args.values[spec.ID] = value
		if spec.Private {
			args.private[spec.ID] = struct{}{}
		}
	}
	return args
}

// Redact returns a copy of stored with every private variable of schema removed.
func Redact(schema []Spec, stored Values) Values {
	out := make(Values, len(stored))
	for k, v := range stored {
		if spec, ok := Lookup(schema, k); ok && spec.Private {
			continue
		}
		out[k] = v
	}
	return out
}

func resolve(schema []Spec, spec Spec, pluginLevel, contextLevel Values, visiting map[string]bool) (any, bool) {
	if visiting[spec.ID] {
		return nil, false
	}
	visiting[spec.ID] = true
	defer delete(visiting, spec.ID)

	for _, cond := range spec.Conditions {
		ref, ok := Lookup(schema, cond.Variable)
		if !ok {
			return nil, false
		}
		got, ok := resolve(schema, ref, pluginLevel, contextLevel, visiting)
		if !ok || !equal(got, cond.Value) {
			return nil, false
		}
	}

	store := pluginLevel
	if spec.PerContext {
		store = contextLevel
	}
	value, ok := store[spec.ID]
	return value, ok
}

func equal(a, b any) bool {
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		return ok && sa == sb
	}
	return reflect.DeepEqual(a, b)
}
