// Package variables declares the configuration variables plugins expose and
// resolves stored values into the argument set passed to hook invocations.
package variables

import (
	"fmt"
	"strings"
)

// Type is the declared input type of a variable.
type Type string

const (
	TypeText     Type = "text"
	TypeTextarea Type = "textarea"
	TypeArray    Type = "array"
	TypeObject   Type = "object"
	TypeSelect   Type = "select"
	TypeCron     Type = "cron"
	TypeModel    Type = "model"
	TypeQuery    Type = "query"
)

var knownTypes = map[Type]struct{}{
	TypeText: {}, TypeTextarea: {}, TypeArray: {}, TypeObject: {},
	TypeSelect: {}, TypeCron: {}, TypeModel: {}, TypeQuery: {},
}

// Condition gates a variable on the resolved value of another variable.
type Condition struct {
	Variable string `json:"id"`
	Value    any    `json:"value"`
}

// Option is one selectable value of a select variable.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

// Spec describes a single variable declared by a plugin.
type Spec struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Type        Type        `json:"type"`
	PerContext  bool        `json:"per_context"`
	Private     bool        `json:"private,omitempty"`
	Options     []Option    `json:"options,omitempty"`
	Conditions  []Condition `json:"conditions,omitempty"`
}

// Values maps variable ids to stored values.
type Values map[string]any

// Validate reports structural problems in a plugin's declared schema.
func Validate(schema []Spec) error {
	seen := make(map[string]struct{}, len(schema))
	for i, spec := range schema {
		if strings.TrimSpace(spec.ID) == "" {
			return fmt.Errorf("variable %d has an empty id", i)
		}
		if _, dup := seen[spec.ID]; dup {
			return fmt.Errorf("variable %q declared more than once", spec.ID)
		}
		seen[spec.ID] = struct{}{}
		if _, ok := knownTypes[spec.Type]; !ok {
			return fmt.Errorf("variable %q has unknown type %q", spec.ID, spec.Type)
		}
		if spec.Type == TypeSelect && len(spec.Options) == 0 {
			return fmt.Errorf("select variable %q declares no options", spec.ID)
		}
	}
	for _, spec := range schema {
		for _, cond := range spec.Conditions {
			if _, ok := seen[cond.Variable]; !ok {
				return fmt.Errorf("variable %q has a condition on undeclared variable %q", spec.ID, cond.Variable)
			}
		}
	}
	return nil
}

// Lookup returns the spec with the given id.
func Lookup(schema []Spec, id string) (Spec, bool) {
	for _, spec := range schema {
		if spec.ID == id {
			return spec, true
		}
	}
	return Spec{}, false
}

// Split partitions the schema into plugin-level and per-context specs.
func Split(schema []Spec) (global, perContext []Spec) {
	for _, spec := range schema {
		if spec.PerContext {
			perContext = append(perContext, spec)
		} else {
			global = append(global, spec)
		}
	}
	return global, perContext
}

// CheckOption reports whether value is one of the declared options of a
// select variable. Other variable types always pass.
func CheckOption(spec Spec, value any) error {
	if spec.Type != TypeSelect {
		return nil
	}
	str, ok := value.(string)
	if !ok {
		return fmt.Errorf("select variable %q expects a string, got %T", spec.ID, value)
	}
	for _, opt := range spec.Options {
		if opt.Value == str {
			return nil
		}
	}
	return fmt.Errorf("value %q is not an option of select variable %q", str, spec.ID)
}
