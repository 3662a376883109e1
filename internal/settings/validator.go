package settings

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/contexttree"
	orbiserrors "github.com/OrbisWeb3/orbisdb-sub001/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	contextIDPattern = regexp.MustCompile(`^[A-Za-z0-9:_.-]+$`)
	pluginIDPattern  = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("context_id", func(fl validator.FieldLevel) bool {
			return contextIDPattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("plugin_id", func(fl validator.FieldLevel) bool {
			return pluginIDPattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

// ValidateSettings performs schema and cross-field validation. Duplicate
// context ids and duplicate plugin entries are fatal. References to contexts
// or plugins that do not exist, and repeated assignment uuids, are not
// checked here: they surface as configuration problems on the snapshot.
func ValidateSettings(s *Settings) error {
	if s == nil {
		return orbiserrors.NewValidationError("settings", "settings are nil", nil)
	}

	v := validatorInstance()
	if err := v.Struct(s); err != nil {
		return convertValidationError(err)
	}

	if _, err := contexttree.Index(s.Contexts); err != nil {
		return orbiserrors.NewValidationError("contexts", err.Error(), err)
	}

	seen := make(map[string]int, len(s.Plugins))
	for i, p := range s.Plugins {
		if prev, dup := seen[p.PluginID]; dup {
			return orbiserrors.NewValidationError(
				fieldForPlugin(i, "plugin_id"),
				fmt.Sprintf("plugin %q already configured at plugins[%d]", p.PluginID, prev),
				nil,
			)
		}
		seen[p.PluginID] = i

		for j, a := range p.Contexts {
			if len(a.ContextIDs()) == 0 {
				return orbiserrors.NewValidationError(
					fieldForAssignment(i, j, "context"),
					"assignment requires a context or a path",
					nil,
				)
			}
		}
	}

	return nil
}

func convertValidationError(err error) error {
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		ve := ves[0]
		field := jsonishFieldName(ve)
		msg := fmt.Sprintf("%s failed validation for tag '%s'", field, ve.Tag())
		return orbiserrors.NewValidationError(field, msg, err)
	}

	return orbiserrors.NewValidationError("settings", err.Error(), err)
}

func jsonishFieldName(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	parts := strings.Split(ns, ".")
	var lowered []string
	for _, part := range parts {
		lowered = append(lowered, strings.ToLower(part))
	}
	return strings.Join(lowered, ".")
}

func fieldForPlugin(index int, field string) string {
	return fmt.Sprintf("plugins[%d].%s", index, field)
}

func fieldForAssignment(plugin, index int, field string) string {
	return fmt.Sprintf("plugins[%d].contexts[%d].%s", plugin, index, field)
}
