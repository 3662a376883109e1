package plugin

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/variables"
)

var (
	semverPattern   = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	pluginIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
)

// Manifest describes plugin identity and the variables it needs.
type Manifest struct {
	ID          string
	Name        string
	Version     string
	Description string
	Variables   []variables.Spec
}

// Validate ensures the manifest is well-formed.
func (m Manifest) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("plugin manifest requires a non-empty ID")
	}
	if !pluginIDPattern.MatchString(m.ID) {
		return fmt.Errorf("plugin has invalid ID '%s' (expected lowercase letters, digits, '.', '_' or '-')", m.ID)
	}
	if strings.TrimSpace(m.Version) == "" {
		return fmt.Errorf("plugin '%s' manifest requires Version", m.ID)
	}
	if !semverPattern.MatchString(m.Version) {
		return fmt.Errorf("plugin '%s' has invalid Version '%s' (expected format: X.Y.Z)", m.ID, m.Version)
	}
	if err := variables.Validate(m.Variables); err != nil {
		return fmt.Errorf("plugin '%s' variables: %w", m.ID, err)
	}
	return nil
}

// DisplayName returns Name, falling back to ID.
func (m Manifest) DisplayName() string {
	if strings.TrimSpace(m.Name) != "" {
		return m.Name
	}
	return m.ID
}
