package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Save validates settings and writes them to path atomically. The format
// follows the file extension as in Load.
func Save(path string, s *Settings) error {
	data, err := Marshal(path, s)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	// Write to temporary file first
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

// Marshal validates settings and encodes them the way Save writes them to
// path.
func Marshal(path string, s *Settings) ([]byte, error) {
	if err := ValidateSettings(s); err != nil {
		return nil, err
	}

	if isYAML(path) {
		data, err := yaml.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal settings: %w", err)
		}
		return data, nil
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}
	return append(data, '\n'), nil
}
