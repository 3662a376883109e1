package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	orbiserrors "github.com/OrbisWeb3/orbisdb-sub001/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// Load reads a settings file from disk, validates it, and returns the result.
// Files ending in .yaml or .yml are decoded as YAML, anything else as JSON.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, orbiserrors.NewParseError(path, 0, err)
	}
	return Parse(path, data)
}

// Parse decodes and validates settings. path selects the format and is used
// in error messages.
func Parse(path string, data []byte) (*Settings, error) {
	var s Settings
	if isYAML(path) {
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, orbiserrors.NewParseError(path, extractLine(err), err)
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&s); err != nil {
			return nil, orbiserrors.NewParseError(path, jsonLine(data, err), err)
		}
		normalizeNumbers(&s)
	}

	if err := ValidateSettings(&s); err != nil {
		return nil, err
	}

	return &s, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}

	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	_, scanErr := fmt.Sscanf(matches[1], "%d", &line)
	if scanErr != nil {
		return 0
	}

	return line
}

func jsonLine(data []byte, err error) int {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return 0
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	return bytes.Count(data[:offset], []byte("\n")) + 1
}

// normalizeNumbers turns json.Number values into int when integral and
// float64 otherwise, so variable values compare the same as YAML-decoded ones.
func normalizeNumbers(s *Settings) {
	for i := range s.Plugins {
		p := &s.Plugins[i]
		for k, v := range p.Variables {
			p.Variables[k] = normalizeNumber(v)
		}
		for j := range p.Contexts {
			a := &p.Contexts[j]
			for k, v := range a.Variables {
				a.Variables[k] = normalizeNumber(v)
			}
		}
	}
}

func normalizeNumber(v any) any {
	switch typed := v.(type) {
	case json.Number:
		if n, err := typed.Int64(); err == nil {
			return int(n)
		}
		if f, err := typed.Float64(); err == nil {
			return f
		}
		return typed.String()
	case map[string]any:
		for k, val := range typed {
			typed[k] = normalizeNumber(val)
		}
		return typed
	case []any:
		for i, val := range typed {
			typed[i] = normalizeNumber(val)
		}
		return typed
	}
	return v
}
