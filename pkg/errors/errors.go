package errors

import (
	"fmt"
)

// ParseError represents a settings file parsing failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}

	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures settings validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ConfigurationError marks a malformed or dangling plugin/context reference.
// It is never fatal: the offending plugin or assignment is skipped.
type ConfigurationError struct {
	Plugin  string
	Context string
	Message string
}

// NewConfigurationError constructs a ConfigurationError.
func NewConfigurationError(plugin, context, message string) error {
	return &ConfigurationError{Plugin: plugin, Context: context, Message: message}
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Plugin != "" && e.Context != "":
		return fmt.Sprintf("configuration error [%s@%s]: %s", e.Plugin, e.Context, e.Message)
	case e.Plugin != "":
		return fmt.Sprintf("configuration error [%s]: %s", e.Plugin, e.Message)
	case e.Context != "":
		return fmt.Sprintf("configuration error [@%s]: %s", e.Context, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// PluginInitError indicates a plugin failed to initialize and is unavailable
// for the lifetime of the registry.
type PluginInitError struct {
	Plugin  string
	Message string
	Err     error
}

// NewPluginInitError constructs a PluginInitError for the given plugin.
func NewPluginInitError(plugin string, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &PluginInitError{Plugin: plugin, Message: message, Err: err}
}

func (e *PluginInitError) Error() string {
	if e == nil {
		return ""
	}
	if e.Plugin != "" {
		return fmt.Sprintf("plugin init error [%s]: %s", e.Plugin, e.Message)
	}
	return fmt.Sprintf("plugin init error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *PluginInitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// HookExecutionError represents a hook that returned an error, panicked, or
// exceeded its timeout.
type HookExecutionError struct {
	Plugin     string
	Hook       string
	Assignment string
	Timeout    bool
	Err        error
}

// NewHookExecutionError constructs a HookExecutionError.
func NewHookExecutionError(plugin, hook, assignment string, timeout bool, err error) error {
	return &HookExecutionError{Plugin: plugin, Hook: hook, Assignment: assignment, Timeout: timeout, Err: err}
}

func (e *HookExecutionError) Error() string {
	if e == nil {
		return ""
	}
	reason := "failed"
	if e.Timeout {
		reason = "timed out"
	}
	if e.Err != nil {
		return fmt.Sprintf("hook %s of plugin %s %s: %v", e.Hook, e.Plugin, reason, e.Err)
	}
	return fmt.Sprintf("hook %s of plugin %s %s", e.Hook, e.Plugin, reason)
}

// Unwrap exposes the root error.
func (e *HookExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
