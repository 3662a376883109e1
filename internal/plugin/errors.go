package plugin

import (
	"fmt"
)

// ErrPluginNotFound is returned when the requested plugin is not registered.
type ErrPluginNotFound struct {
	ID string
}

func (e ErrPluginNotFound) Error() string {
	return fmt.Sprintf("plugin '%s' not found in registry\nHint: ensure the plugin is registered before usage", e.ID)
}

// ErrDuplicatePlugin is returned when a plugin id is registered twice.
type ErrDuplicatePlugin struct {
	ID string
}

func (e ErrDuplicatePlugin) Error() string {
	return fmt.Sprintf("plugin '%s' already registered", e.ID)
}

// ErrRouteNotFound is returned when a plugin exposes no route for a method and path.
type ErrRouteNotFound struct {
	ID     string
	Method string
	Path   string
}

func (e ErrRouteNotFound) Error() string {
	return fmt.Sprintf("plugin '%s' has no route %s %s", e.ID, e.Method, e.Path)
}
