package plugin

import (
	"context"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/logger"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/ports"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/variables"
)

// Plugin is the contract every OrbisDB plugin satisfies.
//
// Manifest is read at registration time and must be cheap and side-effect
// free. Init is called exactly once per registry; it may open network
// connections and returns the hooks and routes the plugin exposes. A plugin
// whose Init fails is kept in the registry as unavailable and never
// dispatched.
type Plugin interface {
	Manifest() Manifest
	Init(ctx context.Context, env InitEnv) (Capabilities, error)
}

// InitEnv is handed to Init.
type InitEnv struct {
	// Variables holds the plugin-level (non per-context) resolved variables.
	Variables variables.Arguments
	Client    ports.StreamClient
	Logger    *logger.Logger
}

// Capabilities is what Init exposes. Both fields may be empty.
type Capabilities struct {
	Hooks  map[HookKind]Hook
	Routes []Route
}
