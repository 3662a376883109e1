package plugin

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/logger"
	orbiserrors "github.com/OrbisWeb3/orbisdb-sub001/pkg/errors"
)

// Descriptor is the registry's view of one installed plugin.
type Descriptor struct {
	Manifest  Manifest
	Available bool
	// InitErr is set when the plugin is unavailable.
	InitErr error
	Hooks   map[HookKind]Hook
	Routes  []Route
	// Order is the registration index, used for deterministic dispatch.
	Order int

	plugin Plugin
}

// ID returns the plugin id.
func (d *Descriptor) ID() string { return d.Manifest.ID }

// HasHook reports whether the plugin exposes the kind.
func (d *Descriptor) HasHook(kind HookKind) bool {
	_, ok := d.Hooks[kind]
	return ok
}

// HookBinding pairs a plugin with one of its hooks.
type HookBinding struct {
	PluginID string
	Hook     Hook
}

// PluginRegistry loads plugins, initializes each exactly once, and indexes
// their hooks by kind in registration order. Lookups are safe for concurrent
// use; the registry is read-only once startup registration is complete.
type PluginRegistry struct {
	mu          sync.RWMutex
	order       []string
	descriptors map[string]*Descriptor
	byKind      map[HookKind][]HookBinding
	logger      *logger.Logger
	config      *RegistryConfig
}

// NewPluginRegistry returns a new registry instance.
func NewPluginRegistry(config *RegistryConfig, log *logger.Logger) *PluginRegistry {
	if config == nil {
		config = DefaultConfig()
	}

	return &PluginRegistry{
		descriptors: make(map[string]*Descriptor),
		byKind:      make(map[HookKind][]HookBinding),
		logger:      log,
		config:      config,
	}
}

// Register adds a plugin and calls its Init. Nil plugins, invalid manifests
// and duplicate ids are refused with an error. An Init failure is not an
// error for the caller: the plugin is recorded as unavailable with InitErr
// set and excluded from every lookup used for dispatch.
func (r *PluginRegistry) Register(ctx context.Context, p Plugin, env InitEnv) (*Descriptor, error) {
	if p == nil {
		return nil, fmt.Errorf("plugin is nil")
	}

	meta := p.Manifest()
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, exists := r.descriptors[meta.ID]; exists {
		r.mu.Unlock()
		return nil, ErrDuplicatePlugin{ID: meta.ID}
	}
	desc := &Descriptor{Manifest: meta, Order: len(r.order), plugin: p}
	r.descriptors[meta.ID] = desc
	r.order = append(r.order, meta.ID)
	r.mu.Unlock()

	if env.Logger == nil {
		env.Logger = r.logger.With("plugin_id", meta.ID)
	}

	caps, timedOut, err := Guard(ctx, r.config.InitTimeout, func(ctx context.Context) (Capabilities, error) {
		return p.Init(ctx, env)
	})
	if err == nil {
		err = checkHooks(caps.Hooks)
	}
	routes := normalizeRoutes(append([]Route(nil), caps.Routes...))
	if err == nil {
		err = checkRoutes(routes)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		if timedOut {
			err = fmt.Errorf("init timed out after %s: %w", r.config.InitTimeout, err)
		}
		desc.InitErr = orbiserrors.NewPluginInitError(meta.ID, err)
		r.logger.With("plugin_id", meta.ID).Error(desc.InitErr, "plugin unavailable")
		return desc, nil
	}

	desc.Available = true
	desc.Hooks = make(map[HookKind]Hook, len(caps.Hooks))
	for kind, hook := range caps.Hooks {
		desc.Hooks[kind] = hook
	}
	desc.Routes = routes
	r.reindex()

	r.logger.With("plugin_id", meta.ID, "hooks", len(desc.Hooks), "routes", len(desc.Routes)).Info("plugin registered")
	return desc, nil
}

// reindex rebuilds the kind index in registration order. Callers hold mu.
func (r *PluginRegistry) reindex() {
	byKind := make(map[HookKind][]HookBinding)
	for _, id := range r.order {
		desc := r.descriptors[id]
		if !desc.Available {
			continue
		}
		for _, kind := range Kinds() {
			if hook, ok := desc.Hooks[kind]; ok {
				byKind[kind] = append(byKind[kind], HookBinding{PluginID: id, Hook: hook})
			}
		}
	}
	r.byKind = byKind
}

// HooksByKind returns the available plugins exposing kind, in registration order.
func (r *PluginRegistry) HooksByKind(kind HookKind) []HookBinding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]HookBinding(nil), r.byKind[kind]...)
}

// HooksByName is HooksByKind for a raw hook name.
func (r *PluginRegistry) HooksByName(name string) []HookBinding {
	return r.HooksByKind(HookKind(strings.TrimSpace(name)))
}

// Get retrieves an available plugin descriptor.
func (r *PluginRegistry) Get(id string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.descriptors[id]
	if !ok || !desc.Available {
		return nil, ErrPluginNotFound{ID: id}
	}
	return desc, nil
}

// Lookup retrieves a descriptor whether or not it is available.
func (r *PluginRegistry) Lookup(id string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.descriptors[id]
	return desc, ok
}

// List returns the ids of available plugins in registration order.
func (r *PluginRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if r.descriptors[id].Available {
			ids = append(ids, id)
		}
	}
	return ids
}

// Descriptors returns every descriptor, unavailable ones included, in
// registration order.
func (r *PluginRegistry) Descriptors() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.descriptors[id])
	}
	return out
}

// Unavailable maps plugin ids to their init errors.
func (r *PluginRegistry) Unavailable() map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]error)
	for id, desc := range r.descriptors {
		if !desc.Available {
			out[id] = desc.InitErr
		}
	}
	return out
}

// Route finds the handler for a plugin route.
func (r *PluginRegistry) Route(id, method, path string) (RouteFunc, error) {
	desc, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	method = strings.ToUpper(method)
	path = "/" + strings.Trim(path, "/")
	for _, route := range desc.Routes {
		if route.Method == method && route.Path == path {
			return route.Handler, nil
		}
	}
	return nil, ErrRouteNotFound{ID: id, Method: method, Path: path}
}
