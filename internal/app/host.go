// Package app wires the long-lived host services together: plugin registry,
// settings store and watcher, persistence, dispatcher and HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/dispatch"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/events"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/httpapi"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/logger"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/plugin"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/plugins"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/ports"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/settings"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/sink"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/variables"
)

// Options configures a Host.
type Options struct {
	// SettingsPath is the settings file. Empty starts with no contexts and
	// no assignments.
	SettingsPath string
	// DataDir holds the Badger store. Empty keeps records in memory.
	DataDir string
	// Store overrides DataDir when set.
	Store sink.Store
	// Plugins defaults to plugins.Builtin().
	Plugins  []plugin.Plugin
	Registry *plugin.RegistryConfig
	// Registerer and Gatherer default to a fresh prometheus registry. A
	// Registerer alone must also be a Gatherer, as *prometheus.Registry is.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	Logger     *logger.Logger
}

// Host bundles the services created at startup.
type Host struct {
	Logger     *logger.Logger
	Publisher  *events.LoggingPublisher
	Registry   *plugin.PluginRegistry
	Settings   *settings.Store
	Store      sink.Store
	Metrics    *dispatch.Metrics
	Dispatcher *dispatch.Dispatcher

	settingsPath string
	gatherer     prometheus.Gatherer
	watcher      *settings.Watcher
}

// New loads the settings, registers and initializes every plugin with its
// plugin-level variables, and installs the first settings snapshot.
func New(ctx context.Context, opts Options) (*Host, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	initial := &settings.Settings{}
	if strings.TrimSpace(opts.SettingsPath) != "" {
		loaded, err := settings.Load(opts.SettingsPath)
		if err != nil {
			return nil, err
		}
		initial = loaded
	}

	reg, gatherer, err := metricsRegistry(opts.Registerer, opts.Gatherer)
	if err != nil {
		return nil, err
	}

	store := opts.Store
	if store == nil {
		opened, err := sink.OpenBadger(opts.DataDir)
		if err != nil {
			return nil, err
		}
		store = opened
	}

	publisher := events.NewLoggingPublisher(log)
	registry := plugin.NewPluginRegistry(opts.Registry, log)

	pluginList := opts.Plugins
	if pluginList == nil {
		pluginList = plugins.Builtin()
	}
	for _, p := range pluginList {
		env := plugin.InitEnv{Client: store}
		if p != nil {
			manifest := p.Manifest()
			var stored variables.Values
			if ps, ok := initial.Plugin(manifest.ID); ok {
				stored = ps.Variables
			}
			env.Variables = variables.ResolveAll(manifest.Variables, stored, nil)
		}
		if _, err := registry.Register(ctx, p, env); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("register plugin: %w", err)
		}
	}
	for id, initErr := range registry.Unavailable() {
		_ = publisher.Publish(ctx, ports.Event{
			Type:   ports.EventPluginUnavailable,
			Fields: map[string]any{"plugin_id": id, "error": initErr.Error()},
		})
	}

	snapshots := settings.NewStore(log,
		settings.WithSchemas(schemasFrom(registry)),
		settings.WithPublisher(publisher),
	)
	if _, err := snapshots.Install(ctx, initial, opts.SettingsPath); err != nil {
		_ = store.Close()
		return nil, err
	}

	metrics := dispatch.MustNewMetrics(reg)
	dispatcher := dispatch.New(registry, snapshots, store, log,
		dispatch.WithPublisher(publisher),
		dispatch.WithMetrics(metrics),
		dispatch.WithClient(store),
	)

	return &Host{
		Logger:       log,
		Publisher:    publisher,
		Registry:     registry,
		Settings:     snapshots,
		Store:        store,
		Metrics:      metrics,
		Dispatcher:   dispatcher,
		settingsPath: opts.SettingsPath,
		gatherer:     gatherer,
	}, nil
}

// metricsRegistry pairs the registerer the dispatcher's metrics go to with
// the gatherer /metrics serves, so both always see the same registry.
func metricsRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) (prometheus.Registerer, prometheus.Gatherer, error) {
	switch {
	case reg == nil && gatherer == nil:
		fresh := prometheus.NewRegistry()
		return fresh, fresh, nil
	case reg != nil && gatherer != nil:
		return reg, gatherer, nil
	case reg != nil:
		if g, ok := reg.(prometheus.Gatherer); ok {
			return reg, g, nil
		}
		return nil, nil, fmt.Errorf("metrics registerer %T cannot be gathered; set Gatherer too", reg)
	default:
		return nil, nil, fmt.Errorf("metrics gatherer given without a registerer")
	}
}

// schemasFrom answers schema lookups from the registry. Unavailable plugins
// are still installed and keep their schema.
func schemasFrom(registry *plugin.PluginRegistry) settings.SchemaFunc {
	return func(pluginID string) ([]variables.Spec, bool) {
		desc, ok := registry.Lookup(pluginID)
		if !ok {
			return nil, false
		}
		return desc.Manifest.Variables, true
	}
}

// Watch starts reloading the settings file on change. It is a no-op without
// a settings file.
func (h *Host) Watch(opts ...settings.WatcherOption) error {
	if h.settingsPath == "" || h.watcher != nil {
		return nil
	}
	w := settings.NewWatcher(h.Settings, h.settingsPath, h.Logger, opts...)
	if err := w.Start(); err != nil {
		return fmt.Errorf("watch settings: %w", err)
	}
	h.watcher = w
	return nil
}

// Server builds the HTTP API over the host services.
func (h *Host) Server(cfg httpapi.Config) *httpapi.Server {
	return httpapi.NewServer(cfg, httpapi.Dependencies{
		Dispatcher: h.Dispatcher,
		Catalog:    h.Registry,
		Snapshots:  h.Settings,
		Streams:    h.Store,
		Gatherer:   h.gatherer,
		Logger:     h.Logger,
	})
}

// Close stops the watcher and closes the store.
func (h *Host) Close() error {
	var errs []error
	if h.watcher != nil {
		errs = append(errs, h.watcher.Stop())
	}
	errs = append(errs, h.Store.Close())
	return errors.Join(errs...)
}
