package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/contexttree"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/logger"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/model"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/plugin"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/ports"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/settings"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/variables"
)

type testPlugin struct {
	manifest plugin.Manifest
	hooks    map[plugin.HookKind]plugin.Hook
	initErr  error
}

func newTestPlugin(id string, specs ...variables.Spec) *testPlugin {
	return &testPlugin{
		manifest: plugin.Manifest{ID: id, Name: id, Version: "1.0.0", Variables: specs},
		hooks:    map[plugin.HookKind]plugin.Hook{},
	}
}

func (p *testPlugin) with(kind plugin.HookKind, hook plugin.Hook) *testPlugin {
	p.hooks[kind] = hook
	return p
}

func (p *testPlugin) Manifest() plugin.Manifest { return p.manifest }

func (p *testPlugin) Init(context.Context, plugin.InitEnv) (plugin.Capabilities, error) {
	if p.initErr != nil {
		return plugin.Capabilities{}, p.initErr
	}
	return plugin.Capabilities{Hooks: p.hooks}, nil
}

// counter counts hook invocations and records their calls.
type counter struct {
	n     atomic.Int32
	mu    sync.Mutex
	calls []plugin.Call
}

func (c *counter) record(call plugin.Call) {
	c.n.Add(1)
	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()
}

func (c *counter) count() int { return int(c.n.Load()) }

func (c *counter) snapshot() []plugin.Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]plugin.Call(nil), c.calls...)
}

func verdict(c *counter, v plugin.Verdict) plugin.ValidateFunc {
	return func(_ context.Context, call plugin.Call) (plugin.Verdict, error) {
		c.record(call)
		return v, nil
	}
}

func metadata(c *counter, m map[string]any) plugin.MetadataFunc {
	return func(_ context.Context, call plugin.Call) (map[string]any, error) {
		c.record(call)
		return m, nil
	}
}

type memorySink struct {
	mu      sync.Mutex
	records []model.StreamRecord
	err     error
}

func (s *memorySink) Persist(_ context.Context, record model.StreamRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ports.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event ports.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Subscribe(string, ports.EventHandler) (ports.Subscription, error) {
	return nil, errors.New("not supported")
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

// fixture wires a registry, a settings store and a sink around a tree
// global → app1 → sub1, plus a sibling app2.
type fixture struct {
	t        *testing.T
	registry *plugin.PluginRegistry
	store    *settings.Store
	sink     *memorySink
	settings *settings.Settings
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		t:        t,
		registry: plugin.NewPluginRegistry(&plugin.RegistryConfig{}, logger.Nop()),
		store:    settings.NewStore(logger.Nop()),
		sink:     &memorySink{},
		settings: &settings.Settings{
			Contexts: []contexttree.Context{
				{ID: "app1", Name: "App", Children: []contexttree.Context{{ID: "sub1", Name: "Sub"}}},
				{ID: "app2", Name: "Other"},
			},
		},
	}
}

func (f *fixture) register(plugins ...plugin.Plugin) *fixture {
	f.t.Helper()
	for _, p := range plugins {
		_, err := f.registry.Register(context.Background(), p, plugin.InitEnv{})
		require.NoError(f.t, err)
	}
	return f
}

func (f *fixture) assign(pluginID string, a ...settings.AssignmentSettings) *fixture {
	ps, ok := f.settings.Plugin(pluginID)
	if !ok {
		f.settings.Plugins = append(f.settings.Plugins, settings.PluginSettings{PluginID: pluginID})
		ps = &f.settings.Plugins[len(f.settings.Plugins)-1]
	}
	ps.Contexts = append(ps.Contexts, a...)
	return f
}

func (f *fixture) pluginVars(pluginID string, values variables.Values) *fixture {
	f.assign(pluginID)
	ps, _ := f.settings.Plugin(pluginID)
	ps.Variables = values
	return f
}

func at(contextID string) settings.AssignmentSettings {
	return settings.AssignmentSettings{Context: contextID}
}

func (f *fixture) dispatcher(opts ...Option) *Dispatcher {
	f.t.Helper()
	_, err := f.store.Install(context.Background(), f.settings, "test")
	require.NoError(f.t, err)
	return New(f.registry, f.store, f.sink, logger.Nop(), opts...)
}

func event(contextID string) model.StreamEvent {
	return model.StreamEvent{
		StreamID: "kjzl-stream",
		Context:  contextID,
		Model:    "kh4-model",
		Content:  map[string]any{"body": "hello there"},
	}
}

type stubClient struct {
	name string
}

func (c *stubClient) Load(context.Context, string) (*model.StreamRecord, error) {
	return nil, ports.ErrStreamNotFound
}
