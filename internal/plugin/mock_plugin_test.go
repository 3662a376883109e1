package plugin

import (
	"context"
	"sync/atomic"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/variables"
)

type MockPluginOption func(*MockPlugin)

type MockPlugin struct {
	manifest  Manifest
	caps      Capabilities
	initErr   error
	initPanic any
	block     bool
	initCalls atomic.Int32
	lastEnv   InitEnv
}

func NewMockPlugin(id string, opts ...MockPluginOption) *MockPlugin {
	mp := &MockPlugin{
		manifest: Manifest{ID: id, Name: id, Version: "1.0.0"},
		caps:     Capabilities{Hooks: map[HookKind]Hook{}},
	}
	for _, opt := range opts {
		opt(mp)
	}
	return mp
}

func WithHook(kind HookKind, hook Hook) MockPluginOption {
	return func(mp *MockPlugin) {
		mp.caps.Hooks[kind] = hook
	}
}

func WithRoutes(routes ...Route) MockPluginOption {
	return func(mp *MockPlugin) {
		mp.caps.Routes = append(mp.caps.Routes, routes...)
	}
}

func WithVariables(specs ...variables.Spec) MockPluginOption {
	return func(mp *MockPlugin) {
		mp.manifest.Variables = specs
	}
}

func WithInitError(err error) MockPluginOption {
	return func(mp *MockPlugin) {
		mp.initErr = err
	}
}

func WithInitPanic(v any) MockPluginOption {
	return func(mp *MockPlugin) {
		mp.initPanic = v
	}
}

func WithBlockingInit() MockPluginOption {
	return func(mp *MockPlugin) {
		mp.block = true
	}
}

func (m *MockPlugin) Manifest() Manifest { return m.manifest }

func (m *MockPlugin) Init(ctx context.Context, env InitEnv) (Capabilities, error) {
	m.initCalls.Add(1)
	m.lastEnv = env
	if m.initPanic != nil {
		panic(m.initPanic)
	}
	if m.block {
		<-ctx.Done()
		return Capabilities{}, ctx.Err()
	}
	if m.initErr != nil {
		return Capabilities{}, m.initErr
	}
	return m.caps, nil
}

func acceptAll() ValidateFunc {
	return func(context.Context, Call) (Verdict, error) { return Accept(), nil }
}

func metadata(m map[string]any) MetadataFunc {
	return func(context.Context, Call) (map[string]any, error) { return m, nil }
}
