package helloplugin

import (
	"context"
	"strings"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/plugin"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/variables"
)

// ID is the plugin id used in settings.
const ID = "hello-metadata"

const defaultKey = "hello"

type helloPlugin struct{}

// New creates a plugin that adds one configurable key to stream metadata.
func New() plugin.Plugin {
	return &helloPlugin{}
}

var _ plugin.Plugin = (*helloPlugin)(nil)

func (p *helloPlugin) Manifest() plugin.Manifest {
	return plugin.Manifest{
		ID:          ID,
		Name:        "Hello metadata",
		Version:     "1.0.0",
		Description: "Adds a fixed key/value pair to the metadata of every stream in the assigned contexts.",
		Variables: []variables.Spec{
			{ID: "key", Name: "Metadata key", Type: variables.TypeText, Description: "Defaults to \"hello\"."},
			{ID: "value", Name: "Value", Type: variables.TypeText, PerContext: true},
		},
	}
}

func (p *helloPlugin) Init(context.Context, plugin.InitEnv) (plugin.Capabilities, error) {
	return plugin.Capabilities{
		Hooks: map[plugin.HookKind]plugin.Hook{
			plugin.HookAddMetadata: plugin.MetadataFunc(addMetadata),
		},
	}, nil
}

func addMetadata(_ context.Context, call plugin.Call) (map[string]any, error) {
	value, ok := call.Vars.Get("value")
	if !ok {
		return nil, nil
	}
	key := strings.TrimSpace(call.Vars.String("key"))
	if key == "" {
		key = defaultKey
	}
	return map[string]any{key: value}, nil
}
