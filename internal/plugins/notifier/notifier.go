package notifierplugin

import (
	"context"
	"net/http"
	"sync"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/plugin"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/variables"
)

// ID is the plugin id used in settings.
const ID = "index-notifier"

const unknownModel = "_"

type notifierPlugin struct {
	mu     sync.Mutex
	total  int
	counts map[string]map[string]int
}

// New creates a plugin that counts indexed streams per context and model.
func New() plugin.Plugin {
	return &notifierPlugin{counts: make(map[string]map[string]int)}
}

var _ plugin.Plugin = (*notifierPlugin)(nil)

func (p *notifierPlugin) Manifest() plugin.Manifest {
	return plugin.Manifest{
		ID:          ID,
		Name:        "Index notifier",
		Version:     "1.0.0",
		Description: "Counts finalized streams per context and model.",
		Variables: []variables.Spec{
			{ID: "models", Name: "Models", Type: variables.TypeArray, PerContext: true, Description: "Only count these models. Empty counts all."},
		},
	}
}

func (p *notifierPlugin) Init(context.Context, plugin.InitEnv) (plugin.Capabilities, error) {
	return plugin.Capabilities{
		Hooks: map[plugin.HookKind]plugin.Hook{
			plugin.HookPostProcess: plugin.NotifyFunc(p.notify),
		},
		Routes: plugin.RoutesByMethod(map[string]map[string]plugin.RouteFunc{
			http.MethodGet:    {"/counts": p.snapshot},
			http.MethodDelete: {"/counts": p.reset},
		}),
	}, nil
}

func (p *notifierPlugin) notify(_ context.Context, call plugin.Call) error {
	if call.Record == nil {
		return nil
	}
	model := call.Record.Model
	if !wanted(call.Vars.Strings("models"), model) {
		return nil
	}
	if model == "" {
		model = unknownModel
	}

	p.mu.Lock()
	byModel, ok := p.counts[call.ContextID]
	if !ok {
		byModel = make(map[string]int)
		p.counts[call.ContextID] = byModel
	}
	byModel[model]++
	p.total++
	p.mu.Unlock()

	if call.Logger != nil {
		call.Logger.With("stream_id", call.Record.StreamID, "model", model).Debug("stream counted")
	}
	return nil
}

func wanted(models []string, model string) bool {
	if len(models) == 0 {
		return true
	}
	for _, m := range models {
		if m == model {
			return true
		}
	}
	return false
}

func (p *notifierPlugin) snapshot(context.Context, plugin.RouteRequest) (plugin.RouteResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	contexts := make(map[string]map[string]int, len(p.counts))
	for ctxID, byModel := range p.counts {
		cp := make(map[string]int, len(byModel))
		for m, n := range byModel {
			cp[m] = n
		}
		contexts[ctxID] = cp
	}
	return plugin.RouteResponse{Body: map[string]any{"total": p.total, "contexts": contexts}}, nil
}

func (p *notifierPlugin) reset(context.Context, plugin.RouteRequest) (plugin.RouteResponse, error) {
	p.mu.Lock()
	p.total = 0
	p.counts = make(map[string]map[string]int)
	p.mu.Unlock()
	return plugin.RouteResponse{Status: http.StatusNoContent}, nil
}
