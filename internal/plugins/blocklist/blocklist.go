package blocklistplugin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/plugin"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/variables"
)

// ID is the plugin id used in settings.
const ID = "stream-blocklist"

// Modes accepted by the mode variable.
const (
	ModeReject = "reject"
	ModeTag    = "tag"
)

// RejectReason is returned by the validate hook for blocked streams.
const RejectReason = "stream is blocklisted"

type blocklistPlugin struct {
	mu      sync.RWMutex
	runtime map[string]struct{}
}

// New creates a plugin that rejects or tags streams by id. Ids come from the
// stream_ids variable and from POST /blocked.
func New() plugin.Plugin {
	return &blocklistPlugin{runtime: make(map[string]struct{})}
}

var _ plugin.Plugin = (*blocklistPlugin)(nil)

func (p *blocklistPlugin) Manifest() plugin.Manifest {
	return plugin.Manifest{
		ID:          ID,
		Name:        "Stream blocklist",
		Version:     "1.0.0",
		Description: "Rejects or tags streams whose id is on a blocklist.",
		Variables: []variables.Spec{
			{ID: "stream_ids", Name: "Blocked stream ids", Type: variables.TypeArray},
			{
				ID:          "mode",
				Name:        "Mode",
				Type:        variables.TypeSelect,
				Description: "Defaults to reject.",
				Options: []variables.Option{
					{Value: ModeReject, Label: "Reject blocked streams"},
					{Value: ModeTag, Label: "Index and tag blocked streams"},
				},
			},
			{ID: "api_key", Name: "API key", Type: variables.TypeText, Private: true, Description: "Required to add ids over HTTP."},
		},
	}
}

func (p *blocklistPlugin) Init(context.Context, plugin.InitEnv) (plugin.Capabilities, error) {
	return plugin.Capabilities{
		Hooks: map[plugin.HookKind]plugin.Hook{
			plugin.HookValidate:         plugin.ValidateFunc(p.validate),
			plugin.HookModerateStreamID: plugin.MetadataFunc(p.tag),
		},
		Routes: plugin.RoutesByPath(map[string]map[string]plugin.RouteFunc{
			"/blocked": {
				http.MethodGet:  p.listBlocked,
				http.MethodPost: p.addBlocked,
			},
		}),
	}, nil
}

func mode(vars variables.Arguments) string {
	if m := vars.String("mode"); m != "" {
		return m
	}
	return ModeReject
}

func (p *blocklistPlugin) validate(_ context.Context, call plugin.Call) (plugin.Verdict, error) {
	if mode(call.Vars) != ModeReject || !p.blocked(call.Vars, call.Stream.StreamID) {
		return plugin.Accept(), nil
	}
	return plugin.Reject(RejectReason), nil
}

func (p *blocklistPlugin) tag(_ context.Context, call plugin.Call) (map[string]any, error) {
	if mode(call.Vars) != ModeTag || !p.blocked(call.Vars, call.Stream.StreamID) {
		return nil, nil
	}
	return map[string]any{"blocked": true}, nil
}

func (p *blocklistPlugin) blocked(vars variables.Arguments, streamID string) bool {
	if streamID == "" {
		return false
	}
	for _, id := range vars.Strings("stream_ids") {
		if strings.TrimSpace(id) == streamID {
			return true
		}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.runtime[streamID]
	return ok
}

func (p *blocklistPlugin) ids(vars variables.Arguments) []string {
	set := make(map[string]struct{})
	for _, id := range vars.Strings("stream_ids") {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	p.mu.RLock()
	for id := range p.runtime {
		set[id] = struct{}{}
	}
	p.mu.RUnlock()

	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (p *blocklistPlugin) listBlocked(_ context.Context, req plugin.RouteRequest) (plugin.RouteResponse, error) {
	return plugin.RouteResponse{Body: map[string]any{
		"mode":       mode(req.Vars),
		"stream_ids": p.ids(req.Vars),
	}}, nil
}

type addRequest struct {
	StreamID string `json:"stream_id"`
	APIKey   string `json:"api_key"`
}

func errorBody(status int, msg string) plugin.RouteResponse {
	return plugin.RouteResponse{Status: status, Body: map[string]any{"error": msg}}
}

func (p *blocklistPlugin) addBlocked(_ context.Context, req plugin.RouteRequest) (plugin.RouteResponse, error) {
	var body addRequest
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return errorBody(http.StatusBadRequest, "invalid request body"), nil
	}

	key := req.Vars.String("api_key")
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(body.APIKey)) != 1 {
		return errorBody(http.StatusUnauthorized, "invalid api key"), nil
	}

	id := strings.TrimSpace(body.StreamID)
	if id == "" {
		return errorBody(http.StatusBadRequest, "stream_id is required"), nil
	}

	p.mu.Lock()
	p.runtime[id] = struct{}{}
	p.mu.Unlock()

	return plugin.RouteResponse{Status: http.StatusCreated, Body: map[string]any{"stream_id": id}}, nil
}
