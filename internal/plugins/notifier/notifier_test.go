package notifierplugin

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/logger"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/model"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/plugin"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/variables"
)

func TestNotifierCountsPerContextAndModel(t *testing.T) {
	t.Parallel()

	p := New()
	require.NoError(t, p.Manifest().Validate())
	caps, err := p.Init(context.Background(), plugin.InitEnv{})
	require.NoError(t, err)
	notify := caps.Hooks[plugin.HookPostProcess].(plugin.NotifyFunc)
	schema := p.Manifest().Variables

	fire := func(ctxID, modelID string, contextVars variables.Values) {
		rec := model.StreamRecord{StreamID: "s", Context: ctxID, Model: modelID}
		require.NoError(t, notify(context.Background(), plugin.Call{
			ContextID: ctxID,
			Record:    &rec,
			Vars:      variables.ResolveAll(schema, nil, contextVars),
			Logger:    logger.Nop(),
		}))
	}

	fire("app1", "posts", nil)
	fire("app1", "posts", nil)
	fire("app1", "", nil)
	fire("app2", "likes", variables.Values{"models": []any{"posts"}})
	fire("app2", "posts", variables.Values{"models": []any{"posts"}})
	require.NoError(t, notify(context.Background(), plugin.Call{ContextID: "app1"}))

	var get, del plugin.RouteFunc
	for _, r := range caps.Routes {
		switch {
		case r.Method == http.MethodGet && r.Path == "/counts":
			get = r.Handler
		case r.Method == http.MethodDelete && r.Path == "/counts":
			del = r.Handler
		}
	}
	require.NotNil(t, get)
	require.NotNil(t, del)

	resp, err := get(context.Background(), plugin.RouteRequest{})
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"total": 4,
		"contexts": map[string]map[string]int{
			"app1": {"posts": 2, unknownModel: 1},
			"app2": {"posts": 1},
		},
	}, resp.Body)

	resp, err = del(context.Background(), plugin.RouteRequest{})
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.Status)

	resp, err = get(context.Background(), plugin.RouteRequest{})
	require.NoError(t, err)
	require.Equal(t, 0, resp.Body.(map[string]any)["total"])
}
