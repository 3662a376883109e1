package blocklistplugin

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/model"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/plugin"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/variables"
)

func initPlugin(t *testing.T) plugin.Capabilities {
	t.Helper()
	caps, err := New().Init(context.Background(), plugin.InitEnv{})
	require.NoError(t, err)
	return caps
}

func route(t *testing.T, caps plugin.Capabilities, method, path string) plugin.RouteFunc {
	t.Helper()
	for _, r := range caps.Routes {
		if r.Method == method && r.Path == path {
			return r.Handler
		}
	}
	t.Fatalf("route %s %s not found", method, path)
	return nil
}

func vars(values variables.Values) variables.Arguments {
	return variables.ResolveAll(New().Manifest().Variables, values, nil)
}

func TestManifestIsValid(t *testing.T) {
	t.Parallel()
	require.NoError(t, New().Manifest().Validate())
}

func TestValidateAndTagByMode(t *testing.T) {
	t.Parallel()

	caps := initPlugin(t)
	validate := caps.Hooks[plugin.HookValidate].(plugin.ValidateFunc)
	tag := caps.Hooks[plugin.HookModerateStreamID].(plugin.MetadataFunc)

	cases := []struct {
		name     string
		values   variables.Values
		streamID string
		accept   bool
		tagged   bool
	}{
		{name: "default mode rejects", values: variables.Values{"stream_ids": []any{"bad"}}, streamID: "bad"},
		{name: "unlisted accepted", values: variables.Values{"stream_ids": []any{"bad"}}, streamID: "good", accept: true},
		{name: "tag mode accepts and tags", values: variables.Values{"stream_ids": []any{"bad"}, "mode": ModeTag}, streamID: "bad", accept: true, tagged: true},
		{name: "tag mode unlisted", values: variables.Values{"stream_ids": []any{"bad"}, "mode": ModeTag}, streamID: "good", accept: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			call := plugin.Call{Stream: model.StreamEvent{StreamID: tc.streamID}, Vars: vars(tc.values)}

			verdict, err := validate(context.Background(), call)
			require.NoError(t, err)
			require.Equal(t, tc.accept, verdict.Accept)
			if !tc.accept {
				require.Equal(t, RejectReason, verdict.Reason)
			}

			meta, err := tag(context.Background(), call)
			require.NoError(t, err)
			if tc.tagged {
				require.Equal(t, map[string]any{"blocked": true}, meta)
			} else {
				require.Nil(t, meta)
			}
		})
	}
}

func TestAddBlockedRequiresAPIKey(t *testing.T) {
	t.Parallel()

	caps := initPlugin(t)
	add := route(t, caps, http.MethodPost, "/blocked")
	list := route(t, caps, http.MethodGet, "/blocked")
	validate := caps.Hooks[plugin.HookValidate].(plugin.ValidateFunc)
	args := vars(variables.Values{"api_key": "secret", "stream_ids": []any{"b"}})

	resp, err := add(context.Background(), plugin.RouteRequest{Body: []byte(`{"stream_id":"a","api_key":"wrong"}`), Vars: args})
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.Status)

	resp, err = add(context.Background(), plugin.RouteRequest{Body: []byte(`not json`), Vars: args})
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.Status)

	resp, err = add(context.Background(), plugin.RouteRequest{Body: []byte(`{"api_key":"secret"}`), Vars: args})
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.Status)

	resp, err = add(context.Background(), plugin.RouteRequest{Body: []byte(`{"stream_id":"a","api_key":"secret"}`), Vars: args})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.Status)

	resp, err = list(context.Background(), plugin.RouteRequest{Vars: args})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"mode": ModeReject, "stream_ids": []string{"a", "b"}}, resp.Body)

	verdict, err := validate(context.Background(), plugin.Call{Stream: model.StreamEvent{StreamID: "a"}, Vars: args})
	require.NoError(t, err)
	require.False(t, verdict.Accept)
}

func TestAddBlockedWithoutConfiguredKey(t *testing.T) {
	t.Parallel()

	add := route(t, initPlugin(t), http.MethodPost, "/blocked")
	resp, err := add(context.Background(), plugin.RouteRequest{Body: []byte(`{"stream_id":"a","api_key":""}`), Vars: vars(nil)})
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.Status)
}
