package moderationplugin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/model"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/plugin"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/variables"
)

func hooks(t *testing.T) (plugin.ValidateFunc, plugin.MetadataFunc) {
	t.Helper()
	caps, err := New().Init(context.Background(), plugin.InitEnv{})
	require.NoError(t, err)
	v, ok := caps.Hooks[plugin.HookValidate].(plugin.ValidateFunc)
	require.True(t, ok)
	m, ok := caps.Hooks[plugin.HookModerateContent].(plugin.MetadataFunc)
	require.True(t, ok)
	return v, m
}

func call(pluginVars, contextVars variables.Values, content map[string]any) plugin.Call {
	return plugin.Call{
		Stream: model.StreamEvent{StreamID: "s", Content: content},
		Vars:   variables.ResolveAll(New().Manifest().Variables, pluginVars, contextVars),
	}
}

func TestManifestIsValid(t *testing.T) {
	t.Parallel()
	require.NoError(t, New().Manifest().Validate())
}

func TestValidateRejectsKeywords(t *testing.T) {
	t.Parallel()

	validate, _ := hooks(t)
	cases := []struct {
		name       string
		pluginVars variables.Values
		content    map[string]any
		accept     bool
		reason     string
	}{
		{
			name:       "match with custom reason",
			pluginVars: variables.Values{"action": ActionReject, "keywords": []any{"Spam"}, "reason": "no spam"},
			content:    map[string]any{"body": "this is SPAM"},
			reason:     "no spam",
		},
		{
			name:       "match with default reason",
			pluginVars: variables.Values{"action": ActionReject, "keywords": []any{"spam"}},
			content:    map[string]any{"body": "spam"},
			reason:     defaultReason,
		},
		{
			name:       "no match",
			pluginVars: variables.Values{"action": ActionReject, "keywords": []any{"spam"}},
			content:    map[string]any{"body": "ham"},
			accept:     true,
		},
		{
			name:       "flag mode never rejects",
			pluginVars: variables.Values{"action": ActionFlag, "keywords": []any{"spam"}},
			content:    map[string]any{"body": "spam"},
			accept:     true,
		},
		{
			name:       "missing field",
			pluginVars: variables.Values{"action": ActionReject, "keywords": []any{"spam"}},
			content:    map[string]any{"title": "spam"},
			accept:     true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verdict, err := validate(context.Background(), call(tc.pluginVars, nil, tc.content))
			require.NoError(t, err)
			require.Equal(t, tc.accept, verdict.Accept)
			require.Equal(t, tc.reason, verdict.Reason)
		})
	}
}

func TestModerateFlagsPerContextField(t *testing.T) {
	t.Parallel()

	_, moderate := hooks(t)
	pluginVars := variables.Values{"action": ActionFlag, "keywords": []any{"buy", "cheap", "buy"}, "label": "review"}

	got, err := moderate(context.Background(), call(pluginVars, variables.Values{"field": "title"}, map[string]any{
		"title": "Buy cheap tokens",
		"body":  "nothing",
	}))
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"review": map[string]any{"flagged": true, "keywords": []string{"buy", "cheap"}, "field": "title"},
	}, got)

	got, err = moderate(context.Background(), call(pluginVars, nil, map[string]any{"body": "fine"}))
	require.NoError(t, err)
	require.Nil(t, got)

	reject := variables.Values{"action": ActionReject, "keywords": []any{"buy"}}
	got, err = moderate(context.Background(), call(reject, nil, map[string]any{"body": "buy"}))
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestReasonIgnoredOutsideRejectMode(t *testing.T) {
	t.Parallel()

	c := call(variables.Values{"action": ActionFlag, "reason": "unused"}, nil, nil)
	_, ok := c.Vars.Get("reason")
	require.False(t, ok)
}
