package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	orbiserrors "github.com/OrbisWeb3/orbisdb-sub001/pkg/errors"
)

const sampleJSON = `{
  "contexts": [
    {"stream_id": "app1", "name": "App", "contexts": [
      {"stream_id": "sub1", "name": "Sub"}
    ]}
  ],
  "plugins": [
    {
      "plugin_id": "hello-metadata",
      "variables": {"greeting": "hi", "retries": 3},
      "timeout": "2s",
      "contexts": [
        {"context": "app1", "uuid": "a-1", "variables": {"hello": "world"}}
      ]
    }
  ],
  "dispatch": {"hook_timeout": 1500, "enrich_parallelism": 2}
}
`

const sampleYAML = `contexts:
  - stream_id: app1
    name: App
    contexts:
      - stream_id: sub1
        name: Sub
plugins:
  - plugin_id: hello-metadata
    variables:
      greeting: hi
      retries: 3
    timeout: 2s
    contexts:
      - context: app1
        uuid: a-1
        variables:
          hello: world
dispatch:
  hook_timeout: 1500
  enrich_parallelism: 2
`

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadFormats(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		file     string
		contents string
	}{
		{name: "json", file: "settings.json", contents: sampleJSON},
		{name: "yaml", file: "settings.yaml", contents: sampleYAML},
		{name: "yml", file: "settings.yml", contents: sampleYAML},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s, err := Load(writeFile(t, tc.file, tc.contents))
			require.NoError(t, err)

			require.Len(t, s.Contexts, 1)
			require.Equal(t, "sub1", s.Contexts[0].Children[0].ID)

			p, ok := s.Plugin("hello-metadata")
			require.True(t, ok)
			require.Equal(t, "hi", p.Variables["greeting"])
			require.Equal(t, 3, p.Variables["retries"])
			require.Equal(t, 2*time.Second, time.Duration(p.Timeout))
			require.Equal(t, "world", p.Contexts[0].Variables["hello"])

			require.Equal(t, 1500*time.Millisecond, s.Dispatch.EffectiveHookTimeout())
			require.Equal(t, 2, s.Dispatch.EffectiveParallelism())
		})
	}
}

func TestLoadReportsParseErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
		var perr *orbiserrors.ParseError
		require.ErrorAs(t, err, &perr)
		require.Equal(t, 0, perr.Line)
	})

	t.Run("yaml line", func(t *testing.T) {
		path := writeFile(t, "bad.yaml", "contexts:\n  - stream_id: a\n    name: [unterminated\n")
		_, err := Load(path)
		var perr *orbiserrors.ParseError
		require.ErrorAs(t, err, &perr)
		require.Greater(t, perr.Line, 0)
	})

	t.Run("json line", func(t *testing.T) {
		path := writeFile(t, "bad.json", "{\n  \"contexts\": [\n    }\n")
		_, err := Load(path)
		var perr *orbiserrors.ParseError
		require.ErrorAs(t, err, &perr)
		require.Equal(t, 3, perr.Line)
	})

	t.Run("negative duration", func(t *testing.T) {
		path := writeFile(t, "neg.json", `{"dispatch": {"hook_timeout": "-1s"}}`)
		_, err := Load(path)
		var perr *orbiserrors.ParseError
		require.ErrorAs(t, err, &perr)
	})
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		json    string
		wantErr string
	}{
		{name: "empty document", json: `{}`},
		{name: "missing context name", json: `{"contexts":[{"stream_id":"a"}]}`, wantErr: "name"},
		{name: "bad context id", json: `{"contexts":[{"stream_id":"a b","name":"A"}]}`, wantErr: "context_id"},
		{
			name:    "duplicate context id",
			json:    `{"contexts":[{"stream_id":"a","name":"A","contexts":[{"stream_id":"a","name":"again"}]}]}`,
			wantErr: "duplicate context id",
		},
		{name: "reserved context id", json: `{"contexts":[{"stream_id":"global","name":"G"}]}`, wantErr: "reserved"},
		{name: "bad plugin id", json: `{"plugins":[{"plugin_id":"Bad Plugin"}]}`, wantErr: "plugin_id"},
		{
			name:    "duplicate plugin",
			json:    `{"plugins":[{"plugin_id":"p"},{"plugin_id":"p"}]}`,
			wantErr: "already configured",
		},
		{
			name:    "assignment without context",
			json:    `{"plugins":[{"plugin_id":"p","contexts":[{"uuid":"x"}]}]}`,
			wantErr: "context or a path",
		},
		{
			name: "duplicate uuid is not fatal",
			json: `{"plugins":[{"plugin_id":"p","contexts":[{"context":"a","uuid":"x"},{"context":"b","uuid":"x"}]}]}`,
		},
		{name: "parallelism bound", json: `{"dispatch":{"enrich_parallelism":1000}}`, wantErr: "max"},
		{
			name: "dangling context is not fatal",
			json: `{"plugins":[{"plugin_id":"p","contexts":[{"context":"nowhere"}]}]}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse("settings.json", []byte(tc.json))
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			var verr *orbiserrors.ValidationError
			require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateSettingsNil(t *testing.T) {
	t.Parallel()

	require.Error(t, ValidateSettings(nil))
}
