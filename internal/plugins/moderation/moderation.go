package moderationplugin

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/plugin"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/variables"
)

// ID is the plugin id used in settings.
const ID = "keyword-moderation"

// Actions accepted by the action variable.
const (
	ActionReject = "reject"
	ActionFlag   = "flag"
)

const (
	defaultField  = "body"
	defaultLabel  = "moderation"
	defaultReason = "content contains a blocked keyword"
)

type moderationPlugin struct{}

// New creates a plugin that rejects or flags streams whose content field
// contains one of the configured keywords.
func New() plugin.Plugin {
	return &moderationPlugin{}
}

var _ plugin.Plugin = (*moderationPlugin)(nil)

func (p *moderationPlugin) Manifest() plugin.Manifest {
	return plugin.Manifest{
		ID:          ID,
		Name:        "Keyword moderation",
		Version:     "1.0.0",
		Description: "Rejects or flags streams containing blocked keywords.",
		Variables: []variables.Spec{
			{ID: "keywords", Name: "Keywords", Type: variables.TypeArray},
			{
				ID:   "action",
				Name: "Action",
				Type: variables.TypeSelect,
				Options: []variables.Option{
					{Value: ActionReject, Label: "Reject the stream"},
					{Value: ActionFlag, Label: "Index and flag the stream"},
				},
			},
			{
				ID:         "reason",
				Name:       "Rejection reason",
				Type:       variables.TypeText,
				Conditions: []variables.Condition{{Variable: "action", Value: ActionReject}},
			},
			{
				ID:         "label",
				Name:       "Metadata key",
				Type:       variables.TypeText,
				Conditions: []variables.Condition{{Variable: "action", Value: ActionFlag}},
			},
			{ID: "field", Name: "Content field", Type: variables.TypeText, PerContext: true},
		},
	}
}

func (p *moderationPlugin) Init(context.Context, plugin.InitEnv) (plugin.Capabilities, error) {
	return plugin.Capabilities{
		Hooks: map[plugin.HookKind]plugin.Hook{
			plugin.HookValidate:        plugin.ValidateFunc(validate),
			plugin.HookModerateContent: plugin.MetadataFunc(moderate),
		},
	}, nil
}

func validate(_ context.Context, call plugin.Call) (plugin.Verdict, error) {
	if call.Vars.String("action") != ActionReject {
		return plugin.Accept(), nil
	}
	if len(matches(call)) == 0 {
		return plugin.Accept(), nil
	}
	reason := call.Vars.String("reason")
	if reason == "" {
		reason = defaultReason
	}
	return plugin.Reject(reason), nil
}

func moderate(_ context.Context, call plugin.Call) (map[string]any, error) {
	if call.Vars.String("action") != ActionFlag {
		return nil, nil
	}
	found := matches(call)
	if len(found) == 0 {
		return nil, nil
	}
	label := call.Vars.String("label")
	if label == "" {
		label = defaultLabel
	}
	return map[string]any{
		label: map[string]any{
			"flagged":  true,
			"keywords": found,
			"field":    field(call),
		},
	}, nil
}

func field(call plugin.Call) string {
	if f := strings.TrimSpace(call.Vars.String("field")); f != "" {
		return f
	}
	return defaultField
}

// matches returns the configured keywords found in the content field,
// compared case-insensitively, sorted and without duplicates.
func matches(call plugin.Call) []string {
	text := strings.ToLower(contentText(call.Stream.Content[field(call)]))
	if text == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var found []string
	for _, kw := range call.Vars.Strings("keywords") {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		if strings.Contains(text, kw) {
			seen[kw] = struct{}{}
			found = append(found, kw)
		}
	}
	sort.Strings(found)
	return found
}

func contentText(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			parts = append(parts, contentText(item))
		}
		return strings.Join(parts, " ")
	}
	return fmt.Sprint(v)
}
