package plugin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/logger"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/model"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/ports"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/variables"
)

// HookKind names a lifecycle extension point.
type HookKind string

const (
	// HookValidate gates a stream. Any rejection rejects the stream.
	HookValidate HookKind = "validate"
	// HookAddMetadata contributes keys to the stream metadata.
	HookAddMetadata HookKind = "add_metadata"
	// HookModerateContent contributes moderation keys based on content.
	HookModerateContent HookKind = "moderate_stream_content"
	// HookModerateStreamID receives only the stream id and contributes keys
	// when its own condition matches.
	HookModerateStreamID HookKind = "moderated_based_on_stream_id"
	// HookPostProcess is notified after the record was persisted.
	HookPostProcess HookKind = "post_process"
)

// Contract is the aggregation semantics attached to a hook kind.
type Contract int

const (
	// ContractGate hooks return a Verdict.
	ContractGate Contract = iota + 1
	// ContractMerge hooks return a partial metadata object.
	ContractMerge
	// ContractNotify hooks return only an error.
	ContractNotify
)

func (c Contract) String() string {
	switch c {
	case ContractGate:
		return "gate"
	case ContractMerge:
		return "merge"
	case ContractNotify:
		return "notify"
	}
	return "unknown"
}

var contracts = map[HookKind]Contract{
	HookValidate:         ContractGate,
	HookAddMetadata:      ContractMerge,
	HookModerateContent:  ContractMerge,
	HookModerateStreamID: ContractMerge,
	HookPostProcess:      ContractNotify,
}

// MergeKinds lists the merge-contract kinds in the order a single plugin's
// results are folded into the metadata.
var MergeKinds = []HookKind{HookAddMetadata, HookModerateContent, HookModerateStreamID}

// Contract returns the aggregation contract for the kind.
func (k HookKind) Contract() (Contract, bool) {
	c, ok := contracts[k]
	return c, ok
}

// Keyed reports whether the hook receives only the stream id.
func (k HookKind) Keyed() bool {
	return k == HookModerateStreamID
}

// Kinds returns every known hook kind in sorted order.
func Kinds() []HookKind {
	out := make([]HookKind, 0, len(contracts))
	for k := range contracts {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Call is the single argument every hook receives.
type Call struct {
	PluginID     string
	AssignmentID string
	ContextID    string
	Kind         HookKind
	// Stream is the inbound event. Keyed hooks only see the stream id.
	Stream model.StreamEvent
	// Record is set for post_process hooks.
	Record *model.StreamRecord
	// Vars holds every resolved variable, private ones included.
	Vars   variables.Arguments
	Client ports.StreamClient
	Logger *logger.Logger
}

// Verdict is the outcome of a validate hook.
type Verdict struct {
	Accept bool
	Reason string
}

// Accept admits the stream.
func Accept() Verdict { return Verdict{Accept: true} }

// Reject rejects the stream with an optional reason.
func Reject(reason string) Verdict { return Verdict{Reason: reason} }

// Hook is implemented by the typed hook function variants below.
type Hook interface {
	contract() Contract
}

// ValidateFunc implements a gate hook.
type ValidateFunc func(ctx context.Context, call Call) (Verdict, error)

// MetadataFunc implements a merge hook. A nil map means no opinion.
type MetadataFunc func(ctx context.Context, call Call) (map[string]any, error)

// NotifyFunc implements a notify hook.
type NotifyFunc func(ctx context.Context, call Call) error

func (ValidateFunc) contract() Contract { return ContractGate }
func (MetadataFunc) contract() Contract { return ContractMerge }
func (NotifyFunc) contract() Contract   { return ContractNotify }

func checkHooks(hooks map[HookKind]Hook) error {
	for kind, hook := range hooks {
		want, ok := kind.Contract()
		if !ok {
			return fmt.Errorf("unknown hook kind %q", kind)
		}
		if hook == nil {
			return fmt.Errorf("hook %q is nil", kind)
		}
		if got := hook.contract(); got != want {
			return fmt.Errorf("hook %q must be a %s hook, got %s", kind, want, got)
		}
	}
	return nil
}

// RouteRequest is what a plugin route handler receives.
type RouteRequest struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
	// Vars holds the plugin-level variables, private ones included.
	Vars   variables.Arguments
	Client ports.StreamClient
}

// RouteResponse is returned by route handlers. A zero Status means 200.
type RouteResponse struct {
	Status int
	Body   any
}

// RouteFunc handles a plugin route.
type RouteFunc func(ctx context.Context, req RouteRequest) (RouteResponse, error)

// Route binds a handler to a method and a path relative to the plugin's
// route prefix.
type Route struct {
	Method  string
	Path    string
	Handler RouteFunc
}

// RoutesByMethod normalizes a method -> path -> handler map into routes.
func RoutesByMethod(m map[string]map[string]RouteFunc) []Route {
	var out []Route
	for method, paths := range m {
		for path, fn := range paths {
			out = append(out, Route{Method: method, Path: path, Handler: fn})
		}
	}
	return normalizeRoutes(out)
}

// RoutesByPath normalizes a path -> method -> handler map into routes.
func RoutesByPath(m map[string]map[string]RouteFunc) []Route {
	var out []Route
	for path, methods := range m {
		for method, fn := range methods {
			out = append(out, Route{Method: method, Path: path, Handler: fn})
		}
	}
	return normalizeRoutes(out)
}

func normalizeRoutes(routes []Route) []Route {
	for i := range routes {
		routes[i].Method = strings.ToUpper(strings.TrimSpace(routes[i].Method))
		routes[i].Path = "/" + strings.Trim(strings.TrimSpace(routes[i].Path), "/")
	}
	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	return routes
}

func checkRoutes(routes []Route) error {
	seen := make(map[string]struct{}, len(routes))
	for _, r := range routes {
		switch r.Method {
		case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			return fmt.Errorf("route %s has unsupported method %q", r.Path, r.Method)
		}
		if r.Handler == nil {
			return fmt.Errorf("route %s %s has no handler", r.Method, r.Path)
		}
		key := r.Method + " " + r.Path
		if _, dup := seen[key]; dup {
			return fmt.Errorf("route %s declared more than once", key)
		}
		seen[key] = struct{}{}
	}
	return nil
}
