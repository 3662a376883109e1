package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/contexttree"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/dispatch"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/model"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/plugin"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/ports"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/settings"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/variables"
	orbiserrors "github.com/OrbisWeb3/orbisdb-sub001/pkg/errors"
)

// ErrorResponse is the body of every non-2xx answer produced by the host.
type ErrorResponse struct {
	Error string `json:"error"`
}

// IngestResponse is returned by POST /api/streams.
type IngestResponse struct {
	State           dispatch.State      `json:"state"`
	Record          *model.StreamRecord `json:"record,omitempty"`
	Rejection       *dispatch.Rejection `json:"rejection,omitempty"`
	Failures        []FailureView       `json:"failures,omitempty"`
	Error           string              `json:"error,omitempty"`
	SettingsVersion uint64              `json:"settings_version"`
	CorrelationID   string              `json:"correlation_id"`
}

// FailureView names a hook that failed during the pass. Error details stay in
// the logs under the correlation id.
type FailureView struct {
	PluginID   string `json:"plugin_id"`
	Hook       string `json:"hook"`
	Assignment string `json:"assignment"`
	Timeout    bool   `json:"timeout,omitempty"`
}

func failureViews(errs []error) []FailureView {
	var out []FailureView
	for _, err := range errs {
		var herr *orbiserrors.HookExecutionError
		if errors.As(err, &herr) {
			out = append(out, FailureView{PluginID: herr.Plugin, Hook: herr.Hook, Assignment: herr.Assignment, Timeout: herr.Timeout})
		}
	}
	return out
}

func abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error()})
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	}
	if s.deps.Snapshots != nil {
		body["settings_version"] = s.deps.Snapshots.Current().Version
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleIngest(c *gin.Context) {
	var event model.StreamEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		abort(c, http.StatusBadRequest, fmt.Errorf("invalid stream event: %w", err))
		return
	}

	outcome, err := s.deps.Dispatcher.Dispatch(c.Request.Context(), event)
	resp := IngestResponse{
		State:           outcome.State,
		Record:          outcome.Record,
		Rejection:       outcome.Rejection,
		SettingsVersion: outcome.SettingsVersion,
		CorrelationID:   outcome.CorrelationID,
		Failures:        failureViews(outcome.Errors),
	}

	switch {
	case err != nil:
		resp.Error = "failed to persist stream"
		c.JSON(http.StatusInternalServerError, resp)
	case outcome.State == dispatch.StateRejected:
		c.JSON(http.StatusUnprocessableEntity, resp)
	default:
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) handleGetStream(c *gin.Context) {
	id := c.Param("id")
	if s.deps.Streams == nil {
		abort(c, http.StatusNotFound, ports.ErrStreamNotFound)
		return
	}
	record, err := s.deps.Streams.Load(c.Request.Context(), id)
	if errors.Is(err, ports.ErrStreamNotFound) {
		abort(c, http.StatusNotFound, fmt.Errorf("stream %s: %w", id, err))
		return
	}
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleChain(c *gin.Context) {
	id := c.Param("id")
	snap := s.deps.Snapshots.Current()
	if id != contexttree.GlobalID {
		if _, ok := contexttree.Find(snap.Settings.Contexts, id); !ok {
			abort(c, http.StatusNotFound, fmt.Errorf("context %q not found", id))
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"context":          id,
		"chain":            snap.Chain(id),
		"settings_version": snap.Version,
	})
}

// PluginView describes an installed plugin. Private variable values are
// never included.
type PluginView struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Version     string           `json:"version"`
	Description string           `json:"description,omitempty"`
	Available   bool             `json:"available"`
	Error       string           `json:"error,omitempty"`
	Hooks       []string         `json:"hooks"`
	Routes      []string         `json:"routes"`
	Variables   []variables.Spec `json:"variables"`
	Settings    *SettingsView    `json:"settings,omitempty"`
}

// SettingsView is the configured state of one plugin.
type SettingsView struct {
	Variables   variables.Values `json:"variables"`
	Assignments []AssignmentView `json:"assignments"`
}

// AssignmentView is one expanded assignment.
type AssignmentView struct {
	UUID      string           `json:"uuid"`
	Context   string           `json:"context"`
	Variables variables.Values `json:"variables"`
}

func (s *Server) handleListPlugins(c *gin.Context) {
	snap := s.deps.Snapshots.Current()
	descs := s.deps.Catalog.Descriptors()
	out := make([]PluginView, 0, len(descs))
	for _, d := range descs {
		out = append(out, pluginView(d, snap))
	}
	c.JSON(http.StatusOK, gin.H{"plugins": out, "settings_version": snap.Version})
}

func pluginView(d *plugin.Descriptor, snap *settings.Snapshot) PluginView {
	schema := d.Manifest.Variables
	view := PluginView{
		ID:          d.ID(),
		Name:        d.Manifest.DisplayName(),
		Version:     d.Manifest.Version,
		Description: d.Manifest.Description,
		Available:   d.Available,
		Hooks:       []string{},
		Routes:      []string{},
		Variables:   schema,
	}
	if d.InitErr != nil {
		view.Error = d.InitErr.Error()
	}
	for kind := range d.Hooks {
		view.Hooks = append(view.Hooks, string(kind))
	}
	sort.Strings(view.Hooks)
	for _, r := range d.Routes {
		view.Routes = append(view.Routes, r.Method+" "+r.Path)
	}

	stored, ok := snap.Plugin(d.ID())
	if !ok {
		return view
	}
	view.Settings = &SettingsView{
		Variables:   variables.Redact(schema, stored.Variables),
		Assignments: []AssignmentView{},
	}
	for _, a := range snap.Assignments.ForPlugin(d.ID()) {
		view.Settings.Assignments = append(view.Settings.Assignments, AssignmentView{
			UUID:      a.UUID,
			Context:   a.ContextID,
			Variables: variables.Redact(schema, a.Variables),
		})
	}
	return view
}

func (s *Server) handlePluginRoute(c *gin.Context) {
	pluginID := c.Param("plugin_id")
	route, err := s.deps.Catalog.Route(pluginID, c.Request.Method, c.Param("path"))
	if err != nil {
		var notFound plugin.ErrPluginNotFound
		var noRoute plugin.ErrRouteNotFound
		if errors.As(err, &notFound) || errors.As(err, &noRoute) {
			abort(c, http.StatusNotFound, err)
			return
		}
		abort(c, http.StatusInternalServerError, err)
		return
	}

	var body []byte
	if c.Request.Body != nil {
		body, err = io.ReadAll(c.Request.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				abort(c, http.StatusRequestEntityTooLarge, err)
				return
			}
			abort(c, http.StatusBadRequest, err)
			return
		}
	}

	resp, err := route(c.Request.Context(), plugin.RouteRequest{
		Method: c.Request.Method,
		Path:   c.Param("path"),
		Query:  c.Request.URL.Query(),
		Body:   body,
		Vars:   s.pluginVars(pluginID),
		Client: s.deps.Streams,
	})
	if err != nil {
		s.logger.With("plugin_id", pluginID, "path", c.Param("path")).Error(err, "plugin route failed")
		abort(c, http.StatusInternalServerError, fmt.Errorf("plugin %s: %w", pluginID, err))
		return
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	if resp.Body == nil {
		c.Status(status)
		return
	}
	c.JSON(status, resp.Body)
}

// pluginVars resolves the plugin-level variables of the current snapshot.
func (s *Server) pluginVars(pluginID string) variables.Arguments {
	var schema []variables.Spec
	for _, d := range s.deps.Catalog.Descriptors() {
		if d.ID() == pluginID {
			schema = d.Manifest.Variables
			break
		}
	}
	var stored variables.Values
	if ps, ok := s.deps.Snapshots.Current().Plugin(pluginID); ok {
		stored = ps.Variables
	}
	return variables.ResolveAll(schema, stored, nil)
}
