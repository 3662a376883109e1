// Package dispatch runs a stream through the hooks of every plugin that
// applies to its context: validation, enrichment, persistence and post
// processing.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/assignment"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/logger"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/model"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/plugin"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/ports"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/settings"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/variables"
	orbiserrors "github.com/OrbisWeb3/orbisdb-sub001/pkg/errors"
)

// State is the phase of a stream processing pass.
type State string

const (
	StateReceived   State = "RECEIVED"
	StateValidating State = "VALIDATING"
	StateEnriching  State = "ENRICHING"
	StateFinalized  State = "FINALIZED"
	StateRejected   State = "REJECTED"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateFinalized || s == StateRejected
}

// Outcome is the result of one pass. Exactly one of Record and Rejection is
// set once the pass reached a terminal state.
type Outcome struct {
	State           State
	Record          *model.StreamRecord
	Rejection       *Rejection
	Errors          []error
	SettingsVersion uint64
	CorrelationID   string
}

// Registry is the part of the plugin registry the dispatcher reads.
type Registry interface {
	HooksByKind(kind plugin.HookKind) []plugin.HookBinding
	Get(id string) (*plugin.Descriptor, error)
}

// SnapshotSource yields the settings snapshot a pass runs against.
type SnapshotSource interface {
	Current() *settings.Snapshot
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPublisher publishes lifecycle events.
func WithPublisher(p ports.EventPublisher) Option {
	return func(d *Dispatcher) { d.publisher = p }
}

// WithMetrics records hook and pass metrics.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithClient sets the stream client handed to every hook call.
func WithClient(c ports.StreamClient) Option {
	return func(d *Dispatcher) { d.client = c }
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// Dispatcher is safe for concurrent use. Passes share only the read-only
// registry and the snapshot each of them captured at the start.
type Dispatcher struct {
	registry  Registry
	snapshots SnapshotSource
	sink      ports.Sink
	client    ports.StreamClient
	publisher ports.EventPublisher
	metrics   *Metrics
	logger    *logger.Logger
	now       func() time.Time
}

// New creates a dispatcher. sink may be nil, in which case finalized records
// are not persisted anywhere.
func New(registry Registry, snapshots SnapshotSource, sink ports.Sink, log *logger.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:  registry,
		snapshots: snapshots,
		sink:      sink,
		logger:    log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// target is one applicable assignment of a plugin with its resolved variables.
type target struct {
	pluginID   string
	assignment assignment.Assignment
	vars       variables.Arguments
	timeout    time.Duration
}

// pass carries the per-stream state. It is owned by a single goroutine
// except for the enrichment results slice, whose slots are written by
// distinct workers.
type pass struct {
	event    model.StreamEvent
	snapshot *settings.Snapshot
	chain    []string
	targets  map[string][]target
	outcome  Outcome
	logger   *logger.Logger
}

// Dispatch processes one stream event. A rejection is a normal outcome, not
// an error. The returned error is non-nil only when the sink failed to
// persist an accepted stream; the outcome then stays in ENRICHING.
func (d *Dispatcher) Dispatch(ctx context.Context, event model.StreamEvent) (Outcome, error) {
	started := time.Now()
	d.metrics.passStarted()
	defer d.metrics.passDone()

	correlationID := logger.CorrelationID(ctx)
	if correlationID == "" {
		correlationID = logger.NewCorrelationID()
		ctx = logger.WithCorrelationID(ctx, correlationID)
	}

	snap := d.snapshots.Current()
	p := &pass{
		event:    event,
		snapshot: snap,
		chain:    snap.Chain(event.Context),
		targets:  make(map[string][]target),
		outcome: Outcome{
			State:           StateReceived,
			SettingsVersion: snap.Version,
			CorrelationID:   correlationID,
		},
		logger: d.logger.With(
			"stream_id", event.StreamID,
			"context", event.Context,
			"correlation_id", correlationID,
			"settings_version", snap.Version,
		),
	}

	if event.Context != "" && event.Context != p.chain[len(p.chain)-1] {
		p.logger.Debug("context not found in tree, only global assignments apply")
	}
	d.publish(ctx, ports.EventStreamReceived, p, nil)

	p.outcome.State = StateValidating
	if decision := d.validate(ctx, p); !decision.Accept {
		p.outcome.State = StateRejected
		p.outcome.Rejection = decision.Rejection
		p.logger.With("plugin_id", decision.Rejection.PluginID, "reason", decision.Rejection.Reason).Info("stream rejected")
		d.publish(ctx, ports.EventStreamRejected, p, map[string]any{
			"plugin_id": decision.Rejection.PluginID,
			"reason":    decision.Rejection.Reason,
		})
		d.metrics.ObservePass(StateRejected, time.Since(started))
		return p.outcome, nil
	}

	p.outcome.State = StateEnriching
	metadata := d.enrich(ctx, p)

	record := model.NewStreamRecord(event, metadata, snap.Version, d.now())
	if d.sink != nil {
		if err := d.sink.Persist(ctx, record); err != nil {
			err = fmt.Errorf("persist stream %s: %w", event.StreamID, err)
			p.outcome.Errors = append(p.outcome.Errors, err)
			p.logger.Error(err, "failed to persist stream")
			d.metrics.ObservePass(StateEnriching, time.Since(started))
			return p.outcome, err
		}
	}

	p.outcome.State = StateFinalized
	p.outcome.Record = &record
	p.logger.With("metadata_keys", len(metadata), "errors", len(p.outcome.Errors)).Info("stream finalized")
	d.publish(ctx, ports.EventStreamFinalized, p, map[string]any{"metadata_keys": len(metadata)})

	d.postProcess(ctx, p, record)
	d.metrics.ObservePass(StateFinalized, time.Since(started))
	return p.outcome, nil
}

// targetsFor returns the applicable assignments of a plugin in chain order
// and then table order, resolving variables once per pass.
func (d *Dispatcher) targetsFor(p *pass, pluginID string) []target {
	if cached, ok := p.targets[pluginID]; ok {
		return cached
	}

	desc, err := d.registry.Get(pluginID)
	if err != nil {
		p.targets[pluginID] = nil
		return nil
	}

	var pluginValues variables.Values
	timeout := p.snapshot.Settings.Dispatch.EffectiveHookTimeout()
	if ps, ok := p.snapshot.Plugin(pluginID); ok {
		pluginValues = ps.Variables
		if ps.Timeout > 0 {
			timeout = time.Duration(ps.Timeout)
		}
	}

	assignments := p.snapshot.Assignments.OnChain(pluginID, p.chain)
	out := make([]target, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, target{
			pluginID:   pluginID,
			assignment: a,
			vars:       variables.ResolveAll(desc.Manifest.Variables, pluginValues, a.Variables),
			timeout:    timeout,
		})
	}
	p.targets[pluginID] = out
	return out
}

func (d *Dispatcher) call(p *pass, t target, kind plugin.HookKind) plugin.Call {
	stream := p.event.Clone()
	if kind.Keyed() {
		stream = p.event.IDOnly()
	}
	return plugin.Call{
		PluginID:     t.pluginID,
		AssignmentID: t.assignment.UUID,
		ContextID:    t.assignment.ContextID,
		Kind:         kind,
		Stream:       stream,
		Vars:         t.vars,
		Client:       d.client,
		Logger:       p.logger.With("plugin_id", t.pluginID, "hook", string(kind), "assignment", t.assignment.UUID),
	}
}

// validate runs validators sequentially and stops at the first rejection.
func (d *Dispatcher) validate(ctx context.Context, p *pass) Decision {
	var results []ValidationResult
	for _, binding := range d.registry.HooksByKind(plugin.HookValidate) {
		fn, ok := binding.Hook.(plugin.ValidateFunc)
		if !ok {
			continue
		}
		for _, t := range d.targetsFor(p, binding.PluginID) {
			call := d.call(p, t, plugin.HookValidate)
			started := time.Now()
			verdict, timedOut, err := plugin.Guard(ctx, t.timeout, func(ctx context.Context) (plugin.Verdict, error) {
				return fn(ctx, call)
			})

			res := ValidationResult{PluginID: t.pluginID, AssignmentID: t.assignment.UUID, Verdict: verdict}
			result := ResultOK
			switch {
			case err != nil:
				res.Err = d.hookFailed(ctx, p, t, plugin.HookValidate, timedOut, err)
				result = ResultError
				if timedOut {
					result = ResultTimeout
				}
			case !verdict.Accept:
				result = ResultReject
			}
			d.metrics.ObserveHook(t.pluginID, string(plugin.HookValidate), result, time.Since(started))

			results = append(results, res)
			if res.Rejected() {
				return DecideValidation(results)
			}
		}
	}
	return DecideValidation(results)
}

// mergeBinding is one merge hook of one plugin.
type mergeBinding struct {
	order    int
	kind     plugin.HookKind
	pluginID string
	fn       plugin.MetadataFunc
}

// mergeBindings lists every merge hook in plugin registration order, then in
// plugin.MergeKinds order within a plugin.
func (d *Dispatcher) mergeBindings() []mergeBinding {
	var out []mergeBinding
	for _, kind := range plugin.MergeKinds {
		for _, binding := range d.registry.HooksByKind(kind) {
			fn, ok := binding.Hook.(plugin.MetadataFunc)
			if !ok {
				continue
			}
			desc, err := d.registry.Get(binding.PluginID)
			if err != nil {
				continue
			}
			out = append(out, mergeBinding{order: desc.Order, kind: kind, pluginID: binding.PluginID, fn: fn})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].order < out[j].order })
	return out
}

// enrich runs every merge hook concurrently and folds the results in plugin
// registration order, then kind order, then invocation order, whatever order
// they complete in. A later plugin wins a key collision whichever merge kind
// either side used.
func (d *Dispatcher) enrich(ctx context.Context, p *pass) map[string]any {
	type job struct {
		t    target
		kind plugin.HookKind
		fn   plugin.MetadataFunc
		call plugin.Call
	}

	var jobs []job
	for _, b := range d.mergeBindings() {
		for _, t := range d.targetsFor(p, b.pluginID) {
			jobs = append(jobs, job{t: t, kind: b.kind, fn: b.fn, call: d.call(p, t, b.kind)})
		}
	}
	if len(jobs) == 0 {
		return MergeMetadata(nil)
	}

	partials := make([]map[string]any, len(jobs))
	failures := make([]error, len(jobs))

	var g errgroup.Group
	g.SetLimit(p.snapshot.Settings.Dispatch.EffectiveParallelism())
	for i, j := range jobs {
		g.Go(func() error {
			started := time.Now()
			partial, timedOut, err := plugin.Guard(ctx, j.t.timeout, func(ctx context.Context) (map[string]any, error) {
				return j.fn(ctx, j.call)
			})
			result := ResultOK
			if err != nil {
				result = ResultError
				if timedOut {
					result = ResultTimeout
				}
				failures[i] = d.hookFailed(ctx, p, j.t, j.kind, timedOut, err)
			} else {
				partials[i] = partial
			}
			d.metrics.ObserveHook(j.t.pluginID, string(j.kind), result, time.Since(started))
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range failures {
		if err != nil {
			p.outcome.Errors = append(p.outcome.Errors, err)
		}
	}
	return MergeMetadata(partials)
}

// postProcess notifies post_process hooks in order. Failures are recorded.
func (d *Dispatcher) postProcess(ctx context.Context, p *pass, record model.StreamRecord) {
	for _, binding := range d.registry.HooksByKind(plugin.HookPostProcess) {
		fn, ok := binding.Hook.(plugin.NotifyFunc)
		if !ok {
			continue
		}
		for _, t := range d.targetsFor(p, binding.PluginID) {
			call := d.call(p, t, plugin.HookPostProcess)
			rec := record
			call.Record = &rec
			started := time.Now()
			_, timedOut, err := plugin.Guard(ctx, t.timeout, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, fn(ctx, call)
			})
			result := ResultOK
			if err != nil {
				result = ResultError
				if timedOut {
					result = ResultTimeout
				}
				p.outcome.Errors = append(p.outcome.Errors, d.hookFailed(ctx, p, t, plugin.HookPostProcess, timedOut, err))
			}
			d.metrics.ObserveHook(t.pluginID, string(plugin.HookPostProcess), result, time.Since(started))
		}
	}
}

// hookFailed wraps, logs and publishes a hook failure. It is called from
// enrichment workers, so it must not touch the pass outcome.
func (d *Dispatcher) hookFailed(ctx context.Context, p *pass, t target, kind plugin.HookKind, timedOut bool, err error) error {
	herr := orbiserrors.NewHookExecutionError(t.pluginID, string(kind), t.assignment.UUID, timedOut, err)
	log := p.logger.With("plugin_id", t.pluginID, "hook", string(kind), "assignment", t.assignment.UUID)
	var perr *plugin.PanicError
	if errors.As(err, &perr) {
		log = log.With("stack", string(perr.Stack))
	}
	log.Error(herr, "hook failed")
	d.publish(ctx, ports.EventHookFailed, p, map[string]any{
		"plugin_id":  t.pluginID,
		"hook":       string(kind),
		"assignment": t.assignment.UUID,
		"timeout":    timedOut,
		"error":      err.Error(),
	})
	return herr
}

func (d *Dispatcher) publish(ctx context.Context, eventType string, p *pass, fields map[string]any) {
	if d.publisher == nil {
		return
	}
	payload := map[string]any{
		"stream_id":        p.event.StreamID,
		"context":          p.event.Context,
		"settings_version": p.snapshot.Version,
	}
	for k, v := range fields {
		payload[k] = v
	}
	_ = d.publisher.Publish(ctx, ports.Event{Type: eventType, Fields: payload})
}
