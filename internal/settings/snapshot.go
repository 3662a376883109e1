package settings

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/assignment"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/contexttree"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/logger"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/ports"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/variables"
	orbiserrors "github.com/OrbisWeb3/orbisdb-sub001/pkg/errors"
)

// Snapshot is an immutable, versioned view of the settings. A dispatch pass
// holds one snapshot for its whole duration.
type Snapshot struct {
	Version     uint64
	Settings    *Settings
	Assignments *assignment.Table
	// Problems lists non-fatal configuration errors. The offending entries
	// are left out of Assignments.
	Problems []error
	LoadedAt time.Time
	Source   string
}

// Chain returns the applicable assignment chain for a context id.
func (s *Snapshot) Chain(contextID string) []string {
	return contexttree.ApplicableChain(s.Settings.Contexts, contextID)
}

// Plugin returns the stored settings of a plugin.
func (s *Snapshot) Plugin(id string) (*PluginSettings, bool) {
	return s.Settings.Plugin(id)
}

// SchemaFunc returns the declared variable schema of an installed plugin.
type SchemaFunc func(pluginID string) ([]variables.Spec, bool)

// BuildSnapshot expands the stored assignments into an assignment table. The
// settings are deep-copied so later edits by the caller cannot reach the
// snapshot. schemas may be nil, in which case plugin and variable references
// are not checked.
func BuildSnapshot(s *Settings, version uint64, source string, schemas SchemaFunc) (*Snapshot, error) {
	if err := ValidateSettings(s); err != nil {
		return nil, err
	}
	owned := s.Clone()

	index, err := contexttree.Index(owned.Contexts)
	if err != nil {
		return nil, orbiserrors.NewValidationError("contexts", err.Error(), err)
	}

	var problems []error
	var entries []assignment.Assignment
	for _, p := range owned.Plugins {
		var schema []variables.Spec
		if schemas != nil {
			var known bool
			schema, known = schemas(p.PluginID)
			if !known {
				problems = append(problems, orbiserrors.NewConfigurationError(p.PluginID, "", "plugin is not installed"))
			} else {
				problems = append(problems, checkScope(p.PluginID, "", schema, p.Variables, false)...)
			}
		}

		uuids := make(map[string]struct{}, len(p.Contexts))
		for j, a := range p.Contexts {
			id := a.UUID
			if id == "" {
				id = DeterministicUUID(p.PluginID, j)
			}
			if _, dup := uuids[id]; dup {
				problems = append(problems, orbiserrors.NewConfigurationError(p.PluginID, "", fmt.Sprintf("uuid %q is used by more than one assignment", id)))
				continue
			}
			uuids[id] = struct{}{}
			for _, ctxID := range a.ContextIDs() {
				if _, ok := index[ctxID]; !ok && ctxID != contexttree.GlobalID {
					problems = append(problems, orbiserrors.NewConfigurationError(p.PluginID, ctxID, "assigned context does not exist"))
					continue
				}
				if schema != nil {
					problems = append(problems, checkScope(p.PluginID, ctxID, schema, a.Variables, true)...)
				}
				entries = append(entries, assignment.Assignment{
					Key:       assignment.Key{PluginID: p.PluginID, ContextID: ctxID, UUID: id},
					Variables: cloneValues(a.Variables),
				})
			}
		}
	}

	table, err := assignment.New(entries)
	if err != nil {
		return nil, orbiserrors.NewValidationError("plugins", err.Error(), err)
	}

	return &Snapshot{
		Version:     version,
		Settings:    owned,
		Assignments: table,
		Problems:    problems,
		LoadedAt:    time.Now().UTC(),
		Source:      source,
	}, nil
}

// DeterministicUUID names an assignment stored without a uuid. The result
// is stable across reloads of the same file.
func DeterministicUUID(pluginID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("orbisdb/%s/%d", pluginID, index))).String()
}

// checkScope reports stored keys that are undeclared, stored at the wrong
// level, or not one of a select variable's options.
func checkScope(pluginID, contextID string, schema []variables.Spec, stored variables.Values, perContext bool) []error {
	var problems []error
	for _, key := range sortedKeys(stored) {
		spec, ok := variables.Lookup(schema, key)
		switch {
		case !ok:
			problems = append(problems, orbiserrors.NewConfigurationError(pluginID, contextID, fmt.Sprintf("variable %q is not declared", key)))
		case spec.PerContext != perContext:
			problems = append(problems, orbiserrors.NewConfigurationError(pluginID, contextID, fmt.Sprintf("variable %q is stored at the wrong level", key)))
		default:
			if err := variables.CheckOption(spec, stored[key]); err != nil {
				problems = append(problems, orbiserrors.NewConfigurationError(pluginID, contextID, err.Error()))
			}
		}
	}
	return problems
}

// Store holds the current snapshot. Readers never block; installs are
// serialized and swap the pointer atomically.
type Store struct {
	current   atomic.Pointer[Snapshot]
	mu        sync.Mutex
	version   uint64
	schemas   SchemaFunc
	publisher ports.EventPublisher
	logger    *logger.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSchemas checks plugin and variable references on every install.
func WithSchemas(fn SchemaFunc) StoreOption {
	return func(s *Store) { s.schemas = fn }
}

// WithPublisher publishes settings.reloaded on every install.
func WithPublisher(p ports.EventPublisher) StoreOption {
	return func(s *Store) { s.publisher = p }
}

// NewStore returns a store holding an empty version 0 snapshot.
func NewStore(log *logger.Logger, opts ...StoreOption) *Store {
	s := &Store{logger: log}
	for _, opt := range opts {
		opt(s)
	}
	empty, _ := assignment.New(nil)
	s.current.Store(&Snapshot{Settings: &Settings{}, Assignments: empty, LoadedAt: time.Now().UTC()})
	return s
}

// Current returns the installed snapshot. It is never nil.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Install validates settings and makes them the current snapshot. On error
// the previous snapshot stays in place.
func (s *Store) Install(ctx context.Context, settings *Settings, source string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := BuildSnapshot(settings, s.version+1, source, s.schemas)
	if err != nil {
		s.logger.With("source", source).Error(err, "settings rejected")
		return nil, err
	}
	s.version = snap.Version
	s.current.Store(snap)

	log := s.logger.With("source", source, "version", snap.Version)
	for _, problem := range snap.Problems {
		log.Warn(problem.Error())
	}
	log.With("assignments", snap.Assignments.Len(), "problems", len(snap.Problems)).Info("settings installed")

	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, ports.Event{
			Type: ports.EventSettingsReloaded,
			Fields: map[string]any{
				"version":     snap.Version,
				"source":      source,
				"assignments": snap.Assignments.Len(),
				"problems":    len(snap.Problems),
			},
		})
	}
	return snap, nil
}

// LoadFile reads, validates, and installs a settings file.
func (s *Store) LoadFile(ctx context.Context, path string) (*Snapshot, error) {
	parsed, err := Load(path)
	if err != nil {
		s.logger.With("source", path).Error(err, "settings rejected")
		return nil, err
	}
	return s.Install(ctx, parsed, path)
}
