package query

import (
	"context"
	"sort"
	"sync"

	"github.com/jade-labs/atomgraph/pkg/logger"
)

type TraceEventKind string

const (
	TraceEventConsideredAtomIDs      TraceEventKind = "considered_atom_ids"
	TraceEventReturnedAtomIDs        TraceEventKind = "returned_atom_ids"
	TraceEventQueriedAtomIDs         TraceEventKind = "queried_atom_ids"
	TraceEventQueriedRelationshipIDs TraceEventKind = "queried_relationship_ids"
	TraceEventQueriedAtomTypes       TraceEventKind = "queried_atom_types"
	TraceEventSearchPath             TraceEventKind = "search_path"
)

// TraceEvent is an extensible event envelope for query tracing.
// Additive changes to this struct are backward compatible for implementers.
type TraceEvent struct {
	Kind TraceEventKind

	AtomIDs         []string
	RelationshipIDs []string
	AtomTypes       []string

	// Path is "vector" or "metadata" for TraceEventSearchPath.
	Path       string
	DurationMs int64
	Error      string
}

// Tracer is a sink for query tracing events.
//
// Implementers can forward events to logs, telemetry, or audit storage.
type Tracer interface {
	Record(event TraceEvent)
}

// MultiTracer fan-outs trace events to multiple tracers.
type MultiTracer []Tracer

func (m MultiTracer) Record(event TraceEvent) {
	for _, t := range m {
		if t == nil {
			continue
		}
		t.Record(event)
	}
}

type traceKey struct{}

// WithTrace attaches a request-scoped tracer to ctx.
func WithTrace(ctx context.Context, t Tracer) context.Context {
	return context.WithValue(ctx, traceKey{}, t)
}

// TracerFor combines the configured tracer with the one carried by ctx, if any.
func TracerFor(ctx context.Context, base Tracer) Tracer {
	scoped, _ := ctx.Value(traceKey{}).(Tracer)
	switch {
	case scoped == nil:
		return base
	case base == nil:
		return scoped
	}
	return MultiTracer{base, scoped}
}

// LogTracer writes every trace event to the debug log.
type LogTracer struct{}

func (LogTracer) Record(event TraceEvent) {
	keyvals := []any{"kind", string(event.Kind)}
	if len(event.AtomIDs) > 0 {
		keyvals = append(keyvals, "atom_ids", event.AtomIDs)
	}
	if len(event.RelationshipIDs) > 0 {
		keyvals = append(keyvals, "relationship_ids", event.RelationshipIDs)
	}
	if len(event.AtomTypes) > 0 {
		keyvals = append(keyvals, "atom_types", event.AtomTypes)
	}
	if event.Path != "" {
		keyvals = append(keyvals, "path", event.Path, "duration_ms", event.DurationMs)
	}
	if event.Error != "" {
		keyvals = append(keyvals, "error", event.Error)
	}
	logger.Debug("[Trace] Query event", keyvals...)
}

func RecordConsideredAtomIDs(t Tracer, ids ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventConsideredAtomIDs, AtomIDs: ids})
}

func RecordReturnedAtomIDs(t Tracer, ids ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventReturnedAtomIDs, AtomIDs: ids})
}

func RecordQueriedAtomIDs(t Tracer, ids ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventQueriedAtomIDs, AtomIDs: ids})
}

func RecordQueriedRelationshipIDs(t Tracer, ids ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventQueriedRelationshipIDs, RelationshipIDs: ids})
}

func RecordQueriedAtomTypes(t Tracer, types ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventQueriedAtomTypes, AtomTypes: types})
}

func RecordSearchPath(t Tracer, path string, durationMs int64, err error) {
	if t == nil {
		return
	}
	ev := TraceEvent{Kind: TraceEventSearchPath, Path: path, DurationMs: durationMs}
	if err != nil {
		ev.Error = err.Error()
	}
	t.Record(ev)
}

// QueryTrace collects which atoms and relationships a request touched.
//
// QueryTrace is safe for concurrent use.
type QueryTrace struct {
	mu sync.Mutex

	consideredAtomIDs      map[string]struct{}
	returnedAtomIDs        map[string]struct{}
	queriedAtomIDs         map[string]struct{}
	queriedRelationshipIDs map[string]struct{}
	queriedAtomTypes       map[string]struct{}
	searchPaths            []string
}

type QueryTraceSnapshot struct {
	ConsideredAtomIDs      []string `json:"considered_atom_ids"`
	ReturnedAtomIDs        []string `json:"returned_atom_ids"`
	QueriedAtomIDs         []string `json:"queried_atom_ids"`
	QueriedRelationshipIDs []string `json:"queried_relationship_ids"`
	QueriedAtomTypes       []string `json:"queried_atom_types"`
	SearchPaths            []string `json:"search_paths"`
}

func NewQueryTrace() *QueryTrace {
	return &QueryTrace{
		consideredAtomIDs:      make(map[string]struct{}),
		returnedAtomIDs:        make(map[string]struct{}),
		queriedAtomIDs:         make(map[string]struct{}),
		queriedRelationshipIDs: make(map[string]struct{}),
		queriedAtomTypes:       make(map[string]struct{}),
	}
}

func addAll(set map[string]struct{}, vals []string) {
	for _, v := range vals {
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (t *QueryTrace) Record(event TraceEvent) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Kind {
	case TraceEventConsideredAtomIDs:
		addAll(t.consideredAtomIDs, event.AtomIDs)
	case TraceEventReturnedAtomIDs:
		addAll(t.returnedAtomIDs, event.AtomIDs)
	case TraceEventQueriedAtomIDs:
		addAll(t.queriedAtomIDs, event.AtomIDs)
	case TraceEventQueriedRelationshipIDs:
		addAll(t.queriedRelationshipIDs, event.RelationshipIDs)
	case TraceEventQueriedAtomTypes:
		addAll(t.queriedAtomTypes, event.AtomTypes)
	case TraceEventSearchPath:
		if event.Path != "" {
			t.searchPaths = append(t.searchPaths, event.Path)
		}
	default:
		return
	}
}

func (t *QueryTrace) Snapshot() QueryTraceSnapshot {
	if t == nil {
		return QueryTraceSnapshot{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return QueryTraceSnapshot{
		ConsideredAtomIDs:      sortedKeys(t.consideredAtomIDs),
		ReturnedAtomIDs:        sortedKeys(t.returnedAtomIDs),
		QueriedAtomIDs:         sortedKeys(t.queriedAtomIDs),
		QueriedRelationshipIDs: sortedKeys(t.queriedRelationshipIDs),
		QueriedAtomTypes:       sortedKeys(t.queriedAtomTypes),
		SearchPaths:            append([]string(nil), t.searchPaths...),
	}
}
