package query

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jade-labs/atomgraph/pkg/logger"
)

func TestQueryTrace_Snapshot(t *testing.T) {
	tr := NewQueryTrace()
	RecordQueriedAtomIDs(tr, "b", "a", "", "a")
	RecordQueriedRelationshipIDs(tr, "r2", "r1")
	RecordConsideredAtomIDs(tr, "c")
	RecordReturnedAtomIDs(tr, "c")
	RecordQueriedAtomTypes(tr, "INGREDIENT")
	RecordSearchPath(tr, "metadata", 3, errors.New("index down"))

	s := tr.Snapshot()
	if len(s.QueriedAtomIDs) != 2 || s.QueriedAtomIDs[0] != "a" || s.QueriedAtomIDs[1] != "b" {
		t.Fatalf("unexpected atom ids: %v", s.QueriedAtomIDs)
	}
	if len(s.QueriedRelationshipIDs) != 2 || s.QueriedRelationshipIDs[0] != "r1" {
		t.Fatalf("unexpected relationship ids: %v", s.QueriedRelationshipIDs)
	}
	if len(s.SearchPaths) != 1 || s.SearchPaths[0] != "metadata" {
		t.Fatalf("unexpected search paths: %v", s.SearchPaths)
	}
	if len(s.ConsideredAtomIDs) != 1 || len(s.ReturnedAtomIDs) != 1 || len(s.QueriedAtomTypes) != 1 {
		t.Fatalf("unexpected snapshot: %+v", s)
	}
}

func TestQueryTrace_NilSafe(t *testing.T) {
	var tr *QueryTrace
	tr.Record(TraceEvent{Kind: TraceEventQueriedAtomIDs, AtomIDs: []string{"a"}})
	if s := tr.Snapshot(); len(s.QueriedAtomIDs) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", s)
	}
	RecordQueriedAtomIDs(nil, "a")
}

func TestMultiTracer(t *testing.T) {
	a, b := NewQueryTrace(), NewQueryTrace()
	m := MultiTracer{a, nil, b}
	RecordQueriedAtomIDs(m, "x")
	if len(a.Snapshot().QueriedAtomIDs) != 1 || len(b.Snapshot().QueriedAtomIDs) != 1 {
		t.Fatal("expected both tracers to receive the event")
	}
}

func TestQueryTrace_Concurrent(t *testing.T) {
	tr := NewQueryTrace()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			RecordQueriedAtomIDs(tr, string(rune('a'+n)))
		}(i)
	}
	wg.Wait()
	if got := len(tr.Snapshot().QueriedAtomIDs); got != 20 {
		t.Fatalf("expected 20 ids, got %d", got)
	}
}

func TestLogTracer(t *testing.T) {
	rec := &logger.Recorder{}
	logger.Init(rec)
	t.Cleanup(func() { logger.Init() })

	tr := MultiTracer{LogTracer{}, nil}
	RecordQueriedAtomIDs(tr, "retinol")
	RecordSearchPath(tr, "vector", 4, nil)

	if got := rec.Count("debug"); got != 2 {
		t.Fatalf("expected 2 debug entries, got %d", got)
	}
}

func TestTracerFor(t *testing.T) {
	base, scoped := NewQueryTrace(), NewQueryTrace()

	tests := []struct {
		name       string
		ctx        context.Context
		base       Tracer
		wantBase   int
		wantScoped int
	}{
		{"base only", context.Background(), base, 1, 0},
		{"scoped only", WithTrace(context.Background(), scoped), nil, 0, 1},
		{"both", WithTrace(context.Background(), scoped), base, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := tt.name
			RecordQueriedAtomIDs(TracerFor(tt.ctx, tt.base), id)
			if got := countID(base, id); got != tt.wantBase {
				t.Fatalf("base: expected %d, got %d", tt.wantBase, got)
			}
			if got := countID(scoped, id); got != tt.wantScoped {
				t.Fatalf("scoped: expected %d, got %d", tt.wantScoped, got)
			}
		})
	}

	if TracerFor(context.Background(), nil) != nil {
		t.Fatal("expected nil tracer without base or scoped tracer")
	}
}

func countID(tr *QueryTrace, id string) int {
	n := 0
	for _, v := range tr.Snapshot().QueriedAtomIDs {
		if v == id {
			n++
		}
	}
	return n
}
