package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/store/memory"
	"github.com/jade-labs/atomgraph/pkg/vector"
	vmemory "github.com/jade-labs/atomgraph/pkg/vector/memory"
)

type fakeEmbedder struct {
	vec   []float32
	fails int
	calls int
	input string
}

func (e *fakeEmbedder) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	e.calls++
	e.input = string(input)
	if e.calls <= e.fails {
		return nil, errors.New("model unavailable")
	}
	return e.vec, nil
}

func seedStore(t *testing.T) *memory.Storage {
	t.Helper()
	s := memory.New()
	t2 := common.ThresholdIngredientBasics
	err := s.AddAtom(common.Atom{
		ID:        "niacinamide",
		Type:      common.AtomTypeIngredient,
		Title:     "Niacinamide",
		Glance:    "Calms and brightens.",
		Scan:      "Vitamin B3 regulates sebum.",
		Threshold: &t2,
		Tensor: common.NewTensor("niacinamide", map[common.TensorDimension]float64{
			common.DimSebumRegulation: 0.8,
		}),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func reindexBody(t *testing.T, atomID string) []byte {
	t.Helper()
	b, err := json.Marshal(QueueReindexMsg{AtomID: atomID})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestPublisher_NotifyReindex(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch)

	if err := p.NotifyReindex(context.Background(), "niacinamide"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ch.published) != 1 || ch.published[0].key != ReindexQueue {
		t.Fatalf("expected one publish to %s, got %+v", ReindexQueue, ch.published)
	}
	var msg QueueReindexMsg
	if err := json.Unmarshal(ch.published[0].msg.Body, &msg); err != nil {
		t.Fatalf("body: %v", err)
	}
	if msg.AtomID != "niacinamide" || msg.RequestID == "" || msg.RequestedAt.IsZero() {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestProcessReindexMessage(t *testing.T) {
	idx := vmemory.New()
	emb := &fakeEmbedder{vec: []float32{1, 0, 0}, fails: 1}
	ix := NewIndexer(NewIndexerParams{Store: seedStore(t), Embedder: emb, Index: idx, Tries: 2, Backoff: 1})

	if err := ix.ProcessReindexMessage(context.Background(), reindexBody(t, "niacinamide")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.calls != 2 {
		t.Fatalf("expected one retry, got %d calls", emb.calls)
	}
	if emb.input != "Niacinamide\nCalms and brightens.\nVitamin B3 regulates sebum." {
		t.Fatalf("unexpected embedding text %q", emb.input)
	}

	matches, err := idx.Search(context.Background(), vector.Query{Vector: []float32{1, 0, 0}, Field: vector.FieldEmbedding})
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected indexed embedding, got %v (%v)", matches, err)
	}
	if matches[0].Threshold != common.ThresholdIngredientBasics || matches[0].Type != common.AtomTypeIngredient {
		t.Fatalf("unexpected match metadata %+v", matches[0])
	}

	tensor := make([]float32, common.TensorDimensionCount)
	tensor[common.DimSebumRegulation] = 1
	matches, err = idx.Search(context.Background(), vector.Query{Vector: tensor, Field: vector.FieldTensor})
	if err != nil || len(matches) != 1 || matches[0].Distance > 1e-6 {
		t.Fatalf("expected indexed tensor, got %v (%v)", matches, err)
	}
}

func TestProcessReindexMessage_WithoutEmbedder(t *testing.T) {
	idx := vmemory.New()
	ix := NewIndexer(NewIndexerParams{Store: seedStore(t), Index: idx})

	if err := ix.ProcessReindexMessage(context.Background(), reindexBody(t, "niacinamide")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	matches, err := idx.Search(context.Background(), vector.Query{Vector: []float32{1, 0, 0}, Field: vector.FieldEmbedding})
	if err != nil || len(matches) != 0 {
		t.Fatalf("expected no embedding, got %v (%v)", matches, err)
	}
}

func TestProcessReindexMessage_Dropped(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"malformed", []byte("{")},
		{"missing id", []byte(`{"atom_id":""}`)},
		{"vanished atom", []byte(`{"atom_id":"gone"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := NewIndexer(NewIndexerParams{Store: seedStore(t), Index: vmemory.New()})
			if err := ix.ProcessReindexMessage(context.Background(), tt.body); err != nil {
				t.Fatalf("expected message to be dropped, got %v", err)
			}
		})
	}
}

func TestProcessReindexMessage_EmbedFailure(t *testing.T) {
	emb := &fakeEmbedder{fails: 5}
	ix := NewIndexer(NewIndexerParams{Store: seedStore(t), Embedder: emb, Index: vmemory.New(), Tries: 2, Backoff: 1})

	err := ix.ProcessReindexMessage(context.Background(), reindexBody(t, "niacinamide"))
	if !errors.Is(err, common.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if emb.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", emb.calls)
	}
}

type fakeLocker struct {
	keys []string
	err  error
}

func (l *fakeLocker) WithLease(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}

func TestProcessReindexMessage_HoldsLease(t *testing.T) {
	locker := &fakeLocker{}
	ix := NewIndexer(NewIndexerParams{Store: seedStore(t), Index: vmemory.New(), Locker: locker})

	if err := ix.ProcessReindexMessage(context.Background(), reindexBody(t, "niacinamide")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(locker.keys) != 1 || locker.keys[0] != "reindex:niacinamide" {
		t.Fatalf("expected lease on reindex:niacinamide, got %v", locker.keys)
	}

	locker.err = errors.New("lease lock busy")
	if err := ix.ProcessReindexMessage(context.Background(), reindexBody(t, "niacinamide")); err == nil {
		t.Fatal("expected lease error to be returned for retry")
	}
}
