package query

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/logger"
	"github.com/jade-labs/atomgraph/pkg/store"
	"github.com/jade-labs/atomgraph/pkg/store/memory"
	"github.com/jade-labs/atomgraph/pkg/vector"
	vectormemory "github.com/jade-labs/atomgraph/pkg/vector/memory"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[string(input)], nil
}

type recordingIndex struct {
	vector.Index
	queries []vector.Query
	err     error
}

func (r *recordingIndex) Search(ctx context.Context, q vector.Query) ([]vector.Match, error) {
	r.queries = append(r.queries, q)
	if r.err != nil {
		return nil, r.err
	}
	return r.Index.Search(ctx, q)
}

type failingStore struct {
	store.GraphStorage
	getErr  error
	findErr error
}

func (f *failingStore) GetAtom(ctx context.Context, id string) (*common.Atom, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.GraphStorage.GetAtom(ctx, id)
}

func (f *failingStore) FindAtoms(ctx context.Context, filter store.AtomFilter) ([]*common.Atom, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.GraphStorage.FindAtoms(ctx, filter)
}

type fixtureAtom struct {
	atom      common.Atom
	embedding []float32
}

// searchFixture seeds four atoms. The professional-only peel protocol
// sits right next to niacinamide in embedding space.
func searchFixture(t *testing.T) (*memory.Storage, *vectormemory.Index) {
	t.Helper()
	s := memory.New()
	idx := vectormemory.New()

	atoms := []fixtureAtom{
		{common.Atom{
			ID: "niacinamide", Title: "Niacinamide", Type: common.AtomTypeIngredient,
			Glance:    "Brightening and sebum control.",
			Threshold: common.Threshold(common.ThresholdIngredientBasics),
			Tensor: common.NewTensor("niacinamide", map[common.TensorDimension]float64{
				common.DimSebumRegulation: 0.8,
				common.DimBrightening:     0.7,
			}),
		}, []float32{1, 0, 0}},
		{common.Atom{
			ID: "vitamin-c", Title: "Vitamin C", Type: common.AtomTypeIngredient,
			Glance:    "Brightening antioxidant.",
			Threshold: common.Threshold(common.ThresholdSkinFundamentals),
			Tensor: common.NewTensor("vitamin-c", map[common.TensorDimension]float64{
				common.DimBrightening: 0.9,
			}),
		}, []float32{0.8, 0.6, 0}},
		{common.Atom{
			ID: "retinol", Title: "Retinol", Type: common.AtomTypeIngredient,
			Glance:    "Anti-aging retinoid.",
			Threshold: common.Threshold(common.ThresholdIngredientBasics),
			Tensor: common.NewTensor("retinol", map[common.TensorDimension]float64{
				common.DimAntiAgingPotency: 0.9,
			}),
		}, []float32{0, 1, 0}},
		{common.Atom{
			ID: "peel-protocol", Title: "Peel protocol", Type: common.AtomTypeConcept,
			Glance:    "Brightening peel for clinics.",
			Threshold: common.Threshold(common.ThresholdProfessionalTechniques),
			Tensor: common.NewTensor("peel-protocol", map[common.TensorDimension]float64{
				common.DimBrightening:   0.9,
				common.DimExfoliation:   0.8,
				common.DimHydration:     0.1,
				common.DimBarrierRepair: 0.1,
			}),
		}, []float32{1, 0, 0}},
	}
	for _, fa := range atoms {
		if err := s.AddAtom(fa.atom); err != nil {
			t.Fatalf("AddAtom(%s): %v", fa.atom.ID, err)
		}
		err := idx.Upsert(context.Background(), vector.Record{
			AtomID:    fa.atom.ID,
			Embedding: fa.embedding,
			Tensor:    fa.atom.Tensor.Flat(),
			Type:      fa.atom.Type,
			Threshold: fa.atom.EffectiveThreshold(),
		})
		if err != nil {
			t.Fatalf("Upsert(%s): %v", fa.atom.ID, err)
		}
	}
	s.AddEvidence(common.EvidenceClaim{AtomID: "niacinamide", Claim: "Reduces sebum", EvidenceLevel: common.EvidenceHumanControlled})
	return s, idx
}

func brighteningEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{"brightening": {1, 0, 0}}}
}

func resultIDsOf(resp *SearchResponse) []string {
	return resultIDs(resp.Results)
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestSearch_VectorPath(t *testing.T) {
	s, idx := searchFixture(t)
	trace := NewQueryTrace()
	searcher := NewSearcher(NewSearcherParams{Embedder: brighteningEmbedder(), Index: idx, Tracer: trace})

	resp, err := searcher.Search(context.Background(), s, SearchRequest{Query: "brightening"}, common.AccessPublic)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Path != "vector" || resp.FallbackReason != "" {
		t.Fatalf("expected vector path without fallback, got %q/%q", resp.Path, resp.FallbackReason)
	}
	want := []string{"niacinamide", "vitamin-c", "retinol"}
	if !sameIDs(resultIDsOf(resp), want) {
		t.Fatalf("expected %v, got %v", want, resultIDsOf(resp))
	}

	top := resp.Results[0]
	if !near(top.SemanticScore, 1) || !near(top.TensorScore, 1) || !near(top.CombinedScore, 1) {
		t.Fatalf("unexpected top scores %+v", top)
	}
	if top.Threshold != common.ThresholdIngredientBasics {
		t.Fatalf("expected T2 threshold, got %s", top.Threshold)
	}
	if !near(top.EvidenceStrength, 0.71) {
		t.Fatalf("expected evidence strength 0.71, got %v", top.EvidenceStrength)
	}
	if !near(resp.Results[1].SemanticScore, 0.8) {
		t.Fatalf("expected vitamin-c similarity 0.8, got %v", resp.Results[1].SemanticScore)
	}

	snap := trace.Snapshot()
	if len(snap.SearchPaths) != 1 || snap.SearchPaths[0] != "vector" {
		t.Fatalf("expected traced vector path, got %v", snap.SearchPaths)
	}
	for _, id := range snap.ConsideredAtomIDs {
		if id == "peel-protocol" {
			t.Fatal("hidden atom must be filtered inside the index query")
		}
	}
}

func TestSearch_OverFetchesAndTruncates(t *testing.T) {
	s, idx := searchFixture(t)
	rec := &recordingIndex{Index: idx}
	searcher := NewSearcher(NewSearcherParams{Embedder: brighteningEmbedder(), Index: rec})

	resp, err := searcher.Search(context.Background(), s, SearchRequest{Query: "brightening", Limit: 1}, common.AccessPublic)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(rec.queries) != 1 || rec.queries[0].Limit != 2 {
		t.Fatalf("expected one index query with limit 2, got %+v", rec.queries)
	}
	if rec.queries[0].Field != vector.FieldEmbedding {
		t.Fatalf("expected embedding field, got %q", rec.queries[0].Field)
	}
	if !sameIDs(resultIDsOf(resp), []string{"niacinamide"}) {
		t.Fatalf("expected only niacinamide, got %v", resultIDsOf(resp))
	}
}

func TestSearch_TensorTargetAndWeights(t *testing.T) {
	s, idx := searchFixture(t)
	searcher := NewSearcher(NewSearcherParams{Embedder: brighteningEmbedder(), Index: idx})

	semantic, tensor := 0.2, 0.8
	resp, err := searcher.Search(context.Background(), s, SearchRequest{
		Query:          "brightening",
		TensorTarget:   map[common.TensorDimension]float64{common.DimBrightening: 0.9},
		SemanticWeight: &semantic,
		TensorWeight:   &tensor,
	}, common.AccessPublic)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []string{"vitamin-c", "niacinamide", "retinol"}
	if !sameIDs(resultIDsOf(resp), want) {
		t.Fatalf("expected %v, got %v", want, resultIDsOf(resp))
	}
	if !near(resp.Results[0].TensorScore, 1) || !near(resp.Results[0].CombinedScore, 0.96) {
		t.Fatalf("unexpected vitamin-c scores %+v", resp.Results[0])
	}
	if !near(resp.Results[1].TensorScore, 0.8) || !near(resp.Results[1].CombinedScore, 0.84) {
		t.Fatalf("unexpected niacinamide scores %+v", resp.Results[1])
	}
	// retinol has no brightening value, so its tensor score proxies the semantic one.
	if !near(resp.Results[2].TensorScore, resp.Results[2].SemanticScore) {
		t.Fatalf("expected proxy tensor score, got %+v", resp.Results[2])
	}
}

func TestSearch_Filters(t *testing.T) {
	tests := []struct {
		name  string
		req   SearchRequest
		level common.AccessLevel
		want  []string
	}{
		{
			name:  "concern expands to tensor range",
			req:   SearchRequest{Query: "brightening", Concerns: []string{"acne"}},
			level: common.AccessPublic,
			want:  []string{"niacinamide"},
		},
		{
			name:  "threshold filter",
			req:   SearchRequest{Query: "brightening", Thresholds: []common.KnowledgeThreshold{common.ThresholdSkinFundamentals}},
			level: common.AccessPublic,
			want:  []string{"vitamin-c"},
		},
		{
			name:  "hidden threshold requested",
			req:   SearchRequest{Query: "brightening", Thresholds: []common.KnowledgeThreshold{common.ThresholdProfessionalTechniques}},
			level: common.AccessPublic,
			want:  []string{},
		},
		{
			name:  "professional sees the peel",
			req:   SearchRequest{Query: "brightening", AtomTypes: []common.AtomType{common.AtomTypeConcept}},
			level: common.AccessProfessional,
			want:  []string{"peel-protocol"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, idx := searchFixture(t)
			searcher := NewSearcher(NewSearcherParams{Embedder: brighteningEmbedder(), Index: idx})
			resp, err := searcher.Search(context.Background(), s, tt.req, tt.level)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if !sameIDs(resultIDsOf(resp), tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, resultIDsOf(resp))
			}
		})
	}
}

func TestSearch_Fallback(t *testing.T) {
	tests := []struct {
		name     string
		embedder *fakeEmbedder
		indexErr error
		getErr   error
		noIndex  bool
		reason   string
	}{
		{name: "no embedder", reason: ReasonNoEmbedder},
		{name: "no index", embedder: brighteningEmbedder(), noIndex: true, reason: ReasonNoIndex},
		{name: "embedder fails", embedder: &fakeEmbedder{err: errors.New("connection refused")}, reason: ReasonEmbedError},
		{name: "index fails", embedder: brighteningEmbedder(), indexErr: errors.New("collection missing"), reason: ReasonIndexError},
		{name: "hydration fails", embedder: brighteningEmbedder(), getErr: errors.New("pool closed"), reason: ReasonHydrateError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &logger.Recorder{}
			logger.Init(rec)
			defer logger.Init()

			s, idx := searchFixture(t)
			params := NewSearcherParams{}
			if tt.embedder != nil {
				params.Embedder = tt.embedder
			}
			if !tt.noIndex {
				params.Index = &recordingIndex{Index: idx, err: tt.indexErr}
			}
			searcher := NewSearcher(params)

			resp, err := searcher.Search(context.Background(), &failingStore{GraphStorage: s, getErr: tt.getErr}, SearchRequest{Query: "brightening"}, common.AccessPublic)
			if err != nil {
				t.Fatalf("Search must degrade, got %v", err)
			}
			if resp.Path != "metadata" || resp.FallbackReason != tt.reason {
				t.Fatalf("expected metadata/%s, got %s/%s", tt.reason, resp.Path, resp.FallbackReason)
			}
			want := []string{"niacinamide", "vitamin-c"}
			if !sameIDs(resultIDsOf(resp), want) {
				t.Fatalf("expected %v, got %v", want, resultIDsOf(resp))
			}
			for _, r := range resp.Results {
				if r.SemanticScore != PlaceholderScore || r.TensorScore != PlaceholderScore || r.CombinedScore != PlaceholderScore {
					t.Fatalf("expected placeholder scores, got %+v", r)
				}
			}
			if !near(resp.Results[0].EvidenceStrength, 0.71) {
				t.Fatalf("expected evidence on fallback results, got %v", resp.Results[0].EvidenceStrength)
			}

			failed := tt.reason != ReasonNoEmbedder && tt.reason != ReasonNoIndex
			if got := rec.Count("warn"); failed && got == 0 {
				t.Fatal("expected a warning for the failed vector path")
			}
		})
	}
}

func TestSearch_MetadataFailureReturnsEmpty(t *testing.T) {
	rec := &logger.Recorder{}
	logger.Init(rec)
	defer logger.Init()

	s, _ := searchFixture(t)
	searcher := NewSearcher(NewSearcherParams{})
	resp, err := searcher.Search(context.Background(), &failingStore{GraphStorage: s, findErr: errors.New("db down")}, SearchRequest{Query: "x"}, common.AccessPublic)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Fatalf("expected empty non-nil results, got %v", resp.Results)
	}
	if rec.Count("warn") == 0 {
		t.Fatal("expected a warning")
	}
}

func TestSearch_EmptyQueryUsesMetadata(t *testing.T) {
	s, idx := searchFixture(t)
	rec := &recordingIndex{Index: idx}
	searcher := NewSearcher(NewSearcherParams{Embedder: brighteningEmbedder(), Index: rec})

	resp, err := searcher.Search(context.Background(), s, SearchRequest{}, common.AccessPublic)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(rec.queries) != 0 {
		t.Fatal("empty query must not hit the index")
	}
	if resp.FallbackReason != "" || len(resp.Results) != 3 {
		t.Fatalf("expected 3 accessible atoms without fallback reason, got %d/%q", len(resp.Results), resp.FallbackReason)
	}
}

func TestSearch_Errors(t *testing.T) {
	s, idx := searchFixture(t)
	searcher := NewSearcher(NewSearcherParams{Embedder: brighteningEmbedder(), Index: idx})
	negative := -1.0

	tests := []struct {
		name  string
		req   SearchRequest
		level common.AccessLevel
		want  error
	}{
		{name: "invalid level", req: SearchRequest{Query: "x"}, level: "admin", want: common.ErrInvalidAccessLevel},
		{name: "negative weight", req: SearchRequest{Query: "x", SemanticWeight: &negative}, level: common.AccessPublic, want: common.ErrInvalidInput},
		{name: "unknown concern", req: SearchRequest{Query: "x", Concerns: []string{"freckles"}}, level: common.AccessPublic, want: common.ErrInvalidInput},
		{name: "unknown type", req: SearchRequest{Query: "x", AtomTypes: []common.AtomType{"SERUM"}}, level: common.AccessPublic, want: common.ErrInvalidInput},
		{name: "unknown threshold", req: SearchRequest{Query: "x", Thresholds: []common.KnowledgeThreshold{"T9"}}, level: common.AccessPublic, want: common.ErrInvalidThreshold},
		{name: "target out of range", req: SearchRequest{Query: "x", TensorTarget: map[common.TensorDimension]float64{common.DimHydration: 1.5}}, level: common.AccessPublic, want: common.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := searcher.Search(context.Background(), s, tt.req, tt.level)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSearch_Cancelled(t *testing.T) {
	s, _ := searchFixture(t)
	searcher := NewSearcher(NewSearcherParams{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := searcher.Search(ctx, s, SearchRequest{Query: "brightening"}, common.AccessPublic); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFindSimilarByTensor(t *testing.T) {
	s, idx := searchFixture(t)
	searcher := NewSearcher(NewSearcherParams{Index: idx})

	results, err := searcher.FindSimilarByTensor(context.Background(), s, "vitamin-c", 5, common.AccessPublic)
	if err != nil {
		t.Fatalf("FindSimilarByTensor: %v", err)
	}
	got := resultIDs(results)
	want := []string{"niacinamide", "retinol"}
	if !sameIDs(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if results[0].TensorScore <= results[1].TensorScore {
		t.Fatalf("expected descending tensor scores, got %+v", results)
	}
	if results[0].SemanticScore != 0 || results[0].CombinedScore != results[0].TensorScore {
		t.Fatalf("expected tensor-only scoring, got %+v", results[0])
	}
}

func TestFindSimilarByTensor_Errors(t *testing.T) {
	s, idx := searchFixture(t)
	withIndex := NewSearcher(NewSearcherParams{Index: idx})
	withoutIndex := NewSearcher(NewSearcherParams{})

	tests := []struct {
		name     string
		searcher *Searcher
		atomID   string
		level    common.AccessLevel
		want     error
	}{
		{name: "missing atom", searcher: withIndex, atomID: "nope", level: common.AccessPublic, want: common.ErrNotFound},
		{name: "hidden atom", searcher: withIndex, atomID: "peel-protocol", level: common.AccessPublic, want: common.ErrAccessDenied},
		{name: "no index", searcher: withoutIndex, atomID: "retinol", level: common.AccessPublic, want: common.ErrUpstreamUnavailable},
		{name: "invalid level", searcher: withIndex, atomID: "retinol", level: "", want: common.ErrInvalidAccessLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.searcher.FindSimilarByTensor(context.Background(), s, tt.atomID, 5, tt.level)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestTensorScore(t *testing.T) {
	tensor := common.NewTensor("a", map[common.TensorDimension]float64{
		common.DimHydration:   0.8,
		common.DimBrightening: 0.4,
	})
	tests := []struct {
		name   string
		target map[common.TensorDimension]float64
		want   float64
		ok     bool
	}{
		{name: "no target", ok: false},
		{name: "exact", target: map[common.TensorDimension]float64{common.DimHydration: 0.8}, want: 1, ok: true},
		{name: "mean of two", target: map[common.TensorDimension]float64{common.DimHydration: 0.6, common.DimBrightening: 0.8}, want: 0.7, ok: true},
		{name: "absent dimension ignored", target: map[common.TensorDimension]float64{common.DimHydration: 0.6, common.DimExfoliation: 0}, want: 0.8, ok: true},
		{name: "nothing shared", target: map[common.TensorDimension]float64{common.DimExfoliation: 0.5}, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TensorScore(tensor, tt.target)
			if ok != tt.ok || (ok && !near(got, tt.want)) {
				t.Fatalf("expected (%v, %v), got (%v, %v)", tt.want, tt.ok, got, ok)
			}
		})
	}
}
