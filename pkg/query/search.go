package query

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/jade-labs/atomgraph/pkg/access"
	"github.com/jade-labs/atomgraph/pkg/ai"
	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/evidence"
	"github.com/jade-labs/atomgraph/pkg/logger"
	"github.com/jade-labs/atomgraph/pkg/metrics"
	"github.com/jade-labs/atomgraph/pkg/store"
	"github.com/jade-labs/atomgraph/pkg/vector"
)

const (
	DefaultSearchLimit    = 10
	MaxSearchLimit        = 100
	DefaultSemanticWeight = 0.6
	DefaultTensorWeight   = 0.4

	// PlaceholderScore is reported for every score of a metadata search,
	// which has no similarity signal to rank by.
	PlaceholderScore = 0.5
)

// Fallback reasons, used as log fields and metric labels.
const (
	ReasonNoEmbedder   = "no_embedder"
	ReasonNoIndex      = "no_index"
	ReasonEmbedError   = "embed_error"
	ReasonIndexError   = "index_error"
	ReasonHydrateError = "hydrate_error"
)

// SearchRequest describes a hybrid search. Nil weights use the searcher
// defaults; Concerns expand into minimum tensor ranges.
type SearchRequest struct {
	Query          string
	Limit          int
	AtomTypes      []common.AtomType
	Thresholds     []common.KnowledgeThreshold
	Concerns       []string
	TensorRanges   map[common.TensorDimension]common.TensorRange
	TensorTarget   map[common.TensorDimension]float64
	SemanticWeight *float64
	TensorWeight   *float64
}

// SearchResult is one ranked atom.
type SearchResult struct {
	Atom             *common.Atom              `json:"atom"`
	SemanticScore    float64                   `json:"semantic_score"`
	TensorScore      float64                   `json:"tensor_score"`
	CombinedScore    float64                   `json:"combined_score"`
	Threshold        common.KnowledgeThreshold `json:"threshold"`
	EvidenceStrength float64                   `json:"evidence_strength"`
}

// SearchResponse carries the results and the path that produced them.
// FallbackReason is set when the vector path was skipped or failed.
type SearchResponse struct {
	Results        []SearchResult `json:"results"`
	Path           string         `json:"path"`
	FallbackReason string         `json:"fallback_reason,omitempty"`
}

// Searcher ranks atoms by a weighted mix of semantic and tensor
// similarity. Both the embedder and the index are optional; without
// either, searches are served from the graph store's metadata.
//
// A Searcher should be created using NewSearcher.
type Searcher struct {
	embedder       ai.Embedder
	index          vector.Index
	parallel       int
	semanticWeight float64
	tensorWeight   float64
	trace          Tracer
}

// NewSearcherParams defines the configuration parameters for creating a
// new Searcher. Zero weights fall back to 0.6 semantic and 0.4 tensor.
type NewSearcherParams struct {
	Embedder       ai.Embedder
	Index          vector.Index
	Parallel       int
	SemanticWeight float64
	TensorWeight   float64
	Tracer         Tracer
}

// NewSearcher creates and returns a new Searcher configured with the
// provided parameters.
func NewSearcher(params NewSearcherParams) *Searcher {
	s := &Searcher{
		embedder:       params.Embedder,
		index:          params.Index,
		parallel:       params.Parallel,
		semanticWeight: params.SemanticWeight,
		tensorWeight:   params.TensorWeight,
		trace:          params.Tracer,
	}
	if s.parallel <= 0 {
		s.parallel = 8
	}
	if s.semanticWeight == 0 && s.tensorWeight == 0 {
		s.semanticWeight = DefaultSemanticWeight
		s.tensorWeight = DefaultTensorWeight
	}
	return s
}

func (s *Searcher) tracer(ctx context.Context) Tracer {
	return TracerFor(ctx, s.trace)
}

type searchPlan struct {
	text           string
	limit          int
	types          []common.AtomType
	thresholds     []common.KnowledgeThreshold
	ranges         map[common.TensorDimension]common.TensorRange
	target         map[common.TensorDimension]float64
	semanticWeight float64
	tensorWeight   float64
}

func (p searchPlan) atomFilter() store.AtomFilter {
	return store.AtomFilter{
		Text:         p.text,
		Types:        p.types,
		Thresholds:   p.thresholds,
		TensorRanges: p.ranges,
		Limit:        p.limit,
	}
}

func (p searchPlan) vectorFilter() vector.Filter {
	return vector.Filter{
		Thresholds:   p.thresholds,
		Types:        p.types,
		TensorRanges: p.ranges,
	}
}

// plan validates req and narrows its thresholds to those level may see.
// ok is false when the narrowing leaves nothing to search.
func (s *Searcher) plan(req SearchRequest, level common.AccessLevel) (p searchPlan, ok bool, err error) {
	if !level.Valid() {
		return p, false, fmt.Errorf("%w: %q", common.ErrInvalidAccessLevel, string(level))
	}

	p.text = req.Query
	p.limit = req.Limit
	if p.limit <= 0 {
		p.limit = DefaultSearchLimit
	}
	p.limit = min(p.limit, MaxSearchLimit)

	p.semanticWeight, p.tensorWeight = s.semanticWeight, s.tensorWeight
	if req.SemanticWeight != nil {
		p.semanticWeight = *req.SemanticWeight
	}
	if req.TensorWeight != nil {
		p.tensorWeight = *req.TensorWeight
	}
	if p.semanticWeight < 0 || p.tensorWeight < 0 || math.IsNaN(p.semanticWeight) || math.IsNaN(p.tensorWeight) {
		return p, false, fmt.Errorf("%w: search weights must be non-negative", common.ErrInvalidInput)
	}

	for _, t := range req.AtomTypes {
		if _, err := common.ParseAtomType(string(t)); err != nil {
			return p, false, err
		}
	}
	p.types = req.AtomTypes

	for _, t := range req.Thresholds {
		if !t.Valid() {
			return p, false, fmt.Errorf("%w: %q", common.ErrInvalidThreshold, string(t))
		}
	}
	accessible := access.AccessibleThresholds(level)
	if len(req.Thresholds) == 0 {
		p.thresholds = accessible
	} else {
		for _, t := range req.Thresholds {
			if slices.Contains(accessible, t) && !slices.Contains(p.thresholds, t) {
				p.thresholds = append(p.thresholds, t)
			}
		}
		if len(p.thresholds) == 0 {
			return p, false, nil
		}
	}

	p.ranges, err = ConcernRanges(req.Concerns, req.TensorRanges)
	if err != nil {
		return p, false, err
	}

	for d, v := range req.TensorTarget {
		if !d.Valid() || math.IsNaN(v) || v < 0 || v > 1 {
			return p, false, fmt.Errorf("%w: tensor target %s=%v", common.ErrInvalidInput, d, v)
		}
	}
	p.target = req.TensorTarget
	return p, true, nil
}

// Search runs a hybrid search. The vector path embeds the query, fetches
// twice the limit from the index, hydrates and re-ranks the candidates.
// When the embedder or the index is missing, or any step of the vector
// path fails, the search degrades to a text match over the graph store
// with placeholder scores. Only invalid input and cancellation are
// returned as errors.
func (s *Searcher) Search(
	ctx context.Context,
	storeClient store.GraphStorage,
	req SearchRequest,
	level common.AccessLevel,
) (*SearchResponse, error) {
	start := time.Now()

	p, ok, err := s.plan(req, level)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &SearchResponse{Results: []SearchResult{}, Path: metrics.PathMetadata}, nil
	}
	if len(p.types) > 0 {
		types := make([]string, len(p.types))
		for i, t := range p.types {
			types[i] = string(t)
		}
		RecordQueriedAtomTypes(s.tracer(ctx), types...)
	}

	reason := ""
	switch {
	case s.embedder == nil:
		reason = ReasonNoEmbedder
	case s.index == nil:
		reason = ReasonNoIndex
	}

	if reason == "" && p.text != "" {
		results, failed, err := s.vectorSearch(ctx, storeClient, p)
		if err == nil {
			metrics.SearchRequests.WithLabelValues(metrics.PathVector).Inc()
			RecordSearchPath(s.tracer(ctx), metrics.PathVector, time.Since(start).Milliseconds(), nil)
			return &SearchResponse{Results: results, Path: metrics.PathVector}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		reason = failed
		logger.Warn("[Search] Vector search failed, falling back to metadata", "reason", reason, "err", err)
	}

	if reason != "" {
		metrics.SearchFallbacks.WithLabelValues(reason).Inc()
	}
	metrics.SearchRequests.WithLabelValues(metrics.PathMetadata).Inc()

	results, err := s.metadataSearch(ctx, storeClient, p)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Warn("[Search] Metadata search failed, returning no results", "err", err)
		results = []SearchResult{}
	}
	RecordSearchPath(s.tracer(ctx), metrics.PathMetadata, time.Since(start).Milliseconds(), err)

	return &SearchResponse{Results: results, Path: metrics.PathMetadata, FallbackReason: reason}, nil
}

// vectorSearch returns the fallback reason matching the failed step
// alongside any error.
func (s *Searcher) vectorSearch(
	ctx context.Context,
	storeClient store.GraphStorage,
	p searchPlan,
) ([]SearchResult, string, error) {
	embedding, err := s.embedder.GenerateEmbedding(ctx, []byte(p.text))
	if err != nil {
		return nil, ReasonEmbedError, fmt.Errorf("embed query: %w", err)
	}
	if len(embedding) == 0 {
		return nil, ReasonEmbedError, fmt.Errorf("%w: empty query embedding", common.ErrUpstreamUnavailable)
	}

	filter := p.vectorFilter()
	logger.Debug("[Search] Querying vector index", "filter", filter.String(), "limit", 2*p.limit)
	matches, err := s.index.Search(ctx, vector.Query{
		Vector: embedding,
		Field:  vector.FieldEmbedding,
		Filter: filter,
		Limit:  2 * p.limit,
	})
	if err != nil {
		return nil, ReasonIndexError, fmt.Errorf("vector index: %w", err)
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	RecordConsideredAtomIDs(s.tracer(ctx), ids...)

	atoms, err := store.GetAtoms(ctx, storeClient, ids, s.parallel)
	if err != nil {
		return nil, ReasonHydrateError, fmt.Errorf("hydrate candidates: %w", err)
	}

	// The index may lag behind the store, so candidates are filtered again.
	recheck := store.AtomFilter{Types: p.types, Thresholds: p.thresholds, TensorRanges: p.ranges}
	results := make([]SearchResult, 0, len(atoms))
	for i, atom := range atoms {
		if atom == nil || !store.MatchesFilter(atom, recheck) {
			continue
		}
		semantic := common.Clamp(1-matches[i].Distance, 0, 1)
		tensor := semantic
		if score, ok := TensorScore(atom.Tensor, p.target); ok {
			tensor = score
		}
		results = append(results, SearchResult{
			Atom:          atom,
			SemanticScore: semantic,
			TensorScore:   tensor,
			CombinedScore: p.semanticWeight*semantic + p.tensorWeight*tensor,
			Threshold:     atom.EffectiveThreshold(),
		})
	}

	if err := s.attachEvidence(ctx, storeClient, results); err != nil {
		return nil, ReasonHydrateError, err
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].CombinedScore > results[b].CombinedScore
	})
	if len(results) > p.limit {
		results = results[:p.limit]
	}
	RecordReturnedAtomIDs(s.tracer(ctx), resultIDs(results)...)
	return results, "", nil
}

func (s *Searcher) metadataSearch(
	ctx context.Context,
	storeClient store.GraphStorage,
	p searchPlan,
) ([]SearchResult, error) {
	atoms, err := storeClient.FindAtoms(ctx, p.atomFilter())
	if err != nil {
		return nil, fmt.Errorf("find atoms: %w", err)
	}

	results := make([]SearchResult, 0, len(atoms))
	for _, atom := range atoms {
		results = append(results, SearchResult{
			Atom:          atom,
			SemanticScore: PlaceholderScore,
			TensorScore:   PlaceholderScore,
			CombinedScore: PlaceholderScore,
			Threshold:     atom.EffectiveThreshold(),
		})
	}
	if len(results) > p.limit {
		results = results[:p.limit]
	}
	if err := s.attachEvidence(ctx, storeClient, results); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("[Search] Evidence lookup failed for metadata results", "err", err)
	}

	ids := resultIDs(results)
	RecordConsideredAtomIDs(s.tracer(ctx), ids...)
	RecordReturnedAtomIDs(s.tracer(ctx), ids...)
	return results, nil
}

func (s *Searcher) attachEvidence(ctx context.Context, storeClient store.GraphStorage, results []SearchResult) error {
	summaries, err := evidence.SummarizeMany(ctx, storeClient, resultIDs(results), s.parallel)
	if err != nil {
		return err
	}
	for i := range results {
		results[i].EvidenceStrength = summaries[i].AverageStrength
	}
	return nil
}

// FindSimilarByTensor searches the index for atoms whose tensor profile
// is closest to the given atom's. The atom itself is never returned. An
// atom without measured dimensions has no neighbours.
func (s *Searcher) FindSimilarByTensor(
	ctx context.Context,
	storeClient store.GraphStorage,
	atomID string,
	limit int,
	level common.AccessLevel,
) ([]SearchResult, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidAccessLevel, string(level))
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, MaxSearchLimit)

	atom, err := storeClient.GetAtom(ctx, atomID)
	if err != nil {
		return nil, err
	}
	if !access.CanView(level, atom) {
		return nil, fmt.Errorf("%w: atom %s requires a higher access level", common.ErrAccessDenied, atomID)
	}
	if s.index == nil {
		return nil, fmt.Errorf("%w: no vector index configured", common.ErrUpstreamUnavailable)
	}
	if atom.Tensor.Present() == 0 {
		return []SearchResult{}, nil
	}

	matches, err := s.index.Search(ctx, vector.Query{
		Vector: atom.Tensor.Flat(),
		Field:  vector.FieldTensor,
		Filter: vector.Filter{
			Thresholds: access.AccessibleThresholds(level),
			ExcludeIDs: []string{atomID},
		},
		Limit: limit,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: vector index: %w", common.ErrUpstreamUnavailable, err)
	}

	ids := make([]string, 0, len(matches))
	distances := make([]float64, 0, len(matches))
	for _, m := range matches {
		if m.ID != atomID {
			ids = append(ids, m.ID)
			distances = append(distances, m.Distance)
		}
	}
	RecordConsideredAtomIDs(s.tracer(ctx), ids...)

	atoms, err := store.GetAtoms(ctx, storeClient, ids, s.parallel)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(atoms))
	for i, a := range atoms {
		if a == nil || !access.CanView(level, a) {
			continue
		}
		score := common.Clamp(1-distances[i], 0, 1)
		results = append(results, SearchResult{
			Atom:          a,
			TensorScore:   score,
			CombinedScore: score,
			Threshold:     a.EffectiveThreshold(),
		})
	}
	if err := s.attachEvidence(ctx, storeClient, results); err != nil {
		return nil, err
	}
	RecordReturnedAtomIDs(s.tracer(ctx), resultIDs(results)...)
	return results, nil
}

// TensorScore is 1 minus the mean absolute difference between t and
// target over the dimensions measured in both. ok is false when they
// share no dimension.
func TensorScore(t *common.Tensor, target map[common.TensorDimension]float64) (float64, bool) {
	if len(target) == 0 {
		return 0, false
	}
	sum, n := 0.0, 0
	for d, want := range target {
		got, ok := t.Get(d)
		if !ok {
			continue
		}
		sum += math.Abs(got - want)
		n++
	}
	if n == 0 {
		return 0, false
	}
	return 1 - sum/float64(n), true
}

func resultIDs(results []SearchResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Atom.ID
	}
	return ids
}
