// Package engine composes the graph store, traversals, compatibility
// analysis and hybrid search into the operations exposed to callers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jade-labs/atomgraph/pkg/ai"
	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/compat"
	"github.com/jade-labs/atomgraph/pkg/graph"
	"github.com/jade-labs/atomgraph/pkg/metrics"
	"github.com/jade-labs/atomgraph/pkg/query"
	"github.com/jade-labs/atomgraph/pkg/store"
	"github.com/jade-labs/atomgraph/pkg/vector"
)

// MaxNavigateDepth caps the depth of a navigation request.
const MaxNavigateDepth = 10

// ReindexNotifier is told about atoms whose indexed fields changed.
type ReindexNotifier interface {
	NotifyReindex(ctx context.Context, atomID string) error
}

// Engine is safe for concurrent use.
//
// An Engine should be created using NewEngine.
type Engine struct {
	store    store.GraphStorage
	graph    *graph.GraphClient
	analyzer *compat.Analyzer
	searcher *query.Searcher
	notifier ReindexNotifier
	parallel int
}

// NewEngineParams defines the configuration parameters for creating a
// new Engine.
//
// Store is required. Embedder and Index are optional; without them
// search is served from metadata and FindSimilarByTensor is unavailable.
// Notifier, when set, receives the id of every atom changed by a write.
type NewEngineParams struct {
	Store          store.GraphStorage
	Embedder       ai.Embedder
	Index          vector.Index
	Notifier       ReindexNotifier
	Tracer         query.Tracer
	Parallel       int
	SemanticWeight float64
	TensorWeight   float64
}

// NewEngine creates and returns a new Engine configured with the
// provided parameters.
//
// Example:
//
//	eng, err := engine.NewEngine(engine.NewEngineParams{
//		Store:    pgx.NewGraphDBStorageWithConnection(pool),
//		Embedder: embedder,
//		Index:    vectorpgx.NewIndex(pool),
//	})
func NewEngine(params NewEngineParams) (*Engine, error) {
	if params.Store == nil {
		return nil, errors.New("engine requires a graph store")
	}
	parallel := params.Parallel
	if parallel <= 0 {
		parallel = 8
	}

	return &Engine{
		store: params.Store,
		graph: graph.NewGraphClient(graph.NewGraphClientParams{
			Parallel: parallel,
			Tracer:   params.Tracer,
		}),
		analyzer: compat.NewAnalyzer(compat.NewAnalyzerParams{Parallel: parallel}),
		searcher: query.NewSearcher(query.NewSearcherParams{
			Embedder:       params.Embedder,
			Index:          params.Index,
			Parallel:       parallel,
			SemanticWeight: params.SemanticWeight,
			TensorWeight:   params.TensorWeight,
			Tracer:         params.Tracer,
		}),
		notifier: params.Notifier,
		parallel: parallel,
	}, nil
}

// Navigate walks causal edges from atomID. Depths above MaxNavigateDepth
// are clamped.
func (e *Engine) Navigate(
	ctx context.Context,
	atomID string,
	dir graph.Direction,
	depth int,
	level common.AccessLevel,
) (nodes []graph.Node, err error) {
	defer observe("navigate", time.Now(), &err)
	return e.graph.Navigate(ctx, e.store, atomID, dir, min(depth, MaxNavigateDepth), level)
}

func (e *Engine) FindPath(
	ctx context.Context,
	fromID, toID string,
	level common.AccessLevel,
) (path []graph.PathStep, err error) {
	defer observe("find_path", time.Now(), &err)
	return e.graph.FindPath(ctx, e.store, fromID, toID, level)
}

func (e *Engine) Explain(
	ctx context.Context,
	atomID, targetID string,
	level common.AccessLevel,
) (exp *graph.Explanation, err error) {
	defer observe("explain", time.Now(), &err)
	return e.graph.Explain(ctx, e.store, atomID, targetID, level)
}

func (e *Engine) Analyze(
	ctx context.Context,
	atomIDs []string,
	level common.AccessLevel,
) (res *compat.Result, err error) {
	defer observe("analyze", time.Now(), &err)
	return e.analyzer.Analyze(ctx, e.store, atomIDs, level)
}

func (e *Engine) Search(
	ctx context.Context,
	req query.SearchRequest,
	level common.AccessLevel,
) (resp *query.SearchResponse, err error) {
	defer observe("search", time.Now(), &err)
	return e.searcher.Search(ctx, e.store, req, level)
}

func (e *Engine) FindSimilarByTensor(
	ctx context.Context,
	atomID string,
	limit int,
	level common.AccessLevel,
) (results []query.SearchResult, err error) {
	defer observe("find_similar", time.Now(), &err)
	return e.searcher.FindSimilarByTensor(ctx, e.store, atomID, limit, level)
}

func observe(operation string, start time.Time, err *error) {
	metrics.ObserveOperation(operation, start, *err)
}

// upstream marks store failures that are not part of the error taxonomy
// as UpstreamUnavailable. Cancellation is returned as is.
func upstream(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	for _, known := range []error{common.ErrNotFound, common.ErrAccessDenied, common.ErrInvalidInput, common.ErrUpstreamUnavailable} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", common.ErrUpstreamUnavailable, op, err)
}
