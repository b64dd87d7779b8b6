// Package graph implements the traversals over the atom graph: bounded
// causal navigation, shortest causal paths and the why-explanations
// built from them.
package graph

import (
	"github.com/jade-labs/atomgraph/pkg/query"
)

// GraphClient runs traversals against a store.GraphStorage. It holds no
// per-request state and is safe for concurrent use; every call owns its
// own queue and visited set.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	parallel int
	trace    query.Tracer
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// Parallel bounds concurrent store lookups while expanding one atom or
// scoring the steps of a path. Tracer, when set, receives the ids of the
// atoms and relationships each traversal touched.
type NewGraphClientParams struct {
	Parallel int
	Tracer   query.Tracer
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters.
//
// Example:
//
//	client := graph.NewGraphClient(graph.NewGraphClientParams{Parallel: 8})
//	nodes, err := client.Navigate(ctx, storeClient, "retinol", graph.Downstream, 2, common.AccessPublic)
func NewGraphClient(params NewGraphClientParams) *GraphClient {
	parallel := params.Parallel
	if parallel <= 0 {
		parallel = 8
	}
	return &GraphClient{
		parallel: parallel,
		trace:    params.Tracer,
	}
}
