package graph

import (
	"context"
	"fmt"

	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/logger"
	"github.com/jade-labs/atomgraph/pkg/store"
)

// Node is one atom in a causal chain. The start atom has depth 0 and no
// relationship; every other node carries the edge it was reached over.
type Node struct {
	Atom         *common.Atom         `json:"atom"`
	Relationship *common.Relationship `json:"relationship,omitempty"`
	Depth        int                  `json:"depth"`
	Direction    Direction            `json:"direction"`
}

type queued struct {
	id    string
	depth int
}

// Navigate walks the causal chain around atomID breadth-first, at most
// maxDepth hops in each requested direction. The start atom always comes
// first. For Both, upstream nodes precede downstream nodes and an atom
// reached upstream is not repeated downstream.
//
// Atoms the caller may not view are dropped together with everything
// reachable only through them. Navigate returns common.ErrNotFound for
// an unknown start atom and common.ErrAccessDenied when the start atom
// itself is hidden.
func (g *GraphClient) Navigate(
	ctx context.Context,
	storeClient store.GraphStorage,
	atomID string,
	dir Direction,
	maxDepth int,
	level common.AccessLevel,
) ([]Node, error) {
	if maxDepth < 0 {
		return nil, fmt.Errorf("%w: negative depth %d", common.ErrInvalidInput, maxDepth)
	}
	var dirs []Direction
	switch dir {
	case Upstream, Downstream:
		dirs = []Direction{dir}
	case Both:
		dirs = []Direction{Upstream, Downstream}
	default:
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidDirection, string(dir))
	}

	start, err := resolveStart(ctx, storeClient, atomID, level)
	if err != nil {
		return nil, err
	}
	return g.navigateFrom(ctx, storeClient, start, dir, dirs, maxDepth, level)
}

// navigateFrom walks from an already resolved and visible start atom.
func (g *GraphClient) navigateFrom(
	ctx context.Context,
	storeClient store.GraphStorage,
	start *common.Atom,
	dir Direction,
	dirs []Direction,
	maxDepth int,
	level common.AccessLevel,
) ([]Node, error) {
	nodes := []Node{{Atom: start, Depth: 0, Direction: dir}}
	visited := map[string]struct{}{start.ID: {}}

	for _, d := range dirs {
		queue := []queued{{id: start.ID, depth: 0}}
		for len(queue) > 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			cur := queue[0]
			queue = queue[1:]
			if cur.depth >= maxDepth {
				continue
			}

			next, err := g.expand(ctx, storeClient, cur.id, d, level, visited)
			if err != nil {
				return nil, err
			}
			for _, n := range next {
				rel := n.rel
				nodes = append(nodes, Node{
					Atom:         n.atom,
					Relationship: &rel,
					Depth:        cur.depth + 1,
					Direction:    d,
				})
				queue = append(queue, queued{id: n.atom.ID, depth: cur.depth + 1})
			}
		}
	}

	logger.Debug("[Graph] Navigate", "atom_id", start.ID, "direction", dir, "max_depth", maxDepth, "nodes", len(nodes))
	return nodes, nil
}
