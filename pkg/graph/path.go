package graph

import (
	"context"
	"strings"

	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/logger"
	"github.com/jade-labs/atomgraph/pkg/store"
)

// PathStep is one hop of a causal path. The first step has no
// relationship and an empty mechanism.
type PathStep struct {
	Atom         *common.Atom         `json:"atom"`
	Relationship *common.Relationship `json:"relationship,omitempty"`
	Mechanism    string               `json:"mechanism,omitempty"`
}

// mechanismOf summarises how an edge acts: its description when one is
// stored, otherwise the relationship type in words.
func mechanismOf(rel *common.Relationship) string {
	if rel == nil {
		return ""
	}
	if m := rel.MechanismText(); m != "" {
		return m
	}
	return strings.ToLower(strings.ReplaceAll(string(rel.Type), "_", " "))
}

type parentLink struct {
	from string
	rel  common.Relationship
}

// FindPath returns a shortest path by edge count from fromID to toID
// following outgoing edges only. Ties are broken by edge insertion
// order. An empty path means no causal link is known and is not an
// error.
//
// Both endpoints must exist (common.ErrNotFound) and be visible to the
// caller (common.ErrAccessDenied). Intermediate atoms the caller may not
// view are never traversed.
func (g *GraphClient) FindPath(
	ctx context.Context,
	storeClient store.GraphStorage,
	fromID, toID string,
	level common.AccessLevel,
) ([]PathStep, error) {
	start, err := resolveStart(ctx, storeClient, fromID, level)
	if err != nil {
		return nil, err
	}
	target, err := resolveStart(ctx, storeClient, toID, level)
	if err != nil {
		return nil, err
	}
	return g.pathBetween(ctx, storeClient, start, target, level)
}

// pathBetween searches between two already resolved and visible atoms.
func (g *GraphClient) pathBetween(
	ctx context.Context,
	storeClient store.GraphStorage,
	start, target *common.Atom,
	level common.AccessLevel,
) ([]PathStep, error) {
	if start.ID == target.ID {
		return []PathStep{{Atom: start}}, nil
	}

	atoms := map[string]*common.Atom{start.ID: start}
	parents := map[string]parentLink{}
	visited := map[string]struct{}{start.ID: {}}
	queue := []string{start.ID}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]
		if cur == target.ID {
			path := buildPath(cur, atoms, parents)
			logger.Debug("[Graph] FindPath", "from", start.ID, "to", target.ID, "steps", len(path))
			return path, nil
		}

		next, err := g.expand(ctx, storeClient, cur, Downstream, level, visited)
		if err != nil {
			return nil, err
		}
		for _, n := range next {
			atoms[n.atom.ID] = n.atom
			parents[n.atom.ID] = parentLink{from: cur, rel: n.rel}
			queue = append(queue, n.atom.ID)
		}
	}

	logger.Debug("[Graph] FindPath found no path", "from", start.ID, "to", target.ID)
	return []PathStep{}, nil
}

func buildPath(end string, atoms map[string]*common.Atom, parents map[string]parentLink) []PathStep {
	var rev []PathStep
	cur := end
	for {
		link, ok := parents[cur]
		if !ok {
			rev = append(rev, PathStep{Atom: atoms[cur]})
			break
		}
		rel := link.rel
		rev = append(rev, PathStep{Atom: atoms[cur], Relationship: &rel, Mechanism: mechanismOf(&rel)})
		cur = link.from
	}

	path := make([]PathStep, len(rev))
	for i, step := range rev {
		path[len(rev)-1-i] = step
	}
	return path
}
