package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/jade-labs/atomgraph/pkg/access"
	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/query"
	"github.com/jade-labs/atomgraph/pkg/store"
)

// Direction selects which edges a traversal follows.
type Direction string

const (
	// Upstream follows edges whose target is the current atom.
	Upstream Direction = "UPSTREAM"
	// Downstream follows edges whose source is the current atom.
	Downstream Direction = "DOWNSTREAM"
	Both       Direction = "BOTH"
)

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToUpper(strings.TrimSpace(s))); d {
	case Upstream, Downstream, Both:
		return d, nil
	case "":
		return Both, nil
	default:
		return "", fmt.Errorf("%w: %q", common.ErrInvalidDirection, s)
	}
}

// neighbor is an accessible atom reached over one edge.
type neighbor struct {
	atom *common.Atom
	rel  common.Relationship
}

// resolveStart loads the atom a traversal starts from and applies the
// access check to it.
func resolveStart(ctx context.Context, s store.GraphStorage, id string, level common.AccessLevel) (*common.Atom, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidAccessLevel, string(level))
	}
	atom, err := s.GetAtom(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanView(level, atom) {
		return nil, fmt.Errorf("atom %s requires %s: %w",
			id, requiredLevel(atom), common.ErrAccessDenied)
	}
	return atom, nil
}

func requiredLevel(atom *common.Atom) common.AccessLevel {
	lvl, err := access.RequiredLevel(atom.EffectiveThreshold())
	if err != nil {
		return common.AccessExpert
	}
	return lvl
}

// expand returns the accessible, unvisited neighbors of atomID in dir in
// edge insertion order. Every neighbor considered, accessible or not, is
// added to visited. Self-loops and edges to atoms that no longer exist
// are skipped.
func (g *GraphClient) expand(
	ctx context.Context,
	s store.GraphStorage,
	atomID string,
	dir Direction,
	level common.AccessLevel,
	visited map[string]struct{},
) ([]neighbor, error) {
	filter := common.RelationshipFilter{FromAtomID: atomID}
	if dir == Upstream {
		filter = common.RelationshipFilter{ToAtomID: atomID}
	}
	rels, err := s.ListRelationships(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list relationships of %s: %w", atomID, err)
	}

	candidates := make([]common.Relationship, 0, len(rels))
	ids := make([]string, 0, len(rels))
	relIDs := make([]string, 0, len(rels))
	for _, rel := range rels {
		if rel.SelfLoop() {
			continue
		}
		next := rel.ToAtomID
		if dir == Upstream {
			next = rel.FromAtomID
		}
		if _, seen := visited[next]; seen {
			continue
		}
		visited[next] = struct{}{}
		candidates = append(candidates, rel)
		ids = append(ids, next)
		relIDs = append(relIDs, rel.ID)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	query.RecordQueriedRelationshipIDs(query.TracerFor(ctx, g.trace), relIDs...)
	query.RecordQueriedAtomIDs(query.TracerFor(ctx, g.trace), ids...)

	atoms, err := store.GetAtoms(ctx, s, ids, g.parallel)
	if err != nil {
		return nil, fmt.Errorf("load neighbors of %s: %w", atomID, err)
	}

	out := make([]neighbor, 0, len(atoms))
	for i, atom := range atoms {
		if atom == nil || !access.CanView(level, atom) {
			continue
		}
		out = append(out, neighbor{atom: atom, rel: candidates[i]})
	}
	return out, nil
}
