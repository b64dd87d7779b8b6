// Package memory is an in-process implementation of store.GraphStorage.
// It backs tests and local development and keeps edges in insertion
// order so traversals over it are deterministic.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/store"
)

// Storage holds a whole graph in memory. It is safe for concurrent use.
type Storage struct {
	mu sync.RWMutex

	atoms  map[string]*common.Atom
	order  []string
	slugs  map[string]string
	rels   []common.Relationship
	claims map[string][]common.EvidenceClaim
	effic  map[string][]common.EfficacyIndicator
	goldi  map[string][]common.GoldilocksParameter
	nextID int
}

var _ store.GraphStorage = (*Storage)(nil)

func New() *Storage {
	return &Storage{
		atoms:  map[string]*common.Atom{},
		slugs:  map[string]string{},
		claims: map[string][]common.EvidenceClaim{},
		effic:  map[string][]common.EfficacyIndicator{},
		goldi:  map[string][]common.GoldilocksParameter{},
	}
}

func (s *Storage) genID(prefix string) string {
	s.nextID++
	return prefix + "-" + strconv.Itoa(s.nextID)
}

// AddAtom inserts or replaces an atom. Slugs must be unique across atoms.
func (s *Storage) AddAtom(atom common.Atom) error {
	if atom.ID == "" {
		return fmt.Errorf("%w: atom id is required", common.ErrInvalidInput)
	}
	if atom.Slug == "" {
		atom.Slug = atom.ID
	}
	if atom.Threshold != nil && !atom.Threshold.Valid() {
		return fmt.Errorf("%w: %q", common.ErrInvalidThreshold, string(*atom.Threshold))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.slugs[atom.Slug]; ok && owner != atom.ID {
		return fmt.Errorf("%w: slug %q already used by %s", common.ErrInvalidInput, atom.Slug, owner)
	}
	now := time.Now().UTC()
	if atom.CreatedAt.IsZero() {
		atom.CreatedAt = now
	}
	atom.UpdatedAt = now
	if atom.Tensor != nil && atom.Tensor.AtomID == "" {
		atom.Tensor.AtomID = atom.ID
	}

	if prev, ok := s.atoms[atom.ID]; ok {
		delete(s.slugs, prev.Slug)
	} else {
		s.order = append(s.order, atom.ID)
	}
	a := atom
	s.atoms[atom.ID] = &a
	s.slugs[atom.Slug] = atom.ID
	return nil
}

// AddRelationship appends an edge. Both endpoints must exist. A missing
// id is generated and a zero strength becomes common.DefaultStrength.
func (s *Storage) AddRelationship(rel common.Relationship) (common.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.atoms[rel.FromAtomID]; !ok {
		return rel, fmt.Errorf("from atom %s: %w", rel.FromAtomID, common.ErrNotFound)
	}
	if _, ok := s.atoms[rel.ToAtomID]; !ok {
		return rel, fmt.Errorf("to atom %s: %w", rel.ToAtomID, common.ErrNotFound)
	}
	if rel.ID == "" {
		rel.ID = s.genID("rel")
	}
	if rel.Strength == 0 {
		rel.Strength = common.DefaultStrength
	}
	rel.Strength = common.Clamp(rel.Strength, 0, 1)
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now().UTC()
	}
	s.rels = append(s.rels, rel)
	return rel, nil
}

func (s *Storage) AddEvidence(claim common.EvidenceClaim) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if claim.ID == "" {
		claim.ID = s.genID("claim")
	}
	s.claims[claim.AtomID] = append(s.claims[claim.AtomID], claim)
}

func (s *Storage) AddEfficacy(ind common.EfficacyIndicator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ind.ID == "" {
		ind.ID = s.genID("efficacy")
	}
	s.effic[ind.AtomID] = append(s.effic[ind.AtomID], ind)
}

func (s *Storage) AddGoldilocks(p common.GoldilocksParameter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = s.genID("goldilocks")
	}
	s.goldi[p.AtomID] = append(s.goldi[p.AtomID], p)
}

func (s *Storage) GetAtom(ctx context.Context, id string) (*common.Atom, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.atoms[id]
	if !ok {
		return nil, fmt.Errorf("atom %s: %w", id, common.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *Storage) FindAtoms(ctx context.Context, filter store.AtomFilter) ([]*common.Atom, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.order
	if len(filter.IDs) > 0 {
		ids = filter.IDs
	}

	out := make([]*common.Atom, 0)
	for _, id := range ids {
		a, ok := s.atoms[id]
		if !ok || !store.MatchesFilter(a, filter) {
			continue
		}
		cp := *a
		out = append(out, &cp)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *Storage) UpdateAtom(ctx context.Context, id string, patch common.AtomPatch) (*common.Atom, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.atoms[id]
	if !ok {
		return nil, fmt.Errorf("atom %s: %w", id, common.ErrNotFound)
	}
	updated := *a
	if patch.Threshold != nil {
		t := *patch.Threshold
		updated.Threshold = &t
	}
	if patch.WhyItWorks != nil {
		w := *patch.WhyItWorks
		updated.WhyItWorks = &w
	}
	updated.UpdatedAt = time.Now().UTC()
	s.atoms[id] = &updated

	cp := updated
	return &cp, nil
}

func (s *Storage) ListRelationships(ctx context.Context, filter common.RelationshipFilter) ([]common.Relationship, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]common.Relationship, 0)
	for _, r := range s.rels {
		if filter.FromAtomID != "" && r.FromAtomID != filter.FromAtomID {
			continue
		}
		if filter.ToAtomID != "" && r.ToAtomID != filter.ToAtomID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Storage) ListEvidence(ctx context.Context, atomID string) ([]common.EvidenceClaim, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]common.EvidenceClaim(nil), s.claims[atomID]...), nil
}

func (s *Storage) ListEfficacy(ctx context.Context, atomID string) ([]common.EfficacyIndicator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]common.EfficacyIndicator(nil), s.effic[atomID]...), nil
}

func (s *Storage) ListGoldilocks(ctx context.Context, atomID string) ([]common.GoldilocksParameter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]common.GoldilocksParameter(nil), s.goldi[atomID]...), nil
}
