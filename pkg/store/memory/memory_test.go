package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/store"
)

func seed(t *testing.T) *Storage {
	t.Helper()
	s := New()
	for _, a := range []common.Atom{
		{ID: "a", Title: "Retinol", Slug: "retinol", Type: common.AtomTypeIngredient, Glance: "Vitamin A derivative"},
		{ID: "b", Title: "Niacinamide", Slug: "niacinamide", Type: common.AtomTypeIngredient},
		{ID: "c", Title: "Collagen synthesis", Slug: "collagen-synthesis", Type: common.AtomTypeConcept,
			Threshold: common.Threshold(common.ThresholdClinicalEvidence)},
	} {
		if err := s.AddAtom(a); err != nil {
			t.Fatalf("AddAtom(%s): %v", a.ID, err)
		}
	}
	return s
}

func TestAddAtom_DuplicateSlug(t *testing.T) {
	s := seed(t)
	err := s.AddAtom(common.Atom{ID: "d", Slug: "retinol"})
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	// Re-adding the same atom keeps its slug.
	if err := s.AddAtom(common.Atom{ID: "a", Slug: "retinol", Title: "Retinol 2"}); err != nil {
		t.Fatalf("replace: %v", err)
	}
}

func TestGetAtom_NotFound(t *testing.T) {
	s := seed(t)
	_, err := s.GetAtom(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetAtom_ReturnsCopy(t *testing.T) {
	s := seed(t)
	a, err := s.GetAtom(context.Background(), "a")
	if err != nil {
		t.Fatalf("GetAtom: %v", err)
	}
	a.Title = "changed"
	again, _ := s.GetAtom(context.Background(), "a")
	if again.Title != "Retinol" {
		t.Fatalf("stored atom was mutated: %q", again.Title)
	}
}

func TestAddRelationship(t *testing.T) {
	s := seed(t)
	rel, err := s.AddRelationship(common.Relationship{FromAtomID: "a", ToAtomID: "c", Type: common.RelEnables})
	if err != nil {
		t.Fatalf("AddRelationship: %v", err)
	}
	if rel.ID == "" {
		t.Fatal("expected generated id")
	}
	if rel.Strength != common.DefaultStrength {
		t.Fatalf("expected default strength, got %v", rel.Strength)
	}
	if _, err := s.AddRelationship(common.Relationship{FromAtomID: "a", ToAtomID: "zzz"}); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown endpoint, got %v", err)
	}
}

func TestListRelationships_FilterAndOrder(t *testing.T) {
	s := seed(t)
	for _, r := range []common.Relationship{
		{ID: "r1", FromAtomID: "a", ToAtomID: "b", Type: common.RelSynergizesWith},
		{ID: "r2", FromAtomID: "a", ToAtomID: "c", Type: common.RelEnables},
		{ID: "r3", FromAtomID: "b", ToAtomID: "c", Type: common.RelEnhances},
	} {
		if _, err := s.AddRelationship(r); err != nil {
			t.Fatalf("AddRelationship(%s): %v", r.ID, err)
		}
	}

	tests := []struct {
		name   string
		filter common.RelationshipFilter
		want   []string
	}{
		{"all", common.RelationshipFilter{}, []string{"r1", "r2", "r3"}},
		{"from a", common.RelationshipFilter{FromAtomID: "a"}, []string{"r1", "r2"}},
		{"to c", common.RelationshipFilter{ToAtomID: "c"}, []string{"r2", "r3"}},
		{"from b to c", common.RelationshipFilter{FromAtomID: "b", ToAtomID: "c"}, []string{"r3"}},
		{"none", common.RelationshipFilter{FromAtomID: "c"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rels, err := s.ListRelationships(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("ListRelationships: %v", err)
			}
			if len(rels) != len(tt.want) {
				t.Fatalf("expected %d relationships, got %d", len(tt.want), len(rels))
			}
			for i, id := range tt.want {
				if rels[i].ID != id {
					t.Fatalf("position %d: expected %s, got %s", i, id, rels[i].ID)
				}
			}
		})
	}
}

func TestFindAtoms(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter store.AtomFilter
		want   []string
	}{
		{"all in insertion order", store.AtomFilter{}, []string{"a", "b", "c"}},
		{"ids keep requested order", store.AtomFilter{IDs: []string{"c", "a", "missing"}}, []string{"c", "a"}},
		{"text matches glance", store.AtomFilter{Text: "VITAMIN"}, []string{"a"}},
		{"type", store.AtomFilter{Types: []common.AtomType{common.AtomTypeConcept}}, []string{"c"}},
		{"threshold", store.AtomFilter{Thresholds: []common.KnowledgeThreshold{common.ThresholdClinicalEvidence}}, []string{"c"}},
		{"nil threshold counts as T1", store.AtomFilter{Thresholds: []common.KnowledgeThreshold{common.ThresholdSkinFundamentals}}, []string{"a", "b"}},
		{"limit", store.AtomFilter{Limit: 2}, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			atoms, err := s.FindAtoms(ctx, tt.filter)
			if err != nil {
				t.Fatalf("FindAtoms: %v", err)
			}
			if len(atoms) != len(tt.want) {
				t.Fatalf("expected %d atoms, got %d", len(tt.want), len(atoms))
			}
			for i, id := range tt.want {
				if atoms[i].ID != id {
					t.Fatalf("position %d: expected %s, got %s", i, id, atoms[i].ID)
				}
			}
		})
	}
}

func TestUpdateAtom(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	th := common.ThresholdProfessionalTechniques
	why := "Speeds up cell turnover."
	a, err := s.UpdateAtom(ctx, "a", common.AtomPatch{Threshold: &th, WhyItWorks: &why})
	if err != nil {
		t.Fatalf("UpdateAtom: %v", err)
	}
	if a.EffectiveThreshold() != th {
		t.Fatalf("expected threshold %s, got %s", th, a.EffectiveThreshold())
	}
	if a.WhyItWorks == nil || *a.WhyItWorks != why {
		t.Fatalf("why it works not set: %v", a.WhyItWorks)
	}

	// Changing the caller's variables afterwards must not leak into the store.
	th = common.ThresholdSkinFundamentals
	stored, _ := s.GetAtom(ctx, "a")
	if stored.EffectiveThreshold() != common.ThresholdProfessionalTechniques {
		t.Fatalf("stored threshold aliased caller memory")
	}

	if _, err := s.UpdateAtom(ctx, "missing", common.AtomPatch{}); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	s := seed(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.GetAtom(ctx, "a"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := s.ListRelationships(ctx, common.RelationshipFilter{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
