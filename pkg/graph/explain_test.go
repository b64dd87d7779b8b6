package graph

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/store/memory"
)

func explainGraph(t *testing.T) *memory.Storage {
	t.Helper()
	s := memory.New()
	why := "Retinol binds nuclear retinoic acid receptors. This switches on collagen genes."
	for _, a := range []common.Atom{
		{ID: "retinol", Slug: "retinol", Title: "Retinol", WhyItWorks: &why, Threshold: common.Threshold(common.ThresholdIngredientBasics)},
		{ID: "collagen-synthesis", Slug: "collagen-synthesis", Title: "Collagen synthesis"},
		{ID: "reduced-fine-lines", Slug: "reduced-fine-lines", Title: "Reduced fine lines", Scan: "Visible smoothing."},
	} {
		if err := s.AddAtom(a); err != nil {
			t.Fatalf("AddAtom: %v", err)
		}
	}
	if _, err := s.AddRelationship(common.Relationship{
		FromAtomID: "retinol", ToAtomID: "collagen-synthesis", Type: common.RelEnables, Strength: 0.8,
		Mechanism: common.String("stimulates fibroblast activity"),
	}); err != nil {
		t.Fatalf("AddRelationship: %v", err)
	}
	mustRel(t, s, "collagen-synthesis", "reduced-fine-lines", common.RelConsequenceOf, 0.7)

	s.AddEvidence(common.EvidenceClaim{AtomID: "retinol", Claim: "RCT", EvidenceLevel: common.EvidenceGoldStandard})
	s.AddEvidence(common.EvidenceClaim{AtomID: "collagen-synthesis", Claim: "meta", EvidenceLevel: common.EvidenceMetaAnalysis})
	return s
}

func TestExplain_DownstreamChain(t *testing.T) {
	s := explainGraph(t)
	g := NewGraphClient(NewGraphClientParams{})

	exp, err := g.Explain(context.Background(), s, "retinol", "", common.AccessPublic)
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if len(exp.Path) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(exp.Path))
	}
	// (1.0 + 0.86 + 0) / 3 = 0.62; penalty for 3 steps is 0.8.
	if exp.EvidenceStrength != 0.62 {
		t.Fatalf("expected evidence strength 0.62, got %v", exp.EvidenceStrength)
	}
	if exp.ConfidenceScore != 50 {
		t.Fatalf("expected confidence 50, got %d", exp.ConfidenceScore)
	}
	if exp.Disclosure.Glance != "Retinol binds nuclear retinoic acid receptors." {
		t.Fatalf("unexpected glance %q", exp.Disclosure.Glance)
	}
	if exp.Disclosure.Scan != "stimulates fibroblast activity → consequence of" {
		t.Fatalf("unexpected scan %q", exp.Disclosure.Scan)
	}
	lines := strings.Split(exp.Disclosure.Study, "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "1. Retinol") || !strings.HasPrefix(lines[2], "3. Reduced fine lines") {
		t.Fatalf("unexpected study %q", exp.Disclosure.Study)
	}
	if !strings.HasPrefix(exp.Summary, "Retinol binds") {
		t.Fatalf("expected stored why-it-works as summary, got %q", exp.Summary)
	}
}

func TestExplain_WithTarget(t *testing.T) {
	s := explainGraph(t)
	g := NewGraphClient(NewGraphClientParams{})

	exp, err := g.Explain(context.Background(), s, "collagen-synthesis", "reduced-fine-lines", common.AccessPublic)
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if len(exp.Path) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(exp.Path))
	}
	// (0.86 + 0) / 2 = 0.43, penalty 0.9.
	if exp.ConfidenceScore != 39 {
		t.Fatalf("expected confidence 39, got %d", exp.ConfidenceScore)
	}
	if exp.Summary != "Collagen synthesis leads to Reduced fine lines through a 1-step causal chain." {
		t.Fatalf("unexpected summary %q", exp.Summary)
	}
	if exp.Disclosure.Glance != "Collagen synthesis works through 1 known mechanism." {
		t.Fatalf("unexpected glance %q", exp.Disclosure.Glance)
	}
}

func TestExplain_NoChainFallsBackToStoredText(t *testing.T) {
	s := explainGraph(t)
	g := NewGraphClient(NewGraphClientParams{})

	exp, err := g.Explain(context.Background(), s, "reduced-fine-lines", "", common.AccessPublic)
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if len(exp.Path) != 1 {
		t.Fatalf("expected only the atom itself, got %d steps", len(exp.Path))
	}
	if exp.Disclosure.Scan != "Visible smoothing." {
		t.Fatalf("expected stored scan text, got %q", exp.Disclosure.Scan)
	}
	if exp.ConfidenceScore != 0 || exp.EvidenceStrength != 0 {
		t.Fatalf("expected zero scores, got %d/%v", exp.ConfidenceScore, exp.EvidenceStrength)
	}
}

func TestExplain_UnreachableTarget(t *testing.T) {
	s := explainGraph(t)
	g := NewGraphClient(NewGraphClientParams{})

	exp, err := g.Explain(context.Background(), s, "reduced-fine-lines", "retinol", common.AccessPublic)
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if len(exp.Path) != 0 || exp.ConfidenceScore != 0 {
		t.Fatalf("expected empty explanation, got %+v", exp)
	}
	if !strings.HasPrefix(exp.Summary, "No causal link") {
		t.Fatalf("unexpected summary %q", exp.Summary)
	}
}

func TestExplain_MissingAtom(t *testing.T) {
	s := explainGraph(t)
	g := NewGraphClient(NewGraphClientParams{})
	if _, err := g.Explain(context.Background(), s, "missing", "", common.AccessPublic); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConfidenceScore(t *testing.T) {
	tests := []struct {
		avg   float64
		steps int
		want  int
	}{
		{1.0, 1, 100},
		{1.0, 2, 90},
		{1.0, 11, 0},
		{1.0, 15, 0},
		{0.5, 3, 40},
		{0.7, 0, 0},
	}
	for _, tt := range tests {
		if got := confidenceScore(tt.avg, tt.steps); got != tt.want {
			t.Fatalf("confidenceScore(%v, %d) = %d, want %d", tt.avg, tt.steps, got, tt.want)
		}
	}
}

type countingStore struct {
	*memory.Storage
	mu    sync.Mutex
	loads map[string]int
}

func (c *countingStore) GetAtom(ctx context.Context, id string) (*common.Atom, error) {
	c.mu.Lock()
	c.loads[id]++
	c.mu.Unlock()
	return c.Storage.GetAtom(ctx, id)
}

func TestExplain_LoadsStartAtomOnce(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"chain", ""},
		{"target", "reduced-fine-lines"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &countingStore{Storage: explainGraph(t), loads: map[string]int{}}
			g := NewGraphClient(NewGraphClientParams{})

			if _, err := g.Explain(context.Background(), s, "retinol", tt.target, common.AccessPublic); err != nil {
				t.Fatalf("Explain: %v", err)
			}
			if got := s.loads["retinol"]; got != 1 {
				t.Fatalf("expected the start atom to be loaded once, got %d", got)
			}
		})
	}
}
