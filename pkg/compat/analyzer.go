// Package compat analyses how a set of atoms interact when used together.
package compat

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jade-labs/atomgraph/pkg/access"
	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/logger"
	"github.com/jade-labs/atomgraph/pkg/store"

	"golang.org/x/sync/errgroup"
)

const (
	baseScore         = 70.0
	maxTips           = 5
	criticalSeverity  = 7
	compatibleMinimum = 60
)

// Interaction is the classified effect of one direct edge between two
// analysed atoms.
type Interaction struct {
	AtomA            string                  `json:"atom_a"`
	AtomB            string                  `json:"atom_b"`
	RelationshipID   string                  `json:"relationship_id"`
	RelationshipType common.RelationshipType `json:"relationship_type"`
	Type             InteractionType         `json:"type"`
	Severity         int                     `json:"severity"`
	SynergyType      SynergyType             `json:"synergy_type,omitempty"`
	ConflictType     ConflictType            `json:"conflict_type,omitempty"`
	Mechanism        string                  `json:"mechanism,omitempty"`
	Recommendation   string                  `json:"recommendation"`
	WaitTime         string                  `json:"wait_time,omitempty"`
}

// Result is the outcome of Analyze.
type Result struct {
	OverallScore int           `json:"overall_score"`
	Compatible   bool          `json:"compatible"`
	Interactions []Interaction `json:"interactions"`
	Synergies    []Interaction `json:"synergies"`
	Conflicts    []Interaction `json:"conflicts"`
	// SequenceRecommendation lists the analysed atoms in the order they
	// were given.
	SequenceRecommendation []string `json:"sequence_recommendation"`
	Warnings               []string `json:"warnings"`
	Tips                   []string `json:"tips"`
	// Skipped holds requested ids that do not exist or are hidden from
	// the caller.
	Skipped []string `json:"skipped,omitempty"`
}

// Analyzer runs compatibility analyses. It is safe for concurrent use.
type Analyzer struct {
	parallel int
}

type NewAnalyzerParams struct {
	// Parallel bounds concurrent store lookups.
	Parallel int
}

func NewAnalyzer(params NewAnalyzerParams) *Analyzer {
	parallel := params.Parallel
	if parallel <= 0 {
		parallel = 8
	}
	return &Analyzer{parallel: parallel}
}

// Analyze classifies every direct edge between each unordered pair of
// the given atoms and aggregates the result into a score. Pairs without
// an edge have no known interaction and do not affect the score. Unknown
// and hidden atoms are left out and reported in Result.Skipped.
func (a *Analyzer) Analyze(
	ctx context.Context,
	storeClient store.GraphStorage,
	atomIDs []string,
	level common.AccessLevel,
) (*Result, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidAccessLevel, string(level))
	}
	ids := store.DedupeStrings(atomIDs)

	fetched, err := store.GetAtoms(ctx, storeClient, ids, a.parallel)
	if err != nil {
		return nil, fmt.Errorf("load atoms: %w", err)
	}
	atoms := make([]*common.Atom, 0, len(fetched))
	res := &Result{
		Interactions:           []Interaction{},
		Synergies:              []Interaction{},
		Conflicts:              []Interaction{},
		SequenceRecommendation: []string{},
		Warnings:               []string{},
		Tips:                   []string{},
	}
	for i, atom := range fetched {
		if atom == nil || !access.CanView(level, atom) {
			res.Skipped = append(res.Skipped, ids[i])
			continue
		}
		atoms = append(atoms, atom)
		res.SequenceRecommendation = append(res.SequenceRecommendation, atom.ID)
	}

	edges, err := a.directEdges(ctx, storeClient, atoms)
	if err != nil {
		return nil, err
	}

	for i := 0; i < len(atoms); i++ {
		for j := i + 1; j < len(atoms); j++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			rel, ok := edges[edgeKey{atoms[i].ID, atoms[j].ID}]
			if !ok {
				rel, ok = edges[edgeKey{atoms[j].ID, atoms[i].ID}]
			}
			if !ok {
				continue
			}
			in := buildInteraction(rel, titleOf(atoms, rel.FromAtomID), titleOf(atoms, rel.ToAtomID))
			res.Interactions = append(res.Interactions, in)
			switch in.Type {
			case Synergy:
				res.Synergies = append(res.Synergies, in)
			case Conflict:
				res.Conflicts = append(res.Conflicts, in)
				res.Warnings = append(res.Warnings, warningFor(in, titleOf(atoms, in.AtomA), titleOf(atoms, in.AtomB)))
			}
		}
	}

	res.OverallScore = OverallScore(res.Synergies, res.Conflicts, len(atoms))
	res.Compatible = res.OverallScore >= compatibleMinimum
	for _, c := range res.Conflicts {
		if c.Severity >= criticalSeverity {
			res.Compatible = false
			break
		}
	}

	ranked := append([]Interaction(nil), res.Synergies...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Severity > ranked[j].Severity })
	for i := 0; i < len(ranked) && i < maxTips; i++ {
		res.Tips = append(res.Tips, ranked[i].Recommendation)
	}

	logger.Debug("[Compat] Analyze", "atoms", len(atoms), "interactions", len(res.Interactions),
		"score", res.OverallScore, "compatible", res.Compatible)
	return res, nil
}

type edgeKey struct {
	from, to string
}

// directEdges loads the outgoing edges of every atom and keeps, per
// ordered pair inside the set, the first edge in insertion order.
func (a *Analyzer) directEdges(ctx context.Context, storeClient store.GraphStorage, atoms []*common.Atom) (map[edgeKey]common.Relationship, error) {
	members := make(map[string]struct{}, len(atoms))
	for _, atom := range atoms {
		members[atom.ID] = struct{}{}
	}

	outgoing := make([][]common.Relationship, len(atoms))
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(a.parallel)
	for i, atom := range atoms {
		eg.Go(func() error {
			rels, err := storeClient.ListRelationships(ectx, common.RelationshipFilter{FromAtomID: atom.ID})
			if err != nil {
				return fmt.Errorf("list relationships of %s: %w", atom.ID, err)
			}
			outgoing[i] = rels
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	edges := make(map[edgeKey]common.Relationship)
	for _, rels := range outgoing {
		for _, rel := range rels {
			if rel.SelfLoop() {
				continue
			}
			if _, ok := members[rel.ToAtomID]; !ok {
				continue
			}
			key := edgeKey{rel.FromAtomID, rel.ToAtomID}
			if _, ok := edges[key]; !ok {
				edges[key] = rel
			}
		}
	}
	return edges, nil
}

func titleOf(atoms []*common.Atom, id string) string {
	for _, a := range atoms {
		if a.ID == id {
			if a.Title != "" {
				return a.Title
			}
			return a.ID
		}
	}
	return id
}

func buildInteraction(rel common.Relationship, fromTitle, toTitle string) Interaction {
	mechanism := rel.MechanismText()
	in := Interaction{
		AtomA:            rel.FromAtomID,
		AtomB:            rel.ToAtomID,
		RelationshipID:   rel.ID,
		RelationshipType: rel.Type,
		Type:             Classify(rel.Type, mechanism),
		Severity:         Severity(rel.Strength),
		Mechanism:        mechanism,
	}
	in.WaitTime = WaitTime(in.Type, in.Severity)

	switch in.Type {
	case Synergy:
		in.SynergyType = ClassifySynergy(mechanism)
		in.Recommendation = fmt.Sprintf("Use %s with %s for %s.", fromTitle, toTitle, describe(string(in.SynergyType)))
	case Conflict:
		in.ConflictType = ClassifyConflict(mechanism)
		in.Recommendation = fmt.Sprintf("Avoid layering %s and %s (risk of %s); leave at least %s between them.",
			fromTitle, toTitle, describe(string(in.ConflictType)), in.WaitTime)
	case Sequencing:
		in.Recommendation = fmt.Sprintf("Apply %s before %s and wait %s in between.", fromTitle, toTitle, in.WaitTime)
	default:
		in.Recommendation = fmt.Sprintf("%s and %s can be used together.", fromTitle, toTitle)
	}
	return in
}

func warningFor(in Interaction, aTitle, bTitle string) string {
	mechanism := in.Mechanism
	if mechanism == "" {
		mechanism = describe(string(in.ConflictType))
	}
	return fmt.Sprintf("%s conflicts with %s: %s", aTitle, bTitle, mechanism)
}

// describe turns an enum value such as PH_INCOMPATIBILITY into "pH incompatibility".
func describe(v string) string {
	s := strings.ToLower(strings.ReplaceAll(v, "_", " "))
	return strings.Replace(s, "ph ", "pH ", 1)
}

// OverallScore aggregates classified interactions between n atoms into
// 0-100. Fewer than two atoms score 100.
func OverallScore(synergies, conflicts []Interaction, n int) int {
	if n < 2 {
		return 100
	}
	maxPairs := float64(n*(n-1)) / 2

	synergySum, conflictSum := 0, 0
	for _, s := range synergies {
		synergySum += s.Severity
	}
	for _, c := range conflicts {
		conflictSum += c.Severity
	}

	score := baseScore +
		float64(synergySum*2)/maxPairs*15 -
		float64(conflictSum*3)/maxPairs*20
	return int(math.Round(common.Clamp(score, 0, 100)))
}
