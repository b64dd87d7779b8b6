package graph

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/jade-labs/atomgraph/internal/util"
	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/evidence"
	"github.com/jade-labs/atomgraph/pkg/logger"
	"github.com/jade-labs/atomgraph/pkg/store"
)

// ExplainDepth bounds the downstream chain used when no target is given.
const ExplainDepth = 4

const maxScanMechanisms = 3

// Disclosure is an explanation at the three reading depths.
type Disclosure struct {
	Glance string `json:"glance"`
	Scan   string `json:"scan"`
	Study  string `json:"study"`
}

// Explanation answers why an atom works, optionally towards a target.
type Explanation struct {
	AtomID   string     `json:"atom_id"`
	TargetID string     `json:"target_id,omitempty"`
	Summary  string     `json:"summary"`
	Path     []PathStep `json:"path"`
	// ConfidenceScore is 0-100.
	ConfidenceScore  int        `json:"confidence_score"`
	EvidenceStrength float64    `json:"evidence_strength"`
	Disclosure       Disclosure `json:"disclosure"`
}

// Explain builds an explanation for atomID. With a target the shortest
// causal path to it is explained; otherwise the downstream chain up to
// ExplainDepth hops is used.
func (g *GraphClient) Explain(
	ctx context.Context,
	storeClient store.GraphStorage,
	atomID, targetID string,
	level common.AccessLevel,
) (*Explanation, error) {
	atom, err := resolveStart(ctx, storeClient, atomID, level)
	if err != nil {
		return nil, err
	}

	var path []PathStep
	if targetID != "" {
		target, err := resolveStart(ctx, storeClient, targetID, level)
		if err != nil {
			return nil, err
		}
		path, err = g.pathBetween(ctx, storeClient, atom, target, level)
		if err != nil {
			return nil, err
		}
	} else {
		nodes, err := g.navigateFrom(ctx, storeClient, atom, Downstream, []Direction{Downstream}, ExplainDepth, level)
		if err != nil {
			return nil, err
		}
		path = make([]PathStep, len(nodes))
		for i, n := range nodes {
			path[i] = PathStep{Atom: n.Atom, Relationship: n.Relationship, Mechanism: mechanismOf(n.Relationship)}
		}
	}

	ids := make([]string, len(path))
	for i, step := range path {
		ids[i] = step.Atom.ID
	}
	sums, err := evidence.SummarizeMany(ctx, storeClient, ids, g.parallel)
	if err != nil {
		return nil, err
	}

	avg := 0.0
	for _, s := range sums {
		avg += s.AverageStrength
	}
	if len(sums) > 0 {
		avg /= float64(len(sums))
	}

	exp := &Explanation{
		AtomID:           atom.ID,
		TargetID:         targetID,
		Summary:          summaryFor(atom, path, targetID),
		Path:             path,
		ConfidenceScore:  confidenceScore(avg, len(path)),
		EvidenceStrength: math.Round(avg*100) / 100,
		Disclosure: Disclosure{
			Glance: glanceFor(atom, path),
			Scan:   scanFor(atom, path),
			Study:  studyFor(path),
		},
	}
	logger.Debug("[Graph] Explain", "atom_id", atomID, "target_id", targetID, "steps", len(path), "confidence", exp.ConfidenceScore)
	return exp, nil
}

// confidenceScore scales the average step strength by a length penalty
// of 0.1 per hop and maps it onto 0-100.
func confidenceScore(avgStrength float64, steps int) int {
	if steps == 0 {
		return 0
	}
	penalty := math.Max(0, 1-0.1*float64(steps-1))
	return int(math.Round(avgStrength * penalty * 100))
}

func hops(path []PathStep) int {
	n := 0
	for _, s := range path {
		if s.Relationship != nil {
			n++
		}
	}
	return n
}

func summaryFor(atom *common.Atom, path []PathStep, targetID string) string {
	if atom.WhyItWorks != nil && strings.TrimSpace(*atom.WhyItWorks) != "" {
		return strings.TrimSpace(*atom.WhyItWorks)
	}
	if atom.CausalSummary != nil && strings.TrimSpace(*atom.CausalSummary) != "" {
		return strings.TrimSpace(*atom.CausalSummary)
	}
	if len(path) > 1 {
		last := path[len(path)-1].Atom
		return fmt.Sprintf("%s leads to %s through a %d-step causal chain.", atom.Title, last.Title, hops(path))
	}
	if targetID != "" {
		return fmt.Sprintf("No causal link is known from %s to the requested atom.", atom.Title)
	}
	return fmt.Sprintf("No downstream effects are recorded for %s.", atom.Title)
}

func glanceFor(atom *common.Atom, path []PathStep) string {
	if atom.WhyItWorks != nil {
		if s := util.FirstSentence(*atom.WhyItWorks); s != "" {
			return s
		}
	}
	n := hops(path)
	if n == 1 {
		return fmt.Sprintf("%s works through 1 known mechanism.", atom.Title)
	}
	return fmt.Sprintf("%s works through %d known mechanisms.", atom.Title, n)
}

func scanFor(atom *common.Atom, path []PathStep) string {
	mechanisms := make([]string, 0, maxScanMechanisms)
	for _, step := range path {
		if step.Mechanism == "" {
			continue
		}
		mechanisms = append(mechanisms, step.Mechanism)
		if len(mechanisms) == maxScanMechanisms {
			break
		}
	}
	if len(mechanisms) == 0 {
		return atom.Scan
	}
	return strings.Join(mechanisms, " → ")
}

func studyFor(path []PathStep) string {
	var b strings.Builder
	for i, step := range path {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, step.Atom.Title)
		if step.Relationship != nil {
			fmt.Fprintf(&b, " (%s, strength %.2f)", step.Relationship.Type, step.Relationship.Strength)
			if step.Mechanism != "" {
				fmt.Fprintf(&b, ": %s", step.Mechanism)
			}
		}
	}
	return b.String()
}
