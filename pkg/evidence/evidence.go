// Package evidence scores scientific claims attached to atoms.
package evidence

import (
	"context"
	"fmt"

	"github.com/jade-labs/atomgraph/pkg/common"

	"golang.org/x/sync/errgroup"
)

// Strength returns the fixed numeric strength of an evidence level. The
// table increases strictly from 0.14 (anecdotal) to 1.0 (gold standard).
// Unknown levels score 0.
func Strength(level common.EvidenceLevel) float64 {
	switch level {
	case common.EvidenceAnecdotal:
		return 0.14
	case common.EvidenceInVitro:
		return 0.28
	case common.EvidenceAnimal:
		return 0.43
	case common.EvidenceHumanPilot:
		return 0.57
	case common.EvidenceHumanControlled:
		return 0.71
	case common.EvidenceMetaAnalysis:
		return 0.86
	case common.EvidenceGoldStandard:
		return 1.0
	default:
		return 0
	}
}

// MeetsMinimum reports whether the claim's level is at or above minimum.
// An unknown level on either side meets nothing.
func MeetsMinimum(claim common.EvidenceClaim, minimum common.EvidenceLevel) bool {
	r, m := claim.EvidenceLevel.Rank(), minimum.Rank()
	return r >= 0 && m >= 0 && r >= m
}

// Summary aggregates the claims of one atom.
type Summary struct {
	AtomID          string                       `json:"atom_id"`
	Count           int                          `json:"count"`
	AverageStrength float64                      `json:"average_strength"`
	HighestLevel    common.EvidenceLevel         `json:"highest_level,omitempty"`
	ByLevel         map[common.EvidenceLevel]int `json:"by_level"`
}

// ClaimLister is the slice of the graph store the scorer needs.
type ClaimLister interface {
	ListEvidence(ctx context.Context, atomID string) ([]common.EvidenceClaim, error)
}

// Summarize fetches every claim of the atom and aggregates them. An atom
// without claims yields a zero summary, not an error.
func Summarize(ctx context.Context, s ClaimLister, atomID string) (Summary, error) {
	claims, err := s.ListEvidence(ctx, atomID)
	if err != nil {
		return Summary{}, fmt.Errorf("list evidence for %s: %w", atomID, err)
	}
	sum := SummarizeClaims(claims)
	sum.AtomID = atomID
	return sum, nil
}

// SummarizeClaims aggregates an already fetched claim list.
func SummarizeClaims(claims []common.EvidenceClaim) Summary {
	sum := Summary{ByLevel: map[common.EvidenceLevel]int{}}
	if len(claims) == 0 {
		return sum
	}

	total := 0.0
	highest := -1
	for _, c := range claims {
		sum.Count++
		total += Strength(c.EvidenceLevel)
		sum.ByLevel[c.EvidenceLevel]++
		if r := c.EvidenceLevel.Rank(); r > highest {
			highest = r
			sum.HighestLevel = c.EvidenceLevel
		}
	}
	sum.AverageStrength = total / float64(sum.Count)
	return sum
}

// SummarizeMany summarizes several atoms with at most parallel concurrent
// store calls. The result is aligned with atomIDs.
func SummarizeMany(ctx context.Context, s ClaimLister, atomIDs []string, parallel int) ([]Summary, error) {
	out := make([]Summary, len(atomIDs))
	if len(atomIDs) == 0 {
		return out, nil
	}
	if parallel <= 0 {
		parallel = 8
	}

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(parallel)
	for i, id := range atomIDs {
		eg.Go(func() error {
			sum, err := Summarize(ectx, s, id)
			if err != nil {
				return err
			}
			out[i] = sum
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
