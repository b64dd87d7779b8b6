package common

import (
	"fmt"
	"strings"
	"time"
)

// RelationshipType names the causal or semantic meaning of an edge.
type RelationshipType string

const (
	RelEnables         RelationshipType = "ENABLES"
	RelInhibits        RelationshipType = "INHIBITS"
	RelPrerequisiteOf  RelationshipType = "PREREQUISITE_OF"
	RelSynergizesWith  RelationshipType = "SYNERGIZES_WITH"
	RelConflictsWith   RelationshipType = "CONFLICTS_WITH"
	RelConsequenceOf   RelationshipType = "CONSEQUENCE_OF"
	RelCauses          RelationshipType = "CAUSES"
	RelAmplifies       RelationshipType = "AMPLIFIES"
	RelReduces         RelationshipType = "REDUCES"
	RelRequires        RelationshipType = "REQUIRES"
	RelContains        RelationshipType = "CONTAINS"
	RelPartOf          RelationshipType = "PART_OF"
	RelRegulates       RelationshipType = "REGULATES"
	RelEnhances        RelationshipType = "ENHANCES"
	RelNeutralizes     RelationshipType = "NEUTRALIZES"
	RelSequencedBefore RelationshipType = "SEQUENCED_BEFORE"
)

// RelationshipTypes lists all sixteen edge types.
var RelationshipTypes = []RelationshipType{
	RelEnables,
	RelInhibits,
	RelPrerequisiteOf,
	RelSynergizesWith,
	RelConflictsWith,
	RelConsequenceOf,
	RelCauses,
	RelAmplifies,
	RelReduces,
	RelRequires,
	RelContains,
	RelPartOf,
	RelRegulates,
	RelEnhances,
	RelNeutralizes,
	RelSequencedBefore,
}

func ParseRelationshipType(s string) (RelationshipType, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	for _, t := range RelationshipTypes {
		if string(t) == norm {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown relationship type %q", ErrInvalidInput, s)
}

// DefaultStrength is applied when an edge is stored without a strength.
const DefaultStrength = 0.5

// Relationship is a directed, weighted edge between two atoms. Upstream
// traversal walks edges whose ToAtomID is the current atom, downstream
// walks edges whose FromAtomID is the current atom.
type Relationship struct {
	ID         string           `json:"id"`
	FromAtomID string           `json:"from_atom_id"`
	ToAtomID   string           `json:"to_atom_id"`
	Type       RelationshipType `json:"type"`
	Strength   float64          `json:"strength"`

	Mechanism  *string        `json:"mechanism,omitempty"`
	Evidence   *string        `json:"evidence,omitempty"`
	SourceType *string        `json:"source_type,omitempty"`
	SourceURL  *string        `json:"source_url,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// SelfLoop reports whether the edge points back at its own source.
func (r *Relationship) SelfLoop() bool {
	return r.FromAtomID == r.ToAtomID
}

// MechanismText returns the mechanism description, falling back to the
// evidence description, or "" when neither is set.
func (r *Relationship) MechanismText() string {
	if r == nil {
		return ""
	}
	if r.Mechanism != nil && strings.TrimSpace(*r.Mechanism) != "" {
		return strings.TrimSpace(*r.Mechanism)
	}
	if r.Evidence != nil && strings.TrimSpace(*r.Evidence) != "" {
		return strings.TrimSpace(*r.Evidence)
	}
	return ""
}

// RelationshipFilter selects edges by endpoint. Empty fields match any value.
type RelationshipFilter struct {
	FromAtomID string
	ToAtomID   string
}
