package common

import (
	"fmt"
	"strings"
	"time"
)

// AtomType classifies what kind of domain concept an atom represents.
type AtomType string

const (
	AtomTypeCompany    AtomType = "COMPANY"
	AtomTypeBrand      AtomType = "BRAND"
	AtomTypeProduct    AtomType = "PRODUCT"
	AtomTypeIngredient AtomType = "INGREDIENT"
	AtomTypeRegulation AtomType = "REGULATION"
	AtomTypeTrend      AtomType = "TREND"
	AtomTypeConcept    AtomType = "CONCEPT"
	AtomTypeMarketData AtomType = "MARKET_DATA"
)

// AtomTypes lists every atom type in declaration order.
var AtomTypes = []AtomType{
	AtomTypeCompany,
	AtomTypeBrand,
	AtomTypeProduct,
	AtomTypeIngredient,
	AtomTypeRegulation,
	AtomTypeTrend,
	AtomTypeConcept,
	AtomTypeMarketData,
}

// ParseAtomType accepts the canonical upper-case name as well as the
// lower-case and hyphenated spellings used by curation tooling.
func ParseAtomType(s string) (AtomType, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for _, t := range AtomTypes {
		if string(t) == norm {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown atom type %q", ErrInvalidInput, s)
}

// Atom is a single knowledge unit in the graph. Text is stored at three
// disclosure depths: Glance (a line), Scan (a paragraph) and Study (the
// long form).
//
// Optional scalar fields are pointers so that "not measured" is never
// conflated with zero.
type Atom struct {
	ID    string   `json:"id"`
	Type  AtomType `json:"type"`
	Title string   `json:"title"`
	Slug  string   `json:"slug"`

	Glance string `json:"glance"`
	Scan   string `json:"scan"`
	Study  string `json:"study"`

	EfficacyScore       *float64 `json:"efficacy_score,omitempty"`
	InnovationScore     *float64 `json:"innovation_score,omitempty"`
	SustainabilityScore *float64 `json:"sustainability_score,omitempty"`

	Threshold     *KnowledgeThreshold `json:"threshold,omitempty"`
	WhyItWorks    *string             `json:"why_it_works,omitempty"`
	CausalSummary *string             `json:"causal_summary,omitempty"`
	ParentID      *string             `json:"parent_id,omitempty"`

	Tensor *Tensor `json:"tensor,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveThreshold returns the atom's threshold, treating a missing
// threshold as the lowest public tier.
func (a *Atom) EffectiveThreshold() KnowledgeThreshold {
	if a == nil || a.Threshold == nil {
		return ThresholdSkinFundamentals
	}
	return *a.Threshold
}

// AtomPatch carries the fields a caller may change through the engine.
// Nil fields are left untouched.
type AtomPatch struct {
	Threshold  *KnowledgeThreshold `json:"threshold,omitempty"`
	WhyItWorks *string             `json:"why_it_works,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p AtomPatch) Empty() bool {
	return p.Threshold == nil && p.WhyItWorks == nil
}

// Float returns a pointer to v. Handy for optional score fields.
func Float(v float64) *float64 {
	return &v
}

// String returns a pointer to s.
func String(s string) *string {
	return &s
}
