// Package access decides which knowledge thresholds a caller may see.
//
// Access levels form the ordinal public < registered < professional < expert.
// Each of the eight knowledge thresholds requires exactly one level. An
// atom without a threshold is public.
package access

import (
	"fmt"

	"github.com/jade-labs/atomgraph/pkg/common"
)

// ThresholdInfo describes one knowledge threshold.
type ThresholdInfo struct {
	Threshold     common.KnowledgeThreshold `json:"threshold"`
	Tier          int                       `json:"tier"`
	Label         string                    `json:"label"`
	Description   string                    `json:"description"`
	RequiredLevel common.AccessLevel        `json:"required_level"`
}

// Info returns the metadata for t. Unknown thresholds yield
// ErrInvalidThreshold.
func Info(t common.KnowledgeThreshold) (ThresholdInfo, error) {
	info := ThresholdInfo{Threshold: t, Tier: t.Tier()}
	switch t {
	case common.ThresholdSkinFundamentals:
		info.Label = "Skin Fundamentals"
		info.Description = "How skin works: layers, barrier, cell turnover."
		info.RequiredLevel = common.AccessPublic
	case common.ThresholdIngredientBasics:
		info.Label = "Ingredient Basics"
		info.Description = "What common ingredients do and who they suit."
		info.RequiredLevel = common.AccessPublic
	case common.ThresholdFormulationInsights:
		info.Label = "Formulation Insights"
		info.Description = "Concentrations, vehicles and stability considerations."
		info.RequiredLevel = common.AccessRegistered
	case common.ThresholdClinicalEvidence:
		info.Label = "Clinical Evidence"
		info.Description = "Study design, outcomes and evidence quality."
		info.RequiredLevel = common.AccessRegistered
	case common.ThresholdAdvancedMechanisms:
		info.Label = "Advanced Mechanisms"
		info.Description = "Receptor pathways and molecular mechanisms of action."
		info.RequiredLevel = common.AccessProfessional
	case common.ThresholdProfessionalTechniques:
		info.Label = "Professional Techniques"
		info.Description = "In-clinic procedures, peels and combination protocols."
		info.RequiredLevel = common.AccessProfessional
	case common.ThresholdExpertProtocols:
		info.Label = "Expert Protocols"
		info.Description = "Treatment protocols for complex or medical cases."
		info.RequiredLevel = common.AccessExpert
	case common.ThresholdProprietaryResearch:
		info.Label = "Proprietary Research"
		info.Description = "Unpublished research and supplier intelligence."
		info.RequiredLevel = common.AccessExpert
	default:
		return ThresholdInfo{}, fmt.Errorf("%w: %q", common.ErrInvalidThreshold, string(t))
	}
	return info, nil
}

// RequiredLevel returns the access level needed to view t.
func RequiredLevel(t common.KnowledgeThreshold) (common.AccessLevel, error) {
	info, err := Info(t)
	if err != nil {
		return "", err
	}
	return info.RequiredLevel, nil
}

// HasAccess reports whether level may view content at threshold t.
// Unknown levels or thresholds never grant access.
func HasAccess(level common.AccessLevel, t common.KnowledgeThreshold) bool {
	required, err := RequiredLevel(t)
	if err != nil || !level.Valid() {
		return false
	}
	return level.Rank() >= required.Rank()
}

// CanView reports whether level may view atom. A nil threshold is public.
func CanView(level common.AccessLevel, atom *common.Atom) bool {
	if atom == nil {
		return false
	}
	return HasAccess(level, atom.EffectiveThreshold())
}

// MaxAccessibleThreshold returns the highest threshold level can reach.
// ok is false only for unknown levels.
func MaxAccessibleThreshold(level common.AccessLevel) (t common.KnowledgeThreshold, ok bool) {
	for _, k := range common.KnowledgeThresholds {
		if HasAccess(level, k) {
			t, ok = k, true
		}
	}
	return t, ok
}

// AccessibleThresholds lists every threshold level can reach, lowest first.
func AccessibleThresholds(level common.AccessLevel) []common.KnowledgeThreshold {
	out := make([]common.KnowledgeThreshold, 0, len(common.KnowledgeThresholds))
	for _, k := range common.KnowledgeThresholds {
		if HasAccess(level, k) {
			out = append(out, k)
		}
	}
	return out
}
