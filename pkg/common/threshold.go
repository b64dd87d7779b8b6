package common

import (
	"fmt"
	"strings"
)

// AccessLevel is the caller's disclosure tier. Levels are ordered
// public < registered < professional < expert.
type AccessLevel string

const (
	AccessPublic       AccessLevel = "public"
	AccessRegistered   AccessLevel = "registered"
	AccessProfessional AccessLevel = "professional"
	AccessExpert       AccessLevel = "expert"
)

// AccessLevels lists the levels from lowest to highest.
var AccessLevels = []AccessLevel{
	AccessPublic,
	AccessRegistered,
	AccessProfessional,
	AccessExpert,
}

// Rank returns the ordinal of the level, or -1 for unknown values.
func (l AccessLevel) Rank() int {
	switch l {
	case AccessPublic:
		return 0
	case AccessRegistered:
		return 1
	case AccessProfessional:
		return 2
	case AccessExpert:
		return 3
	default:
		return -1
	}
}

// Valid reports whether l is one of the four known levels.
func (l AccessLevel) Valid() bool {
	return l.Rank() >= 0
}

// ParseAccessLevel is case-insensitive. The empty string is rejected so
// that a missing header never silently becomes a level.
func ParseAccessLevel(s string) (AccessLevel, error) {
	l := AccessLevel(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAccessLevel, s)
	}
	return l, nil
}

// KnowledgeThreshold is the 8-tier disclosure classification of an atom.
type KnowledgeThreshold string

const (
	ThresholdSkinFundamentals       KnowledgeThreshold = "T1_SKIN_FUNDAMENTALS"
	ThresholdIngredientBasics       KnowledgeThreshold = "T2_INGREDIENT_BASICS"
	ThresholdFormulationInsights    KnowledgeThreshold = "T3_FORMULATION_INSIGHTS"
	ThresholdClinicalEvidence       KnowledgeThreshold = "T4_CLINICAL_EVIDENCE"
	ThresholdAdvancedMechanisms     KnowledgeThreshold = "T5_ADVANCED_MECHANISMS"
	ThresholdProfessionalTechniques KnowledgeThreshold = "T6_PROFESSIONAL_TECHNIQUES"
	ThresholdExpertProtocols        KnowledgeThreshold = "T7_EXPERT_PROTOCOLS"
	ThresholdProprietaryResearch    KnowledgeThreshold = "T8_PROPRIETARY_RESEARCH"
)

// KnowledgeThresholds lists the tiers from T1 to T8.
var KnowledgeThresholds = []KnowledgeThreshold{
	ThresholdSkinFundamentals,
	ThresholdIngredientBasics,
	ThresholdFormulationInsights,
	ThresholdClinicalEvidence,
	ThresholdAdvancedMechanisms,
	ThresholdProfessionalTechniques,
	ThresholdExpertProtocols,
	ThresholdProprietaryResearch,
}

// Tier returns 1..8, or 0 for unknown values.
func (t KnowledgeThreshold) Tier() int {
	for i, k := range KnowledgeThresholds {
		if k == t {
			return i + 1
		}
	}
	return 0
}

// Valid reports whether t is a known tier.
func (t KnowledgeThreshold) Valid() bool {
	return t.Tier() > 0
}

// ParseKnowledgeThreshold accepts the full constant name ("T6_PROFESSIONAL_TECHNIQUES")
// or the short tier code ("T6", case-insensitive).
func ParseKnowledgeThreshold(s string) (KnowledgeThreshold, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	if norm == "" {
		return "", fmt.Errorf("%w: empty value", ErrInvalidThreshold)
	}
	for _, t := range KnowledgeThresholds {
		if string(t) == norm || strings.SplitN(string(t), "_", 2)[0] == norm {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidThreshold, s)
}

// Threshold returns a pointer to t, for populating Atom.Threshold.
func Threshold(t KnowledgeThreshold) *KnowledgeThreshold {
	return &t
}
