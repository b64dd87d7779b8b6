package compat

import (
	"math"
	"regexp"
	"strings"

	"github.com/jade-labs/atomgraph/pkg/common"
)

// InteractionType is the effect two atoms have when used together.
type InteractionType string

const (
	Synergy    InteractionType = "SYNERGY"
	Conflict   InteractionType = "CONFLICT"
	Sequencing InteractionType = "SEQUENCING"
	Neutral    InteractionType = "NEUTRAL"
)

type SynergyType string

const (
	SynergyEnhancement   SynergyType = "ENHANCEMENT"
	SynergyStabilization SynergyType = "STABILIZATION"
	SynergyPenetration   SynergyType = "PENETRATION"
	SynergyProtection    SynergyType = "PROTECTION"
)

type ConflictType string

const (
	ConflictInactivation       ConflictType = "INACTIVATION"
	ConflictIrritation         ConflictType = "IRRITATION"
	ConflictPHIncompatibility  ConflictType = "PH_INCOMPATIBILITY"
	ConflictPenetrationBarrier ConflictType = "PENETRATION_BARRIER"
	ConflictOxidation          ConflictType = "OXIDATION"
	ConflictDilution           ConflictType = "DILUTION"
)

type keywordRule[T any] struct {
	keywords []string
	pattern  *regexp.Regexp
	result   T
}

// Checked in order; conflicts win over sequencing, sequencing over synergy.
var interactionRules = []keywordRule[InteractionType]{
	{keywords: []string{"conflict", "inhibit", "neutral", "antagon", "degrad"}, result: Conflict},
	{keywords: []string{"timing", "prerequisite"}, pattern: regexp.MustCompile(`\bsequenc`), result: Sequencing},
	{keywords: []string{"synerg", "enhanc", "enabl", "amplif", "potentiat", "boost"}, result: Synergy},
}

var synergyRules = []keywordRule[SynergyType]{
	{keywords: []string{"stabil"}, result: SynergyStabilization},
	{keywords: []string{"penetrat", "absor"}, result: SynergyPenetration},
	{keywords: []string{"protect", "antioxid"}, result: SynergyProtection},
}

var conflictRules = []keywordRule[ConflictType]{
	{keywords: []string{"inactiv", "deactiv"}, result: ConflictInactivation},
	{keywords: []string{"irrit", "sensitiz"}, result: ConflictIrritation},
	{pattern: regexp.MustCompile(`\bph\b`), result: ConflictPHIncompatibility},
	{keywords: []string{"barrier", "penetrat"}, result: ConflictPenetrationBarrier},
	{keywords: []string{"oxid"}, result: ConflictOxidation},
}

func matchRules[T any](text string, rules []keywordRule[T]) (T, bool) {
	for _, r := range rules {
		if r.pattern != nil && r.pattern.MatchString(text) {
			return r.result, true
		}
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return r.result, true
			}
		}
	}
	var zero T
	return zero, false
}

func normalize(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", " "))
}

// Classify maps a relationship to an interaction type. The relationship
// type name is matched first; the mechanism text is consulted only when
// the type name is inconclusive. Anything unmatched is Neutral.
func Classify(relType common.RelationshipType, mechanism string) InteractionType {
	if t, ok := matchRules(normalize(string(relType)), interactionRules); ok {
		return t
	}
	if t, ok := matchRules(normalize(mechanism), interactionRules); ok {
		return t
	}
	return Neutral
}

// ClassifySynergy derives the synergy subtype from the mechanism text.
func ClassifySynergy(mechanism string) SynergyType {
	if t, ok := matchRules(normalize(mechanism), synergyRules); ok {
		return t
	}
	return SynergyEnhancement
}

// ClassifyConflict derives the conflict subtype from the mechanism text,
// defaulting to dilution.
func ClassifyConflict(mechanism string) ConflictType {
	if t, ok := matchRules(normalize(mechanism), conflictRules); ok {
		return t
	}
	return ConflictDilution
}

// Severity scales a 0-1 strength onto 1-10.
func Severity(strength float64) int {
	return int(math.Round(common.Clamp(strength*10, 1, 10)))
}

// WaitTime suggests a pause between applying two interacting atoms, or ""
// when none is needed.
func WaitTime(t InteractionType, severity int) string {
	switch t {
	case Conflict:
		switch {
		case severity >= 7:
			return "12 hours"
		case severity >= 4:
			return "30 minutes"
		default:
			return "10 minutes"
		}
	case Sequencing:
		if severity >= 7 {
			return "15 minutes"
		}
		return "5 minutes"
	default:
		return ""
	}
}
