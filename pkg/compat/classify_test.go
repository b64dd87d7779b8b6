package compat

import (
	"testing"

	"github.com/jade-labs/atomgraph/pkg/common"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		relType   common.RelationshipType
		mechanism string
		want      InteractionType
	}{
		{"enables is synergy", common.RelEnables, "", Synergy},
		{"synergizes", common.RelSynergizesWith, "", Synergy},
		{"enhances", common.RelEnhances, "", Synergy},
		{"amplifies", common.RelAmplifies, "", Synergy},
		{"conflicts", common.RelConflictsWith, "", Conflict},
		{"inhibits", common.RelInhibits, "", Conflict},
		{"neutralizes", common.RelNeutralizes, "", Conflict},
		{"sequenced before", common.RelSequencedBefore, "", Sequencing},
		{"prerequisite", common.RelPrerequisiteOf, "", Sequencing},
		{"consequence is not sequencing", common.RelConsequenceOf, "", Neutral},
		{"type wins over mechanism", common.RelEnables, "may inhibit absorption", Synergy},
		{"mechanism decides for neutral type", common.RelCauses, "degrades vitamin C", Conflict},
		{"mechanism timing", common.RelRequires, "timing matters: apply first", Sequencing},
		{"mechanism synergy", common.RelContains, "boosts stability", Synergy},
		{"neutral in mechanism", common.RelCauses, "leaves the acid neutral on skin", Conflict},
		{"neutral", common.RelPartOf, "found in the same serum", Neutral},
		{"empty", common.RelCauses, "", Neutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.relType, tt.mechanism); got != tt.want {
				t.Fatalf("Classify(%s, %q) = %s, want %s", tt.relType, tt.mechanism, got, tt.want)
			}
		})
	}
}

func TestClassifySynergy(t *testing.T) {
	tests := []struct {
		mechanism string
		want      SynergyType
	}{
		{"Vitamin E stabilizes vitamin C", SynergyStabilization},
		{"improves penetration", SynergyPenetration},
		{"better absorption", SynergyPenetration},
		{"antioxidant network", SynergyProtection},
		{"", SynergyEnhancement},
		{"works well together", SynergyEnhancement},
	}
	for _, tt := range tests {
		if got := ClassifySynergy(tt.mechanism); got != tt.want {
			t.Fatalf("ClassifySynergy(%q) = %s, want %s", tt.mechanism, got, tt.want)
		}
	}
}

func TestClassifyConflict(t *testing.T) {
	tests := []struct {
		mechanism string
		want      ConflictType
	}{
		{"benzoyl peroxide inactivates retinol", ConflictInactivation},
		{"can irritate sensitive skin", ConflictIrritation},
		{"different pH optima", ConflictPHIncompatibility},
		{"phosphate buffer", ConflictDilution},
		{"occlusive barrier blocks the serum", ConflictPenetrationBarrier},
		{"oxidizes on contact", ConflictOxidation},
		{"", ConflictDilution},
	}
	for _, tt := range tests {
		if got := ClassifyConflict(tt.mechanism); got != tt.want {
			t.Fatalf("ClassifyConflict(%q) = %s, want %s", tt.mechanism, got, tt.want)
		}
	}
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		strength float64
		want     int
	}{
		{0, 1},
		{0.04, 1},
		{0.5, 5},
		{0.7, 7},
		{0.8, 8},
		{1, 10},
		{3, 10},
		{-1, 1},
	}
	for _, tt := range tests {
		if got := Severity(tt.strength); got != tt.want {
			t.Fatalf("Severity(%v) = %d, want %d", tt.strength, got, tt.want)
		}
	}
}

func TestWaitTime(t *testing.T) {
	if WaitTime(Conflict, 8) != "12 hours" || WaitTime(Conflict, 5) != "30 minutes" || WaitTime(Conflict, 2) != "10 minutes" {
		t.Fatal("unexpected conflict wait times")
	}
	if WaitTime(Sequencing, 9) != "15 minutes" || WaitTime(Sequencing, 1) != "5 minutes" {
		t.Fatal("unexpected sequencing wait times")
	}
	if WaitTime(Synergy, 10) != "" || WaitTime(Neutral, 10) != "" {
		t.Fatal("synergy and neutral need no wait")
	}
}
