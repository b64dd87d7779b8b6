package common

import (
	"fmt"
	"strings"
	"time"
)

// EvidenceLevel is the 7-tier scientific rigor classification of a claim,
// ordered ANECDOTAL < IN_VITRO < ... < GOLD_STANDARD.
type EvidenceLevel string

const (
	EvidenceAnecdotal       EvidenceLevel = "ANECDOTAL"
	EvidenceInVitro         EvidenceLevel = "IN_VITRO"
	EvidenceAnimal          EvidenceLevel = "ANIMAL"
	EvidenceHumanPilot      EvidenceLevel = "HUMAN_PILOT"
	EvidenceHumanControlled EvidenceLevel = "HUMAN_CONTROLLED"
	EvidenceMetaAnalysis    EvidenceLevel = "META_ANALYSIS"
	EvidenceGoldStandard    EvidenceLevel = "GOLD_STANDARD"
)

// EvidenceLevels lists the tiers from weakest to strongest.
var EvidenceLevels = []EvidenceLevel{
	EvidenceAnecdotal,
	EvidenceInVitro,
	EvidenceAnimal,
	EvidenceHumanPilot,
	EvidenceHumanControlled,
	EvidenceMetaAnalysis,
	EvidenceGoldStandard,
}

// Rank returns the ordinal position (0 for ANECDOTAL), or -1 if unknown.
func (l EvidenceLevel) Rank() int {
	for i, e := range EvidenceLevels {
		if e == l {
			return i
		}
	}
	return -1
}

func ParseEvidenceLevel(s string) (EvidenceLevel, error) {
	norm := EvidenceLevel(strings.ToUpper(strings.TrimSpace(s)))
	if norm.Rank() < 0 {
		return "", fmt.Errorf("%w: unknown evidence level %q", ErrInvalidInput, s)
	}
	return norm, nil
}

// StudyMetadata describes the study backing a claim. All fields optional.
type StudyMetadata struct {
	SampleSize      *int    `json:"sample_size,omitempty"`
	DurationWeeks   *int    `json:"duration_weeks,omitempty"`
	PublicationYear *int    `json:"publication_year,omitempty"`
	PeerReviewed    *bool   `json:"peer_reviewed,omitempty"`
	Citation        *string `json:"citation,omitempty"`
}

// EvidenceClaim is a scientific claim attached to one atom.
type EvidenceClaim struct {
	ID            string         `json:"id"`
	AtomID        string         `json:"atom_id"`
	Claim         string         `json:"claim"`
	EvidenceLevel EvidenceLevel  `json:"evidence_level"`
	Study         *StudyMetadata `json:"study,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ConfidenceInterval is an optional [Lower, Upper] range around an
// expected improvement.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// EfficacyIndicator records an expected measurable outcome for an atom.
// Timeframe is free text such as "8-12 weeks".
type EfficacyIndicator struct {
	ID                  string              `json:"id"`
	AtomID              string              `json:"atom_id"`
	Metric              string              `json:"metric"`
	ExpectedImprovement float64             `json:"expected_improvement"`
	Timeframe           string              `json:"timeframe"`
	EvidenceLevel       EvidenceLevel       `json:"evidence_level"`
	ConfidenceInterval  *ConfidenceInterval `json:"confidence_interval,omitempty"`
}
