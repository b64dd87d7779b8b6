package pgx

import (
	"context"
	"fmt"

	"github.com/jade-labs/atomgraph/pkg/common"
)

func (s *GraphDBStorage) ListEvidence(ctx context.Context, atomID string) ([]common.EvidenceClaim, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, atom_id, claim, evidence_level,
			sample_size, duration_weeks, publication_year, peer_reviewed, citation, created_at
		FROM evidence_claims
		WHERE atom_id = $1
		ORDER BY seq`, atomID)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()

	out := make([]common.EvidenceClaim, 0)
	for rows.Next() {
		var (
			c     common.EvidenceClaim
			level string
			study common.StudyMetadata
		)
		if err := rows.Scan(
			&c.ID, &c.AtomID, &c.Claim, &level,
			&study.SampleSize, &study.DurationWeeks, &study.PublicationYear, &study.PeerReviewed, &study.Citation,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan evidence row: %w", err)
		}
		c.EvidenceLevel = common.EvidenceLevel(level)
		if study != (common.StudyMetadata{}) {
			c.Study = &study
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *GraphDBStorage) ListEfficacy(ctx context.Context, atomID string) ([]common.EfficacyIndicator, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, atom_id, metric, expected_improvement, timeframe, evidence_level, ci_lower, ci_upper
		FROM efficacy_indicators
		WHERE atom_id = $1
		ORDER BY seq`, atomID)
	if err != nil {
		return nil, fmt.Errorf("list efficacy: %w", err)
	}
	defer rows.Close()

	out := make([]common.EfficacyIndicator, 0)
	for rows.Next() {
		var (
			ind          common.EfficacyIndicator
			level        string
			lower, upper *float64
		)
		if err := rows.Scan(
			&ind.ID, &ind.AtomID, &ind.Metric, &ind.ExpectedImprovement, &ind.Timeframe, &level, &lower, &upper,
		); err != nil {
			return nil, fmt.Errorf("failed to scan efficacy row: %w", err)
		}
		ind.EvidenceLevel = common.EvidenceLevel(level)
		if lower != nil && upper != nil {
			ind.ConfidenceInterval = &common.ConfidenceInterval{Lower: *lower, Upper: *upper}
		}
		out = append(out, ind)
	}
	return out, rows.Err()
}

func (s *GraphDBStorage) ListGoldilocks(ctx context.Context, atomID string) ([]common.GoldilocksParameter, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, atom_id, parameter, unit, optimal_min, optimal_max,
			absolute_min, absolute_max, skin_type, context
		FROM goldilocks_parameters
		WHERE atom_id = $1
		ORDER BY seq`, atomID)
	if err != nil {
		return nil, fmt.Errorf("list goldilocks parameters: %w", err)
	}
	defer rows.Close()

	out := make([]common.GoldilocksParameter, 0)
	for rows.Next() {
		var p common.GoldilocksParameter
		if err := rows.Scan(
			&p.ID, &p.AtomID, &p.Parameter, &p.Unit, &p.OptimalMin, &p.OptimalMax,
			&p.AbsoluteMin, &p.AbsoluteMax, &p.SkinType, &p.Context,
		); err != nil {
			return nil, fmt.Errorf("failed to scan goldilocks row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
