package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/query"
)

// ListRelationships returns the matching edges in insertion order.
func (s *GraphDBStorage) ListRelationships(ctx context.Context, filter common.RelationshipFilter) ([]common.Relationship, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, from_atom_id, to_atom_id, rel_type, strength,
			mechanism, evidence, source_type, source_url, metadata, created_at
		FROM relationships
		WHERE ($1 = '' OR from_atom_id = $1)
			AND ($2 = '' OR to_atom_id = $2)
		ORDER BY seq`,
		filter.FromAtomID, filter.ToAtomID,
	)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()

	out := make([]common.Relationship, 0)
	for rows.Next() {
		var (
			rel      common.Relationship
			relType  string
			metadata []byte
		)
		if err := rows.Scan(
			&rel.ID, &rel.FromAtomID, &rel.ToAtomID, &relType, &rel.Strength,
			&rel.Mechanism, &rel.Evidence, &rel.SourceType, &rel.SourceURL, &metadata, &rel.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan relationship row: %w", err)
		}
		rel.Type = common.RelationshipType(relType)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &rel.Metadata); err != nil {
				return nil, fmt.Errorf("relationship %s metadata: %w", rel.ID, err)
			}
		}
		out = append(out, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}

	ids := make([]string, len(out))
	for i, r := range out {
		ids[i] = r.ID
	}
	query.RecordQueriedRelationshipIDs(query.TracerFor(ctx, s.trace), ids...)
	return out, nil
}
