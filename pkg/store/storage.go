package store

import (
	"context"

	"github.com/jade-labs/atomgraph/pkg/common"
)

// AtomFilter selects atoms for FindAtoms. Empty fields match everything;
// non-empty fields are combined with AND.
type AtomFilter struct {
	// IDs restricts the result to the given ids. Result order follows IDs.
	IDs []string
	// Text is a case-insensitive substring matched against title, glance
	// and scan.
	Text       string
	Types      []common.AtomType
	Thresholds []common.KnowledgeThreshold
	// TensorRanges requires a measured value inside the range for each
	// listed dimension.
	TensorRanges map[common.TensorDimension]common.TensorRange
	Limit        int
}

// GraphStorage is the read-mostly access the engine needs to the
// persisted graph. Implementations return common.ErrNotFound from GetAtom
// and UpdateAtom for unknown ids; list operations return an empty slice
// when nothing matches.
//
// ListRelationships returns edges in insertion order so that traversals
// are deterministic.
type GraphStorage interface {
	GetAtom(ctx context.Context, id string) (*common.Atom, error)
	FindAtoms(ctx context.Context, filter AtomFilter) ([]*common.Atom, error)
	UpdateAtom(ctx context.Context, id string, patch common.AtomPatch) (*common.Atom, error)

	ListRelationships(ctx context.Context, filter common.RelationshipFilter) ([]common.Relationship, error)

	ListEvidence(ctx context.Context, atomID string) ([]common.EvidenceClaim, error)
	ListEfficacy(ctx context.Context, atomID string) ([]common.EfficacyIndicator, error)
	ListGoldilocks(ctx context.Context, atomID string) ([]common.GoldilocksParameter, error)
}
