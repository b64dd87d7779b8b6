// Package vector defines the vector index the engine searches for
// semantically or numerically similar atoms.
package vector

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/jade-labs/atomgraph/pkg/common"
)

// Field names the vector a query is matched against.
type Field string

const (
	FieldEmbedding Field = "embedding"
	FieldTensor    Field = "tensor"
)

// Record is one atom as stored in the index. Tensor is the flat
// full-length profile with absent dimensions as zero.
type Record struct {
	AtomID    string
	Embedding []float32
	Tensor    []float32
	Type      common.AtomType
	Threshold common.KnowledgeThreshold
}

// Query is a similarity search over one field.
type Query struct {
	Vector []float32
	Field  Field
	Filter Filter
	Limit  int
}

// Match is a search hit. Distance is the cosine distance, so
// 1-Distance is the similarity.
type Match struct {
	ID        string
	Distance  float64
	Type      common.AtomType
	Threshold common.KnowledgeThreshold
}

// Index is an optional, eventually consistent similarity index over atoms.
type Index interface {
	Search(ctx context.Context, q Query) ([]Match, error)
	Upsert(ctx context.Context, r Record) error
}

// Filter restricts a search by metadata. Empty fields match everything.
type Filter struct {
	Thresholds   []common.KnowledgeThreshold
	Types        []common.AtomType
	TensorRanges map[common.TensorDimension]common.TensorRange
	ExcludeIDs   []string
}

func (f Filter) Empty() bool {
	return len(f.Thresholds) == 0 && len(f.Types) == 0 && len(f.TensorRanges) == 0 && len(f.ExcludeIDs) == 0
}

// Dimensions returns the range-filtered dimensions in ascending order.
func (f Filter) Dimensions() []common.TensorDimension {
	dims := make([]common.TensorDimension, 0, len(f.TensorRanges))
	for d := range f.TensorRanges {
		dims = append(dims, d)
	}
	sort.Slice(dims, func(i, j int) bool { return dims[i] < dims[j] })
	return dims
}

// Matches evaluates the filter against a stored record.
func (f Filter) Matches(r Record) bool {
	if slices.Contains(f.ExcludeIDs, r.AtomID) {
		return false
	}
	if len(f.Thresholds) > 0 && !slices.Contains(f.Thresholds, r.Threshold) {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, r.Type) {
		return false
	}
	for d, rng := range f.TensorRanges {
		if int(d) >= len(r.Tensor) || !rng.Contains(float64(r.Tensor[d])) {
			return false
		}
	}
	return true
}

// String renders the filter as a boolean expression, e.g.
//
//	threshold in ["T1_SKIN_FUNDAMENTALS"] && tensor[0] >= 0.3 && tensor[0] <= 1
//
// It is used for logging and by indexes that accept textual filters.
func (f Filter) String() string {
	parts := make([]string, 0, 4)
	if len(f.Thresholds) > 0 {
		vals := make([]string, len(f.Thresholds))
		for i, t := range f.Thresholds {
			vals[i] = strconv.Quote(string(t))
		}
		parts = append(parts, "threshold in ["+strings.Join(vals, ", ")+"]")
	}
	if len(f.Types) > 0 {
		vals := make([]string, len(f.Types))
		for i, t := range f.Types {
			vals[i] = strconv.Quote(string(t))
		}
		parts = append(parts, "atom_type in ["+strings.Join(vals, ", ")+"]")
	}
	for _, d := range f.Dimensions() {
		r := f.TensorRanges[d]
		parts = append(parts, fmt.Sprintf("tensor[%d] >= %s && tensor[%d] <= %s",
			int(d), formatFloat(r.Min), int(d), formatFloat(r.Max)))
	}
	if len(f.ExcludeIDs) > 0 {
		vals := make([]string, len(f.ExcludeIDs))
		for i, id := range f.ExcludeIDs {
			vals[i] = strconv.Quote(id)
		}
		parts = append(parts, "id not in ["+strings.Join(vals, ", ")+"]")
	}
	return strings.Join(parts, " && ")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when the lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// CosineDistance is 1 - CosineSimilarity.
func CosineDistance(a, b []float32) float64 {
	return 1 - CosineSimilarity(a, b)
}
