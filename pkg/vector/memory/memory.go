// Package memory is a brute-force in-process vector.Index.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/vector"
)

type Index struct {
	mu      sync.RWMutex
	records map[string]vector.Record
	order   []string
}

var _ vector.Index = (*Index)(nil)

func New() *Index {
	return &Index{records: map[string]vector.Record{}}
}

func (i *Index) Upsert(ctx context.Context, r vector.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.AtomID == "" {
		return fmt.Errorf("%w: record without atom id", common.ErrInvalidInput)
	}
	if len(r.Tensor) != 0 && len(r.Tensor) != common.TensorDimensionCount {
		return fmt.Errorf("%w: tensor has %d dimensions", common.ErrInvalidInput, len(r.Tensor))
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.records[r.AtomID]; !ok {
		i.order = append(i.order, r.AtomID)
	}
	r.Embedding = append([]float32(nil), r.Embedding...)
	r.Tensor = append([]float32(nil), r.Tensor...)
	i.records[r.AtomID] = r
	return nil
}

// Search scores every record that carries the queried field and
// satisfies the filter. Ties keep insertion order.
func (i *Index) Search(ctx context.Context, q vector.Query) ([]vector.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", common.ErrInvalidInput)
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make([]vector.Match, 0)
	for _, id := range i.order {
		r := i.records[id]
		var v []float32
		switch q.Field {
		case vector.FieldTensor:
			v = r.Tensor
		case vector.FieldEmbedding, "":
			v = r.Embedding
		default:
			return nil, fmt.Errorf("%w: unknown field %q", common.ErrInvalidInput, q.Field)
		}
		if len(v) != len(q.Vector) || !q.Filter.Matches(r) {
			continue
		}
		out = append(out, vector.Match{
			ID:        r.AtomID,
			Distance:  vector.CosineDistance(q.Vector, v),
			Type:      r.Type,
			Threshold: r.Threshold,
		})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Distance < out[b].Distance })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
