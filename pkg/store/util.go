package store

import (
	"context"
	"slices"
	"strings"

	"github.com/jade-labs/atomgraph/pkg/common"

	"golang.org/x/sync/errgroup"
)

// DedupeStrings drops empty and repeated values, keeping first occurrence order.
func DedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// GetAtoms fetches atoms by id with at most parallel concurrent lookups.
// The result is aligned with ids; unknown ids leave a nil slot.
func GetAtoms(ctx context.Context, s GraphStorage, ids []string, parallel int) ([]*common.Atom, error) {
	out := make([]*common.Atom, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	if parallel <= 0 {
		parallel = 8
	}

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(parallel)
	for i := range ids {
		idx := i
		id := ids[i]
		eg.Go(func() error {
			atom, err := s.GetAtom(ectx, id)
			if err != nil {
				if IsNotFound(err) {
					return nil
				}
				return err
			}
			out[idx] = atom
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// MatchesFilter reports whether atom satisfies every field of f except
// IDs and Limit. Implementations without a query language use it to
// evaluate filters in process.
func MatchesFilter(atom *common.Atom, f AtomFilter) bool {
	if atom == nil {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Text)); q != "" {
		hay := strings.ToLower(atom.Title + "\n" + atom.Glance + "\n" + atom.Scan)
		if !strings.Contains(hay, q) {
			return false
		}
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, atom.Type) {
		return false
	}
	if len(f.Thresholds) > 0 && !slices.Contains(f.Thresholds, atom.EffectiveThreshold()) {
		return false
	}
	for d, r := range f.TensorRanges {
		v, ok := atom.Tensor.Get(d)
		if !ok || !r.Contains(v) {
			return false
		}
	}
	return true
}
