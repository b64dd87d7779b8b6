package pgx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jade-labs/atomgraph/internal/util"
	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/query"
	"github.com/jade-labs/atomgraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const atomColumns = `a.id, a.atom_type, a.title, a.slug, a.glance, a.scan, a.study,
	a.efficacy_score, a.innovation_score, a.sustainability_score,
	a.threshold, a.why_it_works, a.causal_summary, a.parent_id,
	a.created_at, a.updated_at, t.dims`

const atomFrom = `FROM atoms a LEFT JOIN atom_tensors t ON t.atom_id = a.id`

func scanAtom(row pgxv5.Row) (*common.Atom, error) {
	var (
		atom      common.Atom
		atomType  string
		threshold *string
		dims      []*float64
	)
	err := row.Scan(
		&atom.ID, &atomType, &atom.Title, &atom.Slug, &atom.Glance, &atom.Scan, &atom.Study,
		&atom.EfficacyScore, &atom.InnovationScore, &atom.SustainabilityScore,
		&threshold, &atom.WhyItWorks, &atom.CausalSummary, &atom.ParentID,
		&atom.CreatedAt, &atom.UpdatedAt, &dims,
	)
	if err != nil {
		return nil, err
	}

	atom.Type = common.AtomType(atomType)
	if threshold != nil {
		th := common.KnowledgeThreshold(*threshold)
		atom.Threshold = &th
	}
	atom.Tensor = tensorFromDims(atom.ID, dims)
	return &atom, nil
}

// tensorFromDims maps the stored array back onto a tensor. NULL entries
// stay unmeasured; a missing row yields a nil tensor.
func tensorFromDims(atomID string, dims []*float64) *common.Tensor {
	if dims == nil {
		return nil
	}
	t := common.NewTensor(atomID, nil)
	for i, v := range dims {
		if v == nil || i >= common.TensorDimensionCount {
			continue
		}
		t.Set(common.TensorDimension(i), *v)
	}
	return t
}

func (s *GraphDBStorage) GetAtom(ctx context.Context, id string) (*common.Atom, error) {
	row := s.conn.QueryRow(ctx, `SELECT `+atomColumns+` `+atomFrom+` WHERE a.id = $1`, id)
	atom, err := scanAtom(row)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, fmt.Errorf("%w: atom %s", common.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get atom %s: %w", id, err)
	}
	query.RecordQueriedAtomIDs(query.TracerFor(ctx, s.trace), id)
	return atom, nil
}

func (s *GraphDBStorage) FindAtoms(ctx context.Context, filter store.AtomFilter) ([]*common.Atom, error) {
	sql, args := buildFindAtoms(filter)
	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("find atoms: %w", err)
	}
	defer rows.Close()

	out := make([]*common.Atom, 0)
	for rows.Next() {
		atom, err := scanAtom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan atom row: %w", err)
		}
		out = append(out, atom)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find atoms: %w", err)
	}

	ids := make([]string, len(out))
	for i, a := range out {
		ids[i] = a.ID
	}
	query.RecordQueriedAtomIDs(query.TracerFor(ctx, s.trace), ids...)
	return out, nil
}

// buildFindAtoms renders filter as a parameterised query. Results follow
// filter.IDs when set, otherwise creation order.
func buildFindAtoms(filter store.AtomFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	idsArg := ""
	if len(filter.IDs) > 0 {
		idsArg = arg(filter.IDs)
		where = append(where, "a.id = ANY("+idsArg+")")
	}
	if text := strings.TrimSpace(filter.Text); text != "" {
		p := arg("%" + escapeLike(text) + "%")
		where = append(where, fmt.Sprintf("(a.title ILIKE %[1]s OR a.glance ILIKE %[1]s OR a.scan ILIKE %[1]s)", p))
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		where = append(where, "a.atom_type = ANY("+arg(types)+")")
	}
	if len(filter.Thresholds) > 0 {
		ths := make([]string, len(filter.Thresholds))
		for i, t := range filter.Thresholds {
			ths[i] = string(t)
		}
		where = append(where, fmt.Sprintf("COALESCE(a.threshold, '%s') = ANY(%s)", common.ThresholdSkinFundamentals, arg(ths)))
	}
	for _, d := range sortedDims(filter.TensorRanges) {
		r := filter.TensorRanges[d]
		where = append(where, fmt.Sprintf("t.dims[%d] BETWEEN %s AND %s", int(d)+1, arg(r.Min), arg(r.Max)))
	}

	var b strings.Builder
	b.WriteString("SELECT " + atomColumns + " " + atomFrom)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if idsArg != "" {
		b.WriteString(" ORDER BY array_position(" + idsArg + "::text[], a.id)")
	} else {
		b.WriteString(" ORDER BY a.created_at, a.id")
	}
	if filter.Limit > 0 {
		b.WriteString(" LIMIT " + arg(filter.Limit))
	}
	return b.String(), args
}

func sortedDims(ranges map[common.TensorDimension]common.TensorRange) []common.TensorDimension {
	dims := make([]common.TensorDimension, 0, len(ranges))
	for d := range common.TensorDimensionCount {
		if _, ok := ranges[common.TensorDimension(d)]; ok {
			dims = append(dims, common.TensorDimension(d))
		}
	}
	return dims
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// UpdateAtom applies the non-nil fields of patch and returns the stored atom.
func (s *GraphDBStorage) UpdateAtom(ctx context.Context, id string, patch common.AtomPatch) (*common.Atom, error) {
	var threshold *string
	if patch.Threshold != nil {
		v := string(*patch.Threshold)
		threshold = &v
	}
	var why *string
	if patch.WhyItWorks != nil {
		v := util.SanitizePostgresText(*patch.WhyItWorks)
		why = &v
	}

	var updated string
	err := s.conn.QueryRow(ctx, `
		UPDATE atoms
		SET threshold = COALESCE($2, threshold),
			why_it_works = COALESCE($3, why_it_works),
			updated_at = $4
		WHERE id = $1
		RETURNING id`,
		id, threshold, why, time.Now().UTC(),
	).Scan(&updated)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, fmt.Errorf("%w: atom %s", common.ErrNotFound, id)
		}
		return nil, fmt.Errorf("update atom %s: %w", id, err)
	}
	return s.GetAtom(ctx, id)
}
