// Package pgx implements vector.Index on PostgreSQL with pgvector.
//
// Expected table:
//
//	CREATE TABLE atom_vectors (
//	    atom_id    text PRIMARY KEY,
//	    embedding  vector,
//	    tensor     vector(17),
//	    atom_type  text NOT NULL,
//	    threshold  text NOT NULL,
//	    updated_at timestamptz NOT NULL DEFAULT now()
//	);
package pgx

import (
	"context"
	"fmt"
	"strings"

	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/vector"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
}

// Index stores atom vectors in the atom_vectors table.
type Index struct {
	conn  pgxIConn
	table string
}

var _ vector.Index = (*Index)(nil)

type IndexOption func(*Index)

// WithTable overrides the table name.
func WithTable(name string) IndexOption {
	return func(i *Index) {
		i.table = name
	}
}

func NewIndex(conn pgxIConn, opts ...IndexOption) *Index {
	i := &Index{conn: conn, table: "atom_vectors"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(i)
	}
	return i
}

func (i *Index) Upsert(ctx context.Context, r vector.Record) error {
	if r.AtomID == "" {
		return fmt.Errorf("%w: record without atom id", common.ErrInvalidInput)
	}

	var embedding, tensor *pgvector.Vector
	if len(r.Embedding) > 0 {
		v := pgvector.NewVector(r.Embedding)
		embedding = &v
	}
	if len(r.Tensor) > 0 {
		if len(r.Tensor) != common.TensorDimensionCount {
			return fmt.Errorf("%w: tensor has %d dimensions", common.ErrInvalidInput, len(r.Tensor))
		}
		v := pgvector.NewVector(r.Tensor)
		tensor = &v
	}

	sql := `INSERT INTO ` + i.table + ` (atom_id, embedding, tensor, atom_type, threshold, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (atom_id) DO UPDATE SET
			embedding = COALESCE(EXCLUDED.embedding, ` + i.table + `.embedding),
			tensor = COALESCE(EXCLUDED.tensor, ` + i.table + `.tensor),
			atom_type = EXCLUDED.atom_type,
			threshold = EXCLUDED.threshold,
			updated_at = now()`
	if _, err := i.conn.Exec(ctx, sql, r.AtomID, embedding, tensor, string(r.Type), string(r.Threshold)); err != nil {
		return fmt.Errorf("upsert vector %s: %w", r.AtomID, err)
	}
	return nil
}

func (i *Index) Search(ctx context.Context, q vector.Query) ([]vector.Match, error) {
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", common.ErrInvalidInput)
	}
	column, err := columnFor(q.Field)
	if err != nil {
		return nil, err
	}

	args := []any{pgvector.NewVector(q.Vector)}
	where := []string{column + " IS NOT NULL"}
	filterSQL, args := buildFilter(q.Filter, args)
	where = append(where, filterSQL...)

	sql := fmt.Sprintf(
		`SELECT atom_id, %s <=> $1 AS distance, atom_type, threshold FROM %s WHERE %s ORDER BY distance`,
		column, i.table, strings.Join(where, " AND "),
	)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := i.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	out := make([]vector.Match, 0)
	for rows.Next() {
		var (
			m         vector.Match
			atomType  string
			threshold string
		)
		if err := rows.Scan(&m.ID, &m.Distance, &atomType, &threshold); err != nil {
			return nil, fmt.Errorf("scan vector match: %w", err)
		}
		m.Type = common.AtomType(atomType)
		m.Threshold = common.KnowledgeThreshold(threshold)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return out, nil
}

func columnFor(f vector.Field) (string, error) {
	switch f {
	case vector.FieldEmbedding, "":
		return "embedding", nil
	case vector.FieldTensor:
		return "tensor", nil
	default:
		return "", fmt.Errorf("%w: unknown field %q", common.ErrInvalidInput, f)
	}
}

// buildFilter translates f into WHERE conditions with positional
// arguments appended to args.
func buildFilter(f vector.Filter, args []any) ([]string, []any) {
	conds := make([]string, 0, 4)
	if len(f.Thresholds) > 0 {
		vals := make([]string, len(f.Thresholds))
		for i, t := range f.Thresholds {
			vals[i] = string(t)
		}
		args = append(args, vals)
		conds = append(conds, fmt.Sprintf("threshold = ANY($%d)", len(args)))
	}
	if len(f.Types) > 0 {
		vals := make([]string, len(f.Types))
		for i, t := range f.Types {
			vals[i] = string(t)
		}
		args = append(args, vals)
		conds = append(conds, fmt.Sprintf("atom_type = ANY($%d)", len(args)))
	}
	for _, d := range f.Dimensions() {
		r := f.TensorRanges[d]
		args = append(args, r.Min, r.Max)
		// Postgres arrays are 1-based.
		conds = append(conds, fmt.Sprintf("(tensor::real[])[%d] BETWEEN $%d AND $%d", int(d)+1, len(args)-1, len(args)))
	}
	if len(f.ExcludeIDs) > 0 {
		args = append(args, f.ExcludeIDs)
		conds = append(conds, fmt.Sprintf("NOT (atom_id = ANY($%d))", len(args)))
	}
	return conds, args
}
