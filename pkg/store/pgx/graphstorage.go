// Package pgx implements store.GraphStorage on PostgreSQL.
//
// Expected tables:
//
//	CREATE TABLE atoms (
//	    id                   text PRIMARY KEY,
//	    atom_type            text NOT NULL,
//	    title                text NOT NULL,
//	    slug                 text NOT NULL UNIQUE,
//	    glance               text NOT NULL DEFAULT '',
//	    scan                 text NOT NULL DEFAULT '',
//	    study                text NOT NULL DEFAULT '',
//	    efficacy_score       double precision,
//	    innovation_score     double precision,
//	    sustainability_score double precision,
//	    threshold            text,
//	    why_it_works         text,
//	    causal_summary       text,
//	    parent_id            text REFERENCES atoms (id),
//	    created_at           timestamptz NOT NULL DEFAULT now(),
//	    updated_at           timestamptz NOT NULL DEFAULT now()
//	);
//
//	-- dims holds 17 entries, NULL where a dimension is not measured.
//	CREATE TABLE atom_tensors (
//	    atom_id text PRIMARY KEY REFERENCES atoms (id) ON DELETE CASCADE,
//	    dims    double precision[] NOT NULL
//	);
//
//	CREATE TABLE relationships (
//	    seq          bigserial,
//	    id           text PRIMARY KEY,
//	    from_atom_id text NOT NULL REFERENCES atoms (id),
//	    to_atom_id   text NOT NULL REFERENCES atoms (id),
//	    rel_type     text NOT NULL,
//	    strength     double precision NOT NULL DEFAULT 0.5,
//	    mechanism    text,
//	    evidence     text,
//	    source_type  text,
//	    source_url   text,
//	    metadata     jsonb,
//	    created_at   timestamptz NOT NULL DEFAULT now()
//	);
//
//	CREATE TABLE evidence_claims (
//	    seq bigserial, id text PRIMARY KEY, atom_id text NOT NULL, claim text NOT NULL,
//	    evidence_level text NOT NULL, sample_size int, duration_weeks int,
//	    publication_year int, peer_reviewed boolean, citation text,
//	    created_at timestamptz NOT NULL DEFAULT now()
//	);
//
//	CREATE TABLE efficacy_indicators (
//	    seq bigserial, id text PRIMARY KEY, atom_id text NOT NULL, metric text NOT NULL,
//	    expected_improvement double precision NOT NULL, timeframe text NOT NULL,
//	    evidence_level text NOT NULL, ci_lower double precision, ci_upper double precision
//	);
//
//	CREATE TABLE goldilocks_parameters (
//	    seq bigserial, id text PRIMARY KEY, atom_id text NOT NULL, parameter text NOT NULL,
//	    unit text NOT NULL, optimal_min double precision NOT NULL, optimal_max double precision NOT NULL,
//	    absolute_min double precision, absolute_max double precision, skin_type text, context text
//	);
package pgx

import (
	"context"
	"fmt"

	"github.com/jade-labs/atomgraph/pkg/query"
	"github.com/jade-labs/atomgraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// GraphDBStorage reads the atom graph from PostgreSQL. It holds no state
// besides the connection and is safe for concurrent use when conn is a
// pool.
type GraphDBStorage struct {
	conn  pgxIConn
	trace query.Tracer
}

var _ store.GraphStorage = (*GraphDBStorage)(nil)

type GraphDBStorageOption func(*GraphDBStorage)

func WithTracer(trace query.Tracer) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		s.trace = trace
	}
}

// NewGraphDBStorageWithConnection creates a new GraphDBStorage using an
// existing database connection or pool.
func NewGraphDBStorageWithConnection(conn pgxIConn, opts ...GraphDBStorageOption) *GraphDBStorage {
	s := &GraphDBStorage{conn: conn}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// Connect opens a pool for url with the pgvector types registered on
// every connection.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgxv5.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
