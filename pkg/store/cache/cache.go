// Package cache decorates a store.GraphStorage with a Redis read-through
// cache for atom point lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/logger"
	"github.com/jade-labs/atomgraph/pkg/metrics"
	"github.com/jade-labs/atomgraph/pkg/store"

	goredis "github.com/redis/go-redis/v9"
)

const (
	DefaultTTL    = 5 * time.Minute
	DefaultPrefix = "atomgraph:atom:"
)

// redisIConn is the part of *goredis.Client the cache uses.
type redisIConn interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *goredis.BoolCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// Storage serves GetAtom from Redis when possible and falls through to
// the wrapped store otherwise. Every other method is delegated. Redis
// failures are logged and never surface to the caller.
type Storage struct {
	store.GraphStorage

	rdb    redisIConn
	ttl    time.Duration
	prefix string
}

var _ store.GraphStorage = (*Storage)(nil)

type Option func(*Storage)

// WithTTL sets how long a cached atom lives.
func WithTTL(ttl time.Duration) Option {
	return func(s *Storage) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithPrefix sets the key prefix, for sharing one Redis between deployments.
func WithPrefix(prefix string) Option {
	return func(s *Storage) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// New wraps inner with a cache backed by rdb.
func New(inner store.GraphStorage, rdb redisIConn, opts ...Option) *Storage {
	s := &Storage{
		GraphStorage: inner,
		rdb:          rdb,
		ttl:          DefaultTTL,
		prefix:       DefaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect dials Redis at addr and verifies the connection.
func Connect(ctx context.Context, addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func (s *Storage) key(id string) string {
	return s.prefix + id
}

func (s *Storage) GetAtom(ctx context.Context, id string) (*common.Atom, error) {
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	switch {
	case err == nil:
		atom, decodeErr := decodeAtom(raw)
		if decodeErr == nil {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return atom, nil
		}
		logger.Warn("[Cache] Dropping undecodable atom", "id", id, "err", decodeErr)
		s.invalidate(ctx, id)
		metrics.CacheLookups.WithLabelValues("error").Inc()
	case errors.Is(err, goredis.Nil):
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Warn("[Cache] Redis get failed", "id", id, "err", err)
		metrics.CacheLookups.WithLabelValues("error").Inc()
	}

	atom, err := s.GraphStorage.GetAtom(ctx, id)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, atom)
	return atom, nil
}

// UpdateAtom writes through to the wrapped store and replaces the cached
// copy with the updated atom. The copy is evicted when it cannot be
// replaced.
func (s *Storage) UpdateAtom(ctx context.Context, id string, patch common.AtomPatch) (*common.Atom, error) {
	atom, err := s.GraphStorage.UpdateAtom(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(atom)
	if err == nil {
		err = s.rdb.Set(ctx, s.key(id), raw, s.ttl).Err()
	}
	if err != nil {
		logger.Warn("[Cache] Failed to replace cached atom", "id", id, "err", err)
		s.invalidate(ctx, id)
	}
	return atom, nil
}

// fill never overwrites an existing key: a copy written by a concurrent
// UpdateAtom wins over one loaded before the write.
func (s *Storage) fill(ctx context.Context, atom *common.Atom) {
	raw, err := json.Marshal(atom)
	if err != nil {
		logger.Warn("[Cache] Failed to encode atom", "id", atom.ID, "err", err)
		return
	}
	if err := s.rdb.SetNX(ctx, s.key(atom.ID), raw, s.ttl).Err(); err != nil {
		logger.Warn("[Cache] Redis set failed", "id", atom.ID, "err", err)
	}
}

func (s *Storage) invalidate(ctx context.Context, id string) {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		logger.Warn("[Cache] Redis delete failed", "id", id, "err", err)
	}
}

func decodeAtom(raw []byte) (*common.Atom, error) {
	var atom common.Atom
	if err := json.Unmarshal(raw, &atom); err != nil {
		return nil, err
	}
	if atom.Tensor != nil {
		atom.Tensor.AtomID = atom.ID
	}
	return &atom, nil
}
