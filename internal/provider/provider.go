// Package provider builds the external clients shared by the server and
// the worker from the process configuration.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/jade-labs/atomgraph/internal/util"
	"github.com/jade-labs/atomgraph/pkg/ai"
	oai "github.com/jade-labs/atomgraph/pkg/ai/ollama"
	gai "github.com/jade-labs/atomgraph/pkg/ai/openai"
	"github.com/jade-labs/atomgraph/pkg/logger"
	"github.com/jade-labs/atomgraph/pkg/query"
	"github.com/jade-labs/atomgraph/pkg/store"
	"github.com/jade-labs/atomgraph/pkg/store/cache"
	storepgx "github.com/jade-labs/atomgraph/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
)

// NewEmbedder returns the embedding client selected by AI_ADAPTER, or
// nil when embeddings are disabled.
func NewEmbedder(cfg util.Config) (ai.Embedder, error) {
	switch strings.ToLower(cfg.AIAdapter) {
	case "", "none":
		return nil, nil
	case "ollama":
		client, err := oai.NewEmbeddingClient(oai.NewEmbeddingClientParams{
			Model:                 cfg.EmbedModel,
			BaseURL:               cfg.EmbedURL,
			ApiKey:                cfg.EmbedKey,
			Dimensions:            cfg.EmbedDim,
			MaxConcurrentRequests: int64(cfg.AIParallelReq),
			TimeoutMin:            cfg.AITimeoutMin,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case "openai":
		return gai.NewEmbeddingClient(gai.NewEmbeddingClientParams{
			Model:                 cfg.EmbedModel,
			URL:                   cfg.EmbedURL,
			Key:                   cfg.EmbedKey,
			Dimensions:            cfg.EmbedDim,
			MaxConcurrentRequests: int64(cfg.AIParallelReq),
			TimeoutMin:            cfg.AITimeoutMin,
		}), nil
	default:
		return nil, fmt.Errorf("unknown AI_ADAPTER %q", cfg.AIAdapter)
	}
}

// Store is the graph store with its optional Redis cache.
type Store struct {
	store.GraphStorage

	Pool  *pgxpool.Pool
	Redis *goredis.Client
}

// Close releases the database pool and the Redis client.
func (s *Store) Close() {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	s.Pool.Close()
}

// OpenStore connects to Postgres and, when REDIS_ADDR is set, puts the
// atom cache in front of it. An unreachable Redis is logged and skipped.
func OpenStore(ctx context.Context, cfg util.Config) (*Store, error) {
	pool, err := storepgx.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	var opts []storepgx.GraphDBStorageOption
	if cfg.Debug {
		opts = append(opts, storepgx.WithTracer(query.LogTracer{}))
	}
	s := &Store{
		GraphStorage: storepgx.NewGraphDBStorageWithConnection(pool, opts...),
		Pool:         pool,
	}
	if cfg.RedisAddr == "" {
		return s, nil
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("[Provider] Redis unavailable, serving without atom cache", "addr", cfg.RedisAddr, "err", err)
		return s, nil
	}
	s.Redis = rdb
	s.GraphStorage = cache.New(s.GraphStorage, rdb, cache.WithTTL(cfg.RedisTTL))
	return s, nil
}
