package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jade-labs/atomgraph/internal/util"
	"github.com/jade-labs/atomgraph/pkg/ai"
	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/logger"
	"github.com/jade-labs/atomgraph/pkg/metrics"
	"github.com/jade-labs/atomgraph/pkg/store"
	"github.com/jade-labs/atomgraph/pkg/vector"
)

// QueueReindexMsg asks the worker to rebuild the vector record of an atom.
type QueueReindexMsg struct {
	AtomID      string    `json:"atom_id"`
	RequestID   string    `json:"request_id,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// Publisher sends reindex requests to ReindexQueue. It is safe for
// concurrent use.
type Publisher struct {
	mu sync.Mutex
	ch amqpIChannel
}

func NewPublisher(ch amqpIChannel) *Publisher {
	return &Publisher{ch: ch}
}

// NotifyReindex publishes a QueueReindexMsg for atomID.
func (p *Publisher) NotifyReindex(ctx context.Context, atomID string) error {
	body, err := json.Marshal(QueueReindexMsg{
		AtomID:      atomID,
		RequestID:   util.NewID(),
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return PublishFIFO(ctx, p.ch, ReindexQueue, body, nil)
}

// Locker serialises work on a key across workers.
type Locker interface {
	WithLease(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Indexer rebuilds vector records from the graph store.
type Indexer struct {
	store    store.GraphStorage
	embedder ai.Embedder
	index    vector.Index
	locker   Locker
	tries    int
	backoff  time.Duration
}

// NewIndexerParams defines the configuration parameters for creating a
// new Indexer. Embedder may be nil, in which case only the tensor is
// indexed. Locker, when set, keeps two workers from rebuilding the same
// atom at once. Tries and Backoff control retries of the embedding call.
type NewIndexerParams struct {
	Store    store.GraphStorage
	Embedder ai.Embedder
	Index    vector.Index
	Locker   Locker
	Tries    int
	Backoff  time.Duration
}

func NewIndexer(params NewIndexerParams) *Indexer {
	tries := params.Tries
	if tries <= 0 {
		tries = 3
	}
	backoff := params.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Indexer{
		store:    params.Store,
		embedder: params.Embedder,
		index:    params.Index,
		locker:   params.Locker,
		tries:    tries,
		backoff:  backoff,
	}
}

// ProcessReindexMessage handles one message body. Malformed messages
// and atoms deleted since the message was queued are dropped without
// error so they are not retried.
func (i *Indexer) ProcessReindexMessage(ctx context.Context, body []byte) (err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.ReindexEvents.WithLabelValues("index", result).Inc()
	}()

	var msg QueueReindexMsg
	if err := json.Unmarshal(body, &msg); err != nil || msg.AtomID == "" {
		logger.Warn("[Queue] Dropping malformed reindex message", "body", string(body), "err", err)
		return nil
	}

	if i.locker == nil {
		return i.reindex(ctx, msg)
	}
	return i.locker.WithLease(ctx, "reindex:"+msg.AtomID, func(ctx context.Context) error {
		return i.reindex(ctx, msg)
	})
}

func (i *Indexer) reindex(ctx context.Context, msg QueueReindexMsg) error {
	atom, err := i.store.GetAtom(ctx, msg.AtomID)
	if err != nil {
		if store.IsNotFound(err) {
			logger.Warn("[Queue] Atom vanished before reindex", "atom_id", msg.AtomID)
			return nil
		}
		return fmt.Errorf("load atom %s: %w", msg.AtomID, err)
	}

	record := vector.Record{
		AtomID:    atom.ID,
		Type:      atom.Type,
		Threshold: atom.EffectiveThreshold(),
	}
	if atom.Tensor.Present() > 0 {
		record.Tensor = atom.Tensor.Flat()
	}

	if i.embedder != nil {
		text := ai.AtomEmbeddingText(atom.Title, atom.Glance, atom.Scan)
		embedding, err := util.RetryWithContext(ctx, i.tries, i.backoff, func(ctx context.Context) ([]float32, error) {
			return i.embedder.GenerateEmbedding(ctx, text)
		})
		if err != nil {
			return fmt.Errorf("%w: embed atom %s: %w", common.ErrUpstreamUnavailable, atom.ID, err)
		}
		record.Embedding = embedding
	}

	err = util.RetryErrWithContext(ctx, i.tries, i.backoff, func(ctx context.Context) error {
		return i.index.Upsert(ctx, record)
	})
	if err != nil {
		return fmt.Errorf("upsert atom %s: %w", atom.ID, err)
	}
	logger.Debug("[Queue] Reindexed atom", "atom_id", atom.ID, "request_id", msg.RequestID, "embedded", record.Embedding != nil)
	return nil
}
