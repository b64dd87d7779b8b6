// Package leaselock provides expiring locks stored in Postgres. Workers
// use them to make sure a single atom is rebuilt by one process at a
// time. A holder renews its lease in the background; a crashed holder
// loses it once the TTL runs out.
//
//	CREATE TABLE IF NOT EXISTS reindex_leases (
//		lease_key  TEXT PRIMARY KEY,
//		holder     TEXT NOT NULL,
//		expires_at TIMESTAMPTZ NOT NULL
//	);
package leaselock

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrBusy = errors.New("lease lock busy")
	ErrLost = errors.New("lease lock lost")
)

const (
	DefaultTTL          = time.Minute
	DefaultWaitInterval = 250 * time.Millisecond
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Client hands out leases. It is safe for concurrent use.
type Client struct {
	conn pgxIConn

	ttl          time.Duration
	renewEvery   time.Duration
	wait         bool
	waitInterval time.Duration
	waitJitter   time.Duration
	holderPrefix string
}

type Option func(*Client)

// WithTTL sets how long a lease survives without renewal. It is renewed
// at half that interval.
func WithTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithWait makes Acquire poll a busy key until it frees up or ctx ends,
// instead of failing with ErrBusy.
func WithWait(interval, jitter time.Duration) Option {
	return func(c *Client) {
		c.wait = true
		if interval > 0 {
			c.waitInterval = interval
		}
		c.waitJitter = max(jitter, 0)
	}
}

// WithHolderPrefix tags holder tokens, e.g. with the worker name.
func WithHolderPrefix(prefix string) Option {
	return func(c *Client) {
		c.holderPrefix = prefix
	}
}

func New(conn pgxIConn, opts ...Option) *Client {
	c := &Client{
		conn:         conn,
		ttl:          DefaultTTL,
		waitInterval: DefaultWaitInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.renewEvery = max(c.ttl/2, time.Second)
	if c.renewEvery >= c.ttl {
		c.renewEvery = c.ttl / 2
	}
	return c
}

// Lease is a held lock. Context is cancelled when the lease is released
// or lost.
type Lease struct {
	Key    string
	Holder string

	Context context.Context

	client *Client
	cancel context.CancelCauseFunc

	stopOnce sync.Once
	stopCh   chan struct{}
}

// WithLease runs fn while holding the lease on key. fn receives a
// context that ends if the lease is lost.
func (c *Client) WithLease(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lease, err := c.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		_ = lease.Release(context.WithoutCancel(ctx))
	}()
	return fn(lease.Context)
}

func (c *Client) Acquire(ctx context.Context, key string) (*Lease, error) {
	if key == "" {
		return nil, errors.New("lease key is empty")
	}

	tok, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	holder := c.holderPrefix + tok
	ttlMs := c.ttl.Milliseconds()

	for {
		ok, err := c.tryAcquire(ctx, key, holder, ttlMs)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if !c.wait {
			return nil, ErrBusy
		}
		if err := sleepWithJitter(ctx, c.waitInterval, c.waitJitter); err != nil {
			return nil, err
		}
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	l := &Lease{
		Key:     key,
		Holder:  holder,
		Context: leaseCtx,
		client:  c,
		cancel:  cancel,
		stopCh:  make(chan struct{}),
	}
	go l.renewLoop(ttlMs)
	return l, nil
}

func (c *Client) tryAcquire(ctx context.Context, key, holder string, ttlMs int64) (bool, error) {
	var returned string
	err := c.conn.QueryRow(ctx, tryAcquireSQL, key, holder, ttlMs).Scan(&returned)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return returned != "", nil
}

// Release gives the lease up. It is safe to call more than once.
func (l *Lease) Release(ctx context.Context) error {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		l.cancel(context.Canceled)
	})
	_, err := l.client.conn.Exec(ctx, releaseSQL, l.Key, l.Holder)
	return err
}

func (l *Lease) renewLoop(ttlMs int64) {
	t := time.NewTicker(l.client.renewEvery)
	defer t.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-l.Context.Done():
			return
		case <-t.C:
			if err := l.renewOnce(ttlMs); err != nil {
				l.cancel(err)
				return
			}
		}
	}
}

func (l *Lease) renewOnce(ttlMs int64) error {
	for attempt := range 3 {
		renewCtx, cancel := context.WithTimeout(l.Context, 15*time.Second)
		var returned string
		err := l.client.conn.QueryRow(renewCtx, renewSQL, l.Key, l.Holder, ttlMs).Scan(&returned)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLost
		}
		if attempt == 2 {
			return err
		}
		if err := sleepWithJitter(l.Context, 200*time.Millisecond, 0); err != nil {
			return err
		}
	}
	return ErrLost
}

func sleepWithJitter(ctx context.Context, base, jitter time.Duration) error {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int64N(int64(jitter) + 1))
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const tryAcquireSQL = `
INSERT INTO reindex_leases (lease_key, holder, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (lease_key) DO UPDATE
SET holder     = EXCLUDED.holder,
    expires_at = EXCLUDED.expires_at
WHERE reindex_leases.expires_at < now()
   OR reindex_leases.holder = EXCLUDED.holder
RETURNING lease_key;
`

const renewSQL = `
UPDATE reindex_leases
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE lease_key = $1 AND holder = $2
RETURNING lease_key;
`

const releaseSQL = `
DELETE FROM reindex_leases
WHERE lease_key = $1 AND holder = $2;
`
