package leaselock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	key string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.key
	return nil
}

// fakeConn keeps leases in a map and ignores expiry.
type fakeConn struct {
	mu       sync.Mutex
	holders  map[string]string
	attempts int
	released []string
}

func newFakeConn() *fakeConn {
	return &fakeConn{holders: map[string]string{}}
}

func (c *fakeConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, holder := args[0].(string), args[1].(string)
	if strings.Contains(sql, "INSERT") {
		c.attempts++
		if cur, ok := c.holders[key]; ok && cur != holder {
			return fakeRow{err: pgx.ErrNoRows}
		}
		c.holders[key] = holder
		return fakeRow{key: key}
	}
	if c.holders[key] != holder {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{key: key}
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, holder := args[0].(string), args[1].(string)
	if c.holders[key] == holder {
		delete(c.holders, key)
		c.released = append(c.released, key)
	}
	return pgconn.NewCommandTag("DELETE 1"), nil
}

func TestWithLease(t *testing.T) {
	conn := newFakeConn()
	c := New(conn, WithHolderPrefix("worker-1:"))

	ran := false
	err := c.WithLease(context.Background(), "reindex:retinol", func(ctx context.Context) error {
		ran = true
		if !strings.HasPrefix(conn.holders["reindex:retinol"], "worker-1:") {
			t.Fatalf("expected prefixed holder, got %q", conn.holders["reindex:retinol"])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Fatal("expected fn to run")
	}
	if len(conn.released) != 1 || len(conn.holders) != 0 {
		t.Fatalf("expected lease to be released, got %v", conn.holders)
	}
}

func TestAcquire_Busy(t *testing.T) {
	conn := newFakeConn()
	c := New(conn)

	held, err := c.Acquire(context.Background(), "reindex:retinol")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer held.Release(context.Background())

	if _, err := c.Acquire(context.Background(), "reindex:retinol"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestAcquire_WaitsForRelease(t *testing.T) {
	conn := newFakeConn()
	c := New(conn, WithWait(time.Millisecond, 0))

	held, err := c.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	go func() {
		time.Sleep(10 * time.Millisecond)
		held.Release(context.Background())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	second, err := c.Acquire(ctx, "k")
	if err != nil {
		t.Fatalf("expected to acquire after release, got %v", err)
	}
	second.Release(context.Background())
}

func TestAcquire_WaitHonoursContext(t *testing.T) {
	conn := newFakeConn()
	c := New(conn, WithWait(time.Millisecond, time.Millisecond))

	held, err := c.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer held.Release(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Acquire(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestAcquire_EmptyKey(t *testing.T) {
	if _, err := New(newFakeConn()).Acquire(context.Background(), ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestRelease_CancelsLeaseContext(t *testing.T) {
	c := New(newFakeConn())
	lease, err := c.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := lease.Release(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lease.Context.Err() == nil {
		t.Fatal("expected lease context to be cancelled")
	}
	if err := lease.Release(context.Background()); err != nil {
		t.Fatalf("second release: %v", err)
	}
}
