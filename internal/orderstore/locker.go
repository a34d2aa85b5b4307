package orderstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nathanbeddoewebdev/payq/internal/actionqueue"
	"nathanbeddoewebdev/payq/internal/retry"
)

// DefaultLeaseTTL bounds how long a crashed holder can block an order.
// Callers raise it with LeaseTTL when their queue holds orders longer.
const DefaultLeaseTTL = 2 * time.Minute

// LeaseTTL returns a lease duration that outlives one critical section
// of a queue configured with cfg, with the same again as headroom for
// storage work.
func LeaseTTL(cfg actionqueue.Config) time.Duration {
	return max(DefaultLeaseTTL, 2*cfg.HoldBudget())
}

var errLeaseHeld = errors.New("orderstore: lease held")

// Locker is a per-order lease stored in the order_locks table. It
// serializes processing across every process sharing the database file.
type Locker struct {
	store *Store
	ttl   time.Duration
	wait  retry.Config
}

// Locker returns a lease-based actionqueue.Locker backed by s.
func (s *Store) Locker(ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &Locker{
		store: s,
		ttl:   ttl,
		wait: retry.Config{
			MaxAttempts: 200,
			BaseDelay:   25 * time.Millisecond,
			MaxDelay:    250 * time.Millisecond,
		},
	}
}

// Lock acquires the lease for orderRef, polling until ctx is done. A
// lease that is still held when ctx expires yields actionqueue.ErrOrderBusy.
func (l *Locker) Lock(ctx context.Context, orderRef string) (func(), error) {
	holder := uuid.NewString()

	err := retry.Do(ctx, l.wait, isLeaseHeld, func() error {
		return l.tryAcquire(ctx, orderRef, holder)
	})
	if err != nil {
		if errors.Is(err, errLeaseHeld) || ctx.Err() != nil {
			return nil, fmt.Errorf("orderstore: %s: %w", orderRef, errors.Join(actionqueue.ErrOrderBusy, ctx.Err()))
		}
		return nil, err
	}

	return func() { l.release(orderRef, holder) }, nil
}

func isLeaseHeld(err error) bool { return errors.Is(err, errLeaseHeld) }

func (l *Locker) tryAcquire(ctx context.Context, orderRef, holder string) error {
	now := l.store.now()
	res, err := l.store.db.ExecContext(ctx, `
		INSERT INTO order_locks (order_ref, holder, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(order_ref) DO UPDATE
			SET holder = excluded.holder, expires_at = excluded.expires_at
			WHERE order_locks.expires_at < ?`,
		orderRef, holder, now.Add(l.ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return retry.Permanent(fmt.Errorf("orderstore: acquire lease for %s: %w", orderRef, err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errLeaseHeld
	}
	return nil
}

// release runs even when the caller's context is already cancelled.
func (l *Locker) release(orderRef, holder string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = l.store.db.ExecContext(ctx,
		`DELETE FROM order_locks WHERE order_ref = ? AND holder = ?`, orderRef, holder)
}

var _ actionqueue.Locker = (*Locker)(nil)
