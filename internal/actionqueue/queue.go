// Package actionqueue drives order actions that must reach the payment
// provider exactly once, eventually.
//
// Every order transition (confirm, ship, invoice, cancel, refund,
// reverse-cancel) is recorded as an ActionRecord on the order's pending
// list. ProcessOrder attempts at most one action per call, always the
// head of the list, so actions reach the provider in the order they were
// queued. A failing head action blocks the rest of that order until it
// succeeds or is removed. After MaxRetries consecutive failures the
// action is broken: the order is moved to the error status, an operator
// is notified, and the order is frozen until someone removes the broken
// action with RemoveBroken.
package actionqueue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strconv"
	"time"

	"nathanbeddoewebdev/payq/internal/retry"
)

const (
	DefaultMaxRetries    = 3
	DefaultRetryInterval = 10 * time.Minute
	DefaultCallTimeout   = 30 * time.Second
	DefaultLockTimeout   = 10 * time.Second
	DefaultErrorStatus   = "error"
	DefaultClearedStatus = "processing"
)

// Config controls queue policy. Zero values fall back to the defaults.
type Config struct {
	// PaymentMethod identifies orders that belong to this integration.
	PaymentMethod string

	// MaxRetries is the number of consecutive failures after which an
	// action is broken.
	MaxRetries int

	// RetryInterval is the minimum wait between attempts of one action.
	RetryInterval time.Duration

	// RetryJitter spreads retries of simultaneously failed actions.
	RetryJitter time.Duration

	// CallTimeout bounds a single remote call.
	CallTimeout time.Duration

	// LockTimeout bounds the wait for the per-order lock.
	LockTimeout time.Duration

	// ErrorStatus is applied to an order when one of its actions breaks.
	ErrorStatus string

	// ClearedStatus is applied when the last broken action of an order is
	// removed by an operator.
	ClearedStatus string
}

func (c Config) normalized() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	if c.RetryJitter < 0 {
		c.RetryJitter = 0
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = DefaultLockTimeout
	}
	if c.ErrorStatus == "" {
		c.ErrorStatus = DefaultErrorStatus
	}
	if c.ClearedStatus == "" {
		c.ClearedStatus = DefaultClearedStatus
	}
	return c
}

// Queue is the pending-action engine. It is safe for concurrent use as
// long as its Locker serializes work per order.
type Queue struct {
	cfg      Config
	policy   retry.Policy
	store    OrderStore
	remote   RemoteEffector
	notifier Notifier
	locker   Locker
	recorder AttemptRecorder
	clock    func() time.Time
	logger   *log.Logger
	workers  int
}

// Option customizes a Queue.
type Option func(*Queue)

// WithLocker replaces the default in-process KeyedMutex.
func WithLocker(l Locker) Option {
	return func(q *Queue) {
		if l != nil {
			q.locker = l
		}
	}
}

// WithAttemptRecorder records every remote attempt.
func WithAttemptRecorder(r AttemptRecorder) Option {
	return func(q *Queue) { q.recorder = r }
}

// WithClock overrides time.Now. Intended for tests.
func WithClock(clock func() time.Time) Option {
	return func(q *Queue) {
		if clock != nil {
			q.clock = clock
		}
	}
}

// WithLogger sets the logger used for operational messages.
func WithLogger(l *log.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithSweepWorkers sets how many orders ProcessAll handles concurrently.
func WithSweepWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// New creates a Queue. store, remote and notifier are required.
func New(store OrderStore, remote RemoteEffector, notifier Notifier, cfg Config, opts ...Option) *Queue {
	cfg = cfg.normalized()
	q := &Queue{
		cfg:      cfg,
		policy:   retry.Policy{Interval: cfg.RetryInterval, Jitter: cfg.RetryJitter},
		store:    store,
		remote:   remote,
		notifier: notifier,
		locker:   NewKeyedMutex(),
		clock:    time.Now,
		logger:   log.Default(),
		workers:  1,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// HoldBudget is how long one ProcessOrder call may keep an order locked,
// storage time aside: a remote call plus the escalation alert.
func (c Config) HoldBudget() time.Duration {
	return 2 * c.normalized().CallTimeout
}

// Config returns the normalized configuration.
func (q *Queue) Config() Config { return q.cfg }

// IsBroken reports whether record reached the retry ceiling.
func (q *Queue) IsBroken(record ActionRecord) bool {
	return record.IsBroken(q.cfg.MaxRetries)
}

// NextAttempt returns when record becomes eligible again. The zero time
// means it is eligible now.
func (q *Queue) NextAttempt(orderRef string, record ActionRecord) time.Time {
	if record.FailedAt == nil {
		return time.Time{}
	}
	return q.policy.NextAttempt(*record.FailedAt, jitterKey(orderRef, record))
}

// Enqueue records an action for the order. It returns false without an
// error when the order does not belong to this integration. Enqueueing a
// kind that is already pending is a successful no-op.
func (q *Queue) Enqueue(ctx context.Context, orderRef string, kind Kind, data map[string]string) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("actionqueue: %w: %q", ErrUnknownKind, kind)
	}
	ours, err := q.applicable(ctx, orderRef)
	if err != nil || !ours {
		return false, err
	}

	unlock, err := q.lock(ctx, orderRef)
	if err != nil {
		return false, err
	}
	defer unlock()

	pending, err := q.store.LoadPending(ctx, orderRef)
	if err != nil {
		return false, fmt.Errorf("actionqueue: load pending for %s: %w", orderRef, err)
	}
	for _, record := range pending {
		if record.Kind == kind {
			return true, nil
		}
	}

	pending = append(pending, ActionRecord{
		Kind:      kind,
		CreatedAt: q.clock().UTC(),
		Data:      cloneData(data),
	})
	if err := q.store.SavePending(ctx, orderRef, pending); err != nil {
		return false, fmt.Errorf("actionqueue: save pending for %s: %w", orderRef, err)
	}
	q.logger.Printf("actionqueue: enqueued order=%s kind=%s", orderRef, kind)
	return true, nil
}

// ProcessOrder attempts the head action of the order's pending list.
//
// It returns true when the list is empty or the head action succeeded.
// It returns false, with a nil error, when no progress was made: the
// order is not ours, it is frozen by a broken action, the head action is
// still inside its retry interval, the attempt failed, or another
// processor holds the order. Remote failures are never returned; storage
// failures are.
func (q *Queue) ProcessOrder(ctx context.Context, orderRef string) (bool, error) {
	ours, err := q.applicable(ctx, orderRef)
	if err != nil || !ours {
		return false, err
	}

	unlock, err := q.lock(ctx, orderRef)
	if err != nil {
		if errors.Is(err, ErrOrderBusy) {
			q.logger.Printf("actionqueue: order=%s busy, skipping", orderRef)
			return false, nil
		}
		return false, err
	}
	defer unlock()

	return q.processLocked(ctx, orderRef)
}

func (q *Queue) processLocked(ctx context.Context, orderRef string) (bool, error) {
	pending, err := q.store.LoadPending(ctx, orderRef)
	if err != nil {
		return false, fmt.Errorf("actionqueue: load pending for %s: %w", orderRef, err)
	}
	if len(pending) == 0 {
		return true, nil
	}
	if q.hasBroken(pending) {
		return false, nil
	}

	// Only the head is a candidate: actions depend on their predecessors,
	// so a later action never overtakes an earlier one.
	head := pending[0]
	if !q.policy.Eligible(head.FailedAt, q.clock(), jitterKey(orderRef, head)) {
		return false, nil
	}

	if err := q.attempt(ctx, orderRef, head); err != nil {
		return false, q.recordFailure(ctx, orderRef, pending, err)
	}
	return q.recordSuccess(ctx, orderRef, pending)
}

// recordSuccess moves the head record to the done list. It reports
// whether the move was persisted.
func (q *Queue) recordSuccess(ctx context.Context, orderRef string, pending []ActionRecord) (bool, error) {
	record := pending[0]
	processedAt := q.clock().UTC()
	record.ProcessedAt = &processedAt
	record.FailedAt = nil

	done, err := q.store.LoadDone(ctx, orderRef)
	if err != nil {
		return false, fmt.Errorf("actionqueue: load done for %s: %w", orderRef, err)
	}
	if err := q.moveToDone(ctx, orderRef, slices.Clone(pending[1:]), done, record); err != nil {
		return false, err
	}

	q.logger.Printf("actionqueue: processed order=%s kind=%s", orderRef, record.Kind)
	note := fmt.Sprintf("Payment provider: %s completed.", record.Kind.Label())
	if err := q.store.AppendNote(ctx, orderRef, note); err != nil {
		return true, fmt.Errorf("actionqueue: append note for %s: %w", orderRef, err)
	}
	return true, nil
}

// moveToDone persists the shortened pending list together with record
// appended to done. A record is never left on both lists: without a
// ListSaver the done list is restored when saving pending fails.
func (q *Queue) moveToDone(ctx context.Context, orderRef string, pending, done []ActionRecord, record ActionRecord) error {
	newDone := append(slices.Clone(done), record)

	if saver, ok := q.store.(ListSaver); ok {
		if err := saver.SaveLists(ctx, orderRef, pending, newDone); err != nil {
			return fmt.Errorf("actionqueue: save lists for %s: %w", orderRef, err)
		}
		return nil
	}

	if err := q.store.SaveDone(ctx, orderRef, newDone); err != nil {
		return fmt.Errorf("actionqueue: save done for %s: %w", orderRef, err)
	}
	if err := q.store.SavePending(ctx, orderRef, pending); err != nil {
		err = fmt.Errorf("actionqueue: save pending for %s: %w", orderRef, err)
		if rbErr := q.store.SaveDone(context.WithoutCancel(ctx), orderRef, done); rbErr != nil {
			return errors.Join(err, fmt.Errorf("actionqueue: restore done for %s: %w", orderRef, rbErr))
		}
		return err
	}
	return nil
}

// recordFailure bumps the failure counters of the head record and
// escalates when the retry ceiling is crossed.
func (q *Queue) recordFailure(ctx context.Context, orderRef string, pending []ActionRecord, cause error) error {
	failedAt := q.clock().UTC()
	record := &pending[0]
	record.FailedAt = &failedAt
	record.FailedCount++

	q.logger.Printf("actionqueue: attempt failed order=%s kind=%s failures=%d/%d: %v",
		orderRef, record.Kind, record.FailedCount, q.cfg.MaxRetries, cause)

	if err := q.store.SavePending(ctx, orderRef, pending); err != nil {
		return fmt.Errorf("actionqueue: save pending for %s: %w", orderRef, err)
	}

	// FailedCount only grows by one per failure, so equality marks the
	// single transition into the broken state.
	if record.FailedCount == q.cfg.MaxRetries {
		return q.handleMaxRetriesExceeded(ctx, orderRef, *record)
	}
	return nil
}

// handleMaxRetriesExceeded moves the order to the error status, alerts
// an operator and leaves an explanatory note. Notification failures are
// logged; storage failures are returned after all steps have been tried.
func (q *Queue) handleMaxRetriesExceeded(ctx context.Context, orderRef string, record ActionRecord) error {
	var errs []error

	if err := q.store.SetStatus(ctx, orderRef, q.cfg.ErrorStatus); err != nil {
		errs = append(errs, fmt.Errorf("actionqueue: set status for %s: %w", orderRef, err))
	}

	q.notify(ctx, orderRef, record)

	note := fmt.Sprintf(
		"Payment provider: %s failed %d times and will not be retried automatically. "+
			"Resolve the problem with the provider, then remove the action from the queue.",
		record.Kind.Label(), record.FailedCount)
	if err := q.store.AppendNote(ctx, orderRef, note); err != nil {
		errs = append(errs, fmt.Errorf("actionqueue: append note for %s: %w", orderRef, err))
	}

	q.logger.Printf("actionqueue: order=%s kind=%s broken after %d failures", orderRef, record.Kind, record.FailedCount)
	return errors.Join(errs...)
}

func (q *Queue) notify(ctx context.Context, orderRef string, record ActionRecord) {
	if q.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			q.logger.Printf("actionqueue: notifier panicked for order=%s: %v", orderRef, r)
		}
	}()
	// The alert is sent once, so it survives cancellation of ctx, but it
	// may not hold the order longer than a remote call.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.cfg.CallTimeout)
	defer cancel()
	if err := q.notifier.Notify(notifyCtx, orderRef, record); err != nil {
		q.logger.Printf("actionqueue: notify failed for order=%s kind=%s: %v", orderRef, record.Kind, err)
	}
}

// RemoveBroken deletes the broken pending action of the given kind. It
// never touches an action that can still be retried.
func (q *Queue) RemoveBroken(ctx context.Context, orderRef string, kind Kind) (bool, error) {
	ours, err := q.applicable(ctx, orderRef)
	if err != nil || !ours {
		return false, err
	}

	unlock, err := q.lock(ctx, orderRef)
	if err != nil {
		return false, err
	}
	defer unlock()

	pending, err := q.store.LoadPending(ctx, orderRef)
	if err != nil {
		return false, fmt.Errorf("actionqueue: load pending for %s: %w", orderRef, err)
	}

	idx := slices.IndexFunc(pending, func(r ActionRecord) bool {
		return r.Kind == kind && q.IsBroken(r)
	})
	if idx < 0 {
		return false, nil
	}
	removed := pending[idx]
	pending = slices.Delete(pending, idx, idx+1)

	if err := q.store.SavePending(ctx, orderRef, pending); err != nil {
		return false, fmt.Errorf("actionqueue: save pending for %s: %w", orderRef, err)
	}

	note := fmt.Sprintf("Payment provider: %s was removed from the queue by an operator after %d failed attempts.",
		removed.Kind.Label(), removed.FailedCount)
	if err := q.store.AppendNote(ctx, orderRef, note); err != nil {
		return true, fmt.Errorf("actionqueue: append note for %s: %w", orderRef, err)
	}

	if !q.hasBroken(pending) {
		if err := q.store.SetStatus(ctx, orderRef, q.cfg.ClearedStatus); err != nil {
			return true, fmt.Errorf("actionqueue: set status for %s: %w", orderRef, err)
		}
	}

	q.logger.Printf("actionqueue: removed broken order=%s kind=%s", orderRef, kind)
	return true, nil
}

// attempt performs one remote call bounded by CallTimeout. Cancelling
// ctx does not abort a call that already started.
func (q *Queue) attempt(ctx context.Context, orderRef string, record ActionRecord) (err error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.cfg.CallTimeout)
	defer cancel()
	callCtx = WithIdempotencyKey(callCtx, record.IdempotencyKey(orderRef))

	start := q.clock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("actionqueue: remote %s panicked: %v", record.Kind, r)
		}
		q.record(ctx, Attempt{
			OrderRef:    orderRef,
			Kind:        record.Kind,
			FailedCount: record.FailedCount,
			Err:         err,
			StartedAt:   start,
			Duration:    q.clock().Sub(start),
		})
	}()

	err = dispatch(callCtx, q.remote, orderRef, record)
	if err == nil && callCtx.Err() != nil {
		// The effector returned after its deadline; the outcome is unknown.
		err = callCtx.Err()
	}
	return err
}

func (q *Queue) record(ctx context.Context, attempt Attempt) {
	if q.recorder == nil {
		return
	}
	if err := q.recorder.RecordAttempt(context.WithoutCancel(ctx), attempt); err != nil {
		q.logger.Printf("actionqueue: record attempt for order=%s: %v", attempt.OrderRef, err)
	}
}

func (q *Queue) applicable(ctx context.Context, orderRef string) (bool, error) {
	method, err := q.store.PaymentMethod(ctx, orderRef)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("actionqueue: resolve order %s: %w", orderRef, err)
	}
	return method == q.cfg.PaymentMethod, nil
}

func (q *Queue) lock(ctx context.Context, orderRef string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, q.cfg.LockTimeout)
	defer cancel()
	unlock, err := q.locker.Lock(lockCtx, orderRef)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("actionqueue: %s: %w", orderRef, ErrOrderBusy)
		}
		return nil, fmt.Errorf("actionqueue: lock %s: %w", orderRef, err)
	}
	return unlock, nil
}

func (q *Queue) hasBroken(records []ActionRecord) bool {
	return slices.ContainsFunc(records, q.IsBroken)
}

func jitterKey(orderRef string, record ActionRecord) string {
	return orderRef + "/" + string(record.Kind) + "/" + strconv.Itoa(record.FailedCount)
}
