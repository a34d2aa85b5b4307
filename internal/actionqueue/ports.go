package actionqueue

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrOrderNotFound is returned by an OrderStore when the order does not
	// exist. The queue treats it as "not ours".
	ErrOrderNotFound = errors.New("order not found")

	// ErrUnknownKind indicates an action kind outside the supported set.
	ErrUnknownKind = errors.New("unknown action kind")

	// ErrOrderBusy is returned by a Locker when another processor holds
	// the order and the wait budget ran out.
	ErrOrderBusy = errors.New("order is locked by another processor")
)

// OrderStore persists the per-order action lists, notes and status.
// Storage errors are returned as-is and propagate to the caller.
type OrderStore interface {
	// PaymentMethod returns the payment method of the order, or an error
	// wrapping ErrOrderNotFound.
	PaymentMethod(ctx context.Context, orderRef string) (string, error)

	LoadPending(ctx context.Context, orderRef string) ([]ActionRecord, error)
	SavePending(ctx context.Context, orderRef string, records []ActionRecord) error
	LoadDone(ctx context.Context, orderRef string) ([]ActionRecord, error)
	SaveDone(ctx context.Context, orderRef string, records []ActionRecord) error

	// AppendNote adds a human-readable note to the order history.
	AppendNote(ctx context.Context, orderRef, text string) error

	// SetStatus changes the order's lifecycle status.
	SetStatus(ctx context.Context, orderRef, status string) error

	// ListPendingOrders returns up to limit order refs using paymentMethod
	// with a non-empty pending list, ordered by ref, strictly after afterRef.
	ListPendingOrders(ctx context.Context, paymentMethod, afterRef string, limit int) ([]string, error)
}

// ListSaver is implemented by stores that can replace both action lists
// of an order in one transaction. The queue prefers it when moving a
// record from pending to done.
type ListSaver interface {
	SaveLists(ctx context.Context, orderRef string, pending, done []ActionRecord) error
}

// RemoteEffector performs actions against the payment provider. Any
// returned error counts as a failed attempt.
type RemoteEffector interface {
	Confirm(ctx context.Context, orderRef string, data map[string]string) error
	ReportShipped(ctx context.Context, orderRef string, data map[string]string) error
	CreateInvoice(ctx context.Context, orderRef string, data map[string]string) error
	Cancel(ctx context.Context, orderRef string, data map[string]string) error
	Refund(ctx context.Context, orderRef string, data map[string]string) error
	ReverseCancel(ctx context.Context, orderRef string, data map[string]string) error
}

// Notifier alerts an operator that an action hit the retry ceiling.
type Notifier interface {
	Notify(ctx context.Context, orderRef string, record ActionRecord) error
}

// Locker serializes read-modify-write cycles on a single order.
type Locker interface {
	// Lock blocks until the order is held or ctx is done. The returned
	// unlock func is safe to call more than once.
	Lock(ctx context.Context, orderRef string) (func(), error)
}

// Attempt describes one remote call made by the queue.
type Attempt struct {
	OrderRef    string
	Kind        Kind
	FailedCount int
	Err         error
	StartedAt   time.Time
	Duration    time.Duration
}

// AttemptRecorder receives every remote attempt. Recording failures are
// logged and otherwise ignored.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt Attempt) error
}

type idempotencyKeyCtx struct{}

// WithIdempotencyKey attaches the provider idempotency key for the
// action being attempted.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

// IdempotencyKeyFromContext returns the key set by WithIdempotencyKey.
func IdempotencyKeyFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	key, _ := ctx.Value(idempotencyKeyCtx{}).(string)
	return key
}

// dispatch routes a record to the effector method for its kind.
func dispatch(ctx context.Context, remote RemoteEffector, orderRef string, record ActionRecord) error {
	switch record.Kind {
	case KindConfirm:
		return remote.Confirm(ctx, orderRef, record.Data)
	case KindShipped:
		return remote.ReportShipped(ctx, orderRef, record.Data)
	case KindInvoice:
		return remote.CreateInvoice(ctx, orderRef, record.Data)
	case KindCancel:
		return remote.Cancel(ctx, orderRef, record.Data)
	case KindRefund:
		return remote.Refund(ctx, orderRef, record.Data)
	case KindReverseCancel:
		return remote.ReverseCancel(ctx, orderRef, record.Data)
	}
	return ErrUnknownKind
}
