package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"nathanbeddoewebdev/payq/internal/actionqueue"
)

// Writer writes one alert line per broken action. It is the fallback
// when SMTP is not configured.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a Writer that writes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Notify writes the alert line.
func (n *Writer) Notify(_ context.Context, orderRef string, record actionqueue.ActionRecord) error {
	lastFailure := "-"
	if record.FailedAt != nil {
		lastFailure = record.FailedAt.UTC().Format(time.RFC3339)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := fmt.Fprintf(n.w, "ALERT order=%s kind=%s failures=%d last_failure=%s: %s\n",
		oneLine(orderRef), record.Kind, record.FailedCount, lastFailure, Subject(orderRef, record))
	return err
}

// Multi fans a notification out to several notifiers. Every notifier is
// called; their errors are joined.
type Multi []actionqueue.Notifier

// Notify calls every notifier.
func (m Multi) Notify(ctx context.Context, orderRef string, record actionqueue.ActionRecord) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, orderRef, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ actionqueue.Notifier = (*Writer)(nil)
	_ actionqueue.Notifier = Multi(nil)
)
