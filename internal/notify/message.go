// Package notify alerts operators when an order action stops being
// retried automatically.
package notify

import (
	"fmt"
	"strings"
	"time"

	"nathanbeddoewebdev/payq/internal/actionqueue"
)

// Subject returns the alert subject line for a broken action.
func Subject(orderRef string, record actionqueue.ActionRecord) string {
	return fmt.Sprintf("[payq] Order %s: %s failed %d times",
		oneLine(orderRef), record.Kind.Label(), record.FailedCount)
}

// Body returns the plain-text alert body for a broken action.
func Body(orderRef string, record actionqueue.ActionRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The payment provider did not accept the %s for order %s.\n\n",
		strings.ToLower(record.Kind.Label()), orderRef)
	fmt.Fprintf(&b, "Action:        %s\n", record.Kind)
	fmt.Fprintf(&b, "Queued at:     %s\n", record.CreatedAt.UTC().Format(time.RFC3339))
	if record.FailedAt != nil {
		fmt.Fprintf(&b, "Last failure:  %s\n", record.FailedAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "Failures:      %d\n\n", record.FailedCount)
	b.WriteString("The order has been moved to the error status and will not be retried.\n")
	b.WriteString("Resolve the problem with the provider, then run:\n\n")
	fmt.Fprintf(&b, "  payq queue remove %s %s\n", orderRef, record.Kind)
	return b.String()
}

func oneLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
