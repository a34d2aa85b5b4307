package actionqueue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"nathanbeddoewebdev/payq/internal/retry"
)

// Kind identifies the remote effect an action performs.
type Kind string

const (
	KindConfirm       Kind = "confirm"
	KindShipped       Kind = "shipped"
	KindInvoice       Kind = "invoice"
	KindCancel        Kind = "cancel"
	KindRefund        Kind = "refund"
	KindReverseCancel Kind = "reverse_cancel"
)

// Kinds lists every supported action kind in their natural dependency order.
var Kinds = []Kind{
	KindConfirm,
	KindShipped,
	KindInvoice,
	KindCancel,
	KindRefund,
	KindReverseCancel,
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Label returns the human-readable name used in order notes.
func (k Kind) Label() string {
	switch k {
	case KindConfirm:
		return "Order confirmation"
	case KindShipped:
		return "Shipment report"
	case KindInvoice:
		return "Invoice"
	case KindCancel:
		return "Cancellation"
	case KindRefund:
		return "Refund"
	case KindReverseCancel:
		return "Cancellation reversal"
	}
	return string(k)
}

// ParseKind parses a kind name. Hyphens are accepted in place of
// underscores so "reverse-cancel" works on the command line.
func ParseKind(s string) (Kind, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	k := Kind(normalized)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// ActionRecord is one queued remote action for an order.
type ActionRecord struct {
	// Kind is the remote effect to perform.
	Kind Kind `json:"kind"`

	// CreatedAt is set at enqueue time and never changes.
	CreatedAt time.Time `json:"created_at"`

	// FailedAt is the time of the most recent failed attempt. Nil when the
	// action has never failed.
	FailedAt *time.Time `json:"failed_at,omitempty"`

	// FailedCount is the number of consecutive failed attempts.
	FailedCount int `json:"failed_count"`

	// Data holds auxiliary parameters (e.g. a tracking number).
	Data map[string]string `json:"data,omitempty"`

	// ProcessedAt is set when the action moves to the done list.
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// IsBroken reports whether the record has reached the retry ceiling.
func (r ActionRecord) IsBroken(maxRetries int) bool {
	return r.FailedCount >= maxRetries
}

// Eligible reports whether the record may be attempted at now under a
// plain interval gate without jitter.
func (r ActionRecord) Eligible(now time.Time, interval time.Duration) bool {
	return retry.Policy{Interval: interval}.Eligible(r.FailedAt, now, "")
}

// idempotencyNamespace scopes the UUIDv5 keys handed to the provider.
var idempotencyNamespace = uuid.MustParse("9f0c2d4e-6b1a-5c3e-8d7f-2a4b6c8e0f13")

// IdempotencyKey returns a stable key for this action on orderRef. Every
// attempt of the same record yields the same key; a later record of the
// same kind yields a different one because CreatedAt differs.
func (r ActionRecord) IdempotencyKey(orderRef string) string {
	name := orderRef + "/" + string(r.Kind) + "/" + r.CreatedAt.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(idempotencyNamespace, []byte(name)).String()
}

// EncodeRecords serializes a pending or done list for storage.
func EncodeRecords(records []ActionRecord) ([]byte, error) {
	if records == nil {
		records = []ActionRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("actionqueue: failed to encode records: %w", err)
	}
	return data, nil
}

// DecodeRecords parses a stored list. Empty input is an empty list.
func DecodeRecords(data []byte) ([]ActionRecord, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var records []ActionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("actionqueue: failed to decode records: %w", err)
	}
	return records, nil
}

func cloneData(data map[string]string) map[string]string {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
