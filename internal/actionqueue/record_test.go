package actionqueue

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"confirm", KindConfirm, false},
		{"SHIPPED", KindShipped, false},
		{" invoice ", KindInvoice, false},
		{"reverse-cancel", KindReverseCancel, false},
		{"reverse_cancel", KindReverseCancel, false},
		{"teleport", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownKind) {
					t.Fatalf("expected ErrUnknownKind, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestKindLabel(t *testing.T) {
	for _, k := range Kinds {
		if k.Label() == string(k) {
			t.Errorf("kind %q has no label", k)
		}
	}
}

func TestIsBroken(t *testing.T) {
	tests := []struct {
		count int
		want  bool
	}{
		{0, false},
		{2, false},
		{3, true},
		{4, true},
	}
	for _, tt := range tests {
		r := ActionRecord{FailedCount: tt.count}
		if got := r.IsBroken(3); got != tt.want {
			t.Errorf("IsBroken(count=%d) = %v, want %v", tt.count, got, tt.want)
		}
	}
}

func TestIdempotencyKey(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := ActionRecord{Kind: KindRefund, CreatedAt: created}

	failedAt := created.Add(time.Minute)
	retried := a
	retried.FailedCount = 2
	retried.FailedAt = &failedAt
	if a.IdempotencyKey("100") != retried.IdempotencyKey("100") {
		t.Error("key changed across retries")
	}

	later := ActionRecord{Kind: KindRefund, CreatedAt: created.Add(time.Hour)}
	if a.IdempotencyKey("100") == later.IdempotencyKey("100") {
		t.Error("later record of the same kind must get a new key")
	}
	if a.IdempotencyKey("100") == a.IdempotencyKey("101") {
		t.Error("different orders must get different keys")
	}
}

func TestEncodeDecodeRecords(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	failedAt := created.Add(10 * time.Minute)
	records := []ActionRecord{
		{Kind: KindConfirm, CreatedAt: created},
		{Kind: KindShipped, CreatedAt: created, FailedAt: &failedAt, FailedCount: 1, Data: map[string]string{"tracking_number": "TN1"}},
	}

	data, err := EncodeRecords(records)
	if err != nil {
		t.Fatalf("EncodeRecords: %v", err)
	}
	got, err := DecodeRecords(data)
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if diff := cmp.Diff(records, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeRecords_NilIsEmptyList(t *testing.T) {
	data, err := EncodeRecords(nil)
	if err != nil {
		t.Fatalf("EncodeRecords: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("EncodeRecords(nil) = %s, want []", data)
	}
}

func TestDecodeRecords_Invalid(t *testing.T) {
	if _, err := DecodeRecords([]byte("{not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	got, err := DecodeRecords(nil)
	if err != nil || got != nil {
		t.Errorf("DecodeRecords(nil) = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestEligible(t *testing.T) {
	failedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fresh := ActionRecord{Kind: KindConfirm}
	failed := ActionRecord{Kind: KindConfirm, FailedAt: &failedAt, FailedCount: 1}

	if !fresh.Eligible(failedAt, 10*time.Minute) {
		t.Error("a record that never failed must be eligible")
	}
	if failed.Eligible(failedAt.Add(9*time.Minute), 10*time.Minute) {
		t.Error("expected ineligible inside the interval")
	}
	if !failed.Eligible(failedAt.Add(10*time.Minute), 10*time.Minute) {
		t.Error("expected eligible at the interval boundary")
	}
}
