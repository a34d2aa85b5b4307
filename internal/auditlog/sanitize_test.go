package auditlog

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSanitizeArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "separate value",
			in:   []string{"auth", "login", "--api-key", "secret"},
			want: []string{"auth", "login", "--api-key", "<redacted>"},
		},
		{
			name: "inline value",
			in:   []string{"auth", "login", "--smtp-password=hunter2"},
			want: []string{"auth", "login", "--smtp-password=<redacted>"},
		},
		{
			name: "login token",
			in:   []string{"auth", "login", "provider", "--token", "sk_live_9"},
			want: []string{"auth", "login", "provider", "--token", "<redacted>"},
		},
		{
			name: "nothing sensitive",
			in:   []string{"queue", "remove", "100", "shipped"},
			want: []string{"queue", "remove", "100", "shipped"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, SanitizeArgs(tt.in)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSanitizeDetail(t *testing.T) {
	tests := []struct {
		in       string
		leak     string
		contains string
	}{
		{"request failed: Authorization: Bearer abc.def-123", "abc.def-123", "Bearer <redacted>"},
		{`invalid api_key="k-999" supplied`, "k-999", "api_key=\"<redacted>"},
		{"password: swordfish", "swordfish", "password: <redacted>"},
	}
	for _, tt := range tests {
		got := SanitizeDetail(tt.in)
		if strings.Contains(got, tt.leak) {
			t.Errorf("SanitizeDetail(%q) = %q leaks %q", tt.in, got, tt.leak)
		}
		if !strings.Contains(got, tt.contains) {
			t.Errorf("SanitizeDetail(%q) = %q, want it to contain %q", tt.in, got, tt.contains)
		}
	}

	long := strings.Repeat("x", 2*maxDetail)
	if got := SanitizeDetail(long); len(got) != maxDetail+3 {
		t.Errorf("expected truncation to %d chars, got %d", maxDetail+3, len(got))
	}
}

func TestWithMetadataMerges(t *testing.T) {
	ctx := WithTrigger(context.Background(), TriggerEvent)
	ctx = WithMetadata(ctx, Metadata{OrderRef: "100"})

	want := Metadata{Trigger: TriggerEvent, OrderRef: "100"}
	if diff := cmp.Diff(want, MetadataFromContext(ctx)); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
}
