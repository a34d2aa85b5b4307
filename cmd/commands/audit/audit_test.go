package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"nathanbeddoewebdev/payq/internal/actionqueue"
	"nathanbeddoewebdev/payq/internal/auditlog"
	"nathanbeddoewebdev/payq/internal/config"
	"nathanbeddoewebdev/payq/internal/database"
)

func setupTestRepo(t *testing.T) *auditlog.SQLiteRepository {
	t.Helper()
	dir := t.TempDir()
	config.SetPath(filepath.Join(dir, "config.json"))
	t.Cleanup(config.ResetPath)
	dbPath := filepath.Join(dir, "payq.db")
	database.SetPath(dbPath)
	t.Cleanup(database.ResetPath)

	repo, err := auditlog.OpenAt(dbPath)
	if err != nil {
		t.Fatalf("OpenAt: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func execAudit(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return outBuf.String(), err
}

func seedEntries(t *testing.T, repo *auditlog.SQLiteRepository) {
	t.Helper()
	now := time.Now().UTC()
	entries := []*auditlog.AuditEntry{
		{Timestamp: now.Add(-40 * 24 * time.Hour), Command: "payq order add", Trigger: auditlog.TriggerCLI, OrderRef: "100", Outcome: auditlog.OutcomeSuccess},
		{Timestamp: now.Add(-2 * time.Minute), Command: "payq queue enqueue", Trigger: auditlog.TriggerCLI, OrderRef: "100", Outcome: auditlog.OutcomeSuccess, DurationMs: 12},
		{Timestamp: now.Add(-time.Minute), Command: "payq config set", Trigger: auditlog.TriggerCLI, Outcome: auditlog.OutcomeSuccess},
	}
	for _, e := range entries {
		if err := repo.Save(e); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	ctx := auditlog.WithTrigger(context.Background(), auditlog.TriggerSweep)
	if err := repo.RecordAttempt(ctx, actionqueue.Attempt{
		OrderRef:  "100",
		Kind:      actionqueue.KindConfirm,
		StartedAt: now,
		Duration:  1500 * time.Millisecond,
		Err:       errors.New("provider returned 503"),
	}); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
}

func TestList_Table(t *testing.T) {
	repo := setupTestRepo(t)
	seedEntries(t, repo)

	out, err := execAudit(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"TRIGGER", "remote confirm", "sweep", "#1", "1.5s", "provider returned 503", "payq config set"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestList_Filters(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"order", []string{"--order", "100"}, []string{"remote confirm", "payq queue enqueue", "payq order add"}},
		{"attempts", []string{"--order", "100", "--attempts"}, []string{"remote confirm"}},
		{"command", []string{"--command", "payq config set"}, []string{"payq config set"}},
		{"limit", []string{"--limit", "2"}, []string{"remote confirm", "payq config set"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := setupTestRepo(t)
			seedEntries(t, repo)

			out, err := execAudit(t, append([]string{"list", "-o", "json"}, tt.args...)...)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			var entries []auditlog.AuditEntry
			if err := json.Unmarshal([]byte(out), &entries); err != nil {
				t.Fatalf("decode: %v\n%s", err, out)
			}
			var got []string
			for _, e := range entries {
				got = append(got, e.Command)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("commands mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestList_Errors(t *testing.T) {
	setupTestRepo(t)

	tests := []struct {
		args    []string
		wantErr string
	}{
		{[]string{"list", "--limit", "0"}, "limit must be greater than 0"},
		{[]string{"list", "--attempts"}, "--attempts requires --order"},
		{[]string{"list", "-o", "yaml"}, "unsupported output format"},
	}
	for _, tt := range tests {
		_, err := execAudit(t, tt.args...)
		if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("%v: err = %v, want %q", tt.args, err, tt.wantErr)
		}
	}
}

func TestList_Empty(t *testing.T) {
	setupTestRepo(t)

	out, err := execAudit(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "No audit entries found.") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestPrune(t *testing.T) {
	repo := setupTestRepo(t)
	seedEntries(t, repo)

	out, err := execAudit(t, "prune", "--older-than", "30d")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if !strings.Contains(out, "Removed 1 audit entry.") {
		t.Errorf("unexpected output: %s", out)
	}

	remaining, err := repo.List(10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 3 {
		t.Errorf("remaining = %d, want 3", len(remaining))
	}
}

func TestPrune_RequiresDuration(t *testing.T) {
	setupTestRepo(t)
	if _, err := execAudit(t, "prune"); err == nil || !strings.Contains(err.Error(), "--older-than is required") {
		t.Errorf("err = %v", err)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"30d", 30 * 24 * time.Hour, false},
		{"72h", 72 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"-1d", 0, true},
		{"-5h", 0, true},
		{"xd", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		got, err := parseDuration(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDuration(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseDuration(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{250, "250ms"},
		{1500, "1.5s"},
		{5 * 60 * 1000, "5m"},
		{2 * 60 * 60 * 1000, "2h"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.ms); got != tt.want {
			t.Errorf("formatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}
