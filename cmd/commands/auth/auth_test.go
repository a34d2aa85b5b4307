package auth

import (
	"bytes"
	"strings"
	"testing"

	"nathanbeddoewebdev/payq/internal/services/auth"

	"github.com/zalando/go-keyring"
)

// execAuth runs the auth command with the given stdin and args and returns
// stdout, stderr and the error from Execute.
func execAuth(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	keyring.MockInit()
	var outBuf, errBuf bytes.Buffer
	cmd := NewCommand()
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func TestLogin_WithTokenFlag(t *testing.T) {
	stdout, _, err := execAuth(t, "", "login", "Provider", "--token", " sk_live_1 ")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(stdout, "Saved provider secret") {
		t.Errorf("unexpected stdout: %s", stdout)
	}

	got, err := auth.DefaultStore().GetToken(auth.SecretProvider)
	if err != nil || got != "sk_live_1" {
		t.Errorf("stored token = (%q, %v)", got, err)
	}
}

func TestLogin_FromStdin(t *testing.T) {
	if _, _, err := execAuth(t, "hunter2\n", "login", "smtp"); err != nil {
		t.Fatalf("login: %v", err)
	}
	got, err := auth.DefaultStore().GetToken(auth.SecretSMTP)
	if err != nil || got != "hunter2" {
		t.Errorf("stored token = (%q, %v)", got, err)
	}
}

func TestLogin_Errors(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"unknown secret", "", []string{"login", "paypal", "--token", "x"}, "unknown secret"},
		{"empty value", "\n", []string{"login", "provider"}, "cannot be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, err := execAuth(t, tt.stdin, tt.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(stderr, tt.want) {
				t.Errorf("expected %q in stderr, got: %s", tt.want, stderr)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	if _, _, err := execAuth(t, "", "login", "provider", "--token", "k"); err != nil {
		t.Fatalf("login: %v", err)
	}

	var outBuf bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&outBuf)
	cmd.SetArgs([]string{"status"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("status: %v", err)
	}

	out := outBuf.String()
	if !strings.Contains(out, "provider: stored") {
		t.Errorf("expected provider stored, got: %s", out)
	}
	if !strings.Contains(out, "smtp: not stored") {
		t.Errorf("expected smtp not stored, got: %s", out)
	}
}

func TestLogout(t *testing.T) {
	if _, _, err := execAuth(t, "", "login", "provider", "--token", "k"); err != nil {
		t.Fatalf("login: %v", err)
	}

	var outBuf bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&outBuf)
	cmd.SetArgs([]string{"logout", "provider"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if !strings.Contains(outBuf.String(), "Removed provider secret") {
		t.Errorf("unexpected stdout: %s", outBuf.String())
	}
	if _, err := auth.DefaultStore().GetToken(auth.SecretProvider); err == nil {
		t.Error("expected the secret to be gone")
	}
}
