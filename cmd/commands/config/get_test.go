package config

import (
	"strings"
	"testing"

	"nathanbeddoewebdev/payq/internal/config"
)

func TestGet_NotSet(t *testing.T) {
	setupTestConfig(t)

	stdout, stderr := execConfig(t, "get", "notify-to")

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	if !strings.Contains(stdout, "not set") {
		t.Errorf("expected 'not set', got: %s", stdout)
	}
}

func TestGet_Set(t *testing.T) {
	path := setupTestConfig(t)
	cfg := &config.Config{SweepInterval: "2m"}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	stdout, _ := execConfig(t, "get", "sweep-interval")

	if strings.TrimSpace(stdout) != "2m" {
		t.Errorf("expected '2m', got: %s", stdout)
	}
}

func TestGet_EnvOverride(t *testing.T) {
	path := setupTestConfig(t)
	if err := (&config.Config{BatchSize: "10"}).SaveTo(path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}
	t.Setenv("PAYQ_BATCH_SIZE", "25")

	stdout, _ := execConfig(t, "get", "batch-size")
	if strings.TrimSpace(stdout) != "25" {
		t.Errorf("expected env value 25, got: %s", stdout)
	}

	stdout, _ = execConfig(t, "get", "batch-size", "--file")
	if strings.TrimSpace(stdout) != "10" {
		t.Errorf("expected file value 10, got: %s", stdout)
	}
}

func TestGet_ListsAllKeys(t *testing.T) {
	setupTestConfig(t)

	stdout, _ := execConfig(t, "get")

	for _, spec := range config.Keys {
		if !strings.Contains(stdout, spec.Name+":") {
			t.Errorf("expected key %s in listing, got: %s", spec.Name, stdout)
		}
	}
	if !strings.Contains(stdout, "(not set)") {
		t.Errorf("expected '(not set)' markers, got: %s", stdout)
	}
}

func TestGet_UnknownKey(t *testing.T) {
	setupTestConfig(t)

	_, stderr := execConfig(t, "get", "bogus-key")

	if !strings.Contains(stderr, "unknown configuration key") {
		t.Errorf("expected 'unknown configuration key' error, got: %s", stderr)
	}
}
