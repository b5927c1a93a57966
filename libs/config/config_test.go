package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPortValidation(t *testing.T) {
	t.Setenv("AF_TEST_PORT", "70000")
	if _, err := Port("AF_TEST_PORT", "8083"); err == nil {
		t.Fatal("expected error for out of range port")
	}
	p, err := Port("AF_TEST_PORT_UNSET", "8083")
	if err != nil || p != "8083" {
		t.Fatalf("expected fallback 8083, got %q (%v)", p, err)
	}
}

func TestRequiredString(t *testing.T) {
	if _, err := RequiredString("AF_TEST_MISSING"); err == nil {
		t.Fatal("expected error for missing key")
	}
	t.Setenv("AF_TEST_DSN", "  postgres://x  ")
	got, err := RequiredString("AF_TEST_DSN")
	if err != nil || got != "postgres://x" {
		t.Fatalf("unexpected value %q (%v)", got, err)
	}
}

func TestDurationAcceptsBareIntegers(t *testing.T) {
	t.Setenv("AF_TEST_LEAD", "90")
	d, err := Duration("AF_TEST_LEAD", time.Minute, time.Hour)
	if err != nil || d != 90*time.Minute {
		t.Fatalf("expected 90m, got %s (%v)", d, err)
	}
	t.Setenv("AF_TEST_LEAD", "2h30m")
	d, err = Duration("AF_TEST_LEAD", time.Minute, time.Hour)
	if err != nil || d != 150*time.Minute {
		t.Fatalf("expected 2h30m, got %s (%v)", d, err)
	}
	t.Setenv("AF_TEST_LEAD", "soon")
	if _, err := Duration("AF_TEST_LEAD", time.Minute, time.Hour); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestListAndBool(t *testing.T) {
	t.Setenv("AF_TEST_BROKERS", "kafka-1:9092, ,kafka-2:9092")
	got := List("AF_TEST_BROKERS")
	if len(got) != 2 || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected list %v", got)
	}
	t.Setenv("AF_TEST_FLAG", "yes")
	if !Bool("AF_TEST_FLAG", false) {
		t.Fatal("expected true")
	}
	if Bool("AF_TEST_FLAG_UNSET", true) != true {
		t.Fatal("expected fallback")
	}
}

func TestLoadFileIsOverriddenByEnv(t *testing.T) {
	defer Reset()
	path := filepath.Join(t.TempDir(), "booking.yaml")
	if err := os.WriteFile(path, []byte("AF_TEST_GRANULARITY: 15\nAF_TEST_NAME: from-file\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Setenv("AF_TEST_NAME", "from-env")

	n, err := Int("AF_TEST_GRANULARITY", 30)
	if err != nil || n != 15 {
		t.Fatalf("expected 15 from file, got %d (%v)", n, err)
	}
	if got := String("AF_TEST_NAME", ""); got != "from-env" {
		t.Fatalf("expected env to win, got %q", got)
	}
}
