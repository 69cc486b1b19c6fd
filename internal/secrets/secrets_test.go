package secrets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("RW_TEST_SECRET", "from-env")
	t.Setenv("RW_TEST_SECRET_FILE", path)

	got, err := Get("RW_TEST_SECRET", "fallback")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got != "from-file" {
		t.Errorf("value = %q, want file to win over env", got)
	}
}

func TestGetEnvAndDefault(t *testing.T) {
	t.Setenv("RW_TEST_SECRET", "from-env")
	if got, _ := Get("RW_TEST_SECRET", "fallback"); got != "from-env" {
		t.Errorf("value = %q, want from-env", got)
	}

	if got, _ := Get("RW_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("value = %q, want fallback", got)
	}
}

func TestGetMissingFile(t *testing.T) {
	t.Setenv("RW_TEST_SECRET_FILE", filepath.Join(t.TempDir(), "missing"))
	if _, err := Get("RW_TEST_SECRET", ""); err == nil {
		t.Error("expected error for unreadable secret file")
	}
	if got := GetOptional("RW_TEST_SECRET", "fallback"); got != "fallback" {
		t.Errorf("GetOptional = %q, want fallback on error", got)
	}
}
