package camera

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadMillidegrees(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "temp1_input")
	if err := os.WriteFile(path, []byte("45125\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := readMillidegrees(path)
	if err != nil {
		t.Fatalf("readMillidegrees: %v", err)
	}
	if got != 45.125 {
		t.Fatalf("got %v, want 45.125", got)
	}

	if _, err := readMillidegrees(filepath.Join(dir, "missing")); Classify(err) != OutcomeRuntimeFault {
		t.Fatalf("expected runtime fault for missing file, got %v", err)
	}

	if err := os.WriteFile(path, []byte("hot"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readMillidegrees(path); Classify(err) != OutcomeDriverFault {
		t.Fatalf("expected driver fault for bad content, got %v", err)
	}

	if _, err := readMillidegrees(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
