package stopkey

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestListen(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		stopped bool
	}{
		{name: "lowercase", input: "abcq", stopped: true},
		{name: "uppercase", input: "Q", stopped: true},
		{name: "ctrl c", input: "\x03", stopped: true},
		{name: "no key", input: "hello\n", stopped: false},
		{name: "empty", input: "", stopped: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			got := Listen(strings.NewReader(tt.input), func() { calls++ })
			if got != tt.stopped {
				t.Fatalf("Listen = %v, want %v", got, tt.stopped)
			}
			if tt.stopped && calls != 1 {
				t.Fatalf("expected one stop call, got %d", calls)
			}
			if !tt.stopped && calls != 0 {
				t.Fatalf("expected no stop call, got %d", calls)
			}
		})
	}
}

func TestWatchNonTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "stdin"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := Watch(f, func() { t.Fatal("stop must not be called") }, nil)
	if err := w.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if err := Watch(nil, func() {}, nil).Restore(); err != nil {
		t.Fatalf("Restore nil input: %v", err)
	}
}
