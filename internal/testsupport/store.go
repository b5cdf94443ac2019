package testsupport

import (
	"context"
	"testing"
	"time"

	"titaniatest/internal/config"
	"titaniatest/internal/history"
)

// MustOpenHistory opens the history store configured in cfg and registers
// cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// BeginRun records a started run for tests.
func BeginRun(t testing.TB, store *history.Store, runID string, started time.Time) {
	t.Helper()

	err := store.BeginRun(context.Background(), history.Run{
		RunID:      runID,
		StartedAt:  started,
		OutputDir:  "/tmp/output",
		Virtual:    true,
		CaptureFPS: 10,
		SaveFPS:    5,
	})
	if err != nil {
		t.Fatalf("store.BeginRun: %v", err)
	}
}
