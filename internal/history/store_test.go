package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"titaniatest/internal/history"
	"titaniatest/internal/testsupport"
)

func TestRunLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	testsupport.BeginRun(t, store, "20260301T090000.000Z", started)

	run, err := store.GetRun(ctx, "20260301T090000.000Z")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run == nil || run.Finished() || !run.StartedAt.Equal(started) || !run.Virtual {
		t.Fatalf("unexpected run %#v", run)
	}

	finished := started.Add(90 * time.Minute)
	counters := history.Counters{Iterations: 54000, Persisted: 27000, CameraTimeouts: 2, Reconnects: 1}
	if err := store.FinishRun(ctx, run.RunID, finished, "timeout", 0, counters); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	run, err = store.GetRun(ctx, run.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if !run.Finished() || run.Reason != "timeout" || run.ExitCode == nil || *run.ExitCode != 0 {
		t.Fatalf("unexpected finished run %#v", run)
	}
	if run.Counters != counters {
		t.Fatalf("counters = %+v, want %+v", run.Counters, counters)
	}
	if run.Duration(time.Now()) != 90*time.Minute {
		t.Fatalf("unexpected duration %v", run.Duration(time.Now()))
	}
}

func TestFinishUnknownRun(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	err := store.FinishRun(context.Background(), "missing", time.Now(), "timeout", 0, history.Counters{})
	if err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestGetRunMissingReturnsNil(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	run, err := store.GetRun(context.Background(), "missing")
	if err != nil || run != nil {
		t.Fatalf("expected nil, nil; got %#v, %v", run, err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		testsupport.BeginRun(t, store, id, base.Add(time.Duration(i)*time.Hour))
	}

	runs, err := store.ListRuns(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].RunID != "c" || runs[1].RunID != "b" {
		t.Fatalf("unexpected order: %v", runIDs(runs))
	}

	all, err := store.ListRuns(context.Background(), 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected all runs, got %d err=%v", len(all), err)
	}
}

func TestRecorderEvents(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	testsupport.BeginRun(t, store, "run-1", base)

	rec := history.NewRecorder(store, "run-1")
	if err := rec.Record(ctx, base.Add(2*time.Second), "camera_reconnect", "rig", "ok"); err != nil {
		t.Fatal(err)
	}
	if err := rec.Record(ctx, base.Add(time.Second), "camera_timeout", "left", "CAMERA TIMEOUT: grab timed out"); err != nil {
		t.Fatal(err)
	}
	if err := rec.Record(ctx, base.Add(3*time.Second), "camera_timeout", "left", ""); err != nil {
		t.Fatal(err)
	}

	events, err := store.Events(ctx, "run-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 || events[0].Kind != "camera_timeout" || events[0].Source != "left" {
		t.Fatalf("unexpected events %#v", events)
	}
	if events[2].Detail != "" {
		t.Fatalf("expected empty detail, got %q", events[2].Detail)
	}

	counts, err := store.EventCounts(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if counts["camera_timeout"] != 2 || counts["camera_reconnect"] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestNilRecorderDiscards(t *testing.T) {
	rec := history.NewRecorder(nil, "x")
	if err := rec.Record(context.Background(), time.Now(), "k", "", ""); err != nil {
		t.Fatalf("nil recorder should discard, got %v", err)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	testsupport.BeginRun(t, store, "persisted", time.Now())
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	store, err = history.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	run, err := store.GetRun(context.Background(), "persisted")
	if err != nil || run == nil {
		t.Fatalf("expected persisted run, got %#v err=%v", run, err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := history.Open(" "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func runIDs(runs []*history.Run) []string {
	ids := make([]string, 0, len(runs))
	for _, r := range runs {
		ids = append(ids, r.RunID)
	}
	return ids
}
