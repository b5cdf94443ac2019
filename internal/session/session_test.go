package session

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"titaniatest/internal/config"
	"titaniatest/internal/devices"
	"titaniatest/internal/logging"
	"titaniatest/internal/preflight"
	"titaniatest/internal/runlock"
	"titaniatest/internal/runner"
	"titaniatest/internal/telemetry"
	"titaniatest/internal/testsupport"
)

const fakePort = "/dev/ttyFAKE0"

type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

type fakePorts []devices.Port

func (f fakePorts) ListPorts() ([]devices.Port, error) { return f, nil }

func newClock() *stepClock {
	return &stepClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local), step: 50 * time.Millisecond}
}

func testOptions(t *testing.T) (Options, *testsupport.FakeDriver) {
	t.Helper()
	driver, _, _ := testsupport.NewFakeDriver(config.EmulatedLeftSerial, config.EmulatedRightSerial)
	driver.IsEmulated = true
	return Options{
		Inventory:      preflight.Inventory{Ports: fakePorts{{Name: fakePort}}},
		Driver:         driver,
		Opener:         (&testsupport.FakeSerial{}).Opener(),
		DisableHotplug: true,
		Now:            newClock().Now,
		Logger:         logging.NewNop(),
	}, driver
}

func TestRunCompletesOnTimeout(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithExternal(fakePort))
	cfg.Test.TimeoutSeconds = 2
	cfg.History.Enabled = true
	opts, _ := testOptions(t)

	out, err := Run(context.Background(), cfg, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Result.Reason != runner.ReasonTimeout || out.Result.ExitCode != runner.ExitSuccess {
		t.Fatalf("unexpected result %+v", out.Result)
	}
	if out.Result.Stats.Persisted == 0 {
		t.Fatal("expected persisted lines")
	}

	lines := testsupport.ReadLines(t, out.RunLog)
	if len(lines) != out.Result.Stats.Persisted+1 {
		t.Fatalf("expected header plus %d lines, got %d", out.Result.Stats.Persisted, len(lines))
	}
	if !strings.HasSuffix(lines[1], ","+telemetry.StatusDisconnected) {
		t.Fatalf("expected disconnected external status, got %q", lines[1])
	}

	summary, err := ReadSummary(out.SummaryPath)
	if err != nil {
		t.Fatalf("ReadSummary: %v", err)
	}
	if summary.RunID != out.RunID || summary.Reason != "timeout" || summary.ExitCode != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Counters.Persisted != out.Result.Stats.Persisted {
		t.Fatalf("summary persisted = %d, want %d", summary.Counters.Persisted, out.Result.Stats.Persisted)
	}
	if summary.External.Port != fakePort {
		t.Fatalf("summary port = %q", summary.External.Port)
	}

	store := testsupport.MustOpenHistory(t, cfg)
	run, err := store.GetRun(context.Background(), out.RunID)
	if err != nil || run == nil {
		t.Fatalf("GetRun: %v, %v", run, err)
	}
	if !run.Finished() || run.ExitCode == nil || *run.ExitCode != 0 {
		t.Fatalf("expected finished run with exit 0, got %+v", run)
	}
	if run.Persisted != out.Result.Stats.Persisted {
		t.Fatalf("history persisted = %d, want %d", run.Persisted, out.Result.Stats.Persisted)
	}

	lock, err := runlock.Acquire(cfg.Test.OutputDir)
	if err != nil {
		t.Fatalf("lock not released: %v", err)
	}
	_ = lock.Release()
}

func TestRunCancelledBeforeConnect(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.History.Enabled = false
	opts, _ := testOptions(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// A cancelled context fails the camera connect before the loop starts.
	_, err := Run(ctx, cfg, opts)
	if err == nil {
		t.Fatal("expected connect failure for a cancelled context")
	}
	if files := testsupport.FindFiles(t, cfg.Test.OutputDir, "TitaniaTest_*.txt"); len(files) != 0 {
		t.Fatalf("expected no run log, got %v", files)
	}
}

func TestRunFailsPreflightWithoutPort(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithExternal("/dev/ttyMISSING"))
	cfg.History.Enabled = false
	opts, driver := testOptions(t)

	_, err := Run(context.Background(), cfg, opts)
	if !errors.Is(err, ErrPreflight) {
		t.Fatalf("expected ErrPreflight, got %v", err)
	}
	if driver.ConnectCount() != 0 {
		t.Fatalf("cameras must not be connected after a failed preflight, got %d connects", driver.ConnectCount())
	}
}

func TestRunConnectFailureIsFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.History.Enabled = false
	opts, driver := testOptions(t)
	driver.FailConnects = 1

	if _, err := Run(context.Background(), cfg, opts); err == nil {
		t.Fatal("expected connect failure")
	}
	if files := testsupport.FindFiles(t, cfg.Test.OutputDir, "TitaniaTest_*.txt"); len(files) != 0 {
		t.Fatalf("expected no run log, got %v", files)
	}
}

func TestRunRefusesLockedOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.History.Enabled = false
	opts, _ := testOptions(t)

	lock, err := runlock.Acquire(cfg.Test.OutputDir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	if _, err := Run(context.Background(), cfg, opts); !errors.Is(err, runlock.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRates(5, 10))
	opts, _ := testOptions(t)

	if _, err := Run(context.Background(), cfg, opts); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := dir + "/titaniatest-1.log"
	second := dir + "/titaniatest-2.log"
	testsupport.WriteFile(t, first, "one\n")
	testsupport.WriteFile(t, second, "two\n")

	for _, target := range []string{first, second} {
		if err := ensureCurrentLogPointer(dir, target); err != nil {
			t.Fatalf("ensureCurrentLogPointer: %v", err)
		}
	}
	data, err := os.ReadFile(dir + "/titaniatest.log")
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "two\n" {
		t.Fatalf("pointer resolves to %q", data)
	}
}

func TestSummaryPath(t *testing.T) {
	got := SummaryPath("/out/TitaniaTest_2026-03-01_10_00_00_000000.txt")
	if got != "/out/TitaniaTest_2026-03-01_10_00_00_000000.summary.yaml" {
		t.Fatalf("SummaryPath = %q", got)
	}
}
