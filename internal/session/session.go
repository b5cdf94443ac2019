package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"titaniatest/internal/camera"
	"titaniatest/internal/config"
	"titaniatest/internal/devices"
	"titaniatest/internal/history"
	"titaniatest/internal/logging"
	"titaniatest/internal/preflight"
	"titaniatest/internal/runlock"
	"titaniatest/internal/runner"
	"titaniatest/internal/stopkey"
	"titaniatest/internal/telemetry"
)

// ErrPreflight reports that a readiness check failed before connecting.
var ErrPreflight = errors.New("preflight failed")

// Options configures process-level behavior of a run. Zero values select the
// real hardware and the wall clock.
type Options struct {
	// Stdin is watched for the stop key when it is a terminal.
	Stdin     *os.File
	Inventory preflight.Inventory
	// Driver overrides the camera driver chosen from the config.
	Driver camera.Driver
	// Opener overrides the serial opener for the external channel.
	Opener         telemetry.Opener
	DisableHotplug bool
	Now            func() time.Time
	// Logger replaces the per-run application log when set.
	Logger *slog.Logger
}

// Outcome describes a completed run.
type Outcome struct {
	RunID       string
	SessionID   string
	RunLog      string
	AppLog      string
	SummaryPath string
	Result      runner.Result
}

// Run executes one burn-in run. Errors are returned only for failures before
// the acquisition loop starts; loop outcomes are reported in Outcome.Result.
func Run(ctx context.Context, cfg *config.Config, opts Options) (Outcome, error) {
	if cfg == nil {
		return Outcome{}, fmt.Errorf("config is required")
	}
	if err := cfg.ValidateRun(); err != nil {
		return Outcome{}, err
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	signalCtx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	runCtx, stopRun := context.WithCancel(signalCtx)
	defer stopRun()

	out := Outcome{
		RunID:     now().UTC().Format("20060102T150405.000Z"),
		SessionID: uuid.NewString(),
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return out, err
	}
	lock, err := runlock.Acquire(cfg.Test.OutputDir)
	if err != nil {
		return out, err
	}
	defer func() { _ = lock.Release() }()

	logger := opts.Logger
	if logger == nil {
		out.AppLog = filepath.Join(cfg.Logging.Dir, fmt.Sprintf("titaniatest-%s.log", out.RunID))
		logger, err = logging.NewFromConfig(cfg, out.AppLog)
		if err != nil {
			return out, fmt.Errorf("init logger: %w", err)
		}
		if err := ensureCurrentLogPointer(cfg.Logging.Dir, out.AppLog); err != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to update titaniatest.log link: %v\n", err)
		}
		// File times are wall clock, so pruning ignores the injected clock.
		if pruned := logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, time.Now(),
			logging.RetentionTarget{Dir: cfg.Logging.Dir, Pattern: "titaniatest-*.log", Exclude: []string{out.AppLog}},
		); pruned > 0 {
			logger.Info("old app logs pruned",
				logging.Int("count", pruned),
				logging.Int("retention_days", cfg.Logging.RetentionDays),
				logging.String(logging.FieldEventType, "log_pruned"),
			)
		}
	}
	logger = logging.WithRunIDHandler(logger, out.RunID)
	logger.Info("burn-in session starting",
		logging.String(logging.FieldEventType, "session_start"),
		logging.String("session_id", out.SessionID),
		logging.String("output_dir", cfg.Test.OutputDir),
		logging.Bool("virtual", cfg.Cameras.Virtual),
	)

	if err := runPreflight(runCtx, cfg, opts.Inventory, logger); err != nil {
		return out, err
	}

	pair, port, err := resolveDevices(runCtx, cfg, opts.Inventory)
	if err != nil {
		return out, err
	}

	driver := opts.Driver
	if driver == nil {
		driver = driverFor(cfg)
	}
	rig := camera.NewRig(driver, camera.RigConfig{
		Left:          pair.Left,
		Right:         pair.Right,
		FrameRate:     cfg.Test.CaptureFPS,
		LeftExposure:  cfg.Cameras.LeftExposure,
		RightExposure: cfg.Cameras.RightExposure,
		MirrorLeft:    true,
		GrabTimeout:   cfg.GrabTimeout(),
	}, logger)
	if err := rig.Connect(runCtx); err != nil {
		rig.Stop()
		logging.ErrorWithContext(logger, "camera connection failed", "camera_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check camera cables and identifiers; run `titaniatest devices`"),
			logging.String(logging.FieldImpact, "test not started"),
		)
		return out, fmt.Errorf("connect cameras: %w", err)
	}

	var channel *telemetry.Channel
	if cfg.External.Enabled {
		opener := opts.Opener
		if opener == nil {
			opener = telemetry.SerialOpener(cfg.External.BaudRate)
		}
		channel = telemetry.New(port, opener, logger)
		if err := channel.Open(); err != nil {
			logging.WarnWithContext(logger, "external serial not opened; will retry each iteration", "serial_open_failed",
				logging.String("port", port),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the serial cable and port permissions"),
				logging.String(logging.FieldImpact, "external columns read DISCONNECTED until the port opens"),
			)
		}
	}

	var hotplug <-chan devices.Event
	if !opts.DisableHotplug {
		monitor := devices.NewMonitor(logger)
		if err := monitor.Start(runCtx); err != nil {
			logger.Debug("hotplug monitor not started", logging.Error(err))
		} else {
			defer monitor.Stop()
			hotplug = monitor.Events()
		}
	}

	store := openHistory(cfg, logger)

	r, err := runner.New(runner.Config{
		OutputDir:          cfg.Test.OutputDir,
		SaveFPS:            cfg.Test.SaveFPS,
		Timeout:            cfg.Timeout(),
		PersistImages:      cfg.Test.SaveImages,
		CaptureTemperature: cfg.Test.CaptureTemperature,
	}, runner.Options{
		Rig:     rig,
		Channel: channel,
		Hotplug: hotplug,
		Now:     now,
		Logger:  logger,
	})
	if err != nil {
		rig.Stop()
		if channel != nil {
			_ = channel.Close()
		}
		_ = store.Close()
		return out, err
	}
	out.RunLog = r.RunLogPath()
	logger.Info(r.Header(), logging.String(logging.FieldEventType, "csv_header"))

	if store != nil {
		if err := store.BeginRun(runCtx, history.Run{
			RunID:        out.RunID,
			StartedAt:    r.Started(),
			OutputDir:    cfg.Test.OutputDir,
			RunLog:       out.RunLog,
			Virtual:      cfg.Cameras.Virtual,
			LeftCamera:   pair.Left.String(),
			RightCamera:  pair.Right.String(),
			ExternalPort: port,
			CaptureFPS:   cfg.Test.CaptureFPS,
			SaveFPS:      cfg.Test.SaveFPS,
		}); err != nil {
			logger.Warn("run not recorded in history",
				logging.Error(err),
				logging.String(logging.FieldEventType, "history_begin_failed"),
				logging.String(logging.FieldErrorHint, "check the history database path"),
				logging.String(logging.FieldImpact, "this run is missing from `titaniatest history`"),
			)
			_ = store.Close()
			store = nil
		}
	}
	if store != nil {
		defer store.Close()
		r.SetRecorder(history.NewRecorder(store, out.RunID))
	}

	logger.Info("press 'q' to stop the test", logging.String(logging.FieldEventType, "stop_key_hint"))
	watcher := stopkey.Watch(opts.Stdin, stopRun, logger)
	out.Result = r.Run(runCtx)
	if err := watcher.Restore(); err != nil {
		logger.Debug("terminal not restored", logging.Error(err))
	}

	if store != nil {
		finishCtx := context.WithoutCancel(ctx)
		if err := store.FinishRun(finishCtx, out.RunID, out.Result.Finished, string(out.Result.Reason), out.Result.ExitCode, countersFrom(out.Result.Stats)); err != nil {
			logger.Debug("history finish not recorded", logging.Error(err))
		}
	}

	summary := newSummary(out, cfg, pair, port)
	path, err := writeSummary(out.RunLog, summary)
	if err != nil {
		logger.Warn("run summary not written",
			logging.Error(err),
			logging.String(logging.FieldEventType, "summary_write_failed"),
			logging.String(logging.FieldErrorHint, "check free space in the output folder"),
			logging.String(logging.FieldImpact, "CSV logs are unaffected"),
		)
	} else {
		out.SummaryPath = path
	}

	logger.Info("burn-in session finished",
		logging.String(logging.FieldEventType, "session_finished"),
		logging.String("reason", string(out.Result.Reason)),
		logging.Int("exit_code", out.Result.ExitCode),
		logging.Int("persisted", out.Result.Stats.Persisted),
		logging.Duration("duration", out.Result.Finished.Sub(out.Result.Started)),
	)
	return out, nil
}

func runPreflight(ctx context.Context, cfg *config.Config, inv preflight.Inventory, logger *slog.Logger) error {
	failed := preflight.Failed(preflight.RunAll(ctx, cfg, inv))
	if len(failed) == 0 {
		return nil
	}
	for _, result := range failed {
		logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run `titaniatest preflight` for the full report"),
			logging.String(logging.FieldImpact, "test not started"),
		)
	}
	return fmt.Errorf("%w: %s: %s", ErrPreflight, failed[0].Name, failed[0].Detail)
}

func resolveDevices(ctx context.Context, cfg *config.Config, inv preflight.Inventory) (devices.Pair, string, error) {
	var cams []devices.Camera
	if !cfg.Cameras.Virtual {
		if inv.Cameras == nil {
			return devices.Pair{}, "", errors.New("no camera enumerator available")
		}
		var err error
		if cams, err = inv.Cameras.ListCameras(ctx); err != nil {
			return devices.Pair{}, "", fmt.Errorf("enumerate cameras: %w", err)
		}
	}
	pair, err := devices.ResolvePair(cams, devices.SelectionFromConfig(cfg))
	if err != nil {
		return devices.Pair{}, "", err
	}

	if !cfg.External.Enabled {
		return pair, "", nil
	}
	if inv.Ports == nil {
		return devices.Pair{}, "", errors.New("no serial enumerator available")
	}
	ports, err := inv.Ports.ListPorts()
	if err != nil {
		return devices.Pair{}, "", fmt.Errorf("enumerate serial ports: %w", err)
	}
	port, err := devices.ResolvePort(ports, cfg.External.Port)
	if err != nil {
		return devices.Pair{}, "", err
	}
	return pair, port, nil
}

func driverFor(cfg *config.Config) camera.Driver {
	if cfg.Cameras.Virtual {
		return camera.NewEmulatedDriver(cfg.Cameras.Width, cfg.Cameras.Height)
	}
	return &camera.V4L2Driver{
		Width:       cfg.Cameras.Width,
		Height:      cfg.Cameras.Height,
		PixelFormat: cfg.Cameras.PixelFormat,
	}
}

// openHistory opens the history store when enabled. A store that cannot be
// opened disables history for this run only.
func openHistory(cfg *config.Config, logger *slog.Logger) *history.Store {
	if !cfg.History.Enabled {
		return nil
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		logging.WarnWithContext(logger, "history database unavailable", "history_open_failed",
			logging.String("path", cfg.History.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete or move the history database to start a new one"),
			logging.String(logging.FieldImpact, "this run is missing from `titaniatest history`"),
		)
		return nil
	}
	return store
}

func countersFrom(stats runner.Stats) history.Counters {
	return history.Counters{
		Iterations:     stats.Iterations,
		Persisted:      stats.Persisted,
		CameraTimeouts: stats.CameraTimeouts,
		CameraFaults:   stats.CameraFaults,
		Reconnects:     stats.Reconnects,
		ChannelFaults:  stats.ChannelFaults,
		HotplugEvents:  stats.HotplugEvents,
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "titaniatest.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}
