package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"titaniatest/internal/camera"
	"titaniatest/internal/devices"
	"titaniatest/internal/logging"
	"titaniatest/internal/scheduler"
	"titaniatest/internal/telemetry"
	"titaniatest/internal/tieredlog"
)

// Process exit codes.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Reason names why a run ended.
type Reason string

const (
	ReasonTimeout    Reason = "timeout"
	ReasonManualStop Reason = "manual_stop"
	ReasonUnexpected Reason = "unexpected_fault"
)

// ExitCode maps a reason to the process exit code. Manual stop exits with
// failure by convention because the run did not reach its planned end.
func (r Reason) ExitCode() int {
	if r == ReasonTimeout {
		return ExitSuccess
	}
	return ExitFailure
}

// Event kinds passed to the Recorder.
const (
	EventCameraTimeout   = "camera_timeout"
	EventCameraFault     = "camera_fault"
	EventReconnect       = "camera_reconnect"
	EventReconnectFailed = "camera_reconnect_failed"
	EventChannelFault    = "serial_fault"
	EventHotplug         = "hotplug"
	EventUnexpected      = "unexpected_fault"
)

// alertEvery is how many failed reconnects pass between offline alerts.
const alertEvery = 10

// Recorder stores notable events outside the CSV logs.
type Recorder interface {
	Record(ctx context.Context, at time.Time, kind, source, detail string) error
}

// Config holds the loop settings.
type Config struct {
	OutputDir          string
	SaveFPS            float64
	Timeout            time.Duration
	PersistImages      bool
	CaptureTemperature bool
}

// Options are the collaborators of a run. Rig is required and must already
// be connected. A nil Channel disables the external telemetry columns.
type Options struct {
	Rig      *camera.Rig
	Channel  *telemetry.Channel
	Images   ImageStore
	Recorder Recorder
	Hotplug  <-chan devices.Event
	Now      func() time.Time
	Logger   *slog.Logger
}

// Stats counts what happened during a run.
type Stats struct {
	Iterations        int
	Persisted         int
	CameraTimeouts    int
	CameraFaults      int
	Reconnects        int
	ReconnectFailures int
	ChannelFaults     int
	HotplugEvents     int
}

// Result is the outcome of Run.
type Result struct {
	ExitCode int
	Reason   Reason
	// Err is set for unexpected faults.
	Err      error
	Started  time.Time
	Finished time.Time
	Stats    Stats
}

// Runner drives the acquisition loop. It is single threaded; the only
// concurrency is the hotplug channel, which is drained without blocking.
type Runner struct {
	cfg      Config
	rig      *camera.Rig
	channel  *telemetry.Channel
	images   ImageStore
	recorder Recorder
	hotplug  <-chan devices.Event
	now      func() time.Time
	logger   *slog.Logger

	writer  *tieredlog.Writer
	gate    *scheduler.Gate
	started time.Time
	stats   Stats
}

// New prepares a run and creates the run log with its header.
func New(cfg Config, opts Options) (*Runner, error) {
	if opts.Rig == nil {
		return nil, errors.New("runner requires a camera rig")
	}
	if cfg.SaveFPS <= 0 {
		return nil, fmt.Errorf("save fps must be positive, got %g", cfg.SaveFPS)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	images := opts.Images
	if images == nil {
		images = NewPNGStore()
	}

	started := now()
	columns := tieredlog.Columns{
		Images:      cfg.PersistImages,
		Temperature: cfg.CaptureTemperature,
		External:    opts.Channel != nil,
	}
	writer, err := tieredlog.New(cfg.OutputDir, columns, started)
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg:      cfg,
		rig:      opts.Rig,
		channel:  opts.Channel,
		images:   images,
		recorder: opts.Recorder,
		hotplug:  opts.Hotplug,
		now:      now,
		logger:   logging.NewComponentLogger(opts.Logger, "runner"),
		writer:   writer,
		gate:     scheduler.NewGate(cfg.SaveFPS, started),
		started:  started,
	}, nil
}

// SetRecorder replaces the event recorder. Call it before Run.
func (r *Runner) SetRecorder(recorder Recorder) { r.recorder = recorder }

// Started is the run start time that also names the run log.
func (r *Runner) Started() time.Time { return r.started }

// RunLogPath returns the run-lifetime CSV log.
func (r *Runner) RunLogPath() string { return r.writer.RunLogPath() }

// Header returns the CSV header of this run.
func (r *Runner) Header() string { return r.writer.Columns().Header() }

// Run loops until the timeout elapses, ctx is cancelled, or an unexpected
// fault occurs. Cancellation is observed once per iteration, after the
// iteration's log line (if any) has been written.
func (r *Runner) Run(ctx context.Context) Result {
	r.logger.Info("burn-in test started",
		logging.String("run_log", r.RunLogPath()),
		logging.Float64("save_fps", r.cfg.SaveFPS),
		logging.Duration("timeout", r.cfg.Timeout),
		logging.String(logging.FieldEventType, "run_started"),
	)

	for {
		now := r.now()
		if r.cfg.Timeout > 0 && now.Sub(r.started) > r.cfg.Timeout {
			r.logger.Info("test timeout reached",
				logging.Duration("elapsed", now.Sub(r.started)),
				logging.String(logging.FieldEventType, "run_timeout"),
			)
			return r.finish(ReasonTimeout, nil)
		}

		r.stats.Iterations++
		record := NewFrameRecord(now)
		if err := r.iterate(ctx, now, &record); err != nil {
			return r.unexpected(ctx, now, record, err)
		}
		r.drainHotplug(ctx)

		if ctx.Err() != nil {
			r.logger.Info("test manually stopped",
				logging.String(logging.FieldEventType, "run_manual_stop"),
			)
			return r.finish(ReasonManualStop, nil)
		}
	}
}

func (r *Runner) iterate(ctx context.Context, now time.Time, record *FrameRecord) error {
	folders, rotated, err := r.writer.Rotate(now)
	if err != nil {
		return fmt.Errorf("rotate logs: %w", err)
	}
	if rotated {
		r.logger.Debug("log destinations rotated",
			logging.String("day_folder", folders.Day),
			logging.String("hour_folder", folders.Hour),
		)
	}

	var reading telemetry.Reading
	if r.channel != nil {
		reading = r.channel.Poll()
		if !reading.OK {
			r.stats.ChannelFaults++
			r.record(ctx, now, EventChannelFault, r.channel.Name(), reading.Status)
		}
	}

	capture := r.rig.Acquire()
	r.noteCapture(ctx, now, capture)

	reconnect := capture.Reconnect
	if capture.Grabbing && r.gate.Ready(now) {
		finalized := r.rig.Finalize(capture, camera.FinalizeOptions{
			PersistImages:      r.cfg.PersistImages,
			CaptureTemperature: r.cfg.CaptureTemperature,
			Persist: func(side camera.Side, frame *camera.Frame) (string, error) {
				name := record.ImageName(side)
				if err := r.images.Save(filepath.Join(folders.Hour, name), frame.Image); err != nil {
					return "", err
				}
				return name, nil
			},
		})
		reconnect = finalized.Reconnect

		record.LeftStatus, record.RightStatus = finalized.LeftStatus, finalized.RightStatus
		record.LeftImage, record.RightImage = finalized.LeftImage, finalized.RightImage
		record.LeftTemp, record.RightTemp = finalized.LeftTemp, finalized.RightTemp
		if r.channel != nil {
			record.ExternalStatus = reading.Status
			if reading.OK {
				record.ExternalData = reading.Data
			}
		}

		line, err := r.writer.Write(record.Line())
		if err != nil {
			return err
		}
		r.stats.Persisted++
		r.logger.Info(line,
			logging.Int(logging.FieldIteration, r.stats.Iterations),
			logging.String(logging.FieldEventType, "frame_persisted"),
		)
	}

	if reconnect {
		r.reconnect(ctx, now)
	}
	return nil
}

func (r *Runner) noteCapture(ctx context.Context, now time.Time, capture camera.Capture) {
	if !capture.Grabbing {
		r.stats.CameraFaults++
		status := capture.Left.Status
		logging.WarnWithContext(r.logger, "camera rig not grabbing", EventCameraFault,
			logging.String("status", status),
			logging.Int(logging.FieldIteration, r.stats.Iterations),
			logging.String(logging.FieldImpact, "both cameras recorded as faulted; rig will reconnect"),
		)
		r.record(ctx, now, EventCameraFault, "rig", status)
		return
	}
	for _, side := range []struct {
		name   camera.Side
		result camera.SideResult
	}{{camera.SideLeft, capture.Left}, {camera.SideRight, capture.Right}} {
		switch {
		case side.result.Outcome == camera.OutcomeTimeout:
			r.stats.CameraTimeouts++
			r.record(ctx, now, EventCameraTimeout, string(side.name), side.result.Status)
		case side.result.Outcome.Reconnect():
			r.stats.CameraFaults++
			r.record(ctx, now, EventCameraFault, string(side.name), side.result.Status)
		}
	}
}

func (r *Runner) reconnect(ctx context.Context, now time.Time) {
	r.stats.Reconnects++
	if err := r.rig.Reconnect(ctx); err != nil {
		r.stats.ReconnectFailures++
		if r.stats.ReconnectFailures%alertEvery == 0 {
			r.logger.Warn("camera rig still disconnected",
				logging.Int("failed_reconnects", r.stats.ReconnectFailures),
				logging.Alert("cameras_offline"),
				logging.String(logging.FieldEventType, "camera_offline"),
				logging.String(logging.FieldErrorHint, "check power and cabling of both cameras"),
				logging.String(logging.FieldImpact, "no frames are being recorded"),
			)
		}
		r.record(ctx, now, EventReconnectFailed, "rig", err.Error())
		return
	}
	r.record(ctx, now, EventReconnect, "rig", "")
}

func (r *Runner) drainHotplug(ctx context.Context) {
	if r.hotplug == nil {
		return
	}
	for {
		select {
		case event, ok := <-r.hotplug:
			if !ok {
				r.hotplug = nil
				return
			}
			r.stats.HotplugEvents++
			r.logger.Info("device hotplug event",
				logging.String("action", event.Action),
				logging.String("subsystem", event.Subsystem),
				logging.String("device", event.Device),
				logging.String(logging.FieldEventType, "device_hotplug"),
			)
			r.record(ctx, event.Time, EventHotplug, event.Device, event.Action+" "+event.Subsystem)
		default:
			return
		}
	}
}

// unexpected writes the record as it stood when the fault occurred and ends
// the run.
func (r *Runner) unexpected(ctx context.Context, now time.Time, record FrameRecord, cause error) Result {
	var skip []tieredlog.Rotation
	if partial := (*tieredlog.PartialWriteError)(nil); errors.As(cause, &partial) {
		skip = partial.Written
	}
	if _, err := r.writer.WriteBestEffort(record.Line(), skip...); err != nil {
		r.logger.Debug("best-effort log write failed", logging.Error(err))
	}
	logging.ErrorWithContext(r.logger, "unexpected fault during test", EventUnexpected,
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "check free space and permissions of the output folder"),
		logging.String(logging.FieldImpact, "test stopped"),
	)
	r.record(ctx, now, EventUnexpected, "runner", cause.Error())
	return r.finish(ReasonUnexpected, cause)
}

func (r *Runner) finish(reason Reason, err error) Result {
	r.rig.Stop()
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.logger.Debug("serial close failed", logging.Error(err))
		}
	}
	return Result{
		ExitCode: reason.ExitCode(),
		Reason:   reason,
		Err:      err,
		Started:  r.started,
		Finished: r.now(),
		Stats:    r.stats,
	}
}

func (r *Runner) record(ctx context.Context, at time.Time, kind, source, detail string) {
	if r.recorder == nil {
		return
	}
	// Recording must not be cut short by a manual stop.
	if err := r.recorder.Record(context.WithoutCancel(ctx), at, kind, source, detail); err != nil {
		r.logger.Debug("event not recorded",
			logging.String("kind", kind),
			logging.Error(err),
		)
	}
}
