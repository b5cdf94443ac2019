package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"titaniatest/internal/logging"
)

// DefaultGrabTimeout bounds a single grab.
const DefaultGrabTimeout = 20 * time.Second

// RigState is the lifecycle of the rig as a whole.
type RigState int

const (
	RigInitial RigState = iota
	RigConnecting
	RigGrabbing
	RigFaulted
	RigStopped
)

func (s RigState) String() string {
	switch s {
	case RigInitial:
		return "initial"
	case RigConnecting:
		return "connecting"
	case RigGrabbing:
		return "grabbing"
	case RigFaulted:
		return "faulted"
	case RigStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// RigConfig describes both sensors and the settings applied on every connect.
type RigConfig struct {
	Left          Endpoint
	Right         Endpoint
	FrameRate     float64
	LeftExposure  float64
	RightExposure float64
	// MirrorLeft flips the left image on both axes; ignored for emulated drivers.
	MirrorLeft  bool
	GrabTimeout time.Duration
}

// SideResult is the outcome of one camera within an iteration.
type SideResult struct {
	Frame   *Frame
	Outcome Outcome
	// Status is the log status; empty until a classified fault sets it.
	Status string
	Err    error
}

// Capture is the product of Acquire for one iteration.
type Capture struct {
	Grabbing  bool
	Left      SideResult
	Right     SideResult
	Reconnect bool
}

// FinalizeOptions controls the persist-eligible half of an iteration.
type FinalizeOptions struct {
	PersistImages      bool
	CaptureTemperature bool
	// Persist stores a frame and returns the file name recorded in the log.
	Persist func(side Side, frame *Frame) (string, error)
}

// Finalized holds the loggable fields of a persist-eligible iteration.
type Finalized struct {
	LeftStatus  string
	RightStatus string
	LeftImage   string
	RightImage  string
	LeftTemp    string
	RightTemp   string
	Reconnect   bool
}

// Rig owns exactly two sources. It is not safe for concurrent use.
type Rig struct {
	Left  Source
	Right Source

	driver      Driver
	cfg         RigConfig
	state       RigState
	lastLeft    Outcome
	lastRight   Outcome
	reconnects  int
	logger      *slog.Logger
	grabTimeout time.Duration
}

// NewRig prepares a rig; call Connect before use.
func NewRig(driver Driver, cfg RigConfig, logger *slog.Logger) *Rig {
	timeout := cfg.GrabTimeout
	if timeout <= 0 {
		timeout = DefaultGrabTimeout
	}
	return &Rig{
		driver:      driver,
		cfg:         cfg,
		state:       RigInitial,
		logger:      logging.NewComponentLogger(logger, "camera"),
		grabTimeout: timeout,
	}
}

func (r *Rig) State() RigState { return r.state }

// LastOutcomes returns the most recent classification per side.
func (r *Rig) LastOutcomes() (left, right Outcome) { return r.lastLeft, r.lastRight }

// Reconnects counts reconnection attempts since the rig was created.
func (r *Rig) Reconnects() int { return r.reconnects }

// Connect establishes both sources. Old handles are closed and never reused.
func (r *Rig) Connect(ctx context.Context) error {
	if r.state == RigStopped {
		return errors.New("rig stopped")
	}
	r.state = RigConnecting
	r.closeSources()

	left, err := r.connectSide(ctx, SideLeft)
	if err != nil {
		r.state = RigFaulted
		return err
	}
	right, err := r.connectSide(ctx, SideRight)
	if err != nil {
		_ = left.Close()
		r.state = RigFaulted
		return err
	}
	r.Left, r.Right = left, right
	r.state = RigGrabbing
	r.logger.Info("cameras connected",
		logging.String("left", r.cfg.Left.String()),
		logging.String("right", r.cfg.Right.String()),
		logging.Bool("emulated", r.driver.Emulated()),
		logging.String(logging.FieldEventType, "camera_connected"),
	)
	return nil
}

// Reconnect is one FAULTED to CONNECTING attempt. A failure leaves the rig
// faulted so the next iteration reports it as not grabbing and tries again.
func (r *Rig) Reconnect(ctx context.Context) error {
	r.reconnects++
	err := r.Connect(ctx)
	if err != nil {
		logging.WarnWithContext(r.logger, "camera reconnect failed", "camera_reconnect_failed",
			logging.Error(err),
			logging.Int("attempt", r.reconnects),
			logging.String(logging.FieldErrorHint, "check the USB/GigE connection and power of both cameras"),
			logging.String(logging.FieldImpact, "frames are logged as not grabbing until the rig reconnects"),
		)
		return err
	}
	r.logger.Info("camera reconnect succeeded",
		logging.Int("attempt", r.reconnects),
		logging.String(logging.FieldEventType, "camera_reconnected"),
	)
	return nil
}

func (r *Rig) connectSide(ctx context.Context, side Side) (Source, error) {
	endpoint, settings := r.cfg.Left, r.settingsFor(side)
	if side == SideRight {
		endpoint = r.cfg.Right
	}
	src, err := r.driver.Connect(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("connect %s camera %s: %w", side, endpoint, err)
	}
	if err := src.Configure(settings); err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("configure %s camera %s: %w", side, endpoint, err)
	}
	return src, nil
}

func (r *Rig) settingsFor(side Side) Settings {
	settings := Settings{FrameRate: r.cfg.FrameRate, Exposure: r.cfg.LeftExposure}
	if side == SideRight {
		settings.Exposure = r.cfg.RightExposure
		return settings
	}
	if r.cfg.MirrorLeft && !r.driver.Emulated() {
		settings.MirrorX = true
		settings.MirrorY = true
	}
	return settings
}

// IsGrabbing reports whether both sides are grabbing. A missing source
// (after a failed reconnect) reads as not grabbing.
func (r *Rig) IsGrabbing() (bool, error) {
	if r.Left == nil || r.Right == nil {
		return false, nil
	}
	left, err := r.Left.IsGrabbing()
	if err != nil {
		return false, err
	}
	right, err := r.Right.IsGrabbing()
	if err != nil {
		return false, err
	}
	return left && right, nil
}

// Acquire checks the rig and grabs left then right. Each side is isolated:
// a fault on one never prevents the attempt on the other.
func (r *Rig) Acquire() Capture {
	var capture Capture
	grabbing, err := r.IsGrabbing()
	switch {
	case err != nil:
		outcome, status := StatusFor(err)
		if !outcome.Reconnect() {
			outcome = OutcomeDriverFault
			status = Status(outcome, err)
		}
		capture.Left = SideResult{Outcome: outcome, Status: status, Err: err}
		capture.Right = SideResult{Outcome: outcome, Status: status, Err: err}
		capture.Reconnect = true
	case !grabbing:
		capture.Left = SideResult{Outcome: OutcomeStructuralFault, Status: StatusNotGrabbing}
		capture.Right = SideResult{Outcome: OutcomeStructuralFault, Status: StatusNotGrabbing}
		capture.Reconnect = true
	default:
		capture.Grabbing = true
		capture.Left = r.grab(SideLeft, r.Left)
		capture.Right = r.grab(SideRight, r.Right)
		capture.Reconnect = capture.Left.Outcome.Reconnect() || capture.Right.Outcome.Reconnect()
	}

	r.lastLeft, r.lastRight = capture.Left.Outcome, capture.Right.Outcome
	if capture.Reconnect {
		r.state = RigFaulted
	}
	return capture
}

func (r *Rig) grab(side Side, src Source) SideResult {
	frame, err := src.Grab(r.grabTimeout)
	if err == nil {
		return SideResult{Frame: frame, Outcome: OutcomeOK}
	}
	outcome, status := StatusFor(err)
	logger := r.logger.With(logging.Camera(string(side)))
	if outcome == OutcomeTimeout {
		logging.WarnWithContext(logger, "camera grab timed out", "camera_timeout",
			logging.Error(err),
			logging.Duration("timeout", r.grabTimeout),
			logging.String(logging.FieldImpact, "frame recorded as timeout; no reconnect"),
		)
	} else {
		logging.WarnWithContext(logger, "camera grab failed", "camera_fault",
			logging.Error(err),
			logging.String("outcome", outcome.String()),
			logging.String(logging.FieldImpact, "rig will reconnect"),
		)
	}
	return SideResult{Frame: frame, Outcome: outcome, Status: status, Err: err}
}

// Finalize completes a persist-eligible iteration: success statuses, image
// persistence, and temperature. A status already set by a classified fault
// is kept.
func (r *Rig) Finalize(capture Capture, opts FinalizeOptions) Finalized {
	var out Finalized
	out.Reconnect = capture.Reconnect
	out.LeftStatus, out.LeftImage = r.finalizeSide(SideLeft, capture.Left, opts, &out.Reconnect)
	out.RightStatus, out.RightImage = r.finalizeSide(SideRight, capture.Right, opts, &out.Reconnect)

	if !opts.CaptureTemperature || !capture.Grabbing {
		return out
	}
	leftTemp, err := r.readTemperature(r.Left)
	var rightTemp float64
	if err == nil {
		rightTemp, err = r.readTemperature(r.Right)
	}
	if err != nil {
		outcome := Classify(err)
		if !outcome.Reconnect() {
			outcome = OutcomeDriverFault
		}
		status := Status(outcome, err)
		out.LeftStatus, out.RightStatus = status, status
		out.Reconnect = true
		r.state = RigFaulted
		logging.WarnWithContext(r.logger, "temperature read failed", "camera_temperature_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "both cameras marked faulted; rig will reconnect"),
		)
		return out
	}
	out.LeftTemp = fmt.Sprintf("%.3f", leftTemp)
	out.RightTemp = fmt.Sprintf("%.3f", rightTemp)
	return out
}

func (r *Rig) readTemperature(src Source) (float64, error) {
	if src == nil {
		return 0, wrapRuntime("read temperature", errors.New("camera not connected"))
	}
	return src.ReadTemperature()
}

func (r *Rig) finalizeSide(side Side, result SideResult, opts FinalizeOptions, reconnect *bool) (status, image string) {
	if result.Status != "" {
		return result.Status, ""
	}
	switch {
	case result.Frame == nil:
		return StatusNoImage, ""
	case !result.Frame.Succeeded:
		return StatusGrabFail, ""
	}
	if !opts.PersistImages || opts.Persist == nil {
		return StatusSuccess, ""
	}
	name, err := opts.Persist(side, result.Frame)
	if err != nil {
		outcome := Classify(err)
		if !outcome.Reconnect() {
			outcome = OutcomeDriverFault
		}
		*reconnect = true
		r.state = RigFaulted
		logging.WarnWithContext(r.logger.With(logging.Camera(string(side))), "image persistence failed", "image_save_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions of the output folder"),
			logging.String(logging.FieldImpact, "frame recorded as camera error; rig will reconnect"),
		)
		return Status(outcome, err), ""
	}
	return StatusSuccess, name
}

// Stop closes both sources and enters the terminal state.
func (r *Rig) Stop() {
	r.closeSources()
	r.state = RigStopped
}

func (r *Rig) closeSources() {
	for _, src := range []Source{r.Left, r.Right} {
		if src == nil {
			continue
		}
		if err := src.Close(); err != nil {
			r.logger.Debug("camera close failed", logging.Error(err))
		}
	}
	r.Left, r.Right = nil, nil
}
