package camera

import "errors"

// ErrTimeout reports that a grab exceeded its bound without delivering data.
var ErrTimeout = errors.New("grab timed out")

// RuntimeError wraps a device-level failure raised while the sensor was
// expected to be operational (I/O on a vanished device node, stream loss).
type RuntimeError struct {
	Op  string
	Err error
}

func (e *RuntimeError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// Outcome classifies the result of a camera operation.
type Outcome int

const (
	// OutcomeOK means the operation completed.
	OutcomeOK Outcome = iota
	// OutcomeTimeout is a transient stall; it never triggers reconnection.
	OutcomeTimeout
	// OutcomeDriverFault is a generic driver failure.
	OutcomeDriverFault
	// OutcomeRuntimeFault is a device-level failure during operation.
	OutcomeRuntimeFault
	// OutcomeStructuralFault means the rig is not grabbing at all.
	OutcomeStructuralFault
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeDriverFault:
		return "driver_fault"
	case OutcomeRuntimeFault:
		return "runtime_fault"
	case OutcomeStructuralFault:
		return "structural_fault"
	default:
		return "unknown"
	}
}

// Reconnect reports whether the outcome requires re-establishing the rig.
func (o Outcome) Reconnect() bool {
	return o != OutcomeOK && o != OutcomeTimeout
}

// Classify maps a driver error onto an Outcome.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	if errors.Is(err, ErrTimeout) {
		return OutcomeTimeout
	}
	var rt *RuntimeError
	if errors.As(err, &rt) {
		return OutcomeRuntimeFault
	}
	return OutcomeDriverFault
}

// Status strings written to the per-frame log.
const (
	StatusSuccess     = "1"
	StatusNotAttempt  = "0"
	StatusNotGrabbing = "NOT GRABBING"
	StatusGrabFail    = "GRAB FAIL"
	StatusNoImage     = "NO IMAGE DATA"

	timeoutPrefix      = "CAMERA TIMEOUT: "
	driverFaultPrefix  = "CAMERA ERROR. likely camera disconnected: "
	runtimeFaultPrefix = "CAMERA RUNTIME ERROR. likely camera disconnected: "
)

// Status renders the log status for an outcome and its cause.
func Status(outcome Outcome, err error) string {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	switch outcome {
	case OutcomeOK:
		return StatusSuccess
	case OutcomeTimeout:
		return timeoutPrefix + detail
	case OutcomeRuntimeFault:
		return runtimeFaultPrefix + detail
	case OutcomeStructuralFault:
		return StatusNotGrabbing
	default:
		return driverFaultPrefix + detail
	}
}

// StatusFor classifies err and renders its status in one step.
func StatusFor(err error) (Outcome, string) {
	outcome := Classify(err)
	return outcome, Status(outcome, err)
}

func wrapRuntime(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RuntimeError{Op: op, Err: err}
}
