package camera

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, OutcomeOK},
		{"timeout", ErrTimeout, OutcomeTimeout},
		{"wrapped timeout", fmt.Errorf("left: %w", ErrTimeout), OutcomeTimeout},
		{"runtime", &RuntimeError{Op: "grab", Err: errors.New("gone")}, OutcomeRuntimeFault},
		{"wrapped runtime", fmt.Errorf("left: %w", wrapRuntime("dqbuf", errors.New("EIO"))), OutcomeRuntimeFault},
		{"generic", errors.New("boom"), OutcomeDriverFault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOutcomeReconnect(t *testing.T) {
	for outcome, want := range map[Outcome]bool{
		OutcomeOK:              false,
		OutcomeTimeout:         false,
		OutcomeDriverFault:     true,
		OutcomeRuntimeFault:    true,
		OutcomeStructuralFault: true,
	} {
		if got := outcome.Reconnect(); got != want {
			t.Errorf("%v.Reconnect() = %v, want %v", outcome, got, want)
		}
	}
}

func TestStatusStrings(t *testing.T) {
	cause := errors.New("no frame in 20000ms")
	tests := []struct {
		outcome Outcome
		want    string
	}{
		{OutcomeOK, "1"},
		{OutcomeTimeout, "CAMERA TIMEOUT: no frame in 20000ms"},
		{OutcomeDriverFault, "CAMERA ERROR. likely camera disconnected: no frame in 20000ms"},
		{OutcomeRuntimeFault, "CAMERA RUNTIME ERROR. likely camera disconnected: no frame in 20000ms"},
		{OutcomeStructuralFault, "NOT GRABBING"},
	}
	for _, tt := range tests {
		if got := Status(tt.outcome, cause); got != tt.want {
			t.Errorf("Status(%v) = %q, want %q", tt.outcome, got, tt.want)
		}
	}
}
