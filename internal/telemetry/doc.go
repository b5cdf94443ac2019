// Package telemetry reads the auxiliary serial sensor that runs beside the
// cameras. It fails independently of the rig: faults become status strings
// and trigger one reconnect attempt per poll.
package telemetry
