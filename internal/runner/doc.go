// Package runner drives the burn-in loop.
//
// Each iteration checks the timeout, rotates the tiered logs, polls the
// external telemetry channel, acquires both cameras, and on iterations the
// save gate admits, finalizes the frame set and appends one CSV line to the
// run, day and hour logs. Camera and channel faults become status strings
// and a reconnect; only errors from the log writer end the run early.
package runner
