// Package history keeps a SQLite record of burn-in runs and the faults,
// reconnects and hotplug events that happened during each one.
//
// The CSV logs under the output root remain the primary result; the
// history database lets operators compare runs without parsing them.
// Open applies the embedded schema on first use and refuses databases
// written by a different schema version.
package history
