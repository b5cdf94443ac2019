// Package logging assembles the structured slog loggers used by the burn-in
// harness for its application log.
//
// It owns the console and JSON handlers, level and output plumbing, the run_id
// tagging handler, and retention pruning for per-run log files. The per-frame
// CSV results are not written through this package; see tieredlog.
//
// Prefer these constructors over hand-rolled slog setup so components emit
// records with the same keys (component, camera, event_type, error_hint).
package logging
