// Package preflight provides readiness checks for the paths and hardware a
// burn-in run depends on.
//
// The "preflight" command prints every check; the "run" command executes
// the same checks before connecting and refuses to start when one fails.
// Each check is gated by its config toggle: disabled features are skipped.
package preflight
