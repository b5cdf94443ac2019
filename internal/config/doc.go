// Package config loads, normalizes, and validates burn-in harness configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads optional TOML files. Command-line flags are layered on
// top by the CLI before Validate runs, so every invalid combination (for
// example a save rate above the capture rate) is rejected before any device or
// file I/O happens.
//
// Validation failures wrap ErrInvalid so callers can tell configuration
// errors apart from runtime faults.
package config
