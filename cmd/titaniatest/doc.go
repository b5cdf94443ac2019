// Package main hosts the titaniatest CLI entrypoint and command graph.
//
// "run" executes a burn-in test against the two Titania cameras (or the
// emulated pair with --virtual) and exits 0 when the timeout is reached and
// 1 on a manual stop or an unexpected fault. "preflight", "devices" and
// "history" are read-only helpers; "config" scaffolds and validates the
// TOML configuration.
//
// Command-line flags override the configuration file. Keep this package
// declarative: the wiring lives in internal/session.
package main
