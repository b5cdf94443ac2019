// Package session wires one burn-in run together: configuration checks,
// the output folder lock, logging, device resolution, the camera rig, the
// external channel, the hotplug monitor, run history and the acquisition
// loop. It writes a YAML summary next to the run log when the loop ends.
//
// Run returns an error only when the test never started. Once the loop has
// run, its outcome and exit code are reported through Outcome.Result.
package session
