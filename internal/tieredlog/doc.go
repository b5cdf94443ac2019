// Package tieredlog writes the per-frame CSV results to three destinations
// at once: a run-lifetime log in the output root, a per-day log in a day
// folder, and a per-hour log nested in the day folder. Day and hour logs are
// created lazily when their calendar key changes. Every append opens,
// writes and closes the file, so a crash can damage at most one line.
package tieredlog
