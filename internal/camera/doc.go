// Package camera owns the two sensors of the Titania rig.
//
// A Driver connects Sources; EmulatedDriver synthesizes frames and
// temperatures, V4L2Driver talks to physical sensors. Rig pairs a left and a
// right Source, grabs them in a fixed order with independent failure, and
// turns every fault into an Outcome plus a log status string instead of
// propagating errors. Outcome.Reconnect is the single rule for deciding
// whether the rig must be rebuilt: timeouts never reconnect, driver, runtime
// and structural faults always do.
package camera
