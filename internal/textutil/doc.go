// Package textutil holds the small string transforms shared by the result
// writer, the telemetry reader and the CLI: CSV field sanitizing, tolerant
// decoding of serial bytes and display titles.
package textutil
