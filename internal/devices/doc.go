// Package devices finds the hardware a run talks to.
//
// Cameras are enumerated by crawling sysfs for video4linux nodes and serial
// ports through the serial enumerator. ResolvePair and ResolvePort turn the
// operator's selection into concrete endpoints before the run starts, and
// Monitor reports camera and serial hotplug events while it runs.
package devices
