package camera

import (
	"context"
	"image"
	"time"
)

// Side names one camera of the rig.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Suffix is the image filename suffix for the side.
func (s Side) Suffix() string {
	if s == SideRight {
		return "_r"
	}
	return "_l"
}

// Frame is the result of one grab.
type Frame struct {
	// Succeeded is false when the driver delivered a buffer flagged as bad.
	Succeeded bool
	Image     image.Image
	Sequence  uint64
	Timestamp time.Time
}

// Settings are applied at connect time and re-applied on every reconnection.
type Settings struct {
	FrameRate float64
	// Exposure in microseconds.
	Exposure float64
	MirrorX  bool
	MirrorY  bool
}

// Endpoint identifies one sensor to a Driver.
type Endpoint struct {
	Serial string
	// Device is the node a physical driver opens (for example /dev/video0).
	Device string
	// TemperaturePath is a sysfs millidegree file for physical sensors.
	TemperaturePath string
}

func (e Endpoint) String() string {
	switch {
	case e.Serial != "" && e.Device != "":
		return e.Serial + " (" + e.Device + ")"
	case e.Device != "":
		return e.Device
	default:
		return e.Serial
	}
}

// Source is one connected sensor. Every operation can fail independently.
type Source interface {
	Configure(Settings) error
	IsGrabbing() (bool, error)
	Grab(timeout time.Duration) (*Frame, error)
	ReadTemperature() (float64, error)
	Close() error
}

// Driver connects sources. Emulated and physical sensors satisfy the same
// contract; Emulated lets the rig skip settings that only make sense on
// hardware.
type Driver interface {
	Connect(ctx context.Context, endpoint Endpoint) (Source, error)
	Emulated() bool
}
