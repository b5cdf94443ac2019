package devices

import (
	"errors"
	"fmt"
	"strings"

	"titaniatest/internal/camera"
	"titaniatest/internal/config"
)

// ErrNotFound reports a requested device that is not connected.
var ErrNotFound = errors.New("device not found")

// Selection is what the operator asked for.
type Selection struct {
	Virtual       bool
	LeftSerial    string
	RightSerial   string
	TitaniaSerial string
	// Temperature paths are passed through to the physical endpoints.
	LeftTemperaturePath  string
	RightTemperaturePath string
}

// SelectionFromConfig builds a Selection from the cameras section.
func SelectionFromConfig(cfg *config.Config) Selection {
	return Selection{
		Virtual:              cfg.Cameras.Virtual,
		LeftSerial:           cfg.Cameras.LeftSerial,
		RightSerial:          cfg.Cameras.RightSerial,
		TitaniaSerial:        cfg.Cameras.TitaniaSerial,
		LeftTemperaturePath:  cfg.Cameras.LeftTemperaturePath,
		RightTemperaturePath: cfg.Cameras.RightTemperaturePath,
	}
}

// Pair is the resolved left and right endpoints.
type Pair struct {
	Left  camera.Endpoint
	Right camera.Endpoint
}

// TitaniaNames returns the user-defined camera names of a Titania rig.
func TitaniaNames(titaniaSerial string) (left, right string) {
	base := "I3DRTitania-" + titaniaSerial
	return base + "_l", base + "_r"
}

// ResolvePair turns a selection into endpoints. Emulated cameras use the
// explicit serials when given and the emulation identifiers otherwise.
// Physical cameras are looked up among cams: explicit serials must both be
// present, a titania serial resolves the rig's user-defined names, and with
// no identifiers exactly two cameras must be connected.
func ResolvePair(cams []Camera, sel Selection) (Pair, error) {
	if sel.Virtual {
		if sel.TitaniaSerial != "" {
			return Pair{}, fmt.Errorf("titania serial %q cannot be resolved for emulated cameras", sel.TitaniaSerial)
		}
		left, right := sel.LeftSerial, sel.RightSerial
		if left == "" && right == "" {
			left, right = config.EmulatedLeftSerial, config.EmulatedRightSerial
		}
		return Pair{Left: camera.Endpoint{Serial: left}, Right: camera.Endpoint{Serial: right}}, nil
	}

	leftID, rightID := sel.LeftSerial, sel.RightSerial
	if sel.TitaniaSerial != "" {
		leftID, rightID = TitaniaNames(sel.TitaniaSerial)
	}

	var left, right Camera
	switch {
	case leftID != "" && rightID != "":
		var err error
		if left, err = findCamera(cams, leftID); err != nil {
			return Pair{}, err
		}
		if right, err = findCamera(cams, rightID); err != nil {
			return Pair{}, err
		}
		if left.Device == right.Device {
			return Pair{}, fmt.Errorf("left and right identifiers both resolve to %s", left.Device)
		}
	case len(cams) == 2:
		left, right = cams[0], cams[1]
	default:
		return Pair{}, fmt.Errorf("%w: expected exactly 2 cameras without serials, found %d", ErrNotFound, len(cams))
	}

	return Pair{
		Left:  endpointFor(left, leftID, sel.LeftTemperaturePath),
		Right: endpointFor(right, rightID, sel.RightTemperaturePath),
	}, nil
}

func endpointFor(cam Camera, id, tempPath string) camera.Endpoint {
	serial := id
	if serial == "" {
		serial = cam.Serial
	}
	if serial == "" {
		serial = cam.Name
	}
	return camera.Endpoint{Serial: serial, Device: cam.Device, TemperaturePath: tempPath}
}

func findCamera(cams []Camera, id string) (Camera, error) {
	for _, cam := range cams {
		for _, candidate := range cam.Identifiers() {
			if strings.EqualFold(candidate, id) {
				return cam, nil
			}
		}
	}
	return Camera{}, fmt.Errorf("%w: camera %q", ErrNotFound, id)
}

// ResolvePort returns requested when it is present, or the first available
// port when nothing was requested.
func ResolvePort(ports []Port, requested string) (string, error) {
	if requested == "" {
		if len(ports) == 0 {
			return "", fmt.Errorf("%w: no serial ports available", ErrNotFound)
		}
		return ports[0].Name, nil
	}
	for _, p := range ports {
		if p.Name == requested {
			return requested, nil
		}
	}
	return "", fmt.Errorf("%w: serial port %q", ErrNotFound, requested)
}
