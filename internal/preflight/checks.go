package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"titaniatest/internal/config"
	"titaniatest/internal/devices"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckOutputDir accepts an existing writable directory, or a missing one
// whose nearest existing ancestor is writable so the run can create it.
func CheckOutputDir(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "path not set"}
	}
	path = filepath.Clean(path)
	if _, err := os.Stat(path); err == nil || !os.IsNotExist(err) {
		return CheckDirectoryAccess(name, path)
	}

	ancestor := filepath.Dir(path)
	for {
		if _, err := os.Stat(ancestor); err == nil {
			break
		}
		parent := filepath.Dir(ancestor)
		if parent == ancestor {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: no existing parent)", path)}
		}
		ancestor = parent
	}
	parent := CheckDirectoryAccess(name, ancestor)
	if !parent.Passed {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s)", path, parent.Detail)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
}

// CheckCameras verifies the configured camera pair can be resolved.
func CheckCameras(ctx context.Context, cfg *config.Config, lister devices.CameraLister) Result {
	const name = "Cameras"

	sel := devices.SelectionFromConfig(cfg)
	if sel.Virtual {
		pair, err := devices.ResolvePair(nil, sel)
		if err != nil {
			return Result{Name: name, Detail: err.Error()}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("emulated (%s, %s)", pair.Left.Serial, pair.Right.Serial)}
	}
	if lister == nil {
		return Result{Name: name, Detail: "no camera enumerator available"}
	}

	cams, err := lister.ListCameras(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("enumerate cameras: %v", err)}
	}
	pair, err := devices.ResolvePair(cams, sel)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%v (%d connected)", err, len(cams))}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("left %s (%s), right %s (%s)", pair.Left.Serial, pair.Left.Device, pair.Right.Serial, pair.Right.Device),
	}
}

// CheckSerialPort verifies the external serial port exists. An empty
// request passes when any port is present.
func CheckSerialPort(requested string, lister devices.PortLister) Result {
	const name = "External serial"

	if lister == nil {
		return Result{Name: name, Detail: "no serial enumerator available"}
	}
	ports, err := lister.ListPorts()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("enumerate ports: %v", err)}
	}
	port, err := devices.ResolvePort(ports, requested)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if requested == "" {
		return Result{Name: name, Passed: true, Detail: port + " (first available)"}
	}
	return Result{Name: name, Passed: true, Detail: port}
}

// CheckTemperaturePath verifies a sysfs temperature attribute holds an
// integer millidegree value.
func CheckTemperaturePath(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "path not set"}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	milli, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a millidegree value)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%.1f °C)", path, float64(milli)/1000)}
}
