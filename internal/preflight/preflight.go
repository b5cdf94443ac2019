package preflight

import (
	"context"
	"path/filepath"

	"titaniatest/internal/config"
	"titaniatest/internal/devices"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Inventory supplies the hardware listings the device checks use.
type Inventory struct {
	Cameras devices.CameraLister
	Ports   devices.PortLister
}

// SystemInventory lists real cameras and serial ports.
func SystemInventory() Inventory {
	return Inventory{Cameras: devices.SysfsCameras{}, Ports: devices.SystemPorts{}}
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config, inv Inventory) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckOutputDir("Output directory", cfg.Test.OutputDir))
	results = append(results, CheckCameras(ctx, cfg, inv.Cameras))

	if cfg.Test.CaptureTemperature && !cfg.Cameras.Virtual {
		results = append(results,
			CheckTemperaturePath("Left temperature", cfg.Cameras.LeftTemperaturePath),
			CheckTemperaturePath("Right temperature", cfg.Cameras.RightTemperaturePath),
		)
	}

	if cfg.External.Enabled {
		results = append(results, CheckSerialPort(cfg.External.Port, inv.Ports))
	}

	if cfg.History.Enabled {
		results = append(results, CheckOutputDir("History directory", filepath.Dir(cfg.History.Path)))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
