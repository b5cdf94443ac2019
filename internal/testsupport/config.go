package testsupport

import (
	"path/filepath"
	"testing"

	"titaniatest/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Cameras are emulated and the external channel is disabled unless options
// say otherwise.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Test.OutputDir = filepath.Join(base, "output")
	cfgVal.Test.CaptureFPS = 10
	cfgVal.Test.SaveFPS = 5
	cfgVal.Cameras.Virtual = true
	cfgVal.Logging.Dir = filepath.Join(base, "logs")
	cfgVal.History.Path = filepath.Join(base, "history", "history.db")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithRates overrides the capture and save cadence.
func WithRates(captureFPS, saveFPS float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Test.CaptureFPS = captureFPS
		b.cfg.Test.SaveFPS = saveFPS
	}
}

// WithExternal enables the external telemetry channel on port.
func WithExternal(port string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.External.Enabled = true
		b.cfg.External.Port = port
	}
}

// WithPhysicalCameras disables emulation and points the temperature paths
// into the test directory.
func WithPhysicalCameras() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cameras.Virtual = false
		b.cfg.Cameras.LeftTemperaturePath = filepath.Join(b.baseDir, "temp_l")
		b.cfg.Cameras.RightTemperaturePath = filepath.Join(b.baseDir, "temp_r")
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Test.OutputDir)
}
