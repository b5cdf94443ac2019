package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"titaniatest/internal/config"
	"titaniatest/internal/devices"
	"titaniatest/internal/preflight"
	"titaniatest/internal/testsupport"
)

type fakeCameras []devices.Camera

func (f fakeCameras) ListCameras(context.Context) ([]devices.Camera, error) { return f, nil }

type fakePorts []devices.Port

func (f fakePorts) ListPorts() ([]devices.Port, error) { return f, nil }

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	inventory  preflight.Inventory
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.History.Enabled = true
	cfg.Test.CaptureTemperature = true
	homeDir := filepath.Join(testsupport.BaseDir(cfg), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(homeDir, ".config", "titaniatest", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		inventory: preflight.Inventory{
			Cameras: fakeCameras{
				{Device: "/dev/video0", Serial: "40098271", Name: "I3DRTitania-746974616e24324_l"},
				{Device: "/dev/video2", Serial: "40098272", Name: "I3DRTitania-746974616e24324_r"},
			},
			Ports: fakePorts{{Name: "/dev/ttyUSB0", USB: true, VID: "0403", PID: "6001", Product: "FT232R"}},
		},
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	testsupport.WriteFile(t, path, string(data))
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand(func(c *commandContext) {
		c.inventory = env.inventory
		c.stdin = nil
	})
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
