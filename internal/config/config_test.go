package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"titaniatest/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogDir := filepath.Join(tempHome, ".local", "share", "titaniatest", "logs")
	if cfg.Logging.Dir != wantLogDir {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Logging.Dir, wantLogDir)
	}
	if !filepath.IsAbs(cfg.Test.OutputDir) {
		t.Fatalf("expected absolute output dir, got %q", cfg.Test.OutputDir)
	}
	if cfg.Cameras.GrabTimeoutMS != 20000 {
		t.Fatalf("unexpected grab timeout: %d", cfg.Cameras.GrabTimeoutMS)
	}
	if cfg.Cameras.LeftExposure != 110000 || cfg.Cameras.RightExposure != 110000 {
		t.Fatalf("unexpected exposure defaults: %v/%v", cfg.Cameras.LeftExposure, cfg.Cameras.RightExposure)
	}
	if !cfg.Test.SaveImages || !cfg.Test.CaptureTemperature {
		t.Fatal("expected images and temperature enabled by default")
	}
	if cfg.External.Enabled {
		t.Fatal("expected external serial disabled by default")
	}
	if cfg.Timeout() != 0 {
		t.Fatalf("expected unbounded timeout, got %v", cfg.Timeout())
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "titaniatest.toml")

	type payload struct {
		Test struct {
			OutputDir      string  `toml:"output_dir"`
			CaptureFPS     float64 `toml:"capture_fps"`
			SaveFPS        float64 `toml:"save_fps"`
			TimeoutSeconds float64 `toml:"timeout_seconds"`
		} `toml:"test"`
		Cameras struct {
			Virtual bool `toml:"virtual"`
		} `toml:"cameras"`
		External struct {
			Enabled bool   `toml:"enabled"`
			Port    string `toml:"port"`
		} `toml:"external"`
	}
	custom := payload{}
	custom.Test.OutputDir = filepath.Join(tempDir, "results")
	custom.Test.CaptureFPS = 10
	custom.Test.SaveFPS = 5
	custom.Test.TimeoutSeconds = 1.5
	custom.Cameras.Virtual = true
	custom.External.Enabled = true
	custom.External.Port = "/dev/ttyUSB0"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected existing config at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Test.CaptureFPS != 10 || cfg.Test.SaveFPS != 5 {
		t.Fatalf("unexpected rates: %v/%v", cfg.Test.CaptureFPS, cfg.Test.SaveFPS)
	}
	if got := cfg.Timeout().Milliseconds(); got != 1500 {
		t.Fatalf("unexpected timeout: %dms", got)
	}
	if cfg.External.Port != "/dev/ttyUSB0" {
		t.Fatalf("unexpected port: %q", cfg.External.Port)
	}
	if cfg.External.BaudRate != 9600 {
		t.Fatalf("expected default baud rate, got %d", cfg.External.BaudRate)
	}
}

func TestValidateRejectsInvalidCombinations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "save rate above capture rate",
			mutate: func(c *config.Config) { c.Test.CaptureFPS = 5; c.Test.SaveFPS = 10 },
			want:   "save fps",
		},
		{
			name:   "negative timeout",
			mutate: func(c *config.Config) { c.Test.TimeoutSeconds = -1 },
			want:   "timeout",
		},
		{
			name:   "left serial without right",
			mutate: func(c *config.Config) { c.Cameras.LeftSerial = "123" },
			want:   "left_serial given without right_serial",
		},
		{
			name:   "right serial without left",
			mutate: func(c *config.Config) { c.Cameras.RightSerial = "456" },
			want:   "right_serial given without left_serial",
		},
		{
			name: "titania serial with explicit serials",
			mutate: func(c *config.Config) {
				c.Cameras.LeftSerial = "1"
				c.Cameras.RightSerial = "2"
				c.Cameras.TitaniaSerial = "T1"
			},
			want: "titania_serial",
		},
		{
			name:   "external port without enable",
			mutate: func(c *config.Config) { c.External.Port = "/dev/ttyACM0" },
			want:   "--enable_external_serial",
		},
		{
			name:   "unsupported pixel format",
			mutate: func(c *config.Config) { c.Cameras.PixelFormat = "RGB3" },
			want:   "pixel_format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Cameras.Virtual = true
			tt.mutate(&cfg)
			err := cfg.ValidateRun()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, config.ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %q", tt.want, err.Error())
			}
		})
	}
}

func TestValidateRunRequiresTemperaturePathsForPhysicalCameras(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	err := cfg.ValidateRun()
	if !errors.Is(err, config.ErrInvalid) || !strings.Contains(err.Error(), "temperature capture") {
		t.Fatalf("expected temperature path error, got %v", err)
	}

	cfg.Test.CaptureTemperature = false
	if err := cfg.ValidateRun(); err != nil {
		t.Fatalf("expected disabled temperature to pass, got %v", err)
	}
}

func TestValidateAcceptsEqualRates(t *testing.T) {
	cfg := config.Default()
	cfg.Cameras.Virtual = true
	cfg.Test.CaptureFPS = 10
	cfg.Test.SaveFPS = 10
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected equal rates to validate, got %v", err)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Read(path)
	if err != nil {
		t.Fatalf("Read sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Cameras.PixelFormat != "GREY" {
		t.Fatalf("unexpected pixel format: %q", cfg.Cameras.PixelFormat)
	}
	if !cfg.History.Enabled {
		t.Fatal("expected history enabled in sample")
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Test.OutputDir = filepath.Join(base, "out")
	cfg.Logging.Dir = filepath.Join(base, "logs")
	cfg.History.Path = filepath.Join(base, "db", "history.db")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Test.OutputDir, cfg.Logging.Dir, filepath.Dir(cfg.History.Path)} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}
