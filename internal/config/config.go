package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Test contains capture cadence and persistence settings for a burn-in run.
type Test struct {
	OutputDir          string  `toml:"output_dir"`
	CaptureFPS         float64 `toml:"capture_fps"`
	SaveFPS            float64 `toml:"save_fps"`
	TimeoutSeconds     float64 `toml:"timeout_seconds"`
	SaveImages         bool    `toml:"save_images"`
	CaptureTemperature bool    `toml:"capture_temperature"`
}

// Cameras contains sensor selection and acquisition settings for the rig.
type Cameras struct {
	Virtual       bool    `toml:"virtual"`
	LeftSerial    string  `toml:"left_serial"`
	RightSerial   string  `toml:"right_serial"`
	TitaniaSerial string  `toml:"titania_serial"`
	LeftExposure  float64 `toml:"left_exposure_us"`
	RightExposure float64 `toml:"right_exposure_us"`
	GrabTimeoutMS int     `toml:"grab_timeout_ms"`
	Width         int     `toml:"width"`
	Height        int     `toml:"height"`
	PixelFormat   string  `toml:"pixel_format"`
	// Temperature sources for physical sensors, read as millidegrees Celsius
	// (hwmon/thermal sysfs convention).
	LeftTemperaturePath  string `toml:"left_temperature_path"`
	RightTemperaturePath string `toml:"right_temperature_path"`
}

// External contains configuration for the auxiliary serial telemetry channel.
type External struct {
	Enabled  bool   `toml:"enabled"`
	Port     string `toml:"port"`
	BaudRate int    `toml:"baud_rate"`
}

// Logging contains configuration for application log output.
type Logging struct {
	Dir           string `toml:"dir"`
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// History contains configuration for the run history database.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Config encapsulates all configuration values for a burn-in run.
//
// Configuration sections by subsystem:
//   - Test: output root, capture/save cadence, timeout, persistence flags
//   - Cameras: sensor identifiers, emulation, exposure and grab settings
//   - External: serial telemetry channel
//   - Logging: application log format, level, and retention
//   - History: sqlite run/event history
type Config struct {
	Test     Test     `toml:"test"`
	Cameras  Cameras  `toml:"cameras"`
	External External `toml:"external"`
	Logging  Logging  `toml:"logging"`
	History  History  `toml:"history"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/titaniatest/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A missing file is not an error; defaults are used.
func Load(path string) (*Config, string, bool, error) {
	cfg, resolvedPath, exists, err := Read(path)
	if err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return cfg, resolvedPath, exists, nil
}

// Read locates, parses, and normalizes a configuration file without validating it.
// Callers that layer command-line overrides on top call Validate afterwards.
func Read(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/titaniatest/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("titaniatest.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output root and log directory.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Test.OutputDir, c.Logging.Dir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.History.Enabled && strings.TrimSpace(c.History.Path) != "" {
		if err := os.MkdirAll(filepath.Dir(c.History.Path), 0o755); err != nil {
			return fmt.Errorf("create history directory: %w", err)
		}
	}
	return nil
}

// Timeout returns the run timeout; zero means unbounded.
func (c *Config) Timeout() time.Duration {
	if c.Test.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Test.TimeoutSeconds * float64(time.Second))
}

// GrabTimeout returns the per-camera grab bound.
func (c *Config) GrabTimeout() time.Duration {
	return time.Duration(c.Cameras.GrabTimeoutMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
