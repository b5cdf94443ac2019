package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCameras()
	c.normalizeExternal()
	c.normalizeLogging()
	return nil
}

// Normalize re-applies path expansion and canonical casing. Call it after
// mutating a loaded config (for example with command-line overrides).
func (c *Config) Normalize() error {
	return c.normalize()
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Test.OutputDir, err = expandPath(strings.TrimSpace(c.Test.OutputDir)); err != nil {
		return fmt.Errorf("test.output_dir: %w", err)
	}
	if c.Logging.Dir, err = expandPath(strings.TrimSpace(c.Logging.Dir)); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	if c.History.Path, err = expandPath(strings.TrimSpace(c.History.Path)); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	if c.Cameras.LeftTemperaturePath, err = expandPath(strings.TrimSpace(c.Cameras.LeftTemperaturePath)); err != nil {
		return fmt.Errorf("cameras.left_temperature_path: %w", err)
	}
	if c.Cameras.RightTemperaturePath, err = expandPath(strings.TrimSpace(c.Cameras.RightTemperaturePath)); err != nil {
		return fmt.Errorf("cameras.right_temperature_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeCameras() {
	c.Cameras.LeftSerial = strings.TrimSpace(c.Cameras.LeftSerial)
	c.Cameras.RightSerial = strings.TrimSpace(c.Cameras.RightSerial)
	c.Cameras.TitaniaSerial = strings.TrimSpace(c.Cameras.TitaniaSerial)
	c.Cameras.PixelFormat = strings.ToUpper(strings.TrimSpace(c.Cameras.PixelFormat))
	if c.Cameras.PixelFormat == "" {
		c.Cameras.PixelFormat = defaultPixelFormat
	}
}

func (c *Config) normalizeExternal() {
	c.External.Port = strings.TrimSpace(c.External.Port)
	if c.External.BaudRate == 0 {
		c.External.BaudRate = defaultBaudRate
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
