package config

import (
	"errors"
	"fmt"
)

// ErrInvalid marks configuration errors. They are fatal before a run starts.
var ErrInvalid = errors.New("invalid configuration")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTest(); err != nil {
		return err
	}
	if err := c.validateCameras(); err != nil {
		return err
	}
	if err := c.validateExternal(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// ValidateRun applies Validate plus the checks that only matter when a run is
// about to start against the configured hardware.
func (c *Config) ValidateRun() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Test.CaptureTemperature && !c.Cameras.Virtual {
		if c.Cameras.LeftTemperaturePath == "" || c.Cameras.RightTemperaturePath == "" {
			return invalidf("temperature capture on physical cameras requires cameras.left_temperature_path and cameras.right_temperature_path (or --disable_temp)")
		}
	}
	return nil
}

func (c *Config) validateTest() error {
	if c.Test.OutputDir == "" {
		return invalidf("test.output_dir must be set")
	}
	if c.Test.CaptureFPS <= 0 {
		return invalidf("test.capture_fps must be positive")
	}
	if c.Test.SaveFPS <= 0 {
		return invalidf("test.save_fps must be positive")
	}
	if c.Test.SaveFPS > c.Test.CaptureFPS {
		return invalidf("save fps (%g) must be less than or equal to capture fps (%g)", c.Test.SaveFPS, c.Test.CaptureFPS)
	}
	if c.Test.TimeoutSeconds < 0 {
		return invalidf("timeout must be a positive number of seconds (0 disables it)")
	}
	return nil
}

func (c *Config) validateCameras() error {
	cams := c.Cameras
	leftGiven := cams.LeftSerial != ""
	rightGiven := cams.RightSerial != ""
	if leftGiven && !rightGiven {
		return invalidf("left_serial given without right_serial; both must be given when specifying camera serials")
	}
	if rightGiven && !leftGiven {
		return invalidf("right_serial given without left_serial; both must be given when specifying camera serials")
	}
	if cams.TitaniaSerial != "" && (leftGiven || rightGiven) {
		return invalidf("titania_serial cannot be combined with left_serial or right_serial")
	}
	if cams.LeftExposure <= 0 || cams.RightExposure <= 0 {
		return invalidf("camera exposure must be positive (microseconds)")
	}
	if cams.GrabTimeoutMS <= 0 {
		return invalidf("cameras.grab_timeout_ms must be positive")
	}
	if cams.Width <= 0 || cams.Height <= 0 {
		return invalidf("cameras.width and cameras.height must be positive")
	}
	switch cams.PixelFormat {
	case "GREY", "YUYV":
	default:
		return invalidf("cameras.pixel_format %q unsupported (GREY or YUYV)", cams.PixelFormat)
	}
	return nil
}

func (c *Config) validateExternal() error {
	if c.External.Port != "" && !c.External.Enabled {
		return invalidf("external serial port provided but external serial is not enabled; add --enable_external_serial")
	}
	if c.External.BaudRate <= 0 {
		return invalidf("external.baud_rate must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return invalidf("logging.format %q unsupported (console or json)", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return invalidf("logging.retention_days must be >= 0")
	}
	return nil
}
