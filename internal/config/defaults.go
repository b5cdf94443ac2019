package config

const (
	defaultOutputDir        = "."
	defaultCaptureFPS       = 1.0
	defaultSaveFPS          = 1.0
	defaultExposureUS       = 110000.0
	defaultGrabTimeoutMS    = 20000
	defaultWidth            = 640
	defaultHeight           = 480
	defaultPixelFormat      = "GREY"
	defaultBaudRate         = 9600
	defaultLogDir           = "~/.local/share/titaniatest/logs"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
	defaultHistoryPath      = "~/.local/share/titaniatest/history.db"

	// EmulatedLeftSerial and EmulatedRightSerial are the identifiers the
	// camera emulation layer exposes.
	EmulatedLeftSerial  = "0815-0000"
	EmulatedRightSerial = "0815-0001"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Test: Test{
			OutputDir:          defaultOutputDir,
			CaptureFPS:         defaultCaptureFPS,
			SaveFPS:            defaultSaveFPS,
			SaveImages:         true,
			CaptureTemperature: true,
		},
		Cameras: Cameras{
			LeftExposure:  defaultExposureUS,
			RightExposure: defaultExposureUS,
			GrabTimeoutMS: defaultGrabTimeoutMS,
			Width:         defaultWidth,
			Height:        defaultHeight,
			PixelFormat:   defaultPixelFormat,
		},
		External: External{
			BaudRate: defaultBaudRate,
		},
		Logging: Logging{
			Dir:           defaultLogDir,
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		History: History{
			Enabled: true,
			Path:    defaultHistoryPath,
		},
	}
}
