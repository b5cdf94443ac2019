package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"titaniatest/internal/config"
	"titaniatest/internal/session"
)

// runFlags mirrors the burn-in command line. Only flags the operator set
// override the configuration file.
type runFlags struct {
	output               string
	captureFPS           float64
	saveFPS              float64
	disableTemp          bool
	disableImages        bool
	enableExternalSerial bool
	externalSerialPort   string
	leftSerial           string
	rightSerial          string
	titaniaSerial        string
	virtual              bool
	timeout              float64
	leftExposure         float64
	rightExposure        float64
	noHistory            bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the burn-in test",
		Long: "Grab frames from both cameras at --capture_fps and log one line per\n" +
			"--save_fps interval until the timeout passes or 'q' / Ctrl+C is pressed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg, flags); err != nil {
				return err
			}
			out, err := session.Run(cmd.Context(), cfg, session.Options{
				Stdin:     ctx.stdin,
				Inventory: ctx.inventory,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Run log: %s\n", out.RunLog)
			if out.SummaryPath != "" {
				fmt.Fprintf(w, "Summary: %s\n", out.SummaryPath)
			}
			if out.Result.ExitCode != 0 {
				return &exitError{code: out.Result.ExitCode, reason: string(out.Result.Reason)}
			}
			return nil
		},
	}

	bindRunFlags(cmd, &flags)
	return cmd
}

func bindRunFlags(cmd *cobra.Command, flags *runFlags) {
	f := cmd.Flags()
	f.StringVar(&flags.output, "output", "", "Root folder for logs and images")
	f.Float64Var(&flags.captureFPS, "capture_fps", 0, "Camera capture rate")
	f.Float64Var(&flags.saveFPS, "save_fps", 0, "Log and image save rate (must not exceed capture_fps)")
	f.BoolVar(&flags.disableTemp, "disable_temp", false, "Do not record camera temperatures")
	f.BoolVar(&flags.disableImages, "disable_images", false, "Do not save images (frames are still grabbed)")
	f.BoolVar(&flags.enableExternalSerial, "enable_external_serial", false, "Record the external serial device")
	f.StringVar(&flags.externalSerialPort, "external_serial_port", "", "External serial port (first available when empty)")
	f.StringVar(&flags.leftSerial, "left_serial", "", "Left camera serial")
	f.StringVar(&flags.rightSerial, "right_serial", "", "Right camera serial")
	f.StringVar(&flags.titaniaSerial, "titania_serial", "", "Titania serial; resolves both camera names")
	f.BoolVar(&flags.virtual, "virtual", false, "Use emulated cameras")
	f.Float64Var(&flags.timeout, "timeout", 0, "Test duration in seconds (0 runs until stopped)")
	f.Float64Var(&flags.leftExposure, "left_exposure", 0, "Left camera exposure in microseconds")
	f.Float64Var(&flags.rightExposure, "right_exposure", 0, "Right camera exposure in microseconds")
	f.BoolVar(&flags.noHistory, "no_history", false, "Do not record this run in the history database")
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config, flags runFlags) error {
	changed := cmd.Flags().Changed

	if changed("output") {
		expanded, err := config.ExpandPath(strings.TrimSpace(flags.output))
		if err != nil {
			return fmt.Errorf("resolve output path: %w", err)
		}
		cfg.Test.OutputDir = expanded
	}
	if changed("capture_fps") {
		cfg.Test.CaptureFPS = flags.captureFPS
	}
	if changed("save_fps") {
		cfg.Test.SaveFPS = flags.saveFPS
	}
	if changed("timeout") {
		cfg.Test.TimeoutSeconds = flags.timeout
	}
	if flags.disableTemp {
		cfg.Test.CaptureTemperature = false
	}
	if flags.disableImages {
		cfg.Test.SaveImages = false
	}
	if flags.enableExternalSerial {
		cfg.External.Enabled = true
	}
	if changed("external_serial_port") {
		cfg.External.Port = strings.TrimSpace(flags.externalSerialPort)
	}
	if changed("left_serial") {
		cfg.Cameras.LeftSerial = strings.TrimSpace(flags.leftSerial)
	}
	if changed("right_serial") {
		cfg.Cameras.RightSerial = strings.TrimSpace(flags.rightSerial)
	}
	if changed("titania_serial") {
		cfg.Cameras.TitaniaSerial = strings.TrimSpace(flags.titaniaSerial)
	}
	if flags.virtual {
		cfg.Cameras.Virtual = true
	}
	if changed("left_exposure") {
		cfg.Cameras.LeftExposure = flags.leftExposure
	}
	if changed("right_exposure") {
		cfg.Cameras.RightExposure = flags.rightExposure
	}
	if flags.noHistory {
		cfg.History.Enabled = false
	}
	return nil
}
