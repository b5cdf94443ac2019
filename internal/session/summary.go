package session

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"titaniatest/internal/config"
	"titaniatest/internal/devices"
	"titaniatest/internal/fileutil"
	"titaniatest/internal/tieredlog"
)

// SummarySuffix replaces the run log's .txt extension.
const SummarySuffix = ".summary.yaml"

// Summary is the manifest written next to the run log when a run ends.
type Summary struct {
	RunID     string          `yaml:"run_id"`
	SessionID string          `yaml:"session_id"`
	Reason    string          `yaml:"reason"`
	ExitCode  int             `yaml:"exit_code"`
	Error     string          `yaml:"error,omitempty"`
	Started   string          `yaml:"started"`
	Finished  string          `yaml:"finished"`
	Duration  string          `yaml:"duration"`
	RunLog    string          `yaml:"run_log"`
	AppLog    string          `yaml:"app_log,omitempty"`
	Cameras   SummaryCameras  `yaml:"cameras"`
	External  SummaryExternal `yaml:"external"`
	Settings  SummarySettings `yaml:"settings"`
	Counters  SummaryCounters `yaml:"counters"`
}

type SummaryCameras struct {
	Virtual bool   `yaml:"virtual"`
	Left    string `yaml:"left"`
	Right   string `yaml:"right"`
}

type SummaryExternal struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port,omitempty"`
}

type SummarySettings struct {
	CaptureFPS         float64 `yaml:"capture_fps"`
	SaveFPS            float64 `yaml:"save_fps"`
	TimeoutSeconds     float64 `yaml:"timeout_seconds"`
	SaveImages         bool    `yaml:"save_images"`
	CaptureTemperature bool    `yaml:"capture_temperature"`
	LeftExposure       float64 `yaml:"left_exposure_us"`
	RightExposure      float64 `yaml:"right_exposure_us"`
}

type SummaryCounters struct {
	Iterations        int `yaml:"iterations"`
	Persisted         int `yaml:"persisted"`
	CameraTimeouts    int `yaml:"camera_timeouts"`
	CameraFaults      int `yaml:"camera_faults"`
	Reconnects        int `yaml:"reconnects"`
	ReconnectFailures int `yaml:"reconnect_failures"`
	ChannelFaults     int `yaml:"serial_faults"`
	HotplugEvents     int `yaml:"hotplug_events"`
}

func newSummary(out Outcome, cfg *config.Config, pair devices.Pair, port string) Summary {
	res := out.Result
	summary := Summary{
		RunID:     out.RunID,
		SessionID: out.SessionID,
		Reason:    string(res.Reason),
		ExitCode:  res.ExitCode,
		Started:   res.Started.Format(tieredlog.TimeLayout),
		Finished:  res.Finished.Format(tieredlog.TimeLayout),
		Duration:  res.Finished.Sub(res.Started).Round(time.Millisecond).String(),
		RunLog:    out.RunLog,
		AppLog:    out.AppLog,
		Cameras: SummaryCameras{
			Virtual: cfg.Cameras.Virtual,
			Left:    pair.Left.String(),
			Right:   pair.Right.String(),
		},
		External: SummaryExternal{Enabled: cfg.External.Enabled, Port: port},
		Settings: SummarySettings{
			CaptureFPS:         cfg.Test.CaptureFPS,
			SaveFPS:            cfg.Test.SaveFPS,
			TimeoutSeconds:     cfg.Test.TimeoutSeconds,
			SaveImages:         cfg.Test.SaveImages,
			CaptureTemperature: cfg.Test.CaptureTemperature,
			LeftExposure:       cfg.Cameras.LeftExposure,
			RightExposure:      cfg.Cameras.RightExposure,
		},
		Counters: SummaryCounters{
			Iterations:        res.Stats.Iterations,
			Persisted:         res.Stats.Persisted,
			CameraTimeouts:    res.Stats.CameraTimeouts,
			CameraFaults:      res.Stats.CameraFaults,
			Reconnects:        res.Stats.Reconnects,
			ReconnectFailures: res.Stats.ReconnectFailures,
			ChannelFaults:     res.Stats.ChannelFaults,
			HotplugEvents:     res.Stats.HotplugEvents,
		},
	}
	if res.Err != nil {
		summary.Error = res.Err.Error()
	}
	return summary
}

// SummaryPath returns the manifest path for a run log.
func SummaryPath(runLog string) string {
	return strings.TrimSuffix(runLog, ".txt") + SummarySuffix
}

func writeSummary(runLog string, summary Summary) (string, error) {
	if runLog == "" {
		return "", fmt.Errorf("run log path is empty")
	}
	data, err := yaml.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}
	path := SummaryPath(runLog)
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return path, nil
}

// ReadSummary loads a manifest written by a previous run.
func ReadSummary(path string) (Summary, error) {
	var summary Summary
	data, err := os.ReadFile(path)
	if err != nil {
		return summary, fmt.Errorf("read summary: %w", err)
	}
	if err := yaml.Unmarshal(data, &summary); err != nil {
		return summary, fmt.Errorf("decode summary %s: %w", path, err)
	}
	return summary, nil
}
