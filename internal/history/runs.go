package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Run is one burn-in run.
type Run struct {
	ID           int64
	RunID        string
	StartedAt    time.Time
	FinishedAt   *time.Time
	OutputDir    string
	RunLog       string
	Virtual      bool
	LeftCamera   string
	RightCamera  string
	ExternalPort string
	CaptureFPS   float64
	SaveFPS      float64
	Reason       string
	ExitCode     *int
	Counters
}

// Counters are the per-run totals recorded when a run finishes.
type Counters struct {
	Iterations     int
	Persisted      int
	CameraTimeouts int
	CameraFaults   int
	Reconnects     int
	ChannelFaults  int
	HotplugEvents  int
}

// Finished reports whether the run has ended.
func (r Run) Finished() bool { return r.FinishedAt != nil }

// Duration is the run length, measured to now for runs still in progress.
func (r Run) Duration(now time.Time) time.Duration {
	end := now
	if r.FinishedAt != nil {
		end = *r.FinishedAt
	}
	return end.Sub(r.StartedAt)
}

// BeginRun records the start of a run.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if run.RunID == "" {
		return errors.New("run id is required")
	}
	_, err := s.exec(ctx,
		`INSERT INTO runs (
            run_id, started_at, output_dir, run_log, virtual,
            left_camera, right_camera, external_port, capture_fps, save_fps
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID,
		formatTime(run.StartedAt),
		run.OutputDir,
		nullableString(run.RunLog),
		boolToInt(run.Virtual),
		nullableString(run.LeftCamera),
		nullableString(run.RightCamera),
		nullableString(run.ExternalPort),
		run.CaptureFPS,
		run.SaveFPS,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records how a run ended.
func (s *Store) FinishRun(ctx context.Context, runID string, finished time.Time, reason string, exitCode int, counters Counters) error {
	res, err := s.exec(ctx,
		`UPDATE runs
         SET finished_at = ?, reason = ?, exit_code = ?, iterations = ?, persisted = ?,
             camera_timeouts = ?, camera_faults = ?, reconnects = ?, channel_faults = ?, hotplug_events = ?
         WHERE run_id = ?`,
		formatTime(finished),
		reason,
		exitCode,
		counters.Iterations,
		counters.Persisted,
		counters.CameraTimeouts,
		counters.CameraFaults,
		counters.Reconnects,
		counters.ChannelFaults,
		counters.HotplugEvents,
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("finish run: unknown run %q", runID)
	}
	return nil
}

const runColumns = "id, run_id, started_at, finished_at, output_dir, run_log, virtual, left_camera, right_camera, external_port, capture_fps, save_fps, reason, exit_code, iterations, persisted, camera_timeouts, camera_faults, reconnects, channel_faults, hotplug_events"

// GetRun fetches a run by its run ID. A missing run returns nil, nil.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run          Run
		startedRaw   string
		finishedRaw  sql.NullString
		runLog       sql.NullString
		virtual      int
		leftCamera   sql.NullString
		rightCamera  sql.NullString
		externalPort sql.NullString
		reason       sql.NullString
		exitCode     sql.NullInt64
	)
	if err := scanner.Scan(
		&run.ID,
		&run.RunID,
		&startedRaw,
		&finishedRaw,
		&run.OutputDir,
		&runLog,
		&virtual,
		&leftCamera,
		&rightCamera,
		&externalPort,
		&run.CaptureFPS,
		&run.SaveFPS,
		&reason,
		&exitCode,
		&run.Iterations,
		&run.Persisted,
		&run.CameraTimeouts,
		&run.CameraFaults,
		&run.Reconnects,
		&run.ChannelFaults,
		&run.HotplugEvents,
	); err != nil {
		return nil, err
	}
	run.RunLog = runLog.String
	run.Virtual = virtual != 0
	run.LeftCamera = leftCamera.String
	run.RightCamera = rightCamera.String
	run.ExternalPort = externalPort.String
	run.Reason = reason.String
	if exitCode.Valid {
		code := int(exitCode.Int64)
		run.ExitCode = &code
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return &run, nil
}
