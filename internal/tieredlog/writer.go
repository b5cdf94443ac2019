package tieredlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"titaniatest/internal/fileutil"
	"titaniatest/internal/textutil"
)

// Time layouts for keys, folder names and log timestamps.
const (
	DayLayout   = "2006-01-02"
	HourLayout  = "2006-01-02 15"
	TimeLayout  = "2006-01-02 15:04:05.000000"
	tagLayout   = "2006-01-02_15_04_05.000000"
	filePrefix  = "TitaniaTest_"
	fileSuffix  = ".txt"
	dirFileMode = 0o755
)

// Tag formats t for file names: TimeLayout with every separator turned
// into an underscore, microseconds included.
func Tag(t time.Time) string {
	return strings.Replace(t.Format(tagLayout), ".", "_", 1)
}

// FileName returns the log file name for a key.
func FileName(key string) string {
	return filePrefix + key + fileSuffix
}

// Rotation names how a destination is keyed.
type Rotation int

const (
	RotationNone Rotation = iota
	RotationDay
	RotationHour
)

func (r Rotation) String() string {
	switch r {
	case RotationDay:
		return "day"
	case RotationHour:
		return "hour"
	default:
		return "run"
	}
}

// Destination is one append-only log file.
type Destination struct {
	Path          string
	Rotation      Rotation
	HeaderWritten bool
}

// Folders are the directories active for the current iteration.
type Folders struct {
	Day  string
	Hour string
}

// Writer maintains the run, day and hour logs. It is not safe for
// concurrent use.
type Writer struct {
	root    string
	columns Columns
	run     *Destination
	day     *Destination
	hour    *Destination
	dayKey  string
	hourKey string
	folders Folders
}

// New creates the output root and the run log (with header) named after
// start.
func New(root string, columns Columns, start time.Time) (*Writer, error) {
	if err := os.MkdirAll(root, dirFileMode); err != nil {
		return nil, fmt.Errorf("create output root: %w", err)
	}
	w := &Writer{root: root, columns: columns}
	w.run = &Destination{
		Path:     filepath.Join(root, FileName(Tag(start))),
		Rotation: RotationNone,
	}
	if err := w.ensureHeader(w.run); err != nil {
		return nil, err
	}
	return w, nil
}

// Columns returns the column layout.
func (w *Writer) Columns() Columns { return w.columns }

// RunLogPath returns the run-lifetime log path.
func (w *Writer) RunLogPath() string { return w.run.Path }

// Rotate activates the day and hour destinations for now. Rotation is
// detected purely by a change in the derived calendar key.
func (w *Writer) Rotate(now time.Time) (Folders, bool, error) {
	rotated := false
	dayKey := now.Format(DayLayout)
	if dayKey != w.dayKey {
		dayDir := filepath.Join(w.root, dayKey)
		if err := os.MkdirAll(dayDir, dirFileMode); err != nil {
			return w.folders, false, fmt.Errorf("create day folder: %w", err)
		}
		dest := &Destination{Path: filepath.Join(dayDir, FileName(dayKey)), Rotation: RotationDay}
		if err := w.ensureHeader(dest); err != nil {
			return w.folders, false, err
		}
		w.day, w.dayKey = dest, dayKey
		w.folders.Day = dayDir
		rotated = true
	}

	hourKey := now.Format(HourLayout)
	if hourKey != w.hourKey {
		hourDir := filepath.Join(w.folders.Day, hourKey)
		if err := os.MkdirAll(hourDir, dirFileMode); err != nil {
			return w.folders, rotated, fmt.Errorf("create hour folder: %w", err)
		}
		dest := &Destination{Path: filepath.Join(hourDir, FileName(hourKey)), Rotation: RotationHour}
		if err := w.ensureHeader(dest); err != nil {
			return w.folders, rotated, err
		}
		w.hour, w.hourKey = dest, hourKey
		w.folders.Hour = hourDir
		rotated = true
	}
	return w.folders, rotated, nil
}

// Destinations returns the currently active destinations, run log first.
func (w *Writer) Destinations() []Destination {
	out := make([]Destination, 0, 3)
	for _, dest := range []*Destination{w.run, w.day, w.hour} {
		if dest != nil {
			out = append(out, *dest)
		}
	}
	return out
}

// PartialWriteError is returned by Write when the record reached only some
// destinations.
type PartialWriteError struct {
	Written []Rotation
	Err     error
}

func (e *PartialWriteError) Error() string { return e.Err.Error() }

func (e *PartialWriteError) Unwrap() error { return e.Err }

// Write appends one record to every active destination and returns the
// composed line. It stops at the first failing destination.
func (w *Writer) Write(line Line) (string, error) {
	if w.day == nil || w.hour == nil {
		return "", errors.New("write before rotate: day/hour logs not active")
	}
	text := w.columns.Format(line)
	var written []Rotation
	for _, dest := range []*Destination{w.run, w.day, w.hour} {
		if err := fileutil.AppendLine(dest.Path, text); err != nil {
			return text, &PartialWriteError{
				Written: written,
				Err:     fmt.Errorf("append %s log: %w", dest.Rotation, err),
			}
		}
		written = append(written, dest.Rotation)
	}
	return text, nil
}

// WriteBestEffort appends to whichever destinations are active, except the
// skipped ones, and reports every failure without stopping at the first.
func (w *Writer) WriteBestEffort(line Line, skip ...Rotation) (string, error) {
	text := w.columns.Format(line)
	var errs []error
	for _, dest := range []*Destination{w.run, w.day, w.hour} {
		if dest == nil || slices.Contains(skip, dest.Rotation) {
			continue
		}
		if err := fileutil.AppendLine(dest.Path, text); err != nil {
			errs = append(errs, fmt.Errorf("append %s log: %w", dest.Rotation, err))
		}
	}
	return text, errors.Join(errs...)
}

func (w *Writer) ensureHeader(dest *Destination) error {
	empty, err := fileutil.IsEmptyOrMissing(dest.Path)
	if err != nil {
		return fmt.Errorf("stat %s log: %w", dest.Rotation, err)
	}
	if empty {
		if err := fileutil.AppendLine(dest.Path, w.columns.Header()); err != nil {
			return fmt.Errorf("write %s log header: %w", dest.Rotation, err)
		}
	}
	dest.HeaderWritten = true
	return nil
}

// Sanitize strips line breaks and replaces commas so a value stays within
// one CSV field.
func Sanitize(value string) string {
	return textutil.SanitizeField(value)
}

// Columns selects the optional column groups.
type Columns struct {
	Images      bool
	Temperature bool
	External    bool
}

// Header returns the header line for the layout.
func (c Columns) Header() string {
	cols := []string{"time"}
	if c.Images {
		cols = append(cols, "left_img", "right_img")
	}
	if c.Temperature {
		cols = append(cols, "left_temp", "right_temp")
	}
	if c.External {
		cols = append(cols, "external_data")
	}
	cols = append(cols, "left_success", "right_success")
	if c.External {
		cols = append(cols, "external_success")
	}
	return strings.Join(cols, ",")
}

// Line holds the loggable values of one record.
type Line struct {
	Time           string
	LeftImage      string
	RightImage     string
	LeftTemp       string
	RightTemp      string
	ExternalData   string
	LeftStatus     string
	RightStatus    string
	ExternalStatus string
}

// Format composes a sanitized record in header order.
func (c Columns) Format(l Line) string {
	fields := []string{l.Time}
	if c.Images {
		fields = append(fields, l.LeftImage, l.RightImage)
	}
	if c.Temperature {
		fields = append(fields, l.LeftTemp, l.RightTemp)
	}
	if c.External {
		fields = append(fields, l.ExternalData)
	}
	fields = append(fields, l.LeftStatus, l.RightStatus)
	if c.External {
		fields = append(fields, l.ExternalStatus)
	}
	for i, f := range fields {
		fields[i] = Sanitize(f)
	}
	return strings.Join(fields, ",")
}
