package runner

import (
	"time"

	"titaniatest/internal/camera"
	"titaniatest/internal/telemetry"
	"titaniatest/internal/tieredlog"
)

// FrameRecord is the loggable state of one iteration. It is built fresh
// every iteration and fully defaulted, so a record written after a fault
// never carries values from an earlier iteration.
type FrameRecord struct {
	Time string
	// Tag is the filesystem-safe form of Time used for image names.
	Tag            string
	LeftImage      string
	RightImage     string
	LeftTemp       string
	RightTemp      string
	ExternalData   string
	LeftStatus     string
	RightStatus    string
	ExternalStatus string
}

// NewFrameRecord returns a record for now with every status "not attempted".
func NewFrameRecord(now time.Time) FrameRecord {
	return FrameRecord{
		Time:           now.Format(tieredlog.TimeLayout),
		Tag:            tieredlog.Tag(now),
		LeftStatus:     camera.StatusNotAttempt,
		RightStatus:    camera.StatusNotAttempt,
		ExternalStatus: telemetry.StatusNotAttempted,
	}
}

// Line converts the record for the tiered log writer.
func (r FrameRecord) Line() tieredlog.Line {
	return tieredlog.Line{
		Time:           r.Time,
		LeftImage:      r.LeftImage,
		RightImage:     r.RightImage,
		LeftTemp:       r.LeftTemp,
		RightTemp:      r.RightTemp,
		ExternalData:   r.ExternalData,
		LeftStatus:     r.LeftStatus,
		RightStatus:    r.RightStatus,
		ExternalStatus: r.ExternalStatus,
	}
}

// ImageName is the file name of a side's image for this record.
func (r FrameRecord) ImageName(side camera.Side) string {
	return r.Tag + side.Suffix() + ".png"
}
