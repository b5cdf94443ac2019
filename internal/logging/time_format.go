package logging

import "time"

const (
	logTimestampLayout  = "2006-01-02 15:04:05.000"
	jsonTimestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.In(time.Local).Format(logTimestampLayout)
}
