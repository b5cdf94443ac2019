package tieredlog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestHeaderLayouts(t *testing.T) {
	tests := []struct {
		cols Columns
		want string
	}{
		{Columns{}, "time,left_success,right_success"},
		{Columns{Images: true}, "time,left_img,right_img,left_success,right_success"},
		{Columns{Temperature: true, External: true}, "time,left_temp,right_temp,external_data,left_success,right_success,external_success"},
		{Columns{Images: true, Temperature: true, External: true}, "time,left_img,right_img,left_temp,right_temp,external_data,left_success,right_success,external_success"},
	}
	for _, tt := range tests {
		if got := tt.cols.Header(); got != tt.want {
			t.Errorf("Header(%+v) = %q, want %q", tt.cols, got, tt.want)
		}
	}
}

func TestWriteFansOutToAllDestinations(t *testing.T) {
	root := t.TempDir()
	start := time.Date(2026, 3, 1, 9, 59, 59, 123456000, time.Local)
	w, err := New(root, Columns{Temperature: true}, start)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if filepath.Base(w.RunLogPath()) != "TitaniaTest_2026-03-01_09_59_59_123456.txt" {
		t.Fatalf("unexpected run log name %s", w.RunLogPath())
	}

	folders, rotated, err := w.Rotate(start)
	if err != nil || !rotated {
		t.Fatalf("Rotate: rotated=%v err=%v", rotated, err)
	}
	if folders.Hour != filepath.Join(root, "2026-03-01", "2026-03-01 09") {
		t.Fatalf("unexpected hour folder %s", folders.Hour)
	}

	line := Line{Time: start.Format(TimeLayout), LeftTemp: "41.500", RightTemp: "42.250", LeftStatus: "1", RightStatus: "1"}
	if _, err := w.Write(line); err != nil {
		t.Fatalf("Write: %v", err)
	}

	want := []string{
		"time,left_temp,right_temp,left_success,right_success",
		"2026-03-01 09:59:59.123456,41.500,42.250,1,1",
	}
	for _, dest := range w.Destinations() {
		got := readLines(t, dest.Path)
		if strings.Join(got, "|") != strings.Join(want, "|") {
			t.Fatalf("%s log content %q", dest.Rotation, got)
		}
	}
}

func TestRotateOnHourBoundary(t *testing.T) {
	root := t.TempDir()
	start := time.Date(2026, 3, 1, 9, 59, 59, 0, time.Local)
	w, err := New(root, Columns{}, start)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := w.Rotate(start); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(Line{Time: "a", LeftStatus: "1", RightStatus: "1"}); err != nil {
		t.Fatal(err)
	}

	if _, rotated, _ := w.Rotate(start.Add(500 * time.Millisecond)); rotated {
		t.Fatal("same hour must not rotate")
	}
	next := start.Add(2 * time.Second)
	folders, rotated, err := w.Rotate(next)
	if err != nil || !rotated {
		t.Fatalf("expected hour rotation, rotated=%v err=%v", rotated, err)
	}
	if _, err := w.Write(Line{Time: "b", LeftStatus: "1", RightStatus: "1"}); err != nil {
		t.Fatal(err)
	}

	oldHour := filepath.Join(root, "2026-03-01", "2026-03-01 09", "TitaniaTest_2026-03-01 09.txt")
	newHour := filepath.Join(folders.Hour, "TitaniaTest_2026-03-01 10.txt")
	if got := readLines(t, oldHour); len(got) != 2 {
		t.Fatalf("old hour log lines %q", got)
	}
	if got := readLines(t, newHour); len(got) != 2 || got[1] != "b,1,1" {
		t.Fatalf("new hour log lines %q", got)
	}
	day := filepath.Join(root, "2026-03-01", "TitaniaTest_2026-03-01.txt")
	if got := readLines(t, day); len(got) != 3 {
		t.Fatalf("day log should span both hours with one header, got %q", got)
	}
	if got := readLines(t, w.RunLogPath()); len(got) != 3 {
		t.Fatalf("run log lines %q", got)
	}
}

func TestHeaderNotRepeatedForExistingFile(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2026, 3, 2, 0, 0, 1, 0, time.Local)
	hourDir := filepath.Join(root, "2026-03-02", "2026-03-02 00")
	if err := os.MkdirAll(hourDir, 0o755); err != nil {
		t.Fatal(err)
	}
	existing := filepath.Join(hourDir, "TitaniaTest_2026-03-02 00.txt")
	if err := os.WriteFile(existing, []byte("time,left_success,right_success\nprev,1,1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := New(root, Columns{}, now)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := w.Rotate(now); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(Line{Time: "next", LeftStatus: "0", RightStatus: "1"}); err != nil {
		t.Fatal(err)
	}
	got := readLines(t, existing)
	if len(got) != 3 || got[2] != "next,0,1" {
		t.Fatalf("expected append without new header, got %q", got)
	}
}

func TestFormatSanitizesFields(t *testing.T) {
	cols := Columns{External: true}
	got := cols.Format(Line{
		Time:           "t",
		ExternalData:   "T=25.5,H=40\r\n",
		LeftStatus:     "DRIVER FAULT: bad, worse",
		RightStatus:    "1",
		ExternalStatus: "1",
	})
	want := "t,T=25.5.H=40,DRIVER FAULT: bad. worse,1,1"
	if got != want {
		t.Fatalf("Format = %q, want %q", got, want)
	}
	if strings.Count(got, ",") != strings.Count(cols.Header(), ",") {
		t.Fatal("field count must match header")
	}
}

func TestWriteBeforeRotateFails(t *testing.T) {
	w, err := New(t.TempDir(), Columns{}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(Line{}); err == nil {
		t.Fatal("expected error writing before rotation")
	}
	if _, err := w.WriteBestEffort(Line{Time: "x"}); err != nil {
		t.Fatalf("best effort write to run log: %v", err)
	}
	if got := readLines(t, w.RunLogPath()); len(got) != 2 {
		t.Fatalf("run log lines %q", got)
	}
}

func TestTagKeepsMicroseconds(t *testing.T) {
	a := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.Local)
	b := a.Add(200 * time.Millisecond)
	if got := Tag(a); got != "2026-03-01_10_00_00_123456" {
		t.Fatalf("Tag = %q", got)
	}
	if Tag(a) == Tag(b) {
		t.Fatalf("tags within one second must differ: %s", Tag(a))
	}
	if got := Tag(time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)); got != "2026-03-01_10_00_00_000000" {
		t.Fatalf("whole second Tag = %q", got)
	}
}

func TestRotateAcrossMidnight(t *testing.T) {
	root := t.TempDir()
	start := time.Date(2026, 3, 1, 23, 59, 59, 0, time.Local)
	w, err := New(root, Columns{}, start)
	if err != nil {
		t.Fatal(err)
	}
	for _, step := range []struct {
		at   time.Time
		text string
	}{
		{start, "a"},
		{start.Add(500 * time.Millisecond), "b"},
		{start.Add(2 * time.Second), "c"},
		{start.Add(2500 * time.Millisecond), "d"},
	} {
		if _, _, err := w.Rotate(step.at); err != nil {
			t.Fatalf("Rotate(%s): %v", step.at, err)
		}
		if _, err := w.Write(Line{Time: step.text, LeftStatus: "1", RightStatus: "1"}); err != nil {
			t.Fatal(err)
		}
	}

	header := Columns{}.Header()
	countHeaders := func(lines []string) int {
		n := 0
		for _, line := range lines {
			if line == header {
				n++
			}
		}
		return n
	}
	for _, tc := range []struct {
		path  string
		lines int
	}{
		{filepath.Join(root, "2026-03-01", "TitaniaTest_2026-03-01.txt"), 3},
		{filepath.Join(root, "2026-03-02", "TitaniaTest_2026-03-02.txt"), 3},
		{filepath.Join(root, "2026-03-02", "2026-03-02 00", "TitaniaTest_2026-03-02 00.txt"), 3},
		{w.RunLogPath(), 5},
	} {
		got := readLines(t, tc.path)
		if len(got) != tc.lines || countHeaders(got) != 1 || got[0] != header {
			t.Fatalf("%s: want %d lines with one leading header, got %q", tc.path, tc.lines, got)
		}
	}
	if got := readLines(t, filepath.Join(root, "2026-03-02", "TitaniaTest_2026-03-02.txt")); got[1] != "c,1,1" {
		t.Fatalf("new day log should start with the first record after midnight, got %q", got)
	}
}

func TestPartialWriteReportsWrittenDestinations(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	w, err := New(root, Columns{}, now)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := w.Rotate(now); err != nil {
		t.Fatal(err)
	}
	dayLog := filepath.Join(root, "2026-03-01", "TitaniaTest_2026-03-01.txt")
	if err := os.Remove(dayLog); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(dayLog, 0o755); err != nil {
		t.Fatal(err)
	}

	line := Line{Time: "x", LeftStatus: "1", RightStatus: "1"}
	_, err = w.Write(line)
	var partial *PartialWriteError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialWriteError, got %v", err)
	}
	if len(partial.Written) != 1 || partial.Written[0] != RotationNone {
		t.Fatalf("only the run log should be written, got %v", partial.Written)
	}

	if _, err := w.WriteBestEffort(line, partial.Written...); err == nil {
		t.Fatal("day log failure should still be reported")
	}
	if got := readLines(t, w.RunLogPath()); len(got) != 2 {
		t.Fatalf("run log must not repeat the record, got %q", got)
	}
	hourLog := filepath.Join(root, "2026-03-01", "2026-03-01 10", "TitaniaTest_2026-03-01 10.txt")
	if got := readLines(t, hourLog); len(got) != 2 || got[1] != "x,1,1" {
		t.Fatalf("hour log should get the best-effort line, got %q", got)
	}
}
