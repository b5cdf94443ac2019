package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every handler is nil")
	}

	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner, nil); h != inner {
		t.Fatal("expected the single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerEnabledIfAnyChildEnabled(t *testing.T) {
	var warnBuf, debugBuf bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug enabled through the debug child")
	}
}

func TestFanoutHandlerRespectsChildLevels(t *testing.T) {
	var console, events bytes.Buffer
	logger := slog.New(newFanoutHandler(
		slog.NewJSONHandler(&console, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&events, &slog.HandlerOptions{Level: slog.LevelWarn}),
	))

	logger.Info("frame saved")
	if console.Len() == 0 {
		t.Fatal("expected info record on console")
	}
	if events.Len() != 0 {
		t.Fatalf("expected warn-only child to drop info, got %s", events.String())
	}

	logger.Warn("camera reconnect")
	if !bytes.Contains(events.Bytes(), []byte("camera reconnect")) {
		t.Fatalf("expected warning in warn-only child, got %s", events.String())
	}
}

func TestFanoutHandlerWithAttrsAndGroup(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newFanoutHandler(slog.NewJSONHandler(&buf1, nil), slog.NewJSONHandler(&buf2, nil))

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String(FieldCamera, "left")}).WithGroup("grab"))
	logger.Info("grab", slog.Int("frames", 2))

	for i, buf := range []*bytes.Buffer{&buf1, &buf2} {
		if !bytes.Contains(buf.Bytes(), []byte(`"camera":"left"`)) {
			t.Fatalf("child %d missing attr: %s", i, buf.String())
		}
		if !bytes.Contains(buf.Bytes(), []byte(`"grab":{"frames":2}`)) {
			t.Fatalf("child %d missing group: %s", i, buf.String())
		}
	}
}

func TestTeeLogger(t *testing.T) {
	var baseBuf, teeBuf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&baseBuf, nil))
	logger := TeeLogger(base, slog.NewJSONHandler(&teeBuf, nil))

	logger.Info("teed message")

	if baseBuf.Len() == 0 || teeBuf.Len() == 0 {
		t.Fatalf("expected output in both sinks, base=%q tee=%q", baseBuf.String(), teeBuf.String())
	}

	var only bytes.Buffer
	TeeLogger(nil, slog.NewJSONHandler(&only, nil)).Info("no base")
	if only.Len() == 0 {
		t.Fatal("expected output with nil base")
	}
}

type failingHandler struct {
	slog.Handler
	err error
}

func (h failingHandler) Handle(context.Context, slog.Record) error { return h.err }

func TestFanoutHandlerReportsEveryChildError(t *testing.T) {
	var buf bytes.Buffer
	consoleErr := errors.New("console closed")
	fileErr := errors.New("disk full")
	h := newFanoutHandler(
		failingHandler{Handler: slog.NewJSONHandler(&buf, nil), err: consoleErr},
		slog.NewJSONHandler(&buf, nil),
		failingHandler{Handler: slog.NewJSONHandler(&buf, nil), err: fileErr},
	)

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "frame saved", 0))
	if !errors.Is(err, consoleErr) || !errors.Is(err, fileErr) {
		t.Fatalf("expected both child errors, got %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("frame saved")) {
		t.Fatal("healthy child should still receive the record")
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		value slog.Value
		want  string
	}{
		{slog.DurationValue(20*time.Second + 400*time.Microsecond), "20s"},
		{slog.DurationValue(1500 * time.Microsecond), "2ms"},
		{slog.StringValue("left"), "left"},
		{slog.StringValue("CAMERA TIMEOUT: 20s"), `"CAMERA TIMEOUT: 20s"`},
		{slog.StringValue(""), `""`},
		{slog.AnyValue(errors.New("no device")), `"no device"`},
		{slog.Float64Value(41.5), "41.5"},
	}
	for _, tt := range tests {
		if got := formatValue(tt.value); got != tt.want {
			t.Errorf("formatValue(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
	if got := attrString(slog.StringValue("two words")); got != "two words" {
		t.Errorf("attrString should not quote, got %q", got)
	}
}
