// Package stopkey lets an operator end a run by pressing 'q'.
package stopkey

import (
	"bufio"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"titaniatest/internal/logging"
)

// ctrlC arrives as a byte because raw mode disables signal generation.
const ctrlC = 0x03

// Watcher owns the terminal state while a run is active.
type Watcher struct {
	fd       int
	oldState *term.State
}

// Watch puts in into raw mode and calls stop when 'q', 'Q' or Ctrl+C is
// read. When in is not a terminal Watch does nothing and returns a watcher
// whose Restore is a no-op; signals still stop the run.
func Watch(in *os.File, stop func(), logger *slog.Logger) *Watcher {
	logger = logging.NewComponentLogger(logger, "stopkey")
	if in == nil || !isatty.IsTerminal(in.Fd()) {
		logger.Debug("stdin is not a terminal; stop key disabled")
		return &Watcher{fd: -1}
	}
	fd := int(in.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		logging.WarnWithContext(logger, "stop key unavailable", "stopkey_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "stop the run with Ctrl+C or SIGTERM"),
			logging.String(logging.FieldImpact, "'q' will not stop the run"),
		)
		return &Watcher{fd: -1}
	}
	if err := keepOutputProcessing(fd); err != nil {
		logger.Debug("output processing not restored", logging.Error(err))
	}
	go Listen(in, stop)
	return &Watcher{fd: fd, oldState: state}
}

// Restore returns the terminal to the mode it had before Watch.
func (w *Watcher) Restore() error {
	if w == nil || w.oldState == nil {
		return nil
	}
	state := w.oldState
	w.oldState = nil
	return term.Restore(w.fd, state)
}

// Listen reads r until a stop key arrives or r ends. It reports whether
// stop was called.
func Listen(r io.Reader, stop func()) bool {
	reader := bufio.NewReader(r)
	for {
		b, err := reader.ReadByte()
		if err != nil {
			return false
		}
		switch b {
		case 'q', 'Q', ctrlC:
			stop()
			return true
		}
	}
}
