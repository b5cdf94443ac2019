package telemetry

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"titaniatest/internal/logging"
	"titaniatest/internal/textutil"
)

// Status strings written to the external_success column.
const (
	StatusSuccess      = "1"
	StatusNotAttempted = "0"
	StatusDisconnected = "DISCONNECTED"
	failedPrefix       = "SERIAL FAILED. Likely disconnected: "
)

// State is the connection state of the channel.
type State int

const (
	StateDisconnected State = iota
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "disconnected"
}

// Port is the subset of a serial port the channel needs.
type Port interface {
	io.Reader
	io.Closer
	ResetInputBuffer() error
}

// Opener opens a named port.
type Opener func(name string) (Port, error)

// Reading is the result of one poll.
type Reading struct {
	// Data is set only when OK.
	Data   string
	Status string
	OK     bool
	Err    error
}

// Channel reads newline-terminated telemetry from one serial device. It is
// not safe for concurrent use.
type Channel struct {
	name       string
	open       Opener
	port       Port
	reader     *bufio.Reader
	state      State
	reconnects int
	logger     *slog.Logger
}

// New returns a channel for the named port. Call Open before polling.
func New(name string, open Opener, logger *slog.Logger) *Channel {
	return &Channel{
		name:   name,
		open:   open,
		state:  StateDisconnected,
		logger: logging.NewComponentLogger(logger, "telemetry"),
	}
}

func (c *Channel) Name() string { return c.name }

func (c *Channel) State() State { return c.state }

// Reconnects counts reconnect attempts, successful or not.
func (c *Channel) Reconnects() int { return c.reconnects }

// Open connects to the port and flushes stale input.
func (c *Channel) Open() error {
	if c.name == "" {
		return errors.New("no serial port selected")
	}
	port, err := c.open(c.name)
	if err != nil {
		c.state = StateDisconnected
		return fmt.Errorf("open serial port %s: %w", c.name, err)
	}
	c.port = port
	c.reader = bufio.NewReader(port)
	c.state = StateOpen
	if err := c.flush(); err != nil {
		c.closePort()
		return fmt.Errorf("flush serial port %s: %w", c.name, err)
	}
	return nil
}

// Poll flushes buffered input, reads two lines and keeps the second; the
// first may be a partial line left over from the previous cycle. On any
// fault exactly one reconnect is attempted and its failure is swallowed.
func (c *Channel) Poll() Reading {
	reading := c.read()
	if reading.OK {
		return reading
	}
	c.reconnect(reading)
	return reading
}

func (c *Channel) read() Reading {
	if c.state != StateOpen || c.port == nil {
		return Reading{Status: StatusDisconnected, Err: errors.New("serial port not open")}
	}
	if err := c.flush(); err != nil {
		return failure(err)
	}
	if _, err := c.reader.ReadBytes('\n'); err != nil {
		return failure(err)
	}
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return failure(err)
	}
	return Reading{Data: textutil.DecodeTelemetry(line), Status: StatusSuccess, OK: true}
}

func failure(err error) Reading {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrNoProgress) {
		return Reading{Status: StatusDisconnected, Err: err}
	}
	return Reading{Status: failedPrefix + err.Error(), Err: err}
}

func (c *Channel) flush() error {
	if err := c.port.ResetInputBuffer(); err != nil {
		return err
	}
	c.reader.Reset(c.port)
	return nil
}

func (c *Channel) reconnect(cause Reading) {
	c.reconnects++
	c.closePort()
	if err := c.Open(); err != nil {
		c.logger.Debug("serial reconnect failed",
			logging.String("port", c.name),
			logging.Error(err),
			logging.String(logging.FieldEventType, "serial_reconnect_failed"),
		)
		return
	}
	c.logger.Info("serial reconnected",
		logging.String("port", c.name),
		logging.String("cause", cause.Status),
		logging.String(logging.FieldEventType, "serial_reconnected"),
	)
}

func (c *Channel) closePort() {
	if c.port != nil {
		_ = c.port.Close()
	}
	c.port = nil
	c.reader = nil
	c.state = StateDisconnected
}

// Close releases the port.
func (c *Channel) Close() error {
	if c.port == nil {
		c.state = StateDisconnected
		return nil
	}
	err := c.port.Close()
	c.port = nil
	c.reader = nil
	c.state = StateDisconnected
	return err
}
