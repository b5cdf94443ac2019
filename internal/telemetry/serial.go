package telemetry

import (
	"go.bug.st/serial"
)

// DefaultBaudRate matches the auxiliary sensor firmware.
const DefaultBaudRate = 9600

// SerialOpener opens real serial ports at baud, 8N1.
func SerialOpener(baud int) Opener {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	return func(name string) (Port, error) {
		port, err := serial.Open(name, mode)
		if err != nil {
			return nil, err
		}
		return port, nil
	}
}
