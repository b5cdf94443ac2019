package devices

import (
	"fmt"
	"sort"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Port is one serial device.
type Port struct {
	Name    string
	USB     bool
	VID     string
	PID     string
	Serial  string
	Product string
}

// PortLister enumerates serial ports.
type PortLister interface {
	ListPorts() ([]Port, error)
}

// SystemPorts lists serial ports through the OS enumerator.
type SystemPorts struct{}

// ListPorts prefers the detailed USB listing and falls back to bare names
// when the platform cannot describe the ports.
func (SystemPorts) ListPorts() ([]Port, error) {
	detailed, err := enumerator.GetDetailedPortsList()
	if err == nil {
		ports := make([]Port, 0, len(detailed))
		for _, p := range detailed {
			ports = append(ports, Port{
				Name:    p.Name,
				USB:     p.IsUSB,
				VID:     p.VID,
				PID:     p.PID,
				Serial:  p.SerialNumber,
				Product: p.Product,
			})
		}
		sortPorts(ports)
		return ports, nil
	}

	names, listErr := serial.GetPortsList()
	if listErr != nil {
		return nil, fmt.Errorf("list serial ports: %w", listErr)
	}
	ports := make([]Port, 0, len(names))
	for _, name := range names {
		ports = append(ports, Port{Name: name})
	}
	sortPorts(ports)
	return ports, nil
}

func sortPorts(ports []Port) {
	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
}
