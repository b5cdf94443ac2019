package testsupport

import (
	"errors"
	"io"
	"sync"

	"titaniatest/internal/telemetry"
)

// FakePort feeds scripted bytes to a telemetry channel. Stale bytes are
// dropped by ResetInputBuffer; Pending bytes survive it.
type FakePort struct {
	mu       sync.Mutex
	Stale    []byte
	Pending  []byte
	ReadErr  error
	ResetErr error
	Resets   int
	Closed   bool
}

// Feed appends data that will be delivered after the next flush.
func (p *FakePort) Feed(data string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Pending = append(p.Pending, data...)
}

func (p *FakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Closed {
		return 0, errors.New("port closed")
	}
	if len(p.Stale) > 0 {
		n := copy(b, p.Stale)
		p.Stale = p.Stale[n:]
		return n, nil
	}
	if len(p.Pending) > 0 {
		n := copy(b, p.Pending)
		p.Pending = p.Pending[n:]
		return n, nil
	}
	if p.ReadErr != nil {
		return 0, p.ReadErr
	}
	return 0, io.EOF
}

func (p *FakePort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Resets++
	if p.ResetErr != nil {
		return p.ResetErr
	}
	p.Stale = nil
	return nil
}

func (p *FakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// FakeSerial hands out ports by name and counts opens. A name without a
// registered port fails to open.
type FakeSerial struct {
	mu    sync.Mutex
	Ports map[string]*FakePort
	Opens int
	// Fresh replaces a port after it is closed so reopen yields a new handle.
	Fresh func(name string) *FakePort
}

// Opener returns a telemetry.Opener backed by the fake.
func (s *FakeSerial) Opener() telemetry.Opener {
	return func(name string) (telemetry.Port, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.Opens++
		port, ok := s.Ports[name]
		if !ok || port == nil {
			return nil, errors.New("no such port " + name)
		}
		if port.Closed {
			if s.Fresh == nil {
				return nil, errors.New("port " + name + " unplugged")
			}
			port = s.Fresh(name)
			s.Ports[name] = port
		}
		return port, nil
	}
}

// OpenCount returns the number of open attempts.
func (s *FakeSerial) OpenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Opens
}
