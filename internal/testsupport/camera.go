package testsupport

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"titaniatest/internal/camera"
)

// FakeCamera scripts the behaviour of one sensor. The script survives
// reconnects; every Connect hands out a fresh source backed by it.
type FakeCamera struct {
	mu sync.Mutex

	// GrabErrs is consumed one entry per grab; GrabErr applies afterwards.
	GrabErrs    []error
	GrabErr     error
	GrabFail    bool
	NilFrame    bool
	GrabbingErr error
	NotGrabbing bool
	Temperature float64
	TempErr     error
	ConfigErr   error

	Settings []camera.Settings
	Grabs    int
	Closes   int
}

func (c *FakeCamera) nextGrabErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Grabs++
	if len(c.GrabErrs) > 0 {
		err := c.GrabErrs[0]
		c.GrabErrs = c.GrabErrs[1:]
		return err
	}
	return c.GrabErr
}

// Set mutates the script under lock.
func (c *FakeCamera) Set(fn func(*FakeCamera)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

// FakeDriver connects FakeCameras by serial.
type FakeDriver struct {
	mu sync.Mutex

	Cameras    map[string]*FakeCamera
	IsEmulated bool
	// FailConnects makes the next n Connect calls fail.
	FailConnects int
	ConnectErr   error
	Connects     int
}

// NewFakeDriver returns a driver with a left and right camera registered
// under the given serials.
func NewFakeDriver(leftSerial, rightSerial string) (*FakeDriver, *FakeCamera, *FakeCamera) {
	left := &FakeCamera{Temperature: 41.5}
	right := &FakeCamera{Temperature: 42.25}
	return &FakeDriver{Cameras: map[string]*FakeCamera{leftSerial: left, rightSerial: right}}, left, right
}

func (d *FakeDriver) Emulated() bool { return d.IsEmulated }

func (d *FakeDriver) Connect(ctx context.Context, endpoint camera.Endpoint) (camera.Source, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Connects++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.FailConnects > 0 {
		d.FailConnects--
		if d.ConnectErr != nil {
			return nil, d.ConnectErr
		}
		return nil, errors.New("device not found")
	}
	cam, ok := d.Cameras[endpoint.Serial]
	if !ok {
		return nil, errors.New("unknown camera " + endpoint.Serial)
	}
	return &fakeSource{cam: cam}, nil
}

// ConnectCount returns the number of Connect calls so far.
func (d *FakeDriver) ConnectCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Connects
}

type fakeSource struct {
	cam      *FakeCamera
	grabbing bool
	closed   bool
	seq      uint64
}

func (s *fakeSource) Configure(settings camera.Settings) error {
	s.cam.mu.Lock()
	defer s.cam.mu.Unlock()
	s.cam.Settings = append(s.cam.Settings, settings)
	if s.cam.ConfigErr != nil {
		return s.cam.ConfigErr
	}
	s.grabbing = true
	return nil
}

func (s *fakeSource) IsGrabbing() (bool, error) {
	s.cam.mu.Lock()
	defer s.cam.mu.Unlock()
	if s.cam.GrabbingErr != nil {
		return false, s.cam.GrabbingErr
	}
	return s.grabbing && !s.closed && !s.cam.NotGrabbing, nil
}

func (s *fakeSource) Grab(time.Duration) (*camera.Frame, error) {
	if err := s.cam.nextGrabErr(); err != nil {
		return nil, err
	}
	s.cam.mu.Lock()
	defer s.cam.mu.Unlock()
	if s.cam.NilFrame {
		return nil, nil
	}
	s.seq++
	return &camera.Frame{
		Succeeded: !s.cam.GrabFail,
		Image:     image.NewGray(image.Rect(0, 0, 4, 4)),
		Sequence:  s.seq,
		Timestamp: time.Now(),
	}, nil
}

func (s *fakeSource) ReadTemperature() (float64, error) {
	s.cam.mu.Lock()
	defer s.cam.mu.Unlock()
	return s.cam.Temperature, s.cam.TempErr
}

func (s *fakeSource) Close() error {
	s.cam.mu.Lock()
	defer s.cam.mu.Unlock()
	s.closed = true
	s.cam.Closes++
	return nil
}
