package camera

import (
	"context"
	"errors"
	"image"
	"math/rand/v2"
	"sync"
	"time"
)

// Emulated temperature range in degrees Celsius.
const (
	EmulatedTempMin = 30.0
	EmulatedTempMax = 60.0
)

// EmulatedDriver produces synthetic test-pattern frames paced at the
// configured frame rate.
type EmulatedDriver struct {
	Width  int
	Height int
	// Now and Sleep default to the wall clock.
	Now   func() time.Time
	Sleep func(time.Duration)
	// Seed makes temperature readings reproducible when non-zero.
	Seed uint64

	mu      sync.Mutex
	counter uint64
}

// NewEmulatedDriver returns a driver producing width x height frames.
func NewEmulatedDriver(width, height int) *EmulatedDriver {
	return &EmulatedDriver{Width: width, Height: height}
}

func (d *EmulatedDriver) Emulated() bool { return true }

func (d *EmulatedDriver) Connect(ctx context.Context, endpoint Endpoint) (Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if endpoint.Serial == "" {
		return nil, errors.New("emulated camera requires a serial")
	}
	d.mu.Lock()
	d.counter++
	stream := d.counter
	d.mu.Unlock()

	seed := d.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	sleep := d.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	width, height := d.Width, d.Height
	if width <= 0 {
		width = 64
	}
	if height <= 0 {
		height = 48
	}
	return &emulatedSource{
		serial: endpoint.Serial,
		width:  width,
		height: height,
		now:    now,
		sleep:  sleep,
		rng:    rand.New(rand.NewPCG(seed, stream)),
	}, nil
}

type emulatedSource struct {
	serial   string
	width    int
	height   int
	now      func() time.Time
	sleep    func(time.Duration)
	rng      *rand.Rand
	period   time.Duration
	next     time.Time
	sequence uint64
	grabbing bool
	closed   bool
}

func (s *emulatedSource) Configure(settings Settings) error {
	if s.closed {
		return errors.New("emulated camera closed")
	}
	if settings.FrameRate <= 0 {
		return errors.New("frame rate must be positive")
	}
	s.period = time.Duration(float64(time.Second) / settings.FrameRate)
	s.next = s.now()
	s.grabbing = true
	return nil
}

func (s *emulatedSource) IsGrabbing() (bool, error) {
	if s.closed {
		return false, wrapRuntime("is grabbing", errors.New("camera closed"))
	}
	return s.grabbing, nil
}

func (s *emulatedSource) Grab(timeout time.Duration) (*Frame, error) {
	if !s.grabbing {
		return nil, wrapRuntime("grab", errors.New("camera not grabbing"))
	}
	now := s.now()
	if wait := s.next.Sub(now); wait > 0 {
		if timeout > 0 && wait > timeout {
			s.sleep(timeout)
			return nil, ErrTimeout
		}
		s.sleep(wait)
		now = s.now()
	}
	s.next = now.Add(s.period)
	s.sequence++
	return &Frame{
		Succeeded: true,
		Image:     testPattern(s.width, s.height, s.sequence),
		Sequence:  s.sequence,
		Timestamp: now,
	}, nil
}

func (s *emulatedSource) ReadTemperature() (float64, error) {
	if s.closed {
		return 0, wrapRuntime("read temperature", errors.New("camera closed"))
	}
	return EmulatedTempMin + s.rng.Float64()*(EmulatedTempMax-EmulatedTempMin), nil
}

func (s *emulatedSource) Close() error {
	s.closed = true
	s.grabbing = false
	return nil
}

// testPattern draws a diagonal gradient that shifts with each frame.
func testPattern(width, height int, sequence uint64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	shift := int(sequence % 256)
	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+width]
		for x := range row {
			row[x] = uint8((x + y + shift) & 0xff)
		}
	}
	return img
}
