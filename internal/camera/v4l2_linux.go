//go:build linux && (amd64 || arm64)

package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	v4l2BufTypeVideoCapture = 1
	v4l2MemoryMMAP          = 1
	v4l2FieldNone           = 1

	v4l2CapVideoCapture = 0x00000001
	v4l2CapStreaming    = 0x04000000

	v4l2BufFlagError = 0x00000040

	v4l2CIDHFlip            = 0x00980914
	v4l2CIDVFlip            = 0x00980915
	v4l2CIDExposureAuto     = 0x009a0901
	v4l2CIDExposureAbsolute = 0x009a0902
	v4l2ExposureManual      = 1

	v4l2BufferCount = 4
)

var (
	pixelFormatGrey = fourcc('G', 'R', 'E', 'Y')
	pixelFormatYUYV = fourcc('Y', 'U', 'Y', 'V')
)

func fourcc(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

type v4l2Capability struct {
	Driver       [16]uint8
	Card         [32]uint8
	BusInfo      [32]uint8
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
	Reserved     [3]uint32
}

type v4l2PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
	Colorspace   uint32
	Priv         uint32
	Flags        uint32
	YcbcrEnc     uint32
	Quantization uint32
	XferFunc     uint32
}

type v4l2Format struct {
	Type uint32
	_    uint32
	Pix  v4l2PixFormat
	_    [200 - 48]byte
}

type v4l2CaptureParm struct {
	Capability   uint32
	CaptureMode  uint32
	Numerator    uint32
	Denominator  uint32
	ExtendedMode uint32
	ReadBuffers  uint32
	Reserved     [4]uint32
}

type v4l2StreamParm struct {
	Type    uint32
	Capture v4l2CaptureParm
	_       [200 - 40]byte
}

type v4l2RequestBuffers struct {
	Count        uint32
	Type         uint32
	Memory       uint32
	Capabilities uint32
	Flags        uint8
	Reserved     [3]uint8
}

type v4l2Buffer struct {
	Index     uint32
	Type      uint32
	BytesUsed uint32
	Flags     uint32
	Field     uint32
	_         uint32
	Timestamp unix.Timeval
	Timecode  [16]byte
	Sequence  uint32
	Memory    uint32
	Offset    uint32
	_         uint32
	Length    uint32
	Reserved2 uint32
	RequestFD uint32
	_         uint32
}

type v4l2Control struct {
	ID    uint32
	Value int32
}

const (
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | uintptr('V')<<8 | nr
}

var (
	vidiocQueryCap  = ioc(iocRead, 0, unsafe.Sizeof(v4l2Capability{}))
	vidiocSFmt      = ioc(iocRead|iocWrite, 5, unsafe.Sizeof(v4l2Format{}))
	vidiocReqBufs   = ioc(iocRead|iocWrite, 8, unsafe.Sizeof(v4l2RequestBuffers{}))
	vidiocQueryBuf  = ioc(iocRead|iocWrite, 9, unsafe.Sizeof(v4l2Buffer{}))
	vidiocQBuf      = ioc(iocRead|iocWrite, 15, unsafe.Sizeof(v4l2Buffer{}))
	vidiocDQBuf     = ioc(iocRead|iocWrite, 17, unsafe.Sizeof(v4l2Buffer{}))
	vidiocStreamOn  = ioc(iocWrite, 18, unsafe.Sizeof(int32(0)))
	vidiocStreamOff = ioc(iocWrite, 19, unsafe.Sizeof(int32(0)))
	vidiocSParm     = ioc(iocRead|iocWrite, 22, unsafe.Sizeof(v4l2StreamParm{}))
	vidiocSCtrl     = ioc(iocRead|iocWrite, 28, unsafe.Sizeof(v4l2Control{}))
)

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
		switch errno {
		case 0:
			return nil
		case unix.EINTR:
			continue
		default:
			return errno
		}
	}
}

// deviceError classifies an errno: a vanished or failing device is a runtime
// fault, anything else a generic driver fault.
func deviceError(op string, err error) error {
	if errors.Is(err, unix.ENODEV) || errors.Is(err, unix.EIO) || errors.Is(err, unix.ENXIO) {
		return wrapRuntime(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// V4L2Driver drives physical sensors through the Video4Linux2 streaming API.
type V4L2Driver struct {
	Width       int
	Height      int
	PixelFormat string
}

func (d *V4L2Driver) Emulated() bool { return false }

func (d *V4L2Driver) Connect(ctx context.Context, endpoint Endpoint) (Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if endpoint.Device == "" {
		return nil, fmt.Errorf("camera %s: no device node resolved", endpoint.Serial)
	}
	fd, err := unix.Open(endpoint.Device, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, deviceError("open "+endpoint.Device, err)
	}
	src := &v4l2Source{fd: fd, device: endpoint.Device, tempPath: endpoint.TemperaturePath}
	if err := src.init(d); err != nil {
		_ = src.Close()
		return nil, err
	}
	return src, nil
}

type v4l2Source struct {
	fd        int
	device    string
	tempPath  string
	width     int
	height    int
	format    uint32
	stride    int
	buffers   [][]byte
	streaming bool
}

func (s *v4l2Source) init(d *V4L2Driver) error {
	var capability v4l2Capability
	if err := ioctl(s.fd, vidiocQueryCap, unsafe.Pointer(&capability)); err != nil {
		return deviceError("query capabilities", err)
	}
	caps := capability.Capabilities
	if capability.DeviceCaps != 0 {
		caps = capability.DeviceCaps
	}
	if caps&v4l2CapVideoCapture == 0 || caps&v4l2CapStreaming == 0 {
		return fmt.Errorf("%s does not support streaming capture", s.device)
	}

	s.format = pixelFormatGrey
	if d.PixelFormat == "YUYV" {
		s.format = pixelFormatYUYV
	}
	format := v4l2Format{Type: v4l2BufTypeVideoCapture}
	format.Pix = v4l2PixFormat{
		Width:       uint32(d.Width),
		Height:      uint32(d.Height),
		PixelFormat: s.format,
		Field:       v4l2FieldNone,
	}
	if err := ioctl(s.fd, vidiocSFmt, unsafe.Pointer(&format)); err != nil {
		return deviceError("set format", err)
	}
	if format.Pix.PixelFormat != s.format {
		return fmt.Errorf("%s rejected pixel format %q", s.device, d.PixelFormat)
	}
	s.width = int(format.Pix.Width)
	s.height = int(format.Pix.Height)
	s.stride = int(format.Pix.BytesPerLine)

	req := v4l2RequestBuffers{Count: v4l2BufferCount, Type: v4l2BufTypeVideoCapture, Memory: v4l2MemoryMMAP}
	if err := ioctl(s.fd, vidiocReqBufs, unsafe.Pointer(&req)); err != nil {
		return deviceError("request buffers", err)
	}
	if req.Count == 0 {
		return fmt.Errorf("%s allocated no buffers", s.device)
	}
	for i := uint32(0); i < req.Count; i++ {
		buf := v4l2Buffer{Index: i, Type: v4l2BufTypeVideoCapture, Memory: v4l2MemoryMMAP}
		if err := ioctl(s.fd, vidiocQueryBuf, unsafe.Pointer(&buf)); err != nil {
			return deviceError("query buffer", err)
		}
		mem, err := unix.Mmap(s.fd, int64(buf.Offset), int(buf.Length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			return deviceError("mmap buffer", err)
		}
		s.buffers = append(s.buffers, mem)
	}
	return nil
}

func (s *v4l2Source) Configure(settings Settings) error {
	if settings.FrameRate > 0 {
		parm := v4l2StreamParm{Type: v4l2BufTypeVideoCapture}
		parm.Capture.Numerator = 1000
		parm.Capture.Denominator = uint32(math.Round(settings.FrameRate * 1000))
		if err := ioctl(s.fd, vidiocSParm, unsafe.Pointer(&parm)); err != nil {
			return deviceError("set frame rate", err)
		}
	}
	if settings.Exposure > 0 {
		if err := s.setControl(v4l2CIDExposureAuto, v4l2ExposureManual); err != nil {
			return deviceError("set manual exposure", err)
		}
		// V4L2 absolute exposure is expressed in 100 µs units.
		units := int32(math.Max(1, math.Round(settings.Exposure/100)))
		if err := s.setControl(v4l2CIDExposureAbsolute, units); err != nil {
			return deviceError("set exposure", err)
		}
	}
	if settings.MirrorX {
		if err := s.setControl(v4l2CIDHFlip, 1); err != nil {
			return deviceError("set horizontal flip", err)
		}
	}
	if settings.MirrorY {
		if err := s.setControl(v4l2CIDVFlip, 1); err != nil {
			return deviceError("set vertical flip", err)
		}
	}
	return s.start()
}

func (s *v4l2Source) setControl(id uint32, value int32) error {
	ctrl := v4l2Control{ID: id, Value: value}
	return ioctl(s.fd, vidiocSCtrl, unsafe.Pointer(&ctrl))
}

func (s *v4l2Source) start() error {
	if s.streaming {
		return nil
	}
	for i := range s.buffers {
		buf := v4l2Buffer{Index: uint32(i), Type: v4l2BufTypeVideoCapture, Memory: v4l2MemoryMMAP}
		if err := ioctl(s.fd, vidiocQBuf, unsafe.Pointer(&buf)); err != nil {
			return deviceError("queue buffer", err)
		}
	}
	bufType := int32(v4l2BufTypeVideoCapture)
	if err := ioctl(s.fd, vidiocStreamOn, unsafe.Pointer(&bufType)); err != nil {
		return deviceError("stream on", err)
	}
	s.streaming = true
	return nil
}

func (s *v4l2Source) IsGrabbing() (bool, error) {
	if !s.streaming {
		return false, nil
	}
	var capability v4l2Capability
	if err := ioctl(s.fd, vidiocQueryCap, unsafe.Pointer(&capability)); err != nil {
		return false, deviceError("query capabilities", err)
	}
	return true, nil
}

func (s *v4l2Source) Grab(timeout time.Duration) (*Frame, error) {
	if !s.streaming {
		return nil, wrapRuntime("grab", errors.New("stream not started"))
	}
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrTimeout
		}
		n, err := unix.Poll(fds, int(remaining.Milliseconds()))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return nil, deviceError("poll", err)
		}
		if n == 0 {
			return nil, ErrTimeout
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return nil, wrapRuntime("poll", fmt.Errorf("device %s reported revents 0x%x", s.device, fds[0].Revents))
		}
		break
	}

	buf := v4l2Buffer{Type: v4l2BufTypeVideoCapture, Memory: v4l2MemoryMMAP}
	if err := ioctl(s.fd, vidiocDQBuf, unsafe.Pointer(&buf)); err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return nil, ErrTimeout
		}
		return nil, deviceError("dequeue buffer", err)
	}
	frame := &Frame{
		Succeeded: buf.Flags&v4l2BufFlagError == 0 && buf.BytesUsed > 0,
		Sequence:  uint64(buf.Sequence),
		Timestamp: time.Unix(buf.Timestamp.Unix()),
	}
	if frame.Succeeded && int(buf.Index) < len(s.buffers) {
		frame.Image = s.decode(s.buffers[buf.Index][:buf.BytesUsed])
	}
	if err := ioctl(s.fd, vidiocQBuf, unsafe.Pointer(&buf)); err != nil {
		return frame, deviceError("requeue buffer", err)
	}
	return frame, nil
}

// decode copies the luma plane of the mapped buffer into a Gray image.
func (s *v4l2Source) decode(data []byte) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, s.width, s.height))
	bytesPerPixel := 1
	if s.format == pixelFormatYUYV {
		bytesPerPixel = 2
	}
	stride := s.stride
	if stride == 0 {
		stride = s.width * bytesPerPixel
	}
	for y := 0; y < s.height; y++ {
		rowStart := y * stride
		if rowStart >= len(data) {
			break
		}
		row := data[rowStart:min(rowStart+s.width*bytesPerPixel, len(data))]
		dst := img.Pix[y*img.Stride : y*img.Stride+s.width]
		if bytesPerPixel == 1 {
			copy(dst, row)
			continue
		}
		for x := 0; x < s.width && 2*x < len(row); x++ {
			dst[x] = row[2*x]
		}
	}
	return img
}

func (s *v4l2Source) ReadTemperature() (float64, error) {
	return readMillidegrees(s.tempPath)
}

func (s *v4l2Source) Close() error {
	var firstErr error
	if s.streaming {
		bufType := int32(v4l2BufTypeVideoCapture)
		if err := ioctl(s.fd, vidiocStreamOff, unsafe.Pointer(&bufType)); err != nil {
			firstErr = deviceError("stream off", err)
		}
		s.streaming = false
	}
	for _, mem := range s.buffers {
		if err := unix.Munmap(mem); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.buffers = nil
	if s.fd >= 0 {
		if err := unix.Close(s.fd); err != nil && firstErr == nil {
			firstErr = err
		}
		s.fd = -1
	}
	return firstErr
}
