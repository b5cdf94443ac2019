//go:build !(linux && (amd64 || arm64))

package camera

import (
	"context"
	"errors"
)

// V4L2Driver is only available on 64-bit Linux.
type V4L2Driver struct {
	Width       int
	Height      int
	PixelFormat string
}

func (d *V4L2Driver) Emulated() bool { return false }

func (d *V4L2Driver) Connect(context.Context, Endpoint) (Source, error) {
	return nil, errors.New("physical cameras require 64-bit linux; use --virtual")
}
