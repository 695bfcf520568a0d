//go:build !linux || !cgo

package gbm

import "github.com/NeowayLabs/drmkit/kms"

type Device struct{}

func Create(fd uintptr) (*Device, error) {
	return nil, ErrUnavailable
}

func (d *Device) IsFormatSupported(format, usage uint32) bool { return false }

func (d *Device) Close() error { return ErrUnavailable }

func (d *Device) CreateBufferObject(width, height, format uint32, modifiers []uint64, usage uint32) (kms.BufferObject, error) {
	return nil, ErrUnavailable
}
