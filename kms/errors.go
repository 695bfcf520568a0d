package kms

import "errors"

var (
	ErrClosed           = errors.New("kms: use of closed object")
	ErrInvalidSize      = errors.New("kms: buffer width and height must be positive")
	ErrInvalidPlane     = errors.New("kms: plane index out of range")
	ErrAlreadyMapped    = errors.New("kms: plane already mapped")
	ErrNotMapped        = errors.New("kms: mapping is not live")
	ErrNoAllocator      = errors.New("kms: device has no buffer allocator")
	ErrNoAtomic         = errors.New("kms: driver does not support atomic mode setting")
	ErrPropertyNotFound = errors.New("kms: property not found")
	ErrUnsupported      = errors.New("kms: unsupported")
)
