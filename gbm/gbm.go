// Package gbm binds the parts of libgbm needed to allocate scanout
// buffers. A Device implements kms.Allocator:
//
//	dev, err := kms.Open("/dev/dri/card0", kms.WithAllocator(gbm.NewAllocator))
//
// Without cgo every constructor fails with ErrUnavailable.
package gbm

import (
	"errors"

	"github.com/NeowayLabs/drmkit/kms"
)

// Buffer object usage flags, the GBM_BO_USE_* values.
const (
	BOUseScanout   = 1 << 0
	BOUseCursor    = 1 << 1
	BOUseRendering = 1 << 2
	BOUseWrite     = 1 << 3
	BOUseLinear    = 1 << 4
)

var (
	ErrUnavailable = errors.New("gbm: built without cgo")
	ErrDestroyed   = errors.New("gbm: use of destroyed object")
)

// NewAllocator creates a Device on the DRM fd. It has the signature
// kms.WithAllocator expects.
func NewAllocator(fd uintptr) (kms.Allocator, error) {
	dev, err := Create(fd)
	if err != nil {
		return nil, err
	}
	return dev, nil
}
