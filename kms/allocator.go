package kms

import (
	"github.com/sirupsen/logrus"

	"github.com/NeowayLabs/drmkit/mode"
	"github.com/NeowayLabs/drmkit/planes"
)

// LayerAllocator decides which layer gets which hardware plane. The
// decision itself is opaque to Output: it declares per-layer property
// intents and lets Apply write the chosen plane state into the request.
type LayerAllocator interface {
	NewOutput(crtcID uint32) (LayerOutput, error)
}

// LayerOutput is the allocator state of one CRTC.
type LayerOutput interface {
	NewLayer() PlaneLayer
	// Apply appends the plane configuration to req. Layers that got no
	// plane report NeedsComposition afterwards.
	Apply(req mode.Request, flags uint32) error
	Close()
}

// PlaneLayer holds the property intents of one layer: FB_ID,
// CRTC_X/Y/W/H, SRC_X/Y/W/H (16.16 fixed point) and zpos.
type PlaneLayer interface {
	SetProperty(name string, value uint64)
	NeedsComposition() bool
	Destroy()
}

type planeAllocator struct {
	dev *planes.Device
}

// NewPlaneAllocator returns the default LayerAllocator, backed by
// package planes.
func NewPlaneAllocator(card planes.Card, log logrus.FieldLogger) LayerAllocator {
	return planeAllocator{dev: planes.NewDevice(card, planes.WithLogger(log))}
}

func (a planeAllocator) NewOutput(crtcID uint32) (LayerOutput, error) {
	out, err := a.dev.NewOutput(crtcID)
	if err != nil {
		return nil, err
	}
	return planeOutput{out}, nil
}

type planeOutput struct {
	*planes.Output
}

func (o planeOutput) NewLayer() PlaneLayer {
	return o.Output.NewLayer()
}
