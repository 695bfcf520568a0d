package kms

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/NeowayLabs/drmkit"
	"github.com/NeowayLabs/drmkit/mode"
)

type (
	// Device is one opened DRM node together with its buffer allocator
	// and plane allocator.
	Device struct {
		card   Card
		alloc  Allocator
		planes LayerAllocator
		log    logrus.FieldLogger

		supportsModifiers bool
		cursorWidth       uint32
		cursorHeight      uint32
		hasCursorSize     bool
	}

	Option func(*options)

	options struct {
		log          logrus.FieldLogger
		newAllocator func(fd uintptr) (Allocator, error)
		planes       LayerAllocator
	}
)

func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

// WithAllocator creates the GPU buffer allocator from the device fd,
// e.g. gbm.NewAllocator. Without it only dumb buffers are available.
func WithAllocator(fn func(fd uintptr) (Allocator, error)) Option {
	return func(o *options) { o.newAllocator = fn }
}

func WithLayerAllocator(a LayerAllocator) Option {
	return func(o *options) { o.planes = a }
}

// Open opens the DRM node at path, e.g. /dev/dri/card0.
func Open(path string, opts ...Option) (*Device, error) {
	card, err := mode.OpenCard(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	dev, err := New(card, opts...)
	if err != nil {
		card.Close()
		return nil, err
	}
	return dev, nil
}

// New sets up a Device on an opened card. It enables universal planes
// and the atomic API and reads the device capabilities once.
func New(card Card, opts ...Option) (*Device, error) {
	o := options{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	if err := card.SetClientCap(drm.ClientCapUniversalPlanes, 1); err != nil {
		return nil, fmt.Errorf("enable universal planes: %w", err)
	}
	if err := card.SetClientCap(drm.ClientCapAtomic, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoAtomic, err)
	}

	d := &Device{
		card:   card,
		planes: o.planes,
		log:    o.log,
	}
	if v, err := card.GetCap(drm.CapAddFB2Modifiers); err == nil && v != 0 {
		d.supportsModifiers = true
	}
	w, errW := card.GetCap(drm.CapCursorWidth)
	h, errH := card.GetCap(drm.CapCursorHeight)
	if errW == nil && errH == nil && w > 0 && h > 0 {
		d.cursorWidth, d.cursorHeight = uint32(w), uint32(h)
		d.hasCursorSize = true
	}

	if o.newAllocator != nil {
		alloc, err := o.newAllocator(card.Fd())
		if err != nil {
			return nil, fmt.Errorf("create buffer allocator: %w", err)
		}
		d.alloc = alloc
	}
	if d.planes == nil {
		d.planes = NewPlaneAllocator(card, o.log)
	}

	d.log.WithFields(logrus.Fields{
		"modifiers":   d.supportsModifiers,
		"cursor_size": fmt.Sprintf("%dx%d", d.cursorWidth, d.cursorHeight),
		"allocator":   d.alloc != nil,
	}).Debug("drm device ready")
	return d, nil
}

// Close releases the allocator, then the card. Everything created from
// the device must be closed before.
func (d *Device) Close() error {
	var errs []error
	if d.alloc != nil {
		errs = append(errs, d.alloc.Close())
		d.alloc = nil
	}
	errs = append(errs, d.card.Close())
	return errors.Join(errs...)
}

func (d *Device) Card() Card { return d.card }

// SupportsModifiers reports whether AddFB2 accepts explicit modifiers.
func (d *Device) SupportsModifiers() bool { return d.supportsModifiers }

// DesiredCursorSize is the cursor plane size advertised by the driver.
func (d *Device) DesiredCursorSize() (width, height uint32, ok bool) {
	return d.cursorWidth, d.cursorHeight, d.hasCursorSize
}

// CreateDumbBuffer allocates a CPU writable single plane buffer.
func (d *Device) CreateDumbBuffer(width, height, bpp uint32, format drm.Format, modifier uint64) (*Buffer, error) {
	if width == 0 || height == 0 {
		return nil, ErrInvalidSize
	}
	fb, err := d.card.CreateDumb(width, height, bpp)
	if err != nil {
		d.log.WithError(err).WithFields(logrus.Fields{
			"width":  width,
			"height": height,
			"bpp":    bpp,
		}).Error("cannot create dumb buffer")
		return nil, fmt.Errorf("create dumb buffer %dx%d: %w", width, height, err)
	}

	planes := []Plane{{Handle: fb.Handle, Stride: fb.Pitch, Size: fb.Size}}
	mem := &dumbMemory{card: d.card, handle: fb.Handle, pitch: fb.Pitch, size: fb.Size}
	return newBuffer(width, height, format, modifier, planes, mem), nil
}

// CreateGBMBuffer allocates through the GPU allocator. With a non empty
// modifiers list the allocator picks one of them.
func (d *Device) CreateGBMBuffer(width, height uint32, format drm.Format, modifiers []uint64, usage uint32) (*Buffer, error) {
	if d.alloc == nil {
		return nil, ErrNoAllocator
	}
	if width == 0 || height == 0 {
		return nil, ErrInvalidSize
	}
	bo, err := d.alloc.CreateBufferObject(width, height, uint32(format), modifiers, usage)
	if err != nil {
		d.log.WithError(err).WithFields(logrus.Fields{
			"width":  width,
			"height": height,
			"format": format.String(),
		}).Error("cannot create buffer object")
		return nil, fmt.Errorf("create buffer object %dx%d %s: %w", width, height, format, err)
	}

	n := bo.PlaneCount()
	if n <= 0 || n > 4 {
		bo.Destroy()
		return nil, fmt.Errorf("buffer object with %d planes", n)
	}
	format = drm.Format(bo.Format())
	planes := make([]Plane, n)
	for i := range planes {
		// Size stays zero for planes of formats with unknown layout
		rows, _ := format.PlaneHeight(i, height)
		planes[i] = Plane{
			Handle: bo.Handle(i),
			Offset: bo.Offset(i),
			Stride: bo.Stride(i),
			Size:   uint64(bo.Stride(i)) * uint64(rows),
		}
	}

	modifier := drm.ModifierInvalid
	if len(modifiers) > 0 {
		modifier = bo.Modifier()
	}
	return newBuffer(width, height, format, modifier, planes, &boMemory{bo: bo}), nil
}

// AddFramebuffer registers all planes of b as one framebuffer. Explicit
// modifiers are passed when b has one.
func (d *Device) AddFramebuffer(b *Buffer) (*Framebuffer, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if len(b.Planes) == 0 || len(b.Planes) > 4 {
		return nil, fmt.Errorf("%w: %d planes", ErrInvalidPlane, len(b.Planes))
	}

	fb := &mode.FB2{
		Width:  b.Width,
		Height: b.Height,
		Format: uint32(b.Format),
	}
	for i, p := range b.Planes {
		fb.Handles[i] = p.Handle
		fb.Pitches[i] = p.Stride
		fb.Offsets[i] = p.Offset
		if b.Modifier != drm.ModifierInvalid {
			fb.Modifiers[i] = b.Modifier
			fb.Flags |= mode.FBModifiers
		}
	}

	id, err := d.card.AddFB2(fb)
	if err != nil {
		d.log.WithError(err).WithFields(logrus.Fields{
			"width":    b.Width,
			"height":   b.Height,
			"format":   b.Format.String(),
			"modifier": fmt.Sprintf("0x%x", b.Modifier),
		}).Warn("cannot add framebuffer")
		return nil, fmt.Errorf("add framebuffer: %w", err)
	}
	return &Framebuffer{Buffer: b, ID: id, card: d.card}, nil
}

// OpenFirstConnectedOutput drives the first connected connector with
// the CRTC found by mode.PickCrtc. The CRTC's active mode is kept when
// there is one, otherwise the connector's preferred mode is used.
//
// The first Present only sets MODE_ID and ACTIVE on the CRTC, it does
// not route the connector. When the connector is not already driven by
// the picked CRTC, for instance after a cold boot without a console,
// the kernel may reject that commit with EINVAL.
func (d *Device) OpenFirstConnectedOutput() (*Output, error) {
	res, err := d.card.Resources()
	if err != nil {
		return nil, fmt.Errorf("Cannot retrieve resources: %w", err)
	}
	conn, err := mode.PickConnector(d.card, res)
	if err != nil {
		return nil, err
	}
	crtcID, err := mode.PickCrtc(d.card, res, conn)
	if err != nil {
		return nil, err
	}

	var info mode.Info
	crtc, err := d.card.Crtc(crtcID)
	if err == nil && crtc.ModeValid != 0 {
		info = crtc.Mode
	} else if info, err = mode.PreferredMode(conn); err != nil {
		return nil, err
	}
	if !d.routed(conn, crtcID) {
		d.log.WithFields(logrus.Fields{
			"crtc":      crtcID,
			"connector": conn.ID,
		}).Warn("connector is not routed to the crtc, the first commit may be rejected")
	}
	return d.OpenOutput(crtcID, conn.ID, info)
}

// routed reports whether conn's current encoder feeds from crtcID.
func (d *Device) routed(conn *mode.Connector, crtcID uint32) bool {
	if conn.EncoderID == 0 {
		return false
	}
	enc, err := d.card.Encoder(conn.EncoderID)
	return err == nil && enc.CrtcID == crtcID
}

// OpenOutput binds an Output to an explicit CRTC, connector and mode.
func (d *Device) OpenOutput(crtcID, connectorID uint32, info mode.Info) (*Output, error) {
	planes, err := d.planes.NewOutput(crtcID)
	if err != nil {
		return nil, fmt.Errorf("plane allocator for crtc %d: %w", crtcID, err)
	}
	o := &Output{
		dev:         d,
		crtcID:      crtcID,
		connectorID: connectorID,
		mode:        info,
		planes:      planes,
		fbCache:     make(map[*Buffer]*Framebuffer),
		log: d.log.WithFields(logrus.Fields{
			"crtc":      crtcID,
			"connector": connectorID,
		}),
	}
	o.log.WithField("mode", fmt.Sprintf("%dx%d@%d", info.Hdisplay, info.Vdisplay, info.Vrefresh)).
		Info("output opened")
	return o, nil
}
