package kms

import (
	"errors"
	"fmt"
	"image"

	"github.com/sirupsen/logrus"

	"github.com/NeowayLabs/drmkit/mode"
)

// Output is one scanout pipeline: a CRTC driving a connector with a
// fixed mode.
type Output struct {
	dev         *Device
	crtcID      uint32
	connectorID uint32
	mode        mode.Info

	planes LayerOutput
	layers []PlaneLayer

	// framebuffers registered on this output, by buffer identity
	fbCache map[*Buffer]*Framebuffer

	modeIDProp  uint32
	activeProp  uint32
	modeApplied bool
	modeBlob    uint32

	composited []int
	closed     bool
	log        logrus.FieldLogger
}

func (o *Output) CrtcID() uint32      { return o.crtcID }
func (o *Output) ConnectorID() uint32 { return o.connectorID }
func (o *Output) Mode() mode.Info     { return o.mode }

// Size is the active area of the mode in pixels.
func (o *Output) Size() (width, height int) {
	return int(o.mode.Hdisplay), int(o.mode.Vdisplay)
}

// NeedsComposition lists the layers of the last presented composition
// that did not get a hardware plane. The pointer layer, when present,
// has index len(Layers()).
func (o *Output) NeedsComposition() []int {
	return o.composited
}

// Present shows c on the output with a single non-blocking atomic
// commit. The first successful call also sets the mode. On failure the
// output is left as it was and the frame can be retried.
func (o *Output) Present(c *Composition) error {
	if o.closed {
		return ErrClosed
	}

	o.destroyLayers()
	o.composited = nil

	var zpos uint64
	for _, l := range c.Layers() {
		layer := o.newLayer()
		setLayerProperties(layer, o.framebufferID(l.Buffer), l.Dst, l.Src, zpos)
		zpos++
	}

	if p, ok := c.PointerLayer(); ok && p.Buffer != nil {
		w, h := o.Size()
		dst, src := ClipPointer(p.X, p.Y, p.HotX, p.HotY,
			int(p.Buffer.Width), int(p.Buffer.Height), w, h)
		if dst.Empty() {
			o.log.WithFields(logrus.Fields{"x": p.X, "y": p.Y}).Debug("pointer off screen")
		} else {
			layer := o.newLayer()
			setLayerProperties(layer, o.framebufferID(p.Buffer), dst, src, zpos)
		}
	}

	req := o.dev.card.NewAtomicRequest()
	flags := uint32(mode.AtomicNonblock)

	// The mode goes into the same request as the first planes, and
	// before Apply so the allocator's test commits see an active CRTC.
	var blob uint32
	if !o.modeApplied {
		var err error
		if blob, err = o.stageModeset(req); err != nil {
			return err
		}
		flags |= mode.AtomicAllowModeset
	}

	if err := o.planes.Apply(req, flags); err != nil {
		o.log.WithError(err).Error("plane allocation failed")
		o.rollbackModeset(blob)
		return fmt.Errorf("apply planes on crtc %d: %w", o.crtcID, err)
	}
	for i, layer := range o.layers {
		if layer.NeedsComposition() {
			o.composited = append(o.composited, i)
		}
	}
	if len(o.composited) > 0 {
		o.log.WithField("layers", o.composited).Debug("layers need composition")
	}

	if err := o.dev.card.AtomicCommit(req, flags); err != nil {
		o.log.WithError(err).WithField("flags", fmt.Sprintf("0x%x", flags)).Error("atomic commit failed")
		o.rollbackModeset(blob)
		return fmt.Errorf("atomic commit on crtc %d: %w", o.crtcID, err)
	}

	if !o.modeApplied {
		o.log.WithField("blob", blob).Info("mode set")
	}
	o.modeApplied = true
	return nil
}

func (o *Output) newLayer() PlaneLayer {
	layer := o.planes.NewLayer()
	o.layers = append(o.layers, layer)
	return layer
}

func (o *Output) destroyLayers() {
	for _, layer := range o.layers {
		layer.Destroy()
	}
	o.layers = nil
}

func setLayerProperties(layer PlaneLayer, fbID uint32, dst, src image.Rectangle, zpos uint64) {
	layer.SetProperty("FB_ID", uint64(fbID))
	layer.SetProperty("CRTC_X", uint64(int64(dst.Min.X)))
	layer.SetProperty("CRTC_Y", uint64(int64(dst.Min.Y)))
	layer.SetProperty("CRTC_W", uint64(dst.Dx()))
	layer.SetProperty("CRTC_H", uint64(dst.Dy()))
	// source coordinates are 16.16 fixed point
	layer.SetProperty("SRC_X", uint64(src.Min.X)<<16)
	layer.SetProperty("SRC_Y", uint64(src.Min.Y)<<16)
	layer.SetProperty("SRC_W", uint64(src.Dx())<<16)
	layer.SetProperty("SRC_H", uint64(src.Dy())<<16)
	layer.SetProperty("zpos", zpos)
}

// framebufferID returns the framebuffer of b on this output, registering
// it on first use. Zero means the registration failed; the layer is then
// left to composition and registration is retried next frame.
func (o *Output) framebufferID(b *Buffer) uint32 {
	if b == nil {
		return 0
	}
	if fb, ok := o.fbCache[b]; ok {
		return fb.ID
	}
	fb, err := o.dev.AddFramebuffer(b)
	if err != nil {
		o.log.WithError(err).Warn("layer buffer has no framebuffer")
		return 0
	}
	o.fbCache[b] = fb
	b.owners[o] = struct{}{}
	o.log.WithFields(logrus.Fields{
		"fb":     fb.ID,
		"width":  b.Width,
		"height": b.Height,
	}).Debug("framebuffer registered")
	return fb.ID
}

// Evict removes the framebuffer registered for b, if any. Buffer.Close
// calls it for every output that cached the buffer.
func (o *Output) Evict(b *Buffer) {
	fb, ok := o.fbCache[b]
	if !ok {
		return
	}
	delete(o.fbCache, b)
	delete(b.owners, o)
	if err := fb.Close(); err != nil {
		o.log.WithError(err).WithField("fb", fb.ID).Warn("cannot remove framebuffer")
	}
}

func (o *Output) stageModeset(req mode.Request) (uint32, error) {
	if err := o.resolveCrtcProperties(); err != nil {
		o.log.WithError(err).Error("cannot drive crtc")
		return 0, err
	}

	blob, err := o.dev.card.CreatePropertyBlob(o.mode.Bytes())
	if err != nil {
		o.log.WithError(err).Error("cannot create mode blob")
		return 0, fmt.Errorf("create mode blob: %w", err)
	}
	if err := req.AddProperty(o.crtcID, o.modeIDProp, uint64(blob)); err != nil {
		o.log.WithError(err).Error("cannot add MODE_ID")
		o.destroyBlob(blob)
		return 0, fmt.Errorf("add MODE_ID: %w", err)
	}
	if err := req.AddProperty(o.crtcID, o.activeProp, 1); err != nil {
		o.log.WithError(err).Error("cannot add ACTIVE")
		o.destroyBlob(blob)
		return 0, fmt.Errorf("add ACTIVE: %w", err)
	}

	o.modeBlob = blob
	return blob, nil
}

// rollbackModeset destroys a mode blob created by a Present that failed.
func (o *Output) rollbackModeset(blob uint32) {
	if blob == 0 {
		return
	}
	o.destroyBlob(blob)
	if o.modeBlob == blob {
		o.modeBlob = 0
	}
}

func (o *Output) destroyBlob(blob uint32) {
	if err := o.dev.card.DestroyPropertyBlob(blob); err != nil {
		o.log.WithError(err).WithField("blob", blob).Warn("cannot destroy mode blob")
	}
}

func (o *Output) resolveCrtcProperties() error {
	if o.modeIDProp != 0 && o.activeProp != 0 {
		return nil
	}
	props, err := o.dev.card.ObjectProperties(o.crtcID, mode.ObjectCrtc)
	if err != nil {
		return fmt.Errorf("crtc %d properties: %w", o.crtcID, err)
	}
	for _, id := range props.IDs {
		prop, err := o.dev.card.Property(id)
		if err != nil {
			return fmt.Errorf("property %d: %w", id, err)
		}
		switch prop.Name {
		case "MODE_ID":
			o.modeIDProp = prop.ID
		case "ACTIVE":
			o.activeProp = prop.ID
		}
	}
	if o.modeIDProp == 0 {
		return fmt.Errorf("%w: crtc %d MODE_ID", ErrPropertyNotFound, o.crtcID)
	}
	if o.activeProp == 0 {
		return fmt.Errorf("%w: crtc %d ACTIVE", ErrPropertyNotFound, o.crtcID)
	}
	return nil
}

// Close removes every framebuffer registered by the output and
// releases the plane layers and the mode blob. The CRTC keeps scanning
// out whatever was last committed.
func (o *Output) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true
	o.destroyLayers()
	o.planes.Close()

	var errs []error
	for b, fb := range o.fbCache {
		delete(b.owners, o)
		errs = append(errs, fb.Close())
	}
	o.fbCache = nil
	if o.modeBlob != 0 {
		errs = append(errs, o.dev.card.DestroyPropertyBlob(o.modeBlob))
		o.modeBlob = 0
	}
	return errors.Join(errs...)
}
