package kms_test

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/NeowayLabs/drmkit"
	"github.com/NeowayLabs/drmkit/internal/fakecard"
	"github.com/NeowayLabs/drmkit/kms"
	"github.com/NeowayLabs/drmkit/mode"
)

var testMode = mode.Info{Hdisplay: 1920, Vdisplay: 1080, Vrefresh: 60}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newDevice(t *testing.T, card *fakecard.Card, opts ...kms.Option) *kms.Device {
	t.Helper()
	dev, err := kms.New(card, append([]kms.Option{kms.WithLogger(quietLogger())}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return dev
}

// setup returns a standard card with an output opened on it.
func setup(t *testing.T) (*fakecard.Card, *kms.Device, *kms.Output) {
	t.Helper()
	card := fakecard.Standard(testMode)
	dev := newDevice(t, card)
	out, err := dev.OpenFirstConnectedOutput()
	if err != nil {
		t.Fatal(err)
	}
	return card, dev, out
}

func dumb(t *testing.T, dev *kms.Device, w, h uint32, format drm.Format) *kms.Buffer {
	t.Helper()
	b, err := dev.CreateDumbBuffer(w, h, 32, format, drm.ModifierInvalid)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// fbOf returns the framebuffer id the card holds for the dumb buffer b.
func fbOf(t *testing.T, card *fakecard.Card, b *kms.Buffer) uint32 {
	t.Helper()
	for id, fb := range card.FBs {
		if fb.Handles[0] == b.Planes[0].Handle {
			return id
		}
	}
	t.Fatalf("no framebuffer for handle %d", b.Planes[0].Handle)
	return 0
}

type fakeBO struct {
	width, height, format uint32
	modifier              uint64
	data                  []byte
	mapped, destroyed     bool
}

func (bo *fakeBO) Width() uint32           { return bo.width }
func (bo *fakeBO) Height() uint32          { return bo.height }
func (bo *fakeBO) Format() uint32          { return bo.format }
func (bo *fakeBO) Modifier() uint64        { return bo.modifier }
func (bo *fakeBO) Handle(plane int) uint32 { return 7 }
func (bo *fakeBO) Destroy()                { bo.destroyed = true }

func (bo *fakeBO) semiPlanar() bool {
	return drm.Format(bo.format) == drm.FormatNV12
}

func (bo *fakeBO) PlaneCount() int {
	if bo.semiPlanar() {
		return 2
	}
	return 1
}

func (bo *fakeBO) Offset(plane int) uint32 {
	if bo.semiPlanar() {
		return uint32(plane) * bo.width * bo.height
	}
	return 0
}

func (bo *fakeBO) Stride(plane int) uint32 {
	if bo.semiPlanar() {
		return bo.width
	}
	return bo.width * 4
}

func (bo *fakeBO) Map() ([]byte, uint32, error) {
	bo.mapped = true
	return bo.data, bo.width * 4, nil
}

func (bo *fakeBO) Unmap() error {
	bo.mapped = false
	return nil
}

type fakeAllocator struct {
	card   *fakecard.Card
	bos    []*fakeBO
	closed bool
	// card state seen when Close was called
	cardClosedFirst bool
}

func (a *fakeAllocator) CreateBufferObject(width, height, format uint32, modifiers []uint64, usage uint32) (kms.BufferObject, error) {
	bo := &fakeBO{
		width:    width,
		height:   height,
		format:   format,
		modifier: drm.ModifierLinear,
		data:     make([]byte, width*height*4),
	}
	if len(modifiers) > 0 {
		bo.modifier = modifiers[len(modifiers)-1]
	}
	a.bos = append(a.bos, bo)
	return bo, nil
}

func (a *fakeAllocator) Close() error {
	a.closed = true
	a.cardClosedFirst = a.card.Closed
	return nil
}

func withFakeAllocator(a *fakeAllocator) kms.Option {
	return kms.WithAllocator(func(uintptr) (kms.Allocator, error) { return a, nil })
}
