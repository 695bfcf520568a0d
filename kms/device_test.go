package kms_test

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/sys/unix"

	"github.com/NeowayLabs/drmkit"
	"github.com/NeowayLabs/drmkit/internal/fakecard"
	"github.com/NeowayLabs/drmkit/kms"
	"github.com/NeowayLabs/drmkit/mode"
)

func TestNewEnablesClientCaps(t *testing.T) {
	card := fakecard.Standard(testMode)
	newDevice(t, card)
	for _, cap := range []uint64{drm.ClientCapUniversalPlanes, drm.ClientCapAtomic} {
		if card.ClientCaps[cap] != 1 {
			t.Errorf("client cap %d not enabled", cap)
		}
	}
}

func TestNewWithoutAtomic(t *testing.T) {
	card := fakecard.Standard(testMode)
	card.DeniedClientCaps[drm.ClientCapAtomic] = true
	_, err := kms.New(card, kms.WithLogger(quietLogger()))
	if !errors.Is(err, kms.ErrNoAtomic) {
		t.Fatalf("got %v, want ErrNoAtomic", err)
	}
}

func TestDeviceCaps(t *testing.T) {
	card := fakecard.Standard(testMode)
	dev := newDevice(t, card)
	if !dev.SupportsModifiers() {
		t.Error("modifiers cap not seen")
	}
	w, h, ok := dev.DesiredCursorSize()
	if !ok || w != 64 || h != 64 {
		t.Errorf("cursor size %dx%d %v, want 64x64", w, h, ok)
	}

	card = fakecard.Standard(testMode)
	card.Caps[drm.CapAddFB2Modifiers] = 0
	delete(card.Caps, drm.CapCursorHeight)
	dev = newDevice(t, card)
	if dev.SupportsModifiers() {
		t.Error("modifiers reported without the cap")
	}
	if _, _, ok := dev.DesiredCursorSize(); ok {
		t.Error("cursor size reported without the cap")
	}
}

func TestDeviceCloseReleasesAllocatorFirst(t *testing.T) {
	card := fakecard.Standard(testMode)
	alloc := &fakeAllocator{card: card}
	dev := newDevice(t, card, withFakeAllocator(alloc))
	if err := dev.Close(); err != nil {
		t.Fatal(err)
	}
	if !alloc.closed || !card.Closed {
		t.Fatalf("allocator closed %v, card closed %v", alloc.closed, card.Closed)
	}
	if alloc.cardClosedFirst {
		t.Error("card closed before the allocator")
	}
}

func TestAllocatorError(t *testing.T) {
	card := fakecard.Standard(testMode)
	_, err := kms.New(card,
		kms.WithLogger(quietLogger()),
		kms.WithAllocator(func(uintptr) (kms.Allocator, error) { return nil, unix.ENODEV }),
	)
	if !errors.Is(err, unix.ENODEV) {
		t.Fatalf("got %v, want ENODEV", err)
	}
}

func TestCreateBufferInvalidSize(t *testing.T) {
	card := fakecard.Standard(testMode)
	dev := newDevice(t, card, withFakeAllocator(&fakeAllocator{card: card}))
	if _, err := dev.CreateDumbBuffer(0, 10, 32, drm.FormatXRGB8888, drm.ModifierInvalid); !errors.Is(err, kms.ErrInvalidSize) {
		t.Errorf("dumb: got %v", err)
	}
	if _, err := dev.CreateGBMBuffer(10, 0, drm.FormatXRGB8888, nil, 0); !errors.Is(err, kms.ErrInvalidSize) {
		t.Errorf("gbm: got %v", err)
	}
}

func TestCreateDumbBufferError(t *testing.T) {
	card := fakecard.Standard(testMode)
	card.FailCreateDumb = unix.ENOMEM
	dev := newDevice(t, card)
	if _, err := dev.CreateDumbBuffer(10, 10, 32, drm.FormatXRGB8888, drm.ModifierInvalid); !errors.Is(err, unix.ENOMEM) {
		t.Fatalf("got %v, want ENOMEM", err)
	}
}

func TestCreateGBMBufferWithoutAllocator(t *testing.T) {
	dev := newDevice(t, fakecard.Standard(testMode))
	if _, err := dev.CreateGBMBuffer(64, 64, drm.FormatARGB8888, nil, 0); !errors.Is(err, kms.ErrNoAllocator) {
		t.Fatalf("got %v, want ErrNoAllocator", err)
	}
}

func TestAddFramebufferModifiers(t *testing.T) {
	const tiled = 0x0100000000000001

	card := fakecard.Standard(testMode)
	alloc := &fakeAllocator{card: card}
	dev := newDevice(t, card, withFakeAllocator(alloc))

	implicit, err := dev.CreateGBMBuffer(64, 64, drm.FormatARGB8888, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if implicit.Modifier != drm.ModifierInvalid {
		t.Errorf("implicit modifier = 0x%x", implicit.Modifier)
	}
	explicit, err := dev.CreateGBMBuffer(64, 64, drm.FormatARGB8888, []uint64{drm.ModifierLinear, tiled}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if explicit.Modifier != tiled {
		t.Errorf("explicit modifier = 0x%x, want 0x%x", explicit.Modifier, uint64(tiled))
	}

	for _, tc := range []struct {
		name     string
		buf      *kms.Buffer
		flags    uint32
		modifier uint64
	}{
		{"implicit", implicit, 0, 0},
		{"explicit", explicit, mode.FBModifiers, tiled},
	} {
		fb, err := dev.AddFramebuffer(tc.buf)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		got := card.FBs[fb.ID]
		if got.Flags != tc.flags || got.Modifiers[0] != tc.modifier {
			t.Errorf("%s: flags 0x%x modifier 0x%x, want 0x%x 0x%x",
				tc.name, got.Flags, got.Modifiers[0], tc.flags, tc.modifier)
		}
		if got.Handles[0] != 7 || got.Pitches[0] != 256 || got.Format != uint32(drm.FormatARGB8888) {
			t.Errorf("%s: unexpected framebuffer %+v", tc.name, got)
		}
		if err := fb.Close(); err != nil {
			t.Errorf("%s: close: %v", tc.name, err)
		}
	}
	if len(card.FBs) != 0 {
		t.Errorf("%d framebuffers left", len(card.FBs))
	}

	if err := explicit.Close(); err != nil {
		t.Fatal(err)
	}
	if !alloc.bos[1].destroyed {
		t.Error("buffer object not destroyed on Close")
	}
}

func TestGBMBufferPlaneSizes(t *testing.T) {
	card := fakecard.Standard(testMode)
	dev := newDevice(t, card, withFakeAllocator(&fakeAllocator{card: card}))

	b, err := dev.CreateGBMBuffer(64, 48, drm.FormatNV12, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Planes) != 2 {
		t.Fatalf("got %d planes, want 2", len(b.Planes))
	}
	// the chroma plane has half the rows
	for i, want := range []uint64{64 * 48, 64 * 24} {
		if got := b.Planes[i].Size; got != want {
			t.Errorf("plane %d size %d, want %d", i, got, want)
		}
	}
	if b.Planes[1].Offset != 64*48 {
		t.Errorf("chroma offset %d", b.Planes[1].Offset)
	}
}

func TestOpenFirstConnectedOutput(t *testing.T) {
	card := fakecard.New()
	crtc := card.AddCrtc()
	enc := card.AddEncoder(0x1)
	card.AddConnector(mode.Disconnected, testMode)
	preferred := mode.Info{Hdisplay: 1280, Vdisplay: 720, Vrefresh: 60, Type: mode.TypePreferred}
	conn := card.AddConnector(mode.Connected, testMode, preferred)
	card.Route(conn, enc, 0)
	card.AddPlane(mode.PlaneTypePrimary, 0x1)

	dev := newDevice(t, card)
	out, err := dev.OpenFirstConnectedOutput()
	if err != nil {
		t.Fatal(err)
	}
	if out.CrtcID() != crtc || out.ConnectorID() != conn {
		t.Errorf("got crtc %d connector %d, want %d %d", out.CrtcID(), out.ConnectorID(), crtc, conn)
	}
	if out.Mode() != preferred {
		t.Errorf("mode %+v, want preferred %+v", out.Mode(), preferred)
	}
	if w, h := out.Size(); w != 1280 || h != 720 {
		t.Errorf("size %dx%d", w, h)
	}
}

func TestOpenFirstConnectedOutputWarnsWhenUnrouted(t *testing.T) {
	for _, tc := range []struct {
		name   string
		routed bool
	}{
		{"routed", true},
		{"fallback crtc", false},
	} {
		card := fakecard.New()
		crtc := card.AddCrtc()
		enc := card.AddEncoder(0x1)
		conn := card.AddConnector(mode.Connected, testMode)
		if tc.routed {
			card.Route(conn, enc, crtc)
		} else {
			card.Route(conn, enc, 0)
		}
		card.AddPlane(mode.PlaneTypePrimary, 0x1)

		log, hook := logtest.NewNullLogger()
		out, err := newDevice(t, card, kms.WithLogger(log)).OpenFirstConnectedOutput()
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if out.CrtcID() != crtc {
			t.Errorf("%s: crtc %d, want %d", tc.name, out.CrtcID(), crtc)
		}

		warned := false
		for _, e := range hook.AllEntries() {
			if e.Level == logrus.WarnLevel && e.Data["connector"] == conn {
				warned = true
			}
		}
		if warned == tc.routed {
			t.Errorf("%s: warning logged = %v", tc.name, warned)
		}
	}
}

func TestOpenFirstConnectedOutputKeepsActiveMode(t *testing.T) {
	card := fakecard.Standard(testMode)
	active := mode.Info{Hdisplay: 800, Vdisplay: 600, Vrefresh: 75}
	card.SetCrtcMode(card.Crtcs[0], active)

	out, err := newDevice(t, card).OpenFirstConnectedOutput()
	if err != nil {
		t.Fatal(err)
	}
	if out.Mode() != active {
		t.Errorf("mode %+v, want the crtc's %+v", out.Mode(), active)
	}
}

func TestOpenFirstConnectedOutputNoConnector(t *testing.T) {
	card := fakecard.New()
	card.AddCrtc()
	card.AddConnector(mode.Disconnected, testMode)

	_, err := newDevice(t, card).OpenFirstConnectedOutput()
	if !errors.Is(err, mode.ErrNoConnector) {
		t.Fatalf("got %v, want ErrNoConnector", err)
	}
}
