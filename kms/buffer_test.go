package kms_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/NeowayLabs/drmkit"
	"github.com/NeowayLabs/drmkit/internal/fakecard"
	"github.com/NeowayLabs/drmkit/kms"
)

func TestFillCoversStridePadding(t *testing.T) {
	card := fakecard.Standard(testMode)
	dev := newDevice(t, card)
	b := dumb(t, dev, 30, 4, drm.FormatXRGB8888)
	defer b.Close()

	// 30 pixels take 120 bytes, the card pads rows to 128
	if b.Planes[0].Stride != 128 {
		t.Fatalf("stride = %d, want 128", b.Planes[0].Stride)
	}
	if err := b.Fill(0xff336699); err != nil {
		t.Fatal(err)
	}

	m, err := b.Map(0)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Unmap(m)
	if m.Stride != 128 || len(m.Data) != 128*4 {
		t.Fatalf("mapping stride %d size %d", m.Stride, len(m.Data))
	}
	for i := 0; i < len(m.Data); i += 4 {
		if v := binary.LittleEndian.Uint32(m.Data[i:]); v != 0xff336699 {
			t.Fatalf("word at %d = 0x%08x", i, v)
		}
	}
	if m.Data[0] != 0x99 || m.Data[3] != 0xff {
		t.Errorf("bytes not little endian: % x", m.Data[:4])
	}
}

func TestMapErrors(t *testing.T) {
	card := fakecard.Standard(testMode)
	dev := newDevice(t, card)
	b := dumb(t, dev, 16, 16, drm.FormatARGB8888)

	m, err := b.Map(0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Map(0); !errors.Is(err, kms.ErrAlreadyMapped) {
		t.Errorf("second Map: %v", err)
	}
	if err := b.Fill(0); !errors.Is(err, kms.ErrAlreadyMapped) {
		t.Errorf("Fill while mapped: %v", err)
	}
	if _, err := b.Map(1); !errors.Is(err, kms.ErrInvalidPlane) {
		t.Errorf("Map(1): %v", err)
	}
	if _, err := b.Map(-1); !errors.Is(err, kms.ErrInvalidPlane) {
		t.Errorf("Map(-1): %v", err)
	}

	if err := b.Unmap(m); err != nil {
		t.Fatal(err)
	}
	if err := b.Unmap(m); !errors.Is(err, kms.ErrNotMapped) {
		t.Errorf("second Unmap: %v", err)
	}
	if card.MapCalls != 1 || card.UnmapCalls != 1 {
		t.Errorf("map calls %d unmap calls %d", card.MapCalls, card.UnmapCalls)
	}

	other := dumb(t, dev, 16, 16, drm.FormatARGB8888)
	m, err = other.Map(0)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Unmap(m); !errors.Is(err, kms.ErrNotMapped) {
		t.Errorf("Unmap of a foreign mapping: %v", err)
	}
}

func TestFillReportsMapError(t *testing.T) {
	card := fakecard.Standard(testMode)
	dev := newDevice(t, card)
	b := dumb(t, dev, 16, 16, drm.FormatXRGB8888)

	card.FailMap = unix.ENOMEM
	if err := b.Fill(0); !errors.Is(err, unix.ENOMEM) {
		t.Fatalf("got %v, want ENOMEM", err)
	}
}

func TestBufferClose(t *testing.T) {
	card := fakecard.Standard(testMode)
	dev := newDevice(t, card)
	b := dumb(t, dev, 16, 16, drm.FormatXRGB8888)
	if _, err := b.Map(0); err != nil {
		t.Fatal(err)
	}

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if card.UnmapCalls != 1 {
		t.Errorf("live mapping not released: %d unmaps", card.UnmapCalls)
	}
	if len(card.Dumbs) != 0 {
		t.Errorf("%d dumb buffers left", len(card.Dumbs))
	}
	if _, err := b.Map(0); !errors.Is(err, kms.ErrClosed) {
		t.Errorf("Map after Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := dev.AddFramebuffer(b); !errors.Is(err, kms.ErrClosed) {
		t.Errorf("AddFramebuffer after Close: %v", err)
	}
}

func TestGBMBufferMapsFirstPlaneOnly(t *testing.T) {
	card := fakecard.Standard(testMode)
	alloc := &fakeAllocator{card: card}
	dev := newDevice(t, card, withFakeAllocator(alloc))
	b, err := dev.CreateGBMBuffer(8, 8, drm.FormatARGB8888, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if err := b.Fill(0x80ffffff); err != nil {
		t.Fatal(err)
	}
	if alloc.bos[0].mapped {
		t.Error("buffer object left mapped after Fill")
	}
	if v := binary.LittleEndian.Uint32(alloc.bos[0].data[60:]); v != 0x80ffffff {
		t.Errorf("pixel = 0x%08x", v)
	}
}
