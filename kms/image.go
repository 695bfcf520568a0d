package kms

import (
	"fmt"
	"image"
	"image/color"

	"github.com/NeowayLabs/drmkit"
)

// Image is a draw.Image over a mapped 32 bpp plane stored as
// XRGB8888/ARGB8888, that is B, G, R, A in memory.
type Image struct {
	Pix    []uint8
	Stride int
	Rect   image.Rectangle

	// Opaque ignores the X byte of XRGB formats.
	Opaque bool
}

// Image wraps a live mapping of plane 0.
func (b *Buffer) Image(m *Mapping) (*Image, error) {
	if m == nil || m.buf != b || m.plane != 0 || m.Data == nil {
		return nil, ErrNotMapped
	}
	if b.Format.BytesPerPixel() != 4 {
		return nil, fmt.Errorf("%w: image view of %s", ErrUnsupported, b.Format)
	}
	need := uint64(m.Stride)*uint64(b.Height-1) + uint64(b.Width)*4
	if uint64(len(m.Data)) < need {
		return nil, fmt.Errorf("mapping of %d bytes too small for %dx%d", len(m.Data), b.Width, b.Height)
	}
	return &Image{
		Pix:    m.Data,
		Stride: int(m.Stride),
		Rect:   image.Rect(0, 0, int(b.Width), int(b.Height)),
		Opaque: b.Format == drm.FormatXRGB8888 || b.Format == drm.FormatXBGR8888,
	}, nil
}

func (p *Image) Bounds() image.Rectangle { return p.Rect }
func (p *Image) ColorModel() color.Model { return color.RGBAModel }
func (p *Image) PixOffset(x, y int) int  { return y*p.Stride + x*4 }

func (p *Image) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := p.PixOffset(x, y)
	a := p.Pix[i+3]
	if p.Opaque {
		a = 0xff
	}
	return color.RGBA{R: p.Pix[i+2], G: p.Pix[i+1], B: p.Pix[i+0], A: a}
}

func (p *Image) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	c1 := color.RGBAModel.Convert(c).(color.RGBA)
	p.Pix[i+0] = c1.B
	p.Pix[i+1] = c1.G
	p.Pix[i+2] = c1.R
	p.Pix[i+3] = c1.A
}
