package main

import (
	"fmt"
	"image"
	"image/color"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"

	"github.com/NeowayLabs/drmkit/kms"
)

// drawOn maps plane 0 of b and hands its image view to fn.
func drawOn(b *kms.Buffer, fn func(img *kms.Image) error) error {
	m, err := b.Map(0)
	if err != nil {
		return err
	}
	defer b.Unmap(m)

	img, err := b.Image(m)
	if err != nil {
		return err
	}
	return fn(img)
}

// drawBanner writes text in the top left corner of img.
func drawBanner(img *kms.Image, text string, size float64) error {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return fmt.Errorf("parse font: %w", err)
	}

	c := freetype.NewContext()
	c.SetDPI(72)
	c.SetFont(f)
	c.SetFontSize(size)
	c.SetHinting(font.HintingFull)
	c.SetClip(img.Bounds())
	c.SetDst(img)
	c.SetSrc(image.NewUniform(color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}))

	margin := int(size / 2)
	pt := fixed.P(margin, margin).Add(fixed.Point26_6{Y: c.PointToFixed(size)})
	if _, err := c.DrawString(text, pt); err != nil {
		return fmt.Errorf("draw banner: %w", err)
	}
	return nil
}

var (
	arrowFill    = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	arrowOutline = color.RGBA{A: 0xff}
)

// drawArrow draws a pointer arrow with its tip, the hotspot, at the
// origin. Pixels outside the arrow are left untouched.
func drawArrow(img *kms.Image) {
	r := img.Bounds()
	n := r.Dy() * 3 / 4
	if w := r.Dx() * 3 / 2; w < n {
		n = w
	}
	for y := 0; y < n; y++ {
		edge := y * 2 / 3
		for x := 0; x <= edge; x++ {
			if x == 0 || x == edge || y == n-1 {
				img.Set(x, y, arrowOutline)
			} else {
				img.Set(x, y, arrowFill)
			}
		}
	}
}
