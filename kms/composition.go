package kms

import "image"

type (
	// Layer shows the Src rectangle of Buffer at Dst, both in pixels.
	Layer struct {
		Buffer *Buffer
		Src    image.Rectangle
		Dst    image.Rectangle
	}

	// PointerLayer is the cursor: Buffer is drawn so that its hotspot
	// (HotX, HotY) lands on (X, Y).
	PointerLayer struct {
		Buffer     *Buffer
		HotX, HotY int
		X, Y       int
	}

	// Composition describes one frame: layers back to front, then the
	// pointer on top. Build a new one for every Present.
	Composition struct {
		layers  []Layer
		pointer *PointerLayer
	}
)

func NewComposition() *Composition {
	return &Composition{}
}

func (c *Composition) AddLayer(b *Buffer, src, dst image.Rectangle) {
	c.layers = append(c.layers, Layer{Buffer: b, Src: src, Dst: dst})
}

// AddPointerLayer sets the pointer layer. A composition holds at most
// one; a second call panics.
func (c *Composition) AddPointerLayer(b *Buffer, hotX, hotY, x, y int) {
	if c.pointer != nil {
		panic("kms: composition already has a pointer layer")
	}
	c.pointer = &PointerLayer{Buffer: b, HotX: hotX, HotY: hotY, X: x, Y: y}
}

func (c *Composition) Layers() []Layer {
	return c.layers
}

func (c *Composition) PointerLayer() (PointerLayer, bool) {
	if c.pointer == nil {
		return PointerLayer{}, false
	}
	return *c.pointer, true
}
