package kms_test

import (
	"image"
	"testing"

	"github.com/NeowayLabs/drmkit/kms"
)

func TestCompositionKeepsLayerOrder(t *testing.T) {
	a, b := &kms.Buffer{}, &kms.Buffer{}
	c := kms.NewComposition()
	c.AddLayer(a, image.Rect(0, 0, 10, 10), image.Rect(5, 5, 15, 15))
	c.AddLayer(b, image.Rect(0, 0, 4, 4), image.Rect(0, 0, 4, 4))

	layers := c.Layers()
	if len(layers) != 2 || layers[0].Buffer != a || layers[1].Buffer != b {
		t.Fatalf("unexpected layers %+v", layers)
	}
	if layers[0].Dst != image.Rect(5, 5, 15, 15) {
		t.Errorf("dst = %v", layers[0].Dst)
	}
	if _, ok := c.PointerLayer(); ok {
		t.Error("no pointer layer was added")
	}
}

func TestSecondPointerLayerPanics(t *testing.T) {
	c := kms.NewComposition()
	c.AddPointerLayer(&kms.Buffer{}, 1, 2, 3, 4)
	p, ok := c.PointerLayer()
	if !ok || p.HotX != 1 || p.HotY != 2 || p.X != 3 || p.Y != 4 {
		t.Fatalf("pointer layer = %+v, %v", p, ok)
	}

	defer func() {
		if recover() == nil {
			t.Error("second AddPointerLayer did not panic")
		}
	}()
	c.AddPointerLayer(&kms.Buffer{}, 0, 0, 0, 0)
}
