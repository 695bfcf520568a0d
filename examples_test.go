package drm_test

import (
	"fmt"

	"github.com/NeowayLabs/drmkit"
)

func ExampleHasDumbBuffer() {
	// This example shows how to test if your graphics card
	// supports 'dumb buffers' capability. With this capability
	// you can create simple memory-mapped buffers without any
	// driver-dependent code.

	file, err := drm.OpenCard(0)
	if err != nil {
		fmt.Printf("error: %s", err.Error())
		return
	}
	defer file.Close()
	if !drm.HasDumbBuffer(file) {
		fmt.Printf("drm device does not support dumb buffers")
		return
	}
	fmt.Printf("ok")
}

func ExampleGetCap() {
	file, err := drm.OpenCard(0)
	if err != nil {
		fmt.Printf("error: %s", err.Error())
		return
	}
	defer file.Close()
	w, err := drm.GetCap(file, drm.CapCursorWidth)
	if err != nil {
		fmt.Printf("error: %s", err.Error())
		return
	}
	h, _ := drm.GetCap(file, drm.CapCursorHeight)
	fmt.Printf("cursor: %dx%d\n", w, h)
}
