package mode

import (
	"os"
	"unsafe"
)

// FBModifiers tells AddFB2 that the Modifiers array is valid.
const FBModifiers = 1 << 1

type (
	sysFBCmd2 struct {
		fbID          uint32
		width, height uint32
		pixelFormat   uint32
		flags         uint32

		handles  [4]uint32
		pitches  [4]uint32
		offsets  [4]uint32
		modifier [4]uint64
	}

	sysRmFB struct {
		handle uint32
	}

	// FB2 describes a framebuffer made of up to four memory planes.
	// Unused planes keep a zero handle.
	FB2 struct {
		Width, Height uint32
		Format        uint32
		Flags         uint32

		Handles   [4]uint32
		Pitches   [4]uint32
		Offsets   [4]uint32
		Modifiers [4]uint64
	}
)

var (
	// DRM_IOWR(0xB8, struct drm_mode_fb_cmd2)
	IOCTLModeAddFB2 = code[sysFBCmd2](0xB8)

	// DRM_IOWR(0xAF, unsigned int)
	IOCTLModeRmFB = code[sysRmFB](0xAF)
)

// AddFB2 registers a (possibly multi-planar) buffer as a framebuffer and
// returns its id. Set FBModifiers in fb.Flags to pass explicit modifiers.
func AddFB2(file *os.File, fb *FB2) (uint32, error) {
	f := &sysFBCmd2{
		width:       fb.Width,
		height:      fb.Height,
		pixelFormat: fb.Format,
		flags:       fb.Flags,
		handles:     fb.Handles,
		pitches:     fb.Pitches,
		offsets:     fb.Offsets,
		modifier:    fb.Modifiers,
	}
	if err := do(file, IOCTLModeAddFB2, unsafe.Pointer(f)); err != nil {
		return 0, err
	}
	return f.fbID, nil
}

// RmFB removes a framebuffer id. The underlying buffer is not freed.
func RmFB(file *os.File, bufferid uint32) error {
	return do(file, IOCTLModeRmFB, unsafe.Pointer(&sysRmFB{bufferid}))
}
