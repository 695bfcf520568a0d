package mode

import (
	"os"
	"unsafe"
)

type (
	sysCreateDumb struct {
		height, width uint32
		bpp           uint32
		flags         uint32

		// returned values
		handle uint32
		pitch  uint32
		size   uint64
	}

	sysMapDumb struct {
		handle uint32 // Handle for the object being mapped
		pad    uint32

		// Fake offset to use for subsequent mmap call
		// This is a fixed-size type for 32/64 compatibility.
		offset uint64
	}

	sysDestroyDumb struct {
		handle uint32
	}

	// FB is a dumb buffer as created by the kernel.
	FB struct {
		Height, Width, BPP, Flags uint32
		Handle                    uint32
		Pitch                     uint32
		Size                      uint64
	}
)

var (
	// DRM_IOWR(0xB2, struct drm_mode_create_dumb)
	IOCTLModeCreateDumb = code[sysCreateDumb](0xB2)

	// DRM_IOWR(0xB3, struct drm_mode_map_dumb)
	IOCTLModeMapDumb = code[sysMapDumb](0xB3)

	// DRM_IOWR(0xB4, struct drm_mode_destroy_dumb)
	IOCTLModeDestroyDumb = code[sysDestroyDumb](0xB4)
)

// CreateDumb allocates a width x height dumb buffer with bpp bits per
// pixel. The kernel picks the pitch and total size. The buffer is not a
// framebuffer until registered with AddFB2.
func CreateDumb(file *os.File, width, height, bpp uint32) (*FB, error) {
	fb := &sysCreateDumb{width: width, height: height, bpp: bpp}
	if err := do(file, IOCTLModeCreateDumb, unsafe.Pointer(fb)); err != nil {
		return nil, err
	}
	return &FB{
		Height: fb.height,
		Width:  fb.width,
		BPP:    fb.bpp,
		Handle: fb.handle,
		Pitch:  fb.pitch,
		Size:   fb.size,
	}, nil
}

// MapDumb returns the offset to mmap the dumb buffer at on file.
func MapDumb(file *os.File, boHandle uint32) (uint64, error) {
	mreq := &sysMapDumb{handle: boHandle}
	if err := do(file, IOCTLModeMapDumb, unsafe.Pointer(mreq)); err != nil {
		return 0, err
	}
	return mreq.offset, nil
}

func DestroyDumb(file *os.File, handle uint32) error {
	return do(file, IOCTLModeDestroyDumb, unsafe.Pointer(&sysDestroyDumb{handle}))
}
