//go:build linux && cgo

package gbm

// #cgo pkg-config: gbm
// #include <stdlib.h>
// #include <gbm.h>
//
// static uint32_t bo_handle_u32(struct gbm_bo *bo, int plane) {
// 	return gbm_bo_get_handle_for_plane(bo, plane).u32;
// }
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/NeowayLabs/drmkit/kms"
)

// Device is a GBM device on top of a DRM fd. The fd stays owned by the
// caller and must outlive the Device.
type Device struct {
	hnd *C.struct_gbm_device
}

// Create wraps an opened DRM fd.
func Create(fd uintptr) (*Device, error) {
	hnd, err := C.gbm_create_device(C.int(fd))
	if hnd == nil {
		if err == nil {
			err = fmt.Errorf("gbm_create_device failed")
		}
		return nil, fmt.Errorf("gbm: create device on fd %d: %w", fd, err)
	}
	return &Device{hnd: hnd}, nil
}

func (d *Device) Fd() uintptr {
	return uintptr(C.gbm_device_get_fd(d.hnd))
}

func (d *Device) BackendName() string {
	return C.GoString(C.gbm_device_get_backend_name(d.hnd))
}

// IsFormatSupported reports whether format can be allocated with usage.
func (d *Device) IsFormatSupported(format, usage uint32) bool {
	return C.gbm_device_is_format_supported(d.hnd, C.uint32_t(format), C.uint32_t(usage)) != 0
}

func (d *Device) Close() error {
	if d.hnd == nil {
		return ErrDestroyed
	}
	C.gbm_device_destroy(d.hnd)
	d.hnd = nil
	return nil
}

// CreateBufferObject allocates a buffer object. With modifiers the
// driver picks one of them, otherwise the layout is implicit.
func (d *Device) CreateBufferObject(width, height, format uint32, modifiers []uint64, usage uint32) (kms.BufferObject, error) {
	if d.hnd == nil {
		return nil, ErrDestroyed
	}

	var (
		hnd *C.struct_gbm_bo
		err error
	)
	if len(modifiers) > 0 {
		hnd, err = C.gbm_bo_create_with_modifiers2(d.hnd,
			C.uint32_t(width), C.uint32_t(height), C.uint32_t(format),
			(*C.uint64_t)(unsafe.Pointer(&modifiers[0])), C.uint(len(modifiers)),
			C.uint32_t(usage))
	} else {
		hnd, err = C.gbm_bo_create(d.hnd,
			C.uint32_t(width), C.uint32_t(height), C.uint32_t(format),
			C.uint32_t(usage))
	}
	if hnd == nil {
		if err == nil {
			err = fmt.Errorf("gbm_bo_create failed")
		}
		return nil, fmt.Errorf("gbm: %dx%d format 0x%08x usage 0x%x: %w", width, height, format, usage, err)
	}
	return &BO{hnd: hnd}, nil
}

// BO is a GBM buffer object.
type BO struct {
	hnd     *C.struct_gbm_bo
	mapData unsafe.Pointer
}

func (bo *BO) Width() uint32    { return uint32(C.gbm_bo_get_width(bo.hnd)) }
func (bo *BO) Height() uint32   { return uint32(C.gbm_bo_get_height(bo.hnd)) }
func (bo *BO) Format() uint32   { return uint32(C.gbm_bo_get_format(bo.hnd)) }
func (bo *BO) Modifier() uint64 { return uint64(C.gbm_bo_get_modifier(bo.hnd)) }
func (bo *BO) PlaneCount() int  { return int(C.gbm_bo_get_plane_count(bo.hnd)) }

func (bo *BO) Handle(plane int) uint32 {
	return uint32(C.bo_handle_u32(bo.hnd, C.int(plane)))
}

func (bo *BO) Offset(plane int) uint32 {
	return uint32(C.gbm_bo_get_offset(bo.hnd, C.int(plane)))
}

func (bo *BO) Stride(plane int) uint32 {
	return uint32(C.gbm_bo_get_stride_for_plane(bo.hnd, C.int(plane)))
}

// Map returns a linear read/write view of the whole buffer object. GBM
// may hand out a staging copy that is written back on Unmap.
func (bo *BO) Map() ([]byte, uint32, error) {
	if bo.mapData != nil {
		return nil, 0, fmt.Errorf("gbm: buffer object already mapped")
	}
	var stride C.uint32_t
	var mapData unsafe.Pointer
	height := bo.Height()
	addr, err := C.gbm_bo_map(bo.hnd, 0, 0, C.uint32_t(bo.Width()), C.uint32_t(height),
		C.uint32_t(C.GBM_BO_TRANSFER_READ_WRITE), &stride, &mapData)
	if addr == nil {
		if err == nil {
			err = fmt.Errorf("gbm_bo_map failed")
		}
		return nil, 0, fmt.Errorf("gbm: map: %w", err)
	}
	bo.mapData = mapData
	return unsafe.Slice((*byte)(addr), int(stride)*int(height)), uint32(stride), nil
}

func (bo *BO) Unmap() error {
	if bo.mapData == nil {
		return fmt.Errorf("gbm: buffer object not mapped")
	}
	C.gbm_bo_unmap(bo.hnd, bo.mapData)
	bo.mapData = nil
	return nil
}

func (bo *BO) Destroy() {
	if bo.hnd == nil {
		panic("double destroy of gbm.BO")
	}
	if bo.mapData != nil {
		C.gbm_bo_unmap(bo.hnd, bo.mapData)
		bo.mapData = nil
	}
	C.gbm_bo_destroy(bo.hnd)
	bo.hnd = nil
}
