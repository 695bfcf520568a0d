package mode

import (
	"os"
	"runtime"
	"unsafe"
)

// Values of the plane "type" property
const (
	PlaneTypeOverlay = 0
	PlaneTypePrimary = 1
	PlaneTypeCursor  = 2
)

type (
	sysGetPlaneRes struct {
		planeIDPtr  uint64
		countPlanes uint32
	}

	sysGetPlane struct {
		planeID          uint32
		crtcID           uint32
		fbID             uint32
		possibleCrtcs    uint32
		gammaSize        uint32
		countFormatTypes uint32
		formatTypePtr    uint64
	}

	Plane struct {
		ID       uint32
		CrtcID   uint32 // CRTC the plane is currently bound to, 0 = none
		BufferID uint32

		// bitmask of CRTC indexes (position in Resources.Crtcs)
		PossibleCrtcs uint32
		GammaSize     uint32

		Formats []uint32
	}
)

var (
	// DRM_IOWR(0xB5, struct drm_mode_get_plane_res)
	IOCTLModeGetPlaneResources = code[sysGetPlaneRes](0xB5)

	// DRM_IOWR(0xB6, struct drm_mode_get_plane)
	IOCTLModeGetPlane = code[sysGetPlane](0xB6)
)

// GetPlaneResources lists the plane ids. Primary and cursor planes are
// only listed after enabling drm.ClientCapUniversalPlanes.
func GetPlaneResources(file *os.File) ([]uint32, error) {
	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		res := &sysGetPlaneRes{}
		if err := do(file, IOCTLModeGetPlaneResources, unsafe.Pointer(res)); err != nil {
			return nil, err
		}
		if res.countPlanes == 0 {
			return nil, nil
		}

		sized := res.countPlanes
		ids := make([]uint32, sized)
		res.planeIDPtr = addr(ids)
		err := do(file, IOCTLModeGetPlaneResources, unsafe.Pointer(res))
		runtime.KeepAlive(ids)
		if err != nil {
			return nil, err
		}
		if res.countPlanes <= sized {
			return trim(ids, res.countPlanes), nil
		}
	}
	return nil, ErrObjectsChanged
}

func GetPlane(file *os.File, id uint32) (*Plane, error) {
	plane := &sysGetPlane{planeID: id}
	if err := do(file, IOCTLModeGetPlane, unsafe.Pointer(plane)); err != nil {
		return nil, err
	}

	// the format list of a plane is fixed, one fetch is enough
	formats := alloc[uint32](plane.countFormatTypes)
	if len(formats) > 0 {
		plane.formatTypePtr = addr(formats)
		err := do(file, IOCTLModeGetPlane, unsafe.Pointer(plane))
		runtime.KeepAlive(formats)
		if err != nil {
			return nil, err
		}
	}

	return &Plane{
		ID:            plane.planeID,
		CrtcID:        plane.crtcID,
		BufferID:      plane.fbID,
		PossibleCrtcs: plane.possibleCrtcs,
		GammaSize:     plane.gammaSize,
		Formats:       formats,
	}, nil
}
