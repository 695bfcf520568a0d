package drm

import (
	"unsafe"

	"github.com/NeowayLabs/drmkit/ioctl"
)

// IOCTLBase is the ioctl type shared by every DRM request.
const IOCTLBase = 'd'

var (
	// DRM_IOWR(0x00, struct drm_version)
	IOCTLVersion = ioctl.ReadWrite(unsafe.Sizeof(sysVersion{}), IOCTLBase, 0x00)

	// DRM_IOWR(0x0c, struct drm_get_cap)
	IOCTLGetCap = ioctl.ReadWrite(unsafe.Sizeof(capability{}), IOCTLBase, 0x0c)

	// DRM_IOW(0x0d, struct drm_set_client_cap)
	IOCTLSetClientCap = ioctl.NewCode(ioctl.Write,
		uint16(unsafe.Sizeof(capability{})), IOCTLBase, 0x0d)
)
