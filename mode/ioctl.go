package mode

import (
	"os"
	"unsafe"

	"github.com/NeowayLabs/drmkit"
	"github.com/NeowayLabs/drmkit/ioctl"
)

// maxFetchAttempts bounds the size-then-fetch loops of calls whose
// object counts may change under hotplug.
const maxFetchAttempts = 4

// code builds a DRM_IOWR request number for the argument type of arg.
func code[T any](fn uint8) ioctl.Code {
	var arg T
	return ioctl.ReadWrite(unsafe.Sizeof(arg), drm.IOCTLBase, fn)
}

// do issues request on file with arg as argument. Buffers referenced by
// arg must be kept alive by the caller until do returns.
func do(file *os.File, request ioctl.Code, arg unsafe.Pointer) error {
	return ioctl.Do(file.Fd(), uintptr(request), uintptr(arg))
}

// addr is the user pointer the kernel expects for s, 0 when empty.
func addr[T any](s []T) uint64 {
	if len(s) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&s[0])))
}

// alloc returns a slice of n elements, nil for zero.
func alloc[T any](n uint32) []T {
	if n == 0 {
		return nil
	}
	return make([]T, n)
}

// trim cuts s to the count reported by the kernel.
func trim[T any](s []T, n uint32) []T {
	if int(n) < len(s) {
		return s[:n]
	}
	return s
}
