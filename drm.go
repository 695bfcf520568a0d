package drm

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"github.com/NeowayLabs/drmkit/ioctl"
)

type (
	sysVersion struct {
		major, minor, patch int32

		nameLen int64
		name    uintptr
		dateLen int64
		date    uintptr
		descLen int64
		desc    uintptr
	}

	// Version of DRM driver
	Version struct {
		Major, Minor, Patch int32
		Name                string // Name of the driver (eg.: i915)
		Date                string
		Desc                string
	}

	// Node is a kind of device file under /dev/dri.
	Node string
)

const driPath = "/dev/dri"

const (
	NodePrimary Node = "card"
	NodeControl Node = "controlD"
	NodeRender  Node = "renderD"
)

// Path returns the device path of the n-th node of this kind.
func (k Node) Path(n int) string {
	return fmt.Sprintf("%s/%s%d", driPath, k, n)
}

// Available reports the driver version of the first card.
func Available() (Version, error) {
	f, err := OpenCard(0)
	if err != nil {
		return Version{}, err
	}
	defer f.Close()
	return GetVersion(f)
}

func OpenCard(n int) (*os.File, error)       { return Open(NodePrimary.Path(n)) }
func OpenControlDev(n int) (*os.File, error) { return Open(NodeControl.Path(n)) }
func OpenRenderDev(n int) (*os.File, error)  { return Open(NodeRender.Path(n)) }

// Open opens a DRM node by path, e.g. /dev/dri/card1.
func Open(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDWR, 0)
}

// GetVersion asks the driver behind file for its name and version.
func GetVersion(file *os.File) (Version, error) {
	v := &sysVersion{}
	if err := ioctl.Do(file.Fd(), uintptr(IOCTLVersion), uintptr(unsafe.Pointer(v))); err != nil {
		return Version{}, err
	}

	name := cbuf(v.nameLen, &v.name)
	date := cbuf(v.dateLen, &v.date)
	desc := cbuf(v.descLen, &v.desc)
	err := ioctl.Do(file.Fd(), uintptr(IOCTLVersion), uintptr(unsafe.Pointer(v)))
	runtime.KeepAlive(name)
	runtime.KeepAlive(date)
	runtime.KeepAlive(desc)
	if err != nil {
		return Version{}, err
	}

	return Version{
		Major: v.major,
		Minor: v.minor,
		Patch: v.patch,
		Name:  cstring(name, v.nameLen),
		Date:  cstring(date, v.dateLen),
		Desc:  cstring(desc, v.descLen),
	}, nil
}

// cbuf allocates room for a string of n bytes plus terminator and
// points ptr at it.
func cbuf(n int64, ptr *uintptr) []byte {
	if n <= 0 {
		return nil
	}
	b := make([]byte, n+1)
	*ptr = uintptr(unsafe.Pointer(&b[0]))
	return b
}

func cstring(b []byte, n int64) string {
	if int64(len(b)) > n && n >= 0 {
		b = b[:n]
	}
	return string(bytes.TrimRight(b, "\x00"))
}
