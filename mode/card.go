package mode

import (
	"fmt"
	"os"

	"launchpad.net/gommap"

	"github.com/NeowayLabs/drmkit"
)

// Card bundles the mode-setting calls of one opened DRM node behind
// methods, so consumers can depend on an interface instead of a file.
type Card struct {
	file *os.File
}

func NewCard(file *os.File) *Card {
	return &Card{file: file}
}

// OpenCard opens a DRM node by path.
func OpenCard(path string) (*Card, error) {
	file, err := drm.Open(path)
	if err != nil {
		return nil, err
	}
	return NewCard(file), nil
}

func (c *Card) File() *os.File { return c.file }
func (c *Card) Fd() uintptr    { return c.file.Fd() }
func (c *Card) Close() error   { return c.file.Close() }

func (c *Card) GetCap(cap uint64) (uint64, error) {
	return drm.GetCap(c.file, cap)
}

func (c *Card) SetClientCap(cap, val uint64) error {
	return drm.SetClientCap(c.file, cap, val)
}

func (c *Card) Resources() (*Resources, error) {
	return GetResources(c.file)
}

func (c *Card) Connector(id uint32) (*Connector, error) {
	return GetConnector(c.file, id)
}

func (c *Card) Encoder(id uint32) (*Encoder, error) {
	return GetEncoder(c.file, id)
}

func (c *Card) Crtc(id uint32) (*Crtc, error) {
	return GetCrtc(c.file, id)
}

func (c *Card) CreateDumb(width, height, bpp uint32) (*FB, error) {
	return CreateDumb(c.file, width, height, bpp)
}

// MapDumbBuffer maps size bytes of the dumb buffer handle for CPU access.
func (c *Card) MapDumbBuffer(handle uint32, size uint64) ([]byte, error) {
	offset, err := MapDumb(c.file, handle)
	if err != nil {
		return nil, err
	}
	mmap, err := gommap.MapAt(0, c.file.Fd(), int64(offset), int64(size),
		gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap dumb buffer %d: %w", handle, err)
	}
	return mmap, nil
}

func (c *Card) UnmapDumbBuffer(data []byte) error {
	return gommap.MMap(data).UnsafeUnmap()
}

func (c *Card) DestroyDumb(handle uint32) error {
	return DestroyDumb(c.file, handle)
}

func (c *Card) AddFB2(fb *FB2) (uint32, error) {
	return AddFB2(c.file, fb)
}

func (c *Card) RmFB(id uint32) error {
	return RmFB(c.file, id)
}

func (c *Card) ObjectProperties(objID, objType uint32) (*ObjectProperties, error) {
	return GetObjectProperties(c.file, objID, objType)
}

func (c *Card) Property(id uint32) (*Property, error) {
	return GetProperty(c.file, id)
}

func (c *Card) CreatePropertyBlob(data []byte) (uint32, error) {
	return CreatePropertyBlob(c.file, data)
}

func (c *Card) DestroyPropertyBlob(id uint32) error {
	return DestroyPropertyBlob(c.file, id)
}

func (c *Card) PlaneResources() ([]uint32, error) {
	return GetPlaneResources(c.file)
}

func (c *Card) Plane(id uint32) (*Plane, error) {
	return GetPlane(c.file, id)
}

func (c *Card) NewAtomicRequest() Request {
	return NewAtomicReq()
}

// AtomicCommit commits a request created by NewAtomicRequest.
func (c *Card) AtomicCommit(req Request, flags uint32) error {
	r, ok := req.(*AtomicReq)
	if !ok {
		return fmt.Errorf("mode: unsupported atomic request type %T", req)
	}
	return AtomicCommit(c.file, r, flags, 0)
}
