package kms

import (
	"github.com/NeowayLabs/drmkit/mode"
)

// Card is the display subsystem as seen by this package. *mode.Card
// implements it on top of a DRM node.
type Card interface {
	Fd() uintptr
	Close() error

	GetCap(cap uint64) (uint64, error)
	SetClientCap(cap, val uint64) error

	Resources() (*mode.Resources, error)
	Connector(id uint32) (*mode.Connector, error)
	Encoder(id uint32) (*mode.Encoder, error)
	Crtc(id uint32) (*mode.Crtc, error)
	PlaneResources() ([]uint32, error)
	Plane(id uint32) (*mode.Plane, error)

	CreateDumb(width, height, bpp uint32) (*mode.FB, error)
	MapDumbBuffer(handle uint32, size uint64) ([]byte, error)
	UnmapDumbBuffer(data []byte) error
	DestroyDumb(handle uint32) error

	AddFB2(fb *mode.FB2) (uint32, error)
	RmFB(id uint32) error

	ObjectProperties(objID, objType uint32) (*mode.ObjectProperties, error)
	Property(id uint32) (*mode.Property, error)
	CreatePropertyBlob(data []byte) (uint32, error)
	DestroyPropertyBlob(id uint32) error

	NewAtomicRequest() mode.Request
	AtomicCommit(req mode.Request, flags uint32) error
}

// Allocator is a GPU buffer allocator such as GBM.
type Allocator interface {
	CreateBufferObject(width, height, format uint32, modifiers []uint64, usage uint32) (BufferObject, error)
	Close() error
}

// BufferObject is one buffer handed out by an Allocator.
type BufferObject interface {
	Width() uint32
	Height() uint32
	Format() uint32
	Modifier() uint64
	PlaneCount() int
	Handle(plane int) uint32
	Offset(plane int) uint32
	Stride(plane int) uint32

	// Map returns a linear CPU view of the buffer and its stride.
	Map() ([]byte, uint32, error)
	Unmap() error
	Destroy()
}
