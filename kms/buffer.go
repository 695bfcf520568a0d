package kms

import (
	"encoding/binary"
	"fmt"

	"github.com/NeowayLabs/drmkit"
)

type (
	// Plane is one memory plane of a Buffer.
	Plane struct {
		Handle uint32 // GEM handle
		Offset uint32
		Stride uint32
		Size   uint64
	}

	// Buffer is an allocated pixel buffer. It is owned by whoever
	// created it and must be released with Close.
	Buffer struct {
		Width, Height uint32
		Format        drm.Format
		Modifier      uint64 // drm.ModifierInvalid when implicit
		Planes        []Plane

		mem    memory
		mapped map[int]*Mapping
		owners map[*Output]struct{}
		closed bool
	}

	// Mapping is a live CPU view of one buffer plane. Data is always
	// linear, whatever the real memory layout is.
	Mapping struct {
		Data   []byte
		Offset uint32
		Stride uint32
		Size   uint64

		buf   *Buffer
		plane int
	}

	memory interface {
		mapPlane(index int) ([]byte, uint32, error)
		unmapPlane(index int, data []byte) error
		destroy() error
	}
)

func newBuffer(width, height uint32, format drm.Format, modifier uint64, planes []Plane, mem memory) *Buffer {
	return &Buffer{
		Width:    width,
		Height:   height,
		Format:   format,
		Modifier: modifier,
		Planes:   planes,
		mem:      mem,
		mapped:   make(map[int]*Mapping),
		owners:   make(map[*Output]struct{}),
	}
}

// Map maps plane for reading and writing. Each plane can only be mapped
// once at a time; the mapping is released with Unmap.
func (b *Buffer) Map(plane int) (*Mapping, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if plane < 0 || plane >= len(b.Planes) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidPlane, plane, len(b.Planes))
	}
	if _, ok := b.mapped[plane]; ok {
		return nil, ErrAlreadyMapped
	}

	data, stride, err := b.mem.mapPlane(plane)
	if err != nil {
		return nil, fmt.Errorf("map plane %d: %w", plane, err)
	}
	m := &Mapping{
		Data:   data,
		Offset: b.Planes[plane].Offset,
		Stride: stride,
		Size:   uint64(len(data)),
		buf:    b,
		plane:  plane,
	}
	b.mapped[plane] = m
	return m, nil
}

func (b *Buffer) Unmap(m *Mapping) error {
	if m == nil || m.buf != b || b.mapped[m.plane] != m {
		return ErrNotMapped
	}
	delete(b.mapped, m.plane)
	data := m.Data
	m.Data = nil
	return b.mem.unmapPlane(m.plane, data)
}

// Fill writes color, little endian, at every 4 byte offset of plane 0.
func (b *Buffer) Fill(color uint32) error {
	m, err := b.Map(0)
	if err != nil {
		return fmt.Errorf("fill: %w", err)
	}
	for i := 0; i+4 <= len(m.Data); i += 4 {
		binary.LittleEndian.PutUint32(m.Data[i:], color)
	}
	return b.Unmap(m)
}

// Close releases the buffer memory. Framebuffers registered for it by
// an Output are removed first.
func (b *Buffer) Close() error {
	if b.closed {
		return nil
	}
	for o := range b.owners {
		o.Evict(b)
	}
	for plane, m := range b.mapped {
		b.mem.unmapPlane(plane, m.Data)
		m.Data = nil
	}
	b.mapped = nil
	b.closed = true
	return b.mem.destroy()
}

type dumbMemory struct {
	card   Card
	handle uint32
	pitch  uint32
	size   uint64
}

func (m *dumbMemory) mapPlane(int) ([]byte, uint32, error) {
	data, err := m.card.MapDumbBuffer(m.handle, m.size)
	if err != nil {
		return nil, 0, err
	}
	return data, m.pitch, nil
}

func (m *dumbMemory) unmapPlane(_ int, data []byte) error {
	return m.card.UnmapDumbBuffer(data)
}

func (m *dumbMemory) destroy() error {
	return m.card.DestroyDumb(m.handle)
}

type boMemory struct {
	bo BufferObject
}

func (m *boMemory) mapPlane(index int) ([]byte, uint32, error) {
	// GBM only offers a linear view of the whole object
	if index != 0 {
		return nil, 0, fmt.Errorf("%w: mapping plane %d of a buffer object", ErrUnsupported, index)
	}
	return m.bo.Map()
}

func (m *boMemory) unmapPlane(int, []byte) error {
	return m.bo.Unmap()
}

func (m *boMemory) destroy() error {
	m.bo.Destroy()
	return nil
}
