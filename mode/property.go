package mode

import (
	"bytes"
	"os"
	"runtime"
	"unsafe"
)

// Mode object types
const (
	ObjectCrtc      = 0xcccccccc
	ObjectConnector = 0xc0c0c0c0
	ObjectEncoder   = 0xe0e0e0e0
	ObjectMode      = 0xdededede
	ObjectProperty  = 0xb0b0b0b0
	ObjectFB        = 0xfbfbfbfb
	ObjectBlob      = 0xbbbbbbbb
	ObjectPlane     = 0xeeeeeeee
)

// Property flags
const (
	PropPending   = 1 << 0
	PropRange     = 1 << 1
	PropImmutable = 1 << 2
	PropEnum      = 1 << 3
	PropBlob      = 1 << 4
	PropBitmask   = 1 << 5
)

type (
	sysObjGetProperties struct {
		propsPtr      uint64
		propValuesPtr uint64
		countProps    uint32
		objID         uint32
		objType       uint32
	}

	sysGetProperty struct {
		valuesPtr      uint64
		enumBlobPtr    uint64
		propID         uint32
		flags          uint32
		name           [PropNameLen]uint8
		countValues    uint32
		countEnumBlobs uint32
	}

	sysCreateBlob struct {
		data   uint64
		length uint32
		blobID uint32
	}

	sysDestroyBlob struct {
		blobID uint32
	}

	// ObjectProperties holds the property ids attached to a mode object
	// and their current values, index by index.
	ObjectProperties struct {
		ObjectID   uint32
		ObjectType uint32
		IDs        []uint32
		Values     []uint64
	}

	// Property is the metadata of one property id.
	Property struct {
		ID     uint32
		Flags  uint32
		Name   string
		Values []uint64
	}
)

var (
	// DRM_IOWR(0xAA, struct drm_mode_get_property)
	IOCTLModeGetProperty = code[sysGetProperty](0xAA)

	// DRM_IOWR(0xB9, struct drm_mode_obj_get_properties)
	IOCTLModeObjGetProperties = code[sysObjGetProperties](0xB9)

	// DRM_IOWR(0xBD, struct drm_mode_create_blob)
	IOCTLModeCreatePropBlob = code[sysCreateBlob](0xBD)

	// DRM_IOWR(0xBE, struct drm_mode_destroy_blob)
	IOCTLModeDestroyPropBlob = code[sysDestroyBlob](0xBE)
)

// Value returns the current value of the property id, if the object
// carries it.
func (p *ObjectProperties) Value(id uint32) (uint64, bool) {
	for i, pid := range p.IDs {
		if pid == id {
			return p.Values[i], true
		}
	}
	return 0, false
}

// GetObjectProperties reads the properties attached to a mode object
// of type objType (one of the Object* constants).
func GetObjectProperties(file *os.File, objID, objType uint32) (*ObjectProperties, error) {
	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		req := &sysObjGetProperties{objID: objID, objType: objType}
		if err := do(file, IOCTLModeObjGetProperties, unsafe.Pointer(req)); err != nil {
			return nil, err
		}

		sized := req.countProps
		ids := alloc[uint32](sized)
		values := alloc[uint64](sized)
		if sized > 0 {
			req.propsPtr = addr(ids)
			req.propValuesPtr = addr(values)
			err := do(file, IOCTLModeObjGetProperties, unsafe.Pointer(req))
			runtime.KeepAlive(ids)
			runtime.KeepAlive(values)
			if err != nil {
				return nil, err
			}
			if req.countProps > sized {
				continue
			}
		}

		return &ObjectProperties{
			ObjectID:   objID,
			ObjectType: objType,
			IDs:        trim(ids, req.countProps),
			Values:     trim(values, req.countProps),
		}, nil
	}
	return nil, ErrObjectsChanged
}

func GetProperty(file *os.File, id uint32) (*Property, error) {
	prop := &sysGetProperty{propID: id}
	if err := do(file, IOCTLModeGetProperty, unsafe.Pointer(prop)); err != nil {
		return nil, err
	}

	// enum names and blob ids are not fetched
	values := alloc[uint64](prop.countValues)
	if len(values) > 0 {
		prop.valuesPtr = addr(values)
		prop.countEnumBlobs = 0
		err := do(file, IOCTLModeGetProperty, unsafe.Pointer(prop))
		runtime.KeepAlive(values)
		if err != nil {
			return nil, err
		}
	}

	name := prop.name[:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	return &Property{
		ID:     prop.propID,
		Flags:  prop.flags,
		Name:   string(name),
		Values: values,
	}, nil
}

// CreatePropertyBlob uploads data as a property blob. The blob must be
// released with DestroyPropertyBlob.
func CreatePropertyBlob(file *os.File, data []byte) (uint32, error) {
	blob := &sysCreateBlob{data: addr(data), length: uint32(len(data))}
	err := do(file, IOCTLModeCreatePropBlob, unsafe.Pointer(blob))
	runtime.KeepAlive(data)
	if err != nil {
		return 0, err
	}
	return blob.blobID, nil
}

func DestroyPropertyBlob(file *os.File, id uint32) error {
	return do(file, IOCTLModeDestroyPropBlob, unsafe.Pointer(&sysDestroyBlob{id}))
}
