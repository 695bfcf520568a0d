package mode

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"unsafe"
)

// Atomic commit flags
const (
	PageFlipEvent      = 0x01
	AtomicTestOnly     = 0x0100
	AtomicNonblock     = 0x0200
	AtomicAllowModeset = 0x0400
)

// ErrInvalidID is returned when a property is added for object or
// property id zero.
var ErrInvalidID = errors.New("mode: invalid object or property id")

type (
	sysAtomic struct {
		flags         uint32
		countObjs     uint32
		objsPtr       uint64
		countPropsPtr uint64
		propsPtr      uint64
		propValuesPtr uint64
		reserved      uint64
		userData      uint64
	}

	// Request accumulates property writes for one atomic commit.
	// Cursor and SetCursor allow rolling back writes added after a
	// saved point.
	Request interface {
		AddProperty(objectID, propertyID uint32, value uint64) error
		Cursor() int
		SetCursor(cursor int)
		Len() int
	}

	// PropertyWrite is a single object property assignment.
	PropertyWrite struct {
		ObjectID   uint32
		PropertyID uint32
		Value      uint64
	}

	// AtomicReq is the in-memory Request submitted by AtomicCommit.
	AtomicReq struct {
		items []PropertyWrite
	}
)

var (
	// DRM_IOWR(0xBC, struct drm_mode_atomic)
	IOCTLModeAtomic = code[sysAtomic](0xBC)
)

func NewAtomicReq() *AtomicReq {
	return &AtomicReq{}
}

func (r *AtomicReq) AddProperty(objectID, propertyID uint32, value uint64) error {
	if objectID == 0 || propertyID == 0 {
		return fmt.Errorf("%w: object %d property %d", ErrInvalidID, objectID, propertyID)
	}
	r.items = append(r.items, PropertyWrite{objectID, propertyID, value})
	return nil
}

func (r *AtomicReq) Cursor() int { return len(r.items) }

func (r *AtomicReq) SetCursor(cursor int) {
	if cursor >= 0 && cursor < len(r.items) {
		r.items = r.items[:cursor]
	}
}

func (r *AtomicReq) Len() int { return len(r.items) }

// Writes returns the effective writes grouped by object: objects in
// ascending id order, and for an object/property pair written more than
// once only the last value is kept.
func (r *AtomicReq) Writes() []PropertyWrite {
	last := make(map[[2]uint32]int, len(r.items))
	for i, it := range r.items {
		last[[2]uint32{it.ObjectID, it.PropertyID}] = i
	}
	out := make([]PropertyWrite, 0, len(last))
	for i, it := range r.items {
		if last[[2]uint32{it.ObjectID, it.PropertyID}] == i {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ObjectID < out[j].ObjectID
	})
	return out
}

// AtomicCommit submits req. userData is returned in the page flip event
// when PageFlipEvent is set.
func AtomicCommit(file *os.File, req *AtomicReq, flags uint32, userData uint64) error {
	writes := req.Writes()

	var (
		objs       []uint32
		countProps []uint32
		props      = make([]uint32, 0, len(writes))
		values     = make([]uint64, 0, len(writes))
	)
	for _, w := range writes {
		if len(objs) == 0 || objs[len(objs)-1] != w.ObjectID {
			objs = append(objs, w.ObjectID)
			countProps = append(countProps, 0)
		}
		countProps[len(countProps)-1]++
		props = append(props, w.PropertyID)
		values = append(values, w.Value)
	}

	atomic := &sysAtomic{
		flags:         flags,
		countObjs:     uint32(len(objs)),
		objsPtr:       addr(objs),
		countPropsPtr: addr(countProps),
		propsPtr:      addr(props),
		propValuesPtr: addr(values),
		userData:      userData,
	}
	err := do(file, IOCTLModeAtomic, unsafe.Pointer(atomic))
	runtime.KeepAlive(objs)
	runtime.KeepAlive(countProps)
	runtime.KeepAlive(props)
	runtime.KeepAlive(values)
	return err
}
