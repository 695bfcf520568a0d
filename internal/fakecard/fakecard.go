// Package fakecard is an in-memory display subsystem for tests. It
// keeps mode objects, properties, dumb buffers, framebuffers and blobs
// in maps, records every atomic commit and lets tests inject failures.
package fakecard

import (
	"sort"

	"golang.org/x/sys/unix"

	"github.com/NeowayLabs/drmkit"
	"github.com/NeowayLabs/drmkit/mode"
)

type (
	Card struct {
		Caps       map[uint64]uint64
		ClientCaps map[uint64]uint64
		// client caps that SetClientCap refuses
		DeniedClientCaps map[uint64]bool

		Crtcs      []uint32
		Connectors []uint32
		Encoders   []uint32
		Planes     []uint32

		connectors map[uint32]*mode.Connector
		encoders   map[uint32]*mode.Encoder
		crtcs      map[uint32]*mode.Crtc
		planes     map[uint32]*mode.Plane
		objects    map[uint32]*object
		propNames  map[string]uint32
		props      map[uint32]string

		// PitchAlign rounds dumb buffer pitches up, 64 by default.
		PitchAlign uint32
		Dumbs      map[uint32]*Dumb
		FBs        map[uint32]*mode.FB2
		Blobs      map[uint32][]byte

		AddFBCalls     int
		RmFBCalls      int
		MapCalls       int
		UnmapCalls     int
		BlobsCreated   []uint32
		BlobsDestroyed []uint32
		Commits        []Commit
		TestCommits    []Commit
		Closed         bool

		FailAddFB       func(fb *mode.FB2) error
		FailCreateDumb  error
		FailMap         error
		FailBlob        error
		FailAddProperty func(objID, propID uint32) error
		FailCommit      func(c Commit) error
		FailTestCommit  func(c Commit) error

		nextID uint32
	}

	// Dumb is a dumb buffer backed by a plain byte slice.
	Dumb struct {
		Width, Height, BPP uint32
		Pitch              uint32
		Data               []byte
	}

	// Commit is a recorded atomic commit.
	Commit struct {
		Flags  uint32
		Writes []mode.PropertyWrite
	}

	object struct {
		typ    uint32
		ids    []uint32
		values []uint64
	}

	request struct {
		*mode.AtomicReq
		card *Card
	}
)

func New() *Card {
	return &Card{
		Caps: map[uint64]uint64{
			drm.CapDumbBuffer:      1,
			drm.CapAddFB2Modifiers: 1,
			drm.CapCursorWidth:     64,
			drm.CapCursorHeight:    64,
		},
		ClientCaps:       make(map[uint64]uint64),
		DeniedClientCaps: make(map[uint64]bool),
		connectors:       make(map[uint32]*mode.Connector),
		encoders:         make(map[uint32]*mode.Encoder),
		crtcs:            make(map[uint32]*mode.Crtc),
		planes:           make(map[uint32]*mode.Plane),
		objects:          make(map[uint32]*object),
		propNames:        make(map[string]uint32),
		props:            make(map[uint32]string),
		PitchAlign:       64,
		Dumbs:            make(map[uint32]*Dumb),
		FBs:              make(map[uint32]*mode.FB2),
		Blobs:            make(map[uint32][]byte),
		nextID:           100,
	}
}

// Standard builds a card with one CRTC driving one connected connector
// in mode, and a primary, an overlay and a cursor plane.
func Standard(info mode.Info) *Card {
	c := New()
	crtc := c.AddCrtc()
	enc := c.AddEncoder(0x1)
	conn := c.AddConnector(mode.Connected, info)
	c.Route(conn, enc, crtc)
	c.AddPlane(mode.PlaneTypePrimary, 0x1)
	c.AddPlane(mode.PlaneTypeOverlay, 0x1)
	c.AddPlane(mode.PlaneTypeCursor, 0x1)
	return c
}

func (c *Card) id() uint32 {
	c.nextID++
	return c.nextID
}

// PropertyID returns the id of a property name, allocating it on first
// use. Like the kernel, one id is shared by all objects.
func (c *Card) PropertyID(name string) uint32 {
	if id, ok := c.propNames[name]; ok {
		return id
	}
	id := c.id()
	c.propNames[name] = id
	c.props[id] = name
	return id
}

// SetObjectProperty attaches a property with a value to an object.
func (c *Card) SetObjectProperty(objID uint32, name string, value uint64) {
	obj := c.objects[objID]
	pid := c.PropertyID(name)
	for i, id := range obj.ids {
		if id == pid {
			obj.values[i] = value
			return
		}
	}
	obj.ids = append(obj.ids, pid)
	obj.values = append(obj.values, value)
}

// ObjectValue returns the current value of a named object property.
func (c *Card) ObjectValue(objID uint32, name string) (uint64, bool) {
	obj, ok := c.objects[objID]
	if !ok {
		return 0, false
	}
	pid := c.PropertyID(name)
	for i, id := range obj.ids {
		if id == pid {
			return obj.values[i], true
		}
	}
	return 0, false
}

// RemoveObjectProperty detaches a property from an object.
func (c *Card) RemoveObjectProperty(objID uint32, name string) {
	obj := c.objects[objID]
	pid := c.PropertyID(name)
	for i, id := range obj.ids {
		if id == pid {
			obj.ids = append(obj.ids[:i], obj.ids[i+1:]...)
			obj.values = append(obj.values[:i], obj.values[i+1:]...)
			return
		}
	}
}

func (c *Card) AddCrtc() uint32 {
	id := c.id()
	c.Crtcs = append(c.Crtcs, id)
	c.crtcs[id] = &mode.Crtc{ID: id}
	c.objects[id] = &object{typ: mode.ObjectCrtc}
	c.SetObjectProperty(id, "ACTIVE", 0)
	c.SetObjectProperty(id, "MODE_ID", 0)
	return id
}

func (c *Card) AddEncoder(possibleCrtcs uint32) uint32 {
	id := c.id()
	c.Encoders = append(c.Encoders, id)
	c.encoders[id] = &mode.Encoder{ID: id, PossibleCrtcs: possibleCrtcs}
	return id
}

func (c *Card) AddConnector(status uint8, modes ...mode.Info) uint32 {
	id := c.id()
	c.Connectors = append(c.Connectors, id)
	c.connectors[id] = &mode.Connector{ID: id, Connection: status, Modes: modes}
	c.objects[id] = &object{typ: mode.ObjectConnector}
	c.SetObjectProperty(id, "CRTC_ID", 0)
	return id
}

// Route binds conn to enc, and enc to crtc when crtc is not zero.
func (c *Card) Route(conn, enc, crtc uint32) {
	connector := c.connectors[conn]
	connector.EncoderID = enc
	connector.Encoders = append(connector.Encoders, enc)
	c.encoders[enc].CrtcID = crtc
}

// SetCrtcMode makes info the active mode of crtc.
func (c *Card) SetCrtcMode(crtc uint32, info mode.Info) {
	c.crtcs[crtc].Mode = info
	c.crtcs[crtc].ModeValid = 1
}

func (c *Card) AddPlane(typ uint64, possibleCrtcs uint32) uint32 {
	id := c.id()
	c.Planes = append(c.Planes, id)
	c.planes[id] = &mode.Plane{
		ID:            id,
		PossibleCrtcs: possibleCrtcs,
		Formats:       []uint32{uint32(drm.FormatXRGB8888), uint32(drm.FormatARGB8888)},
	}
	c.objects[id] = &object{typ: mode.ObjectPlane}
	c.SetObjectProperty(id, "type", typ)
	for _, name := range []string{
		"FB_ID", "CRTC_ID",
		"CRTC_X", "CRTC_Y", "CRTC_W", "CRTC_H",
		"SRC_X", "SRC_Y", "SRC_W", "SRC_H",
	} {
		c.SetObjectProperty(id, name, 0)
	}
	return id
}

// BindPlane makes plane scan out fbID on crtc, as left by another
// client.
func (c *Card) BindPlane(plane, crtc, fbID uint32) {
	c.planes[plane].CrtcID = crtc
	c.planes[plane].BufferID = fbID
	c.SetObjectProperty(plane, "CRTC_ID", uint64(crtc))
	c.SetObjectProperty(plane, "FB_ID", uint64(fbID))
}

func (c *Card) Fd() uintptr { return ^uintptr(0) }

func (c *Card) Close() error {
	c.Closed = true
	return nil
}

func (c *Card) GetCap(cap uint64) (uint64, error) {
	v, ok := c.Caps[cap]
	if !ok {
		return 0, unix.EINVAL
	}
	return v, nil
}

func (c *Card) SetClientCap(cap, val uint64) error {
	if c.DeniedClientCaps[cap] {
		return unix.EOPNOTSUPP
	}
	c.ClientCaps[cap] = val
	return nil
}

func (c *Card) Resources() (*mode.Resources, error) {
	return &mode.Resources{
		Crtcs:      append([]uint32(nil), c.Crtcs...),
		Connectors: append([]uint32(nil), c.Connectors...),
		Encoders:   append([]uint32(nil), c.Encoders...),
	}, nil
}

func (c *Card) Connector(id uint32) (*mode.Connector, error) {
	conn, ok := c.connectors[id]
	if !ok {
		return nil, unix.ENOENT
	}
	cp := *conn
	return &cp, nil
}

func (c *Card) Encoder(id uint32) (*mode.Encoder, error) {
	enc, ok := c.encoders[id]
	if !ok {
		return nil, unix.ENOENT
	}
	cp := *enc
	return &cp, nil
}

func (c *Card) Crtc(id uint32) (*mode.Crtc, error) {
	crtc, ok := c.crtcs[id]
	if !ok {
		return nil, unix.ENOENT
	}
	cp := *crtc
	return &cp, nil
}

func (c *Card) PlaneResources() ([]uint32, error) {
	return append([]uint32(nil), c.Planes...), nil
}

func (c *Card) Plane(id uint32) (*mode.Plane, error) {
	p, ok := c.planes[id]
	if !ok {
		return nil, unix.ENOENT
	}
	cp := *p
	return &cp, nil
}

func (c *Card) CreateDumb(width, height, bpp uint32) (*mode.FB, error) {
	if c.FailCreateDumb != nil {
		return nil, c.FailCreateDumb
	}
	pitch := (width*bpp/8 + c.PitchAlign - 1) / c.PitchAlign * c.PitchAlign
	size := uint64(pitch) * uint64(height)
	handle := c.id()
	c.Dumbs[handle] = &Dumb{
		Width:  width,
		Height: height,
		BPP:    bpp,
		Pitch:  pitch,
		Data:   make([]byte, size),
	}
	return &mode.FB{
		Width:  width,
		Height: height,
		BPP:    bpp,
		Handle: handle,
		Pitch:  pitch,
		Size:   size,
	}, nil
}

func (c *Card) MapDumbBuffer(handle uint32, size uint64) ([]byte, error) {
	if c.FailMap != nil {
		return nil, c.FailMap
	}
	d, ok := c.Dumbs[handle]
	if !ok {
		return nil, unix.ENOENT
	}
	if size > uint64(len(d.Data)) {
		return nil, unix.EINVAL
	}
	c.MapCalls++
	return d.Data[:size], nil
}

func (c *Card) UnmapDumbBuffer(data []byte) error {
	c.UnmapCalls++
	return nil
}

func (c *Card) DestroyDumb(handle uint32) error {
	if _, ok := c.Dumbs[handle]; !ok {
		return unix.ENOENT
	}
	delete(c.Dumbs, handle)
	return nil
}

func (c *Card) AddFB2(fb *mode.FB2) (uint32, error) {
	c.AddFBCalls++
	if c.FailAddFB != nil {
		if err := c.FailAddFB(fb); err != nil {
			return 0, err
		}
	}
	if fb.Handles[0] == 0 {
		return 0, unix.EINVAL
	}
	id := c.id()
	cp := *fb
	c.FBs[id] = &cp
	return id, nil
}

func (c *Card) RmFB(id uint32) error {
	if _, ok := c.FBs[id]; !ok {
		return unix.ENOENT
	}
	c.RmFBCalls++
	delete(c.FBs, id)
	return nil
}

func (c *Card) ObjectProperties(objID, objType uint32) (*mode.ObjectProperties, error) {
	obj, ok := c.objects[objID]
	if !ok || obj.typ != objType {
		return nil, unix.ENOENT
	}
	return &mode.ObjectProperties{
		ObjectID:   objID,
		ObjectType: objType,
		IDs:        append([]uint32(nil), obj.ids...),
		Values:     append([]uint64(nil), obj.values...),
	}, nil
}

func (c *Card) Property(id uint32) (*mode.Property, error) {
	name, ok := c.props[id]
	if !ok {
		return nil, unix.ENOENT
	}
	return &mode.Property{ID: id, Name: name}, nil
}

func (c *Card) CreatePropertyBlob(data []byte) (uint32, error) {
	if c.FailBlob != nil {
		return 0, c.FailBlob
	}
	id := c.id()
	c.Blobs[id] = append([]byte(nil), data...)
	c.BlobsCreated = append(c.BlobsCreated, id)
	return id, nil
}

func (c *Card) DestroyPropertyBlob(id uint32) error {
	if _, ok := c.Blobs[id]; !ok {
		return unix.ENOENT
	}
	delete(c.Blobs, id)
	c.BlobsDestroyed = append(c.BlobsDestroyed, id)
	return nil
}

func (c *Card) NewAtomicRequest() mode.Request {
	return &request{AtomicReq: mode.NewAtomicReq(), card: c}
}

func (r *request) AddProperty(objID, propID uint32, value uint64) error {
	if r.card.FailAddProperty != nil {
		if err := r.card.FailAddProperty(objID, propID); err != nil {
			return err
		}
	}
	return r.AtomicReq.AddProperty(objID, propID, value)
}

// AtomicCommit records the commit. Real commits also update the stored
// property values, so later reads see the committed state.
func (c *Card) AtomicCommit(req mode.Request, flags uint32) error {
	r, ok := req.(*request)
	if !ok {
		return unix.EINVAL
	}
	commit := Commit{Flags: flags, Writes: r.Writes()}
	for _, w := range commit.Writes {
		obj, ok := c.objects[w.ObjectID]
		if !ok {
			return unix.ENOENT
		}
		if !containsID(obj.ids, w.PropertyID) {
			return unix.EINVAL
		}
	}

	if flags&mode.AtomicTestOnly != 0 {
		c.TestCommits = append(c.TestCommits, commit)
		if c.FailTestCommit != nil {
			return c.FailTestCommit(commit)
		}
		return nil
	}
	if c.FailCommit != nil {
		if err := c.FailCommit(commit); err != nil {
			return err
		}
	}
	c.Commits = append(c.Commits, commit)
	for _, w := range commit.Writes {
		c.SetObjectProperty(w.ObjectID, c.props[w.PropertyID], w.Value)
	}
	return nil
}

// Value returns the value written to an object property in the commit.
func (cm Commit) Value(objID, propID uint32) (uint64, bool) {
	for _, w := range cm.Writes {
		if w.ObjectID == objID && w.PropertyID == propID {
			return w.Value, true
		}
	}
	return 0, false
}

// Objects lists the objects written by the commit, ascending.
func (cm Commit) Objects() []uint32 {
	seen := make(map[uint32]bool)
	var ids []uint32
	for _, w := range cm.Writes {
		if !seen[w.ObjectID] {
			seen[w.ObjectID] = true
			ids = append(ids, w.ObjectID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PlaneOf returns the plane showing fbID in the commit.
func (c *Card) PlaneOf(cm Commit, fbID uint32) (uint32, bool) {
	fbProp := c.PropertyID("FB_ID")
	for _, id := range c.Planes {
		if v, ok := cm.Value(id, fbProp); ok && uint32(v) == fbID {
			return id, true
		}
	}
	return 0, false
}

func containsID(ids []uint32, id uint32) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
