// Package planes assigns layers to hardware planes.
//
// Every Apply walks the layers of an output from bottom to top and gives
// each one the first free plane, stacked above the previous one, that
// the kernel accepts in a TEST_ONLY atomic commit. Layers that fit
// nowhere, or have no framebuffer, are flagged as needing composition.
package planes

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/NeowayLabs/drmkit/mode"
)

// Card is the part of the display subsystem the allocator needs.
type Card interface {
	Resources() (*mode.Resources, error)
	PlaneResources() ([]uint32, error)
	Plane(id uint32) (*mode.Plane, error)
	ObjectProperties(objID, objType uint32) (*mode.ObjectProperties, error)
	Property(id uint32) (*mode.Property, error)
	AtomicCommit(req mode.Request, flags uint32) error
}

var (
	ErrUnknownCrtc = errors.New("planes: unknown crtc")
	ErrClosed      = errors.New("planes: output closed")

	errIncompatible = errors.New("planes: plane lacks a layer property")
)

type (
	Option func(*Device)

	// Device tracks the planes of one card and which output uses them.
	Device struct {
		card   Card
		log    logrus.FieldLogger
		loaded bool
		crtcs  []uint32
		planes []*plane
	}

	plane struct {
		id            uint32
		typ           uint64
		zpos          uint64
		hasZpos       bool
		possibleCrtcs uint32
		crtcID        uint32 // binding found at discovery
		props         map[string]uint32

		owner *Output
		layer *Layer
	}
)

func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Device) { d.log = log }
}

func NewDevice(card Card, opts ...Option) *Device {
	d := &Device{card: card, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// load discovers CRTCs and planes on first use.
func (d *Device) load() error {
	if d.loaded {
		return nil
	}
	res, err := d.card.Resources()
	if err != nil {
		return fmt.Errorf("planes: resources: %w", err)
	}
	ids, err := d.card.PlaneResources()
	if err != nil {
		return fmt.Errorf("planes: plane resources: %w", err)
	}

	names := make(map[uint32]string)
	planes := make([]*plane, 0, len(ids))
	for _, id := range ids {
		p, err := d.loadPlane(id, names)
		if err != nil {
			return err
		}
		planes = append(planes, p)
	}
	sort.SliceStable(planes, func(i, j int) bool {
		return planes[i].less(planes[j])
	})

	d.crtcs = res.Crtcs
	d.planes = planes
	d.loaded = true
	d.log.WithField("planes", len(planes)).Debug("planes discovered")
	return nil
}

func (d *Device) loadPlane(id uint32, names map[uint32]string) (*plane, error) {
	mp, err := d.card.Plane(id)
	if err != nil {
		return nil, fmt.Errorf("planes: plane %d: %w", id, err)
	}
	props, err := d.card.ObjectProperties(id, mode.ObjectPlane)
	if err != nil {
		return nil, fmt.Errorf("planes: plane %d properties: %w", id, err)
	}

	p := &plane{
		id:            id,
		typ:           mode.PlaneTypeOverlay,
		possibleCrtcs: mp.PossibleCrtcs,
		crtcID:        mp.CrtcID,
		props:         make(map[string]uint32, len(props.IDs)),
	}
	for i, pid := range props.IDs {
		name, ok := names[pid]
		if !ok {
			prop, err := d.card.Property(pid)
			if err != nil {
				return nil, fmt.Errorf("planes: property %d: %w", pid, err)
			}
			name = prop.Name
			names[pid] = name
		}
		p.props[name] = pid
		switch name {
		case "type":
			p.typ = props.Values[i]
		case "zpos":
			p.zpos = props.Values[i]
			p.hasZpos = true
		}
	}
	return p, nil
}

// less orders planes bottom to top: primary first, then by zpos, then
// overlays below cursors.
func (p *plane) less(q *plane) bool {
	if (p.typ == mode.PlaneTypePrimary) != (q.typ == mode.PlaneTypePrimary) {
		return p.typ == mode.PlaneTypePrimary
	}
	if p.hasZpos && q.hasZpos && p.zpos != q.zpos {
		return p.zpos < q.zpos
	}
	if (p.typ == mode.PlaneTypeCursor) != (q.typ == mode.PlaneTypeCursor) {
		return q.typ == mode.PlaneTypeCursor
	}
	return p.id < q.id
}

// NewOutput returns the allocator state for crtcID.
func (d *Device) NewOutput(crtcID uint32) (*Output, error) {
	if err := d.load(); err != nil {
		return nil, err
	}
	index, ok := mode.CrtcIndex(&mode.Resources{Crtcs: d.crtcs}, crtcID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCrtc, crtcID)
	}
	return &Output{
		dev:       d,
		crtcID:    crtcID,
		crtcIndex: index,
		log:       d.log.WithField("crtc", crtcID),
	}, nil
}

// isRejection reports whether a test commit error only means that the
// configuration does not fit, as opposed to a real failure.
func isRejection(err error) bool {
	return errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ERANGE) ||
		errors.Is(err, unix.ENOSPC) || errors.Is(err, unix.E2BIG)
}
