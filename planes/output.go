package planes

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/NeowayLabs/drmkit/mode"
)

type (
	// Output holds the layers of one CRTC.
	Output struct {
		dev       *Device
		crtcID    uint32
		crtcIndex int
		layers    []*Layer
		closed    bool
		log       logrus.FieldLogger
	}

	// Layer is a set of plane property intents. The "zpos" property
	// orders layers and is never written to a plane.
	Layer struct {
		out   *Output
		props map[string]uint64

		plane      *plane
		composited bool
	}
)

func (o *Output) NewLayer() *Layer {
	l := &Layer{out: o, props: make(map[string]uint64)}
	o.layers = append(o.layers, l)
	return l
}

func (l *Layer) SetProperty(name string, value uint64) {
	l.props[name] = value
}

func (l *Layer) Property(name string) (uint64, bool) {
	v, ok := l.props[name]
	return v, ok
}

// NeedsComposition reports whether the last Apply left the layer
// without a plane.
func (l *Layer) NeedsComposition() bool {
	return l.composited
}

// PlaneID is the plane given to the layer by the last Apply, 0 if none.
func (l *Layer) PlaneID() uint32 {
	if l.plane == nil {
		return 0
	}
	return l.plane.id
}

func (l *Layer) Destroy() {
	if l.out == nil {
		return
	}
	if l.plane != nil && l.plane.layer == l {
		l.plane.layer = nil
	}
	layers := l.out.layers
	for i, other := range layers {
		if other == l {
			l.out.layers = append(layers[:i], layers[i+1:]...)
			break
		}
	}
	l.out = nil
	l.plane = nil
}

// Close destroys the remaining layers and frees the planes of the output.
func (o *Output) Close() {
	for len(o.layers) > 0 {
		o.layers[0].Destroy()
	}
	for _, p := range o.dev.planes {
		if p.owner == o {
			p.owner = nil
			p.layer = nil
		}
	}
	o.closed = true
}

// Apply writes the plane configuration of all layers into req. flags
// are the flags of the final commit; only AtomicAllowModeset is carried
// over to the test commits.
func (o *Output) Apply(req mode.Request, flags uint32) error {
	if o.closed {
		return ErrClosed
	}
	if err := o.dev.load(); err != nil {
		return err
	}

	// planes used by the previous frame are disabled even when they
	// were found bound to another CRTC
	used := make(map[*plane]bool)
	for _, p := range o.dev.planes {
		if p.owner == o {
			used[p] = true
			p.owner = nil
			p.layer = nil
		}
	}
	candidates := o.candidates()

	// start from a clean state: every plane we may use is disabled
	// unless a layer claims it below
	for _, p := range candidates {
		if p.crtcID != 0 && p.crtcID != o.crtcID && !used[p] {
			continue
		}
		if err := disable(req, p); err != nil {
			return err
		}
	}

	layers := make([]*Layer, len(o.layers))
	copy(layers, o.layers)
	sort.SliceStable(layers, func(i, j int) bool {
		return layers[i].props["zpos"] < layers[j].props["zpos"]
	})

	testFlags := uint32(mode.AtomicTestOnly) | flags&mode.AtomicAllowModeset
	next := 0
	for _, l := range layers {
		l.plane = nil
		l.composited = false
		if l.props["FB_ID"] == 0 {
			l.composited = true
			continue
		}

		for i := next; i < len(candidates); i++ {
			p := candidates[i]
			ok, err := o.try(req, testFlags, l, p)
			if err != nil {
				return err
			}
			if ok {
				l.plane = p
				p.owner = o
				p.layer = l
				p.crtcID = o.crtcID
				next = i + 1
				break
			}
		}
		if l.plane == nil {
			l.composited = true
			o.log.WithField("zpos", l.props["zpos"]).Debug("no plane for layer")
			continue
		}
		o.log.WithFields(logrus.Fields{
			"plane": l.plane.id,
			"zpos":  l.props["zpos"],
		}).Debug("layer assigned")
	}
	return nil
}

// candidates lists the free planes usable on the output's CRTC, bottom
// to top.
func (o *Output) candidates() []*plane {
	var out []*plane
	for _, p := range o.dev.planes {
		if p.possibleCrtcs&(1<<uint(o.crtcIndex)) == 0 {
			continue
		}
		if p.owner != nil && p.owner != o {
			continue
		}
		out = append(out, p)
	}
	return out
}

// try writes l on p and checks the result with a test commit. A plane
// that does not fit is rolled back out of req.
func (o *Output) try(req mode.Request, flags uint32, l *Layer, p *plane) (bool, error) {
	cursor := req.Cursor()
	if err := o.write(req, l, p); err != nil {
		req.SetCursor(cursor)
		if err == errIncompatible {
			return false, nil
		}
		return false, err
	}

	err := o.dev.card.AtomicCommit(req, flags)
	if err == nil {
		return true, nil
	}
	req.SetCursor(cursor)
	if isRejection(err) {
		o.log.WithError(err).WithField("plane", p.id).Debug("plane rejected layer")
		return false, nil
	}
	return false, fmt.Errorf("planes: test commit on plane %d: %w", p.id, err)
}

func (o *Output) write(req mode.Request, l *Layer, p *plane) error {
	crtcProp, ok := p.props["CRTC_ID"]
	if !ok {
		return errIncompatible
	}

	names := make([]string, 0, len(l.props))
	for name := range l.props {
		if name == "zpos" {
			continue
		}
		if _, ok := p.props[name]; !ok {
			return errIncompatible
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if err := req.AddProperty(p.id, crtcProp, uint64(o.crtcID)); err != nil {
		return err
	}
	for _, name := range names {
		if err := req.AddProperty(p.id, p.props[name], l.props[name]); err != nil {
			return err
		}
	}
	return nil
}

func disable(req mode.Request, p *plane) error {
	fbProp, ok := p.props["FB_ID"]
	if !ok {
		return nil
	}
	if err := req.AddProperty(p.id, fbProp, 0); err != nil {
		return err
	}
	if crtcProp, ok := p.props["CRTC_ID"]; ok {
		return req.AddProperty(p.id, crtcProp, 0)
	}
	return nil
}
