package mode

import (
	"errors"
	"fmt"
)

var (
	ErrNoConnector = errors.New("mode: no connected connector")
	ErrNoCrtc      = errors.New("mode: no usable crtc")
	ErrNoMode      = errors.New("mode: connector has no modes")
)

// ObjectGetter reads connectors and encoders. *Card implements it.
type ObjectGetter interface {
	Connector(id uint32) (*Connector, error)
	Encoder(id uint32) (*Encoder, error)
}

// PickConnector returns the first connector, in kernel enumeration
// order, whose status is Connected.
func PickConnector(g ObjectGetter, res *Resources) (*Connector, error) {
	for _, id := range res.Connectors {
		conn, err := g.Connector(id)
		if err != nil {
			return nil, fmt.Errorf("Cannot retrieve connector %d: %w", id, err)
		}
		if conn.Connection == Connected {
			return conn, nil
		}
	}
	return nil, ErrNoConnector
}

// PickCrtc finds a CRTC that can drive conn. The CRTC already routed to
// the connector's current encoder wins; otherwise every encoder the
// connector supports is tried against every CRTC in its possible mask.
func PickCrtc(g ObjectGetter, res *Resources, conn *Connector) (uint32, error) {
	if conn.EncoderID != 0 {
		encoder, err := g.Encoder(conn.EncoderID)
		if err != nil {
			return 0, fmt.Errorf("Cannot retrieve encoder %d: %w", conn.EncoderID, err)
		}
		if encoder.CrtcID != 0 {
			return encoder.CrtcID, nil
		}
	}

	for _, encID := range conn.Encoders {
		encoder, err := g.Encoder(encID)
		if err != nil {
			return 0, fmt.Errorf("Cannot retrieve encoder %d: %w", encID, err)
		}
		// iterate all global CRTCs
		for j, crtcID := range res.Crtcs {
			if encoder.PossibleCrtcs&(1<<uint(j)) != 0 {
				return crtcID, nil
			}
		}
	}

	return 0, fmt.Errorf("%w for connector %d", ErrNoCrtc, conn.ID)
}

// CrtcIndex returns the position of the CRTC in res.Crtcs, the bit used
// by possible-CRTC masks.
func CrtcIndex(res *Resources, crtcID uint32) (int, bool) {
	for i, id := range res.Crtcs {
		if id == crtcID {
			return i, true
		}
	}
	return 0, false
}

// PreferredMode returns the mode flagged preferred, else the first one.
func PreferredMode(conn *Connector) (Info, error) {
	if len(conn.Modes) == 0 {
		return Info{}, fmt.Errorf("%w: %d", ErrNoMode, conn.ID)
	}
	for _, m := range conn.Modes {
		if m.Type&TypePreferred != 0 {
			return m, nil
		}
	}
	return conn.Modes[0], nil
}
