package mode

import (
	"errors"
	"os"
	"runtime"
	"unsafe"
)

// ErrObjectsChanged is returned when the mode objects kept changing
// while being listed, e.g. during a burst of hotplug events.
var ErrObjectsChanged = errors.New("mode: objects changed while listing them")

type (
	sysResources struct {
		fbIDPtr              uint64
		crtcIDPtr            uint64
		connectorIDPtr       uint64
		encoderIDPtr         uint64
		CountFbs             uint32
		CountCrtcs           uint32
		CountConnectors      uint32
		CountEncoders        uint32
		MinWidth, MaxWidth   uint32
		MinHeight, MaxHeight uint32
	}

	// Resources lists the mode objects of a card. The position of a
	// CRTC in Crtcs is the bit used by possible-CRTC masks.
	Resources struct {
		sysResources

		Fbs        []uint32
		Crtcs      []uint32
		Connectors []uint32
		Encoders   []uint32
	}

	sysGetConnector struct {
		encodersPtr   uint64
		modesPtr      uint64
		propsPtr      uint64
		propValuesPtr uint64

		countModes    uint32
		countProps    uint32
		countEncoders uint32

		encoderID       uint32 // current encoder
		ID              uint32
		connectorType   uint32
		connectorTypeID uint32

		connection        uint32
		mmWidth, mmHeight uint32 // HxW in millimeters
		subpixel          uint32
		pad               uint32
	}

	Connector struct {
		sysGetConnector

		ID            uint32
		EncoderID     uint32
		Type          uint32
		TypeID        uint32
		Connection    uint8
		Width, Height uint32
		Subpixel      uint8

		Modes []Info

		Props      []uint32
		PropValues []uint64

		Encoders []uint32
	}

	sysGetEncoder struct {
		id  uint32
		typ uint32

		crtcID uint32

		possibleCrtcs  uint32
		possibleClones uint32
	}

	Encoder struct {
		ID   uint32
		Type uint32

		CrtcID uint32

		PossibleCrtcs  uint32
		PossibleClones uint32
	}

	sysCrtc struct {
		setConnectorsPtr uint64
		countConnectors  uint32

		id   uint32
		fbID uint32 // Id of framebuffer

		x, y uint32 // Position on the framebuffer

		gammaSize uint32
		modeValid uint32
		mode      Info
	}

	Crtc struct {
		ID       uint32
		BufferID uint32 // FB id to connect to 0 = disconnect

		X, Y          uint32 // Position on the framebuffer
		Width, Height uint32
		ModeValid     int
		Mode          Info

		GammaSize int // Number of gamma stops
	}
)

var (
	// DRM_IOWR(0xA0, struct drm_mode_card_res)
	IOCTLModeResources = code[sysResources](0xA0)

	// DRM_IOWR(0xA1, struct drm_mode_crtc)
	IOCTLModeGetCrtc = code[sysCrtc](0xA1)

	// DRM_IOWR(0xA6, struct drm_mode_get_encoder)
	IOCTLModeGetEncoder = code[sysGetEncoder](0xA6)

	// DRM_IOWR(0xA7, struct drm_mode_get_connector)
	IOCTLModeGetConnector = code[sysGetConnector](0xA7)
)

// GetResources lists the framebuffers, CRTCs, connectors and encoders.
// The first call sizes the lists; when a hotplug changes the counts
// before the second call, both are repeated.
func GetResources(file *os.File) (*Resources, error) {
	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		sized := &sysResources{}
		if err := do(file, IOCTLModeResources, unsafe.Pointer(sized)); err != nil {
			return nil, err
		}

		res := *sized
		fbs := alloc[uint32](res.CountFbs)
		crtcs := alloc[uint32](res.CountCrtcs)
		connectors := alloc[uint32](res.CountConnectors)
		encoders := alloc[uint32](res.CountEncoders)
		res.fbIDPtr = addr(fbs)
		res.crtcIDPtr = addr(crtcs)
		res.connectorIDPtr = addr(connectors)
		res.encoderIDPtr = addr(encoders)

		err := do(file, IOCTLModeResources, unsafe.Pointer(&res))
		runtime.KeepAlive(fbs)
		runtime.KeepAlive(crtcs)
		runtime.KeepAlive(connectors)
		runtime.KeepAlive(encoders)
		if err != nil {
			return nil, err
		}
		if res.CountFbs > sized.CountFbs || res.CountCrtcs > sized.CountCrtcs ||
			res.CountConnectors > sized.CountConnectors || res.CountEncoders > sized.CountEncoders {
			continue
		}

		return &Resources{
			sysResources: res,
			Fbs:          trim(fbs, res.CountFbs),
			Crtcs:        trim(crtcs, res.CountCrtcs),
			Connectors:   trim(connectors, res.CountConnectors),
			Encoders:     trim(encoders, res.CountEncoders),
		}, nil
	}
	return nil, ErrObjectsChanged
}

// GetConnector reads a connector with its modes, properties and
// possible encoders. Like GetResources it retries when the connector
// changes between sizing and fetching.
func GetConnector(file *os.File, connid uint32) (*Connector, error) {
	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		sized := &sysGetConnector{ID: connid}
		if err := do(file, IOCTLModeGetConnector, unsafe.Pointer(sized)); err != nil {
			return nil, err
		}

		conn := *sized
		modes := alloc[Info](conn.countModes)
		props := alloc[uint32](conn.countProps)
		propValues := alloc[uint64](conn.countProps)
		encoders := alloc[uint32](conn.countEncoders)
		conn.modesPtr = addr(modes)
		conn.propsPtr = addr(props)
		conn.propValuesPtr = addr(propValues)
		conn.encodersPtr = addr(encoders)

		err := do(file, IOCTLModeGetConnector, unsafe.Pointer(&conn))
		runtime.KeepAlive(modes)
		runtime.KeepAlive(props)
		runtime.KeepAlive(propValues)
		runtime.KeepAlive(encoders)
		if err != nil {
			return nil, err
		}
		if conn.countModes > sized.countModes || conn.countProps > sized.countProps ||
			conn.countEncoders > sized.countEncoders {
			continue
		}

		return &Connector{
			sysGetConnector: conn,
			ID:              conn.ID,
			EncoderID:       conn.encoderID,
			Connection:      uint8(conn.connection),
			Width:           conn.mmWidth,
			Height:          conn.mmHeight,

			// convert subpixel from kernel to userspace
			Subpixel: uint8(conn.subpixel + 1),
			Type:     conn.connectorType,
			TypeID:   conn.connectorTypeID,

			Modes:      trim(modes, conn.countModes),
			Props:      trim(props, conn.countProps),
			PropValues: trim(propValues, conn.countProps),
			Encoders:   trim(encoders, conn.countEncoders),
		}, nil
	}
	return nil, ErrObjectsChanged
}

func GetEncoder(file *os.File, id uint32) (*Encoder, error) {
	encoder := &sysGetEncoder{id: id}
	if err := do(file, IOCTLModeGetEncoder, unsafe.Pointer(encoder)); err != nil {
		return nil, err
	}
	return &Encoder{
		ID:             encoder.id,
		CrtcID:         encoder.crtcID,
		Type:           encoder.typ,
		PossibleCrtcs:  encoder.possibleCrtcs,
		PossibleClones: encoder.possibleClones,
	}, nil
}

// GetCrtc reads the current state of a CRTC. Mode is only meaningful
// when ModeValid is set.
func GetCrtc(file *os.File, id uint32) (*Crtc, error) {
	crtc := &sysCrtc{id: id}
	if err := do(file, IOCTLModeGetCrtc, unsafe.Pointer(crtc)); err != nil {
		return nil, err
	}
	return &Crtc{
		ID:        crtc.id,
		BufferID:  crtc.fbID,
		X:         crtc.x,
		Y:         crtc.y,
		Width:     uint32(crtc.mode.Hdisplay),
		Height:    uint32(crtc.mode.Vdisplay),
		ModeValid: int(crtc.modeValid),
		Mode:      crtc.mode,
		GammaSize: int(crtc.gammaSize),
	}, nil
}
