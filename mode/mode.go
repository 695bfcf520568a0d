package mode

import "unsafe"

const (
	DisplayInfoLen   = 32
	ConnectorNameLen = 32
	DisplayModeLen   = 32
	PropNameLen      = 32

	Connected         = 1
	Disconnected      = 2
	UnknownConnection = 3

	// Mode type flags
	TypePreferred = 1 << 3
	TypeDriver    = 1 << 6
)

// Info is a display mode, laid out as struct drm_mode_modeinfo.
type Info struct {
	Clock                                         uint32
	Hdisplay, HsyncStart, HsyncEnd, Htotal, Hskew uint16
	Vdisplay, VsyncStart, VsyncEnd, Vtotal, Vscan uint16

	Vrefresh uint32

	Flags uint32
	Type  uint32
	Name  [DisplayModeLen]uint8
}

// Bytes returns the raw drm_mode_modeinfo layout of the mode, as
// expected by the MODE_ID property blob.
func (m *Info) Bytes() []byte {
	raw := unsafe.Slice((*byte)(unsafe.Pointer(m)), unsafe.Sizeof(*m))
	out := make([]byte, len(raw))
	copy(out, raw)
	return out
}

// String is the mode name, e.g. "1920x1080".
func (m *Info) String() string {
	n := 0
	for n < len(m.Name) && m.Name[n] != 0 {
		n++
	}
	return string(m.Name[:n])
}
