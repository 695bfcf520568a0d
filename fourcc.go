package drm

import "fmt"

// Format is a fourcc pixel format code as defined in drm_fourcc.h.
type Format uint32

// FourCC packs four characters into a format code, little endian.
func FourCC(a, b, c, d byte) Format {
	return Format(uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24)
}

var (
	FormatXRGB8888 = FourCC('X', 'R', '2', '4')
	FormatARGB8888 = FourCC('A', 'R', '2', '4')
	FormatXBGR8888 = FourCC('X', 'B', '2', '4')
	FormatABGR8888 = FourCC('A', 'B', '2', '4')
	FormatRGB565   = FourCC('R', 'G', '1', '6')
	FormatNV12     = FourCC('N', 'V', '1', '2')
	FormatNV21     = FourCC('N', 'V', '2', '1')
	FormatYUV420   = FourCC('Y', 'U', '1', '2')
)

// Format modifiers.
const (
	// ModifierInvalid means no explicit modifier, the layout is driver
	// defined (implicit modifier).
	ModifierInvalid uint64 = 0x00ffffffffffffff
	ModifierLinear  uint64 = 0
)

func (f Format) String() string {
	b := []byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("0x%08x", uint32(f))
		}
	}
	return string(b)
}

// BytesPerPixel reports the size of one pixel in the first plane, zero
// when unknown.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatXRGB8888, FormatARGB8888, FormatXBGR8888, FormatABGR8888:
		return 4
	case FormatRGB565:
		return 2
	case FormatNV12, FormatNV21, FormatYUV420:
		return 1
	}
	return 0
}

// PlaneHeight returns the number of rows of plane for an image height
// rows tall. ok is false when the layout of plane is not known.
func (f Format) PlaneHeight(plane int, height uint32) (rows uint32, ok bool) {
	if plane == 0 {
		return height, true
	}
	switch f {
	case FormatNV12, FormatNV21:
		if plane == 1 {
			return (height + 1) / 2, true
		}
	case FormatYUV420:
		if plane == 1 || plane == 2 {
			return (height + 1) / 2, true
		}
	}
	return 0, false
}
