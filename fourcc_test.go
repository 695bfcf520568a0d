package drm_test

import (
	"testing"

	"github.com/NeowayLabs/drmkit"
)

func TestFourCC(t *testing.T) {
	for _, tc := range []struct {
		format drm.Format
		code   uint32
		name   string
	}{
		{drm.FormatXRGB8888, 0x34325258, "XR24"},
		{drm.FormatARGB8888, 0x34325241, "AR24"},
		{drm.FormatNV12, 0x3231564e, "NV12"},
		{drm.Format(0), 0, "0x00000000"},
	} {
		if uint32(tc.format) != tc.code {
			t.Errorf("%s: got 0x%08x, want 0x%08x", tc.name, uint32(tc.format), tc.code)
		}
		if tc.format.String() != tc.name {
			t.Errorf("String() = %q, want %q", tc.format.String(), tc.name)
		}
	}
}

func TestPlaneHeight(t *testing.T) {
	for _, tc := range []struct {
		format drm.Format
		plane  int
		height uint32
		rows   uint32
		ok     bool
	}{
		{drm.FormatXRGB8888, 0, 1080, 1080, true},
		{drm.FormatXRGB8888, 1, 1080, 0, false},
		{drm.FormatNV12, 0, 1080, 1080, true},
		{drm.FormatNV12, 1, 1080, 540, true},
		{drm.FormatNV12, 1, 481, 241, true},
		{drm.FormatNV12, 2, 1080, 0, false},
		{drm.FormatYUV420, 2, 720, 360, true},
	} {
		rows, ok := tc.format.PlaneHeight(tc.plane, tc.height)
		if rows != tc.rows || ok != tc.ok {
			t.Errorf("%s plane %d of %d rows: got (%d, %v), want (%d, %v)",
				tc.format, tc.plane, tc.height, rows, ok, tc.rows, tc.ok)
		}
	}
}
