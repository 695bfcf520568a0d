package drm_test

import (
	"testing"

	"github.com/NeowayLabs/drmkit"
)

func TestHasDumbBuffer(t *testing.T) {
	file := needCard(t)
	if !knownCard {
		t.Skip("unknown card")
	}
	version, err := drm.GetVersion(file)
	if err != nil {
		t.Error(err)
		return
	}
	if hasDumb := drm.HasDumbBuffer(file); hasDumb != (cardInfo.capabilities[drm.CapDumbBuffer] != 0) {
		t.Errorf("Card '%s' should support dumb buffers...Got %v but %d", version.Name, hasDumb, cardInfo.capabilities[drm.CapDumbBuffer])
		return
	}
}

func TestGetCap(t *testing.T) {
	file := needCard(t)
	if !knownCard {
		t.Skip("unknown card")
	}
	for cap, capval := range cardInfo.capabilities {
		ccap, err := drm.GetCap(file, cap)
		if err != nil {
			t.Error(err)
			return
		}
		if ccap != capval {
			t.Errorf("Capability %d differs: %d != %d", cap, ccap, capval)
			return
		}

	}
}

func TestSetClientCapAtomic(t *testing.T) {
	file := needCard(t)
	if err := drm.SetClientCap(file, drm.ClientCapUniversalPlanes, 1); err != nil {
		t.Fatalf("universal planes: %s", err)
	}
	if err := drm.SetClientCap(file, drm.ClientCapAtomic, 1); err != nil {
		t.Skipf("driver without atomic support: %s", err)
	}
}
