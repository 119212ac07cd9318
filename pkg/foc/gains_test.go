package foc

import (
	"math"
	"testing"
)

func TestControllerGainsDerivation(t *testing.T) {
	p := DefaultMotorParameters()
	bw := DefaultBandwidths()
	g := NewControllerGains(bw, p)

	if math.Abs(g.Kpd-bw.Wcc*p.Ld) > 1e-12 {
		t.Errorf("Kpd = %g, want %g", g.Kpd, bw.Wcc*p.Ld)
	}
	if math.Abs(g.Kid-bw.Wcc*p.Rs) > 1e-12 {
		t.Errorf("Kid = %g, want %g", g.Kid, bw.Wcc*p.Rs)
	}
	if math.Abs(g.Kad*g.Kpd-1.0) > 1e-9 {
		t.Errorf("Kad*Kpd = %g, want 1", g.Kad*g.Kpd)
	}
	if g.Ractive != p.Rs {
		t.Errorf("Ractive = %g, want %g", g.Ractive, p.Rs)
	}

	if math.Abs(g.KpSpeed-p.Jm*bw.Wsc) > 1e-15 {
		t.Errorf("KpSpeed = %g, want %g", g.KpSpeed, p.Jm*bw.Wsc)
	}
	wantKi := g.KpSpeed * bw.Wsc * 0.25
	if math.Abs(g.KiSpeed-wantKi) > 1e-15 {
		t.Errorf("KiSpeed = %g, want %g", g.KiSpeed, wantKi)
	}

	if math.Abs(g.KpPLL-2.0*0.707*bw.Wpll) > 1e-9 {
		t.Errorf("KpPLL = %g, want %g", g.KpPLL, 2.0*0.707*bw.Wpll)
	}
	if math.Abs(g.KiPLL-bw.Wpll*bw.Wpll) > 1e-9 {
		t.Errorf("KiPLL = %g, want %g", g.KiPLL, bw.Wpll*bw.Wpll)
	}
}

func TestGainsFollowReconfigure(t *testing.T) {
	inv, err := NewInverter(DefaultMotorParameters(), DefaultBandwidths())
	if err != nil {
		t.Fatalf("NewInverter: %v", err)
	}

	before := inv.Gains.Kid
	p := inv.Params
	p.Rs *= 2
	if err := inv.Reconfigure(p); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	if math.Abs(inv.Gains.Kid-2*before) > 1e-9 {
		t.Errorf("Kid after doubling Rs = %g, want %g", inv.Gains.Kid, 2*before)
	}

	p.Rs = 0
	if err := inv.Reconfigure(p); err == nil {
		t.Error("Reconfigure accepted zero resistance")
	}
}
