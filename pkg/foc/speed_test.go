package foc

import (
	"math"
	"testing"
)

func TestSpeedCommandDeadzone(t *testing.T) {
	inv := newTestInverter(t)

	// 5% of the 10000 rpm rating is 500 rpm.
	inv.Speed.WrpmCmd = 400.0
	inv.SpeedControl()
	if inv.Speed.WrpmSet != 0 {
		t.Errorf("WrpmSet = %g inside deadzone, want 0", inv.Speed.WrpmSet)
	}

	inv.Speed.WrpmCmd = 600.0
	inv.SpeedControl()
	if inv.Speed.WrpmSet != 600.0 {
		t.Errorf("WrpmSet = %g, want 600", inv.Speed.WrpmSet)
	}
}

func TestSpeedReferenceRamp(t *testing.T) {
	inv := newTestInverter(t)
	inv.Speed.WrpmCmd = 6000.0

	inv.SpeedControl()
	if math.Abs(inv.Speed.WrmRef-inv.Gains.DWrm) > 1e-12 {
		t.Errorf("first tick WrmRef = %g, want one ramp step %g", inv.Speed.WrmRef, inv.Gains.DWrm)
	}

	inv.SpeedControl()
	if math.Abs(inv.Speed.WrmRef-2.0*inv.Gains.DWrm) > 1e-12 {
		t.Errorf("second tick WrmRef = %g, want %g", inv.Speed.WrmRef, 2.0*inv.Gains.DWrm)
	}

	// A small command snaps without ramping.
	inv.Speed.WrmRef = 0
	inv.Speed.WrpmCmd = 600.0
	target := 600.0 * RPMToRad
	for i := 0; i < 300000; i++ {
		inv.SpeedControl()
		if inv.Speed.WrmRef == target {
			break
		}
	}
	if inv.Speed.WrmRef != target {
		t.Errorf("WrmRef = %g never reached %g exactly", inv.Speed.WrmRef, target)
	}
}

func TestSpeedTorqueClamp(t *testing.T) {
	inv := newTestInverter(t)
	inv.Speed.WrpmCmd = 10000.0

	for i := 0; i < 5000; i++ {
		inv.SpeedControl()
		if math.Abs(inv.Speed.TeRef) > inv.Params.TeRated+1e-12 {
			t.Fatalf("tick %d: TeRef = %g outside rating", i, inv.Speed.TeRef)
		}
	}
	wantAW := inv.Speed.TeUnsat - inv.Speed.TeRef
	if math.Abs(inv.Speed.TeAW-wantAW) > 1e-12 {
		t.Errorf("TeAW = %g, want %g", inv.Speed.TeAW, wantAW)
	}
}

func TestTorqueControlMapping(t *testing.T) {
	inv := newTestInverter(t)

	tests := []struct {
		name   string
		duty   float64
		wantTe float64
	}{
		{"neutral", 0.15, 0},
		{"inside deadzone", 0.152, 0},
		{"full forward", 0.20, inv.Params.TeRated},
		{"full reverse", 0.10, -inv.Params.TeRated},
		{"half forward", 0.175, 0.5 * inv.Params.TeRated},
		{"overtravel clamped", 0.25, inv.Params.TeRated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv.TorqueControl(tt.duty)
			if math.Abs(inv.Speed.TeRef-tt.wantTe) > 1e-9 {
				t.Errorf("TeRef = %g, want %g", inv.Speed.TeRef, tt.wantTe)
			}
			if inv.Current.IdRef != 0 {
				t.Errorf("IdRef = %g, want 0", inv.Current.IdRef)
			}
			if math.Abs(inv.Current.IqRef) > inv.Params.IsLimit+1e-9 {
				t.Errorf("IqRef = %g outside current limit", inv.Current.IqRef)
			}
		})
	}
}
