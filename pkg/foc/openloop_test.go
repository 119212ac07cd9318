package foc

import (
	"math"
	"testing"
)

func TestSlew(t *testing.T) {
	tests := []struct {
		cur, target, step, want float64
	}{
		{0, 10, 1, 1},
		{10, 0, 1, 9},
		{5, 5.5, 1, 5.5},
		{5, 5, 1, 5},
	}
	for _, tt := range tests {
		if got := slew(tt.cur, tt.target, tt.step); got != tt.want {
			t.Errorf("slew(%g, %g, %g) = %g, want %g", tt.cur, tt.target, tt.step, got, tt.want)
		}
	}
}

func TestOpenLoopRampsAndIntegrates(t *testing.T) {
	inv := newTestInverter(t)
	inv.Open.IdSet = 10.0
	inv.Open.WrpmSet = 1000.0

	inv.OpenLoopControl()

	if math.Abs(inv.Open.IdRef-20.0*Tsamp) > 1e-12 {
		t.Errorf("IdRef after one tick = %g, want %g", inv.Open.IdRef, 20.0*Tsamp)
	}
	if inv.Current.IdRef != inv.Open.IdRef {
		t.Errorf("current loop IdRef = %g, want %g", inv.Current.IdRef, inv.Open.IdRef)
	}
	if math.Abs(inv.Open.WrpmRef-10.0*Tsamp) > 1e-12 {
		t.Errorf("WrpmRef after one tick = %g, want %g", inv.Open.WrpmRef, 10.0*Tsamp)
	}

	for i := 0; i < 100000; i++ {
		inv.OpenLoopControl()
	}
	if inv.Open.Theta > math.Pi || inv.Open.Theta < -math.Pi {
		t.Errorf("open-loop angle %g left [-pi, pi]", inv.Open.Theta)
	}
}

func TestVrefGenHallMode(t *testing.T) {
	inv := newTestInverter(t)
	inv.Speed.TeRef = 1.0
	inv.Speed.WrmRef = 200.0
	inv.SetHallEstimate(0.3, 200.0*inv.Params.PP)

	inv.VrefGenControl(false)

	p := inv.Params
	wantIq := Limit(1.0*p.InvKt, -1.3*p.IsRated, 1.3*p.IsRated)
	if math.Abs(inv.Current.IqRef-wantIq) > 1e-9 {
		t.Errorf("IqRef = %g, want %g", inv.Current.IqRef, wantIq)
	}

	we := inv.Speed.WrmRef * p.PP
	wantVd := p.Rs*0 - we*p.Lq*wantIq
	wantVq := p.Rs*wantIq + we*p.Lamf
	if math.Abs(inv.Open.Vd-wantVd) > 1e-9 {
		t.Errorf("Vd = %g, want %g", inv.Open.Vd, wantVd)
	}
	if math.Abs(inv.Open.Vq-wantVq) > 1e-9 {
		t.Errorf("Vq = %g, want %g", inv.Open.Vq, wantVq)
	}
	if inv.Angle.Source != AngleHall {
		t.Errorf("angle source = %v, want hall", inv.Angle.Source)
	}
	// Feed-forward only: no compensation voltage in this mode.
	if inv.Out.VaNLC != 0 || inv.Out.VbNLC != 0 || inv.Out.VcNLC != 0 {
		t.Error("dead-time compensation applied in feed-forward mode")
	}
}

func TestVrefGenOpenLoopMode(t *testing.T) {
	inv := newTestInverter(t)
	inv.Open.IdSet = 5.0
	inv.Open.IqRef = 0
	inv.Open.WrpmSet = 2000.0

	for i := 0; i < 100; i++ {
		inv.VrefGenControl(true)
	}

	if inv.Angle.Source != AngleOpenLoop {
		t.Errorf("angle source = %v, want openloop", inv.Angle.Source)
	}
	wantWr := inv.Open.WrpmRef * RPMToRad * inv.Params.PP
	if math.Abs(inv.Open.WrRef-wantWr) > 1e-9 {
		t.Errorf("WrRef = %g, want %g", inv.Open.WrRef, wantWr)
	}
	if inv.Current.VdRef != inv.Open.Vd || inv.Current.VqRef != inv.Open.Vq {
		t.Error("model voltages not latched into the output references")
	}
}

func TestVoltageOpenLoopPassthrough(t *testing.T) {
	inv := newTestInverter(t)
	inv.Open.Vd = 1.5
	inv.Open.Vq = -2.5
	inv.Open.WrpmSet = 1000.0

	inv.VoltageOpenLoopControl()

	if inv.Current.VdRef != 1.5 || inv.Current.VqRef != -2.5 {
		t.Errorf("refs = (%g, %g), want (1.5, -2.5)", inv.Current.VdRef, inv.Current.VqRef)
	}
	if inv.Angle.Source != AngleOpenLoop {
		t.Errorf("angle source = %v, want openloop", inv.Angle.Source)
	}

	// The sensorless selection survives the call.
	inv.Angle.Source = AngleSensorless
	inv.SetSensorlessEstimate(0.8, 100.0)
	inv.VoltageOpenLoopControl()
	if inv.Angle.Source != AngleSensorless {
		t.Errorf("angle source = %v, want sensorless kept", inv.Angle.Source)
	}
	if inv.Angle.Theta != 0.8 {
		t.Errorf("Theta = %g, want sensorless estimate 0.8", inv.Angle.Theta)
	}
}
