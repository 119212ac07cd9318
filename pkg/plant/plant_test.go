// PMSM plant model for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package plant

import (
	"math"
	"testing"

	"github.com/KIPE12/RC-Driver/pkg/foc"
	"github.com/KIPE12/RC-Driver/pkg/pwm"
	"github.com/KIPE12/RC-Driver/pkg/sampling"
)

func testMotor(t *testing.T) (*Motor, *pwm.Sim) {
	t.Helper()
	bridge := pwm.NewSim()
	return New(foc.DefaultMotorParameters(), bridge, 24.0), bridge
}

func TestRestingMotorSampleMatchesIdleCodes(t *testing.T) {
	m, _ := testMotor(t)

	raw, hall := m.Sample()
	if raw.Ia != 2048 || raw.Ib != 2048 || raw.Ic != 2048 {
		t.Fatalf("resting currents raw = %g/%g/%g, want 2048", raw.Ia, raw.Ib, raw.Ic)
	}
	if want := 24.0 * sampling.VdcLSBPerVolt; math.Abs(raw.Vdc-want) > 1e-9 {
		t.Fatalf("Vdc raw = %g, want %g", raw.Vdc, want)
	}
	if hall != 6 {
		t.Fatalf("hall at zero angle = %d, want 6", hall)
	}
}

func TestHallCodeSectors(t *testing.T) {
	m, _ := testMotor(t)

	cases := []struct {
		theta float64
		code  uint8
	}{
		{0, 6},
		{math.Pi / 3, 4},
		{2 * math.Pi / 3, 5},
		{math.Pi, 1},
		{-math.Pi, 1},
		{-2 * math.Pi / 3, 3},
		{-math.Pi / 3, 2},
		// Just inside and just past the first boundary.
		{0.4, 6},
		{math.Pi/6 + 0.01, 4},
		{-math.Pi/6 - 0.01, 2},
	}
	for _, tc := range cases {
		m.Theta = tc.theta
		if got := m.HallCode(); got != tc.code {
			t.Errorf("HallCode(theta=%g) = %d, want %d", tc.theta, got, tc.code)
		}
	}
}

func TestDAxisVoltageSettlesToResistiveCurrent(t *testing.T) {
	m, bridge := testMotor(t)
	bridge.Enable()

	// Duties 0.6/0.45/0.45 put 2.4 V on the d axis of a rotor at zero.
	bridge.SetDuties(0.6, 0.45, 0.45)
	for i := 0; i < 100; i++ {
		m.Step()
	}

	want := 2.4 / m.Params.Rs
	if math.Abs(m.Id-want) > 1e-6*want {
		t.Fatalf("Id = %g, want %g", m.Id, want)
	}
	if math.Abs(m.Iq) > 1e-9 {
		t.Fatalf("Iq = %g, want 0", m.Iq)
	}
	// Pure d current on a surface machine makes no torque.
	if m.Te != 0 || m.Wrm != 0 || m.Theta != 0 {
		t.Fatalf("rotor moved: Te=%g Wrm=%g Theta=%g", m.Te, m.Wrm, m.Theta)
	}

	ia, ib, ic := m.Currents()
	if math.Abs(ia-m.Id) > 1e-9 || math.Abs(ib+m.Id/2) > 1e-9 || math.Abs(ic+m.Id/2) > 1e-9 {
		t.Fatalf("phase split = %g/%g/%g for Id=%g", ia, ib, ic, m.Id)
	}
}

func TestSpinningMotorBrakesIntoShortedBridge(t *testing.T) {
	m, bridge := testMotor(t)
	bridge.Enable()
	bridge.SetDuties(0.5, 0.5, 0.5)

	w0 := 1000.0 / foc.RadToRPM
	m.Wrm = w0

	for i := 0; i < 3; i++ {
		m.Step()
	}
	if m.Iq >= 0 {
		t.Fatalf("Iq = %g, want negative back-EMF current", m.Iq)
	}
	if m.Te >= 0 {
		t.Fatalf("Te = %g, want braking torque", m.Te)
	}
	if m.Wrm >= w0 {
		t.Fatalf("Wrm = %g, want below %g", m.Wrm, w0)
	}
}

func TestDisabledBridgeOpensThePhases(t *testing.T) {
	m, bridge := testMotor(t)
	bridge.Disable()

	m.Id, m.Iq, m.Te = 10, 20, 0.06
	m.Wrm = 50
	m.Tload = 0.001

	m.Step()

	if m.Id != 0 || m.Iq != 0 || m.Te != 0 {
		t.Fatalf("open circuit kept currents: Id=%g Iq=%g Te=%g", m.Id, m.Iq, m.Te)
	}
	if m.Wrm >= 50 {
		t.Fatalf("Wrm = %g, want coast-down below 50", m.Wrm)
	}
	ia, ib, ic := m.Currents()
	if ia != 0 || ib != 0 || ic != 0 {
		t.Fatalf("phase currents = %g/%g/%g, want 0", ia, ib, ic)
	}
}

func TestQAxisVoltageSpinsForward(t *testing.T) {
	m, bridge := testMotor(t)
	bridge.Enable()

	// Duties 0.5/0.55/0.45 put voltage on the q axis only.
	bridge.SetDuties(0.5, 0.55, 0.45)

	sawNext := false
	for i := 0; i < 2000 && !sawNext; i++ {
		m.Step()
		if m.HallCode() == 4 {
			sawNext = true
		}
	}
	if !sawNext {
		t.Fatalf("rotor never reached the second sector: Wrm=%g Theta=%g", m.Wrm, m.Theta)
	}
	if m.Wrm <= 0 {
		t.Fatalf("Wrm = %g, want forward rotation", m.Wrm)
	}
}

func TestSampleSynthesizesCurrentState(t *testing.T) {
	m, bridge := testMotor(t)
	bridge.Enable()
	bridge.SetDuties(0.55, 0.5, 0.48)
	for i := 0; i < 40; i++ {
		m.Step()
	}

	raw, hall := m.Sample()

	ia, ib, ic := m.Currents()
	if math.Abs(raw.Ia-(2048+ia*sampling.CurrentLSBPerAmp)) > 1e-9 {
		t.Fatalf("Ia raw = %g for ia = %g", raw.Ia, ia)
	}
	if math.Abs(raw.Ib-(2048+ib*sampling.CurrentLSBPerAmp)) > 1e-9 {
		t.Fatalf("Ib raw = %g for ib = %g", raw.Ib, ib)
	}
	if math.Abs(raw.Ic-(2048+ic*sampling.CurrentLSBPerAmp)) > 1e-9 {
		t.Fatalf("Ic raw = %g for ic = %g", raw.Ic, ic)
	}
	if hall != m.HallCode() {
		t.Fatalf("hall = %d, state says %d", hall, m.HallCode())
	}
	if math.Abs(ia+ib+ic) > 1e-9 {
		t.Fatalf("phase currents sum to %g", ia+ib+ic)
	}
}
