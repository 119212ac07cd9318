// PMSM plant model for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package plant simulates a surface/interior PMSM on an ideal bridge for
// the closed-loop tests and the simulated signal source. The model is the
// standard dq-frame RL + back-EMF machine integrated at the control
// period, with Hall code and raw ADC code synthesis so the controller can
// be driven unmodified against it.
//
// The model is deterministic: no sensor noise, no parameter drift. Tests
// that need mismatch set the fields directly.
package plant

import (
	"math"

	"github.com/KIPE12/RC-Driver/pkg/foc"
	"github.com/KIPE12/RC-Driver/pkg/pwm"
	"github.com/KIPE12/RC-Driver/pkg/sampling"
)

// hallCodes is the forward-rotation code sequence, one entry per 60
// electrical degrees starting at the sector centered on zero.
var hallCodes = [6]uint8{6, 4, 5, 1, 3, 2}

// Motor is one simulated machine on a stiff DC bus. All state is exported
// so tests can place the rotor and preload currents; Step and Sample are
// the only mutators otherwise.
type Motor struct {
	Params foc.MotorParameters

	Vdc   float64 // stiff bus voltage [V]
	Tload float64 // external shaft torque, positive opposes rotation [N*m]

	Bridge *pwm.Sim

	// True machine state, in the true rotor frame.
	Id, Iq float64 // dq currents [A]
	Te     float64 // electromagnetic torque [N*m]
	Wrm    float64 // mechanical speed [rad/s]
	Theta  float64 // true electrical angle [rad]

	invLd, invLq, invJm float64
}

// New builds a motor on the given bridge. The parameter set is used as
// passed; callers hand it the same validated set the controller runs with.
func New(p foc.MotorParameters, bridge *pwm.Sim, vdc float64) *Motor {
	return &Motor{
		Params: p,
		Vdc:    vdc,
		Bridge: bridge,
		invLd:  1.0 / p.Ld,
		invLq:  1.0 / p.Lq,
		invJm:  1.0 / p.Jm,
	}
}

// Step advances the machine one control period under the duties currently
// latched in the bridge. A disabled bridge is an open circuit: phase
// currents collapse and only the shaft torques act on the rotor.
func (m *Motor) Step() {
	p := &m.Params

	if !m.Bridge.Enabled() {
		m.Id, m.Iq, m.Te = 0, 0, 0
		m.Wrm += foc.Tsamp * (-m.Tload - p.Bm*m.Wrm) * m.invJm
		m.Theta = foc.BoundPi(m.Theta + m.Wrm*p.PP*foc.Tsamp)
		return
	}

	da, db, dc := m.Bridge.Duties()
	va := (da - 0.5) * m.Vdc
	vb := (db - 0.5) * m.Vdc
	vc := (dc - 0.5) * m.Vdc
	valpha, vbeta := foc.Clarke(va, vb, vc)

	sin, cos := math.Sincos(m.Theta)
	vd := valpha*cos + vbeta*sin
	vq := -valpha*sin + vbeta*cos

	// Electrical dynamics, forward Euler. The period is well under the
	// stator time constant, so the explicit step is stable.
	we := m.Wrm * p.PP
	id := m.Id + foc.Tsamp*(vd-p.Rs*m.Id+we*p.Lq*m.Iq)*m.invLd
	iq := m.Iq + foc.Tsamp*(vq-p.Rs*m.Iq-we*(p.Ld*m.Id+p.Lamf))*m.invLq
	m.Id, m.Iq = id, iq

	m.Te = 1.5 * p.PP * (p.Lamf*m.Iq + (p.Ld-p.Lq)*m.Id*m.Iq)

	m.Wrm += foc.Tsamp * (m.Te - m.Tload - p.Bm*m.Wrm) * m.invJm
	m.Theta = foc.BoundPi(m.Theta + m.Wrm*p.PP*foc.Tsamp)
}

// Currents returns the instantaneous phase currents of the true state.
func (m *Motor) Currents() (ia, ib, ic float64) {
	sin, cos := math.Sincos(m.Theta)
	ialpha := m.Id*cos - m.Iq*sin
	ibeta := m.Id*sin + m.Iq*cos
	return foc.InverseClarke(ialpha, ibeta)
}

// HallCode returns the 3-bit sensor pattern for the true electrical angle.
// Sectors are centered on the nominal angles the Hall observer maps each
// code to, so a locked estimate carries no systematic offset.
func (m *Motor) HallCode() uint8 {
	s := int(math.Round(m.Theta / (math.Pi / 3.0)))
	s = ((s % 6) + 6) % 6
	return hallCodes[s]
}

// Wrpm returns the true mechanical speed in rpm.
func (m *Motor) Wrpm() float64 {
	return m.Wrm * foc.RadToRPM
}

// Sample advances the plant one period and synthesizes the raw converter
// codes and Hall state the front end would deliver for the new state. It
// implements the control loop's signal source.
func (m *Motor) Sample() (sampling.RawSample, uint8) {
	m.Step()
	ia, ib, ic := m.Currents()
	return sampling.RawSample{
		Ia:  2048 + ia*sampling.CurrentLSBPerAmp,
		Ib:  2048 + ib*sampling.CurrentLSBPerAmp,
		Ic:  2048 + ic*sampling.CurrentLSBPerAmp,
		Vdc: m.Vdc * sampling.VdcLSBPerVolt,
	}, m.HallCode()
}
