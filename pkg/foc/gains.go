// Regulator gain derivation for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package foc

import "math"

// Bandwidths configures the closed-loop bandwidths the derived gains are
// computed from.
type Bandwidths struct {
	Wcc  float64 // current loop [rad/s]
	Wsc  float64 // speed loop [rad/s]
	Zeta float64 // speed loop damping ratio
	Wpll float64 // general PLL natural frequency [rad/s]
}

// DefaultBandwidths returns the stock tuning: 1 kHz current loop, 25 Hz
// speed loop, 20 Hz PLL.
func DefaultBandwidths() Bandwidths {
	return Bandwidths{
		Wcc:  2.0 * math.Pi * 1000.0,
		Wsc:  2.0 * math.Pi * 25.0,
		Zeta: 0.707,
		Wpll: 2.0 * math.Pi * 20.0,
	}
}

// ControllerGains holds every derived regulator gain. The set is a pure
// function of {Bandwidths, MotorParameters}; Update recomputes it without
// touching any other state, so it is safe to call unconditionally every
// tick for live tuning.
type ControllerGains struct {
	BW Bandwidths

	// Current loop (internal model design: Kp = Wcc*L, Ki = Wcc*Rs).
	Kpd, Kpq float64
	Kid, Kiq float64
	Kad, Kaq float64 // anti-windup, 1/max(Kp, 1e-9)
	Ractive  float64 // active damping resistance, follows Rs

	// Speed loop (Kp = Jm*Wsc, Ki = Kp*Wsc*KiScale).
	KpSpeed, KiSpeed, KaSpeed float64
	KiScale                   float64
	DWrm                      float64 // ramp step per tick [mech rad/s]

	// PLL (Kp = 2*0.707*W, Ki = W^2).
	KpPLL, KiPLL float64
}

// NewControllerGains derives the full gain set for the given bandwidths
// and motor.
func NewControllerGains(bw Bandwidths, p MotorParameters) ControllerGains {
	g := ControllerGains{BW: bw, KiScale: 0.25}
	g.DWrm = 3000.0 * RPMToRad * Tsamp // 3000 rpm/s acceleration limit
	g.Update(p)
	return g
}

// Update recomputes the derived gains from the current motor parameters.
func (g *ControllerGains) Update(p MotorParameters) {
	g.Kpd = g.BW.Wcc * p.Ld
	g.Kpq = g.BW.Wcc * p.Lq
	g.Kid = g.BW.Wcc * p.Rs
	g.Kiq = g.BW.Wcc * p.Rs
	g.Kad = 1.0 / math.Max(g.Kpd, 1e-9)
	g.Kaq = 1.0 / math.Max(g.Kpq, 1e-9)
	g.Ractive = p.Rs

	g.KpSpeed = p.Jm * g.BW.Wsc
	g.KiSpeed = g.KpSpeed * g.BW.Wsc * g.KiScale
	g.KaSpeed = 1.0 / math.Max(g.KpSpeed, 1e-9)

	g.KpPLL = 2.0 * 0.707 * g.BW.Wpll
	g.KiPLL = g.BW.Wpll * g.BW.Wpll
}
