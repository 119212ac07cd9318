// Speed regulator for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package foc

import "math"

// SpeedControl runs one tick of the speed regulator: command deadzone,
// slew-rate limited reference, and a PI with back-calculation anti-windup
// producing the shared torque reference.
func (inv *Inverter) SpeedControl() {
	s := &inv.Speed
	g := &inv.Gains
	p := &inv.Params

	if math.Abs(s.WrpmCmd) < 0.05*p.WrpmRated {
		s.WrpmSet = 0
	} else {
		s.WrpmSet = s.WrpmCmd
	}
	s.WrmSet = s.WrpmSet * RPMToRad

	s.WrmRef = slew(s.WrmRef, s.WrmSet, g.DWrm)
	s.WrpmRef = s.WrmRef * RadToRPM

	s.WrmErr = s.WrmRef - inv.Angle.Wrm

	s.TeInteg += g.KiSpeed * (s.WrmErr - g.KaSpeed*s.TeAW) * Tsamp
	s.TeUnsat = g.KpSpeed*s.WrmErr + s.TeInteg
	s.TeRef = Limit(s.TeUnsat, -p.TeRated, p.TeRated)
	s.TeAW = s.TeUnsat - s.TeRef
}
