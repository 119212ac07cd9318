// Throttle-to-torque mapping for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package foc

import "math"

// TorqueControl maps an RC receiver throttle duty to the torque and current
// references. The receiver pulse is 1-2ms in a 10ms frame, so the usable
// duty range is [0.1, 0.2] with 0.15 as neutral; the mapping scales that to
// the full signed rated torque. A 5% deadzone around neutral keeps the
// drive quiet on a jittery receiver.
func (inv *Inverter) TorqueControl(duty float64) {
	s := &inv.Speed
	c := &inv.Current
	p := &inv.Params

	te := (duty - 0.15) * 20.0 * p.TeRated
	if math.Abs(te) < 0.05*p.TeRated {
		te = 0
	}
	s.TeRef = Limit(te, -p.TeRated, p.TeRated)

	c.IdRef = 0
	c.IqMax = math.Sqrt(p.IsLimit*p.IsLimit - c.IdRef*c.IdRef)
	c.IqRefUnsat = s.TeRef * p.InvKt
	c.IqRef = Limit(c.IqRefUnsat, -c.IqMax, c.IqMax)
}
