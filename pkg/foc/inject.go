// Square-wave injection for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package foc

// InjectionControl applies an alternating d-axis voltage square wave with
// the rotation frozen at zero angle. The measured current response is
// captured for offline identification of the stator resistance and
// inductance. Current references are left untouched so the dead-time
// compensation keeps its last shape.
func (inv *Inverter) InjectionControl() {
	inv.Angle.Source = AngleZero

	inv.clarke()
	inv.selectAngle()
	inv.parkCurrents()

	j := &inv.Inject
	if j.Cnt >= 2 {
		inv.Current.VdRef = j.Vmag
		j.Cnt = 0
	} else {
		inv.Current.VdRef = -j.Vmag
		j.Cnt = 1
	}
	j.Cnt++
	inv.Current.VqRef = 0

	inv.applyVoltage(true)
}
