// Rotor alignment sequence for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package foc

// Alignment hold and release times. The d-axis current is held at the
// alignment level for alignHold seconds, then zeroed for the remainder of
// alignTotal so the rotor settles before the sequence reports done.
const (
	alignHold  = 4.0
	alignTotal = 5.0
)

// AlignControl runs one tick of the rotor alignment sequence: lock the
// angle to zero, force the alignment current on the d axis, and let the
// current regulator hold the rotor. Done latches once the sequence
// completes and stays set until the next alignment starts.
func (inv *Inverter) AlignControl() {
	a := &inv.Align

	switch a.Mode {
	case 0:
		a.Done = false
		a.ThetaOffset = 0
		inv.Current.IdRef = inv.Params.IdAlign
		inv.Current.IqRef = 0
		a.Time = 0
		a.Mode = 1
	case 1:
		inv.Angle.Source = AngleZero
		inv.CurrentControl(false)
		if a.Time >= alignHold {
			a.Mode = 2
		}
	case 2:
		inv.Current.IdRef = 0
		inv.Angle.Source = AngleZero
		inv.CurrentControl(false)
		if a.Time >= alignTotal {
			a.Mode = 3
		}
	case 3:
		a.Done = true
		a.Mode = 0
	}
	a.Time += Tsamp
}
