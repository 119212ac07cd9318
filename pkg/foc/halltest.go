// Commissioning duty patterns for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package foc

// HallPositionTest energizes one of six fixed phase patterns at a small
// duty so the Hall code for each stator position can be read back during
// commissioning. The step is operator-selected; anything outside 1..6
// de-energizes all phases.
func (inv *Inverter) HallPositionTest() {
	o := &inv.Out
	t := o.DutyTestMag

	switch o.DutyState {
	case 1:
		o.DutyA, o.DutyB, o.DutyC = t, 0, 0
	case 2:
		o.DutyA, o.DutyB, o.DutyC = t, t, 0
	case 3:
		o.DutyA, o.DutyB, o.DutyC = 0, t, 0
	case 4:
		o.DutyA, o.DutyB, o.DutyC = 0, t, t
	case 5:
		o.DutyA, o.DutyB, o.DutyC = 0, 0, t
	case 6:
		o.DutyA, o.DutyB, o.DutyC = t, 0, t
	default:
		o.DutyA, o.DutyB, o.DutyC = 0, 0, 0
	}
}

// DutyTest drives fixed per-phase duties for bridge and sensing checks.
// The commands are clamped below full-on so the bootstrap supplies keep
// refreshing.
func (inv *Inverter) DutyTest() {
	o := &inv.Out
	o.DutyA = Limit(o.TestDutyA, 0, 0.95)
	o.DutyB = Limit(o.TestDutyB, 0, 0.95)
	o.DutyC = Limit(o.TestDutyC, 0, 0.95)
}
