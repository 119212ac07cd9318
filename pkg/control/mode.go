// Control mode selection for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package control

import "github.com/KIPE12/RC-Driver/pkg/flags"

// Mode is the single control path dispatched on one tick. The flag word
// can carry several requests at once; compileMode resolves them
// first-match-wins so exactly one regulator runs.
type Mode int

const (
	ModeStop Mode = iota
	ModeRun
	ModeHallPosTest
	ModeDutyTest
	ModeOLC
	ModeVrefGen
	ModeVOLC
	ModeParamEst
	ModeAlign
	ModeTorque
)

var modeNames = [...]string{
	ModeStop:        "stop",
	ModeRun:         "run",
	ModeHallPosTest: "hall-pos-test",
	ModeDutyTest:    "duty-test",
	ModeOLC:         "olc",
	ModeVrefGen:     "vref-gen",
	ModeVOLC:        "volc",
	ModeParamEst:    "param-est",
	ModeAlign:       "align",
	ModeTorque:      "torque",
}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return "unknown"
	}
	return modeNames[m]
}

// compileMode resolves the mode-select bits into one dispatch decision.
// Closed-loop run outranks everything; the externally commanded torque
// path yields to every explicit test or tuning mode.
func compileMode(s flags.Snapshot) Mode {
	switch {
	case s.Test(flags.Run):
		return ModeRun
	case s.Test(flags.HallPosTest):
		return ModeHallPosTest
	case s.Test(flags.DutyTest):
		return ModeDutyTest
	case s.Test(flags.OLC):
		return ModeOLC
	case s.Test(flags.VrefGen):
		return ModeVrefGen
	case s.Test(flags.VOLC):
		return ModeVOLC
	case s.Test(flags.ParamEst):
		return ModeParamEst
	case s.Test(flags.Align):
		return ModeAlign
	case s.Test(flags.TorqueMode):
		return ModeTorque
	default:
		return ModeStop
	}
}
