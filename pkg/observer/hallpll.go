// Hall sensor PLL for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package observer provides the rotor angle and speed estimators: the Hall
// sensor PLL, the full-order mechanical observer in both textbook variants,
// and the extended-EMF sensorless estimator with its closure chain.
//
// Estimators are plain structs stepped once per control tick by their
// owner. None of them lock or allocate.
package observer

import (
	"math"

	"github.com/KIPE12/RC-Driver/pkg/foc"
)

// HallWn is the fixed natural frequency of the Hall tracking PLL in rad/s.
// The Hall edges arrive at most six times per electrical turn, so the PLL
// runs much slower than the general speed PLL tuning.
const HallWn = 2.0 * math.Pi * 10.0

// sectorAngles maps a 3-bit Hall code (bit0=A, bit1=B, bit2=C) to the
// nominal electrical angle of the sector. Codes 0 and 7 are invalid wiring
// states and keep the previous target.
var sectorAngles = [8]float64{
	6: 0,
	4: math.Pi / 3.0,
	5: 2.0 * math.Pi / 3.0,
	1: math.Pi,
	3: -2.0 * math.Pi / 3.0,
	2: -math.Pi / 3.0,
}

// SectorAngle returns the nominal electrical angle for a Hall code and
// whether the code is a valid sector.
func SectorAngle(code uint8) (float64, bool) {
	if code == 0 || code >= 7 {
		return 0, false
	}
	return sectorAngles[code], true
}

// HallPLL tracks the electrical angle between Hall edges with a type-2
// phase-locked loop. The loop filters the 60-degree sector quantization
// into a continuous angle and speed estimate.
type HallPLL struct {
	Kp, Ki float64

	Theta  float64 // estimated electrical angle [rad]
	W      float64 // estimated electrical speed [rad/s]
	Integ  float64
	Err    float64
	Target float64 // latched sector angle [rad]
	Code   uint8   // last valid Hall code
}

// NewHallPLL builds a Hall PLL at the fixed natural frequency with the
// standard 0.707 damping.
func NewHallPLL() *HallPLL {
	h := &HallPLL{}
	h.Kp = 2.0 * 0.707 * HallWn
	h.Ki = HallWn * HallWn
	return h
}

// Update advances the PLL one tick against the previously latched sector
// target, then latches the new Hall code. Stepping before latching keeps
// the estimate from jumping a full sector on the tick an edge arrives.
func (h *HallPLL) Update(code uint8) {
	h.Err = foc.BoundPi(h.Target - h.Theta)
	h.Integ += foc.Tsamp * h.Ki * h.Err
	h.W = h.Kp*h.Err + h.Integ
	h.Theta = foc.BoundPi(h.Theta + foc.Tsamp*h.W)

	if a, ok := SectorAngle(code); ok {
		h.Target = a
		h.Code = code
	}
}

// Reset clears the tracking state.
func (h *HallPLL) Reset() {
	h.Theta = 0
	h.W = 0
	h.Integ = 0
	h.Err = 0
	h.Target = 0
	h.Code = 0
}
