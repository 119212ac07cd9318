// Field-oriented control core for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package foc implements the field-oriented control core of the inverter:
// reference-frame transforms, PI current/speed regulators with anti-windup,
// SVPWM duty generation with nonlinear compensation, the open-loop and test
// controllers, and the rotor alignment sequencer.
//
// All mutable state lives in an Inverter value owned by exactly one control
// tick at a time. Nothing in this package locks, blocks, or allocates on the
// update path.
package foc

import "math"

// Control loop timing and unit conversions.
const (
	// Tsamp is the control period in seconds (10 kHz).
	Tsamp = 100e-6

	// RPMToRad converts mechanical rpm to mechanical rad/s.
	RPMToRad = 2.0 * math.Pi / 60.0

	// RadToRPM converts mechanical rad/s to mechanical rpm.
	RadToRPM = 60.0 / (2.0 * math.Pi)
)

const (
	invSqrt3  = 0.5773502691896258 // 1/sqrt(3)
	sqrt3Half = 0.8660254037844386 // sqrt(3)/2
	oneThird  = 1.0 / 3.0
)

// BoundPi wraps an electrical or mechanical angle to [-pi, pi].
func BoundPi(theta float64) float64 {
	for theta > math.Pi {
		theta -= 2.0 * math.Pi
	}
	for theta < -math.Pi {
		theta += 2.0 * math.Pi
	}
	return theta
}

// Limit clamps v to the closed interval [lo, hi].
func Limit(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// LowPass is a discrete first-order low-pass filter,
// y[k] = alpha*y[k-1] + (1-alpha)*x[k].
type LowPass struct {
	Alpha float64
	Y     float64
}

// Update advances the filter by one sample and returns the output.
func (f *LowPass) Update(x float64) float64 {
	f.Y = f.Alpha*f.Y + (1.0-f.Alpha)*x
	return f.Y
}

// Reset clears the filter state.
func (f *LowPass) Reset() {
	f.Y = 0
}

// AlphaForCutoff returns the smoothing factor for a first-order filter with
// cutoff frequency fc in Hz at the Tsamp sample rate.
func AlphaForCutoff(fc float64) float64 {
	if fc <= 0 {
		return 1.0
	}
	tau := 1.0 / (2.0 * math.Pi * fc)
	return tau / (tau + Tsamp)
}
