// Motor parameter set for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package foc

import "fmt"

// MotorParameters holds the electrical and mechanical constants of the
// attached PMSM plus the drive ratings. The set is immutable during
// operation; replace the whole struct through Inverter.Reconfigure so the
// derived constants and regulator gains never diverge from it.
type MotorParameters struct {
	Rs   float64 // stator resistance [ohm]
	Ld   float64 // d-axis inductance [H]
	Lq   float64 // q-axis inductance [H]
	Ls   float64 // synchronous inductance, follows Ld [H]
	Lamf float64 // permanent magnet flux linkage [Wb]
	PP   float64 // pole pairs
	Jm   float64 // rotor inertia [kg*m^2]
	Bm   float64 // viscous friction [N*m*s/rad]

	IdAlign   float64 // d-axis alignment current [A]
	IsRated   float64 // rated current [A]
	IsLimit   float64 // current limit [A]
	WrpmRated float64 // rated speed [rpm]
	TeRated   float64 // rated torque [N*m]

	// Derived, filled by normalize.
	InvPP   float64
	Kt      float64 // torque constant, 1.5*PP*Lamf
	InvKt   float64
	InvJm   float64
	TeLimit float64
}

// DefaultMotorParameters returns the XERUN 13.5T reference parameter set.
func DefaultMotorParameters() MotorParameters {
	p := MotorParameters{
		Rs:        19e-3,
		Ld:        3.2e-6,
		Lq:        3.2e-6,
		Lamf:      2e-3,
		PP:        1,
		Jm:        1e-6,
		Bm:        1e-6,
		IdAlign:   2,
		IsRated:   50,
		IsLimit:   50,
		WrpmRated: 10000,
		TeRated:   3,
	}
	p.normalize()
	return p
}

// normalize fills the derived constants. Kt and its reciprocal are always
// recomputed together. TeRated is an explicit rating, not Kt*IsRated.
func (p *MotorParameters) normalize() {
	p.Ls = p.Ld
	p.InvPP = 1.0 / p.PP
	p.Kt = 1.5 * p.PP * p.Lamf
	p.InvKt = 1.0 / p.Kt
	p.InvJm = 1.0 / p.Jm
	p.TeLimit = p.Kt * p.IsLimit
}

// Validate reports the first rating or constant that cannot produce a
// working drive.
func (p *MotorParameters) Validate() error {
	if p.PP <= 0 {
		return fmt.Errorf("foc: pole pair count must be positive, got %g", p.PP)
	}
	if p.Rs <= 0 || p.Ld <= 0 || p.Lq <= 0 {
		return fmt.Errorf("foc: Rs, Ld, Lq must be positive")
	}
	if p.Lamf <= 0 {
		return fmt.Errorf("foc: magnet flux linkage must be positive")
	}
	if p.Jm <= 0 {
		return fmt.Errorf("foc: rotor inertia must be positive")
	}
	if p.IsRated <= 0 || p.IsLimit <= 0 {
		return fmt.Errorf("foc: current ratings must be positive")
	}
	if p.WrpmRated <= 0 {
		return fmt.Errorf("foc: rated speed must be positive")
	}
	return nil
}
