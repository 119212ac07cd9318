// Reference frame transforms for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package foc

import "math"

// Clarke projects balanced three-phase quantities into the stationary
// frame with the 2/3 amplitude-invariant scaling.
func Clarke(a, b, c float64) (alpha, beta float64) {
	return (2.0*a - b - c) * oneThird, (b - c) * invSqrt3
}

// InverseClarke maps stationary-frame quantities back onto the three
// phases, the exact inverse of Clarke for zero-sum inputs.
func InverseClarke(alpha, beta float64) (a, b, c float64) {
	return alpha, -0.5*alpha + sqrt3Half*beta, -0.5*alpha - sqrt3Half*beta
}

// clarke runs the Clarke transform on the measured phase currents.
func (inv *Inverter) clarke() {
	inv.Frames.Ialpha, inv.Frames.Ibeta = Clarke(inv.Meas.Ia, inv.Meas.Ib, inv.Meas.Ic)
}

// selectAngle latches the active angle source into the working angle, its
// trig values, and the advanced angle used by the inverse transforms. The
// advance of 1.5 sample periods compensates the sample-to-PWM delay.
func (inv *Inverter) selectAngle() {
	a := &inv.Angle
	switch a.Source {
	case AngleOpenLoop:
		a.Theta = inv.Open.Theta
		a.Wr = inv.Open.WrpmRef * RPMToRad * inv.Params.PP
	case AngleSensorless:
		a.Theta = a.SensTheta
		a.Wr = a.SensWr
	case AngleZero:
		a.Theta = 0
		a.Wr = 0
	default:
		a.Theta = a.HallTheta
		a.Wr = a.HallWr
	}
	a.Wrm = a.Wr * inv.Params.InvPP
	a.Wrpm = a.Wrm * RadToRPM

	a.SinTheta = math.Sin(a.Theta)
	a.CosTheta = math.Cos(a.Theta)
	a.ThetaAdv = BoundPi(a.Theta + 1.5*a.Wr*Tsamp)
	a.SinAdv = math.Sin(a.ThetaAdv)
	a.CosAdv = math.Cos(a.ThetaAdv)
}

// parkCurrents rotates the stationary-frame currents into the synchronous
// frame at the active angle.
func (inv *Inverter) parkCurrents() {
	a := &inv.Angle
	inv.Frames.Id = inv.Frames.Ialpha*a.CosTheta + inv.Frames.Ibeta*a.SinTheta
	inv.Frames.Iq = -inv.Frames.Ialpha*a.SinTheta + inv.Frames.Ibeta*a.CosTheta
}

// applyVoltage runs the pipeline tail from the dq voltage references to the
// duty commands: inverse Park at the advanced angle, inverse Clarke, min-max
// zero-sequence injection, optional dead-time compensation, phase clamp,
// and the duty conversion.
func (inv *Inverter) applyVoltage(withNLC bool) {
	a := &inv.Angle
	o := &inv.Out

	valpha := inv.Current.VdRef*a.CosAdv - inv.Current.VqRef*a.SinAdv
	vbeta := inv.Current.VdRef*a.SinAdv + inv.Current.VqRef*a.CosAdv

	o.Va = valpha
	o.Vb = -0.5*valpha + sqrt3Half*vbeta
	o.Vc = -0.5*valpha - sqrt3Half*vbeta

	o.Vmax = math.Max(o.Va, math.Max(o.Vb, o.Vc))
	o.Vmin = math.Min(o.Va, math.Min(o.Vb, o.Vc))
	o.Voffset = -0.5 * (o.Vmax + o.Vmin)

	if withNLC {
		inv.compensateDeadTime()
	} else {
		o.VaNLC = 0
		o.VbNLC = 0
		o.VcNLC = 0
	}

	half := 0.5 * inv.Meas.Vdc
	o.Van = Limit(o.Va+o.Voffset+o.VaNLC, -half, half)
	o.Vbn = Limit(o.Vb+o.Voffset+o.VbNLC, -half, half)
	o.Vcn = Limit(o.Vc+o.Voffset+o.VcNLC, -half, half)

	o.DutyA = Limit(o.Van*inv.Meas.InvVdc+0.5, 0, 1)
	o.DutyB = Limit(o.Vbn*inv.Meas.InvVdc+0.5, 0, 1)
	o.DutyC = Limit(o.Vcn*inv.Meas.InvVdc+0.5, 0, 1)
}

// compensateDeadTime adds the arctangent-shaped dead-time compensation
// voltage per phase. The shape is driven by the reference currents, not the
// measured ones, so the correction stays smooth through the zero crossing.
func (inv *Inverter) compensateDeadTime() {
	a := &inv.Angle
	f := &inv.Frames
	o := &inv.Out

	f.IalphaRef = inv.Current.IdRef*a.CosAdv - inv.Current.IqRef*a.SinAdv
	f.IbetaRef = inv.Current.IdRef*a.SinAdv + inv.Current.IqRef*a.CosAdv

	f.IaRef = f.IalphaRef
	f.IbRef = -0.5*f.IalphaRef + sqrt3Half*f.IbetaRef
	f.IcRef = -0.5*f.IalphaRef - sqrt3Half*f.IbetaRef

	o.VaNLC = o.ANLC * math.Atan(o.BNLC*f.IaRef)
	o.VbNLC = o.ANLC * math.Atan(o.BNLC*f.IbRef)
	o.VcNLC = o.ANLC * math.Atan(o.BNLC*f.IcRef)
}
