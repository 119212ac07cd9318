// Synchronous-frame current regulator for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package foc

// CurrentControl runs one tick of the dq current regulator: frame
// transforms, decoupled PI with back-calculation anti-windup, cross-coupling
// feed-forward, and the full output pipeline including dead-time
// compensation.
//
// When useTorqueRef is true the shared torque reference is mapped to the
// q-axis current reference first, with the d-axis reference forced to zero.
// Callers that set the current references themselves (alignment, open-loop
// ramping, torque dispatch) pass false.
func (inv *Inverter) CurrentControl(useTorqueRef bool) {
	c := &inv.Current
	g := &inv.Gains
	p := &inv.Params

	if useTorqueRef {
		c.IqRefUnsat = inv.Speed.TeRef * p.InvKt
		c.IqMax = 3.0 * p.IsRated
		c.IqRef = Limit(c.IqRefUnsat, -c.IqMax, c.IqMax)
		c.IdRef = 0
	}

	c.VdPrev = c.VdRef
	c.VqPrev = c.VqRef

	inv.clarke()
	inv.selectAngle()
	inv.parkCurrents()

	c.IdErr = c.IdRef - inv.Frames.Id
	c.IqErr = c.IqRef - inv.Frames.Iq

	c.VdInteg += g.Kid * (c.IdErr - g.Kad*c.VdAW) * Tsamp
	c.VqInteg += g.Kiq * (c.IqErr - g.Kaq*c.VqAW) * Tsamp

	wr := inv.Angle.Wr
	c.VdFF = -wr * p.Lq * c.IqRef
	c.VqFF = wr * (p.Ld*c.IdRef + p.Lamf)

	c.VdUnsatRaw = g.Kpd*c.IdErr + c.VdInteg + c.VdFF - g.Ractive*inv.Frames.Id
	c.VqUnsatRaw = g.Kpq*c.IqErr + c.VqInteg + c.VqFF - g.Ractive*inv.Frames.Iq

	c.VdUnsat = c.AlphaLPF*c.VdUnsat + (1.0-c.AlphaLPF)*c.VdUnsatRaw
	c.VqUnsat = c.AlphaLPF*c.VqUnsat + (1.0-c.AlphaLPF)*c.VqUnsatRaw

	vmax := inv.Meas.Vdc * invSqrt3
	c.VdRef = Limit(c.VdUnsat, -vmax, vmax)
	c.VqRef = Limit(c.VqUnsat, -vmax, vmax)

	c.VdAW = c.VdUnsat - c.VdRef
	c.VqAW = c.VqUnsat - c.VqRef

	inv.applyVoltage(true)
}
