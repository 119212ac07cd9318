// Open-loop controllers for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package foc

// OpenLoopControl ramps the open-loop current and speed targets, copies the
// results into the current regulator references, and integrates the
// open-loop angle. The current regulator itself still closes the loop on
// the measured currents; only the angle and references are forced.
func (inv *Inverter) OpenLoopControl() {
	o := &inv.Open
	p := &inv.Params

	o.IdRef = slew(o.IdRef, o.IdSet, o.IdSlope*Tsamp)
	inv.Current.IdRef = o.IdRef
	inv.Current.IqRef = o.IqRef

	o.WrpmRef = slew(o.WrpmRef, o.WrpmSet, o.WrpmSlope*Tsamp)
	o.Theta = BoundPi(o.Theta + o.WrpmRef*RPMToRad*p.PP*Tsamp)
}

// VrefGenControl drives the motor from the steady-state voltage model
// instead of the current PI. In openLoop mode the references come from the
// open-loop ramps and the integrated angle; otherwise the torque reference
// sets the q-current and the Hall estimate supplies the angle. No dead-time
// compensation is applied in either mode so the raw model voltage reaches
// the bridge unmodified.
func (inv *Inverter) VrefGenControl(openLoop bool) {
	o := &inv.Open
	c := &inv.Current
	p := &inv.Params

	var we float64
	if openLoop {
		o.IdRef = slew(o.IdRef, o.IdSet, o.IdSlope*Tsamp)
		c.IdRef = o.IdRef
		c.IqRef = o.IqRef

		o.WrpmRef = slew(o.WrpmRef, o.WrpmSet, o.WrpmSlope*Tsamp)
		o.WrRef = o.WrpmRef * RPMToRad * p.PP
		we = o.WrRef

		o.Theta = BoundPi(o.Theta + o.WrRef*Tsamp)
		inv.Angle.Source = AngleOpenLoop
	} else {
		c.IqRefUnsat = inv.Speed.TeRef * p.InvKt
		c.IqMax = 1.3 * p.IsRated
		c.IqRef = Limit(c.IqRefUnsat, -c.IqMax, c.IqMax)
		c.IdRef = 0

		we = inv.Speed.WrmRef * p.PP
		inv.Angle.Source = AngleHall
	}

	o.Vd = p.Rs*c.IdRef - we*p.Lq*c.IqRef
	o.Vq = p.Rs*c.IqRef + we*(p.Ld*c.IdRef+p.Lamf)
	c.VdRef = o.Vd
	c.VqRef = o.Vq

	inv.clarke()
	inv.selectAngle()
	inv.parkCurrents()
	inv.applyVoltage(false)
}

// VoltageOpenLoopControl applies externally set dq voltages directly. The
// open-loop angle keeps integrating so the rotating frame never stalls, but
// the active angle may instead come from the sensorless estimate when the
// angle source selects it. Measured currents are still transformed for
// monitoring and for the observer input.
func (inv *Inverter) VoltageOpenLoopControl() {
	o := &inv.Open
	p := &inv.Params

	o.WrpmRef = slew(o.WrpmRef, o.WrpmSet, o.WrpmSlope*Tsamp)
	o.Theta = BoundPi(o.Theta + o.WrpmRef*RPMToRad*p.PP*Tsamp)

	if inv.Angle.Source != AngleSensorless {
		inv.Angle.Source = AngleOpenLoop
	}

	inv.Current.VdRef = o.Vd
	inv.Current.VqRef = o.Vq

	inv.clarke()
	inv.selectAngle()
	inv.parkCurrents()
	inv.applyVoltage(false)
}

// slew moves cur toward target by at most step per call.
func slew(cur, target, step float64) float64 {
	switch {
	case target > cur+step:
		return cur + step
	case target < cur-step:
		return cur - step
	default:
		return target
	}
}
