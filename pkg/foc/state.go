// Inverter control state for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package foc

// AngleSource selects which electrical angle and speed the transform
// pipeline uses for the current tick.
type AngleSource int

const (
	// AngleHall uses the Hall PLL estimate (default source).
	AngleHall AngleSource = iota
	// AngleOpenLoop uses the integrated open-loop angle and ramped speed.
	AngleOpenLoop
	// AngleSensorless uses the extended-EMF observer estimate.
	AngleSensorless
	// AngleZero forces a zero angle (rotor alignment).
	AngleZero
)

func (s AngleSource) String() string {
	switch s {
	case AngleHall:
		return "hall"
	case AngleOpenLoop:
		return "openloop"
	case AngleSensorless:
		return "sensorless"
	case AngleZero:
		return "zero"
	default:
		return "unknown"
	}
}

// Measurement holds the calibrated per-tick electrical inputs.
type Measurement struct {
	Ia, Ib, Ic float64 // phase currents [A]
	Vdc        float64 // filtered bus voltage [V]
	InvVdc     float64 // 1/max(Vdc, 1V)
	Idc        float64 // bus current, if a sensor provides it [A]
}

// Frames holds the stationary and synchronous frame projections of the
// measured currents plus the reference-current projections used by the
// nonlinear compensation stage.
type Frames struct {
	Ialpha, Ibeta float64 // stationary frame [A]
	Id, Iq        float64 // synchronous frame [A]

	IalphaRef, IbetaRef float64
	IaRef, IbRef, IcRef float64
}

// Angle holds the active electrical angle, its advanced companion for the
// inverse transforms, and the speed in every unit the loops consume.
type Angle struct {
	Source AngleSource

	Theta              float64 // active electrical angle [rad]
	ThetaAdv           float64 // Theta + 1.5*Wr*Tsamp, wrapped
	SinTheta, CosTheta float64
	SinAdv, CosAdv     float64

	Wr   float64 // electrical speed [rad/s]
	Wrm  float64 // mechanical speed [rad/s]
	Wrpm float64 // mechanical speed [rpm]

	// Estimator inputs, refreshed before dispatch every tick.
	HallTheta, HallWr float64
	SensTheta, SensWr float64
}

// CurrentLoop holds the dq current regulator state.
type CurrentLoop struct {
	IdRef, IqRef float64
	IqRefUnsat   float64
	IqMax        float64

	IdErr, IqErr           float64
	VdInteg, VqInteg       float64
	VdFF, VqFF             float64
	VdUnsatRaw, VqUnsatRaw float64 // before the reference smoothing filter
	VdUnsat, VqUnsat       float64
	VdRef, VqRef           float64
	VdPrev, VqPrev         float64 // previous tick's saturated refs
	VdAW, VqAW             float64

	// AlphaLPF smooths the unsaturated voltage reference; 0 disables.
	AlphaLPF float64
}

// SpeedLoop holds the speed regulator state. TeRef is the shared torque
// reference: SpeedControl and TorqueControl write it, the current loop and
// the voltage feed-forward generator consume it.
type SpeedLoop struct {
	WrpmCmd float64 // external command [rpm]
	WrpmSet float64 // after the 5% deadzone
	WrmSet  float64
	WrmRef  float64 // ramped reference [mech rad/s]
	WrpmRef float64
	WrmErr  float64

	TeInteg float64
	TeUnsat float64
	TeRef   float64
	TeAW    float64
}

// OpenLoop holds the open-loop current/voltage controller state.
type OpenLoop struct {
	IdSet   float64 // target d-current [A]
	IdRef   float64 // ramped d-current [A]
	IdSlope float64 // [A/s]
	IqRef   float64 // externally set q-current [A]

	WrpmSet   float64 // target speed [rpm]
	WrpmRef   float64 // ramped speed [rpm]
	WrpmSlope float64 // [rpm/s]
	WrRef     float64 // ramped electrical speed [rad/s]

	Theta float64 // integrated open-loop electrical angle [rad]

	// dq voltage references: the feed-forward generator's model output in
	// Vref mode, the externally set values in voltage open-loop mode.
	Vd, Vq float64
}

// Output holds the transform pipeline tail: phase voltages, SVPWM offset,
// nonlinear compensation, and the duty commands.
type Output struct {
	Va, Vb, Vc           float64 // inverse-Clarke phase refs [V]
	Vmax, Vmin, Voffset  float64
	ANLC, BNLC           float64 // compensation shape, V = A*atan(B*Iref)
	VaNLC, VbNLC, VcNLC  float64
	Van, Vbn, Vcn        float64 // final clamped phase voltages [V]
	DutyA, DutyB, DutyC  float64 // [0,1]

	// Test-mode duties.
	TestDutyA, TestDutyB, TestDutyC float64
	DutyTestMag                     float64 // Hall position test magnitude
	DutyState                       int     // Hall position test step, 1..6
}

// AlignSeq is the rotor alignment state machine.
type AlignSeq struct {
	Mode        int // 0 init, 1 hold, 2 decay, 3 done
	Time        float64
	Done        bool
	ThetaOffset float64
}

// Injector is the square-wave voltage injection state.
type Injector struct {
	Cnt  int
	Vmag float64 // injection magnitude [V]
}

// Inverter aggregates the full control state. Exactly one goroutine (the
// control tick) mutates it; external actors communicate through setpoint
// fields published by the flag/setpoint layer, never by touching this
// struct directly.
type Inverter struct {
	Params MotorParameters
	Gains  ControllerGains

	Meas    Measurement
	Frames  Frames
	Angle   Angle
	Current CurrentLoop
	Speed   SpeedLoop
	Open    OpenLoop
	Out     Output
	Align   AlignSeq
	Inject  Injector
}

// NewInverter builds an inverter with validated parameters and fully
// derived gains.
func NewInverter(p MotorParameters, bw Bandwidths) (*Inverter, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.normalize()
	inv := &Inverter{
		Params: p,
		Gains:  NewControllerGains(bw, p),
	}
	inv.Open.IdSlope = 20.0
	inv.Open.WrpmSlope = 10.0
	inv.Out.ANLC = 3.0
	inv.Out.BNLC = 4.0
	inv.Out.DutyTestMag = 0.01
	inv.Out.TestDutyA = 0.2
	inv.Out.TestDutyB = 0.3
	inv.Out.TestDutyC = 0.8
	inv.Inject.Vmag = 1.0
	return inv, nil
}

// Reconfigure swaps the motor parameters and recomputes the derived gains
// in one step.
func (inv *Inverter) Reconfigure(p MotorParameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.normalize()
	inv.Params = p
	inv.Gains.Update(p)
	return nil
}

// UpdateGains recomputes the regulator gains from the current parameters.
// Cheap enough to run unconditionally every tick.
func (inv *Inverter) UpdateGains() {
	inv.Gains.Update(inv.Params)
}

// SetHallEstimate publishes the Hall PLL outputs. The Hall estimate is the
// default angle/speed source, so the speed fields are refreshed here too.
func (inv *Inverter) SetHallEstimate(theta, wr float64) {
	inv.Angle.HallTheta = theta
	inv.Angle.HallWr = wr
	inv.Angle.Wr = wr
	inv.Angle.Wrm = wr * inv.Params.InvPP
	inv.Angle.Wrpm = inv.Angle.Wrm * RadToRPM
}

// SetSensorlessEstimate publishes the extended-EMF observer outputs for the
// sensorless angle source.
func (inv *Inverter) SetSensorlessEstimate(theta, wrFiltered float64) {
	inv.Angle.SensTheta = theta
	inv.Angle.SensWr = wrFiltered
}

// Reset returns every regulator to its defined zero state. Called when the
// drive leaves a running mode or enters a fault; mirrors the original
// controller reset list, including the slower open-loop speed slope.
func (inv *Inverter) Reset() {
	inv.Speed.WrpmCmd = 0
	inv.Speed.WrpmSet = 0
	inv.Speed.WrmSet = 0
	inv.Speed.WrmRef = 0
	inv.Speed.WrpmRef = 0
	inv.Speed.WrmErr = 0
	inv.Speed.TeInteg = 0
	inv.Speed.TeUnsat = 0
	inv.Speed.TeRef = 0
	inv.Speed.TeAW = 0

	inv.Current.IdRef = 0
	inv.Current.IqRef = 0
	inv.Current.IqRefUnsat = 0
	inv.Current.VdInteg = 0
	inv.Current.VqInteg = 0
	inv.Current.VdUnsat = 0
	inv.Current.VqUnsat = 0
	inv.Current.VdAW = 0
	inv.Current.VqAW = 0
	inv.Current.AlphaLPF = 0

	inv.Open.IdSet = 0
	inv.Open.IdRef = 0
	inv.Open.IqRef = 0
	inv.Open.Vd = 0
	inv.Open.Vq = 0
	inv.Open.Theta = 0
	inv.Open.WrpmRef = 0
	inv.Open.WrpmSet = 0
	inv.Open.WrpmSlope = 5.0

	inv.Out.TestDutyA = 0
	inv.Out.TestDutyB = 0
	inv.Out.TestDutyC = 0
}

// ZeroDuties clears the duty commands (safe-stop companion to disabling
// the PWM output).
func (inv *Inverter) ZeroDuties() {
	inv.Out.DutyA = 0
	inv.Out.DutyB = 0
	inv.Out.DutyC = 0
}
