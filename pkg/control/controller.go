// Control tick dispatcher for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package control owns the 100 µs drive tick: sample conversion,
// protection, estimator updates, and dispatch of exactly one regulator
// per tick from the operating flag word.
//
// All regulator and estimator state is owned by the tick goroutine.
// External actors (monitor, RC input) request changes through the flag
// word, the atomic external duty cell, or the pending setpoint box,
// which the tick drains at the start of each pass.
package control

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/KIPE12/RC-Driver/pkg/errors"
	"github.com/KIPE12/RC-Driver/pkg/fault"
	"github.com/KIPE12/RC-Driver/pkg/flags"
	"github.com/KIPE12/RC-Driver/pkg/foc"
	"github.com/KIPE12/RC-Driver/pkg/log"
	"github.com/KIPE12/RC-Driver/pkg/metrics"
	"github.com/KIPE12/RC-Driver/pkg/observer"
	"github.com/KIPE12/RC-Driver/pkg/pwm"
	"github.com/KIPE12/RC-Driver/pkg/sampling"
)

// SoftOvercurrentAmps is the software protection threshold. Each phase is
// checked independently every tick once calibration is complete.
const SoftOvercurrentAmps = 80.0

// setpoints is the pending box for externally requested scalar changes.
// Nil fields mean "no request". The tick drains it at dispatch start.
type setpoints struct {
	speedCmd   *float64
	openIdSet  *float64
	openWrpm   *float64
	volcVd     *float64
	volcVq     *float64
	testDuties *[3]float64
	hallStep   *int
	injectVmag *float64
	smoothing  *float64
	bandwidths *foc.Bandwidths
	params     *foc.MotorParameters
	sensDrive  *bool
}

// Options wires a Controller together.
type Options struct {
	Inverter   *foc.Inverter
	Flags      *flags.Word
	Faults     *fault.Monitor
	Output     pwm.Output
	Converter  *sampling.Converter
	Calibrator *sampling.Calibrator
	Capture    *sampling.Capture // optional
	HallPLL    *observer.HallPLL
	Sensorless *observer.Sensorless
	Logger     *log.Logger           // optional
	Metrics    *metrics.DriveMetrics // optional

	// StatusEvery is the tick decimation for status publication;
	// default 100 (100 Hz at the 10 kHz tick).
	StatusEvery uint64
}

// Controller runs the per-tick control sequence.
type Controller struct {
	inv    *foc.Inverter
	word   *flags.Word
	faults *fault.Monitor
	out    pwm.Output
	conv   *sampling.Converter
	cal    *sampling.Calibrator
	cap    *sampling.Capture
	hall   *observer.HallPLL
	sens   *observer.Sensorless
	logger *log.Logger
	met    *metrics.DriveMetrics

	// Tick-owned state.
	tick       uint64
	mode       Mode
	hallCode   uint8
	prevValpha float64
	prevVbeta  float64
	calLogged  bool

	// External command cells.
	extDuty   atomic.Uint64 // math.Float64bits
	dirty     atomic.Bool
	pendingMu sync.Mutex
	pending   setpoints

	statusEvery uint64
	status      atomic.Pointer[Status]
}

// New validates the wiring and returns a ready Controller. The PWM output
// starts disabled; nothing switches until a mode is dispatched.
func New(opt Options) (*Controller, error) {
	switch {
	case opt.Inverter == nil:
		return nil, errors.ControlErrorf("controller needs an inverter")
	case opt.Flags == nil:
		return nil, errors.ControlErrorf("controller needs a flag word")
	case opt.Faults == nil:
		return nil, errors.ControlErrorf("controller needs a fault monitor")
	case opt.Output == nil:
		return nil, errors.ControlErrorf("controller needs a pwm output")
	case opt.Converter == nil:
		return nil, errors.ControlErrorf("controller needs a converter")
	case opt.Calibrator == nil:
		return nil, errors.ControlErrorf("controller needs a calibrator")
	case opt.HallPLL == nil:
		return nil, errors.ControlErrorf("controller needs a hall pll")
	case opt.Sensorless == nil:
		return nil, errors.ControlErrorf("controller needs a sensorless observer")
	}

	logger := opt.Logger
	if logger == nil {
		logger = log.New("control")
	}
	statusEvery := opt.StatusEvery
	if statusEvery == 0 {
		statusEvery = 100
	}

	c := &Controller{
		inv:         opt.Inverter,
		word:        opt.Flags,
		faults:      opt.Faults,
		out:         opt.Output,
		conv:        opt.Converter,
		cal:         opt.Calibrator,
		cap:         opt.Capture,
		hall:        opt.HallPLL,
		sens:        opt.Sensorless,
		logger:      logger,
		met:         opt.Metrics,
		statusEvery: statusEvery,
	}
	c.out.Disable()
	return c, nil
}

// Tick runs one full control pass. Single caller only: the Runner (or a
// test) invokes it at the sample period.
func (c *Controller) Tick(raw sampling.RawSample, hallCode uint8) {
	c.tick++
	c.hallCode = hallCode

	// A pending clear request is honored first so a persisting
	// overcurrent re-trips within this same tick.
	if c.word.Test(flags.FaultClear) {
		c.word.Clear(flags.FaultClear)
		c.faults.Clear()
		c.logger.Info("fault cleared by request")
		if c.met != nil {
			c.met.RecordFaultClear()
		}
	}

	if c.dirty.Load() {
		c.applyPending()
	}

	// Until the current offsets are known the current conversion path
	// must not run; only the offset accumulator and the bus voltage
	// filter (which needs no offset) touch this tick.
	if !c.cal.Done() {
		c.conv.ConvertBus(raw, &c.inv.Meas)
		c.cal.Step(raw, c.conv)
		if c.cal.Done() && !c.calLogged {
			c.calLogged = true
			c.logger.Info("current offset calibration complete: a=%.1f b=%.1f c=%.1f",
				c.conv.Offsets[0], c.conv.Offsets[1], c.conv.Offsets[2])
		}
		c.mode = ModeStop
		c.maybePublish()
		return
	}

	inv := c.inv
	c.conv.Convert(raw, &inv.Meas)

	// Software overcurrent protection, each phase on its own.
	if math.Abs(inv.Meas.Ia) >= SoftOvercurrentAmps {
		c.softwareTrip()
	}
	if math.Abs(inv.Meas.Ib) >= SoftOvercurrentAmps {
		c.softwareTrip()
	}
	if math.Abs(inv.Meas.Ic) >= SoftOvercurrentAmps {
		c.softwareTrip()
	}

	// Gains follow the live parameters so retuning lands immediately.
	inv.UpdateGains()

	// The Hall PLL is the default angle source and always runs.
	c.hall.Update(hallCode)
	inv.SetHallEstimate(c.hall.Theta, c.hall.W)

	// The EEMF observer needs unbroken sample history, so it also runs
	// every tick, fed the voltage the bridge actually switched last tick.
	ialpha, ibeta := foc.Clarke(inv.Meas.Ia, inv.Meas.Ib, inv.Meas.Ic)
	c.sens.Update(c.prevValpha, c.prevVbeta, ialpha, ibeta)
	inv.SetSensorlessEstimate(c.sens.ThetaPrev, c.sens.WrFiltered)

	// One snapshot drives the whole dispatch; a trip above is already
	// visible in it.
	snap := c.word.Snapshot()
	if snap.Test(flags.Ready) && !snap.Faulted() {
		c.mode = compileMode(snap)
		c.dispatch(c.mode)
	} else {
		c.mode = ModeStop
		c.safeStop(true)
	}

	if c.cap != nil && c.cap.Armed() {
		c.cap.Append(&inv.Meas, inv.Frames.Id, inv.Frames.Iq)
	}

	c.maybePublish()
}

// dispatch runs the regulator for the compiled mode and pushes its output.
func (c *Controller) dispatch(mode Mode) {
	inv := c.inv

	switch mode {
	case ModeRun:
		inv.SpeedControl()
		inv.VrefGenControl(false)
		c.applyOutput()

	case ModeHallPosTest:
		inv.HallPositionTest()
		c.applyOutput()

	case ModeDutyTest:
		inv.DutyTest()
		c.applyOutput()

	case ModeOLC:
		inv.Angle.Source = foc.AngleOpenLoop
		inv.OpenLoopControl()
		inv.CurrentControl(false)
		c.applyOutput()

	case ModeVrefGen:
		inv.VrefGenControl(true)
		c.applyOutput()

	case ModeVOLC:
		if c.sensorlessRequested() {
			inv.Angle.Source = foc.AngleSensorless
		}
		inv.VoltageOpenLoopControl()
		c.applyOutput()

	case ModeParamEst:
		inv.InjectionControl()
		c.applyOutput()

	case ModeAlign:
		inv.AlignControl()
		if inv.Align.Done {
			c.word.Clear(flags.Align)
			c.logger.Info("align complete, theta offset %.4f rad", inv.Align.ThetaOffset)
		}
		c.applyOutput()

	case ModeTorque:
		inv.TorqueControl(c.ExternalDuty())
		inv.CurrentControl(false)
		c.applyOutput()

	default:
		c.safeStop(false)
	}
}

// applyOutput pushes the computed duties to the bridge and records the
// voltage they imply for the next sensorless update. The fault code is
// re-read right before enabling: a hardware trip can land between the
// regulator and this point, and a tripped bridge must never re-enable.
func (c *Controller) applyOutput() {
	o := &c.inv.Out
	c.out.SetDuties(o.DutyA, o.DutyB, o.DutyC)
	if c.word.Fault() == flags.FaultNone {
		c.out.Enable()
		vdc := c.inv.Meas.Vdc
		va := (o.DutyA - 0.5) * vdc
		vb := (o.DutyB - 0.5) * vdc
		vc := (o.DutyC - 0.5) * vdc
		c.prevValpha, c.prevVbeta = foc.Clarke(va, vb, vc)
	} else {
		c.prevValpha, c.prevVbeta = 0, 0
	}
}

// safeStop is the fall-through when no mode is selected (keep Ready) or
// the not-ready/faulted branch (drop Ready too).
func (c *Controller) safeStop(clearReady bool) {
	c.out.Disable()
	c.inv.ZeroDuties()
	c.out.SetDuties(0, 0, 0)
	c.inv.Reset()
	c.word.Clear(flags.ModeMask | flags.NLC)
	if clearReady {
		c.word.Clear(flags.Ready)
	}
	c.prevValpha, c.prevVbeta = 0, 0
}

func (c *Controller) softwareTrip() {
	inv := c.inv
	c.faults.Software(fault.Electrical{
		Vdc:  inv.Meas.Vdc,
		Idc:  inv.Meas.Idc,
		Ia:   inv.Meas.Ia,
		Ib:   inv.Meas.Ib,
		Ic:   inv.Meas.Ic,
		Wrpm: inv.Angle.Wrpm,
	})
	if c.met != nil {
		c.met.RecordFault("software")
	}
}

// applyPending drains the setpoint box into the tick-owned state.
func (c *Controller) applyPending() {
	c.pendingMu.Lock()
	p := c.pending
	c.pending = setpoints{}
	c.dirty.Store(false)
	c.pendingMu.Unlock()

	inv := c.inv
	if p.speedCmd != nil {
		inv.Speed.WrpmCmd = *p.speedCmd
	}
	if p.openIdSet != nil {
		inv.Open.IdSet = *p.openIdSet
	}
	if p.openWrpm != nil {
		inv.Open.WrpmSet = *p.openWrpm
	}
	if p.volcVd != nil {
		inv.Open.Vd = *p.volcVd
	}
	if p.volcVq != nil {
		inv.Open.Vq = *p.volcVq
	}
	if p.testDuties != nil {
		inv.Out.TestDutyA = p.testDuties[0]
		inv.Out.TestDutyB = p.testDuties[1]
		inv.Out.TestDutyC = p.testDuties[2]
	}
	if p.hallStep != nil {
		inv.Out.DutyState = *p.hallStep
	}
	if p.injectVmag != nil {
		inv.Inject.Vmag = *p.injectVmag
	}
	if p.smoothing != nil {
		inv.Current.AlphaLPF = foc.Limit(*p.smoothing, 0, 0.999)
	}
	if p.bandwidths != nil {
		inv.Gains.BW = *p.bandwidths
	}
	if p.params != nil {
		if err := inv.Reconfigure(*p.params); err != nil {
			c.logger.Warn("rejected parameter update: %v", err)
		} else {
			c.sens.Reconfigure(inv.Params)
		}
	}
	if p.sensDrive != nil {
		if *p.sensDrive {
			c.inv.Angle.Source = foc.AngleSensorless
		} else if c.inv.Angle.Source == foc.AngleSensorless {
			c.inv.Angle.Source = foc.AngleHall
		}
	}
}

func (c *Controller) queue(set func(*setpoints)) {
	c.pendingMu.Lock()
	set(&c.pending)
	c.dirty.Store(true)
	c.pendingMu.Unlock()
}

// SetSpeedCommand requests a new closed-loop speed command [rpm].
func (c *Controller) SetSpeedCommand(rpm float64) {
	c.queue(func(p *setpoints) { p.speedCmd = &rpm })
}

// SetOpenLoopCurrent requests a new open-loop d-axis current set [A].
func (c *Controller) SetOpenLoopCurrent(id float64) {
	c.queue(func(p *setpoints) { p.openIdSet = &id })
}

// SetOpenLoopSpeed requests a new open-loop speed set [rpm].
func (c *Controller) SetOpenLoopSpeed(rpm float64) {
	c.queue(func(p *setpoints) { p.openWrpm = &rpm })
}

// SetOpenLoopVoltage requests new voltage open-loop dq references [V].
func (c *Controller) SetOpenLoopVoltage(vd, vq float64) {
	c.queue(func(p *setpoints) { p.volcVd, p.volcVq = &vd, &vq })
}

// SetTestDuties requests new fixed-duty test commands.
func (c *Controller) SetTestDuties(a, b, d float64) {
	duties := [3]float64{a, b, d}
	c.queue(func(p *setpoints) { p.testDuties = &duties })
}

// SetHallTestStep selects the energized pattern (1..6) for the Hall
// position test.
func (c *Controller) SetHallTestStep(n int) {
	c.queue(func(p *setpoints) { p.hallStep = &n })
}

// SetInjectionMagnitude requests a new square-wave injection voltage [V].
func (c *Controller) SetInjectionMagnitude(v float64) {
	c.queue(func(p *setpoints) { p.injectVmag = &v })
}

// SetSmoothing requests a new voltage reference LPF coefficient [0,1).
func (c *Controller) SetSmoothing(alpha float64) {
	c.queue(func(p *setpoints) { p.smoothing = &alpha })
}

// SetBandwidths requests new regulator tuning bandwidths.
func (c *Controller) SetBandwidths(bw foc.Bandwidths) {
	c.queue(func(p *setpoints) { p.bandwidths = &bw })
}

// SetParameters requests a live motor parameter swap.
func (c *Controller) SetParameters(mp foc.MotorParameters) {
	c.queue(func(p *setpoints) { p.params = &mp })
}

// UseSensorlessAngle switches the voltage open-loop mode between its own
// ramped angle and the EEMF observer estimate.
func (c *Controller) UseSensorlessAngle(on bool) {
	c.queue(func(p *setpoints) { p.sensDrive = &on })
}

func (c *Controller) sensorlessRequested() bool {
	return c.inv.Angle.Source == foc.AngleSensorless
}

// SetExternalDuty publishes the RC duty command consumed by the torque
// mode. Clamped to [0,1]. Safe from any goroutine.
func (c *Controller) SetExternalDuty(d float64) {
	c.extDuty.Store(math.Float64bits(foc.Limit(d, 0, 1)))
}

// ExternalDuty returns the last published RC duty command.
func (c *Controller) ExternalDuty() float64 {
	return math.Float64frombits(c.extDuty.Load())
}

// Mode returns the mode dispatched on the most recent tick. Tick-owned;
// meaningful from the tick goroutine or after ticking stops.
func (c *Controller) Mode() Mode {
	return c.mode
}

// Ticks returns the number of completed ticks.
func (c *Controller) Ticks() uint64 {
	return c.tick
}

// Inverter exposes the regulator state for tests and the simulator.
func (c *Controller) Inverter() *foc.Inverter {
	return c.inv
}
