// Dispatcher tests for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package control

import (
	"math"
	"testing"

	"github.com/KIPE12/RC-Driver/pkg/fault"
	"github.com/KIPE12/RC-Driver/pkg/flags"
	"github.com/KIPE12/RC-Driver/pkg/foc"
	"github.com/KIPE12/RC-Driver/pkg/observer"
	"github.com/KIPE12/RC-Driver/pkg/plant"
	"github.com/KIPE12/RC-Driver/pkg/pwm"
	"github.com/KIPE12/RC-Driver/pkg/sampling"
)

// newSimRig wires a controller to the simulated machine through a shared
// software bridge, the same loop the sim binary runs.
func newSimRig(t *testing.T) (*Controller, *plant.Motor, *pwm.Sim, *flags.Word, *sampling.Calibrator) {
	t.Helper()
	p := foc.DefaultMotorParameters()
	inv, err := foc.NewInverter(p, foc.DefaultBandwidths())
	if err != nil {
		t.Fatal(err)
	}
	bridge := pwm.NewSim()
	word := &flags.Word{}
	cal := &sampling.Calibrator{}
	c, err := New(Options{
		Inverter:    inv,
		Flags:       word,
		Faults:      fault.New(word, bridge),
		Output:      bridge,
		Converter:   sampling.NewConverter(),
		Calibrator:  cal,
		Capture:     sampling.NewCapture(64),
		HallPLL:     observer.NewHallPLL(),
		Sensorless:  observer.NewSensorless(2.0*math.Pi*200.0, p, observer.V434, 2.0*math.Pi*40.0, 50.0),
		Logger:      quietLogger(),
		StatusEvery: 1000,
	})
	if err != nil {
		t.Fatal(err)
	}
	return c, plant.New(p, bridge, 24.0), bridge, word, cal
}

// TestSpeedRunConvergesOnSimulatedMachine drives the whole stack against
// the dq plant model: offset calibration from resting codes, then a
// 1000 rpm speed command through the Hall-sensored run path. The Hall
// speed estimate carries sector ripple and the light rotor rings at the
// speed-loop crossover, so convergence is judged on means taken over one
// electrical revolution after the ramp and the ringing have settled.
func TestSpeedRunConvergesOnSimulatedMachine(t *testing.T) {
	c, motor, bridge, word, cal := newSimRig(t)

	for i := 0; i < sampling.CalSettleTicks+sampling.CalAverageTicks; i++ {
		raw, hall := motor.Sample()
		c.Tick(raw, hall)
	}
	if !cal.Done() {
		t.Fatal("calibration not finished after the full window")
	}
	if bridge.Enabled() {
		t.Fatal("bridge enabled with no mode requested")
	}

	word.Set(flags.Ready | flags.Run)
	c.SetSpeedCommand(1000)

	const (
		runTicks  = 6000
		meanTicks = 600 // one electrical revolution at 1000 rpm
	)
	var estSum, trueSum float64
	for i := 0; i < runTicks; i++ {
		raw, hall := motor.Sample()
		c.Tick(raw, hall)

		da, db, dc := bridge.Duties()
		for _, d := range []float64{da, db, dc} {
			if d < 0 || d > 1 {
				t.Fatalf("tick %d: duty out of range: %g/%g/%g", i, da, db, dc)
			}
		}
		if i >= runTicks-meanTicks {
			estSum += c.Inverter().Angle.Wrpm
			trueSum += motor.Wrpm()
		}
	}

	if !bridge.Enabled() {
		t.Fatal("bridge dropped out during the run")
	}
	if got := c.Mode(); got != ModeRun {
		t.Fatalf("mode = %v after run, want run", got)
	}
	if !word.Test(flags.Ready) {
		t.Fatal("ready flag lost during the run")
	}

	estMean := estSum / meanTicks
	trueMean := trueSum / meanTicks
	if math.Abs(trueMean-1000) > 20 {
		t.Errorf("true speed mean = %g rpm, want 1000 +-20", trueMean)
	}
	if math.Abs(estMean-1000) > 20 {
		t.Errorf("estimated speed mean = %g rpm, want 1000 +-20", estMean)
	}
	if vdc := c.Inverter().Meas.Vdc; math.Abs(vdc-24.0) > 0.1 {
		t.Errorf("filtered bus = %g V, want 24", vdc)
	}
}

// TestReversalOnSimulatedMachine flips the command once the drive is
// settled and checks the four-quadrant path brakes through zero.
func TestReversalOnSimulatedMachine(t *testing.T) {
	c, motor, bridge, word, _ := newSimRig(t)

	for i := 0; i < sampling.CalSettleTicks+sampling.CalAverageTicks; i++ {
		raw, hall := motor.Sample()
		c.Tick(raw, hall)
	}
	word.Set(flags.Ready | flags.Run)
	c.SetSpeedCommand(800)

	step := func(n int) {
		for i := 0; i < n; i++ {
			raw, hall := motor.Sample()
			c.Tick(raw, hall)
		}
	}
	step(5000)
	if motor.Wrpm() < 500 {
		t.Fatalf("forward run stalled at %g rpm", motor.Wrpm())
	}

	c.SetSpeedCommand(-800)
	step(9000)

	// One electrical revolution at 800 rpm is 750 ticks.
	var trueSum float64
	for i := 0; i < 750; i++ {
		raw, hall := motor.Sample()
		c.Tick(raw, hall)
		trueSum += motor.Wrpm()
	}
	if mean := trueSum / 750; math.Abs(mean+800) > 25 {
		t.Errorf("reversed speed mean = %g rpm, want -800 +-25", mean)
	}
	if !bridge.Enabled() || c.Mode() != ModeRun {
		t.Fatalf("drive left run state during reversal: enabled=%v mode=%v",
			bridge.Enabled(), c.Mode())
	}
}
