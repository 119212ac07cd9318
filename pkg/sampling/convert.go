// ADC conversion for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package sampling converts raw ADC codes into calibrated electrical
// measurements, runs the startup offset calibration, and records ring
// captures of the measured channels for diagnostics.
package sampling

import (
	"github.com/KIPE12/RC-Driver/pkg/foc"
)

// Sensing scale factors of the drive front end.
const (
	CurrentLSBPerAmp = 81.9  // shunt + amplifier + ADC chain
	VdcLSBPerVolt    = 203.4 // bus divider chain

	// Bus voltage filter coefficient and the floor that keeps 1/Vdc sane
	// while the bus is still charging.
	vdcAlpha = 0.999
	vdcFloor = 1.0
)

// RawSample is one synchronized acquisition of the four analog channels,
// as raw converter codes.
type RawSample struct {
	Ia, Ib, Ic, Vdc float64
}

// Converter applies offsets, channel gains, and the common scale
// compensation to raw samples, and maintains the filtered bus voltage.
type Converter struct {
	Offsets   [3]float64 // current channel offsets [LSB]
	Gains     [4]float64 // per-channel trim
	ScaleComp float64    // common scale compensation

	VdcFilt float64 // bus voltage filter state [V]
}

// NewConverter returns a converter with mid-scale current offsets and
// unity gains.
func NewConverter() *Converter {
	c := &Converter{ScaleComp: 1.0}
	c.Offsets = [3]float64{2048, 2048, 2048}
	c.Gains = [4]float64{1, 1, 1, 1}
	return c
}

// Convert turns a raw sample into calibrated measurements. The published
// bus voltage is the filtered one; the reciprocal is floored so duty
// conversion stays finite with the bus down.
func (c *Converter) Convert(raw RawSample, m *foc.Measurement) {
	ia := (raw.Ia - c.Offsets[0]) / CurrentLSBPerAmp
	ib := (raw.Ib - c.Offsets[1]) / CurrentLSBPerAmp
	ic := (raw.Ic - c.Offsets[2]) / CurrentLSBPerAmp

	m.Ia = c.Gains[0] * ia * c.ScaleComp
	m.Ib = c.Gains[1] * ib * c.ScaleComp
	m.Ic = c.Gains[2] * ic * c.ScaleComp

	c.ConvertBus(raw, m)
}

// ConvertBus converts and filters the bus voltage channel only. The bus
// needs no offset, so this runs from the very first tick; by the time the
// current offsets are calibrated the voltage filter has fully settled.
func (c *Converter) ConvertBus(raw RawSample, m *foc.Measurement) {
	vdc := c.Gains[3] * (raw.Vdc / VdcLSBPerVolt) * c.ScaleComp

	c.VdcFilt = vdc*(1.0-vdcAlpha) + vdcAlpha*c.VdcFilt
	m.Vdc = c.VdcFilt
	if c.VdcFilt > vdcFloor {
		m.InvVdc = 1.0 / c.VdcFilt
	} else {
		m.InvVdc = 1.0 / vdcFloor
	}
}
