// Drive status publication for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package control

import "github.com/KIPE12/RC-Driver/pkg/flags"

// Status is the periodically published drive snapshot consumed by the
// monitor and telemetry layers. The tick stores a fresh value behind an
// atomic pointer at the configured decimation; readers treat it as
// immutable.
type Status struct {
	Tick       uint64 `json:"tick"`
	Mode       string `json:"mode"`
	Ready      bool   `json:"ready"`
	NLC        bool   `json:"nlc"`
	Fault      string `json:"fault"`
	FaultCount uint64 `json:"fault_count"`

	Calibrated bool `json:"calibrated"`
	CalTick    int  `json:"cal_tick"`

	Vdc float64 `json:"vdc"`
	Idc float64 `json:"idc"`
	Ia  float64 `json:"ia"`
	Ib  float64 `json:"ib"`
	Ic  float64 `json:"ic"`

	Id    float64 `json:"id"`
	Iq    float64 `json:"iq"`
	IdRef float64 `json:"id_ref"`
	IqRef float64 `json:"iq_ref"`
	TeRef float64 `json:"te_ref"`

	Wrpm    float64 `json:"wrpm"`
	WrpmRef float64 `json:"wrpm_ref"`

	Theta       float64 `json:"theta"`
	AngleSource string  `json:"angle_source"`

	DutyA    float64 `json:"duty_a"`
	DutyB    float64 `json:"duty_b"`
	DutyC    float64 `json:"duty_c"`
	OutputOn bool    `json:"output_on"`

	HallCode  uint8   `json:"hall_code"`
	HallW     float64 `json:"hall_w"`
	SensTheta float64 `json:"sens_theta"`
	SensWr    float64 `json:"sens_wr"`

	ExtDuty     float64 `json:"ext_duty"`
	AlignDone   bool    `json:"align_done"`
	ThetaOffset float64 `json:"theta_offset"`

	CaptureArmed bool `json:"capture_armed"`
	CaptureLen   int  `json:"capture_len"`
}

// Status returns the most recently published snapshot, or nil before the
// first publication.
func (c *Controller) Status() *Status {
	return c.status.Load()
}

func (c *Controller) maybePublish() {
	if c.tick != 1 && c.tick%c.statusEvery != 0 {
		return
	}
	c.publishStatus()
}

func (c *Controller) publishStatus() {
	inv := c.inv
	snap := c.word.Snapshot()
	calTick, _ := c.cal.Progress()

	st := &Status{
		Tick:        c.tick,
		Mode:        c.mode.String(),
		Ready:       snap.Test(flags.Ready),
		NLC:         snap.Test(flags.NLC),
		Fault:       snap.Fault().String(),
		FaultCount:  c.faults.Count(),
		Calibrated:  c.cal.Done(),
		CalTick:     calTick,
		Vdc:         inv.Meas.Vdc,
		Idc:         inv.Meas.Idc,
		Ia:          inv.Meas.Ia,
		Ib:          inv.Meas.Ib,
		Ic:          inv.Meas.Ic,
		Id:          inv.Frames.Id,
		Iq:          inv.Frames.Iq,
		IdRef:       inv.Current.IdRef,
		IqRef:       inv.Current.IqRef,
		TeRef:       inv.Speed.TeRef,
		Wrpm:        inv.Angle.Wrpm,
		WrpmRef:     inv.Speed.WrpmRef,
		Theta:       inv.Angle.Theta,
		AngleSource: inv.Angle.Source.String(),
		DutyA:       inv.Out.DutyA,
		DutyB:       inv.Out.DutyB,
		DutyC:       inv.Out.DutyC,
		OutputOn:    c.out.Enabled(),
		HallCode:    c.hallCode,
		HallW:       c.hall.W,
		SensTheta:   c.sens.Theta,
		SensWr:      c.sens.WrFiltered,
		ExtDuty:     c.ExternalDuty(),
		AlignDone:   inv.Align.Done,
		ThetaOffset: inv.Align.ThetaOffset,
	}
	if c.cap != nil {
		st.CaptureArmed = c.cap.Armed()
		st.CaptureLen = c.cap.Len()
	}
	c.status.Store(st)

	if c.met != nil {
		c.met.SetElectrical(st.Vdc, st.Idc, st.Ia, st.Ib, st.Ic, st.Wrpm)
		c.met.SetRegulator(int(c.mode), int(inv.Angle.Source),
			st.Id, st.Iq, st.IdRef, st.IqRef, st.TeRef, st.WrpmRef)
		c.met.SetDuties(st.DutyA, st.DutyB, st.DutyC)
		c.met.SetEstimators(c.hallCode, c.hall.W, c.sens.WrFiltered, c.sens.Theta)
		c.met.SetFaultCode(int(snap.Fault()))
		c.met.SetCalibration(c.cal.Done(), calTick)
	}
}
