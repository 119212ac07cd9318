// Extended-EMF sensorless estimator for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package observer

import (
	"math"

	"github.com/KIPE12/RC-Driver/pkg/foc"
)

// Sensorless estimates the rotor angle from the extended back-EMF seen in
// its own synchronous frame. A PI current-model observer extracts the EEMF
// from the voltage/current history; the angle error atan2(-EEMFd, EEMFq)
// then drives an embedded mechanical observer whose position and speed
// close the loop back into the rotation for the next tick. The speed
// output is additionally low-pass filtered for consumers that feed it into
// the advance-angle computation.
type Sensorless struct {
	// Estimated plant.
	Rs, Ld, Lq float64
	InvLd      float64
	Wec        float64 // current-model observer bandwidth [rad/s]

	// Gains, refreshed from Wec on every update so the bandwidth is live.
	Kpd, Kid float64
	Kpq, Kiq float64

	// Half-step voltage averaging.
	VAlphaAvg, VBetaAvg float64
	VAlphaOld, VBetaOld float64

	// Estimator frame.
	Theta              float64 // estimated electrical angle [rad]
	ThetaPrev          float64 // angle the current tick's rotation used
	SinTheta, CosTheta float64
	Wr                 float64 // estimated electrical speed [rad/s]
	WrFiltered         float64

	// Synchronous-frame signals.
	Vd, Vq           float64
	Id, Iq           float64
	IdEst, IqEst     float64
	IdErr, IqErr     float64
	IdInteg, IqInteg float64
	EEMFd, EEMFq     float64
	VdFF, VqFF       float64
	ErrThetar        float64

	Mech *MechObserver
	lpf  foc.LowPass
}

// NewSensorless builds the estimator at current-model bandwidth wc with an
// embedded mechanical observer (variant, bandwidth beta) and a speed
// output filter with cutoff lpfHz.
func NewSensorless(wc float64, p foc.MotorParameters, v Variant, beta, lpfHz float64) *Sensorless {
	s := &Sensorless{
		Rs:    p.Rs,
		Ld:    p.Ld,
		Lq:    p.Lq,
		InvLd: 1.0 / p.Ld,
		Wec:   wc,
		Mech:  NewMechObserver(v, beta, p),
	}
	s.lpf.Alpha = foc.AlphaForCutoff(lpfHz)
	return s
}

// Reconfigure swaps the estimated plant constants after a live motor
// parameter change. Estimation state carries over; the gain refresh in
// Update picks the new values up on the next tick.
func (s *Sensorless) Reconfigure(p foc.MotorParameters) {
	s.Rs = p.Rs
	s.Ld = p.Ld
	s.Lq = p.Lq
	s.InvLd = 1.0 / p.Ld
	s.Mech.Reconfigure(p)
}

// Update advances the estimator one tick. valpha/vbeta are the previous
// tick's applied stationary-frame voltages; ialpha/ibeta are this tick's
// measured stationary-frame currents.
func (s *Sensorless) Update(valpha, vbeta, ialpha, ibeta float64) {
	s.Kpd = s.Ld * s.Wec
	s.Kid = s.Rs * s.Wec
	s.Kpq = s.Ld * s.Wec
	s.Kiq = s.Rs * s.Wec

	s.SinTheta = math.Sin(s.Theta)
	s.CosTheta = math.Cos(s.Theta)

	// Average consecutive voltage refs to land on the half-step the
	// current measurement actually saw.
	s.VAlphaAvg = (s.VAlphaOld + valpha) * 0.5
	s.VBetaAvg = (s.VBetaOld + vbeta) * 0.5
	s.VAlphaOld = valpha
	s.VBetaOld = vbeta

	s.Vd = s.VAlphaAvg*s.CosTheta + s.VBetaAvg*s.SinTheta
	s.Vq = -s.VAlphaAvg*s.SinTheta + s.VBetaAvg*s.CosTheta

	s.Id = ialpha*s.CosTheta + ibeta*s.SinTheta
	s.Iq = -ialpha*s.SinTheta + ibeta*s.CosTheta

	s.IdErr = s.Id - s.IdEst
	s.IqErr = s.Iq - s.IqEst

	s.IdInteg += foc.Tsamp * s.Kid * s.IdErr
	s.IqInteg += foc.Tsamp * s.Kiq * s.IqErr

	s.EEMFd = -(s.IdErr*s.Kpd + s.IdInteg)
	s.EEMFq = -(s.IqErr*s.Kpq + s.IqInteg)

	s.VdFF = s.Vd + s.Wr*s.Lq*s.Iq
	s.VqFF = s.Vq - s.Wr*s.Lq*s.Id

	// Current model integrates both axes with the d inductance.
	s.IdEst += s.InvLd * foc.Tsamp * (s.VdFF - s.EEMFd - s.Rs*s.Id)
	s.IqEst += s.InvLd * foc.Tsamp * (s.VqFF - s.EEMFq - s.Rs*s.Iq)

	// Keep the atan2 denominator away from zero. The clamp ignores the
	// sign on purpose; at the speeds where it engages the angle output is
	// not trusted anyway.
	if math.Abs(s.EEMFq) < 1.0 {
		s.EEMFq = 1.0
	}

	s.ErrThetar = math.Atan2(-s.EEMFd, s.EEMFq)
	s.ThetaPrev = s.Theta

	s.Mech.Update(s.ErrThetar, s.Id, s.Iq)
	s.Theta = s.Mech.Thetar
	s.Wr = s.Mech.Wr
	s.WrFiltered = s.lpf.Update(s.Wr)
}

// Reset clears the estimation chain, including the embedded mechanical
// observer and the output filter.
func (s *Sensorless) Reset() {
	s.VAlphaAvg, s.VBetaAvg = 0, 0
	s.VAlphaOld, s.VBetaOld = 0, 0
	s.Theta, s.ThetaPrev = 0, 0
	s.SinTheta, s.CosTheta = 0, 0
	s.Wr, s.WrFiltered = 0, 0
	s.Vd, s.Vq = 0, 0
	s.Id, s.Iq = 0, 0
	s.IdEst, s.IqEst = 0, 0
	s.IdErr, s.IqErr = 0, 0
	s.IdInteg, s.IqInteg = 0, 0
	s.EEMFd, s.EEMFq = 0, 0
	s.VdFF, s.VqFF = 0, 0
	s.ErrThetar = 0
	s.Mech.Reset()
	s.lpf.Reset()
}
