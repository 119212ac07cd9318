// Full-order mechanical observer for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package observer

import (
	"fmt"

	"github.com/KIPE12/RC-Driver/pkg/foc"
)

// Variant selects where the position-error correction enters the
// mechanical observer. V434 applies it inside the position integration
// only, so the speed output is the pure torque-balance integral. V435
// folds it into the speed output itself, which also changes what the next
// tick's friction term sees. The numbers are the textbook equation labels;
// both forms are legitimate and the choice is a tuning decision.
type Variant int

const (
	V434 Variant = iota
	V435
)

func (v Variant) String() string {
	switch v {
	case V434:
		return "4-34"
	case V435:
		return "4-35"
	default:
		return "unknown"
	}
}

// ParseVariant maps a config string to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "", "4-34", "434":
		return V434, nil
	case "4-35", "435":
		return V435, nil
	default:
		return 0, fmt.Errorf("observer: unknown variant %q", s)
	}
}

// MechObserver estimates mechanical speed, position, and load torque from
// an electrical position error, using a torque balance on the estimated
// plant. Gains come from third-order Butterworth pole placement at the
// configured bandwidth.
type MechObserver struct {
	Variant Variant

	// Estimated plant.
	PP, InvPP  float64
	Ld, Lq     float64
	Lamf       float64
	Jm, InvJm  float64
	Bm         float64

	// Pole placement.
	Wso        float64
	L1, L2, L3 float64
	K1, K2, K3 float64

	// State.
	ThetarmErr float64
	TeEst      float64
	TlEst      float64
	TeFF       float64
	Integ      float64 // torque-balance speed integral [mech rad/s]
	Fb         float64 // speed fed back into the friction term

	// Outputs.
	Thetarm float64 // mechanical angle [rad]
	Thetar  float64 // electrical angle [rad]
	Wrm     float64 // mechanical speed [rad/s]
	Wr      float64 // electrical speed [rad/s]
	Tload   float64 // load torque estimate [N*m]
}

// NewMechObserver builds the observer for the given variant and bandwidth
// beta in rad/s, copying the plant constants it estimates against.
func NewMechObserver(v Variant, beta float64, p foc.MotorParameters) *MechObserver {
	o := &MechObserver{
		Variant: v,
		PP:      p.PP,
		InvPP:   p.InvPP,
		Ld:      p.Ld,
		Lq:      p.Lq,
		Lamf:    p.Lamf,
		Jm:      p.Jm,
		InvJm:   p.InvJm,
		Bm:      p.Bm,
	}
	o.SetBandwidth(beta)
	return o
}

// Reconfigure swaps the estimated plant constants and rederives the gains
// at the current bandwidth.
func (o *MechObserver) Reconfigure(p foc.MotorParameters) {
	o.PP = p.PP
	o.InvPP = p.InvPP
	o.Ld = p.Ld
	o.Lq = p.Lq
	o.Lamf = p.Lamf
	o.Jm = p.Jm
	o.InvJm = p.InvJm
	o.Bm = p.Bm
	o.SetBandwidth(-o.Wso)
}

// SetBandwidth recomputes the Butterworth gains for a new bandwidth.
func (o *MechObserver) SetBandwidth(beta float64) {
	o.Wso = -beta
	o.L1 = -2.0*o.Wso - o.Bm*o.InvJm
	o.L2 = 2.0*o.Wso*o.Wso - o.L1*o.Bm*o.InvJm
	o.L3 = o.Wso * o.Wso * o.Wso * o.Jm
	o.K1 = o.L1
	o.K2 = o.Jm * o.L2
	o.K3 = -o.L3
}

// Update advances the observer one tick. errThetar is the electrical
// position error driving the correction; id and iq feed the torque
// feed-forward.
func (o *MechObserver) Update(errThetar, id, iq float64) {
	o.ThetarmErr = errThetar * o.InvPP

	o.TeEst = o.K2 * o.ThetarmErr
	o.TlEst += o.K3 * o.ThetarmErr * foc.Tsamp
	o.TeFF = 1.5 * o.PP * (o.Lamf*iq + (o.Ld-o.Lq)*id*iq)

	o.Integ += (o.TeEst + o.TeFF + o.TlEst - o.Bm*o.Fb) * o.InvJm * foc.Tsamp

	if o.Variant == V435 {
		o.Wrm = o.Integ + o.K1*o.ThetarmErr
		o.Fb = o.Integ
		o.Wr = o.Wrm * o.PP
		o.Thetarm += o.Wrm * foc.Tsamp
	} else {
		o.Wrm = o.Integ
		o.Fb = o.Integ
		o.Wr = o.Wrm * o.PP
		o.Thetarm += (o.Wrm + o.K1*o.ThetarmErr) * foc.Tsamp
	}
	o.Thetarm = foc.BoundPi(o.Thetarm)
	o.Thetar = foc.BoundPi(o.PP * o.Thetarm)

	o.Tload = -o.TlEst
}

// Reset clears the estimation state, keeping plant constants and gains.
func (o *MechObserver) Reset() {
	o.ThetarmErr = 0
	o.TeEst = 0
	o.TlEst = 0
	o.TeFF = 0
	o.Integ = 0
	o.Fb = 0
	o.Thetarm = 0
	o.Thetar = 0
	o.Wrm = 0
	o.Wr = 0
	o.Tload = 0
}
