// Drive mode and fault flags for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package flags holds the drive's mode bits and fault code in a single
// atomic word. External writers (monitor, RC input, telemetry commands)
// and the hardware trip path mutate it at any time; the control tick reads
// one consistent snapshot per tick and applies its own transitions with
// compare-and-swap, so no state can tear across a tick.
package flags

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// Bit is a single mode flag.
type Bit uint32

const (
	// Ready gates all drive modes; cleared by faults and not-ready stops.
	Ready Bit = 1 << iota
	// FaultClear requests a latched fault to be cleared at tick start.
	FaultClear
	// Run is closed-loop speed control.
	Run
	// OLC is current-mode open-loop control.
	OLC
	// VOLC is voltage-mode open-loop control.
	VOLC
	// VrefGen is feed-forward voltage generation.
	VrefGen
	// Align requests the rotor alignment sequence.
	Align
	// NLC enables dead-time compensation in the pipelines that use it.
	NLC
	// TorqueMode maps the RC receiver duty to a torque reference.
	TorqueMode
	// DutyTest drives the fixed test duties.
	DutyTest
	// ParamEst runs the square-wave injection.
	ParamEst
	// HallPosTest drives the Hall commissioning patterns.
	HallPosTest
)

// ModeMask covers every bit that selects a drive mode; the safe-stop path
// clears exactly these.
const ModeMask = Run | OLC | VOLC | VrefGen | Align | TorqueMode |
	DutyTest | ParamEst | HallPosTest

var bitNames = map[Bit]string{
	Ready:       "ready",
	FaultClear:  "fault_clear",
	Run:         "run",
	OLC:         "olc",
	VOLC:        "volc",
	VrefGen:     "vref_gen",
	Align:       "align",
	NLC:         "nlc",
	TorqueMode:  "torque_mode",
	DutyTest:    "duty_test",
	ParamEst:    "param_est",
	HallPosTest: "hall_pos_test",
}

var namedBits map[string]Bit

func init() {
	namedBits = make(map[string]Bit, len(bitNames))
	for b, n := range bitNames {
		namedBits[n] = b
	}
}

// String returns the wire name of a single bit, or a hex rendering for
// combinations.
func (b Bit) String() string {
	if n, ok := bitNames[b]; ok {
		return n
	}
	return fmt.Sprintf("bit(0x%x)", uint32(b))
}

// ParseBit resolves a wire name like "run" or "torque_mode" to its bit.
func ParseBit(name string) (Bit, error) {
	b, ok := namedBits[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown flag %q", name)
	}
	return b, nil
}

// FaultCode distinguishes the latched fault severities.
type FaultCode uint32

const (
	FaultNone FaultCode = iota
	FaultHardware
	FaultSoftware
)

func (c FaultCode) String() string {
	switch c {
	case FaultNone:
		return "none"
	case FaultHardware:
		return "hardware"
	case FaultSoftware:
		return "software"
	default:
		return "unknown"
	}
}

const (
	faultShift        = 12
	faultMask  uint32 = 0x3 << faultShift
)

// Word is the shared flag word. The zero value has no flags set and no
// fault latched.
type Word struct {
	v atomic.Uint32
}

// Set raises the given bits.
func (w *Word) Set(b Bit) {
	for {
		old := w.v.Load()
		if w.v.CompareAndSwap(old, old|uint32(b)) {
			return
		}
	}
}

// Clear drops the given bits.
func (w *Word) Clear(b Bit) {
	for {
		old := w.v.Load()
		if w.v.CompareAndSwap(old, old&^uint32(b)) {
			return
		}
	}
}

// Test reports whether all given bits are set.
func (w *Word) Test(b Bit) bool {
	return w.v.Load()&uint32(b) == uint32(b)
}

// SetFault latches a fault code. A software fault never downgrades a
// latched hardware fault; a hardware fault always wins.
func (w *Word) SetFault(c FaultCode) {
	for {
		old := w.v.Load()
		cur := FaultCode(old & faultMask >> faultShift)
		if c == FaultSoftware && cur == FaultHardware {
			return
		}
		next := old&^faultMask | uint32(c)<<faultShift
		if w.v.CompareAndSwap(old, next) {
			return
		}
	}
}

// Fault returns the latched fault code.
func (w *Word) Fault() FaultCode {
	return FaultCode(w.v.Load() & faultMask >> faultShift)
}

// ClearFault unlatches the fault code.
func (w *Word) ClearFault() {
	for {
		old := w.v.Load()
		if w.v.CompareAndSwap(old, old&^faultMask) {
			return
		}
	}
}

// Snapshot returns one consistent view of the whole word.
func (w *Word) Snapshot() Snapshot {
	return Snapshot{raw: w.v.Load()}
}

// Snapshot is an immutable copy of the flag word.
type Snapshot struct {
	raw uint32
}

// Test reports whether all given bits are set in the snapshot.
func (s Snapshot) Test(b Bit) bool {
	return s.raw&uint32(b) == uint32(b)
}

// Fault returns the snapshot's fault code.
func (s Snapshot) Fault() FaultCode {
	return FaultCode(s.raw & faultMask >> faultShift)
}

// Faulted reports whether any fault is latched.
func (s Snapshot) Faulted() bool {
	return s.raw&faultMask != 0
}

// Active returns the wire names of every set bit, sorted, for status
// rendering.
func (s Snapshot) Active() []string {
	names := make([]string, 0, len(bitNames))
	for b, n := range bitNames {
		if s.Test(b) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}
