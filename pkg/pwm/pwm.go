// PWM output adapter for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package pwm abstracts the three-phase bridge output. The control tick
// writes duties and gates the output; the fault path must be able to kill
// the output from any goroutine at any instant, so implementations keep
// the enable state in an atomic.
package pwm

import (
	"sync"
	"sync/atomic"
)

// Output is the bridge the control loop drives.
type Output interface {
	// SetDuties latches the per-phase duty commands in [0, 1].
	SetDuties(a, b, c float64)
	// Enable gates the bridge on.
	Enable()
	// Disable gates the bridge off. Safe from any goroutine.
	Disable()
	// Enabled reports the gate state.
	Enabled() bool
}

// Sim is the software bridge used with the plant model. Duties are
// mutex-guarded for concurrent status readers; the gate is atomic.
type Sim struct {
	enabled atomic.Bool

	mu      sync.Mutex
	a, b, c float64
}

// NewSim returns a disabled simulated bridge.
func NewSim() *Sim {
	return &Sim{}
}

func (s *Sim) SetDuties(a, b, c float64) {
	s.mu.Lock()
	s.a, s.b, s.c = a, b, c
	s.mu.Unlock()
}

func (s *Sim) Enable() {
	s.enabled.Store(true)
}

func (s *Sim) Disable() {
	s.enabled.Store(false)
}

func (s *Sim) Enabled() bool {
	return s.enabled.Load()
}

// Duties returns the latched duty commands. When the bridge is disabled
// all phases read as released (zero).
func (s *Sim) Duties() (a, b, c float64) {
	if !s.enabled.Load() {
		return 0, 0, 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a, s.b, s.c
}

// Recorder is a test double that logs every call.
type Recorder struct {
	mu sync.Mutex

	enabled      bool
	A, B, C      float64
	SetCalls     int
	EnableCalls  int
	DisableCalls int
}

func (r *Recorder) SetDuties(a, b, c float64) {
	r.mu.Lock()
	r.A, r.B, r.C = a, b, c
	r.SetCalls++
	r.mu.Unlock()
}

func (r *Recorder) Enable() {
	r.mu.Lock()
	r.enabled = true
	r.EnableCalls++
	r.mu.Unlock()
}

func (r *Recorder) Disable() {
	r.mu.Lock()
	r.enabled = false
	r.DisableCalls++
	r.mu.Unlock()
}

func (r *Recorder) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}
