// Fault latching for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package fault latches drive faults: kill the bridge first, then record
// what the electrical state looked like at the trip. Hardware trips come
// from an arbitrary goroutine (the comparator path preempts everything on
// the real hardware); software trips come from the control tick's own
// limit checks.
package fault

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/KIPE12/RC-Driver/pkg/flags"
	"github.com/KIPE12/RC-Driver/pkg/pwm"
)

// Electrical is the drive state a trip snapshots.
type Electrical struct {
	Vdc  float64
	Idc  float64
	Ia   float64
	Ib   float64
	Ic   float64
	Wrpm float64
}

// Snapshot is the latched trip record.
type Snapshot struct {
	Electrical
	Code flags.FaultCode
	At   time.Time
}

// Monitor owns the trip handling. Each trip disables the output, drops
// Ready, latches the code (hardware wins), snapshots the electrical state,
// and bumps the counter.
type Monitor struct {
	flags *flags.Word
	out   pwm.Output
	count atomic.Uint64

	mu     sync.Mutex
	snap   Snapshot
	notify func(Snapshot)
}

// New builds a monitor over the shared flag word and the bridge output.
func New(w *flags.Word, out pwm.Output) *Monitor {
	return &Monitor{flags: w, out: out}
}

// SetNotify installs a hook called with a copy of each new trip record.
// The hook runs outside the monitor's lock; it must not block for long.
func (m *Monitor) SetNotify(fn func(Snapshot)) {
	m.mu.Lock()
	m.notify = fn
	m.mu.Unlock()
}

// Hardware latches a hardware trip. Safe from any goroutine.
func (m *Monitor) Hardware(e Electrical) {
	m.trip(flags.FaultHardware, e)
}

// Software latches a software trip. It never downgrades a latched
// hardware fault.
func (m *Monitor) Software(e Electrical) {
	m.trip(flags.FaultSoftware, e)
}

func (m *Monitor) trip(code flags.FaultCode, e Electrical) {
	m.out.Disable()
	m.flags.Clear(flags.Ready)
	m.flags.SetFault(code)

	snap := Snapshot{Electrical: e, Code: m.flags.Fault(), At: time.Now()}

	m.mu.Lock()
	m.snap = snap
	fn := m.notify
	m.mu.Unlock()

	m.count.Add(1)
	if fn != nil {
		fn(snap)
	}
}

// Clear unlatches the fault code. The trip record and counter stay for
// inspection.
func (m *Monitor) Clear() {
	m.flags.ClearFault()
}

// Last returns a copy of the most recent trip record.
func (m *Monitor) Last() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Count returns the total number of trips since start.
func (m *Monitor) Count() uint64 {
	return m.count.Load()
}
