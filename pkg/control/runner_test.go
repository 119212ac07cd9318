// Tick runner tests for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package control

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KIPE12/RC-Driver/pkg/sampling"
)

// stubSource returns a fixed sample, optionally stalling to force
// overruns.
type stubSource struct {
	raw   sampling.RawSample
	hall  uint8
	delay time.Duration
	calls atomic.Uint64
}

func (s *stubSource) Sample() (sampling.RawSample, uint8) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.raw, s.hall
}

func TestNewRunnerDefaultInterval(t *testing.T) {
	c, _ := newTestController(t)
	r := NewRunner(c, &stubSource{}, 0, quietLogger(), nil)
	if r.Interval() != DefaultInterval {
		t.Errorf("interval = %v, want %v", r.Interval(), DefaultInterval)
	}
	r = NewRunner(c, &stubSource{}, time.Millisecond, quietLogger(), nil)
	if r.Interval() != time.Millisecond {
		t.Errorf("interval = %v, want 1ms", r.Interval())
	}
}

func TestRunStopsImmediatelyWhenCanceled(t *testing.T) {
	c, rg := newTestController(t)
	r := NewRunner(c, &stubSource{raw: idleRaw(), hall: 6}, time.Millisecond, quietLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Run(ctx)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
	if c.Ticks() != 0 {
		t.Errorf("ticks = %d after pre-canceled run, want 0", c.Ticks())
	}
	if rg.out.Enabled() {
		t.Error("output enabled after shutdown")
	}
}

func TestRunTicksUntilDeadline(t *testing.T) {
	c, rg := newTestController(t)
	src := &stubSource{raw: idleRaw(), hall: 6}
	r := NewRunner(c, src, time.Millisecond, quietLogger(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := r.Run(ctx)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run returned %v, want deadline exceeded", err)
	}
	if c.Ticks() < 5 {
		t.Errorf("ticks = %d over 50ms at 1ms, want at least 5", c.Ticks())
	}
	if src.calls.Load() != c.Ticks() {
		t.Errorf("source sampled %d times for %d ticks", src.calls.Load(), c.Ticks())
	}
	// Shutdown releases the bridge whatever state the loop was in.
	if rg.out.Enabled() {
		t.Error("output enabled after shutdown")
	}
	if rg.out.A != 0 || rg.out.B != 0 || rg.out.C != 0 {
		t.Errorf("duties = %v/%v/%v after shutdown, want released",
			rg.out.A, rg.out.B, rg.out.C)
	}
}

func TestOverrunsAreCounted(t *testing.T) {
	c, _ := newTestController(t)
	// Every sample stalls for many periods, so every tick overruns.
	src := &stubSource{raw: idleRaw(), hall: 6, delay: 2 * time.Millisecond}
	r := NewRunner(c, src, 100*time.Microsecond, quietLogger(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_ = r.Run(ctx)

	if r.Overruns() == 0 {
		t.Fatal("no overruns counted with a stalling source")
	}
	if r.Overruns() > c.Ticks() {
		t.Errorf("overruns = %d exceed ticks = %d", r.Overruns(), c.Ticks())
	}
}
