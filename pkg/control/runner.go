// Fixed-period tick runner for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package control

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/brandondube/pctl"

	"github.com/KIPE12/RC-Driver/pkg/log"
	"github.com/KIPE12/RC-Driver/pkg/metrics"
	"github.com/KIPE12/RC-Driver/pkg/sampling"
)

// DefaultInterval is the control period, 100 µs (10 kHz).
const DefaultInterval = 100 * time.Microsecond

// SignalSource supplies the per-tick inputs: four raw ADC codes and the
// 3-bit Hall state. The plant simulator and hardware shims implement it.
type SignalSource interface {
	Sample() (sampling.RawSample, uint8)
}

// Runner paces Controller.Tick at the sample period with a phase lock, so
// the average rate holds even when individual ticks jitter.
type Runner struct {
	ctl      *Controller
	src      SignalSource
	interval time.Duration
	logger   *log.Logger
	met      *metrics.DriveMetrics

	overruns atomic.Uint64
}

// NewRunner wires a runner. interval <= 0 selects DefaultInterval.
func NewRunner(ctl *Controller, src SignalSource, interval time.Duration, logger *log.Logger, met *metrics.DriveMetrics) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = log.New("runner")
	}
	return &Runner{
		ctl:      ctl,
		src:      src,
		interval: interval,
		logger:   logger,
		met:      met,
	}
}

// Interval returns the configured tick period.
func (r *Runner) Interval() time.Duration {
	return r.interval
}

// Overruns returns how many ticks exceeded the period so far.
func (r *Runner) Overruns() uint64 {
	return r.overruns.Load()
}

// Run drives ticks until the context is canceled, then leaves the bridge
// disabled with zeroed duties. The tick body allocates nothing in steady
// state; status publication is decimated inside the controller.
func (r *Runner) Run(ctx context.Context) error {
	pl := pctl.PhaseLock{Interval: r.interval}
	r.logger.Info("control loop started, interval %s", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return ctx.Err()
		default:
		}

		pl.Stabilize()

		start := time.Now()
		raw, hall := r.src.Sample()
		r.ctl.Tick(raw, hall)
		elapsed := time.Since(start)

		if r.met != nil {
			r.met.ObserveTick(elapsed)
		}
		if elapsed > r.interval {
			n := r.overruns.Add(1)
			if r.met != nil {
				r.met.RecordOverrun()
			}
			// Log the first few and then sample, so a systematic
			// overrun cannot flood the writer from the loop.
			if n <= 5 || n%10000 == 0 {
				r.logger.Warn("tick overrun: %s > %s (total %d)", elapsed, r.interval, n)
			}
		}
	}
}

func (r *Runner) shutdown() {
	r.ctl.out.Disable()
	r.ctl.out.SetDuties(0, 0, 0)
	r.logger.Info("control loop stopped after %d ticks, %d overruns",
		r.ctl.Ticks(), r.overruns.Load())
}
