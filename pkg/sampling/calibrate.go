// Current offset calibration for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package sampling

// Calibration phases, in control ticks. The front end settles for the
// first window, then the offsets are the mean of the second. One second
// total at the 10kHz tick.
const (
	CalSettleTicks  = 5000
	CalAverageTicks = 5000
)

// Calibrator measures the zero-current offsets of the three current
// channels at startup. The inverter output must stay disabled while it
// runs; the dispatcher guarantees that by running calibration and
// conversion mutually exclusively.
type Calibrator struct {
	settle int
	count  int
	sums   [3]uint64
	done   bool
}

// Step consumes one raw sample. On the final averaging tick it writes the
// measured offsets into the converter and latches done.
func (cal *Calibrator) Step(raw RawSample, conv *Converter) {
	if cal.done {
		return
	}
	if cal.settle < CalSettleTicks {
		cal.settle++
		return
	}

	// Accumulate truncated codes, matching the fixed-point accumulator
	// width of the front end.
	cal.sums[0] += uint64(raw.Ia)
	cal.sums[1] += uint64(raw.Ib)
	cal.sums[2] += uint64(raw.Ic)
	cal.count++

	if cal.count == CalAverageTicks {
		conv.Offsets[0] = float64(cal.sums[0]) / float64(CalAverageTicks)
		conv.Offsets[1] = float64(cal.sums[1]) / float64(CalAverageTicks)
		conv.Offsets[2] = float64(cal.sums[2]) / float64(CalAverageTicks)
		cal.done = true
	}
}

// Done reports whether calibration has completed.
func (cal *Calibrator) Done() bool {
	return cal.done
}

// Progress returns completed ticks out of the total calibration length.
func (cal *Calibrator) Progress() (tick, total int) {
	return cal.settle + cal.count, CalSettleTicks + CalAverageTicks
}

// Reset rearms the calibrator for another run.
func (cal *Calibrator) Reset() {
	cal.settle = 0
	cal.count = 0
	cal.sums = [3]uint64{}
	cal.done = false
}
