// Diagnostic ring capture for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package sampling

import (
	"sync/atomic"

	"github.com/brandondube/ringo"

	"github.com/KIPE12/RC-Driver/pkg/errors"
	"github.com/KIPE12/RC-Driver/pkg/foc"
)

// Captured channels, in fetch order.
const (
	ChIa = iota
	ChIb
	ChIc
	ChVdc
	ChId
	ChIq
	numChannels
)

// ChannelNames lists the capture channels in index order.
var ChannelNames = [numChannels]string{"ia", "ib", "ic", "vdc", "id", "iq"}

// DefaultCaptureSize is the per-channel burst depth (300ms at the tick).
const DefaultCaptureSize = 3000

// Capture records a fixed-length burst of the measured channels. The tick
// appends while armed and auto-disarms at capacity; monitor goroutines arm
// and fetch. Only the armed word is shared between the two sides: the tick
// touches the rings exclusively while armed is set, the fetch side only
// after it clears.
type Capture struct {
	armed atomic.Uint32
	size  int
	count int
	rings [numChannels]ringo.CircleF64
}

// NewCapture builds a capture with the given per-channel size.
func NewCapture(size int) *Capture {
	if size <= 0 {
		size = DefaultCaptureSize
	}
	cp := &Capture{size: size}
	for i := range cp.rings {
		cp.rings[i].Init(size)
	}
	return cp
}

// Arm clears the buffers and starts a new burst. Arming while a burst is
// running is a no-op.
func (cp *Capture) Arm() {
	if cp.armed.Load() == 1 {
		return
	}
	for i := range cp.rings {
		cp.rings[i].Init(cp.size)
	}
	cp.count = 0
	cp.armed.Store(1)
}

// Armed reports whether a burst is running.
func (cp *Capture) Armed() bool {
	return cp.armed.Load() == 1
}

// Append records one tick of samples. Called from the tick only.
func (cp *Capture) Append(m *foc.Measurement, id, iq float64) {
	if cp.armed.Load() != 1 {
		return
	}
	if cp.count >= cp.size {
		cp.armed.Store(0)
		return
	}
	cp.rings[ChIa].Append(m.Ia)
	cp.rings[ChIb].Append(m.Ib)
	cp.rings[ChIc].Append(m.Ic)
	cp.rings[ChVdc].Append(m.Vdc)
	cp.rings[ChId].Append(id)
	cp.rings[ChIq].Append(iq)
	cp.count++
}

// Len returns the number of recorded ticks in the current burst.
func (cp *Capture) Len() int {
	return cp.count
}

// Fetch copies out the recorded channels, least recent first. It refuses
// while a burst is still running.
func (cp *Capture) Fetch() (map[string][]float64, error) {
	if cp.armed.Load() == 1 {
		return nil, errors.CaptureError("capture in progress")
	}
	out := make(map[string][]float64, numChannels)
	for i := range cp.rings {
		if cp.count == 0 {
			out[ChannelNames[i]] = nil
			continue
		}
		src := cp.rings[i].Contiguous()
		dst := make([]float64, len(src))
		copy(dst, src)
		out[ChannelNames[i]] = dst
	}
	return out, nil
}
