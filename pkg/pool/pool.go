// Pooled scratch buffers for the monitor encode paths
//
// The control tick itself never allocates; these pools keep the monitor
// goroutines from churning the heap when they encode status and capture
// responses. MQTT payloads are not pooled: paho holds on to the
// published slice after Publish returns, so telemetry allocates per
// message instead.
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package pool

import (
	"bytes"
	"sync"
)

var bufferPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 1024)) // a status payload is ~600 bytes
	},
}

// GetByteBuffer returns an empty buffer for JSON and CSV encoding.
func GetByteBuffer() *bytes.Buffer {
	b := bufferPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// PutByteBuffer returns a buffer to the pool. Oversized buffers, e.g.
// from a full capture fetch, are dropped so one burst cannot pin 64K+
// in the pool for the rest of the process.
func PutByteBuffer(b *bytes.Buffer) {
	if b == nil || b.Cap() > 64*1024 {
		return
	}
	bufferPool.Put(b)
}

// Float64Slice pool for burst-sized scratch in diagnostics paths.
var float64SlicePool = sync.Pool{
	New: func() any {
		s := make([]float64, 0, 1024)
		return &s
	},
}

// GetFloat64Slice returns a zero-length slice with capacity for at
// least n samples.
func GetFloat64Slice(n int) *[]float64 {
	s := float64SlicePool.Get().(*[]float64)
	if cap(*s) < n {
		ns := make([]float64, 0, n)
		*s = ns
	}
	*s = (*s)[:0]
	return s
}

// PutFloat64Slice returns a slice to the pool. Slices over 64K samples
// are dropped.
func PutFloat64Slice(s *[]float64) {
	if s == nil || cap(*s) > 64*1024 {
		return
	}
	*s = (*s)[:0]
	float64SlicePool.Put(s)
}
