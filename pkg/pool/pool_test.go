// Unit tests for the encode-path object pools
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package pool

import (
	"strings"
	"sync"
	"testing"
)

func TestByteBuffer(t *testing.T) {
	b := GetByteBuffer()
	if b == nil {
		t.Fatal("GetByteBuffer returned nil")
	}

	b.WriteString("duty=0.42")
	if got := b.String(); got != "duty=0.42" {
		t.Errorf("content = %q", got)
	}

	PutByteBuffer(b)

	b2 := GetByteBuffer()
	if b2.Len() != 0 {
		t.Errorf("pooled buffer not reset, length %d", b2.Len())
	}
	PutByteBuffer(b2)
}

func TestByteBufferOversized(t *testing.T) {
	b := GetByteBuffer()
	b.WriteString(strings.Repeat("x", 100*1024))
	PutByteBuffer(b) // dropped, must not panic

	b2 := GetByteBuffer()
	if b2.Len() != 0 {
		t.Errorf("length %d, want 0", b2.Len())
	}
	PutByteBuffer(b2)
}

func TestByteBufferNil(t *testing.T) {
	PutByteBuffer(nil) // must not panic
}

func TestFloat64Slice(t *testing.T) {
	s := GetFloat64Slice(3000)
	if s == nil {
		t.Fatal("GetFloat64Slice returned nil")
	}
	if len(*s) != 0 {
		t.Errorf("len = %d, want 0", len(*s))
	}
	if cap(*s) < 3000 {
		t.Errorf("cap = %d, want >= 3000", cap(*s))
	}

	*s = append(*s, 1.5, 2.5)
	PutFloat64Slice(s)

	s2 := GetFloat64Slice(100)
	if len(*s2) != 0 {
		t.Errorf("pooled slice not reset, len %d", len(*s2))
	}
	PutFloat64Slice(s2)
}

func TestFloat64SliceNil(t *testing.T) {
	PutFloat64Slice(nil) // must not panic
}

func TestByteBufferConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				b := GetByteBuffer()
				b.WriteString(`{"tick":12345}`)
				PutByteBuffer(b)
			}
		}()
	}
	wg.Wait()
}

func TestFloat64SliceConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				s := GetFloat64Slice(64)
				*s = append(*s, 3.3)
				PutFloat64Slice(s)
			}
		}()
	}
	wg.Wait()
}

func BenchmarkByteBufferPool(b *testing.B) {
	payload := []byte(`{"tick":12345,"mode":"run","wrpm":998.7}`)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf := GetByteBuffer()
		buf.Write(payload)
		PutByteBuffer(buf)
	}
}

func BenchmarkByteBufferNoPool(b *testing.B) {
	payload := []byte(`{"tick":12345,"mode":"run","wrpm":998.7}`)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf := make([]byte, 0, 1024)
		buf = append(buf, payload...)
		_ = buf
	}
}
