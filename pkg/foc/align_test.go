package foc

import "testing"

// TestAlignSequence walks the full alignment: setup tick, 4s hold at the
// alignment current, 1s release at zero current, then the done latch.
func TestAlignSequence(t *testing.T) {
	inv := newTestInverter(t)

	inv.AlignControl()
	if inv.Align.Mode != 1 {
		t.Fatalf("Mode after setup = %d, want 1", inv.Align.Mode)
	}
	if inv.Current.IdRef != inv.Params.IdAlign {
		t.Fatalf("IdRef = %g, want alignment current %g", inv.Current.IdRef, inv.Params.IdAlign)
	}
	if inv.Align.Done {
		t.Fatal("Done set at start of sequence")
	}

	// Hold phase: 4s of ticks.
	for i := 0; i < 40000; i++ {
		inv.AlignControl()
	}
	if inv.Align.Mode != 2 {
		t.Fatalf("Mode after hold = %d, want 2", inv.Align.Mode)
	}
	if inv.Angle.Source != AngleZero {
		t.Errorf("angle source = %v, want zero during alignment", inv.Angle.Source)
	}

	// Release phase: 1s more, then one tick for the done latch.
	inv.AlignControl()
	if inv.Current.IdRef != 0 {
		t.Errorf("IdRef in release phase = %g, want 0", inv.Current.IdRef)
	}
	for i := 0; i < 10000; i++ {
		inv.AlignControl()
	}
	if !inv.Align.Done {
		t.Error("Done not latched at end of sequence")
	}
	if inv.Align.Mode != 0 {
		t.Errorf("Mode after completion = %d, want 0", inv.Align.Mode)
	}

	// A fresh run clears the latch on its setup tick.
	inv.AlignControl()
	if inv.Align.Done {
		t.Error("Done still set after restart")
	}
}
