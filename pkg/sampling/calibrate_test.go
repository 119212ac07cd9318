package sampling

import "testing"

func TestCalibrationUsesOnlySecondWindow(t *testing.T) {
	cal := &Calibrator{}
	conv := NewConverter()

	// Garbage during the settle window must not reach the offsets.
	for i := 0; i < CalSettleTicks; i++ {
		cal.Step(RawSample{Ia: 4095, Ib: 4095, Ic: 4095}, conv)
	}
	if cal.Done() {
		t.Fatal("Done during settle window")
	}

	for i := 0; i < CalAverageTicks-1; i++ {
		cal.Step(RawSample{Ia: 2000, Ib: 2010, Ic: 2020}, conv)
	}
	if cal.Done() {
		t.Fatal("Done one tick early")
	}
	if conv.Offsets[0] != 2048 {
		t.Fatalf("offsets written before completion: %g", conv.Offsets[0])
	}

	cal.Step(RawSample{Ia: 2000, Ib: 2010, Ic: 2020}, conv)
	if !cal.Done() {
		t.Fatal("not Done after full window")
	}
	if conv.Offsets[0] != 2000 || conv.Offsets[1] != 2010 || conv.Offsets[2] != 2020 {
		t.Errorf("offsets = %v, want [2000 2010 2020]", conv.Offsets)
	}

	tick, total := cal.Progress()
	if tick != total {
		t.Errorf("Progress = %d/%d, want complete", tick, total)
	}
}

func TestCalibrationTruncatesCodes(t *testing.T) {
	cal := &Calibrator{}
	conv := NewConverter()

	// Fractional codes accumulate as integers, so 2000.9 counts as 2000.
	for i := 0; i < CalSettleTicks+CalAverageTicks; i++ {
		cal.Step(RawSample{Ia: 2000.9, Ib: 2000.9, Ic: 2000.9}, conv)
	}
	if conv.Offsets[0] != 2000 {
		t.Errorf("offset = %g, want truncated mean 2000", conv.Offsets[0])
	}
}

func TestCalibrationMixedMean(t *testing.T) {
	cal := &Calibrator{}
	conv := NewConverter()

	for i := 0; i < CalSettleTicks; i++ {
		cal.Step(RawSample{}, conv)
	}
	for i := 0; i < CalAverageTicks; i++ {
		v := 2047.0
		if i%2 == 1 {
			v = 2048.0
		}
		cal.Step(RawSample{Ia: v, Ib: v, Ic: v}, conv)
	}
	if conv.Offsets[0] != 2047.5 {
		t.Errorf("offset = %g, want 2047.5", conv.Offsets[0])
	}
}

func TestCalibratorStepAfterDone(t *testing.T) {
	cal := &Calibrator{}
	conv := NewConverter()
	for i := 0; i < CalSettleTicks+CalAverageTicks; i++ {
		cal.Step(RawSample{Ia: 2000, Ib: 2000, Ic: 2000}, conv)
	}

	cal.Step(RawSample{Ia: 0, Ib: 0, Ic: 0}, conv)
	if conv.Offsets[0] != 2000 {
		t.Errorf("offset moved after Done: %g", conv.Offsets[0])
	}

	cal.Reset()
	if cal.Done() {
		t.Error("Done still set after Reset")
	}
	tick, _ := cal.Progress()
	if tick != 0 {
		t.Errorf("Progress after Reset = %d, want 0", tick)
	}
}
