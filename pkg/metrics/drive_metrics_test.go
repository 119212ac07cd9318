// Unit tests for drive-specific metrics
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// TestNewDriveMetrics tests that all metrics are created and registered
func TestNewDriveMetrics(t *testing.T) {
	dm := NewDriveMetrics()

	if dm == nil {
		t.Fatal("metrics should not be nil")
	}
	if dm.Registry() == nil {
		t.Fatal("registry should not be nil")
	}

	output := dm.Gather()
	for _, name := range []string{
		"rcdriver_ticks_total",
		"rcdriver_tick_duration_seconds",
		"rcdriver_tick_overruns_total",
		"rcdriver_bus_voltage_volts",
		"rcdriver_fault_code",
		"rcdriver_rc_frames_total",
		"rcdriver_go_goroutines",
		"rcdriver_host_uptime_seconds",
	} {
		if !strings.Contains(output, name) {
			t.Errorf("gather output missing %s", name)
		}
	}
}

// TestObserveTick tests control loop timing metrics
func TestObserveTick(t *testing.T) {
	dm := NewDriveMetrics()

	dm.ObserveTick(80 * time.Microsecond)
	dm.ObserveTick(120 * time.Microsecond)
	dm.RecordOverrun()

	if got := dm.TicksTotal.Value(); got != 2 {
		t.Errorf("ticks total = %d, want 2", got)
	}
	if got := dm.TickDuration.Count(); got != 2 {
		t.Errorf("tick histogram count = %d, want 2", got)
	}
	if got := dm.Overruns.Value(); got != 1 {
		t.Errorf("overruns = %d, want 1", got)
	}
}

// TestSetElectrical tests electrical state gauges
func TestSetElectrical(t *testing.T) {
	dm := NewDriveMetrics()

	dm.SetElectrical(24.5, 2.0, 10.0, -4.0, -6.0, 3500)

	if got := dm.BusVoltage.Value(); got != 24.5 {
		t.Errorf("bus voltage = %v, want 24.5", got)
	}
	if got := dm.PhaseCurrent.With("a").Value(); got != 10.0 {
		t.Errorf("phase a current = %v, want 10.0", got)
	}
	if got := dm.PhaseCurrent.With("c").Value(); got != -6.0 {
		t.Errorf("phase c current = %v, want -6.0", got)
	}
	if got := dm.SpeedRPM.Value(); got != 3500 {
		t.Errorf("speed = %v, want 3500", got)
	}
}

// TestSetRegulator tests regulator state gauges
func TestSetRegulator(t *testing.T) {
	dm := NewDriveMetrics()

	dm.SetRegulator(1, 0, 0.1, 8.2, 0.0, 8.5, 1.4, 5000)

	if got := dm.ControlMode.Value(); got != 1 {
		t.Errorf("mode = %v, want 1", got)
	}
	if got := dm.CurrentDQ.With("q").Value(); got != 8.2 {
		t.Errorf("iq = %v, want 8.2", got)
	}
	if got := dm.CurrentRefDQ.With("q").Value(); got != 8.5 {
		t.Errorf("iq ref = %v, want 8.5", got)
	}
	if got := dm.SpeedRef.Value(); got != 5000 {
		t.Errorf("speed ref = %v, want 5000", got)
	}
}

// TestFaultMetrics tests fault counters and gauge
func TestFaultMetrics(t *testing.T) {
	dm := NewDriveMetrics()

	dm.RecordFault("software")
	dm.RecordFault("software")
	dm.RecordFault("hardware")
	dm.SetFaultCode(2)
	dm.RecordFaultClear()

	if got := dm.FaultsTotal.With("software").Value(); got != 2 {
		t.Errorf("software faults = %d, want 2", got)
	}
	if got := dm.FaultsTotal.With("hardware").Value(); got != 1 {
		t.Errorf("hardware faults = %d, want 1", got)
	}
	if got := dm.FaultCode.Value(); got != 2 {
		t.Errorf("fault code = %v, want 2", got)
	}
	if got := dm.FaultClears.Value(); got != 1 {
		t.Errorf("fault clears = %d, want 1", got)
	}
}

// TestCalibrationMetrics tests the calibration progress gauges
func TestCalibrationMetrics(t *testing.T) {
	dm := NewDriveMetrics()

	dm.SetCalibration(false, 4000)
	if got := dm.CalibrationDone.Value(); got != 0 {
		t.Errorf("done = %v, want 0", got)
	}
	if got := dm.CalibrationTick.Value(); got != 4000 {
		t.Errorf("tick = %v, want 4000", got)
	}

	dm.SetCalibration(true, 10000)
	if got := dm.CalibrationDone.Value(); got != 1 {
		t.Errorf("done = %v, want 1", got)
	}
}

// TestRCMetrics tests RC link metrics
func TestRCMetrics(t *testing.T) {
	dm := NewDriveMetrics()

	dm.RecordRCFrame()
	dm.RecordRCFrame()
	dm.RecordRCFrameError("crc")
	dm.RecordRCReconnect()
	dm.SetRCStatus(true, 0.17)

	if got := dm.RCFramesTotal.Value(); got != 2 {
		t.Errorf("frames = %d, want 2", got)
	}
	if got := dm.RCFrameErrors.With("crc").Value(); got != 1 {
		t.Errorf("crc errors = %d, want 1", got)
	}
	if got := dm.RCLinkUp.Value(); got != 1 {
		t.Errorf("link up = %v, want 1", got)
	}
	if got := dm.RCDuty.Value(); got != 0.17 {
		t.Errorf("duty = %v, want 0.17", got)
	}
}

// TestTelemetryMetrics tests publish accounting
func TestTelemetryMetrics(t *testing.T) {
	dm := NewDriveMetrics()

	dm.RecordTelemetry("status", nil)
	dm.RecordTelemetry("status", nil)
	dm.RecordTelemetry("fault", errors.New("broker down"))

	if got := dm.TelemetryPublished.With("status").Value(); got != 2 {
		t.Errorf("published = %d, want 2", got)
	}
	if got := dm.TelemetryErrors.With("fault").Value(); got != 1 {
		t.Errorf("errors = %d, want 1", got)
	}
}

// TestRecordError tests error recording
func TestRecordError(t *testing.T) {
	dm := NewDriveMetrics()

	dm.RecordError("timeout")
	dm.RecordError("timeout")
	dm.RecordError("protocol")

	if got := dm.ErrorsTotal.With("timeout").Value(); got != 2 {
		t.Errorf("timeout errors = %d, want 2", got)
	}
	if got := dm.ErrorsTotal.With("protocol").Value(); got != 1 {
		t.Errorf("protocol errors = %d, want 1", got)
	}
}

// TestRecordWarning tests warning recording
func TestRecordWarning(t *testing.T) {
	dm := NewDriveMetrics()

	dm.RecordWarning("rc_stale")
	dm.RecordWarning("rc_stale")

	if got := dm.WarningsTotal.With("rc_stale").Value(); got != 2 {
		t.Errorf("warnings = %d, want 2", got)
	}
}

// TestUpdateSystemMetrics tests Go runtime collection
func TestUpdateSystemMetrics(t *testing.T) {
	dm := NewDriveMetrics()

	dm.UpdateSystemMetrics()

	if got := dm.GoGoroutines.Value(); got < 1 {
		t.Errorf("goroutines = %v, want >= 1", got)
	}
	if got := dm.GoMemoryHeap.Value(); got <= 0 {
		t.Errorf("heap = %v, want > 0", got)
	}
	if got := dm.HostUptime.Value(); got < 0 {
		t.Errorf("uptime = %v, want >= 0", got)
	}
}

// TestGatherIncludesLabels tests that labeled series render
func TestGatherIncludesLabels(t *testing.T) {
	dm := NewDriveMetrics()
	dm.SetDuties(0.5, 0.4, 0.6)

	output := dm.Gather()
	if !strings.Contains(output, `rcdriver_duty_cycle{phase="a"}`) {
		t.Error("missing labeled duty series in gather output")
	}
}
