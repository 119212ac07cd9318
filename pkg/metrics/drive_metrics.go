// Drive-specific metrics definitions
//
// Defines all metrics for the RC-Driver host including:
// - Control loop timing
// - Electrical state (bus, phases, speed)
// - Estimator state
// - Fault and protection counters
// - RC input link statistics
// - System metrics
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	goruntime "runtime"
	"time"
)

// DriveMetrics holds all RC-Driver-specific metrics
type DriveMetrics struct {
	// Control loop metrics
	TicksTotal   *Counter
	TickDuration *Histogram
	Overruns     *Counter
	ControlMode  *Gauge
	AngleSource  *Gauge

	// Electrical metrics
	BusVoltage   *Gauge
	BusCurrent   *Gauge
	PhaseCurrent *GaugeVec
	SpeedRPM     *Gauge
	SpeedRef     *Gauge
	TorqueRef    *Gauge
	CurrentDQ    *GaugeVec
	CurrentRefDQ *GaugeVec
	DutyCycle    *GaugeVec

	// Estimator metrics
	HallCode        *Gauge
	HallSpeed       *Gauge
	SensorlessSpeed *Gauge
	SensorlessAngle *Gauge

	// Fault metrics
	FaultsTotal *CounterVec
	FaultCode   *Gauge
	FaultClears *Counter

	// Calibration metrics
	CalibrationDone *Gauge
	CalibrationTick *Gauge

	// RC input metrics
	RCFramesTotal *Counter
	RCFrameErrors *CounterVec
	RCReconnects  *Counter
	RCDuty        *Gauge
	RCLinkUp      *Gauge

	// Telemetry metrics
	TelemetryPublished *CounterVec
	TelemetryErrors    *CounterVec
	MonitorClients     *Gauge
	MonitorBroadcasts  *Counter

	// System metrics
	HostUptime    *Gauge
	GoGoroutines  *Gauge
	GoMemoryHeap  *Gauge
	GoMemoryAlloc *Gauge
	GoGCCycles    *Counter

	// Error metrics
	ErrorsTotal   *CounterVec
	WarningsTotal *CounterVec

	startTime time.Time
	registry  *Registry
}

// TickBuckets are histogram bucket bounds in seconds, sized around the
// 100 µs control period.
func TickBuckets() []float64 {
	return []float64{10e-6, 25e-6, 50e-6, 75e-6, 100e-6, 150e-6, 250e-6, 500e-6, 1e-3}
}

// NewDriveMetrics creates and registers all drive metrics
func NewDriveMetrics() *DriveMetrics {
	dm := &DriveMetrics{
		startTime: time.Now(),
		registry:  NewRegistry(),
	}

	// Control loop metrics
	dm.TicksTotal = NewCounter("rcdriver_ticks_total",
		"Total control ticks executed")
	dm.TickDuration = NewHistogram("rcdriver_tick_duration_seconds",
		"Control tick execution time", TickBuckets())
	dm.Overruns = NewCounter("rcdriver_tick_overruns_total",
		"Ticks whose execution exceeded the control period")
	dm.ControlMode = NewGauge("rcdriver_control_mode",
		"Dispatched control mode (0=stop, 1=run, 2=hall-test, 3=duty-test, 4=olc, 5=vref-gen, 6=volc, 7=param-est, 8=align, 9=torque)")
	dm.AngleSource = NewGauge("rcdriver_angle_source",
		"Active electrical angle source (0=hall, 1=open-loop, 2=sensorless, 3=zero)")

	// Electrical metrics
	dm.BusVoltage = NewGauge("rcdriver_bus_voltage_volts",
		"Filtered DC bus voltage")
	dm.BusCurrent = NewGauge("rcdriver_bus_current_amps",
		"DC bus current")
	dm.PhaseCurrent = NewGaugeVec("rcdriver_phase_current_amps",
		"Measured phase current", "phase")
	dm.SpeedRPM = NewGauge("rcdriver_speed_rpm",
		"Estimated mechanical speed")
	dm.SpeedRef = NewGauge("rcdriver_speed_ref_rpm",
		"Ramped speed reference")
	dm.TorqueRef = NewGauge("rcdriver_torque_ref_nm",
		"Torque reference from the speed or torque regulator")
	dm.CurrentDQ = NewGaugeVec("rcdriver_current_dq_amps",
		"Synchronous-frame measured current", "axis")
	dm.CurrentRefDQ = NewGaugeVec("rcdriver_current_ref_dq_amps",
		"Synchronous-frame current reference", "axis")
	dm.DutyCycle = NewGaugeVec("rcdriver_duty_cycle",
		"Commanded PWM duty per phase (0-1)", "phase")

	// Estimator metrics
	dm.HallCode = NewGauge("rcdriver_hall_code",
		"Raw 3-bit Hall sensor code")
	dm.HallSpeed = NewGauge("rcdriver_hall_speed_rad_s",
		"Hall PLL electrical speed estimate")
	dm.SensorlessSpeed = NewGauge("rcdriver_sensorless_speed_rad_s",
		"Sensorless observer filtered electrical speed estimate")
	dm.SensorlessAngle = NewGauge("rcdriver_sensorless_angle_rad",
		"Sensorless observer electrical angle estimate")

	// Fault metrics
	dm.FaultsTotal = NewCounterVec("rcdriver_faults_total",
		"Total fault trips by kind", "kind")
	dm.FaultCode = NewGauge("rcdriver_fault_code",
		"Latched fault code (0=none, 1=hardware, 2=software)")
	dm.FaultClears = NewCounter("rcdriver_fault_clears_total",
		"Total honored fault clear requests")

	// Calibration metrics
	dm.CalibrationDone = NewGauge("rcdriver_calibration_done",
		"Current offset calibration state (1=complete)")
	dm.CalibrationTick = NewGauge("rcdriver_calibration_tick",
		"Current offset calibration progress in ticks")

	// RC input metrics
	dm.RCFramesTotal = NewCounter("rcdriver_rc_frames_total",
		"Total RC frames received")
	dm.RCFrameErrors = NewCounterVec("rcdriver_rc_frame_errors_total",
		"RC frames rejected by reason", "reason")
	dm.RCReconnects = NewCounter("rcdriver_rc_reconnects_total",
		"RC serial link reconnect attempts")
	dm.RCDuty = NewGauge("rcdriver_rc_duty",
		"Last accepted RC duty command (0-1)")
	dm.RCLinkUp = NewGauge("rcdriver_rc_link_up",
		"RC serial link state (1=up)")

	// Telemetry metrics
	dm.TelemetryPublished = NewCounterVec("rcdriver_telemetry_published_total",
		"Telemetry messages published by topic", "topic")
	dm.TelemetryErrors = NewCounterVec("rcdriver_telemetry_errors_total",
		"Telemetry publish failures by topic", "topic")
	dm.MonitorClients = NewGauge("rcdriver_monitor_clients",
		"Connected websocket monitor clients")
	dm.MonitorBroadcasts = NewCounter("rcdriver_monitor_broadcasts_total",
		"Status broadcasts sent to monitor clients")

	// System metrics
	dm.HostUptime = NewGauge("rcdriver_host_uptime_seconds",
		"Host process uptime in seconds")
	dm.GoGoroutines = NewGauge("rcdriver_go_goroutines",
		"Number of active goroutines")
	dm.GoMemoryHeap = NewGauge("rcdriver_go_memory_heap_bytes",
		"Go heap memory in use")
	dm.GoMemoryAlloc = NewGauge("rcdriver_go_memory_alloc_bytes",
		"Go total memory allocated")
	dm.GoGCCycles = NewCounter("rcdriver_go_gc_cycles_total",
		"Total Go garbage collection cycles")

	// Error metrics
	dm.ErrorsTotal = NewCounterVec("rcdriver_errors_total",
		"Total errors by type", "type")
	dm.WarningsTotal = NewCounterVec("rcdriver_warnings_total",
		"Total warnings by type", "type")

	dm.registry.MustRegister(
		dm.TicksTotal, dm.TickDuration, dm.Overruns,
		dm.ControlMode, dm.AngleSource,
		dm.BusVoltage, dm.BusCurrent, dm.PhaseCurrent,
		dm.SpeedRPM, dm.SpeedRef, dm.TorqueRef,
		dm.CurrentDQ, dm.CurrentRefDQ, dm.DutyCycle,
		dm.HallCode, dm.HallSpeed, dm.SensorlessSpeed, dm.SensorlessAngle,
		dm.FaultsTotal, dm.FaultCode, dm.FaultClears,
		dm.CalibrationDone, dm.CalibrationTick,
		dm.RCFramesTotal, dm.RCFrameErrors, dm.RCReconnects,
		dm.RCDuty, dm.RCLinkUp,
		dm.TelemetryPublished, dm.TelemetryErrors,
		dm.MonitorClients, dm.MonitorBroadcasts,
		dm.HostUptime, dm.GoGoroutines, dm.GoMemoryHeap, dm.GoMemoryAlloc,
		dm.GoGCCycles,
		dm.ErrorsTotal, dm.WarningsTotal,
	)

	return dm
}

// UpdateSystemMetrics updates Go runtime metrics
func (dm *DriveMetrics) UpdateSystemMetrics() {
	var m goruntime.MemStats
	goruntime.ReadMemStats(&m)

	dm.GoGoroutines.Set(float64(goruntime.NumGoroutine()))
	dm.GoMemoryHeap.Set(float64(m.HeapAlloc))
	dm.GoMemoryAlloc.Set(float64(m.Alloc))
	dm.GoGCCycles.Add(uint64(m.NumGC) - dm.GoGCCycles.Value())
	dm.HostUptime.Set(time.Since(dm.startTime).Seconds())
}

// ObserveTick records one control tick's duration
func (dm *DriveMetrics) ObserveTick(d time.Duration) {
	dm.TicksTotal.Inc()
	dm.TickDuration.Observe(d.Seconds())
}

// RecordOverrun counts a tick that exceeded the control period
func (dm *DriveMetrics) RecordOverrun() {
	dm.Overruns.Inc()
}

// SetElectrical updates the bus and phase measurements
func (dm *DriveMetrics) SetElectrical(vdc, idc, ia, ib, ic, wrpm float64) {
	dm.BusVoltage.Set(vdc)
	dm.BusCurrent.Set(idc)
	dm.PhaseCurrent.With("a").Set(ia)
	dm.PhaseCurrent.With("b").Set(ib)
	dm.PhaseCurrent.With("c").Set(ic)
	dm.SpeedRPM.Set(wrpm)
}

// SetRegulator updates the control mode and regulator state
func (dm *DriveMetrics) SetRegulator(mode, angleSource int, id, iq, idRef, iqRef, teRef, wrpmRef float64) {
	dm.ControlMode.Set(float64(mode))
	dm.AngleSource.Set(float64(angleSource))
	dm.CurrentDQ.With("d").Set(id)
	dm.CurrentDQ.With("q").Set(iq)
	dm.CurrentRefDQ.With("d").Set(idRef)
	dm.CurrentRefDQ.With("q").Set(iqRef)
	dm.TorqueRef.Set(teRef)
	dm.SpeedRef.Set(wrpmRef)
}

// SetDuties updates the commanded per-phase duties
func (dm *DriveMetrics) SetDuties(a, b, c float64) {
	dm.DutyCycle.With("a").Set(a)
	dm.DutyCycle.With("b").Set(b)
	dm.DutyCycle.With("c").Set(c)
}

// SetEstimators updates the Hall and sensorless estimator state
func (dm *DriveMetrics) SetEstimators(hallCode uint8, hallW, sensW, sensTheta float64) {
	dm.HallCode.Set(float64(hallCode))
	dm.HallSpeed.Set(hallW)
	dm.SensorlessSpeed.Set(sensW)
	dm.SensorlessAngle.Set(sensTheta)
}

// RecordFault records a fault trip
func (dm *DriveMetrics) RecordFault(kind string) {
	dm.FaultsTotal.With(kind).Inc()
}

// SetFaultCode updates the latched fault code gauge
func (dm *DriveMetrics) SetFaultCode(code int) {
	dm.FaultCode.Set(float64(code))
}

// RecordFaultClear counts an honored fault clear request
func (dm *DriveMetrics) RecordFaultClear() {
	dm.FaultClears.Inc()
}

// SetCalibration updates offset calibration progress
func (dm *DriveMetrics) SetCalibration(done bool, tick int) {
	v := float64(0)
	if done {
		v = 1
	}
	dm.CalibrationDone.Set(v)
	dm.CalibrationTick.Set(float64(tick))
}

// RecordRCFrame counts a received RC frame
func (dm *DriveMetrics) RecordRCFrame() {
	dm.RCFramesTotal.Inc()
}

// RecordRCFrameError counts a rejected RC frame
func (dm *DriveMetrics) RecordRCFrameError(reason string) {
	dm.RCFrameErrors.With(reason).Inc()
}

// RecordRCReconnect counts a serial reconnect attempt
func (dm *DriveMetrics) RecordRCReconnect() {
	dm.RCReconnects.Inc()
}

// SetRCStatus updates the RC link gauges
func (dm *DriveMetrics) SetRCStatus(up bool, duty float64) {
	v := float64(0)
	if up {
		v = 1
	}
	dm.RCLinkUp.Set(v)
	dm.RCDuty.Set(duty)
}

// RecordTelemetry counts a telemetry publish attempt
func (dm *DriveMetrics) RecordTelemetry(topic string, err error) {
	if err != nil {
		dm.TelemetryErrors.With(topic).Inc()
		return
	}
	dm.TelemetryPublished.With(topic).Inc()
}

// SetMonitorClients updates the websocket client gauge
func (dm *DriveMetrics) SetMonitorClients(n int) {
	dm.MonitorClients.Set(float64(n))
}

// RecordBroadcast counts a monitor status broadcast
func (dm *DriveMetrics) RecordBroadcast() {
	dm.MonitorBroadcasts.Inc()
}

// RecordError records an error
func (dm *DriveMetrics) RecordError(errorType string) {
	dm.ErrorsTotal.With(errorType).Inc()
}

// RecordWarning records a warning
func (dm *DriveMetrics) RecordWarning(warningType string) {
	dm.WarningsTotal.With(warningType).Inc()
}

// Gather returns all metrics in Prometheus text format
func (dm *DriveMetrics) Gather() string {
	dm.UpdateSystemMetrics()
	return dm.registry.Gather()
}

// Registry returns the internal registry
func (dm *DriveMetrics) Registry() *Registry {
	return dm.registry
}
