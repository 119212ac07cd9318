// Drive configuration for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package config loads, validates, and writes the drive configuration.
//
// Compiled-in defaults are overlaid by an optional YAML file and
// unmarshaled into the typed Config the daemon wires from. Write emits
// the effective configuration back as YAML, which is what -mkconf uses
// to seed a starting file.
package config

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/knadh/koanf"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	yaml "gopkg.in/yaml.v2"

	"github.com/KIPE12/RC-Driver/pkg/errors"
	"github.com/KIPE12/RC-Driver/pkg/foc"
	"github.com/KIPE12/RC-Driver/pkg/observer"
)

// MotorConfig is the electrical and mechanical nameplate of the machine.
// Defaults describe the XERUN 13.5T reference motor.
type MotorConfig struct {
	Rs        float64 `koanf:"rs" yaml:"rs"`
	Ld        float64 `koanf:"ld" yaml:"ld"`
	Lq        float64 `koanf:"lq" yaml:"lq"`
	Lamf      float64 `koanf:"lamf" yaml:"lamf"`
	PolePairs float64 `koanf:"pole_pairs" yaml:"pole_pairs"`
	Jm        float64 `koanf:"jm" yaml:"jm"`
	Bm        float64 `koanf:"bm" yaml:"bm"`
	IdAlign   float64 `koanf:"id_align" yaml:"id_align"`
	IsRated   float64 `koanf:"is_rated" yaml:"is_rated"`
	IsLimit   float64 `koanf:"is_limit" yaml:"is_limit"`
	WrpmRated float64 `koanf:"wrpm_rated" yaml:"wrpm_rated"`
	TeRated   float64 `koanf:"te_rated" yaml:"te_rated"`
}

// GainsConfig sets the regulator and estimator bandwidths in engineering
// units; the derived gains are recomputed from these every tick.
type GainsConfig struct {
	CurrentHz   float64 `koanf:"current_hz" yaml:"current_hz"`
	SpeedHz     float64 `koanf:"speed_hz" yaml:"speed_hz"`
	Zeta        float64 `koanf:"zeta" yaml:"zeta"`
	PLLHz       float64 `koanf:"pll_hz" yaml:"pll_hz"`
	EEMFHz      float64 `koanf:"eemf_hz" yaml:"eemf_hz"`
	EEMFVariant string  `koanf:"eemf_variant" yaml:"eemf_variant"`
	ObserverHz  float64 `koanf:"observer_hz" yaml:"observer_hz"`
	SpeedLPFHz  float64 `koanf:"speed_lpf_hz" yaml:"speed_lpf_hz"`
}

// TestConfig presets the commissioning modes.
type TestConfig struct {
	DutyMag    float64 `koanf:"duty_mag" yaml:"duty_mag"`
	DutyA      float64 `koanf:"duty_a" yaml:"duty_a"`
	DutyB      float64 `koanf:"duty_b" yaml:"duty_b"`
	DutyC      float64 `koanf:"duty_c" yaml:"duty_c"`
	InjectVmag float64 `koanf:"inject_vmag" yaml:"inject_vmag"`
}

// SamplingConfig trims the converter chain and sizes the capture ring.
type SamplingConfig struct {
	GainA        float64 `koanf:"gain_a" yaml:"gain_a"`
	GainB        float64 `koanf:"gain_b" yaml:"gain_b"`
	GainC        float64 `koanf:"gain_c" yaml:"gain_c"`
	GainVdc      float64 `koanf:"gain_vdc" yaml:"gain_vdc"`
	ScaleComp    float64 `koanf:"scale_comp" yaml:"scale_comp"`
	CaptureDepth int     `koanf:"capture_depth" yaml:"capture_depth"`
}

// RunnerConfig paces the control loop.
type RunnerConfig struct {
	IntervalUS  int  `koanf:"interval_us" yaml:"interval_us"`
	StatusEvery int  `koanf:"status_every" yaml:"status_every"`
	Mlockall    bool `koanf:"mlockall" yaml:"mlockall"`
}

// SimConfig parameterizes the built-in plant when no hardware source is
// attached.
type SimConfig struct {
	Vdc   float64 `koanf:"vdc" yaml:"vdc"`
	Tload float64 `koanf:"tload" yaml:"tload"`
}

// MonitorConfig exposes the websocket control endpoint.
type MonitorConfig struct {
	Enabled  bool    `koanf:"enabled" yaml:"enabled"`
	Addr     string  `koanf:"addr" yaml:"addr"`
	StatusHz float64 `koanf:"status_hz" yaml:"status_hz"`
}

// RCInputConfig attaches the RC receiver serial link.
type RCInputConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Port    string `koanf:"port" yaml:"port"`
	Baud    int    `koanf:"baud" yaml:"baud"`
}

// TelemetryConfig attaches the MQTT publisher.
type TelemetryConfig struct {
	Enabled    bool   `koanf:"enabled" yaml:"enabled"`
	Broker     string `koanf:"broker" yaml:"broker"`
	ClientID   string `koanf:"client_id" yaml:"client_id"`
	Prefix     string `koanf:"prefix" yaml:"prefix"`
	StatusQoS  int    `koanf:"status_qos" yaml:"status_qos"`
	IntervalMS int    `koanf:"interval_ms" yaml:"interval_ms"`
}

// LogConfig shapes the daemon log output.
type LogConfig struct {
	Level    string `koanf:"level" yaml:"level"`
	Format   string `koanf:"format" yaml:"format"`
	File     string `koanf:"file" yaml:"file"`
	MaxMB    int    `koanf:"max_mb" yaml:"max_mb"`
	Keep     int    `koanf:"keep" yaml:"keep"`
	Compress bool   `koanf:"compress" yaml:"compress"`
}

// MetricsConfig exposes the metrics listener.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" yaml:"addr"`
}

// Config is the whole drive configuration.
type Config struct {
	Motor     MotorConfig     `koanf:"motor" yaml:"motor"`
	Gains     GainsConfig     `koanf:"gains" yaml:"gains"`
	Test      TestConfig      `koanf:"test" yaml:"test"`
	Sampling  SamplingConfig  `koanf:"sampling" yaml:"sampling"`
	Runner    RunnerConfig    `koanf:"runner" yaml:"runner"`
	Sim       SimConfig       `koanf:"sim" yaml:"sim"`
	Monitor   MonitorConfig   `koanf:"monitor" yaml:"monitor"`
	RCInput   RCInputConfig   `koanf:"rcinput" yaml:"rcinput"`
	Telemetry TelemetryConfig `koanf:"telemetry" yaml:"telemetry"`
	Log       LogConfig       `koanf:"log" yaml:"log"`
	Metrics   MetricsConfig   `koanf:"metrics" yaml:"metrics"`
}

// Default returns the compiled-in configuration: the reference motor on
// the simulated plant, monitor on loopback, telemetry and RC input off.
func Default() Config {
	return Config{
		Motor: MotorConfig{
			Rs:        19e-3,
			Ld:        3.2e-6,
			Lq:        3.2e-6,
			Lamf:      2e-3,
			PolePairs: 1,
			Jm:        1e-6,
			Bm:        1e-6,
			IdAlign:   2,
			IsRated:   50,
			IsLimit:   50,
			WrpmRated: 10000,
			TeRated:   3,
		},
		Gains: GainsConfig{
			CurrentHz:   1000,
			SpeedHz:     25,
			Zeta:        0.707,
			PLLHz:       20,
			EEMFHz:      200,
			EEMFVariant: "4-34",
			ObserverHz:  40,
			SpeedLPFHz:  50,
		},
		Test: TestConfig{
			DutyMag:    0.01,
			DutyA:      0.2,
			DutyB:      0.3,
			DutyC:      0.8,
			InjectVmag: 1.0,
		},
		Sampling: SamplingConfig{
			GainA:        1,
			GainB:        1,
			GainC:        1,
			GainVdc:      1,
			ScaleComp:    1,
			CaptureDepth: 4096,
		},
		Runner: RunnerConfig{
			IntervalUS:  100,
			StatusEvery: 100,
		},
		Sim: SimConfig{Vdc: 24},
		Monitor: MonitorConfig{
			Enabled:  true,
			Addr:     "127.0.0.1:7170",
			StatusHz: 10,
		},
		RCInput: RCInputConfig{
			Port: "/dev/ttyUSB0",
			Baud: 115200,
		},
		Telemetry: TelemetryConfig{
			Broker:     "tcp://127.0.0.1:1883",
			ClientID:   "rcdriver",
			Prefix:     "rcdriver",
			IntervalMS: 1000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			MaxMB:  10,
			Keep:   5,
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9108",
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file
// at path if one is given. The result is validated.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, errors.ConfigFileError("defaults", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			return Config{}, errors.ConfigFileError(path, err)
		}
	}
	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		return Config{}, errors.ConfigFileError(path, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Write emits the configuration as YAML.
func (c Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(c); err != nil {
		return errors.ConfigFileError("encode", err)
	}
	return enc.Close()
}

// Validate checks the configuration. The first violation is returned.
func (c Config) Validate() error {
	mp := c.MotorParameters()
	if err := mp.Validate(); err != nil {
		return errors.ConfigValidationError("motor", "", err.Error())
	}

	bws := []struct {
		opt string
		val float64
	}{
		{"current_hz", c.Gains.CurrentHz},
		{"speed_hz", c.Gains.SpeedHz},
		{"zeta", c.Gains.Zeta},
		{"pll_hz", c.Gains.PLLHz},
		{"eemf_hz", c.Gains.EEMFHz},
		{"observer_hz", c.Gains.ObserverHz},
		{"speed_lpf_hz", c.Gains.SpeedLPFHz},
	}
	for _, bw := range bws {
		if bw.val <= 0 || math.IsNaN(bw.val) {
			return errors.ConfigValidationError("gains", bw.opt, "must be positive")
		}
	}
	if _, err := observer.ParseVariant(c.Gains.EEMFVariant); err != nil {
		return errors.ConfigValidationError("gains", "eemf_variant", err.Error())
	}

	if c.Test.DutyMag <= 0 || c.Test.DutyMag > 0.5 {
		return errors.ConfigValidationError("test", "duty_mag", "must be in (0, 0.5]")
	}
	for _, d := range []struct {
		opt string
		val float64
	}{
		{"duty_a", c.Test.DutyA}, {"duty_b", c.Test.DutyB}, {"duty_c", c.Test.DutyC},
	} {
		if d.val < 0 || d.val > 0.95 {
			return errors.ConfigValidationError("test", d.opt, "must be in [0, 0.95]")
		}
	}
	if c.Test.InjectVmag < 0 {
		return errors.ConfigValidationError("test", "inject_vmag", "must not be negative")
	}

	for _, g := range []struct {
		opt string
		val float64
	}{
		{"gain_a", c.Sampling.GainA}, {"gain_b", c.Sampling.GainB},
		{"gain_c", c.Sampling.GainC}, {"gain_vdc", c.Sampling.GainVdc},
		{"scale_comp", c.Sampling.ScaleComp},
	} {
		if g.val <= 0 {
			return errors.ConfigValidationError("sampling", g.opt, "must be positive")
		}
	}
	if c.Sampling.CaptureDepth <= 0 {
		return errors.ConfigValidationError("sampling", "capture_depth", "must be positive")
	}

	if c.Runner.IntervalUS <= 0 {
		return errors.ConfigValidationError("runner", "interval_us", "must be positive")
	}
	if c.Runner.StatusEvery <= 0 {
		return errors.ConfigValidationError("runner", "status_every", "must be positive")
	}

	if c.Sim.Vdc <= 0 {
		return errors.ConfigValidationError("sim", "vdc", "must be positive")
	}

	if c.Monitor.Enabled {
		if c.Monitor.Addr == "" {
			return errors.ConfigValidationError("monitor", "addr", "required when enabled")
		}
		if c.Monitor.StatusHz <= 0 {
			return errors.ConfigValidationError("monitor", "status_hz", "must be positive")
		}
	}
	if c.RCInput.Enabled {
		if c.RCInput.Port == "" {
			return errors.ConfigValidationError("rcinput", "port", "required when enabled")
		}
		if c.RCInput.Baud <= 0 {
			return errors.ConfigValidationError("rcinput", "baud", "must be positive")
		}
	}
	if c.Telemetry.Enabled {
		if c.Telemetry.Broker == "" {
			return errors.ConfigValidationError("telemetry", "broker", "required when enabled")
		}
		if c.Telemetry.Prefix == "" {
			return errors.ConfigValidationError("telemetry", "prefix", "required when enabled")
		}
		if c.Telemetry.StatusQoS < 0 || c.Telemetry.StatusQoS > 2 {
			return errors.ConfigValidationError("telemetry", "status_qos", "must be 0, 1, or 2")
		}
		if c.Telemetry.IntervalMS <= 0 {
			return errors.ConfigValidationError("telemetry", "interval_ms", "must be positive")
		}
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.ConfigValidationError("metrics", "addr", "required when enabled")
	}

	switch c.Log.Format {
	case "", "text", "json":
	default:
		return errors.ConfigValidationError("log", "format", "must be text or json")
	}
	if c.Log.File != "" {
		if c.Log.MaxMB <= 0 {
			return errors.ConfigValidationError("log", "max_mb", "must be positive")
		}
		if c.Log.Keep <= 0 {
			return errors.ConfigValidationError("log", "keep", "must be positive")
		}
	}
	return nil
}

// MotorParameters maps the motor section onto the regulator parameter
// set.
func (c Config) MotorParameters() foc.MotorParameters {
	return foc.MotorParameters{
		Rs:        c.Motor.Rs,
		Ld:        c.Motor.Ld,
		Lq:        c.Motor.Lq,
		Lamf:      c.Motor.Lamf,
		PP:        c.Motor.PolePairs,
		Jm:        c.Motor.Jm,
		Bm:        c.Motor.Bm,
		IdAlign:   c.Motor.IdAlign,
		IsRated:   c.Motor.IsRated,
		IsLimit:   c.Motor.IsLimit,
		WrpmRated: c.Motor.WrpmRated,
		TeRated:   c.Motor.TeRated,
	}
}

// Bandwidths converts the gains section to angular frequencies.
func (c Config) Bandwidths() foc.Bandwidths {
	return foc.Bandwidths{
		Wcc:  2.0 * math.Pi * c.Gains.CurrentHz,
		Wsc:  2.0 * math.Pi * c.Gains.SpeedHz,
		Zeta: c.Gains.Zeta,
		Wpll: 2.0 * math.Pi * c.Gains.PLLHz,
	}
}

// Variant parses the configured extended-EMF observer variant.
func (c Config) Variant() (observer.Variant, error) {
	return observer.ParseVariant(c.Gains.EEMFVariant)
}

// Interval returns the control period as a duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.Runner.IntervalUS) * time.Microsecond
}

// Summary is a one-line description for the startup log.
func (c Config) Summary() string {
	return fmt.Sprintf("motor pp=%.0f is_rated=%.0fA interval=%s monitor=%v rcinput=%v telemetry=%v",
		c.Motor.PolePairs, c.Motor.IsRated, c.Interval(),
		c.Monitor.Enabled, c.RCInput.Enabled, c.Telemetry.Enabled)
}
