// Drive daemon entry point for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// rcdriver is the PMSM drive daemon. It runs the 10 kHz field-oriented
// control loop against the built-in plant model, serves the websocket
// monitor for commissioning tools, and optionally attaches the RC
// receiver serial link, MQTT telemetry, and a Prometheus metrics
// listener.
//
// Usage:
//
//	rcdriver [-config drive.yml] [options]
//
// Options:
//
//	-config string   Drive configuration YAML (default: compiled-in defaults)
//	-mkconf          Print the effective configuration as YAML and exit
//	-monitor string  Override the monitor listen address
//	-debug           Force debug log level
//
// Examples:
//
//	# Run on the simulated plant, monitor on the default port
//	rcdriver
//
//	# Seed a config file, edit it, run with it
//	rcdriver -mkconf > drive.yml
//	rcdriver -config drive.yml
//
//	# Commissioning session with verbose logs
//	rcdriver -config drive.yml -debug
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/KIPE12/RC-Driver/pkg/config"
	"github.com/KIPE12/RC-Driver/pkg/control"
	"github.com/KIPE12/RC-Driver/pkg/fault"
	"github.com/KIPE12/RC-Driver/pkg/flags"
	"github.com/KIPE12/RC-Driver/pkg/foc"
	"github.com/KIPE12/RC-Driver/pkg/log"
	"github.com/KIPE12/RC-Driver/pkg/metrics"
	"github.com/KIPE12/RC-Driver/pkg/monitor"
	"github.com/KIPE12/RC-Driver/pkg/observer"
	"github.com/KIPE12/RC-Driver/pkg/plant"
	"github.com/KIPE12/RC-Driver/pkg/pwm"
	"github.com/KIPE12/RC-Driver/pkg/rcinput"
	"github.com/KIPE12/RC-Driver/pkg/sampling"
	"github.com/KIPE12/RC-Driver/pkg/telemetry"
)

func main() {
	configFile := flag.String("config", "", "Drive configuration YAML (default: compiled-in defaults)")
	mkconf := flag.Bool("mkconf", false, "Print the effective configuration as YAML and exit")
	monitorAddr := flag.String("monitor", "", "Override the monitor listen address")
	debug := flag.Bool("debug", false, "Force debug log level")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *monitorAddr != "" {
		cfg.Monitor.Addr = *monitorAddr
	}

	if *mkconf {
		if err := cfg.Write(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger := log.New("rcdriver")
	var sink *log.FileSink
	if cfg.Log.File != "" {
		logger, sink, err = log.NewFileLogger("rcdriver", log.FileSinkConfig{
			Path:     cfg.Log.File,
			MaxMB:    cfg.Log.MaxMB,
			Keep:     cfg.Log.Keep,
			Compress: cfg.Log.Compress,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer sink.Close()
	}
	logger.SetLevel(log.ParseLevel(cfg.Log.Level))
	if cfg.Log.Format == "json" {
		logger.SetFormat(log.FormatJSON)
	}
	log.FromEnv(logger)
	if *debug {
		logger.SetLevel(log.LevelDebug)
	}
	log.SetDefault(logger)

	logger.Info("========================================")
	logger.Info("RC-Driver starting")
	logger.Info("========================================")
	if *configFile != "" {
		logger.Info("config: %s", *configFile)
	}
	logger.Info("%s", cfg.Summary())

	if cfg.Runner.Mlockall {
		if err := lockMemory(); err != nil {
			logger.Warn("mlockall failed, running unpinned: %v", err)
		} else {
			logger.Info("process memory locked")
		}
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	logger.Info("RC-Driver stopped")
}

// run wires the drive from the configuration and blocks until a signal
// stops the control loop. Everything hangs off the controller: the plant
// is its signal source, the monitor and RC input feed it commands, and
// telemetry reads its published status.
func run(cfg config.Config, logger *log.Logger) error {
	p := cfg.MotorParameters()
	bw := cfg.Bandwidths()
	variant, err := cfg.Variant()
	if err != nil {
		return err
	}

	dm := metrics.NewDriveMetrics()

	inv, err := foc.NewInverter(p, bw)
	if err != nil {
		return err
	}

	word := &flags.Word{}
	bridge := pwm.NewSim()
	motor := plant.New(p, bridge, cfg.Sim.Vdc)
	motor.Tload = cfg.Sim.Tload

	faults := fault.New(word, bridge)

	conv := sampling.NewConverter()
	conv.Gains = [4]float64{
		cfg.Sampling.GainA, cfg.Sampling.GainB,
		cfg.Sampling.GainC, cfg.Sampling.GainVdc,
	}
	conv.ScaleComp = cfg.Sampling.ScaleComp
	cal := &sampling.Calibrator{}
	capture := sampling.NewCapture(cfg.Sampling.CaptureDepth)

	hall := observer.NewHallPLL()
	sens := observer.NewSensorless(2.0*math.Pi*cfg.Gains.EEMFHz, p, variant,
		2.0*math.Pi*cfg.Gains.ObserverHz, cfg.Gains.SpeedLPFHz)

	ctl, err := control.New(control.Options{
		Inverter:    inv,
		Flags:       word,
		Faults:      faults,
		Output:      bridge,
		Converter:   conv,
		Calibrator:  cal,
		Capture:     capture,
		HallPLL:     hall,
		Sensorless:  sens,
		Logger:      logger.WithPrefix("control"),
		Metrics:     dm,
		StatusEvery: uint64(cfg.Runner.StatusEvery),
	})
	if err != nil {
		return err
	}
	runner := control.NewRunner(ctl, motor, cfg.Interval(), logger.WithPrefix("runner"), dm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received %s, shutting down", sig)
		cancel()
	}()

	var wg sync.WaitGroup

	var metSrv *metrics.MetricsServer
	if cfg.Metrics.Enabled {
		metSrv = metrics.NewMetricsServer(dm, cfg.Metrics.Addr)
		errCh := metSrv.StartAsync()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := <-errCh; err != nil {
				logger.Error("metrics server: %v", err)
			}
		}()
		logger.Info("metrics on http://%s/metrics", cfg.Metrics.Addr)
	}

	var mon *monitor.Server
	if cfg.Monitor.Enabled {
		mon, err = monitor.New(monitor.Options{
			Addr:     cfg.Monitor.Addr,
			Drive:    ctl,
			Flags:    word,
			Faults:   faults,
			Capture:  capture,
			StatusHz: cfg.Monitor.StatusHz,
			Tuning:   bw,
			Logger:   logger.WithPrefix("monitor"),
			Metrics:  dm,
		})
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mon.Start(); err != nil {
				logger.Error("monitor: %v", err)
			}
		}()
	}

	if cfg.Telemetry.Enabled {
		pub, err := telemetry.New(telemetry.Options{
			Broker:    cfg.Telemetry.Broker,
			ClientID:  cfg.Telemetry.ClientID,
			Prefix:    cfg.Telemetry.Prefix,
			StatusQoS: byte(cfg.Telemetry.StatusQoS),
			Interval:  time.Duration(cfg.Telemetry.IntervalMS) * time.Millisecond,
			Source:    ctl,
			Logger:    logger.WithPrefix("telemetry"),
			Metrics:   dm,
		})
		if err != nil {
			return err
		}
		faults.SetNotify(func(snap fault.Snapshot) {
			pub.PublishFault(snap, faults.Count())
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pub.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("telemetry: %v", err)
			}
		}()
	}

	if cfg.RCInput.Enabled {
		rc, err := rcinput.New(rcinput.Options{
			Port:    cfg.RCInput.Port,
			Baud:    cfg.RCInput.Baud,
			Sink:    ctl,
			Logger:  logger.WithPrefix("rcinput"),
			Metrics: dm,
		})
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rc.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("rcinput: %v", err)
			}
		}()
	}

	logger.Info("========================================")
	logger.Info("RC-Driver ready")
	if cfg.Monitor.Enabled {
		logger.Info("monitor: ws://%s/websocket", cfg.Monitor.Addr)
	}
	logger.Info("Press Ctrl+C to stop")
	logger.Info("========================================")

	err = runner.Run(ctx)

	if mon != nil {
		mon.Stop()
	}
	if metSrv != nil {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 2*time.Second)
		metSrv.Shutdown(shutCtx)
		shutCancel()
	}
	cancel()
	wg.Wait()

	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}
