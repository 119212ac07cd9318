// RC receiver serial reader for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package rcinput

import (
	"bufio"
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"

	"github.com/KIPE12/RC-Driver/pkg/errors"
	"github.com/KIPE12/RC-Driver/pkg/log"
	"github.com/KIPE12/RC-Driver/pkg/metrics"
)

// Sink receives the validated, clamped duty. The controller's external
// duty box satisfies it.
type Sink interface {
	SetExternalDuty(d float64)
}

// Options wires a Reader.
type Options struct {
	Port string
	Baud int
	Sink Sink

	// Open replaces the serial port open, for tests and alternate
	// transports. When nil the Port/Baud settings are used.
	Open func() (io.ReadWriteCloser, error)

	Logger  *log.Logger           // optional
	Metrics *metrics.DriveMetrics // optional
}

// Stats is a snapshot of the link counters.
type Stats struct {
	Frames     uint64
	CRCErrors  uint64
	SeqGaps    uint64
	Reconnects uint64
	LinkUp     bool
}

// Reader owns the serial link to the RC receiver. It aligns the byte
// stream on the sync byte, validates each frame, and publishes the duty
// to the sink. A lost link publishes duty zero before the reconnect
// cycle starts, so the torque path never holds a stale demand.
type Reader struct {
	portName string
	sink     Sink
	open     func() (io.ReadWriteCloser, error)
	logger   *log.Logger
	met      *metrics.DriveMetrics

	lastSeq uint8
	haveSeq bool

	frames     atomic.Uint64
	crcErrors  atomic.Uint64
	seqGaps    atomic.Uint64
	reconnects atomic.Uint64
	linkUp     atomic.Bool
}

// New validates the wiring and builds a reader. Run must be called to
// start the link.
func New(opt Options) (*Reader, error) {
	if opt.Sink == nil {
		return nil, errors.RuntimeErrorInit("rcinput", "needs a duty sink")
	}
	open := opt.Open
	if open == nil {
		if opt.Port == "" {
			return nil, errors.RuntimeErrorInit("rcinput", "needs a serial port")
		}
		if opt.Baud <= 0 {
			return nil, errors.RuntimeErrorInit("rcinput", "needs a positive baud rate")
		}
		conf := &serial.Config{Name: opt.Port, Baud: opt.Baud}
		open = func() (io.ReadWriteCloser, error) {
			return serial.OpenPort(conf)
		}
	}
	logger := opt.Logger
	if logger == nil {
		logger = log.New("rcinput")
	}
	return &Reader{
		portName: opt.Port,
		sink:     opt.Sink,
		open:     open,
		logger:   logger,
		met:      opt.Metrics,
	}, nil
}

// Stats returns the current link counters.
func (r *Reader) Stats() Stats {
	return Stats{
		Frames:     r.frames.Load(),
		CRCErrors:  r.crcErrors.Load(),
		SeqGaps:    r.seqGaps.Load(),
		Reconnects: r.reconnects.Load(),
		LinkUp:     r.linkUp.Load(),
	}
}

// Run opens the link and reads frames until the context is canceled,
// reconnecting whenever the link drops. The exit path always leaves the
// sink at zero duty.
func (r *Reader) Run(ctx context.Context) error {
	defer func() {
		r.sink.SetExternalDuty(0)
		if r.met != nil {
			r.met.SetRCStatus(false, 0)
		}
	}()

	quiet := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := r.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// One Warn per outage, Debug for the repeat cycles.
			if !quiet {
				r.logger.Warn("rc link %s unavailable: %v", r.portName, err)
				quiet = true
			} else {
				r.logger.Debug("rc link %s still unavailable: %v", r.portName, err)
			}
			continue
		}
		quiet = false
		r.logger.Info("rc link %s up", r.portName)
		r.linkUp.Store(true)
		if r.met != nil {
			r.met.SetRCStatus(true, 0)
		}

		err = r.readLoop(ctx, conn)

		r.linkUp.Store(false)
		r.sink.SetExternalDuty(0)
		if r.met != nil {
			r.met.SetRCStatus(false, 0)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn("rc link %s lost: %v", r.portName, err)
		r.reconnects.Add(1)
		if r.met != nil {
			r.met.RecordRCReconnect()
		}
	}
}

// connect runs one exponential backoff cycle against the port. The RC
// receiver's USB bridge does not like being connection thrashed.
func (r *Reader) connect(ctx context.Context) (io.ReadWriteCloser, error) {
	var conn io.ReadWriteCloser
	op := func() error {
		c, err := r.open()
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	bo := backoff.WithContext(&backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock,
	}, ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, errors.InputLinkError(r.portName, err)
	}
	return conn, nil
}

// readLoop consumes frames until the connection fails or the context is
// canceled. Cancellation closes the conn to unblock the pending read.
func (r *Reader) readLoop(ctx context.Context, conn io.ReadWriteCloser) error {
	watch := make(chan struct{})
	defer close(watch)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watch:
			conn.Close()
		}
	}()

	br := bufio.NewReaderSize(conn, 4*FrameSize)
	frame := make([]byte, FrameSize)
	for {
		b, err := br.ReadByte()
		if err != nil {
			return err
		}
		if b != SyncByte {
			continue
		}
		frame[0] = b
		if _, err := io.ReadFull(br, frame[1:]); err != nil {
			return err
		}

		seq, duty, err := DecodeFrame(frame)
		if err != nil {
			r.crcErrors.Add(1)
			if r.met != nil {
				r.met.RecordRCFrameError("crc")
			}
			r.logger.Debug("rc frame dropped: %v", err)
			continue
		}
		r.accept(seq, duty)
	}
}

func (r *Reader) accept(seq uint8, duty float64) {
	if r.haveSeq {
		// uint8 arithmetic wraps, so a gap across 255->0 counts right.
		if gap := seq - r.lastSeq - 1; gap != 0 {
			r.seqGaps.Add(uint64(gap))
			if r.met != nil {
				r.met.RecordRCFrameError("gap")
			}
			r.logger.Debug("rc link %s: %d frames lost", r.portName, gap)
		}
	}
	r.lastSeq = seq
	r.haveSeq = true

	if duty < 0 {
		duty = 0
	} else if duty > 1 {
		duty = 1
	}
	r.sink.SetExternalDuty(duty)
	r.frames.Add(1)
	if r.met != nil {
		r.met.RecordRCFrame()
		r.met.SetRCStatus(true, duty)
	}
}
