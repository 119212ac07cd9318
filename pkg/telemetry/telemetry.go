// MQTT telemetry publisher for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package telemetry pushes the drive's status and fault events to an
// MQTT broker. Status rides on QoS per config (0 is fine for a 1 Hz
// gauge feed); fault events always go QoS 1 so a trip survives one
// broker reconnect.
package telemetry

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/KIPE12/RC-Driver/pkg/control"
	"github.com/KIPE12/RC-Driver/pkg/errors"
	"github.com/KIPE12/RC-Driver/pkg/fault"
	"github.com/KIPE12/RC-Driver/pkg/log"
	"github.com/KIPE12/RC-Driver/pkg/metrics"
)

// StatusSource yields the latest published drive snapshot, or nil before
// the first publication.
type StatusSource interface {
	Status() *control.Status
}

// Options wires a Publisher.
type Options struct {
	Broker    string
	ClientID  string
	Prefix    string
	StatusQoS byte
	Interval  time.Duration
	Source    StatusSource

	Logger  *log.Logger           // optional
	Metrics *metrics.DriveMetrics // optional

	// newClient replaces the paho constructor in tests.
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

// Publisher owns the broker connection and the periodic status publish.
type Publisher struct {
	client mqtt.Client
	src    StatusSource
	logger *log.Logger
	met    *metrics.DriveMetrics

	broker      string
	statusTopic string
	faultTopic  string
	qos         byte
	interval    time.Duration
}

// New validates the wiring and builds the publisher. Run must be called
// to connect and start the status feed.
func New(opt Options) (*Publisher, error) {
	switch {
	case opt.Source == nil:
		return nil, errors.RuntimeErrorInit("telemetry", "needs a status source")
	case opt.Broker == "":
		return nil, errors.RuntimeErrorInit("telemetry", "needs a broker address")
	case opt.Prefix == "":
		return nil, errors.RuntimeErrorInit("telemetry", "needs a topic prefix")
	}
	interval := opt.Interval
	if interval <= 0 {
		interval = time.Second
	}
	clientID := opt.ClientID
	if clientID == "" {
		clientID = "rcdriver"
	}
	logger := opt.Logger
	if logger == nil {
		logger = log.New("telemetry")
	}

	p := &Publisher{
		src:         opt.Source,
		logger:      logger,
		met:         opt.Metrics,
		broker:      opt.Broker,
		statusTopic: opt.Prefix + "/status",
		faultTopic:  opt.Prefix + "/fault",
		qos:         opt.StatusQoS,
		interval:    interval,
	}

	o := mqtt.NewClientOptions()
	o.AddBroker(opt.Broker)
	o.SetClientID(clientID)
	o.SetAutoReconnect(true)
	o.SetConnectRetry(true)
	o.SetConnectRetryInterval(5 * time.Second)
	o.OnConnect = func(mqtt.Client) {
		p.logger.Info("telemetry connected to %s", p.broker)
	}
	o.OnConnectionLost = func(_ mqtt.Client, err error) {
		p.logger.Warn("telemetry connection lost: %v", err)
	}

	newClient := opt.newClient
	if newClient == nil {
		newClient = mqtt.NewClient
	}
	p.client = newClient(o)
	return p, nil
}

// Run connects and publishes status at the configured interval until the
// context is canceled.
func (p *Publisher) Run(ctx context.Context) error {
	token := p.client.Connect()
	for !token.WaitTimeout(time.Second) {
		if ctx.Err() != nil {
			p.client.Disconnect(0)
			return ctx.Err()
		}
	}
	if err := token.Error(); err != nil {
		return errors.TelemetryConnectError(p.broker, err)
	}

	tick := time.NewTicker(p.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			p.client.Disconnect(250)
			return ctx.Err()
		case <-tick.C:
			p.publishStatus()
		}
	}
}

func (p *Publisher) publishStatus() {
	st := p.src.Status()
	if st == nil {
		return
	}
	body, err := json.Marshal(st)
	if err != nil {
		p.logger.Warn("status encode failed: %v", err)
		return
	}
	p.publish(p.statusTopic, p.qos, body)
}

// faultEvent is the wire form of a trip record.
type faultEvent struct {
	Code  string    `json:"code"`
	At    time.Time `json:"at"`
	Vdc   float64   `json:"vdc"`
	Idc   float64   `json:"idc"`
	Ia    float64   `json:"ia"`
	Ib    float64   `json:"ib"`
	Ic    float64   `json:"ic"`
	Wrpm  float64   `json:"wrpm"`
	Count uint64    `json:"count"`
}

// PublishFault pushes one trip record. Safe from any goroutine; the
// fault monitor's notify hook calls it directly.
func (p *Publisher) PublishFault(snap fault.Snapshot, count uint64) {
	ev := faultEvent{
		Code:  snap.Code.String(),
		At:    snap.At,
		Vdc:   snap.Vdc,
		Idc:   snap.Idc,
		Ia:    snap.Ia,
		Ib:    snap.Ib,
		Ic:    snap.Ic,
		Wrpm:  snap.Wrpm,
		Count: count,
	}
	body, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("fault encode failed: %v", err)
		return
	}
	p.publish(p.faultTopic, 1, body)
}

// publish fires one message and accounts for its outcome off the hot
// path. The payload slice is handed to paho and must not be reused.
func (p *Publisher) publish(topic string, qos byte, body []byte) {
	token := p.client.Publish(topic, qos, false, body)
	go func() {
		token.Wait()
		err := token.Error()
		if err != nil {
			p.logger.Debug("publish %s failed: %v", topic, err)
		}
		if p.met != nil {
			p.met.RecordTelemetry(topic, err)
		}
	}()
}
