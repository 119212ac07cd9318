// Live monitor and command server for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package monitor serves the drive's live status and command surface over
// HTTP and websocket. Commands never touch regulator state directly: they
// mutate the shared flag word or queue setpoint requests through the
// Drive interface, which the control tick drains at its own boundary.
package monitor

import (
	"encoding/json"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/KIPE12/RC-Driver/pkg/control"
	"github.com/KIPE12/RC-Driver/pkg/errors"
	"github.com/KIPE12/RC-Driver/pkg/fault"
	"github.com/KIPE12/RC-Driver/pkg/flags"
	"github.com/KIPE12/RC-Driver/pkg/foc"
	"github.com/KIPE12/RC-Driver/pkg/log"
	"github.com/KIPE12/RC-Driver/pkg/metrics"
	"github.com/KIPE12/RC-Driver/pkg/pool"
	"github.com/KIPE12/RC-Driver/pkg/sampling"
)

// Drive is the slice of the controller the monitor commands through. All
// methods must be safe to call from the server goroutines; the concrete
// controller queues everything for the tick.
type Drive interface {
	Status() *control.Status
	SetSpeedCommand(rpm float64)
	SetOpenLoopCurrent(id float64)
	SetOpenLoopSpeed(rpm float64)
	SetOpenLoopVoltage(vd, vq float64)
	SetTestDuties(a, b, c float64)
	SetHallTestStep(n int)
	SetInjectionMagnitude(v float64)
	SetSmoothing(alpha float64)
	SetBandwidths(bw foc.Bandwidths)
	SetExternalDuty(d float64)
	UseSensorlessAngle(on bool)
}

// Options wires a Server together.
type Options struct {
	Addr    string
	Drive   Drive
	Flags   *flags.Word
	Faults  *fault.Monitor
	Capture *sampling.Capture // optional

	// StatusHz throttles the periodic broadcast to subscribed websocket
	// clients; default 10.
	StatusHz float64

	// Tuning seeds the bandwidths drive.config.gains edits, so a retune
	// of one loop keeps the configured values of the others.
	Tuning foc.Bandwidths

	Logger  *log.Logger           // optional
	Metrics *metrics.DriveMetrics // optional
}

// Server is the websocket/HTTP monitor endpoint.
type Server struct {
	drive   Drive
	word    *flags.Word
	faults  *fault.Monitor
	capture *sampling.Capture
	logger  *log.Logger
	met     *metrics.DriveMetrics

	addr     string
	statusHz float64
	mux      *http.ServeMux
	httpSrv  *http.Server
	upgrader websocket.Upgrader

	tuningMu sync.Mutex
	tuning   foc.Bandwidths

	clientMu sync.RWMutex
	clients  map[int64]*wsClient
	nextID   atomic.Int64

	running   atomic.Bool
	stopCh    chan struct{}
	startTime time.Time
}

// New validates the wiring and builds the server. Start must be called to
// begin listening.
func New(opt Options) (*Server, error) {
	switch {
	case opt.Drive == nil:
		return nil, errors.RuntimeErrorInit("monitor", "needs a drive")
	case opt.Flags == nil:
		return nil, errors.RuntimeErrorInit("monitor", "needs the flag word")
	case opt.Faults == nil:
		return nil, errors.RuntimeErrorInit("monitor", "needs the fault monitor")
	case opt.Addr == "":
		return nil, errors.RuntimeErrorInit("monitor", "needs a listen address")
	}
	logger := opt.Logger
	if logger == nil {
		logger = log.New("monitor")
	}
	statusHz := opt.StatusHz
	if statusHz <= 0 {
		statusHz = 10
	}
	tuning := opt.Tuning
	if tuning == (foc.Bandwidths{}) {
		tuning = foc.DefaultBandwidths()
	}

	s := &Server{
		drive:    opt.Drive,
		word:     opt.Flags,
		faults:   opt.Faults,
		capture:  opt.Capture,
		logger:   logger,
		met:      opt.Metrics,
		addr:     opt.Addr,
		statusHz: statusHz,
		tuning:   tuning,
		clients:  make(map[int64]*wsClient),
		stopCh:   make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/websocket", s.handleWebsocket)
	mux.HandleFunc("/rpc", s.handleRPC)
	mux.HandleFunc("/drive/status", s.handleStatus)
	mux.HandleFunc("/drive/fault", s.handleFault)
	s.mux = mux
	s.httpSrv = &http.Server{
		Addr:         opt.Addr,
		Handler:      s.corsMiddleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s, nil
}

// Handler returns the server's HTTP handler, for mounting under a test
// listener.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start listens and serves until Stop. The status broadcast goroutine
// runs alongside the listener.
func (s *Server) Start() error {
	s.running.Store(true)
	s.startTime = time.Now()
	go s.broadcastLoop()
	s.logger.Info("monitor listening on %s", s.addr)

	err := s.httpSrv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, errors.ErrRuntime, "monitor listener failed")
	}
	return nil
}

// Stop closes the listener and every websocket client.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	close(s.stopCh)

	s.clientMu.Lock()
	for _, c := range s.clients {
		c.close()
	}
	s.clients = make(map[int64]*wsClient)
	s.clientMu.Unlock()

	return s.httpSrv.Close()
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	return len(s.clients)
}

// JSON-RPC 2.0 structures, same wire shape as the team's other hosts.

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// dispatch routes one method call. client is nil for plain HTTP
// requests. A panicking handler comes back as an RPC error instead of
// tearing down the connection.
func (s *Server) dispatch(method string, params json.RawMessage, client *wsClient) (result any, err error) {
	defer errors.RecoverPanic(&err)
	switch method {
	case "drive.status":
		return s.methodStatus()
	case "drive.flags.set":
		return s.methodFlagsSet(params)
	case "drive.setpoints.set":
		return s.methodSetpoints(params)
	case "drive.fault.clear":
		return s.methodFaultClear()
	case "drive.fault.last":
		return s.methodFaultLast()
	case "drive.fault.trip":
		return s.methodFaultTrip()
	case "drive.capture.arm":
		return s.methodCaptureArm()
	case "drive.capture.fetch":
		return s.methodCaptureFetch()
	case "drive.config.gains":
		return s.methodConfigGains(params)
	case "drive.subscribe":
		return s.methodSubscribe(client)
	case "server.info":
		return s.methodServerInfo()
	default:
		return nil, errors.MonitorMethodError(method)
	}
}

func (s *Server) methodStatus() (any, error) {
	st := s.drive.Status()
	if st == nil {
		return nil, errors.MonitorParamsError("drive.status", "no status published yet")
	}
	return st, nil
}

type flagsSetParams struct {
	Set   []string `json:"set"`
	Clear []string `json:"clear"`
}

func (s *Server) methodFlagsSet(params json.RawMessage) (any, error) {
	var p flagsSetParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, errors.MonitorParamsError("drive.flags.set", err.Error())
	}
	for _, name := range p.Set {
		b, err := flags.ParseBit(name)
		if err != nil {
			return nil, errors.MonitorParamsError("drive.flags.set", err.Error())
		}
		s.word.Set(b)
	}
	for _, name := range p.Clear {
		b, err := flags.ParseBit(name)
		if err != nil {
			return nil, errors.MonitorParamsError("drive.flags.set", err.Error())
		}
		s.word.Clear(b)
	}
	snap := s.word.Snapshot()
	return map[string]any{
		"flags": snap.Active(),
		"fault": snap.Fault().String(),
	}, nil
}

type setpointParams struct {
	SpeedRPM   *float64    `json:"speed_rpm"`
	OpenID     *float64    `json:"open_id"`
	OpenWrpm   *float64    `json:"open_wrpm"`
	VolcVd     *float64    `json:"volc_vd"`
	VolcVq     *float64    `json:"volc_vq"`
	TestDuties *[3]float64 `json:"test_duties"`
	HallStep   *int        `json:"hall_step"`
	InjectVmag *float64    `json:"inject_vmag"`
	Smoothing  *float64    `json:"smoothing"`
	ExtDuty    *float64    `json:"ext_duty"`
	Sensorless *bool       `json:"sensorless"`
}

func (s *Server) methodSetpoints(params json.RawMessage) (any, error) {
	var p setpointParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, errors.MonitorParamsError("drive.setpoints.set", err.Error())
	}
	applied := 0
	if p.SpeedRPM != nil {
		s.drive.SetSpeedCommand(*p.SpeedRPM)
		applied++
	}
	if p.OpenID != nil {
		s.drive.SetOpenLoopCurrent(*p.OpenID)
		applied++
	}
	if p.OpenWrpm != nil {
		s.drive.SetOpenLoopSpeed(*p.OpenWrpm)
		applied++
	}
	if p.VolcVd != nil || p.VolcVq != nil {
		var vd, vq float64
		if p.VolcVd != nil {
			vd = *p.VolcVd
		}
		if p.VolcVq != nil {
			vq = *p.VolcVq
		}
		s.drive.SetOpenLoopVoltage(vd, vq)
		applied++
	}
	if p.TestDuties != nil {
		s.drive.SetTestDuties(p.TestDuties[0], p.TestDuties[1], p.TestDuties[2])
		applied++
	}
	if p.HallStep != nil {
		s.drive.SetHallTestStep(*p.HallStep)
		applied++
	}
	if p.InjectVmag != nil {
		s.drive.SetInjectionMagnitude(*p.InjectVmag)
		applied++
	}
	if p.Smoothing != nil {
		s.drive.SetSmoothing(*p.Smoothing)
		applied++
	}
	if p.ExtDuty != nil {
		s.drive.SetExternalDuty(*p.ExtDuty)
		applied++
	}
	if p.Sensorless != nil {
		s.drive.UseSensorlessAngle(*p.Sensorless)
		applied++
	}
	if applied == 0 {
		return nil, errors.MonitorParamsError("drive.setpoints.set", "no recognized setpoint in params")
	}
	return map[string]any{"applied": applied}, nil
}

func (s *Server) methodFaultClear() (any, error) {
	s.word.Set(flags.FaultClear)
	s.logger.Info("fault clear requested")
	return map[string]any{"requested": true}, nil
}

// faultResult renders the latched trip record.
type faultResult struct {
	Code  string  `json:"code"`
	Count uint64  `json:"count"`
	At    string  `json:"at,omitempty"`
	Vdc   float64 `json:"vdc"`
	Idc   float64 `json:"idc"`
	Ia    float64 `json:"ia"`
	Ib    float64 `json:"ib"`
	Ic    float64 `json:"ic"`
	Wrpm  float64 `json:"wrpm"`
}

func (s *Server) methodFaultLast() (any, error) {
	snap := s.faults.Last()
	res := faultResult{
		Code:  s.word.Fault().String(),
		Count: s.faults.Count(),
		Vdc:   snap.Vdc,
		Idc:   snap.Idc,
		Ia:    snap.Ia,
		Ib:    snap.Ib,
		Ic:    snap.Ic,
		Wrpm:  snap.Wrpm,
	}
	if !snap.At.IsZero() {
		res.At = snap.At.Format(time.RFC3339Nano)
	}
	return res, nil
}

// methodFaultTrip injects a hardware trip, standing in for the comparator
// input during commissioning. The trip path is the same one the real
// hardware signal takes.
func (s *Server) methodFaultTrip() (any, error) {
	var e fault.Electrical
	if st := s.drive.Status(); st != nil {
		e = fault.Electrical{
			Vdc: st.Vdc, Idc: st.Idc,
			Ia: st.Ia, Ib: st.Ib, Ic: st.Ic,
			Wrpm: st.Wrpm,
		}
	}
	s.faults.Hardware(e)
	s.logger.Warn("hardware trip injected via monitor")
	if s.met != nil {
		s.met.RecordFault("hardware")
	}
	return map[string]any{"tripped": true}, nil
}

func (s *Server) methodCaptureArm() (any, error) {
	if s.capture == nil {
		return nil, errors.CaptureError("no capture configured")
	}
	s.capture.Arm()
	return map[string]any{"armed": true}, nil
}

func (s *Server) methodCaptureFetch() (any, error) {
	if s.capture == nil {
		return nil, errors.CaptureError("no capture configured")
	}
	data, err := s.capture.Fetch()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"length":   s.capture.Len(),
		"channels": data,
	}, nil
}

type gainsParams struct {
	CurrentHz *float64 `json:"current_hz"`
	SpeedHz   *float64 `json:"speed_hz"`
	Zeta      *float64 `json:"zeta"`
	PLLHz     *float64 `json:"pll_hz"`
}

// methodConfigGains edits the cached tuning so a retune of one loop keeps
// the others where the config file put them, then queues the whole set.
func (s *Server) methodConfigGains(params json.RawMessage) (any, error) {
	var p gainsParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, errors.MonitorParamsError("drive.config.gains", err.Error())
	}
	for _, f := range []struct {
		name string
		val  *float64
	}{
		{"current_hz", p.CurrentHz}, {"speed_hz", p.SpeedHz},
		{"zeta", p.Zeta}, {"pll_hz", p.PLLHz},
	} {
		if f.val != nil && *f.val <= 0 {
			return nil, errors.MonitorParamsError("drive.config.gains", f.name+" must be positive")
		}
	}

	s.tuningMu.Lock()
	if p.CurrentHz != nil {
		s.tuning.Wcc = 2.0 * math.Pi * *p.CurrentHz
	}
	if p.SpeedHz != nil {
		s.tuning.Wsc = 2.0 * math.Pi * *p.SpeedHz
	}
	if p.Zeta != nil {
		s.tuning.Zeta = *p.Zeta
	}
	if p.PLLHz != nil {
		s.tuning.Wpll = 2.0 * math.Pi * *p.PLLHz
	}
	bw := s.tuning
	s.tuningMu.Unlock()

	s.drive.SetBandwidths(bw)
	s.logger.Info("gain retune queued: wcc=%.1f wsc=%.1f zeta=%.3f wpll=%.1f",
		bw.Wcc, bw.Wsc, bw.Zeta, bw.Wpll)
	return map[string]any{
		"current_hz": bw.Wcc / (2.0 * math.Pi),
		"speed_hz":   bw.Wsc / (2.0 * math.Pi),
		"zeta":       bw.Zeta,
		"pll_hz":     bw.Wpll / (2.0 * math.Pi),
	}, nil
}

func (s *Server) methodSubscribe(client *wsClient) (any, error) {
	if client == nil {
		return nil, errors.MonitorParamsError("drive.subscribe", "subscription requires a websocket connection")
	}
	client.subscribed.Store(true)
	return s.methodStatus()
}

func (s *Server) methodServerInfo() (any, error) {
	var tick uint64
	if st := s.drive.Status(); st != nil {
		tick = st.Tick
	}
	return map[string]any{
		"name":      "rcdriver",
		"uptime_s":  time.Since(s.startTime).Seconds(),
		"clients":   s.ClientCount(),
		"tick":      tick,
		"status_hz": s.statusHz,
	}, nil
}

// HTTP glue.

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeRPC(w, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}})
		return
	}
	result, err := s.dispatch(req.Method, req.Params, nil)
	if err != nil {
		s.writeRPC(w, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: -32000, Message: err.Error()}, ID: req.ID})
		return
	}
	s.writeRPC(w, rpcResponse{JSONRPC: "2.0", Result: result, ID: req.ID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.drive.Status()
	if st == nil {
		http.Error(w, "no status published yet", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, st)
}

func (s *Server) handleFault(w http.ResponseWriter, r *http.Request) {
	res, _ := s.methodFaultLast()
	s.writeJSON(w, res)
}

// writeJSON encodes through a pooled buffer so the handler path does not
// allocate a fresh encode buffer per request.
func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	buf := pool.GetByteBuffer()
	defer pool.PutByteBuffer(buf)

	enc := json.NewEncoder(buf)
	if err := enc.Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(buf.Bytes())
}

func (s *Server) writeRPC(w http.ResponseWriter, resp rpcResponse) {
	s.writeJSON(w, resp)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// broadcastLoop pushes the published status to subscribed clients,
// throttled to the configured rate.
func (s *Server) broadcastLoop() {
	lim := rate.NewLimiter(rate.Limit(s.statusHz), 1)
	for s.running.Load() {
		r := lim.Reserve()
		if !r.OK() {
			return
		}
		select {
		case <-time.After(r.Delay()):
		case <-s.stopCh:
			return
		}
		s.broadcast()
	}
}

func (s *Server) broadcast() {
	st := s.drive.Status()
	if st == nil {
		return
	}

	s.clientMu.RLock()
	subscribed := make([]*wsClient, 0, len(s.clients))
	for _, c := range s.clients {
		if c.subscribed.Load() {
			subscribed = append(subscribed, c)
		}
	}
	s.clientMu.RUnlock()
	if len(subscribed) == 0 {
		return
	}

	body, err := json.Marshal(st)
	if err != nil {
		return
	}
	note, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "notify_status",
		"params":  json.RawMessage(body),
	})
	if err != nil {
		return
	}
	for _, c := range subscribed {
		c.send(note)
	}
	if s.met != nil {
		s.met.RecordBroadcast()
	}
}

func (s *Server) addClient(c *wsClient) {
	s.clientMu.Lock()
	s.clients[c.id] = c
	n := len(s.clients)
	s.clientMu.Unlock()
	s.logger.Info("monitor client %d connected (%d total)", c.id, n)
	if s.met != nil {
		s.met.SetMonitorClients(n)
	}
}

func (s *Server) removeClient(c *wsClient) {
	s.clientMu.Lock()
	delete(s.clients, c.id)
	n := len(s.clients)
	s.clientMu.Unlock()
	s.logger.Info("monitor client %d disconnected (%d total)", c.id, n)
	if s.met != nil {
		s.met.SetMonitorClients(n)
	}
}
