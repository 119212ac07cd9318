// Metrics HTTP listener for RC-Driver Go migration
//
// Serves the drive registry in Prometheus text exposition format on a
// dedicated listener, separate from the websocket monitor port.
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// MetricsServer serves drive metrics over HTTP
type MetricsServer struct {
	dm  *DriveMetrics
	srv *http.Server
}

// NewMetricsServer creates a server for dm listening on addr
func NewMetricsServer(dm *DriveMetrics, addr string) *MetricsServer {
	ms := &MetricsServer{dm: dm}
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", ms.handleMetrics)
	mux.HandleFunc("/healthz", ms.handleHealthz)
	mux.HandleFunc("/", ms.handleIndex)
	ms.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return ms
}

func (ms *MetricsServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body := ms.dm.Gather()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	if r.Method == http.MethodHead {
		return
	}
	io.WriteString(w, body)
}

func (ms *MetricsServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	io.WriteString(w, "ok\n")
}

func (ms *MetricsServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	io.WriteString(w, "rcdriver metrics listener; scrape /metrics\n")
}

// Start serves until Shutdown is called or the listener fails
func (ms *MetricsServer) Start() error {
	err := ms.srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics: listener on %s: %w", ms.srv.Addr, err)
	}
	return nil
}

// StartAsync serves in a goroutine and reports the exit on the
// returned channel, which is closed once the server stops.
func (ms *MetricsServer) StartAsync() chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := ms.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully stops the server
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.srv.Shutdown(ctx)
}

// Addr returns the configured listen address
func (ms *MetricsServer) Addr() string {
	return ms.srv.Addr
}
