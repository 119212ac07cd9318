// Capture export tool for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// rcdriver-capture arms the drive's waveform capture over the monitor
// RPC endpoint, waits for the burst to fill, and writes the recorded
// channels as CSV.
//
// Usage:
//
//	rcdriver-capture [-addr 127.0.0.1:7170] [-out capture.csv]
//
// Options:
//
//	-addr string     Monitor address (default "127.0.0.1:7170")
//	-out string      Output file (default: stdout)
//	-timeout duration  Give up waiting for the burst (default 30s)
//	-noarm           Fetch the last completed burst without arming
//
// The burst length is the drive's configured capture depth; at the
// 10 kHz tick the default 4096 samples cover about 410 ms.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/KIPE12/RC-Driver/pkg/log"
	"github.com/KIPE12/RC-Driver/pkg/sampling"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type statusResult struct {
	Mode         string `json:"mode"`
	Calibrated   bool   `json:"calibrated"`
	CaptureArmed bool   `json:"capture_armed"`
	CaptureLen   int    `json:"capture_len"`
}

type fetchResult struct {
	Length   int                  `json:"length"`
	Channels map[string][]float64 `json:"channels"`
}

func main() {
	addr := flag.String("addr", "127.0.0.1:7170", "Monitor address")
	out := flag.String("out", "", "Output file (default: stdout)")
	timeout := flag.Duration("timeout", 30*time.Second, "Give up waiting for the burst")
	noarm := flag.Bool("noarm", false, "Fetch the last completed burst without arming")
	flag.Parse()

	logger := log.New("capture")
	cl := &rpcClient{
		url:  "http://" + *addr + "/rpc",
		http: &http.Client{Timeout: 5 * time.Second},
	}

	if !*noarm {
		if err := cl.call("drive.capture.arm", nil); err != nil {
			logger.Error("arm: %v", err)
			os.Exit(1)
		}
		logger.Info("capture armed, waiting for the burst to fill")

		if err := waitDone(cl, *timeout); err != nil {
			logger.Error("%v", err)
			os.Exit(1)
		}
	}

	var res fetchResult
	if err := cl.call("drive.capture.fetch", &res); err != nil {
		logger.Error("fetch: %v", err)
		os.Exit(1)
	}
	if res.Length == 0 {
		logger.Warn("capture is empty; writing header only")
	}

	w := io.Writer(os.Stdout)
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			logger.Error("create output: %v", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	if err := writeCSV(w, res); err != nil {
		logger.Error("write csv: %v", err)
		os.Exit(1)
	}
	if *out != "" {
		logger.Info("wrote %d samples to %s", res.Length, *out)
	}
}

// waitDone polls the drive status until the burst auto-disarms. The tick
// appends one sample per period, so a depth-4096 burst at 100 us fills
// in under half a second; the timeout covers a drive that is not
// ticking.
func waitDone(cl *rpcClient, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		var st statusResult
		if err := cl.call("drive.status", &st); err != nil {
			return fmt.Errorf("status poll: %w", err)
		}
		if !st.CaptureArmed {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("burst still armed after %s (len %d, mode %s)",
				timeout, st.CaptureLen, st.Mode)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// writeCSV emits tick index plus the channels in their canonical order.
func writeCSV(w io.Writer, res fetchResult) error {
	cw := csv.NewWriter(w)

	header := append([]string{"tick"}, sampling.ChannelNames[:]...)
	if err := cw.Write(header); err != nil {
		return err
	}

	n := res.Length
	for _, name := range sampling.ChannelNames {
		if ch := res.Channels[name]; len(ch) < n {
			n = len(ch)
		}
	}

	row := make([]string, len(header))
	for i := 0; i < n; i++ {
		row[0] = strconv.Itoa(i)
		for j, name := range sampling.ChannelNames {
			row[j+1] = strconv.FormatFloat(res.Channels[name][i], 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// rpcClient is a minimal JSON-RPC 2.0 poster against the monitor.
type rpcClient struct {
	url  string
	http *http.Client
	id   int
}

func (c *rpcClient) call(method string, result any) error {
	c.id++
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, ID: c.id})
	if err != nil {
		return err
	}
	resp, err := c.http.Post(c.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rr.Error != nil {
		return fmt.Errorf("%s (code %d)", rr.Error.Message, rr.Error.Code)
	}
	if result != nil {
		if err := json.Unmarshal(rr.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}
