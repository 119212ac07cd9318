// Websocket client connection handling for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	readLimit    = 64 * 1024
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// wsClient is one websocket connection. The read pump dispatches RPC
// requests; the write pump owns all writes to the conn, fed by the send
// channel. Broadcasts go only to clients that called drive.subscribe.
type wsClient struct {
	id         int64
	conn       *websocket.Conn
	srv        *Server
	sendCh     chan []byte
	done       chan struct{}
	closeOnce  sync.Once
	subscribed atomic.Bool
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed: %v", err)
		return
	}

	c := &wsClient{
		id:     s.nextID.Add(1),
		conn:   conn,
		srv:    s,
		sendCh: make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	s.addClient(c)

	go c.writePump()
	c.readPump()
}

// send queues a marshaled message, dropping it if the client is backed
// up. A slow monitor client must never stall the broadcaster.
func (c *wsClient) send(msg []byte) {
	select {
	case c.sendCh <- msg:
	case <-c.done:
	default:
		c.srv.logger.Debug("dropping message to slow client %d", c.id)
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *wsClient) readPump() {
	defer func() {
		c.srv.removeClient(c)
		c.close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.srv.logger.Warn("client %d read error: %v", c.id, err)
			}
			return
		}
		c.handleMessage(message)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsClient) handleMessage(data []byte) {
	var req rpcRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendResponse(rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}})
		return
	}

	result, err := c.srv.dispatch(req.Method, req.Params, c)
	if err != nil {
		c.sendResponse(rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: -32000, Message: err.Error()}, ID: req.ID})
		return
	}
	c.sendResponse(rpcResponse{JSONRPC: "2.0", Result: result, ID: req.ID})
}

func (c *wsClient) sendResponse(resp rpcResponse) {
	msg, err := json.Marshal(resp)
	if err != nil {
		c.srv.logger.Warn("client %d response marshal: %v", c.id, err)
		return
	}
	c.send(msg)
}
