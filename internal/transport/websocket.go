// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KBchulan/jmReader/pkg/core"
	"github.com/gorilla/websocket"
)

type Settings struct {
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	WriteTimeout     time.Duration
	ReadLimit        int64
}

func DefaultSettings() *Settings {
	return &Settings{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     54 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadLimit:        1 << 20,
	}
}

// WebSocketDialer opens gorilla websocket connections that keep themselves
// alive with pings until closed.
type WebSocketDialer struct {
	dialer   websocket.Dialer
	settings *Settings
	logger   *slog.Logger
}

func NewWebSocketDialer(settings *Settings, logger *slog.Logger) *WebSocketDialer {
	if settings == nil {
		settings = DefaultSettings()
	}
	return &WebSocketDialer{
		dialer: websocket.Dialer{
			HandshakeTimeout: settings.HandshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		settings: settings,
		logger:   logger,
	}
}

func (d *WebSocketDialer) Dial(ctx context.Context, url string) (core.Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &wsConn{
		conn:     conn,
		settings: d.settings,
		logger:   d.logger,
		done:     make(chan struct{}),
	}
	c.start()
	return c, nil
}

type wsConn struct {
	conn      *websocket.Conn
	settings  *Settings
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

func (c *wsConn) start() {
	if c.settings.ReadLimit > 0 {
		c.conn.SetReadLimit(c.settings.ReadLimit)
	}
	c.extendReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})
	if c.settings.PingInterval > 0 {
		go c.pingLoop()
	}
}

func (c *wsConn) extendReadDeadline() {
	if c.settings.ReadTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
	}
}

func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(c.settings.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.settings.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug("ws ping failed", "error", err)
				return
			}
		}
	}
}

// ReadMessage blocks for the next text or binary frame. Control frames are
// handled by the websocket library and never surface here.
func (c *wsConn) ReadMessage() (int, []byte, error) {
	mt, data, err := c.conn.ReadMessage()
	if err != nil {
		return mt, nil, err
	}
	c.extendReadDeadline()
	return mt, data, nil
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(c.settings.WriteTimeout)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		err = c.conn.Close()
	})
	return err
}

// IsExpectedClose reports whether err is an orderly close that needs no
// error-level log.
func IsExpectedClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
