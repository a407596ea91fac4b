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

package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KBchulan/jmReader/internal/backoff"
	"github.com/KBchulan/jmReader/internal/codec"
	"github.com/KBchulan/jmReader/internal/dispatch"
	"github.com/KBchulan/jmReader/internal/endpoint"
	"github.com/KBchulan/jmReader/internal/logging"
	"github.com/KBchulan/jmReader/pkg/core"
	"github.com/google/uuid"
)

type Options struct {
	BaseURL  string
	Origin   string
	Dialer   core.Dialer
	Policy   backoff.Policy
	Registry *dispatch.Registry
	Logger   *slog.Logger
	EventLog *logging.EventLogger
}

type Stats struct {
	State           string    `json:"state"`
	ConnectionID    string    `json:"connection_id,omitempty"`
	URL             string    `json:"url,omitempty"`
	Attempts        uint64    `json:"attempts"`
	Reconnects      uint64    `json:"reconnects"`
	Frames          uint64    `json:"frames"`
	Dropped         uint64    `json:"dropped"`
	HandlerFailures uint64    `json:"handler_failures"`
	LastError       string    `json:"last_error,omitempty"`
	OpenedAt        time.Time `json:"opened_at"`
	// Events is keyed by kind and only set when an event logger is wired.
	Events map[string]logging.KindCount `json:"events,omitempty"`
}

type listener struct {
	id int
	fn func(core.StateChange)
}

// Manager owns the single realtime channel. Every channel instance carries a
// generation number; reads, drops and timers from an older generation are
// ignored, so at most one channel is ever live.
type Manager struct {
	mu       sync.Mutex
	dialer   core.Dialer
	policy   backoff.Policy
	registry *dispatch.Registry
	logger   *slog.Logger
	eventLog *logging.EventLogger
	baseURL  string
	origin   string

	state    atomic.Int32
	gen      uint64
	conn     core.Conn
	cancel   context.CancelFunc
	timer    *time.Timer
	connID   string
	url      string
	openedAt time.Time
	lastErr  error

	listeners    []listener
	nextListener int
	pending      []core.StateChange
	notifying    bool

	attempts   atomic.Uint64
	reconnects atomic.Uint64
	frames     atomic.Uint64
	dropped    atomic.Uint64
}

func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := opts.Registry
	if registry == nil {
		registry = dispatch.NewRegistry(logger)
	}
	policy := opts.Policy
	if policy == nil {
		policy = backoff.Fixed(backoff.DefaultDelay)
	}
	m := &Manager{
		dialer:    opts.Dialer,
		policy:    policy,
		registry:  registry,
		logger:    logger,
		eventLog:  opts.EventLog,
		baseURL:   opts.BaseURL,
		origin:    opts.Origin,
	}
	m.state.Store(int32(core.StateClosed))
	return m
}

// Connect replaces any existing channel with a new one. It returns once the
// state is Connecting; the dial and every later failure are reported through
// state changes and logs.
func (m *Manager) Connect() {
	m.mu.Lock()
	stale, start := m.connectLocked()
	m.mu.Unlock()

	m.flush()
	closeConn(stale)
	if start != nil {
		start()
	}
}

// Close tears the channel down and cancels any pending reconnect.
func (m *Manager) Close() {
	m.mu.Lock()
	stale := m.teardownLocked()
	changed := m.setStateLocked(core.StateClosed, nil)
	m.mu.Unlock()

	if changed {
		m.logger.Info("realtime channel closed")
	}
	m.flush()
	closeConn(stale)
}

func (m *Manager) Subscribe(kind string, h core.Handler) (core.SubscriptionID, error) {
	return m.registry.Subscribe(kind, h)
}

func (m *Manager) Unsubscribe(kind string, id core.SubscriptionID) bool {
	return m.registry.Unsubscribe(kind, id)
}

// UnsubscribeHandler removes the first entry of kind whose handler equals h.
// Func-typed handlers never compare equal; use Unsubscribe with the id.
func (m *Manager) UnsubscribeHandler(kind string, h core.Handler) bool {
	return m.registry.UnsubscribeHandler(kind, h)
}

func (m *Manager) Registry() *dispatch.Registry { return m.registry }

func (m *Manager) State() core.ConnectionState {
	return core.ConnectionState(m.state.Load())
}

func (m *Manager) Connected() bool { return m.State() == core.StateOpen }

// OnStateChange registers fn for every state transition and returns an id for
// RemoveStateListener. Changes are delivered one at a time in the order the
// transitions happened, in registration order, outside the manager's lock.
// Listeners must not block.
func (m *Manager) OnStateChange(fn func(core.StateChange)) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextListener++
	m.listeners = append(m.listeners, listener{id: m.nextListener, fn: fn})
	return m.nextListener
}

func (m *Manager) RemoveStateListener(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.listeners {
		if l.id == id {
			next := make([]listener, 0, len(m.listeners)-1)
			next = append(next, m.listeners[:i]...)
			m.listeners = append(next, m.listeners[i+1:]...)
			return
		}
	}
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	s := Stats{
		State:        m.State().String(),
		ConnectionID: m.connID,
		URL:          m.url,
		OpenedAt:     m.openedAt,
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	m.mu.Unlock()

	s.Attempts = m.attempts.Load()
	s.Reconnects = m.reconnects.Load()
	s.Frames = m.frames.Load()
	s.Dropped = m.dropped.Load()
	s.HandlerFailures = m.registry.Failures()
	if m.eventLog != nil {
		s.Events = m.eventLog.Counts()
	}
	return s
}

// connectLocked retires the current channel and prepares the next one. The
// returned start func launches the dial.
func (m *Manager) connectLocked() (core.Conn, func()) {
	stale := m.teardownLocked()

	url, err := endpoint.Resolve(m.baseURL, m.origin, m.logger)
	if err != nil {
		m.lastErr = err
		m.logger.Error("cannot build realtime endpoint, not connecting", "error", err)
		m.setStateLocked(core.StateClosed, err)
		return stale, nil
	}
	if m.dialer == nil {
		m.lastErr = errors.New("no dialer configured")
		m.logger.Error("cannot open realtime channel", "error", m.lastErr)
		m.setStateLocked(core.StateClosed, m.lastErr)
		return stale, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	gen := m.gen
	connID := uuid.New().String()
	m.cancel = cancel
	m.connID = connID
	m.url = url
	m.attempts.Add(1)

	m.setStateLocked(core.StateConnecting, nil)

	m.logger.Info("connecting realtime channel", "url", url, "conn_id", connID)
	return stale, func() { go m.run(ctx, gen, url, connID) }
}

// teardownLocked retires the current generation. The returned connection must
// be closed by the caller after releasing the lock.
func (m *Manager) teardownLocked() core.Conn {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	conn := m.conn
	m.conn = nil
	m.openedAt = time.Time{}
	return conn
}

// setStateLocked queues the transition for listeners while still holding the
// lock, so the queue order is the transition order.
func (m *Manager) setStateLocked(next core.ConnectionState, err error) bool {
	old := core.ConnectionState(m.state.Swap(int32(next)))
	if old == next {
		return false
	}
	m.pending = append(m.pending, core.StateChange{Old: old, New: next, Err: err, At: time.Now()})
	return true
}

func (m *Manager) run(ctx context.Context, gen uint64, url, connID string) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("realtime reader panic recovered", "conn_id", connID, "error", r)
			m.drop(gen, fmt.Errorf("reader panic: %v", r))
		}
	}()

	conn, err := m.dialer.Dial(ctx, url)
	if err != nil {
		m.drop(gen, err)
		return
	}
	if !m.open(gen, conn, connID) {
		closeConn(conn)
		return
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			m.drop(gen, err)
			return
		}
		if !m.current(gen) {
			return
		}
		m.handleFrame(ctx, frame, connID)
	}
}

func (m *Manager) open(gen uint64, conn core.Conn, connID string) bool {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return false
	}
	m.conn = conn
	m.openedAt = time.Now()
	m.lastErr = nil
	m.policy.Reset()
	m.setStateLocked(core.StateOpen, nil)
	m.mu.Unlock()

	m.logger.Info("realtime channel open", "conn_id", connID)
	m.flush()
	return true
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}

func (m *Manager) handleFrame(ctx context.Context, frame []byte, connID string) {
	evt, err := codec.Decode(frame, connID)
	if err != nil {
		m.dropped.Add(1)
		if errors.Is(err, codec.ErrMalformedFrame) {
			m.logger.Warn("dropping undecodable frame", "conn_id", connID, "size", len(frame), "error", err)
		} else {
			m.logger.Debug("dropping frame without action", "conn_id", connID)
		}
		return
	}
	m.frames.Add(1)

	res := m.registry.Dispatch(ctx, evt)
	if m.eventLog != nil {
		m.eventLog.Log(evt, res.Delivered, res.Failed)
	}
}

// drop handles the end of a channel that was not closed on purpose: the state
// becomes Closed and exactly one reconnect is scheduled.
func (m *Manager) drop(gen uint64, cause error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	stale := m.teardownLocked()
	m.lastErr = cause
	m.setStateLocked(core.StateClosed, cause)

	delay := m.policy.Next()
	token := m.gen
	m.timer = time.AfterFunc(delay, func() { m.reconnect(token) })
	m.reconnects.Add(1)
	m.mu.Unlock()

	m.logger.Warn("realtime channel lost, reconnect scheduled", "error", cause, "delay", delay)
	m.flush()
	closeConn(stale)
}

func (m *Manager) reconnect(token uint64) {
	m.mu.Lock()
	if token != m.gen || m.timer == nil {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	stale, start := m.connectLocked()
	m.mu.Unlock()

	m.flush()
	closeConn(stale)
	if start != nil {
		start()
	}
}

// flush delivers queued transitions. Only one goroutine drains at a time;
// a concurrent or nested caller leaves its changes to the active drainer.
func (m *Manager) flush() {
	m.mu.Lock()
	if m.notifying {
		m.mu.Unlock()
		return
	}
	m.notifying = true
	for len(m.pending) > 0 {
		changes := m.pending
		m.pending = nil
		listeners := m.listeners
		m.mu.Unlock()

		for _, change := range changes {
			for _, l := range listeners {
				m.safeNotify(l.fn, change)
			}
		}

		m.mu.Lock()
	}
	m.notifying = false
	m.mu.Unlock()
}

func (m *Manager) safeNotify(fn func(core.StateChange), change core.StateChange) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("state listener panic recovered", "error", r)
		}
	}()
	fn(change)
}

func closeConn(c core.Conn) {
	if c != nil {
		_ = c.Close()
	}
}
