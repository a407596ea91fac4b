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

package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KBchulan/jmReader/pkg/core"
)

const (
	DefaultQueueSize      = 256
	DefaultPublishTimeout = 5 * time.Second
)

// SinkSet resolves sink names and records their health.
type SinkSet interface {
	Sink(name string) (core.Sink, bool)
	SetHealthy(name string, ok bool)
}

type Options struct {
	QueueSize      int
	PublishTimeout time.Duration
}

type Stats struct {
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
	Queued    int    `json:"queued"`
}

// Router forwards routed events to broker sinks. Dispatch only enqueues; one
// worker publishes in arrival order, so a slow broker never stalls the
// realtime reader. When the queue is full new events are dropped.
type Router struct {
	table   *Table
	sinks   SinkSet
	sub     core.Subscriber
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	subs    map[string]core.SubscriptionID
	queue   chan core.Event
	closed  bool
	started bool
	wg      sync.WaitGroup

	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

func NewRouter(table *Table, sinks SinkSet, sub core.Subscriber, opts Options, logger *slog.Logger) *Router {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = DefaultPublishTimeout
	}
	return &Router{
		table:   table,
		sinks:   sinks,
		sub:     sub,
		timeout: opts.PublishTimeout,
		logger:  logger,
		subs:    make(map[string]core.SubscriptionID),
		queue:   make(chan core.Event, opts.QueueSize),
	}
}

// Start subscribes to every routed kind and launches the publish worker.
func (r *Router) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = true
	r.wg.Add(1)
	r.mu.Unlock()

	go r.work(ctx)
	return r.sync()
}

// ReplaceRoutes swaps the routing table and brings subscriptions in line
// with it.
func (r *Router) ReplaceRoutes(routes []*Route) error {
	r.table.ReplaceAll(routes)
	return r.sync()
}

func (r *Router) sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}

	wanted := make(map[string]bool)
	for _, kind := range r.table.Kinds() {
		wanted[kind] = true
		if _, ok := r.subs[kind]; ok {
			continue
		}
		id, err := r.sub.Subscribe(kind, r)
		if err != nil {
			return fmt.Errorf("relay subscribe %q: %w", kind, err)
		}
		r.subs[kind] = id
		r.logger.Info("relay route active", "kind", kind)
	}
	for kind, id := range r.subs {
		if !wanted[kind] {
			r.sub.Unsubscribe(kind, id)
			delete(r.subs, kind)
			r.logger.Info("relay route removed", "kind", kind)
		}
	}
	return nil
}

// Handle enqueues evt for publishing. It never blocks.
func (r *Router) Handle(_ context.Context, evt core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	select {
	case r.queue <- evt:
	default:
		r.dropped.Add(1)
		r.logger.Warn("relay queue full, dropping event", "kind", evt.Kind, "event_id", evt.ID)
	}
	return nil
}

func (r *Router) work(ctx context.Context) {
	defer r.wg.Done()
	for evt := range r.queue {
		r.publish(ctx, evt)
	}
}

func (r *Router) publish(ctx context.Context, evt core.Event) {
	route, ok := r.table.Lookup(evt.Kind)
	if !ok {
		return
	}
	for _, name := range route.Sinks {
		sink, ok := r.sinks.Sink(name)
		if !ok {
			r.failed.Add(1)
			r.logger.Error("relay target missing",
				"kind", evt.Kind,
				"sink", name,
				"error", core.ErrSinkNotFound,
			)
			continue
		}

		pubCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := sink.Publish(pubCtx, evt)
		cancel()
		if err != nil {
			r.failed.Add(1)
			r.sinks.SetHealthy(name, false)
			r.logger.Error("relay publish failed",
				"kind", evt.Kind,
				"event_id", evt.ID,
				"sink", name,
				"error", err,
			)
			continue
		}
		r.published.Add(1)
		r.sinks.SetHealthy(name, true)
	}
}

// Stop unsubscribes, lets the worker drain what is queued, and waits for it.
func (r *Router) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for kind, id := range r.subs {
		r.sub.Unsubscribe(kind, id)
	}
	r.subs = make(map[string]core.SubscriptionID)
	close(r.queue)
	started := r.started
	r.mu.Unlock()

	if started {
		r.wg.Wait()
	}
}

func (r *Router) Stats() Stats {
	return Stats{
		Published: r.published.Load(),
		Failed:    r.failed.Load(),
		Dropped:   r.dropped.Load(),
		Queued:    len(r.queue),
	}
}
